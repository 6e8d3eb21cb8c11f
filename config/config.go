package config

import (
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	mu sync.Mutex `yaml:"-"`

	PrinterName string `yaml:"printer_name"`
	StatePath   string `yaml:"state_path"`

	Connection ConnectionConfig `yaml:"connection"`
	Planner    PlannerConfig    `yaml:"planner"`
	Transport  TransportConfig  `yaml:"transport"`
	Web        WebConfig        `yaml:"web"`
	Transfer   TransferConfig   `yaml:"transfer"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`
}

// ConnectionConfig is the printer's view of its cloud connection —
// the backing store behind planner.Printer.Config().
type ConnectionConfig struct {
	Host  string `yaml:"host"`
	Port  uint16 `yaml:"port"`
	Token string `yaml:"token"`
	TLS   bool   `yaml:"tls"`
}

// PlannerConfig holds the Planner's timing values, defaulting to the
// same numbers as the planner package's constants. Nothing reads these
// fields: the Planner always uses its own compiled-in constants, so
// editing them does not change its timing.
type PlannerConfig struct {
	CooldownBaseMS           uint64 `yaml:"cooldown_base_ms"`
	CooldownMaxMS            uint64 `yaml:"cooldown_max_ms"`
	TelemetryIntervalShortMS uint64 `yaml:"telemetry_interval_short_ms"`
	TelemetryIntervalLongMS  uint64 `yaml:"telemetry_interval_long_ms"`
	ReconnectAfterMS         uint64 `yaml:"reconnect_after_ms"`
	GiveUpAfterAttempts      uint8  `yaml:"give_up_after_attempts"`
}

// TransportConfig selects and configures the backend the action
// driver loop uses to perform SendEvent/SendTelemetry actions.
type TransportConfig struct {
	Backend string      `yaml:"backend"` // "http", "mqtt", or "kafka"
	MQTT    MQTTConfig  `yaml:"mqtt"`
	Kafka   KafkaConfig `yaml:"kafka"`
}

// MQTTConfig defines MQTT broker settings.
type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	Port        int    `yaml:"port"`
	ClientID    string `yaml:"client_id"`
	EventTopic  string `yaml:"event_topic"`
	CommandTopic string `yaml:"command_topic"`
}

// KafkaConfig defines Kafka broker settings.
type KafkaConfig struct {
	Brokers      []string `yaml:"brokers"`
	EventTopic   string   `yaml:"event_topic"`
	CommandTopic string   `yaml:"command_topic"`
}

// WebConfig defines the diagnostics web server settings.
type WebConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	SessionSecret string `yaml:"session_secret"`
	AdminUser     string `yaml:"admin_user"`
	AdminPassHash string `yaml:"admin_pass_hash"`
}

// TransferConfig tunes the transfer engine's single download slot.
type TransferConfig struct {
	DestDir         string        `yaml:"dest_dir"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	HistorySize     int           `yaml:"history_size"`
}

// DiagnosticsConfig configures the local, non-authoritative audit log.
type DiagnosticsConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// Defaults returns a Config with sane defaults.
func Defaults() *Config {
	return &Config{
		PrinterName: "printer-1",
		StatePath:   "connectd-state.json",
		Connection: ConnectionConfig{
			Host: "connect.example.com",
			Port: 443,
			TLS:  true,
		},
		Planner: PlannerConfig{
			CooldownBaseMS:           100,
			CooldownMaxMS:            60000,
			TelemetryIntervalShortMS: 1000,
			TelemetryIntervalLongMS:  4000,
			ReconnectAfterMS:         10000,
			GiveUpAfterAttempts:      5,
		},
		Transport: TransportConfig{
			Backend: "http",
			MQTT: MQTTConfig{
				Broker:       "localhost",
				Port:         1883,
				EventTopic:   "connect/events",
				CommandTopic: "connect/commands",
			},
			Kafka: KafkaConfig{
				EventTopic:   "connect.events",
				CommandTopic: "connect.commands",
			},
		},
		Web: WebConfig{
			Host: "0.0.0.0",
			Port: 8081,
		},
		Transfer: TransferConfig{
			DestDir:        "/usb",
			RequestTimeout: 30 * time.Second,
			HistorySize:    16,
		},
		Diagnostics: DiagnosticsConfig{
			DatabasePath: "connectd-diagnostics.db",
		},
	}
}

// Load reads a YAML config file. If the file doesn't exist, defaults are used.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to a YAML file.
func (c *Config) Save(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Lock acquires the config mutex for multi-step mutations, e.g. the
// webui's connection-settings handler rewriting Connection's four
// fields as one unit before an observer could see it half-updated.
func (c *Config) Lock() { c.mu.Lock() }

// Unlock releases the config mutex.
func (c *Config) Unlock() { c.mu.Unlock() }
