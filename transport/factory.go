package transport

import (
	"fmt"
	"time"

	"printerconnect/config"
)

// New builds the Client selected by cfg.Backend.
func New(cfg config.TransportConfig, conn config.ConnectionConfig, printerID string, requestTimeout time.Duration) (Client, error) {
	switch cfg.Backend {
	case "", "http":
		scheme := "http"
		if conn.TLS {
			scheme = "https"
		}
		baseURL := fmt.Sprintf("%s://%s:%d", scheme, conn.Host, conn.Port)
		return NewHTTPClient(baseURL, conn.Token, printerID, requestTimeout), nil

	case "mqtt":
		return NewMQTTClient(cfg.MQTT.Broker, cfg.MQTT.Port, cfg.MQTT.ClientID, printerID,
			cfg.MQTT.EventTopic, cfg.MQTT.CommandTopic), nil

	case "kafka":
		return NewKafkaClient(cfg.Kafka.Brokers, printerID, cfg.Kafka.EventTopic, cfg.Kafka.CommandTopic), nil

	default:
		return nil, fmt.Errorf("transport: unknown backend %q", cfg.Backend)
	}
}
