package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"printerconnect/planner"
	"printerconnect/protocol"
)

// MQTTClient is the broker-based backend: events and telemetry are
// published to fixed topics, commands arrive on a subscribed topic
// asynchronously rather than piggybacked on a response.
type MQTTClient struct {
	opts       *mqtt.ClientOptions
	client     mqtt.Client
	printerID  string
	eventTopic string
	cmdTopic   string
	publishQoS byte
	commandsCh chan planner.Command
}

// NewMQTTClient builds an MQTT transport backend. eventTopic carries
// both events and telemetry (distinguished by protocol.Envelope.Type);
// cmdTopic is subscribed for inbound commands.
func NewMQTTClient(broker string, port int, clientID, printerID, eventTopic, cmdTopic string) *MQTTClient {
	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", broker, port)).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)

	return &MQTTClient{
		opts:       opts,
		printerID:  printerID,
		eventTopic: eventTopic,
		cmdTopic:   cmdTopic,
		publishQoS: 1,
		commandsCh: make(chan planner.Command, 8),
	}
}

func (c *MQTTClient) Connect(ctx context.Context) error {
	c.client = mqtt.NewClient(c.opts)
	token := c.client.Connect()
	if !token.WaitTimeout(connectTimeout(ctx)) {
		return fmt.Errorf("mqtt transport: connect timed out")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt transport: connect: %w", err)
	}

	subToken := c.client.Subscribe(c.cmdTopic, 1, c.onCommand)
	subToken.Wait()
	if err := subToken.Error(); err != nil {
		return fmt.Errorf("mqtt transport: subscribe %s: %w", c.cmdTopic, err)
	}
	return nil
}

func (c *MQTTClient) Close() error {
	if c.client != nil && c.client.IsConnected() {
		c.client.Disconnect(250)
	}
	return nil
}

func (c *MQTTClient) Commands() <-chan planner.Command {
	return c.commandsCh
}

func (c *MQTTClient) SendEvent(ctx context.Context, evt planner.Event) planner.ActionResult {
	payload, err := encodeEvent(evt)
	if err != nil {
		log.Printf("mqtt transport: encode event: %v", err)
		return planner.ResultFailed
	}
	return c.publish(protocol.TypeEvent, payload)
}

func (c *MQTTClient) SendTelemetry(ctx context.Context, t protocol.TelemetryPayload) planner.ActionResult {
	return c.publish(protocol.TypeTelemetry, t)
}

func (c *MQTTClient) publish(msgType string, payload any) planner.ActionResult {
	if c.client == nil || !c.client.IsConnected() {
		return planner.ResultFailed
	}

	env, err := protocol.NewEnvelope(msgType,
		protocol.Address{Role: protocol.RolePrinter, PrinterID: c.printerID},
		protocol.Address{Role: protocol.RoleCloud},
		payload)
	if err != nil {
		log.Printf("mqtt transport: build envelope: %v", err)
		return planner.ResultFailed
	}

	data, err := env.Encode()
	if err != nil {
		log.Printf("mqtt transport: encode envelope: %v", err)
		return planner.ResultFailed
	}

	token := c.client.Publish(c.eventTopic, c.publishQoS, false, data)
	if !token.WaitTimeout(5 * time.Second) {
		return planner.ResultFailed
	}
	if err := token.Error(); err != nil {
		log.Printf("mqtt transport: publish: %v", err)
		return planner.ResultFailed
	}
	return planner.ResultOk
}

func (c *MQTTClient) onCommand(_ mqtt.Client, msg mqtt.Message) {
	var env protocol.Envelope
	if err := json.Unmarshal(msg.Payload(), &env); err != nil {
		log.Printf("mqtt transport: decode envelope: %v", err)
		return
	}
	var payload protocol.CommandPayload
	if err := env.DecodePayload(&payload); err != nil {
		log.Printf("mqtt transport: decode command payload: %v", err)
		return
	}
	cmd, err := decodeCommand(payload)
	if err != nil {
		log.Printf("mqtt transport: %v", err)
		return
	}
	select {
	case c.commandsCh <- cmd:
	default:
		log.Printf("mqtt transport: command channel full, dropping command %d", cmd.Id)
	}
}

// connectTimeout derives a bounded wait from ctx's deadline, falling
// back to a fixed 10s when the caller set no deadline.
func connectTimeout(ctx context.Context) time.Duration {
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 {
			return d
		}
	}
	return 10 * time.Second
}
