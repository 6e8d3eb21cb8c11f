package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	kafkago "github.com/segmentio/kafka-go"

	"printerconnect/planner"
	"printerconnect/protocol"
)

// KafkaClient is the high-volume backend: events/telemetry are
// produced to one topic, commands are consumed from another via a
// dedicated reader goroutine. Meant for fleets whose ingestion
// pipeline already speaks Kafka rather than HTTP or MQTT.
type KafkaClient struct {
	brokers    []string
	printerID  string
	eventTopic string
	cmdTopic   string

	writer *kafkago.Writer
	reader *kafkago.Reader

	commandsCh chan planner.Command
	cancel     context.CancelFunc
}

func NewKafkaClient(brokers []string, printerID, eventTopic, cmdTopic string) *KafkaClient {
	return &KafkaClient{
		brokers:    brokers,
		printerID:  printerID,
		eventTopic: eventTopic,
		cmdTopic:   cmdTopic,
		commandsCh: make(chan planner.Command, 8),
	}
}

func (c *KafkaClient) Connect(ctx context.Context) error {
	if len(c.brokers) == 0 {
		return fmt.Errorf("kafka transport: no brokers configured")
	}

	c.writer = &kafkago.Writer{
		Addr:         kafkago.TCP(c.brokers...),
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireOne,
	}

	c.reader = kafkago.NewReader(kafkago.ReaderConfig{
		Brokers: c.brokers,
		Topic:   c.cmdTopic,
		GroupID: "printerconnect-" + c.printerID,
	})

	readCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go c.consumeLoop(readCtx)
	return nil
}

func (c *KafkaClient) Close() error {
	if c.cancel != nil {
		c.cancel()
	}
	if c.reader != nil {
		_ = c.reader.Close()
	}
	if c.writer != nil {
		_ = c.writer.Close()
	}
	return nil
}

func (c *KafkaClient) Commands() <-chan planner.Command {
	return c.commandsCh
}

func (c *KafkaClient) SendEvent(ctx context.Context, evt planner.Event) planner.ActionResult {
	payload, err := encodeEvent(evt)
	if err != nil {
		log.Printf("kafka transport: encode event: %v", err)
		return planner.ResultFailed
	}
	return c.produce(ctx, protocol.TypeEvent, payload)
}

func (c *KafkaClient) SendTelemetry(ctx context.Context, t protocol.TelemetryPayload) planner.ActionResult {
	return c.produce(ctx, protocol.TypeTelemetry, t)
}

func (c *KafkaClient) produce(ctx context.Context, msgType string, payload any) planner.ActionResult {
	env, err := protocol.NewEnvelope(msgType,
		protocol.Address{Role: protocol.RolePrinter, PrinterID: c.printerID},
		protocol.Address{Role: protocol.RoleCloud},
		payload)
	if err != nil {
		log.Printf("kafka transport: build envelope: %v", err)
		return planner.ResultFailed
	}
	data, err := env.Encode()
	if err != nil {
		log.Printf("kafka transport: encode envelope: %v", err)
		return planner.ResultFailed
	}

	err = c.writer.WriteMessages(ctx, kafkago.Message{
		Topic: c.eventTopic,
		Key:   []byte(c.printerID),
		Value: data,
	})
	if err != nil {
		log.Printf("kafka transport: write message: %v", err)
		return planner.ResultFailed
	}
	return planner.ResultOk
}

func (c *KafkaClient) consumeLoop(ctx context.Context) {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("kafka transport: read message: %v", err)
			return
		}

		var env protocol.Envelope
		if err := json.Unmarshal(msg.Value, &env); err != nil {
			log.Printf("kafka transport: decode envelope: %v", err)
			continue
		}
		var payload protocol.CommandPayload
		if err := env.DecodePayload(&payload); err != nil {
			log.Printf("kafka transport: decode command payload: %v", err)
			continue
		}
		cmd, err := decodeCommand(payload)
		if err != nil {
			log.Printf("kafka transport: %v", err)
			continue
		}
		select {
		case c.commandsCh <- cmd:
		case <-ctx.Done():
			return
		}
	}
}
