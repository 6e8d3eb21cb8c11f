package protocol

import (
	"encoding/json"
	"testing"
)

func TestNewEnvelopeRoundTripsPayload(t *testing.T) {
	src := Address{Role: RolePrinter, PrinterID: "abc123"}
	dst := Address{Role: RoleCloud}
	payload := TelemetryPayload{Printing: true, NozzleTempC: 210.5, BedTempC: 60}

	env, err := NewEnvelope(TypeTelemetry, src, dst, payload)
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	if env.Version != Version {
		t.Errorf("Version = %d, want %d", env.Version, Version)
	}
	if env.ID == "" {
		t.Errorf("expected a non-empty generated ID")
	}
	if env.CorID != "" {
		t.Errorf("CorID = %q, want empty for a fresh envelope", env.CorID)
	}

	var got TelemetryPayload
	if err := env.DecodePayload(&got); err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if got != payload {
		t.Errorf("DecodePayload = %+v, want %+v", got, payload)
	}
}

func TestNewReplySetsCorrelationID(t *testing.T) {
	src := Address{Role: RoleCloud}
	dst := Address{Role: RolePrinter, PrinterID: "abc123"}
	cmd := CommandPayload{ID: 7, Kind: CommandKindSendInfo}

	env, err := NewReply(TypeCommand, src, dst, "original-msg-id", cmd)
	if err != nil {
		t.Fatalf("NewReply: %v", err)
	}
	if env.CorID != "original-msg-id" {
		t.Errorf("CorID = %q, want %q", env.CorID, "original-msg-id")
	}
	if env.Type != TypeCommand {
		t.Errorf("Type = %q, want %q", env.Type, TypeCommand)
	}
}

func TestEncodeThenDecodePreservesEnvelope(t *testing.T) {
	env, err := NewEnvelope(TypeEvent, Address{Role: RolePrinter}, Address{Role: RoleCloud},
		EventPayload{Kind: EventKindFinished})
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}

	data, err := env.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var decoded Envelope
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if decoded.ID != env.ID || decoded.Type != env.Type {
		t.Errorf("decoded envelope = %+v, want ID=%q Type=%q", decoded, env.ID, env.Type)
	}

	var payload EventPayload
	if err := decoded.DecodePayload(&payload); err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if payload.Kind != EventKindFinished {
		t.Errorf("payload.Kind = %q, want %q", payload.Kind, EventKindFinished)
	}
}

func TestDecodePayloadRejectsMismatchedShape(t *testing.T) {
	env, err := NewEnvelope(TypeEvent, Address{Role: RolePrinter}, Address{Role: RoleCloud},
		EventPayload{Kind: EventKindInfo})
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}

	var badTarget []int
	if err := env.DecodePayload(&badTarget); err == nil {
		t.Errorf("expected DecodePayload to fail unmarshalling an object into []int")
	}
}
