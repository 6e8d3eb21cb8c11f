package transport

import (
	"testing"

	"printerconnect/planner"
	"printerconnect/protocol"
)

func TestEncodeEventCarriesOptionalIds(t *testing.T) {
	cmdID := planner.CommandId(7)
	transferID := planner.TransferId(9)

	evt := planner.Event{
		Type:       planner.EventTransferFinished,
		CommandId:  &cmdID,
		TransferId: &transferID,
		Reason:     "",
	}

	p, err := encodeEvent(evt)
	if err != nil {
		t.Fatalf("encodeEvent: %v", err)
	}
	if p.Kind != protocol.EventKindTransferFinished {
		t.Errorf("Kind = %v, want EventKindTransferFinished", p.Kind)
	}
	if p.CommandID == nil || *p.CommandID != 7 {
		t.Errorf("CommandID = %v, want 7", p.CommandID)
	}
	if p.TransferID == nil || *p.TransferID != 9 {
		t.Errorf("TransferID = %v, want 9", p.TransferID)
	}
}

func TestEncodeEventRejectsUnknownType(t *testing.T) {
	_, err := encodeEvent(planner.Event{Type: planner.EventType(999)})
	if err == nil {
		t.Fatal("expected an error for an unmapped event type")
	}
}

func TestDecodeCommandStartConnectDownload(t *testing.T) {
	p := protocol.CommandPayload{
		ID:   3,
		Kind: protocol.CommandKindStartConnectDownload,
		Download: &protocol.DownloadRequestPayload{
			Team: 42,
			Hash: "abc123",
			Path: "/usb/job.gcode",
		},
	}

	cmd, err := decodeCommand(p)
	if err != nil {
		t.Fatalf("decodeCommand: %v", err)
	}
	if cmd.Kind != planner.CmdStartConnectDownload {
		t.Errorf("Kind = %v, want CmdStartConnectDownload", cmd.Kind)
	}
	if cmd.Download.Team != 42 || cmd.Download.Hash != "abc123" || cmd.Download.Path != "/usb/job.gcode" {
		t.Errorf("Download = %+v, unexpected", cmd.Download)
	}
}

func TestDecodeCommandRejectsUnknownWireKind(t *testing.T) {
	_, err := decodeCommand(protocol.CommandPayload{Kind: protocol.CommandKindWire("bogus")})
	if err == nil {
		t.Fatal("expected an error for an unmapped wire command kind")
	}
}
