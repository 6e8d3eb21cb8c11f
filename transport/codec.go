package transport

import (
	"fmt"

	"printerconnect/planner"
	"printerconnect/protocol"
)

// eventKindWire maps planner.EventType to its wire string. Kept as an
// explicit table rather than a String() reuse since the wire
// vocabulary is a separate contract from the in-process enum — a
// renumbering of planner.EventType must never silently change bytes
// already being sent to deployed printers.
var eventKindWire = map[planner.EventType]protocol.EventKind{
	planner.EventInfo:             protocol.EventKindInfo,
	planner.EventAccepted:         protocol.EventKindAccepted,
	planner.EventRejected:         protocol.EventKindRejected,
	planner.EventJobInfo:          protocol.EventKindJobInfo,
	planner.EventFileInfo:         protocol.EventKindFileInfo,
	planner.EventTransferInfo:     protocol.EventKindTransferInfo,
	planner.EventFinished:         protocol.EventKindFinished,
	planner.EventFailed:           protocol.EventKindFailed,
	planner.EventTransferStopped:  protocol.EventKindTransferStopped,
	planner.EventTransferAborted:  protocol.EventKindTransferAborted,
	planner.EventTransferFinished: protocol.EventKindTransferFinished,
}

var commandKindFromWire = map[protocol.CommandKindWire]planner.CommandKind{
	protocol.CommandKindUnknown:             planner.CmdUnknown,
	protocol.CommandKindBroken:              planner.CmdBroken,
	protocol.CommandKindTooLarge:            planner.CmdTooLarge,
	protocol.CommandKindProcessingOther:     planner.CmdProcessingOther,
	protocol.CommandKindProcessingThis:      planner.CmdProcessingThis,
	protocol.CommandKindGcode:               planner.CmdGcode,
	protocol.CommandKindStartPrint:          planner.CmdStartPrint,
	protocol.CommandKindPause:               planner.CmdPause,
	protocol.CommandKindResume:              planner.CmdResume,
	protocol.CommandKindStop:                planner.CmdStop,
	protocol.CommandKindSetReady:            planner.CmdSetReady,
	protocol.CommandKindCancelReady:         planner.CmdCancelReady,
	protocol.CommandKindSendInfo:            planner.CmdSendInfo,
	protocol.CommandKindSendJobInfo:         planner.CmdSendJobInfo,
	protocol.CommandKindSendFileInfo:        planner.CmdSendFileInfo,
	protocol.CommandKindSendTransferInfo:    planner.CmdSendTransferInfo,
	protocol.CommandKindStartConnectDownload: planner.CmdStartConnectDownload,
}

// encodeEvent converts a planner.Event into its wire payload.
func encodeEvent(evt planner.Event) (protocol.EventPayload, error) {
	kind, ok := eventKindWire[evt.Type]
	if !ok {
		return protocol.EventPayload{}, fmt.Errorf("transport: unknown event type %d", evt.Type)
	}
	p := protocol.EventPayload{
		Kind:            kind,
		Path:            evt.Path,
		Reason:          evt.Reason,
		InfoRescanFiles: evt.InfoRescanFiles,
	}
	if evt.CommandId != nil {
		id := uint32(*evt.CommandId)
		p.CommandID = &id
	}
	if evt.JobId != nil {
		p.JobID = evt.JobId
	}
	if evt.TransferId != nil {
		id := uint32(*evt.TransferId)
		p.TransferID = &id
	}
	if evt.StartCmdId != nil {
		id := uint32(*evt.StartCmdId)
		p.StartCmdID = &id
	}
	return p, nil
}

// decodeCommand converts a wire command payload into a planner.Command.
func decodeCommand(p protocol.CommandPayload) (planner.Command, error) {
	kind, ok := commandKindFromWire[p.Kind]
	if !ok {
		return planner.Command{}, fmt.Errorf("transport: unknown command kind %q", p.Kind)
	}
	cmd := planner.Command{
		Id:           planner.CommandId(p.ID),
		Kind:         kind,
		BrokenReason: p.BrokenReason,
		GcodePtr:     p.Gcode,
		Path:         p.Path,
		JobId:        p.JobID,
		FilePath:     p.FilePath,
	}
	if p.Download != nil {
		cmd.Download = planner.DownloadRequest{
			Team: p.Download.Team,
			Hash: p.Download.Hash,
			Path: p.Download.Path,
		}
	}
	return cmd, nil
}
