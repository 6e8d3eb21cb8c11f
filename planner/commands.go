package planner

import "fmt"

// Command receives a server-issued command. Commands only ever
// arrive as a side effect of a successful telemetry exchange, so no
// event may be pending when this is called; violating that is a
// driver bug, not a runtime condition to recover from.
func (p *Planner) Command(cmd Command) {
	if p.plannedEvent != nil {
		panic("planner: Command called while an event is pending")
	}

	if p.backgroundCommand != nil {
		// Already processing a command. If the server resent the same
		// one, re-accept it; anything else while busy is rejected. This
		// is deliberately conservative: resending a different command
		// while busy gets no distinguishing reason, just a flat reject.
		evtType := EventRejected
		if cmd.Kind == CmdProcessingThis {
			evtType = EventAccepted
		}
		id := cmd.Id
		p.setPlannedEvent(Event{Type: evtType, CommandId: &id})
		return
	}

	switch cmd.Kind {
	case CmdUnknown:
		p.reject(cmd.Id, ReasonUnknownCommand)
	case CmdBroken:
		p.reject(cmd.Id, cmd.BrokenReason)
	case CmdTooLarge:
		p.reject(cmd.Id, ReasonGcodeTooLarge)
	case CmdProcessingOther:
		p.reject(cmd.Id, ReasonProcessingOther)
	case CmdProcessingThis:
		// Unreachable here: only meaningful while a background command
		// is running, which is handled above.
		panic("planner: ProcessingThisCommand with no background command running")

	case CmdGcode:
		p.backgroundCommand = &BackgroundCommand{Id: cmd.Id, Gcode: cmd.GcodePtr, Length: len(cmd.GcodePtr)}
		id := cmd.Id
		p.setPlannedEvent(Event{Type: EventAccepted, CommandId: &id})

	case CmdPause:
		p.jobControl(cmd.Id, JobPause, ReasonNoPrintToPause)
	case CmdResume:
		p.jobControl(cmd.Id, JobResume, ReasonNoPausedPrintResume)
	case CmdStop:
		p.jobControl(cmd.Id, JobStop, ReasonNoPrintToStop)

	case CmdStartPrint:
		p.startPrint(cmd.Id, cmd.Path)

	case CmdSendInfo:
		id := cmd.Id
		p.setPlannedEvent(Event{Type: EventInfo, CommandId: &id})

	case CmdSendJobInfo:
		id := cmd.Id
		jobId := cmd.JobId
		p.setPlannedEvent(Event{Type: EventJobInfo, CommandId: &id, JobId: &jobId})

	case CmdSendFileInfo:
		if pathAllowed(cmd.FilePath) {
			id := cmd.Id
			p.setPlannedEvent(Event{Type: EventFileInfo, CommandId: &id, Path: cmd.FilePath})
		} else {
			p.reject(cmd.Id, ReasonForbiddenPath)
		}

	case CmdSendTransferInfo:
		id := cmd.Id
		p.setPlannedEvent(Event{Type: EventTransferInfo, CommandId: &id, StartCmdId: p.transferStartCmd})

	case CmdSetReady:
		if p.printer.SetReady(true) {
			id := cmd.Id
			p.setPlannedEvent(Event{Type: EventFinished, CommandId: &id})
		} else {
			p.reject(cmd.Id, ReasonCantSetReadyNow)
		}

	case CmdCancelReady:
		if !p.printer.SetReady(false) {
			panic("planner: cancelling printer-ready reported failure, which can't happen")
		}
		id := cmd.Id
		p.setPlannedEvent(Event{Type: EventFinished, CommandId: &id})

	case CmdStartConnectDownload:
		p.startConnectDownload(cmd.Id, cmd.Download)

	default:
		panic(fmt.Sprintf("planner: unhandled command kind %d", cmd.Kind))
	}
}

func (p *Planner) setPlannedEvent(e Event) {
	p.plannedEvent = &e
}

func (p *Planner) reject(id CommandId, reason string) {
	p.setPlannedEvent(Event{Type: EventRejected, CommandId: &id, Reason: reason})
}

func (p *Planner) jobControl(id CommandId, op JobControlOp, failReason string) {
	if p.printer.JobControl(op) {
		p.setPlannedEvent(Event{Type: EventFinished, CommandId: &id})
	} else {
		p.reject(id, failReason)
	}
}

func (p *Planner) startPrint(id CommandId, path string) {
	var reason string
	switch {
	case !pathAllowed(path):
		reason = ReasonForbiddenPath
	case !p.printer.PathExists(path):
		reason = ReasonFileNotFound
	case !p.printer.StartPrint(path):
		reason = ReasonCantPrintNow
	}

	if reason == "" {
		p.setPlannedEvent(Event{Type: EventFinished, CommandId: &id})
	} else {
		p.reject(id, reason)
	}
}

// BackgroundDone reports the outcome of the currently running
// background command. It may only be called while a
// background command is live and no event is pending — the sleep
// action that advances a background command is only ever handed out
// when there's no pending event to clobber.
func (p *Planner) BackgroundDone(result BackgroundResult) {
	if p.backgroundCommand == nil {
		panic("planner: BackgroundDone called with no background command running")
	}
	if p.plannedEvent != nil {
		panic("planner: BackgroundDone called while an event is pending")
	}

	id := p.backgroundCommand.Id
	evtType := EventFinished
	if result == BackgroundFailure {
		evtType = EventFailed
	}
	p.setPlannedEvent(Event{Type: evtType, CommandId: &id})
	p.backgroundCommand = nil
}

// DownloadDone reports that the current Download has reached its
// terminal outcome. The transfer engine must still hold the slot when
// this is called (the Monitor must still report the transfer as
// current); the caller frees the slot afterwards. It does not itself
// emit the terminal event — NextAction's transfer-status-edge step
// does, once it observes the Monitor's id change.
func (p *Planner) DownloadDone() {
	if p.download == nil {
		panic("planner: DownloadDone called with no download in progress")
	}

	current, ok := p.monitor.CurrentId()
	if !ok {
		panic("planner: DownloadDone called but Monitor has no current transfer")
	}
	p.observedTransfer = &current
	p.download = nil
}

// BackgroundCommandId returns the id of the currently running
// background command, if any.
func (p *Planner) BackgroundCommandId() (CommandId, bool) {
	if p.backgroundCommand == nil {
		return 0, false
	}
	return p.backgroundCommand.Id, true
}
