package planner

// Timeouts and retry policy.
const (
	cooldownBase            Duration = 100
	cooldownMax             Duration = 1000 * 60
	telemetryIntervalShort  Duration = 1000
	telemetryIntervalLong   Duration = 1000 * 4
	reconnectAfter          Duration = 1000 * 10
	giveUpAfterAttempts     uint8    = 5
)

// maxUint64Digits documents the width reserved for a decimal-encoded
// uint64 in the original firmware's fixed download-path buffer. Go
// string building needs no such buffer; the constant is kept only so
// the provenance of the "21" in the URL size estimate stays visible.
const maxUint64Digits = 21

// Planner drives a single printer's side of the cloud-management
// protocol. All of its methods run on one logical task; it holds no
// internal locks and must not be called concurrently.
type Planner struct {
	printer    Printer
	monitor    Monitor
	downloader Downloader
	now        func() Timestamp

	plannedEvent *Event

	lastTelemetry *Timestamp
	lastSuccess   *Timestamp

	cooldown        *Duration
	performCooldown bool
	failedAttempts  uint8

	infoChanges ChangeTracker
	fileChanges ChangeTracker

	backgroundCommand *BackgroundCommand
	download          *DownloadHandle

	observedTransfer *TransferId
	transferStartCmd *CommandId
}

// New creates a fresh Planner. The first NextAction call will always
// produce an Info event, because both Change Trackers start with no
// recorded hash.
func New(printer Printer, monitor Monitor, downloader Downloader, now func() Timestamp) *Planner {
	return &Planner{
		printer:    printer,
		monitor:    monitor,
		downloader: downloader,
		now:        now,
	}
}

// sleep builds a Sleep action, attaching the live background command
// (only when no event is pending — see Sleep's doc comment) and the
// live download (always, when present).
func (p *Planner) sleep(amount Duration) Action {
	hasEvent := p.plannedEvent != nil
	var cmd *BackgroundCommand
	if p.backgroundCommand != nil && !hasEvent {
		cmd = p.backgroundCommand
	}
	var down *DownloadHandle
	if p.download != nil {
		down = p.download
	}
	return Action{Kind: ActionSleep, Sleep: Sleep{Amount: amount, BackgroundCommand: cmd, Download: down}}
}

func sendEvent(e Event) Action {
	return Action{Kind: ActionSendEvent, Event: e}
}

var sendTelemetry = Action{Kind: ActionSendTelemetry}

// NextAction decides what the printer should do next. Strict priority
// order, first match wins.
func (p *Planner) NextAction() Action {
	if p.performCooldown {
		p.performCooldown = false
		return p.sleep(*p.cooldown)
	}

	if p.plannedEvent != nil {
		// Not consumed here — only on a successful/refused ActionDone.
		return sendEvent(*p.plannedEvent)
	}

	// Probe both trackers every time, so neither misses an observation.
	infoChanged := p.infoChanges.SetHash(p.printer.InfoFingerprint())
	filesChanged := p.fileChanges.SetHash(p.printer.FilesHash())
	if infoChanged || filesChanged {
		evt := Event{Type: EventInfo}
		if p.fileChanges.IsDirty() {
			evt.InfoRescanFiles = true
		}
		p.plannedEvent = &evt
		return sendEvent(evt)
	}

	if current, ok := p.monitor.CurrentId(); !transferIdEqual(p.observedTransfer, current, ok) {
		terminated := p.observedTransfer
		var outcome TransferOutcome
		var haveOutcome bool
		if terminated != nil {
			outcome, haveOutcome = p.monitor.Outcome(*terminated)
		}

		if ok {
			id := current
			p.observedTransfer = &id
		} else {
			p.observedTransfer = nil
		}

		if haveOutcome {
			var evtType EventType
			switch outcome {
			case OutcomeFinished:
				evtType = EventTransferFinished
			case OutcomeError:
				evtType = EventTransferAborted
			case OutcomeStopped:
				evtType = EventTransferStopped
			}
			evt := Event{Type: evtType, TransferId: terminated, StartCmdId: p.transferStartCmd}
			p.transferStartCmd = nil
			p.plannedEvent = &evt
			return sendEvent(evt)
		}
		// No outcome on record: evicted from history, or there was no
		// prior transfer to begin with. Fall through.
	}

	if p.lastTelemetry != nil {
		now := p.now()
		since := sinceMillis(now, *p.lastTelemetry)
		interval := telemetryIntervalLong
		if p.printer.IsPrinting() || p.backgroundCommand != nil {
			interval = telemetryIntervalShort
		}
		if since >= interval {
			return sendTelemetry
		}
		return p.sleep(interval - since)
	}

	return sendTelemetry
}

// transferIdEqual reports whether observed (a possibly-nil "last seen
// id") matches the Monitor's current (id, ok) pair.
func transferIdEqual(observed *TransferId, current TransferId, ok bool) bool {
	if observed == nil {
		return !ok
	}
	return ok && *observed == current
}

// ActionDone reports the outcome of the Action most recently returned
// by NextAction.
func (p *Planner) ActionDone(result ActionResult) {
	switch result {
	case ResultOk, ResultRefused:
		now := p.now()
		p.lastSuccess = &now
		p.performCooldown = false
		p.cooldown = nil
		p.failedAttempts = 0

		if p.plannedEvent != nil {
			if p.plannedEvent.Type == EventInfo {
				p.infoChanges.MarkClean()
				if p.plannedEvent.InfoRescanFiles {
					p.fileChanges.MarkClean()
				}
			}
			p.plannedEvent = nil
			// Enforce telemetry now; it may carry back a new command.
			p.lastTelemetry = nil
		} else {
			p.lastTelemetry = &now
		}

	case ResultFailed:
		p.failedAttempts++
		if p.failedAttempts >= giveUpAfterAttempts {
			// Give up on a repeatedly-failing event, unless it's Info:
			// Info is how the session reinitializes and must never be
			// dropped.
			if p.plannedEvent != nil && p.plannedEvent.Type != EventInfo {
				p.plannedEvent = nil
			}
			p.failedAttempts = 0
		}

		now := p.now()
		sinceSuccess := reconnectAfter
		if p.lastSuccess != nil {
			sinceSuccess = sinceMillis(now, *p.lastSuccess)
		}
		if sinceSuccess >= reconnectAfter && p.plannedEvent == nil {
			evt := Event{Type: EventInfo}
			p.plannedEvent = &evt
			p.lastSuccess = nil
		}

		base := cooldownBase / 2
		if p.cooldown != nil {
			base = *p.cooldown
		}
		next := base * 2
		if next > cooldownMax {
			next = cooldownMax
		}
		p.cooldown = &next
		p.performCooldown = true
	}
}
