package planner

// ActionKind tags the variant carried by Action.
type ActionKind int

const (
	ActionSendEvent ActionKind = iota + 1
	ActionSendTelemetry
	ActionSleep
)

// Action is the unit of work NextAction hands to the transport
// driver: send an event, send telemetry, or sleep.
type Action struct {
	Kind ActionKind

	// Event is set only for ActionSendEvent.
	Event Event

	// Sleep is set only for ActionSleep.
	Sleep Sleep
}

// Sleep carries the amount of time to wait plus, optionally, pointers
// to background work the driver should keep advancing while waiting.
// BackgroundCommand is only attached when no event is pending — running
// it could generate an event that would clobber the pending one (§4.7).
// Download is always attached when present; its terminal event is
// produced passively and can't be clobbered.
type Sleep struct {
	Amount            Duration
	BackgroundCommand *BackgroundCommand
	Download          *DownloadHandle
}

// ActionResult is what the transport driver reports back via
// action_done for the Action it was just given.
type ActionResult int

const (
	ResultOk ActionResult = iota + 1
	ResultRefused
	ResultFailed
)

// BackgroundCommand is a command whose execution spans many ticks.
// Currently only G-code. At most one is live at a time.
type BackgroundCommand struct {
	Id     CommandId
	Gcode  []byte
	Length int
	Cursor int
}

// BackgroundResult is what the driver reports via BackgroundDone.
type BackgroundResult int

const (
	BackgroundSuccess BackgroundResult = iota + 1
	BackgroundFailure
)

// DownloadHandle is the Planner's handle on an in-progress transfer.
// There is at most one; it is opaque to the Planner beyond its id.
type DownloadHandle struct {
	TransferId TransferId
}
