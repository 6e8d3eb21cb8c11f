// Package protocol defines the wire envelope used by the transport
// layer to carry planner.Event and planner.Command values between the
// printer and the cloud. The Planner itself never imports this
// package — only the transport adapters that translate its Actions
// and Commands to and from bytes on the wire.
package protocol

// Message type constants. Printer -> cloud messages carry a
// planner.Event; cloud -> printer messages carry a planner.Command.
const (
	TypeTelemetry = "telemetry"
	TypeEvent     = "event"
	TypeCommand   = "command"
)

// Roles for Address.Role.
const (
	RolePrinter = "printer"
	RoleCloud   = "cloud"
)

// Version is the envelope schema version.
const Version = 1
