// Package transport turns planner.Event and planner.Command values
// into bytes on the wire and back. The Planner itself never imports
// this package; the action driver loop in cmd/connectd is the only
// caller.
package transport

import (
	"context"

	"printerconnect/planner"
	"printerconnect/protocol"
)

// Client is what the driver loop uses to perform the Planner's
// SendEvent/SendTelemetry actions and to receive inbound commands.
// All three backends (HTTP, MQTT, Kafka) implement it identically
// from the driver's point of view — backend-specific errors never
// reach the Planner, only the Ok/Refused/Failed trichotomy it defines.
type Client interface {
	// Connect establishes the backend connection (dials the broker,
	// verifies the HTTP endpoint is reachable, etc).
	Connect(ctx context.Context) error

	// Close tears the connection down.
	Close() error

	// SendEvent delivers an outbound Event. The returned ActionResult
	// is exactly the value the driver loop should hand back to
	// Planner.ActionDone.
	SendEvent(ctx context.Context, evt planner.Event) planner.ActionResult

	// SendTelemetry delivers a periodic status snapshot.
	SendTelemetry(ctx context.Context, t protocol.TelemetryPayload) planner.ActionResult

	// Commands returns the channel of inbound, decoded commands. The
	// channel is closed when the backend's receive loop exits.
	Commands() <-chan planner.Command
}
