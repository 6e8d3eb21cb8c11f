// Package hotplug implements the startup hot-plug detector: a
// one-shot window, open for the first 3000ms after USB host
// init, during which a successful mass-storage mount sets a public
// "connected at startup" flag the UI polls for one-click print.
package hotplug

import "sync/atomic"

// Timestamp is a monotonic millisecond counter; it wraps, so window
// arithmetic always goes through elapsed subtraction, never direct
// comparison against a stored deadline.
type Timestamp = uint64

const startupWindow = 3000

// Detector tracks the startup window. Tick/MountSucceeded/Disconnected
// are called from the USB event thread; ConnectedAtStartup is polled
// from elsewhere, hence the atomic.
type Detector struct {
	bootTime     Timestamp
	windowClosed bool
	connected    atomic.Bool
}

// New creates a Detector whose window opens at bootTime.
func New(bootTime Timestamp) *Detector {
	return &Detector{bootTime: bootTime}
}

// Tick closes the window once it has elapsed. Call it on every USB
// event, not just mount success, so the window closes even when the
// first event after boot is unrelated to mounting.
func (d *Detector) Tick(now Timestamp) {
	if !d.windowClosed && now-d.bootTime >= startupWindow {
		d.windowClosed = true
	}
}

// MountSucceeded records a successful mass-storage mount. If the
// startup window is still open, it sets the "connected at startup"
// flag.
func (d *Detector) MountSucceeded(now Timestamp) {
	d.Tick(now)
	if !d.windowClosed {
		d.connected.Store(true)
	}
}

// Disconnected clears the flag; a one-click print is only valid for
// the drive that was present when the window closed.
func (d *Detector) Disconnected() {
	d.connected.Store(false)
}

// ConnectedAtStartup reports whether a drive was mounted within the
// startup window and hasn't disconnected since.
func (d *Detector) ConnectedAtStartup() bool {
	return d.connected.Load()
}
