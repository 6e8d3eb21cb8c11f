package hotplug

import "testing"

func TestMountWithinWindowSetsFlag(t *testing.T) {
	d := New(1000)
	d.MountSucceeded(1500)
	if !d.ConnectedAtStartup() {
		t.Errorf("expected connected-at-startup flag set for a mount inside the window")
	}
}

func TestMountAfterWindowDoesNotSetFlag(t *testing.T) {
	d := New(1000)
	d.MountSucceeded(4001)
	if d.ConnectedAtStartup() {
		t.Errorf("mount after the 3000ms window must not set the flag")
	}
}

func TestMountExactlyAtWindowEdgeDoesNotSetFlag(t *testing.T) {
	d := New(1000)
	d.MountSucceeded(4000) // elapsed == startupWindow, window closed
	if d.ConnectedAtStartup() {
		t.Errorf("mount at the exact window edge must not set the flag")
	}
}

func TestDisconnectClearsFlag(t *testing.T) {
	d := New(0)
	d.MountSucceeded(100)
	if !d.ConnectedAtStartup() {
		t.Fatalf("setup: expected flag set")
	}
	d.Disconnected()
	if d.ConnectedAtStartup() {
		t.Errorf("disconnect must clear the flag")
	}
}

func TestTickClosesWindowEvenWithoutMount(t *testing.T) {
	d := New(0)
	d.Tick(5000)
	d.MountSucceeded(5001)
	if d.ConnectedAtStartup() {
		t.Errorf("window closed by an earlier Tick must stay closed for a later mount")
	}
}

func TestWindowSurvivesCounterWrap(t *testing.T) {
	// bootTime near the top of the range; "now" has wrapped around to
	// a small value. Unsigned subtraction still yields the correct
	// small elapsed time.
	const maxUint64 = ^uint64(0)
	d := New(maxUint64 - 500)
	d.MountSucceeded(500) // elapsed = 1001, wrapped but still < 3000
	if !d.ConnectedAtStartup() {
		t.Errorf("expected flag set: elapsed time across the wrap is within the window")
	}
}
