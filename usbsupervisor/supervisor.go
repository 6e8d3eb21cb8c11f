// Package usbsupervisor implements the USB host power-cycle recovery
// policy: when the mass-storage worker hits an I/O
// error, or the host controller reports a disabled port, the
// supervisor power-cycles the USB host stack and, if a print had to
// be paused for it, resumes it once the drive reappears.
package usbsupervisor

import (
	"sync"
	"sync/atomic"
	"time"
)

// Phase is the supervisor's three-state cycle.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhasePowerOff
	PhasePowerOn
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePowerOff:
		return "power_off"
	case PhasePowerOn:
		return "power_on"
	default:
		return "???"
	}
}

const (
	restartDelay  = 10 * time.Millisecond
	powerOffDelay = 150 * time.Millisecond
	powerOnDelay  = 5000 * time.Millisecond
)

// Host is the USB host stack the supervisor power-cycles.
type Host interface {
	Stop()
	Start()
}

// JobController is the subset of printer control the supervisor
// needs when a paused print can be resumed, or must be reported as
// stuck, once the drive comes back.
type JobController interface {
	ResumePrint()
	RaiseUSBFlashDiskWarning()
}

// Supervisor coordinates triggers arriving from three different
// contexts — an interrupt handler (PortDisabled), a worker goroutine
// (IOError), and the main printer loop (MediaStateError, MSCActive) —
// with a single re-armable timer. phase and printingPaused are
// atomics; the timer and the pending trigger reason are guarded by a
// mutex that is only held for a few statements at a time.
type Supervisor struct {
	host Host
	jobs JobController

	phase          atomic.Int32
	printingPaused atomic.Bool

	mu      sync.Mutex
	timer   *time.Timer
	trigger string

	observer func(from, to Phase, reason string)
}

// New creates a Supervisor in PhaseIdle. The timer is created but not
// armed until the first trigger fires.
func New(host Host, jobs JobController) *Supervisor {
	s := &Supervisor{host: host, jobs: jobs}
	s.timer = time.AfterFunc(time.Hour, s.onTimer)
	s.timer.Stop()
	return s
}

// SetObserver registers a callback invoked synchronously on every
// phase transition, from whichever goroutine drives it (the timer
// goroutine for the idle/power_off/power_on cycle, the caller's own
// goroutine for MSCActive's short-circuit). Meant to be set once,
// right after New, before any trigger can fire — the callback itself
// must not block or call back into the Supervisor. Used to mirror
// transitions into a diagnostics log and an SSE stream.
func (s *Supervisor) SetObserver(fn func(from, to Phase, reason string)) {
	s.observer = fn
}

// Phase reports the supervisor's current phase.
func (s *Supervisor) Phase() Phase {
	return Phase(s.phase.Load())
}

// IOError is the trigger fired by the mass-storage worker when a
// read or write to the device fails.
func (s *Supervisor) IOError() {
	s.beginCycle("io_error")
}

// PortDisabled is the trigger fired from interrupt context when the
// host controller disables the port. It reads the phase atomically
// and, only when idle, records the reason and re-arms the timer under
// the briefly held mutex — no lock is held across an unbounded wait.
func (s *Supervisor) PortDisabled() {
	s.beginCycle("port_disabled")
}

func (s *Supervisor) beginCycle(reason string) {
	if Phase(s.phase.Load()) != PhaseIdle {
		return
	}
	s.mu.Lock()
	s.trigger = reason
	s.mu.Unlock()
	s.armTimer(restartDelay)
}

// MediaStateError is raised by the media layer when it observes that
// a storage error has paused the active print.
func (s *Supervisor) MediaStateError() {
	s.printingPaused.Store(true)
}

// MSCActive is raised once the mass-storage class reconnects. If a
// power cycle is in progress and waiting out the power-on window for
// a paused print, this short-circuits the wait and resumes printing
// immediately instead of waiting for the window to elapse.
func (s *Supervisor) MSCActive() {
	if Phase(s.phase.Load()) != PhasePowerOn || !s.printingPaused.Load() {
		return
	}
	s.printingPaused.Store(false)

	s.mu.Lock()
	s.timer.Stop()
	s.mu.Unlock()

	s.transition(PhasePowerOn, PhaseIdle, "msc_active")
	s.jobs.ResumePrint()
}

// transition stores the new phase and notifies the observer, if any.
func (s *Supervisor) transition(from, to Phase, reason string) {
	s.phase.Store(int32(to))
	if s.observer != nil {
		s.observer(from, to, reason)
	}
}

func (s *Supervisor) armTimer(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.timer.Stop() {
		select {
		case <-s.timer.C:
		default:
		}
	}
	s.timer.Reset(d)
}

func (s *Supervisor) onTimer() {
	switch Phase(s.phase.Load()) {
	case PhaseIdle:
		s.mu.Lock()
		reason := s.trigger
		s.trigger = ""
		s.mu.Unlock()
		s.transition(PhaseIdle, PhasePowerOff, reason)
		s.host.Stop()
		s.armTimer(powerOffDelay)

	case PhasePowerOff:
		s.transition(PhasePowerOff, PhasePowerOn, "")
		s.host.Start()
		s.armTimer(powerOnDelay)

	case PhasePowerOn:
		paused := s.printingPaused.Load()
		reason := ""
		if paused {
			reason = "paused_print_not_resumed"
		}
		s.transition(PhasePowerOn, PhaseIdle, reason)
		if paused {
			s.jobs.RaiseUSBFlashDiskWarning()
		}
	}
}
