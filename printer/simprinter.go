// Package printer provides planner.Printer and a reference in-process
// implementation, SimPrinter, standing in for a real firmware link.
package printer

import (
	"crypto/sha256"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"printerconnect/planner"
)

// SimPrinter is an in-memory stand-in for the printer's firmware: a
// file listing, a current job, and a connection config, all guarded
// by one mutex since the Planner only ever calls it from its own
// single logical task but other goroutines (the web UI, the transfer
// engine) may also read/write printer state concurrently.
type SimPrinter struct {
	mu sync.Mutex

	files map[string][]byte // path -> contents, path always starts with "/usb"

	printing     bool
	currentJob   string
	ready        bool

	cfg        planner.Config
	cfgChanged bool

	fingerprint []byte
}

// New creates a SimPrinter seeded with a connection config and a
// printer fingerprint (normally the device serial/certificate hash).
func New(cfg planner.Config, fingerprint []byte) *SimPrinter {
	return &SimPrinter{
		files:       make(map[string][]byte),
		cfg:         cfg,
		fingerprint: fingerprint,
	}
}

// PutFile seeds or updates a file, as if placed on USB storage. The
// change shows up in the next FilesHash poll.
func (p *SimPrinter) PutFile(path string, contents []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.files[path] = contents
}

// RemoveFile deletes a file, e.g. after a print finishes consuming it.
func (p *SimPrinter) RemoveFile(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.files, path)
}

func (p *SimPrinter) InfoFingerprint() planner.Hash {
	p.mu.Lock()
	defer p.mu.Unlock()
	h := sha256.New()
	fmt.Fprintf(h, "printing=%v,job=%s,ready=%v,cfg=%+v", p.printing, p.currentJob, p.ready, p.cfg)
	var out planner.Hash
	copy(out[:], h.Sum(nil))
	return out
}

func (p *SimPrinter) FilesHash() planner.Hash {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.filesHashLocked()
}

func (p *SimPrinter) filesHashLocked() planner.Hash {
	names := make([]string, 0, len(p.files))
	for name := range p.files {
		names = append(names, name)
	}
	sort.Strings(names)

	h := sha256.New()
	for _, name := range names {
		fmt.Fprintf(h, "%s:%x;", name, sha256.Sum256(p.files[name]))
	}
	var out planner.Hash
	copy(out[:], h.Sum(nil))
	return out
}

func (p *SimPrinter) IsPrinting() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.printing
}

// CurrentJob returns the path of the file currently printing, or ""
// if idle. Used by the driver loop to populate telemetry.
func (p *SimPrinter) CurrentJob() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentJob
}

func (p *SimPrinter) JobControl(op planner.JobControlOp) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch op {
	case planner.JobPause:
		if !p.printing {
			return false
		}
		// Pausing keeps printing=true; a real firmware link would
		// track a distinct paused sub-state, omitted here since
		// nothing in this repo reads it back.
		return true
	case planner.JobResume:
		if !p.printing {
			return false
		}
		return true
	case planner.JobStop:
		if !p.printing {
			return false
		}
		p.printing = false
		p.currentJob = ""
		return true
	default:
		return false
	}
}

func (p *SimPrinter) StartPrint(path string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.printing {
		return false
	}
	if _, ok := p.files[path]; !ok {
		return false
	}
	p.printing = true
	p.currentJob = path
	return true
}

func (p *SimPrinter) PathExists(path string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.files[path]
	return ok
}

func (p *SimPrinter) SetReady(ready bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ready && p.printing {
		return false
	}
	p.ready = ready
	return true
}

func (p *SimPrinter) Config(resetChanged bool) (planner.Config, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	changed := p.cfgChanged
	if resetChanged {
		p.cfgChanged = false
	}
	return p.cfg, changed
}

// SetConfig updates the connection config and marks it changed — used
// by the web UI's force-reconnect and connection-edit handlers.
func (p *SimPrinter) SetConfig(cfg planner.Config) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cfg = cfg
	p.cfgChanged = true
}

func (p *SimPrinter) PrinterInfo() planner.PrinterInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	return planner.PrinterInfo{Fingerprint: p.fingerprint}
}

// Files returns a sorted snapshot of file paths.
func (p *SimPrinter) Files() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, 0, len(p.files))
	for name := range p.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NormalizeUSBPath joins a relative path under /usb the way real USB
// storage would present it; a path already under /usb is returned
// cleaned but otherwise unchanged.
func NormalizeUSBPath(relPath string) string {
	clean := filepath.ToSlash(filepath.Clean("/" + relPath))
	if !strings.HasPrefix(clean, "/usb") {
		clean = "/usb" + clean
	}
	return clean
}
