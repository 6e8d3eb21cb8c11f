// Package transferengine implements planner.Downloader and
// planner.Monitor over plain HTTP: a single transfer slot, a bounded
// history of terminal outcomes, and byte-progress logging.
package transferengine

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"printerconnect/planner"
)

// Engine is the printer's file-fetching collaborator. At most one
// transfer runs at a time; outcomes for the last historySize
// transfers are retained so the Planner can look one up after the
// fact — a lookup past that window reports "no outcome on record",
// which the Planner treats as if the transfer never happened.
type Engine struct {
	mu sync.Mutex

	destDir        string
	requestTimeout time.Duration
	historySize    int

	client *http.Client

	nextID  planner.TransferId
	current *activeTransfer
	history []historyEntry
}

type activeTransfer struct {
	id       planner.TransferId
	cancel   context.CancelFunc
	finished bool
}

type historyEntry struct {
	id      planner.TransferId
	outcome planner.TransferOutcome
}

// New creates a transfer engine writing completed downloads under
// destDir.
func New(destDir string, requestTimeout time.Duration, historySize int) *Engine {
	return &Engine{
		destDir:        destDir,
		requestTimeout: requestTimeout,
		historySize:    historySize,
		client:         &http.Client{Timeout: 0}, // per-request context carries the deadline
	}
}

// StartConnectDownload implements planner.Downloader.
func (e *Engine) StartConnectDownload(host string, port uint16, urlPath, destPath, token string, fingerprint []byte, printerRef planner.Printer) planner.DownloadResult {
	e.mu.Lock()
	if e.current != nil {
		e.mu.Unlock()
		return planner.DownloadResult{Kind: planner.DownloadNoTransferSlot}
	}

	target := filepath.Join(e.destDir, relativeToDestDir(destPath))
	if _, err := os.Stat(target); err == nil {
		e.mu.Unlock()
		return planner.DownloadResult{Kind: planner.DownloadAlreadyExists}
	}

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		e.mu.Unlock()
		return planner.DownloadResult{Kind: planner.DownloadStorageError, Message: err.Error()}
	}

	e.nextID++
	id := e.nextID
	ctx, cancel := context.WithCancel(context.Background())
	e.current = &activeTransfer{id: id, cancel: cancel}
	e.mu.Unlock()

	url := fmt.Sprintf("https://%s:%d%s", host, port, urlPath)
	if _, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil); err != nil {
		cancel()
		e.mu.Lock()
		e.current = nil
		e.mu.Unlock()
		return planner.DownloadResult{Kind: planner.DownloadRefusedRequest}
	}

	go e.run(ctx, id, url, token, fingerprint, target)

	return planner.DownloadResult{Kind: planner.DownloadStarted, TransferId: id}
}

// relativeToDestDir strips the "/usb" prefix the printer side attaches
// to every path (printer.NormalizeUSBPath's inverse) so destDir isn't
// duplicated when joining — destDir already *is* the printer's /usb
// mount point on this host.
func relativeToDestDir(destPath string) string {
	clean := filepath.FromSlash(destPath)
	clean = strings.TrimPrefix(clean, string(filepath.Separator))
	clean = strings.TrimPrefix(clean, "usb"+string(filepath.Separator))
	if clean == "usb" {
		clean = ""
	}
	return clean
}

func addAuthHeaders(req *http.Request, token string, fingerprint []byte) {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if len(fingerprint) > 0 {
		req.Header.Set("X-Printer-Fingerprint", fmt.Sprintf("%x", fingerprint))
	}
}

func (e *Engine) run(ctx context.Context, id planner.TransferId, url, token string, fingerprint []byte, target string) {
	ctx, cancel := context.WithTimeout(ctx, e.requestTimeout)
	defer cancel()

	outcome := e.fetch(ctx, id, url, token, fingerprint, target)
	e.finish(id, outcome)
}

func (e *Engine) fetch(ctx context.Context, id planner.TransferId, url, token string, fingerprint []byte, target string) planner.TransferOutcome {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		log.Printf("transferengine: build request for transfer %d: %v", id, err)
		return planner.OutcomeError
	}
	addAuthHeaders(req, token, fingerprint)

	resp, err := e.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return planner.OutcomeStopped
		}
		log.Printf("transferengine: fetch transfer %d: %v", id, err)
		return planner.OutcomeError
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("transferengine: transfer %d: server returned %d", id, resp.StatusCode)
		return planner.OutcomeError
	}

	tmp := target + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		log.Printf("transferengine: create %s: %v", tmp, err)
		return planner.OutcomeError
	}

	written, copyErr := io.Copy(f, resp.Body)
	closeErr := f.Close()

	if copyErr != nil {
		os.Remove(tmp)
		if ctx.Err() != nil {
			return planner.OutcomeStopped
		}
		log.Printf("transferengine: transfer %d: copy failed after %s: %v", id, humanize.Bytes(uint64(written)), copyErr)
		return planner.OutcomeError
	}
	if closeErr != nil {
		os.Remove(tmp)
		log.Printf("transferengine: transfer %d: close %s: %v", id, tmp, closeErr)
		return planner.OutcomeError
	}

	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		log.Printf("transferengine: transfer %d: rename into place: %v", id, err)
		return planner.OutcomeError
	}

	log.Printf("transferengine: transfer %d finished, %s written to %s", id, humanize.Bytes(uint64(written)), target)
	return planner.OutcomeFinished
}

// finish records a transfer's terminal outcome. It does not free the
// slot: the Planner's DownloadDone still needs CurrentId to report this
// transfer as current when it runs, since that's the signal it uses to
// confirm the slot was still held at the moment it let go of the
// download. Release, called right after DownloadDone succeeds, frees it.
func (e *Engine) finish(id planner.TransferId, outcome planner.TransferOutcome) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current != nil && e.current.id == id {
		e.current.finished = true
	}

	e.history = append(e.history, historyEntry{id: id, outcome: outcome})
	if len(e.history) > e.historySize {
		e.history = e.history[len(e.history)-e.historySize:]
	}
}

// Release frees the transfer slot held by id, once the caller has
// confirmed (e.g. via Outcome) that the transfer finished and has
// handed the outcome to the Planner via DownloadDone. A no-op if id is
// not the current slot (already released or superseded), so it is
// always safe to call.
func (e *Engine) Release(id planner.TransferId) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current != nil && e.current.id == id {
		e.current = nil
	}
}

// Abort cancels the in-flight transfer, if any, producing
// OutcomeStopped once its goroutine observes the cancellation.
func (e *Engine) Abort() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current != nil {
		e.current.cancel()
	}
}

// CurrentId implements planner.Monitor. It keeps reporting a finished
// transfer's id as current until Release frees the slot, since the
// Planner's own edge-detection (and DownloadDone's precondition) both
// depend on the id not disappearing out from under them the instant
// the fetch goroutine returns.
func (e *Engine) CurrentId() (planner.TransferId, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return 0, false
	}
	return e.current.id, true
}

// Outcome implements planner.Monitor.
func (e *Engine) Outcome(id planner.TransferId) (planner.TransferOutcome, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := len(e.history) - 1; i >= 0; i-- {
		if e.history[i].id == id {
			return e.history[i].outcome, true
		}
	}
	return 0, false
}
