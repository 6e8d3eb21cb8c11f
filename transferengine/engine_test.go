package transferengine

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"printerconnect/planner"
)

func mustTempDir(t *testing.T) string {
	dir, err := os.MkdirTemp("", "transferengine")
	if err != nil {
		t.Fatalf("mkdtemp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

func waitForOutcome(t *testing.T, e *Engine, id planner.TransferId) planner.TransferOutcome {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if outcome, ok := e.Outcome(id); ok {
			return outcome
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("transfer %d never reached a terminal outcome", id)
	return 0
}

// StartConnectDownload always dials https, which a plain httptest
// server cannot answer, so these tests exercise the slot/history
// bookkeeping and file-placement logic directly rather than going over
// HTTP; the fetch path itself is covered by the tests below that call
// fetch() against a plain-HTTP server.
func TestStartRejectsWhenSlotBusy(t *testing.T) {
	e := New(mustTempDir(t), time.Second, 4)
	e.current = &activeTransfer{id: 1}

	result := e.StartConnectDownload("example.com", 443, "/p/teams/1/files/abc/raw", "job.gcode", "tok", nil, nil)
	if result.Kind != planner.DownloadNoTransferSlot {
		t.Errorf("Kind = %v, want DownloadNoTransferSlot", result.Kind)
	}
}

func TestStartRejectsWhenFileExists(t *testing.T) {
	dir := mustTempDir(t)
	if err := os.WriteFile(dir+"/job.gcode", []byte("x"), 0644); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	e := New(dir, time.Second, 4)

	result := e.StartConnectDownload("example.com", 443, "/p/teams/1/files/abc/raw", "job.gcode", "tok", nil, nil)
	if result.Kind != planner.DownloadAlreadyExists {
		t.Errorf("Kind = %v, want DownloadAlreadyExists", result.Kind)
	}
}

func TestCurrentIdAndOutcomeLifecycle(t *testing.T) {
	e := New(mustTempDir(t), time.Second, 4)

	if _, ok := e.CurrentId(); ok {
		t.Fatalf("expected no current transfer before any start")
	}

	e.mu.Lock()
	e.nextID = 5
	e.current = &activeTransfer{id: 5, cancel: func() {}}
	e.mu.Unlock()

	id, ok := e.CurrentId()
	if !ok || id != 5 {
		t.Fatalf("CurrentId() = (%d, %v), want (5, true)", id, ok)
	}

	e.finish(5, planner.OutcomeFinished)

	// finish must not free the slot: DownloadDone's precondition needs
	// CurrentId to still report the transfer as current at this point.
	id, ok = e.CurrentId()
	if !ok || id != 5 {
		t.Errorf("CurrentId() after finish = (%d, %v), want (5, true)", id, ok)
	}
	outcome, ok := e.Outcome(5)
	if !ok || outcome != planner.OutcomeFinished {
		t.Errorf("Outcome(5) = (%v, %v), want (OutcomeFinished, true)", outcome, ok)
	}

	// A second start must still be rejected while the finished slot is
	// unreleased...
	result := e.StartConnectDownload("example.com", 443, "/p/teams/1/files/abc/raw", "job2.gcode", "tok", nil, nil)
	if result.Kind != planner.DownloadNoTransferSlot {
		t.Fatalf("Kind = %v, want DownloadNoTransferSlot before Release", result.Kind)
	}

	e.Release(5)
	if _, ok := e.CurrentId(); ok {
		t.Errorf("expected no current transfer after Release")
	}

	// ...and freed once Release runs.
	result = e.StartConnectDownload("example.com", 443, "/p/teams/1/files/abc/raw", "job2.gcode", "tok", nil, nil)
	if result.Kind != planner.DownloadStarted {
		t.Fatalf("Kind = %v, want DownloadStarted after Release", result.Kind)
	}
	e.mu.Lock()
	e.current.cancel()
	e.mu.Unlock()
	waitForOutcome(t, e, result.TransferId)
}

func TestHistoryIsBounded(t *testing.T) {
	e := New(mustTempDir(t), time.Second, 2)
	e.finish(1, planner.OutcomeFinished)
	e.finish(2, planner.OutcomeError)
	e.finish(3, planner.OutcomeStopped)

	if _, ok := e.Outcome(1); ok {
		t.Errorf("transfer 1 should have been evicted from a history of size 2")
	}
	if outcome, ok := e.Outcome(2); !ok || outcome != planner.OutcomeError {
		t.Errorf("Outcome(2) = (%v, %v), want (OutcomeError, true)", outcome, ok)
	}
	if outcome, ok := e.Outcome(3); !ok || outcome != planner.OutcomeStopped {
		t.Errorf("Outcome(3) = (%v, %v), want (OutcomeStopped, true)", outcome, ok)
	}
}

// TestFetchAgainstLocalServer exercises the real fetch path against a
// plain-HTTP test server by calling fetch() directly (the internal
// helper used by run()), since StartConnectDownload hardcodes https.
func TestFetchAgainstLocalServer(t *testing.T) {
	body := strings.Repeat("gcode line\n", 200)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, body)
	}))
	defer srv.Close()

	dir := mustTempDir(t)
	e := New(dir, 2*time.Second, 4)
	target := dir + "/job.gcode"

	outcome := e.fetch(t.Context(), 1, srv.URL, "", nil, target)
	if outcome != planner.OutcomeFinished {
		t.Fatalf("fetch outcome = %v, want OutcomeFinished", outcome)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read downloaded file: %v", err)
	}
	if string(data) != body {
		t.Errorf("downloaded content mismatch: got %d bytes, want %d", len(data), len(body))
	}
}

func TestStartConnectDownloadStripsUSBPrefix(t *testing.T) {
	dir := mustTempDir(t)
	e := New(dir, time.Second, 4)

	result := e.StartConnectDownload("example.com", 443, "/p/teams/1/files/abc/raw", "/usb/sub/job.gcode", "tok", nil, nil)
	if result.Kind != planner.DownloadStarted {
		t.Fatalf("Kind = %v, want DownloadStarted", result.Kind)
	}

	e.mu.Lock()
	id := e.current.id
	e.current.cancel()
	e.mu.Unlock()
	waitForOutcome(t, e, id)

	if _, err := os.Stat(dir + "/sub"); err != nil {
		t.Errorf("expected destDir/sub created without duplicating the usb prefix, got: %v", err)
	}
}

func TestFetchReportsErrorOnNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	dir := mustTempDir(t)
	e := New(dir, 2*time.Second, 4)

	outcome := e.fetch(t.Context(), 1, srv.URL, "", nil, dir+"/job.gcode")
	if outcome != planner.OutcomeError {
		t.Fatalf("fetch outcome = %v, want OutcomeError", outcome)
	}
}
