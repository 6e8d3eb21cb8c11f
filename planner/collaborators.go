package planner

// Printer is the printer control collaborator: a black box supplying
// state and accepting commands. The Planner queries and commands the
// printer only through this interface; it never owns printer state.
type Printer interface {
	InfoFingerprint() Hash
	FilesHash() Hash
	IsPrinting() bool

	JobControl(op JobControlOp) bool
	StartPrint(path string) bool
	PathExists(path string) bool

	// SetReady may fail only when ready=true; cancelling ready can't fail.
	SetReady(ready bool) bool

	// Config returns the current connection config. If resetChanged is
	// false, the "changed since last fetch" flag is left untouched.
	Config(resetChanged bool) (cfg Config, changed bool)

	// PrinterInfo returns the fingerprint bytes used for download
	// authentication.
	PrinterInfo() PrinterInfo
}

// JobControlOp identifies a Pause/Resume/Stop request.
type JobControlOp int

const (
	JobPause JobControlOp = iota + 1
	JobResume
	JobStop
)

// Config is the printer's view of its cloud connection.
type Config struct {
	Host  string
	Port  uint16
	Token string
	TLS   bool
}

// PrinterInfo carries the fingerprint used to authenticate downloads.
type PrinterInfo struct {
	Fingerprint []byte
}

// Downloader starts a file transfer. It is the sole entry point for
// StartConnectDownload.
type Downloader interface {
	StartConnectDownload(host string, port uint16, urlPath, destPath, token string, fingerprint []byte, printerRef Printer) DownloadResult
}

// DownloadResultKind tags the DownloadResult variant.
type DownloadResultKind int

const (
	DownloadStarted DownloadResultKind = iota + 1
	DownloadNoTransferSlot
	DownloadAlreadyExists
	DownloadRefusedRequest
	DownloadStorageError
)

// DownloadResult is the tagged outcome of Downloader.StartConnectDownload.
type DownloadResult struct {
	Kind       DownloadResultKind
	TransferId TransferId // set only for DownloadStarted
	Message    string     // set only for DownloadStorageError
}

// TransferOutcome is the terminal state of a past transfer, as
// remembered by the Monitor's bounded history.
type TransferOutcome int

const (
	OutcomeFinished TransferOutcome = iota + 1
	OutcomeError
	OutcomeStopped
)

// Monitor is a read-only view of the currently active transfer and,
// for transfers within a bounded history, their terminal outcome.
type Monitor interface {
	CurrentId() (TransferId, bool)
	Outcome(id TransferId) (TransferOutcome, bool)
}
