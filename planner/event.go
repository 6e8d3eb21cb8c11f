package planner

// EventType identifies the kind of outbound event the Planner wants
// to send to the server.
type EventType int

const (
	EventInfo EventType = iota + 1
	EventAccepted
	EventRejected
	EventJobInfo
	EventFileInfo
	EventTransferInfo
	EventFinished
	EventFailed
	EventTransferStopped
	EventTransferAborted
	EventTransferFinished
)

func (t EventType) String() string {
	switch t {
	case EventInfo:
		return "INFO"
	case EventAccepted:
		return "ACCEPTED"
	case EventRejected:
		return "REJECTED"
	case EventJobInfo:
		return "JOB_INFO"
	case EventFileInfo:
		return "FILE_INFO"
	case EventTransferInfo:
		return "TRANSFER_INFO"
	case EventFinished:
		return "FINISHED"
	case EventFailed:
		return "FAILED"
	case EventTransferStopped:
		return "TRANSFER_STOPPED"
	case EventTransferAborted:
		return "TRANSFER_ABORTED"
	case EventTransferFinished:
		return "TRANSFER_FINISHED"
	default:
		return "???"
	}
}

// Event is a message the printer wants to send to the server. Only
// the fields relevant to Type are meaningful; this is a single struct
// with an explicit Type tag rather than a class per variant.
type Event struct {
	Type EventType

	CommandId  *CommandId
	JobId      *uint32
	TransferId *TransferId
	Path       string
	Reason     string

	InfoRescanFiles bool

	// StartCmdId is the id of the command that began the transfer this
	// terminal transfer event describes.
	StartCmdId *CommandId
}

// Stable ASCII reason strings, part of the external wire contract.
const (
	ReasonUnknownCommand       = "Unknown command"
	ReasonGcodeTooLarge        = "GCode too large"
	ReasonProcessingOther      = "Processing other command"
	ReasonNoPrintToPause       = "No print to pause"
	ReasonNoPausedPrintResume  = "No paused print to resume"
	ReasonNoPrintToStop        = "No print to stop"
	ReasonForbiddenPath        = "Forbidden path"
	ReasonFileNotFound         = "File not found"
	ReasonCantPrintNow         = "Can't print now"
	ReasonCantSetReadyNow      = "Can't set ready now"
	ReasonSwitchingConfig      = "Switching config"
	ReasonEncryptionDownloads  = "Encryption of downloads not supported"
	ReasonTransferInProgress   = "Another transfer in progress"
	ReasonFileAlreadyExists    = "File already exists"
	ReasonFailedToDownload     = "Failed to download"
)
