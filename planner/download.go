package planner

import "fmt"

// connectDownloadPathFmt is the URL path template the cloud exposes
// for fetching a team-scoped file by content hash.
const connectDownloadPathFmt = "/p/teams/%d/files/%s/raw"

// startConnectDownload starts a team-scoped file download. A download
// may only be started against the config the printer is currently
// configured for, and only over plaintext — both rejections happen
// before the Downloader is ever consulted.
func (p *Planner) startConnectDownload(id CommandId, req DownloadRequest) {
	cfg, changed := p.printer.Config(false)
	if changed {
		p.reject(id, ReasonSwitchingConfig)
		return
	}
	if cfg.TLS {
		p.reject(id, ReasonEncryptionDownloads)
		return
	}

	urlPath := fmt.Sprintf(connectDownloadPathFmt, req.Team, req.Hash)
	info := p.printer.PrinterInfo()

	result := p.downloader.StartConnectDownload(cfg.Host, cfg.Port, urlPath, req.Path, cfg.Token, info.Fingerprint, p.printer)

	switch result.Kind {
	case DownloadStarted:
		p.download = &DownloadHandle{TransferId: result.TransferId}
		cmdId := id
		p.transferStartCmd = &cmdId
		p.setPlannedEvent(Event{Type: EventFinished, CommandId: &id})

	case DownloadNoTransferSlot:
		p.reject(id, ReasonTransferInProgress)
	case DownloadAlreadyExists:
		p.reject(id, ReasonFileAlreadyExists)
	case DownloadRefusedRequest:
		p.reject(id, ReasonFailedToDownload)
	case DownloadStorageError:
		p.reject(id, result.Message)
	default:
		panic(fmt.Sprintf("planner: unhandled download result kind %d", result.Kind))
	}
}
