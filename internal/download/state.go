package download

import (
	"torrentctl/internal/domain"
	"torrentctl/internal/engine"
)

// StateInputs is everything DeriveState looks at.
type StateInputs struct {
	EngineRunning bool
	SessionPaused bool
	// ControllerPaused is set by Pause and cleared by Resume.
	ControllerPaused bool
	HandleValid      bool
	Status           engine.Status
}

// HandlePaused reports a pause issued on the handle itself, as opposed to
// the engine parking an auto-managed torrent.
func (in StateInputs) HandlePaused() bool {
	return in.Status.Paused && !in.Status.AutoManaged
}

// DeriveState maps engine and controller observations to one canonical
// state. The first matching rule wins.
func DeriveState(in StateInputs) domain.TorrentState {
	if !in.EngineRunning {
		return domain.TorrentStateStopped
	}
	if in.ControllerPaused || in.SessionPaused || in.HandlePaused() {
		return domain.TorrentStatePaused
	}
	if !in.HandleValid {
		return domain.TorrentStateError
	}

	st := in.Status
	switch {
	case st.Paused && st.Finished:
		return domain.TorrentStateFinished
	case st.Paused:
		return domain.TorrentStatePaused
	case st.Finished:
		return domain.TorrentStateSeeding
	}

	return mapProtocolState(st.State)
}

func mapProtocolState(s engine.ProtocolState) domain.TorrentState {
	switch s {
	case engine.ProtocolQueuedForChecking:
		return domain.TorrentStateQueuedForChecking
	case engine.ProtocolCheckingFiles, engine.ProtocolCheckingResumeData:
		return domain.TorrentStateChecking
	case engine.ProtocolDownloadingMetadata:
		return domain.TorrentStateDownloadingMetadata
	case engine.ProtocolDownloading:
		return domain.TorrentStateDownloading
	case engine.ProtocolFinished:
		return domain.TorrentStateFinished
	case engine.ProtocolSeeding:
		return domain.TorrentStateSeeding
	case engine.ProtocolAllocating:
		return domain.TorrentStateAllocating
	default:
		return domain.TorrentStateUnknown
	}
}
