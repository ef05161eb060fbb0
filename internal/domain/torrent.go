package domain

import "time"

// TorrentState is the canonical, application-facing state of a torrent.
type TorrentState string

const (
	TorrentStateStopped             TorrentState = "stopped"
	TorrentStatePaused              TorrentState = "paused"
	TorrentStateError               TorrentState = "error"
	TorrentStateFinished            TorrentState = "finished"
	TorrentStateSeeding             TorrentState = "seeding"
	TorrentStateQueuedForChecking   TorrentState = "queued_for_checking"
	TorrentStateChecking            TorrentState = "checking"
	TorrentStateDownloadingMetadata TorrentState = "downloading_metadata"
	TorrentStateDownloading         TorrentState = "downloading"
	TorrentStateAllocating          TorrentState = "allocating"
	TorrentStateUnknown             TorrentState = "unknown"
)

// Priority is a per-file download priority.
type Priority int

const (
	PriorityIgnore Priority = 0
	PriorityLow    Priority = 1
	PriorityNormal Priority = 4
	PriorityHigh   Priority = 7
)

// Valid reports whether p is one of the known priority levels.
func (p Priority) Valid() bool {
	switch p {
	case PriorityIgnore, PriorityLow, PriorityNormal, PriorityHigh:
		return true
	}
	return false
}

// Torrent is the application record of a managed torrent. ID is the hex info hash.
type Torrent struct {
	ID              string
	Name            string
	MagnetURI       string
	DownloadPath    string
	TorrentFilePath string
	State           TorrentState
	Progress        int
	DownloadSpeed   int64
	UploadSpeed     int64
	TotalSize       int64
	TotalDone       int64
	ShareRatio      float64
	ETA             int64
	Peers           int
	Seeds           int
	Paused          bool
	Sequential      bool
	ErrorMessage    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	FinishedAt      *time.Time
	Files           []TorrentFile
}

// TorrentFile captures an individual file within a torrent.
type TorrentFile struct {
	ID        int64
	TorrentID string
	Path      string
	Size      int64
	Received  int64
	Priority  Priority
}
