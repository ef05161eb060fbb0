// Package engine describes the narrow capability surface the download
// controller needs from a BitTorrent engine.
package engine

import (
	"errors"
	"time"

	"torrentctl/internal/domain"
)

var (
	// ErrInvalidHandle is returned by every Handle method once the engine
	// has released the underlying torrent.
	ErrInvalidHandle = errors.New("invalid torrent handle")
	// ErrNoMetadata is returned by queries that need the torrent info dictionary.
	ErrNoMetadata = errors.New("torrent metadata not available")
	// ErrUnsupported is returned for commands the engine cannot perform.
	ErrUnsupported = errors.New("operation not supported by engine")
)

// ProtocolState is the engine's native per-torrent state.
type ProtocolState int

const (
	ProtocolUnknown ProtocolState = iota
	ProtocolQueuedForChecking
	ProtocolCheckingFiles
	ProtocolDownloadingMetadata
	ProtocolDownloading
	ProtocolFinished
	ProtocolSeeding
	ProtocolAllocating
	ProtocolCheckingResumeData
)

func (s ProtocolState) String() string {
	switch s {
	case ProtocolQueuedForChecking:
		return "queued_for_checking"
	case ProtocolCheckingFiles:
		return "checking_files"
	case ProtocolDownloadingMetadata:
		return "downloading_metadata"
	case ProtocolDownloading:
		return "downloading"
	case ProtocolFinished:
		return "finished"
	case ProtocolSeeding:
		return "seeding"
	case ProtocolAllocating:
		return "allocating"
	case ProtocolCheckingResumeData:
		return "checking_resume_data"
	default:
		return "unknown"
	}
}

// Status is a point-in-time snapshot of one torrent.
type Status struct {
	State ProtocolState

	// Progress is in [0, 1].
	Progress     float64
	DownloadRate int64
	UploadRate   int64

	TotalDone            int64
	TotalWanted          int64
	TotalPayloadDownload int64
	TotalPayloadUpload   int64
	AllTimeDownload      int64
	AllTimeUpload        int64

	NumPeers  int
	NumSeeds  int
	ListPeers int
	ListSeeds int

	Paused bool
	// AutoManaged is false once the torrent was paused by a user command
	// rather than by engine queueing.
	AutoManaged bool
	Finished    bool
	Seeding     bool
	Sequential  bool

	Pieces    []bool
	NumPieces int

	ActiveTime  time.Duration
	SeedingTime time.Duration
}

// File describes one file of the torrent as laid out in the info dictionary.
// Path is relative to the download directory.
type File struct {
	Path string
	Size int64
}

// Tracker is an announce entry.
type Tracker struct {
	URL  string
	Tier int
}

// Peer is a connected peer.
type Peer struct {
	Addr   string
	Client string
}

// MovePolicy decides what a storage move does with files already present at
// the destination.
type MovePolicy int

const (
	AlwaysReplace MovePolicy = iota
	FailIfExists
	DontReplace
)

// Handle is the engine's per-torrent reference. Validity can drop at any
// time; implementations check it once per call and report ErrInvalidHandle.
type Handle interface {
	Valid() bool
	InfoHash() string
	HasMetadata() bool
	Name() string

	Status() (Status, error)
	Files() ([]File, error)
	TotalSize() int64
	// FileProgress reports bytes received per file, counted in whole pieces.
	FileProgress() ([]int64, error)
	Trackers() ([]Tracker, error)
	Peers() ([]Peer, error)
	DownloadLimit() int
	UploadLimit() int
	MakeMagnet() (string, error)

	SetAutoManaged(managed bool) error
	Pause() error
	Resume() error
	ForceRecheck() error
	ForceReannounce() error
	ScrapeTracker() error
	MoveStorage(path string, policy MovePolicy) error
	PrioritizeFiles(priorities []domain.Priority) error
	SetDownloadLimit(limit int) error
	SetUploadLimit(limit int) error
	ReplaceTrackers(urls []string) error
	AddTrackers(urls []string) error
	SetSequentialDownload(sequential bool) error
	// SaveResumeData asks the engine to produce a ResumeDataReady event.
	SaveResumeData() error
}

// Session is the engine-wide collaborator.
type Session interface {
	Running() bool
	Paused() bool
	Remove(h Handle, withFiles bool) error
	// Subscribe registers fn for events of one torrent. Events are delivered
	// in emission order from the engine's dispatch goroutine. The returned
	// func unsubscribes.
	Subscribe(infoHash string, fn func(Event)) (unsubscribe func())
}

// PartsFileName is the name of the auxiliary partial-piece artifact the
// engine keeps next to the torrent data.
func PartsFileName(infoHash string) string {
	return "." + infoHash + ".parts"
}
