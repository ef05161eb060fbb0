package engine

// Event is one engine notification about a torrent. The set is closed: only
// the types in this file implement it.
type Event interface {
	event()
}

type BlockFinished struct {
	Piece int
}

type StateChanged struct {
	Prev ProtocolState
	Curr ProtocolState
}

// MetadataReceived is emitted once when a magnet's info dictionary arrives.
type MetadataReceived struct{}

type TorrentFinished struct{}

type TorrentRemoved struct{}

type TorrentPaused struct{}

type TorrentResumed struct{}

type Stats struct {
	DownloadRate int64
	UploadRate   int64
}

type ResumeDataReady struct {
	Data []byte
}

type StorageMoved struct {
	Path string
}

type StorageMoveFailed struct {
	Path string
	Err  error
}

func (BlockFinished) event()     {}
func (StateChanged) event()      {}
func (MetadataReceived) event()  {}
func (TorrentFinished) event()   {}
func (TorrentRemoved) event()    {}
func (TorrentPaused) event()     {}
func (TorrentResumed) event()    {}
func (Stats) event()             {}
func (ResumeDataReady) event()   {}
func (StorageMoved) event()      {}
func (StorageMoveFailed) event() {}

// EventName returns a stable label for logs and metrics.
func EventName(ev Event) string {
	switch ev.(type) {
	case BlockFinished:
		return "block_finished"
	case StateChanged:
		return "state_changed"
	case MetadataReceived:
		return "metadata_received"
	case TorrentFinished:
		return "torrent_finished"
	case TorrentRemoved:
		return "torrent_removed"
	case TorrentPaused:
		return "torrent_paused"
	case TorrentResumed:
		return "torrent_resumed"
	case Stats:
		return "stats"
	case ResumeDataReady:
		return "resume_data_ready"
	case StorageMoved:
		return "storage_moved"
	case StorageMoveFailed:
		return "storage_move_failed"
	default:
		return "unknown"
	}
}
