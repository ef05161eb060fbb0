package downloader

import (
	"torrentctl/internal/engine"
	"torrentctl/internal/engine/anacrolix"
)

// Engine is the session surface the manager drives: the controller's
// engine.Session plus adding torrents and session-wide pause.
type Engine interface {
	engine.Session
	AddMagnet(uri, dir string) (engine.Handle, error)
	AddTorrentFile(path, dir string) (engine.Handle, error)
	AddResumeData(blob []byte, fallbackDir string) (engine.Handle, error)
	PauseAll()
	ResumeAll()
	Close() error
}

// descriptorWriter is implemented by handles that can write their metainfo.
type descriptorWriter interface {
	WriteTorrentFile(path string) error
}

// resumeExporter is implemented by handles that can hand over a resume blob
// synchronously, which shutdown needs once event delivery has stopped.
type resumeExporter interface {
	ResumeData() ([]byte, error)
}

type anacrolixEngine struct {
	*anacrolix.Session
}

// NewAnacrolixEngine adapts an anacrolix session to Engine.
func NewAnacrolixEngine(s *anacrolix.Session) Engine {
	return anacrolixEngine{Session: s}
}

func (e anacrolixEngine) AddMagnet(uri, dir string) (engine.Handle, error) {
	h, err := e.Session.AddMagnet(uri, dir)
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (e anacrolixEngine) AddTorrentFile(path, dir string) (engine.Handle, error) {
	h, err := e.Session.AddTorrentFile(path, dir)
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (e anacrolixEngine) AddResumeData(blob []byte, fallbackDir string) (engine.Handle, error) {
	h, err := e.Session.AddResumeData(blob, fallbackDir)
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (e anacrolixEngine) PauseAll()  { e.Session.Pause() }
func (e anacrolixEngine) ResumeAll() { e.Session.Resume() }
