package download

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"torrentctl/internal/domain"
	"torrentctl/internal/engine"
)

type fakeHandle struct {
	mu         sync.Mutex
	valid      bool
	infoHash   string
	hasMeta    bool
	status     engine.Status
	files      []engine.File
	progress   []int64
	trackers   []engine.Tracker
	dlLimit    int
	ulLimit    int
	priorities []domain.Priority
	saves      int
	calls      []string
	moveErr    error
}

func newFakeHandle() *fakeHandle {
	return &fakeHandle{
		valid:    true,
		infoHash: "0123456789abcdef0123456789abcdef01234567",
		hasMeta:  true,
		status:   engine.Status{State: engine.ProtocolDownloading},
	}
}

func (h *fakeHandle) record(call string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.valid {
		return engine.ErrInvalidHandle
	}
	h.calls = append(h.calls, call)
	return nil
}

func (h *fakeHandle) setValid(v bool) {
	h.mu.Lock()
	h.valid = v
	h.mu.Unlock()
}

func (h *fakeHandle) setStatus(st engine.Status) {
	h.mu.Lock()
	h.status = st
	h.mu.Unlock()
}

func (h *fakeHandle) callLog() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.calls...)
}

func (h *fakeHandle) saveCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.saves
}

func (h *fakeHandle) Valid() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.valid
}

func (h *fakeHandle) InfoHash() string  { return h.infoHash }
func (h *fakeHandle) HasMetadata() bool { return h.hasMeta }
func (h *fakeHandle) Name() string      { return "fake" }

func (h *fakeHandle) Status() (engine.Status, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.valid {
		return engine.Status{}, engine.ErrInvalidHandle
	}
	return h.status, nil
}

func (h *fakeHandle) Files() ([]engine.File, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.valid {
		return nil, engine.ErrInvalidHandle
	}
	return h.files, nil
}

func (h *fakeHandle) TotalSize() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.valid {
		return 0
	}
	var total int64
	for _, f := range h.files {
		total += f.Size
	}
	return total
}

func (h *fakeHandle) FileProgress() ([]int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.valid {
		return nil, engine.ErrInvalidHandle
	}
	return h.progress, nil
}

func (h *fakeHandle) Trackers() ([]engine.Tracker, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.valid {
		return nil, engine.ErrInvalidHandle
	}
	return h.trackers, nil
}

func (h *fakeHandle) Peers() ([]engine.Peer, error) {
	if !h.Valid() {
		return nil, engine.ErrInvalidHandle
	}
	return []engine.Peer{{Addr: "10.0.0.1:6881"}}, nil
}

func (h *fakeHandle) DownloadLimit() int { return h.dlLimit }
func (h *fakeHandle) UploadLimit() int   { return h.ulLimit }

func (h *fakeHandle) MakeMagnet() (string, error) {
	if !h.Valid() {
		return "", engine.ErrInvalidHandle
	}
	return "magnet:?xt=urn:btih:" + h.infoHash, nil
}

func (h *fakeHandle) SetAutoManaged(managed bool) error {
	if managed {
		return h.record("auto_managed:on")
	}
	return h.record("auto_managed:off")
}

func (h *fakeHandle) Pause() error           { return h.record("pause") }
func (h *fakeHandle) Resume() error          { return h.record("resume") }
func (h *fakeHandle) ForceRecheck() error    { return h.record("recheck") }
func (h *fakeHandle) ForceReannounce() error { return h.record("reannounce") }
func (h *fakeHandle) ScrapeTracker() error   { return engine.ErrUnsupported }

func (h *fakeHandle) MoveStorage(path string, policy engine.MovePolicy) error {
	if err := h.record("move:" + path); err != nil {
		return err
	}
	return h.moveErr
}

func (h *fakeHandle) PrioritizeFiles(priorities []domain.Priority) error {
	if err := h.record("prioritize"); err != nil {
		return err
	}
	h.mu.Lock()
	h.priorities = append([]domain.Priority(nil), priorities...)
	h.mu.Unlock()
	return nil
}

func (h *fakeHandle) SetDownloadLimit(limit int) error {
	if err := h.record("download_limit"); err != nil {
		return err
	}
	h.dlLimit = limit
	return nil
}

func (h *fakeHandle) SetUploadLimit(limit int) error {
	if err := h.record("upload_limit"); err != nil {
		return err
	}
	h.ulLimit = limit
	return nil
}

func (h *fakeHandle) ReplaceTrackers(urls []string) error { return h.record("replace_trackers") }
func (h *fakeHandle) AddTrackers(urls []string) error     { return h.record("add_trackers") }

func (h *fakeHandle) SetSequentialDownload(sequential bool) error {
	return h.record("sequential")
}

func (h *fakeHandle) SaveResumeData() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.valid {
		return engine.ErrInvalidHandle
	}
	h.saves++
	return nil
}

type fakeSession struct {
	mu       sync.Mutex
	running  bool
	paused   bool
	subs     map[string]func(engine.Event)
	removals []bool
}

func newFakeSession() *fakeSession {
	return &fakeSession{running: true, subs: make(map[string]func(engine.Event))}
}

func (s *fakeSession) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *fakeSession) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

func (s *fakeSession) Remove(h engine.Handle, withFiles bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removals = append(s.removals, withFiles)
	return nil
}

func (s *fakeSession) Subscribe(infoHash string, fn func(engine.Event)) func() {
	s.mu.Lock()
	s.subs[infoHash] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, infoHash)
		s.mu.Unlock()
	}
}

func (s *fakeSession) emit(infoHash string, ev engine.Event) {
	s.mu.Lock()
	fn := s.subs[infoHash]
	s.mu.Unlock()
	if fn != nil {
		fn(ev)
	}
}

type recordingListener struct {
	mu    sync.Mutex
	calls []string
}

func (l *recordingListener) add(call string) {
	l.mu.Lock()
	l.calls = append(l.calls, call)
	l.mu.Unlock()
}

func (l *recordingListener) log() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func (l *recordingListener) OnTorrentStateChanged(id string) { l.add("state_changed:" + id) }
func (l *recordingListener) OnTorrentFinished(id string)     { l.add("finished:" + id) }
func (l *recordingListener) OnTorrentRemoved(id string)      { l.add("removed:" + id) }
func (l *recordingListener) OnTorrentPaused(id string)       { l.add("paused:" + id) }
func (l *recordingListener) OnTorrentResumed(id string)      { l.add("resumed:" + id) }
func (l *recordingListener) OnTorrentMetadata(id string)     { l.add("metadata:" + id) }

func (l *recordingListener) OnTorrentMoved(id string, success bool) {
	if success {
		l.add("moved_ok:" + id)
		return
	}
	l.add("moved_failed:" + id)
}

type memStore struct {
	mu    sync.Mutex
	blobs map[string][][]byte
	err   error
}

func newMemStore() *memStore {
	return &memStore{blobs: make(map[string][][]byte)}
}

func (s *memStore) SaveResumeData(ctx context.Context, id string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.blobs[id] = append(s.blobs[id], data)
	return nil
}

func (s *memStore) count(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.blobs[id])
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var errDiskFull = errors.New("disk full")

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}
