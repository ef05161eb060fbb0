package downloader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"torrentctl/internal/domain"
	"torrentctl/internal/engine"
	"torrentctl/internal/storage"
)

type fakeHandle struct {
	eng      *fakeEngine
	infoHash string
	dir      string

	mu         sync.Mutex
	valid      bool
	hasMeta    bool
	paused     bool
	sequential bool
	files      []engine.File
	priorities []domain.Priority
	trackers   []string
	dlLimit    int
	ulLimit    int
	calls      []string
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

func (h *fakeHandle) setMetadata(files []engine.File) {
	h.mu.Lock()
	h.hasMeta = true
	h.files = files
	h.mu.Unlock()
}

// resolve delivers metadata the way a magnet link's info dictionary arrives.
func (h *fakeHandle) resolve(files []engine.File) {
	h.setMetadata(files)
	h.eng.emit(h.infoHash, engine.MetadataReceived{})
}

func (h *fakeHandle) callLog() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.calls...)
}

func (h *fakeHandle) Valid() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.valid
}

func (h *fakeHandle) InfoHash() string { return h.infoHash }

func (h *fakeHandle) HasMetadata() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hasMeta
}

func (h *fakeHandle) Name() string {
	if !h.HasMetadata() {
		return ""
	}
	return "fake-" + h.infoHash[:4]
}

func (h *fakeHandle) Status() (engine.Status, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.valid {
		return engine.Status{}, engine.ErrInvalidHandle
	}
	st := engine.Status{State: engine.ProtocolDownloading, Paused: h.paused, Sequential: h.sequential}
	if !h.hasMeta {
		st.State = engine.ProtocolDownloadingMetadata
	}
	return st, nil
}

func (h *fakeHandle) Files() ([]engine.File, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.valid {
		return nil, engine.ErrInvalidHandle
	}
	if !h.hasMeta {
		return nil, engine.ErrNoMetadata
	}
	return h.files, nil
}

func (h *fakeHandle) TotalSize() int64 {
	files, _ := h.Files()
	var total int64
	for _, f := range files {
		total += f.Size
	}
	return total
}

func (h *fakeHandle) FileProgress() ([]int64, error) {
	files, err := h.Files()
	if err != nil {
		return nil, err
	}
	return make([]int64, len(files)), nil
}

func (h *fakeHandle) Trackers() ([]engine.Tracker, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]engine.Tracker, len(h.trackers))
	for i, u := range h.trackers {
		out[i] = engine.Tracker{URL: u, Tier: i}
	}
	return out, nil
}

func (h *fakeHandle) Peers() ([]engine.Peer, error) { return nil, nil }
func (h *fakeHandle) DownloadLimit() int            { h.mu.Lock(); defer h.mu.Unlock(); return h.dlLimit }
func (h *fakeHandle) UploadLimit() int              { h.mu.Lock(); defer h.mu.Unlock(); return h.ulLimit }

func (h *fakeHandle) MakeMagnet() (string, error) {
	return "magnet:?xt=urn:btih:" + h.infoHash, nil
}

func (h *fakeHandle) SetAutoManaged(bool) error { return h.record("auto_managed") }

func (h *fakeHandle) Pause() error {
	if err := h.record("pause"); err != nil {
		return err
	}
	h.mu.Lock()
	h.paused = true
	h.mu.Unlock()
	h.eng.emit(h.infoHash, engine.TorrentPaused{})
	return nil
}

func (h *fakeHandle) Resume() error {
	if err := h.record("resume"); err != nil {
		return err
	}
	h.mu.Lock()
	h.paused = false
	h.mu.Unlock()
	h.eng.emit(h.infoHash, engine.TorrentResumed{})
	return nil
}

func (h *fakeHandle) ForceRecheck() error    { return h.record("recheck") }
func (h *fakeHandle) ForceReannounce() error { return h.record("reannounce") }
func (h *fakeHandle) ScrapeTracker() error   { return engine.ErrUnsupported }

func (h *fakeHandle) MoveStorage(path string, policy engine.MovePolicy) error {
	if err := h.record("move"); err != nil {
		return err
	}
	h.mu.Lock()
	h.dir = path
	h.mu.Unlock()
	h.eng.emit(h.infoHash, engine.StorageMoved{Path: path})
	return nil
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
	h.mu.Lock()
	h.dlLimit = limit
	h.mu.Unlock()
	return nil
}

func (h *fakeHandle) SetUploadLimit(limit int) error {
	if err := h.record("upload_limit"); err != nil {
		return err
	}
	h.mu.Lock()
	h.ulLimit = limit
	h.mu.Unlock()
	return nil
}

func (h *fakeHandle) ReplaceTrackers(urls []string) error {
	if err := h.record("replace_trackers"); err != nil {
		return err
	}
	h.mu.Lock()
	h.trackers = append([]string(nil), urls...)
	h.mu.Unlock()
	return nil
}

func (h *fakeHandle) AddTrackers(urls []string) error {
	if err := h.record("add_trackers"); err != nil {
		return err
	}
	h.mu.Lock()
	h.trackers = append(h.trackers, urls...)
	h.mu.Unlock()
	return nil
}

func (h *fakeHandle) SetSequentialDownload(sequential bool) error {
	if err := h.record("sequential"); err != nil {
		return err
	}
	h.mu.Lock()
	h.sequential = sequential
	h.mu.Unlock()
	return nil
}

func (h *fakeHandle) SaveResumeData() error {
	if !h.Valid() {
		return engine.ErrInvalidHandle
	}
	h.eng.emit(h.infoHash, engine.ResumeDataReady{Data: []byte("resume:" + h.infoHash)})
	return nil
}

func (h *fakeHandle) ResumeData() ([]byte, error) {
	if !h.Valid() {
		return nil, engine.ErrInvalidHandle
	}
	return []byte("final:" + h.infoHash), nil
}

func (h *fakeHandle) WriteTorrentFile(path string) error {
	if !h.HasMetadata() {
		return engine.ErrNoMetadata
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte("d4:infode"), 0o644)
}

// fakeEngine delivers events synchronously on the calling goroutine.
type fakeEngine struct {
	mu       sync.Mutex
	handles  map[string]*fakeHandle
	subs     map[string]func(engine.Event)
	paused   bool
	closed   bool
	restored map[string][]byte
	added    []string
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		handles:  make(map[string]*fakeHandle),
		subs:     make(map[string]func(engine.Event)),
		restored: make(map[string][]byte),
	}
}

var (
	hashA = strings.Repeat("a", 40)
	hashB = strings.Repeat("b", 40)
	hashC = strings.Repeat("c", 40)
)

func (e *fakeEngine) newHandle(infoHash, dir string) *fakeHandle {
	e.mu.Lock()
	defer e.mu.Unlock()
	if h, ok := e.handles[infoHash]; ok {
		return h
	}
	h := &fakeHandle{eng: e, infoHash: infoHash, dir: dir, valid: true}
	e.handles[infoHash] = h
	return h
}

func (e *fakeEngine) handle(infoHash string) *fakeHandle {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.handles[infoHash]
}

func (e *fakeEngine) AddMagnet(uri, dir string) (engine.Handle, error) {
	i := strings.Index(uri, "btih:")
	if i < 0 {
		return nil, fmt.Errorf("parse magnet: no info hash")
	}
	e.mu.Lock()
	e.added = append(e.added, "magnet")
	e.mu.Unlock()
	return e.newHandle(uri[i+5:], dir), nil
}

func (e *fakeEngine) AddTorrentFile(path, dir string) (engine.Handle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load torrent file: %w", err)
	}
	e.mu.Lock()
	e.added = append(e.added, "file")
	e.mu.Unlock()
	h := e.newHandle(strings.TrimSpace(string(data)), dir)
	h.setMetadata([]engine.File{{Path: "a.bin", Size: 10}, {Path: "b.bin", Size: 20}})
	return h, nil
}

func (e *fakeEngine) AddResumeData(blob []byte, fallbackDir string) (engine.Handle, error) {
	infoHash, ok := strings.CutPrefix(string(blob), "resume:")
	if !ok {
		return nil, fmt.Errorf("malformed resume data")
	}
	e.mu.Lock()
	e.restored[infoHash] = blob
	e.added = append(e.added, "resume")
	e.mu.Unlock()
	return e.newHandle(infoHash, fallbackDir), nil
}

func (e *fakeEngine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.closed
}

func (e *fakeEngine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

func (e *fakeEngine) PauseAll() {
	e.mu.Lock()
	e.paused = true
	e.mu.Unlock()
}

func (e *fakeEngine) ResumeAll() {
	e.mu.Lock()
	e.paused = false
	e.mu.Unlock()
}

func (e *fakeEngine) Close() error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	return nil
}

func (e *fakeEngine) Remove(eh engine.Handle, withFiles bool) error {
	h, ok := eh.(*fakeHandle)
	if !ok {
		return fmt.Errorf("foreign handle %T", eh)
	}
	h.mu.Lock()
	h.valid = false
	h.mu.Unlock()

	e.mu.Lock()
	delete(e.handles, h.infoHash)
	e.mu.Unlock()
	e.emit(h.infoHash, engine.TorrentRemoved{})
	return nil
}

func (e *fakeEngine) Subscribe(infoHash string, fn func(engine.Event)) func() {
	e.mu.Lock()
	e.subs[infoHash] = fn
	e.mu.Unlock()
	return func() {
		e.mu.Lock()
		delete(e.subs, infoHash)
		e.mu.Unlock()
	}
}

func (e *fakeEngine) emit(infoHash string, ev engine.Event) {
	e.mu.Lock()
	fn := e.subs[infoHash]
	e.mu.Unlock()
	if fn != nil {
		fn(ev)
	}
}

type archiveCall struct {
	root string
	rels []string
	opts storage.ArchiveOptions
}

type fakeArchiver struct {
	mu    sync.Mutex
	calls []archiveCall
}

func (a *fakeArchiver) ArchiveFiles(ctx context.Context, root string, rels []string, opts storage.ArchiveOptions) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, archiveCall{root: root, rels: rels, opts: opts})
	return "s3://" + opts.Bucket + "/" + opts.KeyPrefix, nil
}

func (a *fakeArchiver) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.calls)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}
