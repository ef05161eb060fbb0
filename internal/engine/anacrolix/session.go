// Package anacrolix adapts github.com/anacrolix/torrent to the engine
// capability surface used by the download controllers.
package anacrolix

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/anacrolix/torrent"
	"github.com/anacrolix/torrent/metainfo"
	"github.com/anacrolix/torrent/storage"
	"github.com/sirupsen/logrus"

	"torrentctl/internal/engine"
)

// defaultMaxConns is restored when a hard-paused torrent resumes.
const defaultMaxConns = 35

type Config struct {
	DataDir string
	// ListenPort 0 keeps the client default; a negative value picks any free port.
	ListenPort   int
	Seed         bool
	NoDHT        bool
	PollInterval time.Duration
	Logger       *logrus.Logger
}

type envelope struct {
	infoHash string
	ev       engine.Event
}

// Session owns one anacrolix client and every torrent added through it.
type Session struct {
	cfg    Config
	client *torrent.Client
	logger *logrus.Entry

	mu      sync.RWMutex
	handles map[string]*Handle
	subs    map[string]func(engine.Event)
	paused  bool
	running bool

	qmu   sync.Mutex
	queue []envelope
	wake  chan struct{}

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

var _ engine.Session = (*Session)(nil)

func NewSession(cfg Config) (*Session, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	clientConfig := torrent.NewDefaultClientConfig()
	clientConfig.DataDir = cfg.DataDir
	clientConfig.Seed = cfg.Seed
	clientConfig.NoUpload = false
	clientConfig.NoDHT = cfg.NoDHT
	switch {
	case cfg.ListenPort > 0:
		clientConfig.ListenPort = cfg.ListenPort
	case cfg.ListenPort < 0:
		clientConfig.ListenPort = 0
	}

	client, err := torrent.NewClient(clientConfig)
	if err != nil {
		return nil, fmt.Errorf("create torrent client: %w", err)
	}

	s := &Session{
		cfg:     cfg,
		client:  client,
		logger:  cfg.Logger.WithField("component", "engine"),
		handles: make(map[string]*Handle),
		subs:    make(map[string]func(engine.Event)),
		running: true,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}

	s.wg.Add(2)
	go s.dispatch()
	go s.poll()

	s.logger.Infof("torrent session started, data dir: %s", cfg.DataDir)
	return s, nil
}

// Close drops every torrent and shuts the client down.
func (s *Session) Close() error {
	var errs []error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.running = false
		handles := make([]*Handle, 0, len(s.handles))
		for _, h := range s.handles {
			handles = append(handles, h)
		}
		s.mu.Unlock()

		for _, h := range handles {
			h.release()
		}

		close(s.done)
		s.wg.Wait()
		errs = append(errs, s.client.Close()...)
		s.logger.Info("torrent session stopped")
	})
	return errors.Join(errs...)
}

func (s *Session) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *Session) Paused() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.paused
}

// Pause hard-pauses every torrent without touching their own paused flags.
func (s *Session) Pause() {
	s.mu.Lock()
	s.paused = true
	handles := s.snapshotLocked()
	s.mu.Unlock()

	for _, h := range handles {
		h.applyTransfer()
	}
}

func (s *Session) Resume() {
	s.mu.Lock()
	s.paused = false
	handles := s.snapshotLocked()
	s.mu.Unlock()

	for _, h := range handles {
		h.applyTransfer()
	}
}

func (s *Session) Subscribe(infoHash string, fn func(engine.Event)) func() {
	s.mu.Lock()
	s.subs[infoHash] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, infoHash)
		s.mu.Unlock()
	}
}

// Find returns the handle for an info-hash already in the session.
func (s *Session) Find(infoHash string) (*Handle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.handles[infoHash]
	return h, ok
}

// Remove drops the torrent, optionally deletes its data and emits
// TorrentRemoved once the storage is released.
func (s *Session) Remove(eh engine.Handle, withFiles bool) error {
	h, ok := eh.(*Handle)
	if !ok || h.session != s {
		return fmt.Errorf("remove: foreign handle %T", eh)
	}
	if !h.Valid() {
		return engine.ErrInvalidHandle
	}

	files, _ := h.Files()
	dir := h.downloadDir()
	h.release()

	s.mu.Lock()
	delete(s.handles, h.infoHash)
	s.mu.Unlock()

	if withFiles {
		removeTorrentData(dir, files, h.logger)
	}
	s.emit(h.infoHash, engine.TorrentRemoved{})
	return nil
}

// AddMagnet adds a torrent from a magnet URI, storing data under dir.
func (s *Session) AddMagnet(uri, dir string) (*Handle, error) {
	spec, err := torrent.TorrentSpecFromMagnetUri(uri)
	if err != nil {
		return nil, fmt.Errorf("parse magnet: %w", err)
	}
	return s.add(spec, dir, nil)
}

// AddTorrentFile adds a torrent from a .torrent descriptor on disk.
func (s *Session) AddTorrentFile(path, dir string) (*Handle, error) {
	mi, err := metainfo.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("load torrent file: %w", err)
	}
	spec, err := torrent.TorrentSpecFromMetaInfoErr(mi)
	if err != nil {
		return nil, fmt.Errorf("torrent spec: %w", err)
	}
	return s.add(spec, dir, nil)
}

// AddResumeData restores a torrent from a blob produced by SaveResumeData.
// fallbackDir is used when the blob has no save path.
func (s *Session) AddResumeData(blob []byte, fallbackDir string) (*Handle, error) {
	rd, err := decodeResumeData(blob)
	if err != nil {
		return nil, err
	}
	spec, err := rd.spec()
	if err != nil {
		return nil, err
	}
	dir := rd.SavePath
	if dir == "" {
		dir = fallbackDir
	}
	return s.add(spec, dir, rd)
}

func (s *Session) add(spec *torrent.TorrentSpec, dir string, rd *resumeData) (*Handle, error) {
	if !s.Running() {
		return nil, errors.New("session closed")
	}
	if dir == "" {
		dir = s.cfg.DataDir
	}
	infoHash := spec.InfoHash.HexString()
	if h, ok := s.Find(infoHash); ok {
		return h, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create download dir: %w", err)
	}

	t, store, err := s.open(spec, dir)
	if err != nil {
		return nil, err
	}

	h := newHandle(s, t, store, dir, spec.Trackers)
	if rd != nil {
		rd.apply(h)
	}

	s.mu.Lock()
	s.handles[infoHash] = h
	s.mu.Unlock()

	h.start()
	h.logger.WithField("dir", dir).Info("torrent added")
	return h, nil
}

// open adds spec with per-torrent file storage whose piece completion lives
// in the parts directory next to the data.
func (s *Session) open(spec *torrent.TorrentSpec, dir string) (*torrent.Torrent, storage.ClientImplCloser, error) {
	parts := filepath.Join(dir, engine.PartsFileName(spec.InfoHash.HexString()))
	if err := os.MkdirAll(parts, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create parts dir: %w", err)
	}
	completion, err := storage.NewDefaultPieceCompletionForDir(parts)
	if err != nil {
		return nil, nil, fmt.Errorf("open piece completion: %w", err)
	}
	store := storage.NewFileWithCompletion(dir, completion)
	spec.Storage = store

	t, _, err := s.client.AddTorrentSpec(spec)
	if err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("add torrent: %w", err)
	}
	return t, store, nil
}

func (s *Session) snapshotLocked() []*Handle {
	out := make([]*Handle, 0, len(s.handles))
	for _, h := range s.handles {
		out = append(out, h)
	}
	return out
}

func (s *Session) snapshot() []*Handle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// emit queues ev for in-order delivery on the dispatch goroutine. It never
// blocks, so subscribers may call back into the session.
func (s *Session) emit(infoHash string, ev engine.Event) {
	s.qmu.Lock()
	s.queue = append(s.queue, envelope{infoHash: infoHash, ev: ev})
	s.qmu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Session) dispatch() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}

		s.qmu.Lock()
		batch := s.queue
		s.queue = nil
		s.qmu.Unlock()

		for _, env := range batch {
			s.mu.RLock()
			fn := s.subs[env.infoHash]
			s.mu.RUnlock()
			if fn != nil {
				fn(env.ev)
			}
		}
	}
}

func (s *Session) poll() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case now := <-ticker.C:
			for _, h := range s.snapshot() {
				h.tick(now)
			}
		}
	}
}

func removeTorrentData(dir string, files []engine.File, logger *logrus.Entry) {
	roots := make(map[string]struct{})
	for _, f := range files {
		path := filepath.Join(dir, f.Path)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.WithField("path", path).Warnf("delete torrent data: %v", err)
		}
		if top := topLevel(f.Path); top != f.Path {
			roots[filepath.Join(dir, top)] = struct{}{}
		}
	}
	for root := range roots {
		pruneEmptyDirs(root)
	}
}

func topLevel(rel string) string {
	rel = filepath.ToSlash(rel)
	for i := 0; i < len(rel); i++ {
		if rel[i] == '/' {
			return rel[:i]
		}
	}
	return rel
}

// pruneEmptyDirs removes empty directories below and including root.
func pruneEmptyDirs(root string) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			pruneEmptyDirs(filepath.Join(root, e.Name()))
		}
	}
	_ = os.Remove(root)
}
