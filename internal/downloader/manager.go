package downloader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"torrentctl/internal/domain"
	"torrentctl/internal/download"
	"torrentctl/internal/engine"
	"torrentctl/internal/repository"
	"torrentctl/internal/service"
	"torrentctl/internal/storage"
)

var (
	// ErrTorrentNotFound is returned for ids with no controller or record.
	ErrTorrentNotFound = errors.New("torrent not found")
	// ErrTorrentExists is returned when adding a torrent that is already managed.
	ErrTorrentExists = errors.New("torrent already exists")
	// ErrInvalidArgument marks requests rejected before reaching the engine.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Manager owns the engine session and one download controller per torrent.
type Manager interface {
	Start(ctx context.Context) error
	Shutdown()

	AddMagnet(ctx context.Context, uri, dir string) (*domain.Torrent, error)
	AddTorrentFile(ctx context.Context, path, dir string) (*domain.Torrent, error)
	Get(ctx context.Context, id string) (*domain.Torrent, error)
	List(ctx context.Context) ([]domain.Torrent, error)
	Remove(ctx context.Context, id string, withFiles bool) error

	Pause(id string) error
	Resume(id string) error
	PauseAll()
	ResumeAll()
	Recheck(id string) error
	Move(id, path string) error
	SetLimits(id string, download, upload *int) error
	Limits(id string) (download, upload int, err error)
	PrioritizeFiles(ctx context.Context, id string, priorities []domain.Priority) error
	SetSequential(id string, sequential bool) error

	Trackers(id string) ([]engine.Tracker, error)
	ReplaceTrackers(id string, urls []string) error
	AddTrackers(id string, urls []string) error
	Announce(id string) error
	Scrape(id string) error

	Magnet(id string) (string, error)
	Peers(id string) ([]engine.Peer, error)
	Pieces(id string) ([]bool, error)
	IncompleteFiles(id string) ([]string, error)
}

type Config struct {
	DataDir        string
	DescriptorDir  string
	StatusInterval time.Duration
	SyncInterval   time.Duration
	TrackerList    []string
	// Archive uploads finished payloads when the manager has an archiver.
	Archive storage.ArchiveOptions
	Logger  *logrus.Logger
}

type work uint8

const (
	workRefresh work = 1 << iota
	workFinished
	workLocation
)

type manager struct {
	cfg      Config
	engine   Engine
	torrents service.TorrentService
	resume   repository.ResumeDataRepository
	archiver storage.Archiver
	logger   *logrus.Entry

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	controllers map[string]*download.Controller
	pending     map[string]work

	// descMu serializes descriptor writes between the metadata callback
	// and the ticker.
	descMu sync.Mutex
}

// NewManager wires the engine to persistence. archiver may be nil.
func NewManager(cfg Config, eng Engine, torrents service.TorrentService, resume repository.ResumeDataRepository, archiver storage.Archiver) Manager {
	if cfg.StatusInterval <= 0 {
		cfg.StatusInterval = 2 * time.Second
	}
	if cfg.SyncInterval <= 0 {
		cfg.SyncInterval = download.DefaultSyncInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.DescriptorDir == "" {
		cfg.DescriptorDir = filepath.Join(cfg.DataDir, ".torrents")
	}
	return &manager{
		cfg:         cfg,
		engine:      eng,
		torrents:    torrents,
		resume:      resume,
		archiver:    archiver,
		logger:      cfg.Logger.WithField("component", "manager"),
		controllers: make(map[string]*download.Controller),
		pending:     make(map[string]work),
	}
}

func (m *manager) Start(ctx context.Context) error {
	if err := os.MkdirAll(m.cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	if err := os.MkdirAll(m.cfg.DescriptorDir, 0o755); err != nil {
		return fmt.Errorf("create descriptor dir: %w", err)
	}

	m.ctx, m.cancel = context.WithCancel(ctx)
	if err := m.restore(ctx); err != nil {
		m.cancel()
		return err
	}

	m.wg.Add(1)
	go m.run()
	m.logger.Infof("download manager started, data dir: %s", m.cfg.DataDir)
	return nil
}

func (m *manager) Shutdown() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()

	m.mu.Lock()
	ctrls := make([]*download.Controller, 0, len(m.controllers))
	for _, c := range m.controllers {
		ctrls = append(ctrls, c)
	}
	m.controllers = make(map[string]*download.Controller)
	m.mu.Unlock()

	for _, c := range ctrls {
		c.Close()
		m.saveFinalResume(c)
	}
	if err := m.engine.Close(); err != nil {
		m.logger.Warnf("close engine: %v", err)
	}
	m.logger.Info("download manager stopped")
}

// saveFinalResume stores a last resume blob for c. Event delivery is already
// detached, so the blob is taken from the handle directly.
func (m *manager) saveFinalResume(c *download.Controller) {
	h := c.Handle()
	exp, ok := h.(resumeExporter)
	if !ok || !h.Valid() {
		return
	}
	id := c.ID()
	logger := m.logger.WithField("torrent_id", id)
	blob, err := exp.ResumeData()
	if err != nil {
		logger.Warnf("export resume data: %v", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := m.resume.Save(ctx, id, blob); err != nil {
		logger.Warnf("save final resume data: %v", err)
	}
}

// restore re-adds every persisted torrent, preferring its resume blob.
func (m *manager) restore(ctx context.Context) error {
	records, err := m.torrents.List(ctx)
	if err != nil {
		return fmt.Errorf("list torrents: %w", err)
	}

	for i := range records {
		rec := records[i]
		logger := m.logger.WithField("torrent_id", rec.ID)

		var (
			h       engine.Handle
			fromRD  bool
			loadErr error
		)
		blob, err := m.resume.Load(ctx, rec.ID)
		switch {
		case err == nil:
			h, loadErr = m.engine.AddResumeData(blob, rec.DownloadPath)
			if loadErr != nil {
				logger.Warnf("restore from resume data: %v", loadErr)
			} else {
				fromRD = true
			}
		case !errors.Is(err, repository.ErrNotFound):
			logger.Warnf("load resume data: %v", err)
		}
		if h == nil {
			h, loadErr = m.addFromRecord(rec)
		}
		if loadErr != nil {
			logger.Errorf("restore torrent: %v", loadErr)
			rec.State = domain.TorrentStateError
			rec.ErrorMessage = loadErr.Error()
			if err := m.torrents.Save(ctx, &rec); err != nil {
				logger.Warnf("record restore failure: %v", err)
			}
			continue
		}

		rec.ErrorMessage = ""
		ctrl := m.newController(h, rec)
		m.mu.Lock()
		m.controllers[rec.ID] = ctrl
		m.mu.Unlock()

		if !fromRD {
			m.applyRecord(ctrl, rec)
		}
		if rec.Paused {
			ctrl.Pause()
		}
		m.mark(rec.ID, workRefresh)
		logger.WithField("from_resume_data", fromRD).Info("torrent restored")
	}
	return nil
}

func (m *manager) addFromRecord(rec domain.Torrent) (engine.Handle, error) {
	if rec.TorrentFilePath != "" {
		if _, err := os.Stat(rec.TorrentFilePath); err == nil {
			return m.engine.AddTorrentFile(rec.TorrentFilePath, rec.DownloadPath)
		}
	}
	if rec.MagnetURI != "" {
		return m.engine.AddMagnet(rec.MagnetURI, rec.DownloadPath)
	}
	return nil, errors.New("record has neither descriptor nor magnet")
}

// applyRecord replays the persisted file priorities onto a torrent restored
// without resume data.
func (m *manager) applyRecord(ctrl *download.Controller, rec domain.Torrent) {
	if rec.Sequential {
		ctrl.SetSequentialDownload(true)
	}
	if len(rec.Files) == 0 || !ctrl.Handle().HasMetadata() {
		return
	}
	prios := make([]domain.Priority, len(rec.Files))
	for i, f := range rec.Files {
		prios[i] = f.Priority
	}
	ctrl.PrioritizeFiles(prios)
}

func (m *manager) newController(h engine.Handle, t domain.Torrent) *download.Controller {
	return download.New(m.engine, h, t, m, resumeSink{m.resume}, download.Config{
		SyncInterval: m.cfg.SyncInterval,
		Logger:       m.cfg.Logger,
	})
}

func (m *manager) AddMagnet(ctx context.Context, uri, dir string) (*domain.Torrent, error) {
	uri = strings.TrimSpace(uri)
	if !strings.HasPrefix(uri, "magnet:") {
		return nil, fmt.Errorf("%w: magnet URI is required", ErrInvalidArgument)
	}
	dir = m.downloadDir(dir)

	h, err := m.engine.AddMagnet(uri, dir)
	if err != nil {
		return nil, fmt.Errorf("add magnet: %w", err)
	}
	ctrl, err := m.adopt(ctx, h, domain.Torrent{MagnetURI: uri, DownloadPath: dir})
	if err != nil {
		return nil, err
	}
	if len(m.cfg.TrackerList) > 0 {
		ctrl.AddTrackers(m.cfg.TrackerList)
	}
	snap := ctrl.Snapshot()
	return &snap, nil
}

func (m *manager) AddTorrentFile(ctx context.Context, path, dir string) (*domain.Torrent, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: torrent file is required", ErrInvalidArgument)
	}
	dir = m.downloadDir(dir)

	h, err := m.engine.AddTorrentFile(path, dir)
	if err != nil {
		return nil, fmt.Errorf("add torrent file: %w", err)
	}
	ctrl, err := m.adopt(ctx, h, domain.Torrent{DownloadPath: dir})
	if err != nil {
		return nil, err
	}
	snap := ctrl.Snapshot()
	return &snap, nil
}

// adopt registers a freshly added handle and builds its controller.
func (m *manager) adopt(ctx context.Context, h engine.Handle, t domain.Torrent) (*download.Controller, error) {
	id := h.InfoHash()
	if _, ok := m.controller(id); ok {
		return nil, fmt.Errorf("%w: %s", ErrTorrentExists, id)
	}

	t.ID = id
	t.Name = h.Name()
	t.State = domain.TorrentStateDownloadingMetadata
	if h.HasMetadata() {
		if path, err := m.writeDescriptor(h); err != nil {
			m.logger.WithField("torrent_id", id).Warnf("write torrent descriptor: %v", err)
		} else {
			t.TorrentFilePath = path
		}
	}

	if err := m.torrents.Register(ctx, &t); err != nil {
		if rmErr := m.engine.Remove(h, false); rmErr != nil {
			m.logger.WithField("torrent_id", id).Warnf("drop unregistered torrent: %v", rmErr)
		}
		return nil, fmt.Errorf("register torrent: %w", err)
	}

	ctrl := m.newController(h, t)
	m.mu.Lock()
	m.controllers[id] = ctrl
	m.mu.Unlock()
	m.mark(id, workRefresh)
	return ctrl, nil
}

func (m *manager) downloadDir(dir string) string {
	if strings.TrimSpace(dir) == "" {
		return m.cfg.DataDir
	}
	return filepath.Clean(dir)
}

func (m *manager) writeDescriptor(h engine.Handle) (string, error) {
	w, ok := h.(descriptorWriter)
	if !ok {
		return "", engine.ErrUnsupported
	}
	path := filepath.Join(m.cfg.DescriptorDir, h.InfoHash()+".torrent")
	if err := w.WriteTorrentFile(path); err != nil {
		return "", err
	}
	return path, nil
}

func (m *manager) controller(id string) (*download.Controller, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.controllers[id]
	return c, ok
}

func (m *manager) mustController(id string) (*download.Controller, error) {
	c, ok := m.controller(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTorrentNotFound, id)
	}
	return c, nil
}

func (m *manager) Get(ctx context.Context, id string) (*domain.Torrent, error) {
	if c, ok := m.controller(id); ok {
		snap := c.Snapshot()
		return &snap, nil
	}
	t, err := m.torrents.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrTorrentNotFound, id)
		}
		return nil, err
	}
	return t, nil
}

func (m *manager) List(ctx context.Context) ([]domain.Torrent, error) {
	records, err := m.torrents.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range records {
		if c, ok := m.controller(records[i].ID); ok {
			records[i] = c.Snapshot()
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records, nil
}

// Remove asks the engine to drop the torrent; records go once the engine
// confirms. A record whose torrent never restored is deleted directly.
func (m *manager) Remove(ctx context.Context, id string, withFiles bool) error {
	if c, ok := m.controller(id); ok {
		c.Remove(withFiles)
		return nil
	}
	rec, err := m.torrents.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrTorrentNotFound, id)
		}
		return err
	}
	m.forget(ctx, id, rec.TorrentFilePath)
	return nil
}

func (m *manager) Pause(id string) error {
	c, err := m.mustController(id)
	if err != nil {
		return err
	}
	c.Pause()
	m.mark(id, workRefresh)
	return nil
}

func (m *manager) Resume(id string) error {
	c, err := m.mustController(id)
	if err != nil {
		return err
	}
	c.Resume()
	m.mark(id, workRefresh)
	return nil
}

func (m *manager) PauseAll() {
	m.engine.PauseAll()
	m.markAll()
}

func (m *manager) ResumeAll() {
	m.engine.ResumeAll()
	m.markAll()
}

func (m *manager) Recheck(id string) error {
	c, err := m.mustController(id)
	if err != nil {
		return err
	}
	c.ForceRecheck()
	return nil
}

func (m *manager) Move(id, path string) error {
	if !filepath.IsAbs(path) {
		return fmt.Errorf("%w: destination must be an absolute path", ErrInvalidArgument)
	}
	c, err := m.mustController(id)
	if err != nil {
		return err
	}
	c.SetDownloadPath(filepath.Clean(path))
	return nil
}

func (m *manager) SetLimits(id string, down, up *int) error {
	if (down != nil && *down < 0) || (up != nil && *up < 0) {
		return fmt.Errorf("%w: limits must not be negative", ErrInvalidArgument)
	}
	c, err := m.mustController(id)
	if err != nil {
		return err
	}
	if down != nil {
		c.SetDownloadSpeedLimit(*down)
	}
	if up != nil {
		c.SetUploadSpeedLimit(*up)
	}
	return nil
}

func (m *manager) Limits(id string) (int, int, error) {
	c, err := m.mustController(id)
	if err != nil {
		return 0, 0, err
	}
	return c.DownloadSpeedLimit(), c.UploadSpeedLimit(), nil
}

func (m *manager) PrioritizeFiles(ctx context.Context, id string, priorities []domain.Priority) error {
	for i, p := range priorities {
		if !p.Valid() {
			return fmt.Errorf("%w: priority %d of file %d", ErrInvalidArgument, p, i)
		}
	}
	c, err := m.mustController(id)
	if err != nil {
		return err
	}
	if !c.Handle().HasMetadata() {
		return fmt.Errorf("%w: metadata not yet received", ErrInvalidArgument)
	}
	if n := len(c.Files()); len(priorities) != n {
		return fmt.Errorf("%w: got %d priorities for %d files", ErrInvalidArgument, len(priorities), n)
	}

	c.PrioritizeFiles(priorities)
	if err := m.torrents.UpdatePriorities(ctx, id, priorities); err != nil {
		return fmt.Errorf("store priorities: %w", err)
	}
	m.mark(id, workRefresh)
	return nil
}

func (m *manager) SetSequential(id string, sequential bool) error {
	c, err := m.mustController(id)
	if err != nil {
		return err
	}
	c.SetSequentialDownload(sequential)
	m.mark(id, workRefresh)
	return nil
}

func (m *manager) Trackers(id string) ([]engine.Tracker, error) {
	c, err := m.mustController(id)
	if err != nil {
		return nil, err
	}
	return c.Trackers(), nil
}

func (m *manager) ReplaceTrackers(id string, urls []string) error {
	c, err := m.mustController(id)
	if err != nil {
		return err
	}
	c.ReplaceTrackers(urls)
	return nil
}

func (m *manager) AddTrackers(id string, urls []string) error {
	if len(urls) == 0 {
		return fmt.Errorf("%w: no tracker urls", ErrInvalidArgument)
	}
	c, err := m.mustController(id)
	if err != nil {
		return err
	}
	c.AddTrackers(urls)
	return nil
}

func (m *manager) Announce(id string) error {
	c, err := m.mustController(id)
	if err != nil {
		return err
	}
	c.RequestTrackerAnnounce()
	return nil
}

func (m *manager) Scrape(id string) error {
	c, err := m.mustController(id)
	if err != nil {
		return err
	}
	c.RequestTrackerScrape()
	return nil
}

func (m *manager) Magnet(id string) (string, error) {
	c, err := m.mustController(id)
	if err != nil {
		return "", err
	}
	return c.MakeMagnet(), nil
}

func (m *manager) Peers(id string) ([]engine.Peer, error) {
	c, err := m.mustController(id)
	if err != nil {
		return nil, err
	}
	return c.Peers(), nil
}

func (m *manager) Pieces(id string) ([]bool, error) {
	c, err := m.mustController(id)
	if err != nil {
		return nil, err
	}
	return c.Pieces(), nil
}

func (m *manager) IncompleteFiles(id string) ([]string, error) {
	c, err := m.mustController(id)
	if err != nil {
		return nil, err
	}
	return c.IncompleteFiles(), nil
}

func (m *manager) OnTorrentStateChanged(id string) { m.mark(id, workRefresh) }

func (m *manager) OnTorrentFinished(id string) { m.mark(id, workFinished) }

func (m *manager) OnTorrentPaused(id string) { m.mark(id, workRefresh) }

func (m *manager) OnTorrentResumed(id string) { m.mark(id, workRefresh) }

// OnTorrentMetadata writes the descriptor as soon as a magnet resolves, so a
// crash before the next flush cannot lose it. The record follows on the tick.
func (m *manager) OnTorrentMetadata(id string) {
	c, ok := m.controller(id)
	if !ok {
		return
	}
	if m.ensureDescriptor(c) {
		m.mark(id, workLocation)
	}
}

func (m *manager) OnTorrentMoved(id string, success bool) {
	if !success {
		m.logger.WithField("torrent_id", id).Warn("storage move failed")
		m.mark(id, workRefresh)
		return
	}
	m.mark(id, workLocation)
}

// OnTorrentRemoved runs on the engine's dispatch goroutine, so the
// controller is closed and the records dropped in the background.
func (m *manager) OnTorrentRemoved(id string) {
	m.mu.Lock()
	c := m.controllers[id]
	delete(m.controllers, id)
	delete(m.pending, id)
	m.mu.Unlock()
	if c == nil {
		return
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		c.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		m.forget(ctx, id, c.Torrent().TorrentFilePath)
	}()
}

// forget deletes every persisted trace of a torrent, the record last.
func (m *manager) forget(ctx context.Context, id, descriptor string) {
	logger := m.logger.WithField("torrent_id", id)
	if descriptor != "" {
		if err := os.Remove(descriptor); err != nil && !os.IsNotExist(err) {
			logger.Warnf("delete torrent descriptor: %v", err)
		}
	}
	if err := m.resume.Delete(ctx, id); err != nil {
		logger.Warnf("delete resume data: %v", err)
	}
	if err := m.torrents.Delete(ctx, id); err != nil && !errors.Is(err, repository.ErrNotFound) {
		logger.Warnf("delete torrent record: %v", err)
	}
	logger.Info("torrent removed")
}

func (m *manager) mark(id string, w work) {
	m.mu.Lock()
	m.pending[id] |= w
	m.mu.Unlock()
}

func (m *manager) markAll() {
	m.mu.Lock()
	for id := range m.controllers {
		m.pending[id] |= workRefresh
	}
	m.mu.Unlock()
}

// run persists pending controller changes every StatusInterval.
func (m *manager) run() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.StatusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			m.flushPending(ctx)
			cancel()
			return
		case <-ticker.C:
			m.flushPending(m.ctx)
		}
	}
}

func (m *manager) flushPending(ctx context.Context) {
	m.mu.Lock()
	pending := m.pending
	m.pending = make(map[string]work)
	m.mu.Unlock()

	ids := make([]string, 0, len(pending))
	for id := range pending {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		m.sync(ctx, id, pending[id])
	}
}

func (m *manager) sync(ctx context.Context, id string, w work) {
	c, ok := m.controller(id)
	if !ok {
		return
	}
	logger := m.logger.WithField("torrent_id", id)

	if m.ensureDescriptor(c) {
		w |= workLocation
	}

	if w&workLocation != 0 {
		t := c.Torrent()
		if err := m.torrents.UpdateLocation(ctx, id, t.DownloadPath, t.TorrentFilePath); err != nil {
			logger.Warnf("update location: %v", err)
		}
	}

	snap := c.Snapshot()
	if err := m.torrents.Snapshot(ctx, &snap); err != nil {
		logger.Warnf("update progress: %v", err)
	}

	if w&workFinished != 0 {
		if err := m.torrents.MarkFinished(ctx, id); err != nil {
			logger.Warnf("mark finished: %v", err)
		}
		logger.Info("download finished")
		m.archive(c)
	}
}

// ensureDescriptor writes the metainfo of c once its metadata is known and
// reports whether the descriptor path changed.
func (m *manager) ensureDescriptor(c *download.Controller) bool {
	m.descMu.Lock()
	defer m.descMu.Unlock()
	if c.Torrent().TorrentFilePath != "" || !c.Handle().HasMetadata() {
		return false
	}
	logger := m.logger.WithField("torrent_id", c.ID())
	path, err := m.writeDescriptor(c.Handle())
	if err != nil {
		logger.Warnf("write torrent descriptor: %v", err)
		return false
	}
	c.SetDescriptorPath(path)
	logger.WithField("path", path).Debug("torrent descriptor written")
	return true
}

// archive uploads the payload of a finished torrent in the background.
func (m *manager) archive(c *download.Controller) {
	if m.archiver == nil || m.cfg.Archive.Bucket == "" {
		return
	}
	t := c.Torrent()
	files := c.Files()
	rels := make([]string, 0, len(files))
	for _, f := range files {
		rels = append(rels, f.Path)
	}

	opts := m.cfg.Archive
	if prefix := strings.Trim(opts.KeyPrefix, "/"); prefix != "" {
		opts.KeyPrefix = prefix + "/" + t.ID
	} else {
		opts.KeyPrefix = t.ID
	}
	logger := m.logger.WithField("torrent_id", t.ID)
	opts.ProgressCallback = newUploadProgressLogger(logger)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		logger.Infof("archive started from %s", t.DownloadPath)
		dest, err := m.archiver.ArchiveFiles(m.ctx, t.DownloadPath, rels, opts)
		if err != nil {
			logger.Errorf("archive: %v", err)
			return
		}
		logger.Infof("torrent archived to %s", dest)
	}()
}

// resumeSink adapts a resume-data repository to the controller's store.
type resumeSink struct {
	repo repository.ResumeDataRepository
}

func (s resumeSink) SaveResumeData(ctx context.Context, id string, data []byte) error {
	return s.repo.Save(ctx, id, data)
}

var (
	_ Manager                   = (*manager)(nil)
	_ download.Listener         = (*manager)(nil)
	_ download.MetadataListener = (*manager)(nil)
)
