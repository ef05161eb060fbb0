package download

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"torrentctl/internal/domain"
	"torrentctl/internal/engine"
	"torrentctl/internal/metrics"
)

// Listener receives controller-observed transitions keyed by torrent id.
type Listener interface {
	OnTorrentStateChanged(id string)
	OnTorrentFinished(id string)
	OnTorrentRemoved(id string)
	OnTorrentPaused(id string)
	OnTorrentResumed(id string)
	OnTorrentMoved(id string, success bool)
}

// MetadataListener is optionally implemented by a Listener that wants to
// act as soon as a magnet's metadata arrives. It runs on the engine's
// dispatch goroutine, before the matching state-changed callback.
type MetadataListener interface {
	OnTorrentMetadata(id string)
}

// ResumeStore persists resume-data blobs keyed by torrent id.
type ResumeStore interface {
	SaveResumeData(ctx context.Context, id string, data []byte) error
}

type Config struct {
	SyncInterval time.Duration
	SaveTimeout  time.Duration
	Logger       *logrus.Logger
	// Clock defaults to time.Now; its monotonic reading drives the throttle.
	Clock func() time.Time
}

// Controller drives one torrent: it turns engine events into listener
// callbacks, throttles resume-data writes and cleans up after removal.
// Its public methods never fail; problems are logged and absorbed.
type Controller struct {
	cfg      Config
	session  engine.Session
	handle   engine.Handle
	listener Listener
	store    ResumeStore
	throttle *resumeThrottle
	jobs     *worker
	logger   *logrus.Entry

	mu                sync.Mutex
	torrent           domain.Torrent
	partsFile         string
	paused            bool
	removed           bool
	pendingIncomplete map[string]struct{}

	unsubscribe func()
	closeOnce   sync.Once
}

// New builds a controller for a handle the engine just handed back and
// subscribes it to the handle's events. listener and store may be nil.
func New(session engine.Session, handle engine.Handle, t domain.Torrent, listener Listener, store ResumeStore, cfg Config) *Controller {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.SaveTimeout <= 0 {
		cfg.SaveTimeout = 30 * time.Second
	}
	if t.ID == "" {
		t.ID = handle.InfoHash()
	}

	c := &Controller{
		cfg:      cfg,
		session:  session,
		handle:   handle,
		listener: listener,
		store:    store,
		throttle: newResumeThrottle(cfg.SyncInterval),
		jobs:     newWorker(),
		logger:   cfg.Logger.WithField("torrent_id", t.ID),
		torrent:  t,
	}
	if handle.HasMetadata() {
		c.partsFile = c.partsPathLocked()
	}

	c.unsubscribe = session.Subscribe(handle.InfoHash(), c.handleEvent)
	metrics.ActiveTorrents.Inc()
	return c
}

// Close unsubscribes from the engine and waits for queued writes and
// deletes to finish. It is safe to call more than once.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		if c.unsubscribe != nil {
			c.unsubscribe()
		}
		c.jobs.close()
		metrics.ActiveTorrents.Dec()
	})
}

// Flush waits for every background job queued so far.
func (c *Controller) Flush() {
	c.jobs.flush()
}

func (c *Controller) ID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.torrent.ID
}

func (c *Controller) Torrent() domain.Torrent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.torrent
}

func (c *Controller) SetTorrent(t domain.Torrent) {
	c.mu.Lock()
	c.torrent = t
	c.mu.Unlock()
}

// SetDescriptorPath records where the .torrent descriptor was written.
func (c *Controller) SetDescriptorPath(path string) {
	c.mu.Lock()
	c.torrent.TorrentFilePath = path
	c.mu.Unlock()
}

func (c *Controller) Handle() engine.Handle {
	return c.handle
}

// PartsFile is the engine's partial-piece artifact path, empty until the
// torrent's metadata is known.
func (c *Controller) PartsFile() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.partsFile
}

func (c *Controller) handleEvent(ev engine.Event) {
	metrics.EventsTotal.WithLabelValues(engine.EventName(ev)).Inc()
	id := c.ID()

	switch e := ev.(type) {
	case engine.BlockFinished, engine.StateChanged:
		c.notify(func(l Listener) { l.OnTorrentStateChanged(id) })
	case engine.Stats:
		c.notify(func(l Listener) { l.OnTorrentStateChanged(id) })
		c.requestRoutineSave()
	case engine.MetadataReceived:
		c.onMetadata(id)
		c.notify(func(l Listener) { l.OnTorrentStateChanged(id) })
	case engine.TorrentFinished:
		c.notify(func(l Listener) { l.OnTorrentFinished(id) })
		c.forceSave("finished")
	case engine.TorrentRemoved:
		c.onRemoved(id)
	case engine.TorrentPaused:
		c.notify(func(l Listener) { l.OnTorrentPaused(id) })
	case engine.TorrentResumed:
		c.notify(func(l Listener) { l.OnTorrentResumed(id) })
	case engine.ResumeDataReady:
		c.onResumeDataReady(e.Data)
	case engine.StorageMoved:
		c.onStorageMoved(e.Path)
		c.forceSave("storage moved")
		c.notify(func(l Listener) { l.OnTorrentMoved(id, true) })
	case engine.StorageMoveFailed:
		c.logger.WithField("path", e.Path).Warnf("storage move failed: %v", e.Err)
		c.forceSave("storage move failed")
		c.notify(func(l Listener) { l.OnTorrentMoved(id, false) })
	default:
		c.logger.Warnf("unhandled engine event %T", ev)
	}
}

func (c *Controller) partsPathLocked() string {
	return filepath.Join(c.torrent.DownloadPath, engine.PartsFileName(c.handle.InfoHash()))
}

func (c *Controller) onMetadata(id string) {
	c.mu.Lock()
	if c.partsFile == "" {
		c.partsFile = c.partsPathLocked()
	}
	c.mu.Unlock()

	if ml, ok := c.listener.(MetadataListener); ok {
		ml.OnTorrentMetadata(id)
	}
}

func (c *Controller) notify(fn func(Listener)) {
	if c.listener != nil {
		fn(c.listener)
	}
}

func (c *Controller) onRemoved(id string) {
	c.mu.Lock()
	if c.removed {
		c.mu.Unlock()
		c.logger.Debug("duplicate removal event ignored")
		return
	}
	c.removed = true
	files := c.pendingIncomplete
	c.pendingIncomplete = nil
	parts := c.partsFile
	c.mu.Unlock()

	logger := c.logger
	if !c.jobs.submit(func() { finalizeCleanup(files, parts, logger) }) {
		logger.Warn("controller closed, skipping post-removal cleanup")
	}
	c.notify(func(l Listener) { l.OnTorrentRemoved(id) })
}

func (c *Controller) onStorageMoved(path string) {
	if path == "" {
		return
	}
	c.mu.Lock()
	c.torrent.DownloadPath = path
	if c.partsFile != "" {
		c.partsFile = filepath.Join(path, filepath.Base(c.partsFile))
	}
	c.mu.Unlock()
}

func (c *Controller) onResumeDataReady(data []byte) {
	status, _ := c.handle.Status()
	persist, forced := c.throttle.allow(status, c.cfg.Clock())
	if !persist {
		metrics.ResumeSkipsTotal.Inc()
		c.logger.Debug("resume data skipped, saved too recently")
		return
	}
	if c.store == nil {
		return
	}

	trigger := "throttled"
	if forced {
		trigger = "forced"
	}
	id := c.ID()
	blob := append([]byte(nil), data...)
	logger := c.logger
	store := c.store
	timeout := c.cfg.SaveTimeout

	submitted := c.jobs.submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := store.SaveResumeData(ctx, id, blob); err != nil {
			metrics.ResumeSaveFailuresTotal.Inc()
			logger.Errorf("save resume data: %v", err)
			return
		}
		metrics.ResumeSavesTotal.WithLabelValues(trigger).Inc()
		logger.WithField("bytes", len(blob)).Debug("resume data saved")
	})
	if !submitted {
		logger.Warn("controller closed, resume data dropped")
	}
}

// requestRoutineSave asks for resume data once the sync interval has passed
// since the last write. The blob still goes through the throttle.
func (c *Controller) requestRoutineSave() {
	if !c.throttle.due(c.cfg.Clock()) {
		return
	}
	if err := c.handle.SaveResumeData(); err != nil {
		c.throttle.cancelRoutine()
		c.logger.Debugf("request resume data: %v", err)
	}
}

// forceSave asks the engine for resume data that bypasses the throttle.
func (c *Controller) forceSave(reason string) {
	c.throttle.requestForced()
	if err := c.handle.SaveResumeData(); err != nil {
		c.throttle.cancelForced()
		c.logger.Warnf("request resume data (%s): %v", reason, err)
	}
}

func (c *Controller) Pause() {
	if !c.handle.Valid() {
		return
	}
	c.mu.Lock()
	c.paused = true
	c.mu.Unlock()

	if err := c.handle.SetAutoManaged(false); err != nil {
		c.logger.Warnf("disable auto management: %v", err)
	}
	if err := c.handle.Pause(); err != nil {
		c.logger.Warnf("pause: %v", err)
	}
	c.forceSave("pause")
}

func (c *Controller) Resume() {
	if !c.handle.Valid() {
		return
	}
	c.mu.Lock()
	c.paused = false
	c.mu.Unlock()

	if err := c.handle.SetAutoManaged(true); err != nil {
		c.logger.Warnf("enable auto management: %v", err)
	}
	if err := c.handle.Resume(); err != nil {
		c.logger.Warnf("resume: %v", err)
	}
	c.forceSave("resume")
}

// PrioritizeFiles applies one priority per file. A list whose length differs
// from the file count is ignored; nil applies normal priority everywhere.
func (c *Controller) PrioritizeFiles(priorities []domain.Priority) {
	if !c.handle.Valid() {
		return
	}
	files, err := c.handle.Files()
	if err != nil {
		c.logger.Warnf("prioritize files: %v", err)
		return
	}

	if priorities != nil {
		if len(priorities) != len(files) {
			c.logger.Warnf("prioritize files: got %d priorities for %d files", len(priorities), len(files))
			return
		}
	} else {
		priorities = make([]domain.Priority, len(files))
		for i := range priorities {
			priorities[i] = domain.PriorityNormal
		}
	}

	if err := c.handle.PrioritizeFiles(priorities); err != nil {
		c.logger.Warnf("prioritize files: %v", err)
		return
	}

	c.mu.Lock()
	if len(c.torrent.Files) != len(files) {
		c.torrent.Files = make([]domain.TorrentFile, len(files))
		for i, f := range files {
			c.torrent.Files[i] = domain.TorrentFile{TorrentID: c.torrent.ID, Path: f.Path, Size: f.Size}
		}
	}
	for i := range c.torrent.Files {
		c.torrent.Files[i].Priority = priorities[i]
	}
	c.mu.Unlock()
}

// Remove captures the incomplete files and asks the engine to drop the
// torrent. Deletion happens once the engine confirms the removal.
func (c *Controller) Remove(withFiles bool) {
	c.mu.Lock()
	t := c.torrent
	c.mu.Unlock()

	captured := captureIncompleteFiles(c.handle, t.DownloadPath, t.TorrentFilePath, c.logger)

	c.mu.Lock()
	c.pendingIncomplete = captured
	c.mu.Unlock()

	if !c.handle.Valid() {
		return
	}
	if err := c.session.Remove(c.handle, withFiles); err != nil {
		c.logger.Errorf("remove torrent: %v", err)
	}
}

func (c *Controller) ReplaceTrackers(urls []string) {
	if err := c.handle.ReplaceTrackers(urls); err != nil {
		c.logger.Warnf("replace trackers: %v", err)
	}
	c.forceSave("replace trackers")
}

func (c *Controller) AddTrackers(urls []string) {
	if err := c.handle.AddTrackers(urls); err != nil {
		c.logger.Warnf("add trackers: %v", err)
	}
	c.forceSave("add trackers")
}

func (c *Controller) SetDownloadSpeedLimit(limit int) {
	if err := c.handle.SetDownloadLimit(limit); err != nil {
		c.logger.Warnf("set download limit: %v", err)
	}
	c.forceSave("download limit")
}

func (c *Controller) SetUploadSpeedLimit(limit int) {
	if err := c.handle.SetUploadLimit(limit); err != nil {
		c.logger.Warnf("set upload limit: %v", err)
	}
	c.forceSave("upload limit")
}

func (c *Controller) DownloadSpeedLimit() int { return c.handle.DownloadLimit() }

func (c *Controller) UploadSpeedLimit() int { return c.handle.UploadLimit() }

// SetDownloadPath starts a storage move that replaces files already at the
// destination. The outcome arrives later as a moved callback.
func (c *Controller) SetDownloadPath(path string) {
	if err := c.handle.MoveStorage(path, engine.AlwaysReplace); err != nil {
		c.logger.WithField("path", path).Errorf("change save path: %v", err)
	}
}

func (c *Controller) ForceRecheck() {
	if err := c.handle.ForceRecheck(); err != nil {
		c.logger.Warnf("force recheck: %v", err)
	}
}

func (c *Controller) RequestTrackerAnnounce() {
	if err := c.handle.ForceReannounce(); err != nil {
		c.logger.Warnf("tracker announce: %v", err)
	}
}

func (c *Controller) RequestTrackerScrape() {
	if err := c.handle.ScrapeTracker(); err != nil {
		c.logger.Warnf("tracker scrape: %v", err)
	}
}

func (c *Controller) SetSequentialDownload(sequential bool) {
	if err := c.handle.SetSequentialDownload(sequential); err != nil {
		c.logger.Warnf("set sequential download: %v", err)
	}
}

func (c *Controller) MakeMagnet() string {
	uri, err := c.handle.MakeMagnet()
	if err != nil {
		c.logger.Debugf("make magnet: %v", err)
		return ""
	}
	return uri
}

// status returns the engine snapshot, or a zero value when the handle is gone.
func (c *Controller) status() engine.Status {
	st, err := c.handle.Status()
	if err != nil {
		return engine.Status{}
	}
	return st
}

func (c *Controller) controllerPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

func (c *Controller) StateCode() domain.TorrentState {
	return DeriveState(StateInputs{
		EngineRunning:    c.session.Running(),
		SessionPaused:    c.session.Paused(),
		ControllerPaused: c.controllerPaused(),
		HandleValid:      c.handle.Valid(),
		Status:           c.status(),
	})
}

func (c *Controller) Progress() int {
	return ProgressPercent(c.status().Progress)
}

func (c *Controller) ETA() int64 {
	st := c.status()
	return ETA(c.StateCode(), c.handle.TotalSize(), st.TotalDone, st.DownloadRate)
}

func (c *Controller) ShareRatio() float64 {
	st := c.status()
	return ShareRatio(st.AllTimeUpload, st.AllTimeDownload, st.TotalDone)
}

// IncompleteFiles lists, sorted, the files a removal would delete right now.
func (c *Controller) IncompleteFiles() []string {
	t := c.Torrent()
	set := captureIncompleteFiles(c.handle, t.DownloadPath, t.TorrentFilePath, c.logger)
	out := make([]string, 0, len(set))
	for path := range set {
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}

func (c *Controller) IsPaused() bool {
	return c.status().Paused || c.controllerPaused() || c.session.Paused() || !c.session.Running()
}

func (c *Controller) IsSeeding() bool { return c.status().Seeding }

func (c *Controller) IsFinished() bool { return c.status().Finished }

func (c *Controller) IsDownloading() bool { return c.DownloadSpeed() > 0 }

func (c *Controller) IsSequentialDownload() bool { return c.status().Sequential }

func (c *Controller) DownloadSpeed() int64 {
	st := c.status()
	if st.Finished || st.Seeding || c.IsPaused() {
		return 0
	}
	return st.DownloadRate
}

func (c *Controller) UploadSpeed() int64 {
	st := c.status()
	if (st.Finished && !st.Seeding) || c.IsPaused() {
		return 0
	}
	return st.UploadRate
}

func (c *Controller) Size() int64 { return c.handle.TotalSize() }

func (c *Controller) Status() engine.Status { return c.status() }

func (c *Controller) ActiveTime() time.Duration { return c.status().ActiveTime }

func (c *Controller) SeedingTime() time.Duration { return c.status().SeedingTime }

func (c *Controller) ReceivedBytes() int64 { return c.status().TotalPayloadDownload }

func (c *Controller) TotalReceivedBytes() int64 { return c.status().AllTimeDownload }

func (c *Controller) SentBytes() int64 { return c.status().TotalPayloadUpload }

func (c *Controller) TotalSentBytes() int64 { return c.status().AllTimeUpload }

func (c *Controller) ConnectedPeers() int { return c.status().NumPeers }

func (c *Controller) ConnectedSeeds() int { return c.status().NumSeeds }

func (c *Controller) TotalPeers() int { return c.status().ListPeers }

func (c *Controller) TotalSeeds() int { return c.status().ListSeeds }

func (c *Controller) TotalWanted() int64 { return c.status().TotalWanted }

func (c *Controller) Pieces() []bool { return c.status().Pieces }

func (c *Controller) NumDownloadedPieces() int { return c.status().NumPieces }

func (c *Controller) Files() []engine.File {
	files, err := c.handle.Files()
	if err != nil {
		return nil
	}
	return files
}

func (c *Controller) FilesReceivedBytes() []int64 {
	progress, err := c.handle.FileProgress()
	if err != nil {
		return nil
	}
	return progress
}

func (c *Controller) Trackers() []engine.Tracker {
	trackers, err := c.handle.Trackers()
	if err != nil {
		return nil
	}
	return trackers
}

// TrackerURLs returns the distinct announce URLs, sorted.
func (c *Controller) TrackerURLs() []string {
	seen := make(map[string]struct{})
	var urls []string
	for _, tr := range c.Trackers() {
		if _, ok := seen[tr.URL]; ok {
			continue
		}
		seen[tr.URL] = struct{}{}
		urls = append(urls, tr.URL)
	}
	sort.Strings(urls)
	return urls
}

func (c *Controller) Peers() []engine.Peer {
	peers, err := c.handle.Peers()
	if err != nil {
		return nil
	}
	return peers
}

// Snapshot returns the torrent reference with its live metrics filled in.
func (c *Controller) Snapshot() domain.Torrent {
	t := c.Torrent()
	st := c.status()
	state := c.StateCode()

	if name := c.handle.Name(); name != "" {
		t.Name = name
	}
	t.State = state
	t.Progress = ProgressPercent(st.Progress)
	t.DownloadSpeed = c.DownloadSpeed()
	t.UploadSpeed = c.UploadSpeed()
	t.TotalSize = c.handle.TotalSize()
	t.TotalDone = st.TotalDone
	t.ShareRatio = ShareRatio(st.AllTimeUpload, st.AllTimeDownload, st.TotalDone)
	t.ETA = ETA(state, t.TotalSize, st.TotalDone, st.DownloadRate)
	t.Peers = st.NumPeers
	t.Seeds = st.NumSeeds
	t.Paused = c.controllerPaused()
	t.Sequential = st.Sequential

	if files, err := c.handle.Files(); err == nil {
		progress, _ := c.handle.FileProgress()
		prev := t.Files
		t.Files = make([]domain.TorrentFile, len(files))
		for i, f := range files {
			t.Files[i] = domain.TorrentFile{
				TorrentID: t.ID,
				Path:      f.Path,
				Size:      f.Size,
				Priority:  domain.PriorityNormal,
			}
			if len(prev) == len(files) {
				t.Files[i].ID = prev[i].ID
				t.Files[i].Priority = prev[i].Priority
			}
			if i < len(progress) {
				t.Files[i].Received = progress[i]
			}
		}
	}
	return t
}
