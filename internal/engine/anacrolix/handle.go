package anacrolix

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/anacrolix/torrent"
	"github.com/anacrolix/torrent/metainfo"
	"github.com/anacrolix/torrent/storage"
	"github.com/sirupsen/logrus"

	"torrentctl/internal/domain"
	"torrentctl/internal/engine"
)

const sequentialWindowSize = 8

// Handle is the engine.Handle for one anacrolix torrent. The underlying
// *torrent.Torrent is swapped when storage moves, so callers keep the same
// Handle for the torrent's whole life in the session.
type Handle struct {
	session  *Session
	infoHash string
	hash     metainfo.Hash
	logger   *logrus.Entry

	mu        sync.Mutex
	t         *torrent.Torrent
	store     storage.ClientImplCloser
	dir       string
	released  bool
	moving    bool
	info      *metainfo.Info
	infoBytes []byte
	files     []engine.File
	spans     []fileSpan
	trackers  [][]string

	priorities  []domain.Priority
	pending     []domain.Priority
	paused      bool
	autoManaged bool
	sequential  bool
	window      []int

	down, up                   bandwidth
	throttledDown, throttledUp bool
	downUntil, upUntil         time.Time

	speed                 speedSampler
	downRate, upRate      int64
	lastRead, lastWritten int64

	baseDownloaded, baseUploaded int64
	activeTime, seedingTime      time.Duration
	lastTick                     time.Time

	last     engine.Status
	polled   engine.Status
	observed bool
}

var _ engine.Handle = (*Handle)(nil)

func newHandle(s *Session, t *torrent.Torrent, store storage.ClientImplCloser, dir string, trackers [][]string) *Handle {
	hash := t.InfoHash()
	return &Handle{
		session:     s,
		infoHash:    hash.HexString(),
		hash:        hash,
		logger:      s.logger.WithField("info_hash", hash.HexString()),
		t:           t,
		store:       store,
		dir:         dir,
		trackers:    trackers,
		autoManaged: true,
	}
}

// start applies the transfer state. Metadata already present (descriptor or
// resume blob) is applied before start returns; magnets wait for it in the
// background and announce it with MetadataReceived.
func (h *Handle) start() {
	h.mu.Lock()
	t := h.t
	h.applyTransferLocked()
	if t.Info() != nil {
		h.onInfoLocked()
		h.mu.Unlock()
		return
	}
	h.mu.Unlock()

	go func() {
		select {
		case <-t.GotInfo():
		case <-t.Closed():
			return
		case <-h.session.done:
			return
		}
		h.mu.Lock()
		if h.released || h.t != t || h.info != nil {
			h.mu.Unlock()
			return
		}
		h.onInfoLocked()
		h.mu.Unlock()
		h.session.emit(h.infoHash, engine.MetadataReceived{})
	}()
}

func (h *Handle) onInfoLocked() {
	h.info = h.t.Info()
	mi := h.t.Metainfo()
	h.infoBytes = mi.InfoBytes

	tfiles := h.t.Files()
	h.files = make([]engine.File, len(tfiles))
	h.spans = make([]fileSpan, len(tfiles))
	for i, f := range tfiles {
		h.files[i] = engine.File{Path: filepath.FromSlash(f.Path()), Size: f.Length()}
		h.spans[i] = fileSpan{offset: f.Offset(), length: f.Length()}
	}

	prios := h.pending
	h.pending = nil
	if len(prios) != len(tfiles) {
		prios = make([]domain.Priority, len(tfiles))
		for i := range prios {
			prios[i] = domain.PriorityNormal
		}
	}
	h.applyPrioritiesLocked(prios)
	h.logger.WithField("files", len(tfiles)).Info("torrent metadata received")
}

func (h *Handle) applyPrioritiesLocked(prios []domain.Priority) {
	h.priorities = prios
	t := h.torrentLocked()
	if t == nil {
		return
	}
	for i, f := range t.Files() {
		if i < len(prios) {
			f.SetPriority(piecePriority(prios[i]))
		}
	}
}

// torrentLocked returns the live torrent, or nil while released or moving.
func (h *Handle) torrentLocked() *torrent.Torrent {
	if h.released || h.moving {
		return nil
	}
	return h.t
}

func (h *Handle) validLocked() bool {
	return !h.released && h.session.Running()
}

func (h *Handle) applyTransfer() {
	h.mu.Lock()
	h.applyTransferLocked()
	h.mu.Unlock()
}

// applyTransferLocked hard-pauses the torrent when it or the session is
// paused, and otherwise honours the rate throttles.
func (h *Handle) applyTransferLocked() {
	t := h.torrentLocked()
	if t == nil {
		return
	}
	if h.paused || h.session.Paused() {
		t.DisallowDataDownload()
		t.DisallowDataUpload()
		t.SetMaxEstablishedConns(0)
		return
	}
	t.SetMaxEstablishedConns(defaultMaxConns)
	if h.throttledDown {
		t.DisallowDataDownload()
	} else {
		t.AllowDataDownload()
	}
	if h.throttledUp {
		t.DisallowDataUpload()
	} else {
		t.AllowDataUpload()
	}
}

// release drops the torrent and closes its storage. A move in flight
// notices the flag and discards the reopened torrent.
func (h *Handle) release() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return
	}
	h.released = true
	if h.moving {
		return
	}
	h.t.Drop()
	if err := h.store.Close(); err != nil {
		h.logger.Warnf("close storage: %v", err)
	}
}

func (h *Handle) downloadDir() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dir
}

func (h *Handle) Valid() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.validLocked()
}

func (h *Handle) InfoHash() string { return h.infoHash }

func (h *Handle) HasMetadata() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.info != nil
}

func (h *Handle) Name() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.info != nil {
		return h.info.BestName()
	}
	if t := h.torrentLocked(); t != nil {
		return t.Name()
	}
	return ""
}

func (h *Handle) Status() (engine.Status, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.validLocked() {
		return engine.Status{}, engine.ErrInvalidHandle
	}
	return h.statusLocked(), nil
}

func (h *Handle) statusLocked() engine.Status {
	t := h.torrentLocked()
	if t == nil {
		st := h.last
		st.State = protocolState(stateInputs{hasInfo: h.info != nil, moving: true})
		st.DownloadRate, st.UploadRate = 0, 0
		return st
	}

	stats := t.Stats()
	read := stats.BytesReadUsefulData.Int64()
	written := stats.BytesWrittenData.Int64()
	sessionPaused := h.session.Paused()

	st := engine.Status{
		DownloadRate:         h.downRate,
		UploadRate:           h.upRate,
		TotalPayloadDownload: read,
		TotalPayloadUpload:   written,
		AllTimeDownload:      h.baseDownloaded + read,
		AllTimeUpload:        h.baseUploaded + written,
		NumPeers:             stats.ActivePeers,
		NumSeeds:             stats.ConnectedSeeders,
		ListPeers:            stats.TotalPeers,
		ListSeeds:            stats.ConnectedSeeders,
		Paused:               h.paused,
		AutoManaged:          h.autoManaged,
		Sequential:           h.sequential,
		ActiveTime:           h.activeTime,
		SeedingTime:          h.seedingTime,
	}

	if h.info == nil {
		st.State = protocolState(stateInputs{})
		h.last = st
		return st
	}

	complete, checking := pieceStates(t)
	progress := fileProgress(h.spans, h.info.PieceLength, complete)
	wanted, done := wantedTotals(h.spans, progress, h.priorities)

	st.Pieces = complete
	st.NumPieces = countTrue(complete)
	st.TotalDone = t.BytesCompleted()
	st.TotalWanted = wanted
	st.Progress = progressRatio(done, wanted)
	st.Finished = !checking && done >= wanted
	st.Seeding = st.Finished && t.BytesMissing() == 0 && h.session.cfg.Seed && !h.paused && !sessionPaused
	st.State = protocolState(stateInputs{
		hasInfo:  true,
		checking: checking,
		finished: st.Finished,
		seeding:  st.Seeding,
	})
	h.last = st
	return st
}

func (h *Handle) Files() ([]engine.File, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.validLocked() {
		return nil, engine.ErrInvalidHandle
	}
	return append([]engine.File(nil), h.files...), nil
}

func (h *Handle) TotalSize() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.validLocked() || h.info == nil {
		return 0
	}
	return h.info.TotalLength()
}

func (h *Handle) FileProgress() ([]int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.validLocked() {
		return nil, engine.ErrInvalidHandle
	}
	if h.info == nil {
		return nil, nil
	}
	complete := h.last.Pieces
	if t := h.torrentLocked(); t != nil {
		complete, _ = pieceStates(t)
	}
	return fileProgress(h.spans, h.info.PieceLength, complete), nil
}

func (h *Handle) Trackers() ([]engine.Tracker, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.validLocked() {
		return nil, engine.ErrInvalidHandle
	}
	var out []engine.Tracker
	for tier, urls := range h.trackers {
		for _, u := range urls {
			out = append(out, engine.Tracker{URL: u, Tier: tier})
		}
	}
	return out, nil
}

func (h *Handle) Peers() ([]engine.Peer, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.validLocked() {
		return nil, engine.ErrInvalidHandle
	}
	t := h.torrentLocked()
	if t == nil {
		return nil, nil
	}
	conns := t.PeerConns()
	out := make([]engine.Peer, 0, len(conns))
	for _, pc := range conns {
		name, _ := pc.PeerClientName.Load().(string)
		out = append(out, engine.Peer{Addr: pc.RemoteAddr.String(), Client: name})
	}
	return out, nil
}

func (h *Handle) DownloadLimit() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.down.limit
}

func (h *Handle) UploadLimit() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.up.limit
}

func (h *Handle) MakeMagnet() (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.validLocked() {
		return "", engine.ErrInvalidHandle
	}
	m := metainfo.Magnet{InfoHash: h.hash, Trackers: flattenTiers(h.trackers)}
	if h.info != nil {
		m.DisplayName = h.info.BestName()
	}
	return m.String(), nil
}

// WriteTorrentFile stores the torrent's metainfo as a .torrent descriptor.
func (h *Handle) WriteTorrentFile(path string) error {
	h.mu.Lock()
	infoBytes := h.infoBytes
	trackers := h.trackers
	h.mu.Unlock()
	if infoBytes == nil {
		return engine.ErrNoMetadata
	}

	mi := metainfo.MetaInfo{
		InfoBytes:    infoBytes,
		AnnounceList: trackers,
		CreatedBy:    "torrentctl",
		CreationDate: time.Now().Unix(),
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create descriptor dir: %w", err)
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create descriptor: %w", err)
	}
	if err := mi.Write(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write descriptor: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close descriptor: %w", err)
	}
	return os.Rename(tmp, path)
}

// SetAutoManaged records the flag; the engine has no queue to manage.
func (h *Handle) SetAutoManaged(managed bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.validLocked() {
		return engine.ErrInvalidHandle
	}
	h.autoManaged = managed
	return nil
}

func (h *Handle) Pause() error {
	return h.setPaused(true)
}

func (h *Handle) Resume() error {
	return h.setPaused(false)
}

func (h *Handle) setPaused(paused bool) error {
	h.mu.Lock()
	if !h.validLocked() {
		h.mu.Unlock()
		return engine.ErrInvalidHandle
	}
	changed := h.paused != paused
	h.paused = paused
	h.applyTransferLocked()
	h.mu.Unlock()

	if !changed {
		return nil
	}
	if paused {
		h.session.emit(h.infoHash, engine.TorrentPaused{})
	} else {
		h.session.emit(h.infoHash, engine.TorrentResumed{})
	}
	return nil
}

func (h *Handle) ForceRecheck() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.validLocked() {
		return engine.ErrInvalidHandle
	}
	if h.info == nil {
		return engine.ErrNoMetadata
	}
	t := h.torrentLocked()
	if t == nil {
		return errMoveInProgress
	}
	go t.VerifyData()
	return nil
}

// ForceReannounce announces to every DHT server right away.
func (h *Handle) ForceReannounce() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.validLocked() {
		return engine.ErrInvalidHandle
	}
	t := h.torrentLocked()
	if t == nil {
		return errMoveInProgress
	}
	for _, srv := range h.session.client.DhtServers() {
		_, stop, err := t.AnnounceToDht(srv)
		if err != nil {
			h.logger.Warnf("dht announce: %v", err)
			continue
		}
		time.AfterFunc(time.Minute, stop)
	}
	return nil
}

func (h *Handle) ScrapeTracker() error {
	if !h.Valid() {
		return engine.ErrInvalidHandle
	}
	return engine.ErrUnsupported
}

func (h *Handle) PrioritizeFiles(priorities []domain.Priority) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.validLocked() {
		return engine.ErrInvalidHandle
	}
	prios := append([]domain.Priority(nil), priorities...)
	if h.info == nil {
		h.pending = prios
		return nil
	}
	if len(prios) != len(h.files) {
		return fmt.Errorf("got %d priorities for %d files", len(prios), len(h.files))
	}
	h.applyPrioritiesLocked(prios)
	return nil
}

func (h *Handle) SetDownloadLimit(limit int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.validLocked() {
		return engine.ErrInvalidHandle
	}
	h.down.set(limit)
	if h.throttledDown {
		h.throttledDown = false
		h.downUntil = time.Time{}
		h.applyTransferLocked()
	}
	return nil
}

func (h *Handle) SetUploadLimit(limit int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.validLocked() {
		return engine.ErrInvalidHandle
	}
	h.up.set(limit)
	if h.throttledUp {
		h.throttledUp = false
		h.upUntil = time.Time{}
		h.applyTransferLocked()
	}
	return nil
}

// ReplaceTrackers installs urls as the only trackers, one tier each.
func (h *Handle) ReplaceTrackers(urls []string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.validLocked() {
		return engine.ErrInvalidHandle
	}
	tiers := make([][]string, 0, len(urls))
	for _, u := range urls {
		tiers = append(tiers, []string{u})
	}
	h.trackers = tiers
	if t := h.torrentLocked(); t != nil {
		t.ModifyTrackers(tiers)
	}
	return nil
}

// AddTrackers appends the urls not already known, one tier each.
func (h *Handle) AddTrackers(urls []string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.validLocked() {
		return engine.ErrInvalidHandle
	}
	known := make(map[string]struct{})
	for _, tier := range h.trackers {
		for _, u := range tier {
			known[u] = struct{}{}
		}
	}
	t := h.torrentLocked()
	for _, u := range urls {
		if _, ok := known[u]; ok {
			continue
		}
		known[u] = struct{}{}
		h.trackers = append(h.trackers, []string{u})
		if t != nil {
			t.AddTrackers([][]string{{u}})
		}
	}
	return nil
}

func (h *Handle) SetSequentialDownload(sequential bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.validLocked() {
		return engine.ErrInvalidHandle
	}
	h.sequential = sequential
	if !sequential {
		if t := h.torrentLocked(); t != nil {
			for _, p := range h.window {
				t.Piece(p).SetPriority(torrent.PiecePriorityNone)
			}
		}
		h.window = nil
	}
	return nil
}

// SaveResumeData encodes the torrent's fast-resume record and delivers it
// as a ResumeDataReady event.
func (h *Handle) SaveResumeData() error {
	blob, err := h.ResumeData()
	if err != nil {
		return err
	}
	h.session.emit(h.infoHash, engine.ResumeDataReady{Data: blob})
	return nil
}

// ResumeData encodes the fast-resume record and returns it directly instead
// of through the event stream.
func (h *Handle) ResumeData() ([]byte, error) {
	h.mu.Lock()
	if !h.validLocked() {
		h.mu.Unlock()
		return nil, engine.ErrInvalidHandle
	}
	rd := h.resumeDataLocked()
	h.mu.Unlock()

	blob, err := rd.encode()
	if err != nil {
		return nil, fmt.Errorf("encode resume data: %w", err)
	}
	return blob, nil
}

func (h *Handle) resumeDataLocked() *resumeData {
	rd := &resumeData{
		InfoHash:        h.infoHash,
		Info:            h.infoBytes,
		Trackers:        h.trackers,
		SavePath:        h.dir,
		DownloadLimit:   h.down.limit,
		UploadLimit:     h.up.limit,
		Paused:          boolInt(h.paused),
		AutoManaged:     boolInt(h.autoManaged),
		Sequential:      boolInt(h.sequential),
		TotalDownloaded: h.baseDownloaded,
		TotalUploaded:   h.baseUploaded,
		ActiveTime:      int64(h.activeTime / time.Second),
		SeedingTime:     int64(h.seedingTime / time.Second),
	}
	if h.info != nil {
		rd.Name = h.info.BestName()
	}
	prios := h.priorities
	if prios == nil {
		prios = h.pending
	}
	for _, p := range prios {
		rd.Priorities = append(rd.Priorities, int(p))
	}
	if t := h.torrentLocked(); t != nil {
		stats := t.Stats()
		rd.TotalDownloaded += stats.BytesReadUsefulData.Int64()
		rd.TotalUploaded += stats.BytesWrittenData.Int64()
	}
	return rd
}

// tick samples rates, enforces limits and turns status changes into events.
func (h *Handle) tick(now time.Time) {
	h.mu.Lock()
	t := h.torrentLocked()
	if t == nil {
		h.mu.Unlock()
		return
	}

	stats := t.Stats()
	read := stats.BytesReadUsefulData.Int64()
	written := stats.BytesWrittenData.Int64()
	h.downRate, h.upRate = h.speed.sample(now, read, written)
	h.throttleLocked(now, read-h.lastRead, written-h.lastWritten)
	h.lastRead, h.lastWritten = read, written

	st := h.statusLocked()
	if !h.lastTick.IsZero() {
		elapsed := now.Sub(h.lastTick)
		if !st.Paused && !h.session.Paused() {
			h.activeTime += elapsed
		}
		if st.Seeding {
			h.seedingTime += elapsed
		}
	}
	h.lastTick = now

	if h.sequential && h.info != nil {
		h.advanceWindowLocked(t, st.Pieces)
	}

	prev := h.polled
	h.polled = st
	var events []engine.Event
	if h.observed {
		if st.State != prev.State {
			events = append(events, engine.StateChanged{Prev: prev.State, Curr: st.State})
		}
		if p := firstNewPiece(prev.Pieces, st.Pieces); p >= 0 {
			events = append(events, engine.BlockFinished{Piece: p})
		}
		if st.Finished && !prev.Finished {
			events = append(events, engine.TorrentFinished{})
		}
	}
	h.observed = true
	events = append(events, engine.Stats{DownloadRate: h.downRate, UploadRate: h.upRate})
	h.mu.Unlock()

	for _, ev := range events {
		h.session.emit(h.infoHash, ev)
	}
}

func (h *Handle) throttleLocked(now time.Time, readDelta, writtenDelta int64) {
	if d := h.down.consume(now, readDelta); d > 0 {
		h.downUntil = now.Add(d)
	}
	if d := h.up.consume(now, writtenDelta); d > 0 {
		h.upUntil = now.Add(d)
	}
	down := now.Before(h.downUntil)
	up := now.Before(h.upUntil)
	if down != h.throttledDown || up != h.throttledUp {
		h.throttledDown, h.throttledUp = down, up
		h.applyTransferLocked()
	}
}

// advanceWindowLocked keeps the next few wanted pieces at read-ahead
// priority so data arrives roughly in order.
func (h *Handle) advanceWindowLocked(t *torrent.Torrent, complete []bool) {
	wanted := wantedPieces(h.spans, h.priorities, h.info.PieceLength, len(complete))
	next := sequentialWindow(complete, wanted, sequentialWindowSize)

	keep := make(map[int]struct{}, len(next))
	for _, p := range next {
		keep[p] = struct{}{}
	}
	for _, p := range h.window {
		if _, ok := keep[p]; !ok {
			t.Piece(p).SetPriority(torrent.PiecePriorityNone)
		}
	}
	for _, p := range next {
		t.Piece(p).SetPriority(torrent.PiecePriorityNext)
	}
	h.window = next
}

// MoveStorage relocates the data in the background. The torrent is dropped,
// its files moved, and the same info re-added at the new location; the
// outcome arrives as StorageMoved or StorageMoveFailed.
func (h *Handle) MoveStorage(path string, policy engine.MovePolicy) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.validLocked() {
		return engine.ErrInvalidHandle
	}
	if h.moving {
		return errMoveInProgress
	}
	if h.info == nil {
		return engine.ErrNoMetadata
	}
	dst, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve destination: %w", err)
	}

	t, store, src := h.t, h.store, h.dir
	stats := t.Stats()
	h.baseDownloaded += stats.BytesReadUsefulData.Int64()
	h.baseUploaded += stats.BytesWrittenData.Int64()
	h.lastRead, h.lastWritten = 0, 0
	h.speed.reset()
	h.window = nil
	h.moving = true

	rels := make([]string, len(h.files))
	for i, f := range h.files {
		rels[i] = f.Path
	}
	go h.relocate(t, store, src, dst, rels, policy)
	return nil
}

func (h *Handle) relocate(t *torrent.Torrent, store storage.ClientImplCloser, src, dst string, rels []string, policy engine.MovePolicy) {
	logger := h.logger.WithField("path", dst)
	t.Drop()
	if err := store.Close(); err != nil {
		logger.Warnf("close storage before move: %v", err)
	}

	var moveErr error
	if filepath.Clean(src) != filepath.Clean(dst) {
		moveErr = moveData(src, dst, rels, policy)
		if moveErr == nil {
			if err := moveParts(src, dst, h.infoHash); err != nil {
				logger.Warnf("move piece completion, pieces will be rehashed: %v", err)
			}
		}
	}
	target := dst
	if moveErr != nil {
		target = src
		logger.Errorf("move storage: %v", moveErr)
	}

	h.mu.Lock()
	mi := &metainfo.MetaInfo{InfoBytes: h.infoBytes, AnnounceList: h.trackers}
	h.mu.Unlock()

	var (
		nt     *torrent.Torrent
		nstore storage.ClientImplCloser
	)
	spec, err := torrent.TorrentSpecFromMetaInfoErr(mi)
	if err == nil {
		nt, nstore, err = h.session.open(spec, target)
	}

	h.mu.Lock()
	h.moving = false
	if h.released {
		h.mu.Unlock()
		if err == nil {
			nt.Drop()
			_ = nstore.Close()
		}
		return
	}
	if err != nil {
		h.released = true
		h.mu.Unlock()
		logger.Errorf("reopen torrent after move: %v", err)
		h.session.emit(h.infoHash, engine.StorageMoveFailed{Path: dst, Err: err})
		return
	}
	h.t, h.store, h.dir = nt, nstore, target
	h.applyPrioritiesLocked(h.priorities)
	h.applyTransferLocked()
	h.mu.Unlock()

	if moveErr != nil {
		h.session.emit(h.infoHash, engine.StorageMoveFailed{Path: dst, Err: moveErr})
		return
	}
	logger.Info("storage moved")
	h.session.emit(h.infoHash, engine.StorageMoved{Path: dst})
}
