package download

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"torrentctl/internal/domain"
	"torrentctl/internal/engine"
)

type controllerFixture struct {
	session  *fakeSession
	handle   *fakeHandle
	listener *recordingListener
	store    *memStore
	clock    *fakeClock
	ctrl     *Controller
	id       string
}

func newControllerFixture(t *testing.T, torrent domain.Torrent) *controllerFixture {
	t.Helper()
	f := &controllerFixture{
		session:  newFakeSession(),
		handle:   newFakeHandle(),
		listener: &recordingListener{},
		store:    newMemStore(),
		clock:    newFakeClock(),
	}
	if torrent.ID == "" {
		torrent.ID = "torrent-1"
	}
	f.id = torrent.ID
	f.ctrl = New(f.session, f.handle, torrent, f.listener, f.store, Config{
		SyncInterval: 10 * time.Second,
		Logger:       quietLogger(),
		Clock:        f.clock.Now,
	})
	t.Cleanup(f.ctrl.Close)
	return f
}

func (f *controllerFixture) emit(ev engine.Event) {
	f.session.emit(f.handle.infoHash, ev)
}

func TestControllerEventCallbacks(t *testing.T) {
	tests := []struct {
		name  string
		event engine.Event
		want  []string
	}{
		{"block finished", engine.BlockFinished{Piece: 3}, []string{"state_changed:torrent-1"}},
		{"state changed", engine.StateChanged{Curr: engine.ProtocolDownloading}, []string{"state_changed:torrent-1"}},
		{"stats", engine.Stats{}, []string{"state_changed:torrent-1"}},
		{"metadata", engine.MetadataReceived{}, []string{"metadata:torrent-1", "state_changed:torrent-1"}},
		{"finished", engine.TorrentFinished{}, []string{"finished:torrent-1"}},
		{"paused", engine.TorrentPaused{}, []string{"paused:torrent-1"}},
		{"resumed", engine.TorrentResumed{}, []string{"resumed:torrent-1"}},
		{"removed", engine.TorrentRemoved{}, []string{"removed:torrent-1"}},
		{"moved", engine.StorageMoved{Path: "/data/new"}, []string{"moved_ok:torrent-1"}},
		{"move failed", engine.StorageMoveFailed{Path: "/data/new", Err: errDiskFull}, []string{"moved_failed:torrent-1"}},
		{"resume data", engine.ResumeDataReady{Data: []byte("d1:ai1ee")}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newControllerFixture(t, domain.Torrent{})
			f.emit(tt.event)
			f.ctrl.Flush()
			assert.Equal(t, tt.want, f.listener.log())
		})
	}
}

func TestControllerWithoutListener(t *testing.T) {
	session := newFakeSession()
	handle := newFakeHandle()
	ctrl := New(session, handle, domain.Torrent{ID: "t"}, nil, nil, Config{Logger: quietLogger()})
	defer ctrl.Close()

	assert.NotPanics(t, func() {
		session.emit(handle.infoHash, engine.TorrentFinished{})
		session.emit(handle.infoHash, engine.TorrentRemoved{})
		session.emit(handle.infoHash, engine.ResumeDataReady{Data: []byte("x")})
	})
}

func TestControllerLifecycleEventsForceSave(t *testing.T) {
	tests := []struct {
		name  string
		event engine.Event
	}{
		{"finished", engine.TorrentFinished{}},
		{"moved", engine.StorageMoved{Path: "/data/new"}},
		{"move failed", engine.StorageMoveFailed{Err: errDiskFull}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newControllerFixture(t, domain.Torrent{})
			f.emit(tt.event)
			assert.Equal(t, 1, f.handle.saveCount())
		})
	}
}

func TestControllerResumeThrottleWhileDownloading(t *testing.T) {
	f := newControllerFixture(t, domain.Torrent{})
	f.handle.setStatus(engine.Status{State: engine.ProtocolDownloading})

	f.emit(engine.ResumeDataReady{Data: []byte("first")})
	f.clock.Advance(time.Second)
	f.emit(engine.ResumeDataReady{Data: []byte("second")})
	f.ctrl.Flush()

	assert.Equal(t, 1, f.store.count(f.id))
}

func TestControllerResumeThrottleWhileFinished(t *testing.T) {
	f := newControllerFixture(t, domain.Torrent{})
	f.handle.setStatus(engine.Status{State: engine.ProtocolSeeding, Finished: true})

	f.emit(engine.ResumeDataReady{Data: []byte("first")})
	f.clock.Advance(time.Second)
	f.emit(engine.ResumeDataReady{Data: []byte("second")})
	f.ctrl.Flush()

	assert.Equal(t, 2, f.store.count(f.id))
}

func TestControllerResumeForcedByCommand(t *testing.T) {
	f := newControllerFixture(t, domain.Torrent{})
	f.handle.setStatus(engine.Status{State: engine.ProtocolDownloading})

	f.emit(engine.ResumeDataReady{Data: []byte("routine")})
	f.clock.Advance(time.Second)

	f.ctrl.SetDownloadSpeedLimit(1024)
	f.emit(engine.ResumeDataReady{Data: []byte("after limit change")})
	f.ctrl.Flush()

	assert.Equal(t, 2, f.store.count(f.id))
	assert.Equal(t, 1024, f.ctrl.DownloadSpeedLimit())
}

func TestControllerResumeSaveFailureAbsorbed(t *testing.T) {
	f := newControllerFixture(t, domain.Torrent{})
	f.store.err = errDiskFull

	assert.NotPanics(t, func() {
		f.emit(engine.ResumeDataReady{Data: []byte("blob")})
		f.ctrl.Flush()
	})
	assert.Equal(t, 0, f.store.count(f.id))
}

func TestControllerPauseResume(t *testing.T) {
	f := newControllerFixture(t, domain.Torrent{})

	f.ctrl.Pause()
	assert.Equal(t, []string{"auto_managed:off", "pause"}, f.handle.callLog())
	assert.Equal(t, 1, f.handle.saveCount())
	assert.Equal(t, domain.TorrentStatePaused, f.ctrl.StateCode())
	assert.True(t, f.ctrl.IsPaused())

	f.ctrl.Resume()
	assert.Equal(t, []string{"auto_managed:off", "pause", "auto_managed:on", "resume"}, f.handle.callLog())
	assert.Equal(t, 2, f.handle.saveCount())
	assert.Equal(t, domain.TorrentStateDownloading, f.ctrl.StateCode())
}

func TestControllerPauseInvalidHandleIsNoop(t *testing.T) {
	f := newControllerFixture(t, domain.Torrent{})
	f.handle.setValid(false)

	f.ctrl.Pause()
	f.ctrl.Resume()

	assert.Empty(t, f.handle.callLog())
	assert.Equal(t, 0, f.handle.saveCount())
	assert.Equal(t, domain.TorrentStateError, f.ctrl.StateCode())
}

func TestControllerStateFollowsSession(t *testing.T) {
	f := newControllerFixture(t, domain.Torrent{})

	f.session.mu.Lock()
	f.session.running = false
	f.session.mu.Unlock()
	assert.Equal(t, domain.TorrentStateStopped, f.ctrl.StateCode())

	f.session.mu.Lock()
	f.session.running = true
	f.session.paused = true
	f.session.mu.Unlock()
	assert.Equal(t, domain.TorrentStatePaused, f.ctrl.StateCode())
}

func TestControllerPrioritizeFiles(t *testing.T) {
	f := newControllerFixture(t, domain.Torrent{})
	f.handle.files = []engine.File{{Path: "a", Size: 1}, {Path: "b", Size: 2}}

	f.ctrl.PrioritizeFiles([]domain.Priority{domain.PriorityHigh})
	assert.Nil(t, f.handle.priorities, "partial lists are rejected")

	f.ctrl.PrioritizeFiles([]domain.Priority{domain.PriorityHigh, domain.PriorityIgnore})
	assert.Equal(t, []domain.Priority{domain.PriorityHigh, domain.PriorityIgnore}, f.handle.priorities)

	files := f.ctrl.Torrent().Files
	require.Len(t, files, 2)
	assert.Equal(t, "b", files[1].Path)
	assert.Equal(t, domain.PriorityIgnore, files[1].Priority)
	assert.Equal(t, domain.PriorityIgnore, f.ctrl.Snapshot().Files[1].Priority)

	f.ctrl.PrioritizeFiles(nil)
	assert.Equal(t, []domain.Priority{domain.PriorityNormal, domain.PriorityNormal}, f.handle.priorities)
}

func TestControllerTrackerCommandsForceSave(t *testing.T) {
	f := newControllerFixture(t, domain.Torrent{})

	f.ctrl.ReplaceTrackers([]string{"udp://a/announce"})
	f.ctrl.AddTrackers([]string{"udp://b/announce"})
	f.ctrl.SetUploadSpeedLimit(10)

	assert.Equal(t, []string{"replace_trackers", "add_trackers", "upload_limit"}, f.handle.callLog())
	assert.Equal(t, 3, f.handle.saveCount())
}

func TestControllerSetDownloadPathAbsorbsErrors(t *testing.T) {
	f := newControllerFixture(t, domain.Torrent{})
	f.handle.moveErr = errDiskFull

	assert.NotPanics(t, func() { f.ctrl.SetDownloadPath("/mnt/other") })
	assert.Equal(t, []string{"move:/mnt/other"}, f.handle.callLog())
}

func TestControllerStorageMovedUpdatesPaths(t *testing.T) {
	f := newControllerFixture(t, domain.Torrent{DownloadPath: "/data/old"})
	require.Equal(t, filepath.Join("/data/old", engine.PartsFileName(f.handle.infoHash)), f.ctrl.PartsFile())

	f.emit(engine.StorageMoved{Path: "/data/new"})

	assert.Equal(t, "/data/new", f.ctrl.Torrent().DownloadPath)
	assert.Equal(t, filepath.Join("/data/new", engine.PartsFileName(f.handle.infoHash)), f.ctrl.PartsFile())
}

func TestControllerNoPartsFileWithoutMetadata(t *testing.T) {
	session := newFakeSession()
	handle := newFakeHandle()
	handle.hasMeta = false
	ctrl := New(session, handle, domain.Torrent{ID: "t", DownloadPath: "/data"}, nil, nil, Config{Logger: quietLogger()})
	defer ctrl.Close()

	assert.Empty(t, ctrl.PartsFile())
}

func TestControllerMetadataArrivalSetsPartsFile(t *testing.T) {
	session := newFakeSession()
	handle := newFakeHandle()
	handle.hasMeta = false
	listener := &recordingListener{}
	ctrl := New(session, handle, domain.Torrent{ID: "t", DownloadPath: "/data"}, listener, nil, Config{Logger: quietLogger()})
	defer ctrl.Close()
	require.Empty(t, ctrl.PartsFile())

	handle.mu.Lock()
	handle.hasMeta = true
	handle.mu.Unlock()
	session.emit(handle.infoHash, engine.MetadataReceived{})

	assert.Equal(t, filepath.Join("/data", engine.PartsFileName(handle.infoHash)), ctrl.PartsFile())
	assert.Equal(t, []string{"metadata:t", "state_changed:t"}, listener.log())
}

func TestControllerStatsRequestRoutineResumeData(t *testing.T) {
	f := newControllerFixture(t, domain.Torrent{})

	f.emit(engine.Stats{})
	assert.Equal(t, 1, f.handle.saveCount())
	f.emit(engine.Stats{})
	assert.Equal(t, 1, f.handle.saveCount(), "one routine request at a time")

	f.emit(engine.ResumeDataReady{Data: []byte("routine")})
	f.ctrl.Flush()
	assert.Equal(t, 1, f.store.count(f.id))

	f.clock.Advance(5 * time.Second)
	f.emit(engine.Stats{})
	assert.Equal(t, 1, f.handle.saveCount(), "interval not yet elapsed")

	f.clock.Advance(5 * time.Second)
	f.emit(engine.Stats{})
	assert.Equal(t, 2, f.handle.saveCount())
}

func TestControllerStatsRetryAfterRefusedRequest(t *testing.T) {
	f := newControllerFixture(t, domain.Torrent{})
	f.handle.setValid(false)
	f.emit(engine.Stats{})
	f.handle.setValid(true)

	f.emit(engine.Stats{})
	assert.Equal(t, 1, f.handle.saveCount())
}

func TestControllerRemoveCleansUpOnConfirmation(t *testing.T) {
	dir := t.TempDir()
	created := time.Now().Add(-time.Hour)
	descriptor := filepath.Join(dir, "x.torrent")
	require.NoError(t, os.WriteFile(descriptor, []byte("d4:infodee"), 0o644))
	require.NoError(t, os.Chtimes(descriptor, created, created))

	f := newControllerFixture(t, domain.Torrent{DownloadPath: dir, TorrentFilePath: descriptor})
	f.handle.files = []engine.File{{Path: "movie.mkv", Size: 4096}}
	f.handle.progress = []int64{1024}

	partial := filepath.Join(dir, "movie.mkv")
	require.NoError(t, os.WriteFile(partial, make([]byte, 1024), 0o644))
	parts := f.ctrl.PartsFile()
	require.NoError(t, os.WriteFile(parts, []byte("pieces"), 0o644))

	assert.Equal(t, []string{partial}, f.ctrl.IncompleteFiles())

	f.ctrl.Remove(false)
	assert.Equal(t, []bool{false}, f.session.removals)
	f.ctrl.Flush()
	assert.FileExists(t, partial, "nothing is deleted before the engine confirms")

	f.emit(engine.TorrentRemoved{})
	f.ctrl.Flush()
	assert.NoFileExists(t, partial)
	assert.NoFileExists(t, parts)

	// a repeated confirmation neither re-runs cleanup nor re-notifies
	require.NoError(t, os.WriteFile(partial, []byte("recreated"), 0o644))
	f.emit(engine.TorrentRemoved{})
	f.ctrl.Flush()
	assert.FileExists(t, partial)
	assert.Equal(t, []string{"removed:" + f.id}, f.listener.log())
}

func TestControllerRemoveWithFiles(t *testing.T) {
	f := newControllerFixture(t, domain.Torrent{})
	f.ctrl.Remove(true)
	assert.Equal(t, []bool{true}, f.session.removals)
}

func TestControllerRemoveInvalidHandle(t *testing.T) {
	f := newControllerFixture(t, domain.Torrent{})
	f.handle.setValid(false)
	f.ctrl.Remove(true)
	assert.Empty(t, f.session.removals)
}

func TestControllerMetrics(t *testing.T) {
	f := newControllerFixture(t, domain.Torrent{})
	f.handle.files = []engine.File{{Path: "a", Size: 1000}}
	f.handle.setStatus(engine.Status{
		State:           engine.ProtocolDownloading,
		Progress:        0.5,
		DownloadRate:    100,
		UploadRate:      40,
		TotalDone:       500,
		AllTimeDownload: 500,
		AllTimeUpload:   1000,
		NumPeers:        4,
		NumSeeds:        2,
	})

	assert.Equal(t, 50, f.ctrl.Progress())
	assert.Equal(t, int64(5), f.ctrl.ETA())
	assert.InDelta(t, 2.0, f.ctrl.ShareRatio(), 1e-9)
	assert.Equal(t, int64(100), f.ctrl.DownloadSpeed())
	assert.Equal(t, int64(40), f.ctrl.UploadSpeed())
	assert.True(t, f.ctrl.IsDownloading())

	snap := f.ctrl.Snapshot()
	assert.Equal(t, domain.TorrentStateDownloading, snap.State)
	assert.Equal(t, 50, snap.Progress)
	assert.Equal(t, int64(1000), snap.TotalSize)
	assert.Equal(t, 4, snap.Peers)
	require.Len(t, snap.Files, 1)
	assert.Equal(t, domain.PriorityNormal, snap.Files[0].Priority)
}

func TestControllerSpeedsZeroedByState(t *testing.T) {
	f := newControllerFixture(t, domain.Torrent{})

	f.handle.setStatus(engine.Status{Finished: true, Seeding: true, DownloadRate: 10, UploadRate: 20})
	assert.Equal(t, int64(0), f.ctrl.DownloadSpeed())
	assert.Equal(t, int64(20), f.ctrl.UploadSpeed(), "seeders keep uploading")

	f.handle.setStatus(engine.Status{Finished: true, DownloadRate: 10, UploadRate: 20})
	assert.Equal(t, int64(0), f.ctrl.UploadSpeed())

	f.handle.setStatus(engine.Status{Paused: true, DownloadRate: 10, UploadRate: 20})
	assert.Equal(t, int64(0), f.ctrl.DownloadSpeed())
	assert.Equal(t, int64(0), f.ctrl.UploadSpeed())
}

func TestControllerInvalidHandleDefaults(t *testing.T) {
	f := newControllerFixture(t, domain.Torrent{})
	f.handle.setValid(false)

	assert.Equal(t, 0, f.ctrl.Progress())
	assert.Equal(t, int64(0), f.ctrl.ETA())
	assert.Equal(t, 0.0, f.ctrl.ShareRatio())
	assert.Empty(t, f.ctrl.IncompleteFiles())
	assert.Empty(t, f.ctrl.Peers())
	assert.Empty(t, f.ctrl.TrackerURLs())
	assert.Empty(t, f.ctrl.Pieces())
	assert.Nil(t, f.ctrl.FilesReceivedBytes())
	assert.Equal(t, "", f.ctrl.MakeMagnet())
	assert.NotPanics(t, func() {
		f.ctrl.ForceRecheck()
		f.ctrl.RequestTrackerAnnounce()
		f.ctrl.RequestTrackerScrape()
		f.ctrl.SetSequentialDownload(true)
	})
}

func TestControllerTrackerURLsDeduplicated(t *testing.T) {
	f := newControllerFixture(t, domain.Torrent{})
	f.handle.trackers = []engine.Tracker{
		{URL: "udp://b/announce", Tier: 1},
		{URL: "udp://a/announce"},
		{URL: "udp://b/announce", Tier: 2},
	}
	assert.Equal(t, []string{"udp://a/announce", "udp://b/announce"}, f.ctrl.TrackerURLs())
}

func TestControllerSetTorrent(t *testing.T) {
	f := newControllerFixture(t, domain.Torrent{Name: "before"})
	f.ctrl.SetTorrent(domain.Torrent{ID: f.id, Name: "after"})
	assert.Equal(t, "after", f.ctrl.Torrent().Name)
}

func TestControllerCloseUnsubscribes(t *testing.T) {
	f := newControllerFixture(t, domain.Torrent{})
	f.ctrl.Close()
	f.ctrl.Close()

	f.emit(engine.TorrentFinished{})
	assert.Empty(t, f.listener.log())
}
