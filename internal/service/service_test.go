package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"torrentctl/internal/domain"
	"torrentctl/internal/repository"
)

type memOperators struct {
	mu     sync.Mutex
	nextID int64
	byName map[string]*domain.Operator
}

func newMemOperators() *memOperators {
	return &memOperators{byName: map[string]*domain.Operator{}}
}

func (m *memOperators) Init(context.Context) error { return nil }

func (m *memOperators) Create(_ context.Context, op *domain.Operator) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byName[op.Username]; ok {
		return 0, fmt.Errorf("operator already exists: %s", op.Username)
	}
	m.nextID++
	op.ID = m.nextID
	cp := *op
	m.byName[op.Username] = &cp
	return op.ID, nil
}

func (m *memOperators) GetByUsername(_ context.Context, username string) (*domain.Operator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	op, ok := m.byName[username]
	if !ok {
		return nil, fmt.Errorf("operator %w", repository.ErrNotFound)
	}
	cp := *op
	return &cp, nil
}

func (m *memOperators) GetByID(_ context.Context, id int64) (*domain.Operator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, op := range m.byName {
		if op.ID == id {
			cp := *op
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("operator %w", repository.ErrNotFound)
}

func newTestOperatorService(secret string) (*operatorService, *memOperators) {
	repo := newMemOperators()
	svc := NewOperatorService(repo, secret).(*operatorService)
	svc.cost = bcrypt.MinCost
	return svc, repo
}

func TestOperatorRegisterAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestOperatorService("letmein")

	op, err := svc.Register(ctx, " admin ", "password123", "letmein")
	require.NoError(t, err)
	assert.Equal(t, "admin", op.Username)
	assert.Empty(t, op.PasswordHash)

	got, err := svc.Authenticate(ctx, "admin", "password123")
	require.NoError(t, err)
	assert.Equal(t, op.ID, got.ID)

	_, err = svc.Authenticate(ctx, "admin", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "nobody", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	byID, err := svc.GetByID(ctx, op.ID)
	require.NoError(t, err)
	assert.Empty(t, byID.PasswordHash)
}

func TestOperatorRegisterValidation(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name     string
		secret   string
		username string
		password string
		provided string
		want     error
	}{
		{name: "empty username", secret: "s", username: "", password: "password123", provided: "s"},
		{name: "short password", secret: "s", username: "a", password: "short", provided: "s"},
		{name: "unconfigured secret", secret: "", username: "a", password: "password123", provided: ""},
		{name: "wrong secret", secret: "s", username: "a", password: "password123", provided: "x", want: ErrInvalidRegistrationPassword},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, _ := newTestOperatorService(tc.secret)
			_, err := svc.Register(ctx, tc.username, tc.password, tc.provided)
			require.Error(t, err)
			if tc.want != nil {
				assert.ErrorIs(t, err, tc.want)
			}
		})
	}
}

func TestOperatorRegisterDuplicate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestOperatorService("s")

	_, err := svc.Register(ctx, "admin", "password123", "s")
	require.NoError(t, err)
	_, err = svc.Register(ctx, "admin", "password456", "s")
	assert.ErrorIs(t, err, ErrOperatorAlreadyExists)
}

type memTorrents struct {
	mu       sync.Mutex
	records  map[string]domain.Torrent
	files    map[string][]domain.TorrentFile
	finished map[string]time.Time
}

func newMemTorrents() *memTorrents {
	return &memTorrents{
		records:  map[string]domain.Torrent{},
		files:    map[string][]domain.TorrentFile{},
		finished: map[string]time.Time{},
	}
}

func (m *memTorrents) Init(context.Context) error { return nil }

func (m *memTorrents) Create(_ context.Context, t *domain.Torrent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[t.ID] = *t
	return nil
}

func (m *memTorrents) Update(_ context.Context, t *domain.Torrent) error {
	return m.Create(context.Background(), t)
}

func (m *memTorrents) UpdateProgress(_ context.Context, t *domain.Torrent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[t.ID]
	if !ok {
		return repository.ErrNotFound
	}
	rec.Progress = t.Progress
	rec.State = t.State
	m.records[t.ID] = rec
	return nil
}

func (m *memTorrents) UpdateLocation(_ context.Context, id, downloadPath, torrentFilePath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.records[id]
	rec.DownloadPath, rec.TorrentFilePath = downloadPath, torrentFilePath
	m.records[id] = rec
	return nil
}

func (m *memTorrents) MarkFinished(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished[id] = at
	return nil
}

func (m *memTorrents) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
	delete(m.files, id)
	return nil
}

func (m *memTorrents) Get(_ context.Context, id string) (*domain.Torrent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &rec, nil
}

func (m *memTorrents) List(_ context.Context) ([]domain.Torrent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Torrent
	for _, rec := range m.records {
		out = append(out, rec)
	}
	return out, nil
}

func (m *memTorrents) ReplaceForTorrent(_ context.Context, id string, files []domain.TorrentFile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[id] = append([]domain.TorrentFile(nil), files...)
	return nil
}

func (m *memTorrents) UpdatePriorities(_ context.Context, id string, prios []domain.Priority) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.files[id] {
		if i < len(prios) {
			m.files[id][i].Priority = prios[i]
		}
	}
	return nil
}

func (m *memTorrents) ListByTorrent(_ context.Context, id string) ([]domain.TorrentFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.TorrentFile(nil), m.files[id]...), nil
}

func TestTorrentServiceRegisterValidation(t *testing.T) {
	repo := newMemTorrents()
	svc := NewTorrentService(repo, repo)

	assert.Error(t, svc.Register(context.Background(), &domain.Torrent{DownloadPath: "/d"}))
	assert.Error(t, svc.Register(context.Background(), &domain.Torrent{ID: "abcd"}))
	assert.NoError(t, svc.Register(context.Background(), &domain.Torrent{ID: "abcd", DownloadPath: "/d"}))
}

func TestTorrentServiceSnapshotAndGet(t *testing.T) {
	ctx := context.Background()
	repo := newMemTorrents()
	svc := NewTorrentService(repo, repo)

	require.NoError(t, svc.Register(ctx, &domain.Torrent{ID: "abcd", DownloadPath: "/d"}))

	snap := &domain.Torrent{
		ID:       "abcd",
		Progress: 30,
		State:    domain.TorrentStateDownloading,
		Files:    []domain.TorrentFile{{Path: "a"}, {Path: "b"}},
	}
	require.NoError(t, svc.Snapshot(ctx, snap))
	require.NoError(t, svc.UpdatePriorities(ctx, "abcd", []domain.Priority{domain.PriorityIgnore}))

	got, err := svc.Get(ctx, "abcd")
	require.NoError(t, err)
	assert.Equal(t, 30, got.Progress)
	require.Len(t, got.Files, 2)
	assert.Equal(t, domain.PriorityIgnore, got.Files[0].Priority)

	// a snapshot without files keeps the stored list
	require.NoError(t, svc.Snapshot(ctx, &domain.Torrent{ID: "abcd", Progress: 40}))
	got, err = svc.Get(ctx, "abcd")
	require.NoError(t, err)
	assert.Len(t, got.Files, 2)

	require.NoError(t, svc.MarkFinished(ctx, "abcd"))
	assert.Contains(t, repo.finished, "abcd")

	require.NoError(t, svc.Delete(ctx, "abcd"))
	_, err = svc.Get(ctx, "abcd")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestTorrentServiceSaveKeepsErrorMessage(t *testing.T) {
	ctx := context.Background()
	repo := newMemTorrents()
	svc := NewTorrentService(repo, repo)

	rec := &domain.Torrent{ID: "abcd", DownloadPath: "/d"}
	require.NoError(t, svc.Register(ctx, rec))

	rec.State = domain.TorrentStateError
	rec.ErrorMessage = "record has neither descriptor nor magnet"
	require.NoError(t, svc.Save(ctx, rec))

	got, err := svc.Get(ctx, "abcd")
	require.NoError(t, err)
	assert.Equal(t, domain.TorrentStateError, got.State)
	assert.Equal(t, "record has neither descriptor nor magnet", got.ErrorMessage)
}
