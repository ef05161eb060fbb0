package repository

import (
	"context"
	"errors"
	"time"

	"torrentctl/internal/domain"
)

// ErrNotFound is returned when a looked-up record does not exist.
var ErrNotFound = errors.New("not found")

// TorrentRepository exposes persistence operations for Torrent records.
type TorrentRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, torrent *domain.Torrent) error
	Update(ctx context.Context, torrent *domain.Torrent) error
	UpdateProgress(ctx context.Context, torrent *domain.Torrent) error
	UpdateLocation(ctx context.Context, id, downloadPath, torrentFilePath string) error
	MarkFinished(ctx context.Context, id string, finishedAt time.Time) error
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*domain.Torrent, error)
	List(ctx context.Context) ([]domain.Torrent, error)
}

// TorrentFileRepository manages per-file metadata of a torrent.
type TorrentFileRepository interface {
	Init(ctx context.Context) error
	ReplaceForTorrent(ctx context.Context, torrentID string, files []domain.TorrentFile) error
	UpdatePriorities(ctx context.Context, torrentID string, priorities []domain.Priority) error
	ListByTorrent(ctx context.Context, torrentID string) ([]domain.TorrentFile, error)
}

// ResumeDataRepository stores the latest fast-resume blob per torrent.
type ResumeDataRepository interface {
	Init(ctx context.Context) error
	Save(ctx context.Context, torrentID string, data []byte) error
	Load(ctx context.Context, torrentID string) ([]byte, error)
	Delete(ctx context.Context, torrentID string) error
}
