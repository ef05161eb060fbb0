package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"torrentctl/internal/domain"
	"torrentctl/internal/repository"
)

// TorrentService coordinates torrent record operations backed by repositories.
type TorrentService interface {
	Register(ctx context.Context, torrent *domain.Torrent) error
	Get(ctx context.Context, id string) (*domain.Torrent, error)
	List(ctx context.Context) ([]domain.Torrent, error)
	Save(ctx context.Context, torrent *domain.Torrent) error
	Snapshot(ctx context.Context, torrent *domain.Torrent) error
	ReplaceFiles(ctx context.Context, id string, files []domain.TorrentFile) error
	UpdatePriorities(ctx context.Context, id string, priorities []domain.Priority) error
	UpdateLocation(ctx context.Context, id, downloadPath, torrentFilePath string) error
	MarkFinished(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

type torrentService struct {
	torrents repository.TorrentRepository
	files    repository.TorrentFileRepository
}

func NewTorrentService(torrents repository.TorrentRepository, files repository.TorrentFileRepository) TorrentService {
	return &torrentService{
		torrents: torrents,
		files:    files,
	}
}

func (s *torrentService) Register(ctx context.Context, torrent *domain.Torrent) error {
	if torrent == nil || strings.TrimSpace(torrent.ID) == "" {
		return errors.New("torrent id is required")
	}
	if strings.TrimSpace(torrent.DownloadPath) == "" {
		return errors.New("download path is required")
	}
	return s.torrents.Create(ctx, torrent)
}

func (s *torrentService) Get(ctx context.Context, id string) (*domain.Torrent, error) {
	torrent, err := s.torrents.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	files, err := s.files.ListByTorrent(ctx, id)
	if err != nil {
		return nil, err
	}
	torrent.Files = files
	return torrent, nil
}

func (s *torrentService) List(ctx context.Context) ([]domain.Torrent, error) {
	torrents, err := s.torrents.List(ctx)
	if err != nil {
		return nil, err
	}

	for i := range torrents {
		files, err := s.files.ListByTorrent(ctx, torrents[i].ID)
		if err != nil {
			return nil, err
		}
		torrents[i].Files = files
	}

	return torrents, nil
}

// Save overwrites the whole record of torrent.
func (s *torrentService) Save(ctx context.Context, torrent *domain.Torrent) error {
	return s.torrents.Update(ctx, torrent)
}

// Snapshot stores the live metrics of torrent and, when present, its file list.
func (s *torrentService) Snapshot(ctx context.Context, torrent *domain.Torrent) error {
	if err := s.torrents.UpdateProgress(ctx, torrent); err != nil {
		return err
	}
	if len(torrent.Files) == 0 {
		return nil
	}
	return s.files.ReplaceForTorrent(ctx, torrent.ID, torrent.Files)
}

func (s *torrentService) ReplaceFiles(ctx context.Context, id string, files []domain.TorrentFile) error {
	return s.files.ReplaceForTorrent(ctx, id, files)
}

func (s *torrentService) UpdatePriorities(ctx context.Context, id string, priorities []domain.Priority) error {
	return s.files.UpdatePriorities(ctx, id, priorities)
}

func (s *torrentService) UpdateLocation(ctx context.Context, id, downloadPath, torrentFilePath string) error {
	return s.torrents.UpdateLocation(ctx, id, downloadPath, torrentFilePath)
}

func (s *torrentService) MarkFinished(ctx context.Context, id string) error {
	return s.torrents.MarkFinished(ctx, id, time.Now())
}

func (s *torrentService) Delete(ctx context.Context, id string) error {
	return s.torrents.Delete(ctx, id)
}
