package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"torrentctl/internal/domain"
	"torrentctl/internal/repository"
)

const createTorrentsTable = `
CREATE TABLE IF NOT EXISTS torrents (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	magnet_uri TEXT NOT NULL DEFAULT '',
	download_path TEXT NOT NULL,
	torrent_file_path TEXT NOT NULL DEFAULT '',
	state TEXT NOT NULL,
	progress INTEGER NOT NULL DEFAULT 0,
	download_speed INTEGER NOT NULL DEFAULT 0,
	upload_speed INTEGER NOT NULL DEFAULT 0,
	total_size INTEGER NOT NULL DEFAULT 0,
	total_done INTEGER NOT NULL DEFAULT 0,
	eta INTEGER NOT NULL DEFAULT 0,
	peers INTEGER NOT NULL DEFAULT 0,
	seeds INTEGER NOT NULL DEFAULT 0,
	paused INTEGER NOT NULL DEFAULT 0,
	error_message TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	finished_at DATETIME NULL
);
`

const torrentColumns = `id, name, magnet_uri, download_path, torrent_file_path, state, progress, download_speed, upload_speed, total_size, total_done, share_ratio, eta, peers, seeds, paused, sequential, error_message, created_at, updated_at, finished_at`

type TorrentRepository struct {
	db *sql.DB
}

func NewTorrentRepository(db *sql.DB) repository.TorrentRepository {
	return &TorrentRepository{db: db}
}

func (r *TorrentRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createTorrentsTable); err != nil {
		return fmt.Errorf("create torrents table: %w", err)
	}
	if err := r.ensureTorrentColumns(ctx); err != nil {
		return err
	}
	return nil
}

func (r *TorrentRepository) ensureTorrentColumns(ctx context.Context) error {
	columns, err := tableColumns(ctx, r.db, "torrents")
	if err != nil {
		return err
	}

	addColumn := func(name, statement string) error {
		if _, exists := columns[name]; exists {
			return nil
		}
		if _, err := r.db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("add column %s: %w", name, err)
		}
		return nil
	}

	if err := addColumn("share_ratio", `ALTER TABLE torrents ADD COLUMN share_ratio REAL NOT NULL DEFAULT 0`); err != nil {
		return err
	}
	if err := addColumn("sequential", `ALTER TABLE torrents ADD COLUMN sequential INTEGER NOT NULL DEFAULT 0`); err != nil {
		return err
	}
	return nil
}

func (r *TorrentRepository) Create(ctx context.Context, t *domain.Torrent) error {
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.State == "" {
		t.State = domain.TorrentStateDownloadingMetadata
	}

	_, err := r.db.ExecContext(ctx, `
INSERT INTO torrents (`+torrentColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID,
		t.Name,
		t.MagnetURI,
		t.DownloadPath,
		t.TorrentFilePath,
		string(t.State),
		t.Progress,
		t.DownloadSpeed,
		t.UploadSpeed,
		t.TotalSize,
		t.TotalDone,
		t.ShareRatio,
		t.ETA,
		t.Peers,
		t.Seeds,
		t.Paused,
		t.Sequential,
		t.ErrorMessage,
		t.CreatedAt,
		t.UpdatedAt,
		nullTime(t.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("insert torrent: %w", err)
	}
	return nil
}

func (r *TorrentRepository) Update(ctx context.Context, t *domain.Torrent) error {
	t.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
UPDATE torrents
SET name=?, magnet_uri=?, download_path=?, torrent_file_path=?, state=?, progress=?, download_speed=?, upload_speed=?, total_size=?, total_done=?, share_ratio=?, eta=?, peers=?, seeds=?, paused=?, sequential=?, error_message=?, updated_at=?, finished_at=?
WHERE id=?`,
		t.Name,
		t.MagnetURI,
		t.DownloadPath,
		t.TorrentFilePath,
		string(t.State),
		t.Progress,
		t.DownloadSpeed,
		t.UploadSpeed,
		t.TotalSize,
		t.TotalDone,
		t.ShareRatio,
		t.ETA,
		t.Peers,
		t.Seeds,
		t.Paused,
		t.Sequential,
		t.ErrorMessage,
		t.UpdatedAt,
		nullTime(t.FinishedAt),
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("update torrent: %w", err)
	}
	return requireAffected(res, "torrent")
}

// UpdateProgress writes only the live metrics of t.
func (r *TorrentRepository) UpdateProgress(ctx context.Context, t *domain.Torrent) error {
	t.UpdatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
UPDATE torrents
SET name=?, state=?, progress=?, download_speed=?, upload_speed=?, total_size=?, total_done=?, share_ratio=?, eta=?, peers=?, seeds=?, paused=?, sequential=?, error_message=?, updated_at=?
WHERE id=?`,
		t.Name,
		string(t.State),
		t.Progress,
		t.DownloadSpeed,
		t.UploadSpeed,
		t.TotalSize,
		t.TotalDone,
		t.ShareRatio,
		t.ETA,
		t.Peers,
		t.Seeds,
		t.Paused,
		t.Sequential,
		t.ErrorMessage,
		t.UpdatedAt,
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("update torrent progress: %w", err)
	}
	return nil
}

func (r *TorrentRepository) UpdateLocation(ctx context.Context, id, downloadPath, torrentFilePath string) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE torrents
SET download_path=?, torrent_file_path=?, updated_at=?
WHERE id=?`,
		downloadPath,
		torrentFilePath,
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return fmt.Errorf("update torrent location: %w", err)
	}
	return nil
}

func (r *TorrentRepository) MarkFinished(ctx context.Context, id string, finishedAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE torrents
SET finished_at=COALESCE(finished_at, ?), updated_at=?
WHERE id=?`,
		finishedAt.UTC(),
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return fmt.Errorf("mark finished: %w", err)
	}
	return nil
}

func (r *TorrentRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM torrents WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete torrent: %w", err)
	}
	return requireAffected(res, "torrent")
}

func (r *TorrentRepository) Get(ctx context.Context, id string) (*domain.Torrent, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+torrentColumns+`
FROM torrents
WHERE id=?`,
		id,
	)
	return scanTorrent(row)
}

func (r *TorrentRepository) List(ctx context.Context) ([]domain.Torrent, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+torrentColumns+`
FROM torrents
ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query torrents: %w", err)
	}
	defer rows.Close()

	var torrents []domain.Torrent
	for rows.Next() {
		t, err := scanTorrent(rows)
		if err != nil {
			return nil, err
		}
		torrents = append(torrents, *t)
	}

	return torrents, rows.Err()
}

func scanTorrent(scanner interface {
	Scan(dest ...any) error
}) (*domain.Torrent, error) {
	var (
		t          domain.Torrent
		state      string
		createdAt  time.Time
		updatedAt  time.Time
		finishedAt sql.NullTime
	)

	if err := scanner.Scan(
		&t.ID,
		&t.Name,
		&t.MagnetURI,
		&t.DownloadPath,
		&t.TorrentFilePath,
		&state,
		&t.Progress,
		&t.DownloadSpeed,
		&t.UploadSpeed,
		&t.TotalSize,
		&t.TotalDone,
		&t.ShareRatio,
		&t.ETA,
		&t.Peers,
		&t.Seeds,
		&t.Paused,
		&t.Sequential,
		&t.ErrorMessage,
		&createdAt,
		&updatedAt,
		&finishedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("torrent %w", repository.ErrNotFound)
		}
		return nil, fmt.Errorf("scan torrent: %w", err)
	}

	t.State = domain.TorrentState(state)
	t.CreatedAt = createdAt.Local()
	t.UpdatedAt = updatedAt.Local()
	if finishedAt.Valid {
		ft := finishedAt.Time.Local()
		t.FinishedAt = &ft
	}

	return &t, nil
}

func requireAffected(res sql.Result, what string) error {
	aff, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", what, err)
	}
	if aff == 0 {
		return fmt.Errorf("%s %w", what, repository.ErrNotFound)
	}
	return nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
