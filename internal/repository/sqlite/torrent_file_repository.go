package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"torrentctl/internal/domain"
	"torrentctl/internal/repository"
)

const createTorrentFilesTable = `
CREATE TABLE IF NOT EXISTS torrent_files (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	torrent_id TEXT NOT NULL,
	file_index INTEGER NOT NULL,
	path TEXT NOT NULL,
	size INTEGER NOT NULL,
	received INTEGER NOT NULL DEFAULT 0,
	priority INTEGER NOT NULL DEFAULT 4,
	FOREIGN KEY(torrent_id) REFERENCES torrents(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_torrent_files_torrent_id ON torrent_files(torrent_id);
`

type TorrentFileRepository struct {
	db *sql.DB
}

func NewTorrentFileRepository(db *sql.DB) repository.TorrentFileRepository {
	return &TorrentFileRepository{db: db}
}

func (r *TorrentFileRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createTorrentFilesTable); err != nil {
		return fmt.Errorf("create torrent_files table: %w", err)
	}
	return nil
}

func (r *TorrentFileRepository) ReplaceForTorrent(ctx context.Context, torrentID string, files []domain.TorrentFile) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() // safe no-op on commit

	if _, err := tx.ExecContext(ctx, `DELETE FROM torrent_files WHERE torrent_id=?`, torrentID); err != nil {
		return fmt.Errorf("delete files: %w", err)
	}

	for i, file := range files {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO torrent_files (torrent_id, file_index, path, size, received, priority)
VALUES (?, ?, ?, ?, ?, ?)`,
			torrentID,
			i,
			file.Path,
			file.Size,
			file.Received,
			int(file.Priority),
		); err != nil {
			return fmt.Errorf("insert file: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// UpdatePriorities sets priorities positionally; extra entries are ignored.
func (r *TorrentFileRepository) UpdatePriorities(ctx context.Context, torrentID string, priorities []domain.Priority) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for i, p := range priorities {
		if _, err := tx.ExecContext(ctx, `
UPDATE torrent_files SET priority=? WHERE torrent_id=? AND file_index=?`,
			int(p), torrentID, i,
		); err != nil {
			return fmt.Errorf("update file priority: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *TorrentFileRepository) ListByTorrent(ctx context.Context, torrentID string) ([]domain.TorrentFile, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, torrent_id, path, size, received, priority
FROM torrent_files
WHERE torrent_id=?
ORDER BY file_index ASC`, torrentID)
	if err != nil {
		return nil, fmt.Errorf("query torrent files: %w", err)
	}
	defer rows.Close()

	var files []domain.TorrentFile
	for rows.Next() {
		var (
			file     domain.TorrentFile
			priority int
		)
		if err := rows.Scan(&file.ID, &file.TorrentID, &file.Path, &file.Size, &file.Received, &priority); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		file.Priority = domain.Priority(priority)
		files = append(files, file)
	}

	return files, rows.Err()
}
