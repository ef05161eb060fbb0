package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"torrentctl/internal/repository"
)

const createResumeDataTable = `
CREATE TABLE IF NOT EXISTS resume_data (
	torrent_id TEXT PRIMARY KEY,
	data BLOB NOT NULL,
	updated_at DATETIME NOT NULL
);
`

type ResumeDataRepository struct {
	db *sql.DB
}

func NewResumeDataRepository(db *sql.DB) repository.ResumeDataRepository {
	return &ResumeDataRepository{db: db}
}

func (r *ResumeDataRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createResumeDataTable); err != nil {
		return fmt.Errorf("create resume_data table: %w", err)
	}
	return nil
}

func (r *ResumeDataRepository) Save(ctx context.Context, torrentID string, data []byte) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO resume_data (torrent_id, data, updated_at)
VALUES (?, ?, ?)
ON CONFLICT(torrent_id) DO UPDATE SET data=excluded.data, updated_at=excluded.updated_at`,
		torrentID,
		data,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save resume data: %w", err)
	}
	return nil
}

func (r *ResumeDataRepository) Load(ctx context.Context, torrentID string) ([]byte, error) {
	var data []byte
	err := r.db.QueryRowContext(ctx, `SELECT data FROM resume_data WHERE torrent_id=?`, torrentID).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("resume data %w", repository.ErrNotFound)
		}
		return nil, fmt.Errorf("load resume data: %w", err)
	}
	return data, nil
}

func (r *ResumeDataRepository) Delete(ctx context.Context, torrentID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM resume_data WHERE torrent_id=?`, torrentID); err != nil {
		return fmt.Errorf("delete resume data: %w", err)
	}
	return nil
}
