package storage

import (
	"context"
)

// ArchiveOptions conveys upload destination metadata.
type ArchiveOptions struct {
	Bucket           string
	KeyPrefix        string
	ProgressCallback func(done, total int64)
}

// Archiver copies the payload of a finished torrent to remote object storage.
type Archiver interface {
	// ArchiveFiles uploads the files at root/rels[i] and returns the remote location.
	ArchiveFiles(ctx context.Context, root string, rels []string, opts ArchiveOptions) (string, error)
}
