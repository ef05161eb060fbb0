package anacrolix

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"torrentctl/internal/engine"
)

var errMoveInProgress = errors.New("storage move already in progress")

// moveData relocates the torrent's files from src to dst under policy.
// Missing sources are skipped. With FailIfExists nothing moves when any
// destination file is present.
func moveData(src, dst string, rels []string, policy engine.MovePolicy) error {
	if policy == engine.FailIfExists {
		for _, rel := range rels {
			if _, err := os.Lstat(filepath.Join(dst, rel)); err == nil {
				return fmt.Errorf("destination file exists: %s", filepath.Join(dst, rel))
			}
		}
	}

	for _, rel := range rels {
		from := filepath.Join(src, rel)
		to := filepath.Join(dst, rel)
		if _, err := os.Lstat(from); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if _, err := os.Lstat(to); err == nil {
			if policy == engine.DontReplace {
				continue
			}
			if err := os.Remove(to); err != nil {
				return fmt.Errorf("replace %s: %w", to, err)
			}
		}
		if err := moveFile(from, to); err != nil {
			return err
		}
	}

	roots := make(map[string]struct{})
	for _, rel := range rels {
		if top := topLevel(rel); top != rel {
			roots[filepath.Join(src, top)] = struct{}{}
		}
	}
	for root := range roots {
		pruneEmptyDirs(root)
	}
	return nil
}

// moveParts carries the piece-completion directory over, replacing any
// stale copy at the destination.
func moveParts(src, dst, infoHash string) error {
	from := filepath.Join(src, engine.PartsFileName(infoHash))
	to := filepath.Join(dst, engine.PartsFileName(infoHash))
	if _, err := os.Stat(from); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := os.RemoveAll(to); err != nil {
		return fmt.Errorf("clear parts destination: %w", err)
	}
	if err := os.Rename(from, to); err == nil {
		return nil
	}
	if err := copyTree(from, to); err != nil {
		return err
	}
	return os.RemoveAll(from)
}

func moveFile(from, to string) error {
	if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		return fmt.Errorf("create destination dir: %w", err)
	}
	if err := os.Rename(from, to); err == nil {
		return nil
	}
	if err := copyFile(from, to); err != nil {
		return err
	}
	if err := os.Remove(from); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove source after copy: %w", err)
	}
	return nil
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create destination dir: %w", err)
	}

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy file: %w", err)
	}

	if err := out.Sync(); err != nil {
		_ = out.Close()
		return fmt.Errorf("sync destination: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close destination: %w", err)
	}
	return nil
}
