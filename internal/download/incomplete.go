package download

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"torrentctl/internal/engine"
	"torrentctl/internal/metrics"
)

// captureIncompleteFiles lists the on-disk files of h that are short of their
// expected size and were last modified no earlier than the torrent descriptor.
// A file older than the descriptor predates this download and is left alone.
func captureIncompleteFiles(h engine.Handle, downloadPath, descriptorPath string, logger *logrus.Entry) map[string]struct{} {
	result := make(map[string]struct{})
	if h == nil || !h.Valid() {
		return result
	}

	progress, err := h.FileProgress()
	if err != nil {
		logger.Warnf("read file progress: %v", err)
		return result
	}
	files, err := h.Files()
	if err != nil {
		logger.Warnf("read file list: %v", err)
		return result
	}

	if descriptorPath == "" {
		return result
	}
	descriptor, err := os.Stat(descriptorPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warnf("stat torrent descriptor: %v", err)
		}
		return result
	}
	created := descriptor.ModTime()

	for i := 0; i < len(progress) && i < len(files); i++ {
		if progress[i] >= files[i].Size {
			continue
		}
		path := filepath.Join(downloadPath, files[i].Path)
		info, err := os.Stat(path)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				logger.WithField("path", path).Warnf("stat incomplete file: %v", err)
			}
			continue
		}
		if info.IsDir() {
			continue
		}
		if !info.ModTime().Before(created) {
			result[path] = struct{}{}
		}
	}

	return result
}

// finalizeCleanup deletes the captured files and the parts artifact. Every
// failure is logged and the batch continues.
func finalizeCleanup(files map[string]struct{}, partsPath string, logger *logrus.Entry) {
	for path := range files {
		removePath(path, false, logger)
	}
	if partsPath != "" {
		removePath(partsPath, true, logger)
	}
}

func removePath(path string, recursive bool, logger *logrus.Entry) {
	entry := logger.WithField("path", path)
	if _, err := os.Lstat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			entry.Debug("nothing to delete")
			return
		}
		entry.Warnf("can't stat file: %v", err)
		metrics.CleanupFailuresTotal.Inc()
		return
	}

	var err error
	if recursive {
		err = os.RemoveAll(path)
	} else {
		err = os.Remove(path)
	}
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		entry.Warnf("can't delete file: %v", err)
		metrics.CleanupFailuresTotal.Inc()
		return
	}
	metrics.CleanupDeletedTotal.Inc()
}
