package files

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	apperrors "flagcli/internal/errors"
)

// Manager provides file management operations
type Manager struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewManager creates a new file manager instance
func NewManager(logger *slog.Logger) *Manager {
	return &Manager{
		logger: logger.With(slog.String("component", "file_manager")),
		now:    time.Now,
	}
}

// DeleteOlderThan removes every regular file under dir, recursively, whose
// modification time is more than maxAge ago, and returns the deleted paths.
// A missing dir is not an error.
func (m *Manager) DeleteOlderThan(dir string, maxAge time.Duration) ([]string, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		m.logger.Debug("Cleanup directory does not exist", slog.String("dir", dir))
		return nil, nil
	}

	cutoff := m.now().Add(-maxAge)
	var deleted []string

	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			return err
		}
		if !info.ModTime().Before(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil {
			return err
		}
		deleted = append(deleted, path)
		m.logger.Info("Deleted stale file",
			slog.String("path", path),
			slog.Time("modified", info.ModTime()),
			slog.Duration("max_age", maxAge))
		return nil
	})
	if err != nil {
		return deleted, apperrors.NewIOError("cleanup failed", err).WithContext("dir", dir)
	}
	return deleted, nil
}

// EnsureDirectory creates a directory if it doesn't exist
func (m *Manager) EnsureDirectory(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		m.logger.Debug("Creating directory", slog.String("path", path))
		return os.MkdirAll(path, 0755)
	}
	return nil
}
