package fs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	logging "github.com/yangirov/stock-background/internal/infra/log"

	"go.uber.org/zap"
)

// ErrEmptyPayload - refusing to replace a frame with nothing
var ErrEmptyPayload = errors.New("empty payload")

// WriteFileAtomic replaces path with data. Readers see either the old file or
// the new one, never a partial write. Every call uses its own temp file, so
// concurrent writers of the same path do not corrupt each other: the last
// rename wins.
func WriteFileAtomic(path string, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("write %s: %w", path, ErrEmptyPayload)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpPath := tmp.Name()

	cleanup := func() {
		if rmErr := os.Remove(tmpPath); rmErr != nil && !os.IsNotExist(rmErr) {
			logging.LogWarn("Failed to remove temporary file", zap.String("file", tmpPath), zap.Error(rmErr))
		}
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("failed to sync temporary file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to close temporary file: %w", err)
	}
	// CreateTemp uses 0600
	if err := os.Chmod(tmpPath, 0644); err != nil {
		cleanup()
		return fmt.Errorf("failed to chmod temporary file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return fmt.Errorf("failed to rename temporary file to %s: %w", path, err)
	}

	logging.LogDebug("Frame written", zap.String("file", path), zap.Int("bytes", len(data)))
	return nil
}
