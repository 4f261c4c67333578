package utils

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ExportLock serializes snapshot exports: two popscope processes must not
// write the same sqlite file at once.
type ExportLock struct {
	fl *flock.Flock
}

// NewExportLock creates a lock guarding the given database path.
func NewExportLock(dbPath string) (*ExportLock, error) {
	abs, err := AbsDBPath(dbPath)
	if err != nil {
		return nil, fmt.Errorf("could not resolve db path: %w", err)
	}
	return &ExportLock{fl: flock.New(abs + ".lock")}, nil
}

// Acquire takes the lock, blocking if another export holds it.
func (l *ExportLock) Acquire() error {
	locked, err := l.fl.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock on %s: %w", l.fl.Path(), err)
	}
	if !locked {
		fmt.Fprintln(os.Stderr, "Another popscope export is running, waiting for it to finish...")
		if err := l.fl.Lock(); err != nil {
			return fmt.Errorf("failed to acquire lock on %s after waiting: %w", l.fl.Path(), err)
		}
	}
	return nil
}

// Release drops the lock. Releasing a lock we no longer hold is not an
// error.
func (l *ExportLock) Release() error {
	if err := l.fl.Unlock(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to release lock on %s: %w", l.fl.Path(), err)
	}
	return nil
}

// AbsDBPath resolves the snapshot database path, defaulting under the
// user's config dir.
func AbsDBPath(dbPath string) (string, error) {
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".config", "popscope", "popscope.sqlite"), nil
	}
	return filepath.Abs(dbPath)
}
