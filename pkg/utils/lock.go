// pkg/utils/lock.go

package utils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrAlreadyRunning is returned when another run holds the lock.
var ErrAlreadyRunning = errors.New("another preinstall-check run is in progress")

// RunLock keeps two runs from mutating the same host at once. Remediations
// assume exclusive access to the package database and limits files.
type RunLock struct {
	path  string
	flock *flock.Flock
}

// NewRunLock creates a lock backed by path.
func NewRunLock(path string) *RunLock {
	return &RunLock{path: path, flock: flock.New(path)}
}

// Acquire takes the lock without blocking.
func (l *RunLock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	locked, err := l.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock %s: %w", l.path, err)
	}
	if !locked {
		return fmt.Errorf("%w (lock file %s)", ErrAlreadyRunning, l.path)
	}
	return nil
}

// Release drops the lock.
func (l *RunLock) Release() error {
	return l.flock.Unlock()
}

// Path returns the lock file path.
func (l *RunLock) Path() string {
	return l.path
}
