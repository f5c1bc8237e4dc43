// Package lock serializes fetch runs that write the same on-disk index.
package lock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	ingesterr "github.com/Aman-CERP/nycingest/internal/errors"
)

// FileName is the lock file created inside the data directory.
const FileName = ".nycingest.lock"

// FileLock provides cross-process file locking using gofrs/flock.
type FileLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewFileLock creates a new file lock for the given directory.
// The lock file will be created at <dir>/.nycingest.lock
func NewFileLock(dir string) *FileLock {
	lockPath := filepath.Join(dir, FileName)
	return &FileLock{
		path:  lockPath,
		flock: flock.New(lockPath),
	}
}

// TryLock attempts to acquire the lock without blocking.
// Returns true if the lock was acquired, false if it's held by another process.
func (l *FileLock) TryLock() (bool, error) {
	if err := l.ensureDir(); err != nil {
		return false, err
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if acquired {
		l.locked = true
	}
	return acquired, nil
}

// LockContext retries TryLock every retryDelay until the lock is acquired
// or ctx is done.
func (l *FileLock) LockContext(ctx context.Context, retryDelay time.Duration) (bool, error) {
	if err := l.ensureDir(); err != nil {
		return false, err
	}

	acquired, err := l.flock.TryLockContext(ctx, retryDelay)
	if err != nil {
		if ctx.Err() != nil {
			return false, nil
		}
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if acquired {
		l.locked = true
	}
	return acquired, nil
}

// Unlock releases the file lock.
// It's safe to call Unlock multiple times or on an unlocked FileLock.
func (l *FileLock) Unlock() error {
	if !l.locked {
		return nil
	}

	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Path returns the path to the lock file.
func (l *FileLock) Path() string {
	return l.path
}

// IsLocked returns true if the lock is currently held.
func (l *FileLock) IsLocked() bool {
	return l.locked
}

func (l *FileLock) ensureDir() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}
	return nil
}

// Acquire takes the run lock for dataDir. With wait > 0 it retries until
// wait elapses; otherwise it fails at once when another run holds the lock.
func Acquire(ctx context.Context, dataDir string, wait time.Duration) (*FileLock, error) {
	l := NewFileLock(dataDir)

	var (
		acquired bool
		err      error
	)
	if wait > 0 {
		waitCtx, cancel := context.WithTimeout(ctx, wait)
		defer cancel()
		acquired, err = l.LockContext(waitCtx, 100*time.Millisecond)
	} else {
		acquired, err = l.TryLock()
	}
	if err != nil {
		return nil, ingesterr.New(ingesterr.ErrCodeIndexLocked, "failed to lock data directory", err).
			WithDetail("path", l.Path())
	}
	if !acquired {
		return nil, ingesterr.New(ingesterr.ErrCodeIndexLocked, "another run is writing the index", nil).
			WithDetail("path", l.Path()).
			WithSuggestion("Wait for the other nycingest process to finish")
	}
	return l, nil
}
