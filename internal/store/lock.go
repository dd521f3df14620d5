package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// WriteLock guards exclusive write access to a database file across
// processes using gofrs/flock, extending the single-background-worker
// in-process serialization (internal/async) to any other riftindex
// process sharing the same db path. Mirrors the teacher's
// internal/embed.FileLock, generalized from guarding a model download to
// guarding the index write path.
type WriteLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewWriteLock returns the lock guarding dbPath. The lock file lives
// alongside the database as "<dbPath>.lock" and is created on first Lock.
func NewWriteLock(dbPath string) *WriteLock {
	lockPath := dbPath + ".lock"
	return &WriteLock{
		path:  lockPath,
		flock: flock.New(lockPath),
	}
}

// Lock acquires the exclusive lock, blocking until it becomes available.
func (l *WriteLock) Lock() error {
	if dir := filepath.Dir(l.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create lock directory: %w", err)
		}
	}
	if err := l.flock.Lock(); err != nil {
		return fmt.Errorf("acquire write lock: %w", err)
	}
	l.locked = true
	return nil
}

// Unlock releases the lock. Safe to call on an already-unlocked WriteLock.
func (l *WriteLock) Unlock() error {
	if !l.locked {
		return nil
	}
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("release write lock: %w", err)
	}
	l.locked = false
	return nil
}

// Path returns the lock file path, primarily for tests and logging.
func (l *WriteLock) Path() string {
	return l.path
}
