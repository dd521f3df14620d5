package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteLock_LockUnlockRoundTrips(t *testing.T) {
	// Given: a write lock over a db path that doesn't exist yet
	dbPath := filepath.Join(t.TempDir(), "index.db")
	lock := NewWriteLock(dbPath)
	assert.Equal(t, dbPath+".lock", lock.Path())

	// When: acquiring and releasing the lock
	require.NoError(t, lock.Lock())
	require.NoError(t, lock.Unlock())

	// Then: unlocking an already-unlocked lock is a no-op, not an error
	require.NoError(t, lock.Unlock())
}

func TestWriteLock_SecondInstanceBlocksUntilReleased(t *testing.T) {
	// Given: two WriteLock instances over the same db path
	dbPath := filepath.Join(t.TempDir(), "index.db")
	first := NewWriteLock(dbPath)
	second := NewWriteLock(dbPath)

	require.NoError(t, first.Lock())

	// When: a second instance tries a non-blocking acquire while the first
	// still holds it
	locked, err := second.flock.TryLock()
	require.NoError(t, err)
	assert.False(t, locked, "second instance must not acquire while the first holds the lock")

	// Then: releasing the first lets the second acquire
	require.NoError(t, first.Unlock())
	require.NoError(t, second.Lock())
	require.NoError(t, second.Unlock())
}
