package shared

import (
	"fmt"

	"github.com/gofrs/flock"
)

// RunLock is an exclusive, non-blocking file lock held for the duration of a sync run.
//
// Two processes sharing one SQLite cache would otherwise interleave appends to the same playlists.
type RunLock struct {
	lock *flock.Flock
}

// LockPath returns the lock file path guarding the SQLite cache at dbPath.
func LockPath(dbPath string) string {
	return dbPath + ".lock"
}

// AcquireRunLock takes the lock at path or returns [ErrLocked] when another process holds it.
func AcquireRunLock(path string) (*RunLock, error) {
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	}
	return &RunLock{lock: lock}, nil
}

// Release unlocks the run lock. Safe to call on a nil lock.
func (l *RunLock) Release() error {
	if l == nil || l.lock == nil {
		return nil
	}
	return l.lock.Unlock()
}
