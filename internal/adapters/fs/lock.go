package fs

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/bft-labs/ledship/internal/domain"
)

// DefaultLockFile is the lock file name used when none is configured.
const DefaultLockFile = "ledship.lock"

// InstanceLock guards against two bridges reading the same UDP stream and
// driving the same devices.
type InstanceLock struct {
	path string
	lock *flock.Flock
}

// NewInstanceLock creates a lock on path. The lock is not taken yet.
func NewInstanceLock(path string) *InstanceLock {
	if path == "" {
		path = filepath.Join(os.TempDir(), DefaultLockFile)
	}
	return &InstanceLock{path: path, lock: flock.New(path)}
}

// Acquire takes the lock without blocking.
// Returns domain.ErrInstanceLocked if another process holds it.
func (l *InstanceLock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create lock dir: %w", err)
	}
	ok, err := l.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock %s: %w", l.path, err)
	}
	if !ok {
		return fmt.Errorf("%w (lock %s)", domain.ErrInstanceLocked, l.path)
	}
	return nil
}

// Release drops the lock. It is a no-op if the lock is not held.
func (l *InstanceLock) Release() error {
	if !l.lock.Locked() {
		return nil
	}
	return l.lock.Unlock()
}

// Path returns the lock file path.
func (l *InstanceLock) Path() string {
	return l.path
}
