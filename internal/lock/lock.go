// Package lock guards a replica directory against concurrent mirroring processes.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

var ErrLocked = errors.New("replica is locked by another process")

type Lock struct {
	flock *flock.Flock
}

func New(path string) *Lock {
	return &Lock{flock: flock.New(path)}
}

// DefaultPath returns the lock file path used for replicaDir when none is configured.
// The lock never lives inside the replica itself, because the prune pass would remove it.
func DefaultPath(replicaDir string) string {
	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+filepath.ToSlash(replicaDir)))
	return filepath.Join(os.TempDir(), "dirmirror-"+id.String()+".lock")
}

func (l *Lock) Path() string {
	return l.flock.Path()
}

// Acquire takes the lock without blocking. It returns ErrLocked if another process holds it.
func (l *Lock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.flock.Path()), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	locked, err := l.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to lock replica: %w", err)
	}
	if !locked {
		return ErrLocked
	}
	return nil
}

// Release unlocks and removes the lock file. It is a no-op if this process doesn't hold the lock.
func (l *Lock) Release() error {
	if !l.flock.Locked() {
		return nil
	}

	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to unlock replica: %w", err)
	}

	if err := os.Remove(l.flock.Path()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}
