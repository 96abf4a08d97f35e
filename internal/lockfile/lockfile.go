// Package lockfile provides an exclusive, non-blocking advisory lock on a
// file. The lock is held per open handle, so two holders conflict whether
// they live in the same process or in different ones.
package lockfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// ErrLocked is returned by Acquire when another holder has the lock.
var ErrLocked = errors.New("lockfile: already locked")

// Locker hands out the lock on one file.
type Locker struct {
	path string
}

// New returns a Locker for path. Nothing is created until Acquire.
func New(path string) *Locker {
	return &Locker{path: path}
}

// Path returns the lock file location.
func (l *Locker) Path() string { return l.path }

// Acquire takes the lock without waiting. The returned release function
// drops it; the file itself is left in place.
func (l *Locker) Acquire() (func() error, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return nil, fmt.Errorf("lockfile: creating directory for %s: %w", l.path, err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("lockfile: opening %s: %w", l.path, err)
	}

	if err := lock(f); err != nil {
		_ = f.Close()
		if errors.Is(err, ErrLocked) {
			return nil, fmt.Errorf("%w: %s", ErrLocked, l.path)
		}
		return nil, fmt.Errorf("lockfile: locking %s: %w", l.path, err)
	}

	// The PID is informational only.
	if err := f.Truncate(0); err == nil {
		_, _ = f.WriteAt([]byte(strconv.Itoa(os.Getpid())), 0)
	}

	return func() error {
		uerr := unlock(f)
		cerr := f.Close()
		if err := errors.Join(uerr, cerr); err != nil {
			return fmt.Errorf("lockfile: releasing %s: %w", l.path, err)
		}
		return nil
	}, nil
}
