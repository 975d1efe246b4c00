// Package lock provides an advisory, process-exclusive lock on a state
// directory so two detection runs never stage into the same "new" tree.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// FileName is the lock file created inside the locked directory.
const FileName = ".lock"

// ErrLocked is returned when another holder owns the lock.
var ErrLocked = errors.New("state directory is locked")

// Lock is a held lock. The kernel releases it if the process dies, so
// there are no stale locks to recover.
type Lock struct {
	file *os.File
	path string
}

// Acquire takes the lock on dir without blocking, creating dir if needed.
// The holder's PID is written to the lock file for diagnostics.
func Acquire(dir string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	path := filepath.Join(dir, FileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			if pid, ok := Holder(dir); ok {
				return nil, fmt.Errorf("%w by pid %d", ErrLocked, pid)
			}
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("locking %s: %w", path, err)
	}

	if err := f.Truncate(0); err == nil {
		_, _ = f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0)
	}

	return &Lock{file: f, path: path}, nil
}

// Release drops the lock. It is safe to call on a nil or released Lock.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	fd := int(l.file.Fd())
	_ = l.file.Truncate(0)
	unlockErr := unix.Flock(fd, unix.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil
	return errors.Join(unlockErr, closeErr)
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Holder returns the PID recorded in dir's lock file, if any.
func Holder(dir string) (int, bool) {
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}
