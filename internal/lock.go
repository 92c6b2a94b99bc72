package internal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// LockFileName guards a library against two concurrent reorganizations.
const LockFileName = ".terraform.lock"

// RunLock is a pid-keyed lock file. Liveness of the pid decides whether
// an existing lock is honored or treated as a leftover from a crash.
type RunLock struct {
	path string
}

// AcquireRunLock takes the lock for the current process. It fails when
// another live process holds it; a stale lock from a dead pid is
// reclaimed.
func AcquireRunLock(libraryRoot string) (*RunLock, error) {
	path := filepath.Join(libraryRoot, LockFileName)

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			f.Close()
			return &RunLock{path: path}, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("failed to create lock file: %w", err)
		}

		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil, fmt.Errorf("lock file exists but is unreadable: %w", readErr)
		}
		pid, convErr := strconv.Atoi(strings.TrimSpace(string(data)))
		if convErr == nil && pidAlive(pid) {
			return nil, fmt.Errorf("another reorganization is running (pid %d)", pid)
		}

		// Stale lock from a dead process; reclaim it.
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to remove stale lock: %w", err)
		}
	}
	return nil, fmt.Errorf("failed to acquire lock at %s", path)
}

func (l *RunLock) Release() error {
	return os.Remove(l.path)
}

// pidAlive probes process existence with signal 0.
func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}
