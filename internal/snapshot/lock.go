package snapshot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/afero"
)

const lockFile = "rollback.lock"

// AcquireLock takes the advisory rollback lock for the storage directory
// so two rollback invocations never interleave their writes. A lock left
// behind by a killed rollback is broken when its holder process no longer
// exists, keeping retries possible. The returned release function removes
// the lock.
func (s *Store) AcquireLock() (func(), error) {
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	lockPath := filepath.Join(s.dir, lockFile)

	f, err := s.fs.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil && !s.lockHolderAlive(lockPath) {
		_ = s.fs.Remove(lockPath)
		f, err = s.fs.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	}
	if err != nil {
		return nil, fmt.Errorf("another rollback appears to be in progress (lock file %s): %w", lockPath, err)
	}
	fmt.Fprintf(f, "%d\n", os.Getpid())
	_ = f.Close()

	return func() {
		_ = s.fs.Remove(lockPath)
	}, nil
}

// lockHolderAlive reports whether the process recorded in the lock file
// still exists. An unreadable or malformed lock has no verifiable holder
// and counts as stale.
func (s *Store) lockHolderAlive(lockPath string) bool {
	data, err := afero.ReadFile(s.fs, lockPath)
	if err != nil {
		return false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// EPERM means the process exists but belongs to someone else.
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}
