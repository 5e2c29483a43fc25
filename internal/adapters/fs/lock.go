package fs

import (
	"errors"
	"os"
	"path/filepath"

	"go.trai.ch/lpkg/internal/core/domain"
	"go.trai.ch/zerr"
	"golang.org/x/sys/unix"
)

// FileLock is an exclusive advisory lock held on a lock file.
type FileLock struct {
	f *os.File
}

// Lock blocks until it holds an exclusive flock on path+".lock", creating the file if needed.
// Processes and goroutines locking the same path exclude each other.
func Lock(path string) (*FileLock, error) {
	lockPath := path + domain.LockSuffix
	if err := os.MkdirAll(filepath.Dir(lockPath), domain.DirPerm); err != nil {
		return nil, zerr.With(lockFailed(err), "path", lockPath)
	}

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, domain.FilePerm) //nolint:gosec // Path is controlled by caller
	if err != nil {
		return nil, zerr.With(lockFailed(err), "path", lockPath)
	}

	for {
		err = unix.Flock(int(f.Fd()), unix.LOCK_EX)
		if !errors.Is(err, unix.EINTR) {
			break
		}
	}
	if err != nil {
		_ = f.Close()
		return nil, zerr.With(lockFailed(err), "path", lockPath)
	}
	return &FileLock{f: f}, nil
}

// Unlock releases the lock. The lock file itself is left in place.
func (l *FileLock) Unlock() error {
	if l == nil || l.f == nil {
		return nil
	}
	f := l.f
	l.f = nil

	if err := unix.Flock(int(f.Fd()), unix.LOCK_UN); err != nil {
		_ = f.Close()
		return zerr.With(zerr.Wrap(err, "failed to release lock"), "path", f.Name())
	}
	return f.Close()
}

func lockFailed(err error) error {
	return errors.Join(domain.ErrLockFailed, err)
}
