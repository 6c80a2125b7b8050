// Package filelock enforces the single-writer-per-directory contract with
// an OS-level advisory lock on a sentinel file, db.lock, held for the
// entire lifetime of an open engine.
package filelock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	ignerrors "github.com/ignitedb/ignitedb/pkg/errors"
)

const fileName = "db.lock"

// Path returns the sentinel lock file path for a data directory.
func Path(dir string) string {
	return filepath.Join(dir, fileName)
}

// Lock holds an acquired exclusive lock on a directory's sentinel file.
// It must be released with Close once the engine is done with the directory.
type Lock struct {
	file *os.File
	path string
}

// Acquire takes a non-blocking exclusive lock on dir's sentinel file,
// creating the sentinel if it does not already exist. It never replaces an
// existing sentinel: flock locks an inode, not a path, so recreating the
// file out from under another process holding it would let two writers
// believe they each hold the lock.
//
// Returns an *errors.EngineError wrapping ErrWriterBusy if another process
// (or another open engine in this process) already holds the lock.
func Acquire(dir string) (*Lock, error) {
	path := Path(dir)

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, ignerrors.NewEngineError(err, ignerrors.ErrorCodeIO, "failed to open lock file").
			WithPath(path)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, ignerrors.NewEngineError(ignerrors.ErrWriterBusy, ignerrors.ErrorCodeWriterBusy, "directory is locked by another writer").
				WithPath(path)
		}
		return nil, ignerrors.NewEngineError(err, ignerrors.ErrorCodeWriterBusy, "failed to acquire directory lock").
			WithPath(path)
	}

	return &Lock{file: f, path: path}, nil
}

// Close releases the lock and closes the underlying file descriptor. It is
// idempotent; subsequent calls return nil.
func (l *Lock) Close() error {
	if l == nil || l.file == nil {
		return nil
	}

	fd := int(l.file.Fd())
	unlockErr := unix.Flock(fd, unix.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil

	if unlockErr != nil {
		return fmt.Errorf("filelock: releasing lock on %s: %w", l.path, unlockErr)
	}
	if closeErr != nil {
		return fmt.Errorf("filelock: closing lock file %s: %w", l.path, closeErr)
	}
	return nil
}
