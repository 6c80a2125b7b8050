// Package segment manages the on-disk segment files that make up the
// append-only log: a single active writer that records are appended to,
// and a cache of read-only handles used to satisfy lookups against sealed
// segments during Get and compaction.
package segment

import (
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/ignitedb/ignitedb/internal/segpath"
	"github.com/ignitedb/ignitedb/pkg/errors"
)

// Writer owns the single active segment file a directory may have open for
// appends at any time. It tracks the file's logical size so the engine can
// decide when a rotation is due without issuing an extra stat syscall per
// write.
type Writer struct {
	id   uint64
	size int64
	file *os.File
	dir  string
	sync bool
	log  *zap.SugaredLogger
}

// WriterConfig configures a new active segment writer.
type WriterConfig struct {
	Dir    string
	ID     uint64
	Sync   bool
	Logger *zap.SugaredLogger
}

// CreateWriter creates a brand new active segment file named after id and
// returns a Writer positioned at its (empty) start.
func CreateWriter(cfg WriterConfig) (*Writer, error) {
	return openWriter(cfg, os.O_CREATE|os.O_EXCL|os.O_RDWR|os.O_APPEND)
}

// OpenWriter opens an existing active segment file named after id for
// continued appends, used when Open resumes a directory left by the writer
// without hitting the rotation threshold.
func OpenWriter(cfg WriterConfig) (*Writer, error) {
	return openWriter(cfg, os.O_RDWR|os.O_APPEND)
}

func openWriter(cfg WriterConfig, flag int) (*Writer, error) {
	name := segpath.ActiveName(cfg.ID)
	path := filepath.Join(cfg.Dir, name)

	file, err := os.OpenFile(path, flag, 0o644)
	if err != nil {
		return nil, errors.ClassifyFileOpenError(err, path, name)
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to stat active segment").
			WithFileName(name).
			WithPath(path)
	}

	w := &Writer{
		id:   cfg.ID,
		size: info.Size(),
		file: file,
		dir:  cfg.Dir,
		sync: cfg.Sync,
		log:  cfg.Logger,
	}

	if w.log != nil {
		w.log.Infow("opened active segment", "segmentId", cfg.ID, "path", path, "size", w.size)
	}

	return w, nil
}

// ID returns the segment id this writer is appending to.
func (w *Writer) ID() uint64 { return w.id }

// Size returns the current logical size of the active segment in bytes.
func (w *Writer) Size() int64 { return w.size }

// Path returns the active segment's path on disk.
func (w *Writer) Path() string {
	return filepath.Join(w.dir, segpath.ActiveName(w.id))
}

// Append writes buf to the end of the active segment and returns the byte
// offset the record was written at, which the caller stores in the keydir.
func (w *Writer) Append(buf []byte) (offset int64, err error) {
	offset = w.size

	n, err := w.file.Write(buf)
	if err != nil {
		return 0, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to append to active segment").
			WithFileName(segpath.ActiveName(w.id)).
			WithPath(w.Path()).
			WithSegmentID(w.id).
			WithOffset(offset)
	}
	w.size += int64(n)

	if w.sync {
		if err := w.file.Sync(); err != nil {
			return 0, errors.ClassifySyncError(err, segpath.ActiveName(w.id), w.Path(), offset)
		}
	}

	return offset, nil
}

// Seal closes the writer's file handle and renames the active segment to
// its sealed name under the same id. The caller is responsible for opening
// a fresh active segment afterward.
func (w *Writer) Seal() error {
	if err := w.file.Close(); err != nil {
		return errors.NewStorageError(err, errors.ErrorCodeIO, "failed to close active segment before sealing").
			WithFileName(segpath.ActiveName(w.id)).
			WithPath(w.Path())
	}

	oldPath := w.Path()
	newPath := filepath.Join(w.dir, segpath.SealedName(w.id))
	if err := os.Rename(oldPath, newPath); err != nil {
		return errors.NewStorageError(err, errors.ErrorCodeIO, "failed to seal active segment").
			WithFileName(segpath.ActiveName(w.id)).
			WithPath(oldPath).
			WithSegmentID(w.id)
	}

	if w.log != nil {
		w.log.Infow("sealed active segment", "segmentId", w.id, "size", w.size, "path", newPath)
	}
	return nil
}

// Sync flushes the active segment to the OS page cache's backing store.
func (w *Writer) Sync() error {
	if err := w.file.Sync(); err != nil {
		return errors.ClassifySyncError(err, segpath.ActiveName(w.id), w.Path(), w.size)
	}
	return nil
}

// Close releases the underlying file handle without sealing or renaming it,
// used when the engine shuts down with the active segment still active.
func (w *Writer) Close() error {
	if err := w.file.Close(); err != nil {
		return errors.NewStorageError(err, errors.ErrorCodeIO, "failed to close active segment").
			WithFileName(segpath.ActiveName(w.id)).
			WithPath(w.Path())
	}
	return nil
}

// ReadAt reads length bytes at offset from the segment currently being
// written to, used to serve reads of keys still living in the active
// segment without needing a separate read handle.
func (w *Writer) ReadAt(offset int64, length int) ([]byte, error) {
	buf := make([]byte, length)
	if _, err := w.file.ReadAt(buf, offset); err != nil && err != io.EOF {
		return nil, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to read from active segment").
			WithFileName(segpath.ActiveName(w.id)).
			WithPath(w.Path()).
			WithSegmentID(w.id).
			WithOffset(offset)
	}
	return buf, nil
}
