package segment

import (
	"os"
	"path/filepath"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ignitedb/ignitedb/internal/segpath"
	"github.com/ignitedb/ignitedb/pkg/errors"
)

// ReaderCache holds open read-only handles to sealed segment files so that
// repeated Get calls against the same segment don't pay an open(2) syscall
// each time. It has no internal mutex of its own; the engine that owns it
// is the sole writer-thread per directory and callers are expected to
// coordinate access the same way they coordinate everything else in the
// engine, matching this package's Non-goal of internal thread safety.
type ReaderCache struct {
	dir     string
	log     *zap.SugaredLogger
	handles map[uint64]*os.File
}

// NewReaderCache creates an empty cache of sealed-segment read handles.
func NewReaderCache(dir string, log *zap.SugaredLogger) *ReaderCache {
	return &ReaderCache{
		dir:     dir,
		log:     log,
		handles: make(map[uint64]*os.File),
	}
}

// ReadAt reads length bytes at offset from the sealed segment identified by
// id, opening and caching a read-only handle for it on first use.
func (c *ReaderCache) ReadAt(id uint64, offset int64, length int) ([]byte, error) {
	f, err := c.handleFor(id)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, length)
	if _, err := f.ReadAt(buf, offset); err != nil {
		return nil, errors.NewStorageError(err, errors.ErrorCodePayloadReadFailure, "failed to read from sealed segment").
			WithFileName(segpath.SealedName(id)).
			WithPath(c.pathFor(id)).
			WithSegmentID(id).
			WithOffset(offset)
	}
	return buf, nil
}

func (c *ReaderCache) handleFor(id uint64) (*os.File, error) {
	if f, ok := c.handles[id]; ok {
		return f, nil
	}

	path := c.pathFor(id)
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewStorageError(err, errors.ErrorCodeFileNotFound, "failed to open sealed segment").
			WithFileName(segpath.SealedName(id)).
			WithPath(path).
			WithSegmentID(id)
	}

	c.handles[id] = f
	return f, nil
}

func (c *ReaderCache) pathFor(id uint64) string {
	return filepath.Join(c.dir, segpath.SealedName(id))
}

// Evict closes and drops the cached handle for id, called by the compactor
// immediately before it unlinks a sealed segment file it has just merged.
func (c *ReaderCache) Evict(id uint64) error {
	f, ok := c.handles[id]
	if !ok {
		return nil
	}
	delete(c.handles, id)
	if err := f.Close(); err != nil {
		return errors.NewStorageError(err, errors.ErrorCodeIO, "failed to close sealed segment handle").
			WithFileName(segpath.SealedName(id)).
			WithSegmentID(id)
	}
	return nil
}

// Close releases every cached file handle, combining any failures with
// multierr so a single bad fd during shutdown doesn't mask the others.
func (c *ReaderCache) Close() error {
	var err error
	for id, f := range c.handles {
		if closeErr := f.Close(); closeErr != nil {
			err = multierr.Append(err, errors.NewStorageError(closeErr, errors.ErrorCodeIO, "failed to close sealed segment handle").
				WithFileName(segpath.SealedName(id)).
				WithSegmentID(id))
		}
	}
	c.handles = make(map[uint64]*os.File)
	return err
}
