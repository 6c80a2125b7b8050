// Package engine provides the core database engine implementation for
// ignitedb: the Bitcask-style coordinator that owns a data directory's
// lock, keydir, active segment writer, and sealed-segment read cache, and
// turns Put/Get/Delete calls into append-only log records.
//
// The engine is not safe for concurrent use by multiple goroutines. A
// single writer goroutine per directory is the contract the on-disk
// format and the OS-level lock both enforce; callers that need concurrent
// access are expected to coordinate it themselves, the same way they
// would coordinate access to any other single-writer resource.
package engine

import (
	"os"
	"path/filepath"
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ignitedb/ignitedb/internal/compaction"
	"github.com/ignitedb/ignitedb/internal/filelock"
	"github.com/ignitedb/ignitedb/internal/index"
	"github.com/ignitedb/ignitedb/internal/record"
	"github.com/ignitedb/ignitedb/internal/recovery"
	"github.com/ignitedb/ignitedb/internal/segment"
	"github.com/ignitedb/ignitedb/internal/segpath"
	"github.com/ignitedb/ignitedb/pkg/errors"
	"github.com/ignitedb/ignitedb/pkg/filesys"
	"github.com/ignitedb/ignitedb/pkg/options"
)

// Engine coordinates the keydir, the active segment writer, and the sealed
// segment reader cache for a single data directory. It is the unit that
// owns the directory lock for its entire lifetime.
type Engine struct {
	dir     string
	opts    *options.Options
	log     *zap.SugaredLogger
	closed  atomic.Bool
	lock    *filelock.Lock
	idx     *index.Index
	writer  *segment.Writer
	readers *segment.ReaderCache
}

// Config holds everything needed to open an Engine.
type Config struct {
	Options *options.Options
	Logger  *zap.SugaredLogger
}

// Open acquires the directory lock, replays every segment to rebuild the
// keydir, and readies the engine for reads and writes. If another engine
// already holds the directory's lock, Open returns an error wrapping
// errors.ErrWriterBusy without touching anything on disk.
func Open(config *Config) (*Engine, error) {
	if config == nil {
		return nil, errors.NewConfigurationValidationError("config", "engine configuration must not be nil")
	}
	if config.Options == nil {
		return nil, errors.NewConfigurationValidationError("config.Options", "options must not be nil")
	}
	if config.Logger == nil {
		return nil, errors.NewConfigurationValidationError("config.Logger", "logger must not be nil")
	}
	if err := config.Options.Validate(); err != nil {
		return nil, err
	}

	dir := config.Options.DataDir
	log := config.Logger

	existed, err := filesys.Exists(dir)
	if err != nil {
		return nil, errors.NewEngineError(err, errors.ErrorCodeIO, "failed to stat data directory").
			WithPath(dir)
	}

	if err := filesys.CreateDir(dir, 0o755, true); err != nil {
		return nil, errors.ClassifyDirectoryCreationError(err, dir)
	}

	lock, err := filelock.Acquire(dir)
	if err != nil {
		return nil, err
	}

	log.Infow("recovering data directory", "dir", dir, "freshDirectory", !existed)

	layout, err := recovery.Scan(dir)
	if err != nil {
		_ = lock.Close()
		return nil, err
	}

	idx := index.New(index.Config{Logger: log})
	activeSize, err := recovery.Replay(dir, layout, idx, log)
	if err != nil {
		_ = lock.Close()
		return nil, err
	}

	log.Infow("recovery complete", "liveKeys", idx.Len(), "sealedSegments", len(layout.SealedIDs), "hadActive", layout.HasActive)

	var writer *segment.Writer
	if layout.HasActive {
		// A crash can leave a torn record past activeSize: bytes recovery
		// refused to apply because their header or CRC didn't check out.
		// Truncate them away before resuming appends, otherwise a future
		// recovery pass would hit that garbage first and stop scanning
		// before ever reaching the valid records written after it.
		activePath := filepath.Join(dir, segpath.ActiveName(layout.ActiveID))
		if err := os.Truncate(activePath, activeSize); err != nil {
			_ = lock.Close()
			return nil, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to truncate torn tail from active segment").
				WithPath(activePath).
				WithSegmentID(layout.ActiveID)
		}

		writer, err = segment.OpenWriter(segment.WriterConfig{
			Dir: dir, ID: layout.ActiveID, Sync: config.Options.Sync, Logger: log,
		})
	} else {
		writer, err = segment.CreateWriter(segment.WriterConfig{
			Dir: dir, ID: segpath.NewID(), Sync: config.Options.Sync, Logger: log,
		})
	}
	if err != nil {
		_ = lock.Close()
		return nil, err
	}

	return &Engine{
		dir:     dir,
		opts:    config.Options,
		log:     log,
		lock:    lock,
		idx:     idx,
		writer:  writer,
		readers: segment.NewReaderCache(dir, log),
	}, nil
}

// Put appends a record for key/value to the active segment and updates the
// keydir to point at it, rotating the active segment first if the write
// would push it past the configured size threshold.
func (e *Engine) Put(key, value []byte) error {
	if e.closed.Load() {
		return errors.NewEngineError(errors.ErrEngineClosed, errors.ErrorCodeEngineClosed, "engine is closed")
	}
	if len(key) == 0 {
		return errors.NewValidationError(errors.ErrInvalidEmptyKey, errors.ErrorCodeInvalidInput, "key must not be empty").
			WithField("key")
	}
	if len(value) == 0 {
		return errors.NewValidationError(errors.ErrInvalidEmptyValue, errors.ErrorCodeInvalidInput, "value must not be empty").
			WithField("value")
	}

	if err := e.rotateIfNeeded(record.EncodedSize(key, value)); err != nil {
		return err
	}

	buf, ts, err := record.EncodePut(key, value)
	if err != nil {
		return errors.NewStorageError(err, errors.ErrorCodeIO, "failed to encode record")
	}

	offset, err := e.writer.Append(buf)
	if err != nil {
		return err
	}

	e.idx.Put(string(key), index.Entry{
		SegmentID:   e.writer.ID(),
		Offset:      offset,
		EntrySize:   uint32(len(buf)),
		TimestampMs: ts,
	})
	return nil
}

// Get returns the most recent live value for key, or an error wrapping
// errors.ErrKeyNotFound if no live entry exists.
func (e *Engine) Get(key []byte) ([]byte, error) {
	if e.closed.Load() {
		return nil, errors.NewEngineError(errors.ErrEngineClosed, errors.ErrorCodeEngineClosed, "engine is closed")
	}

	entry, ok := e.idx.Get(string(key))
	if !ok {
		return nil, errors.NewKeyNotFoundError(string(key))
	}

	body, err := e.readEntry(string(key), entry)
	if err != nil {
		return nil, err
	}

	h, err := record.DecodeHeader(body[:record.HeaderSize])
	if err != nil {
		return nil, errors.NewStorageError(err, errors.ErrorCodeHeaderReadFailure, "failed to decode record header").
			WithSegmentID(entry.SegmentID).
			WithOffset(entry.Offset)
	}

	value := append([]byte(nil), body[record.HeaderSize+h.KeyLen:]...)
	return value, nil
}

// Delete appends a tombstone for key and removes its entry from the
// keydir. Deleting a key that doesn't currently exist is not an error:
// the tombstone is still appended so that, after a future compaction, a
// stale value for the same key cannot resurface from an older segment.
func (e *Engine) Delete(key []byte) error {
	if e.closed.Load() {
		return errors.NewEngineError(errors.ErrEngineClosed, errors.ErrorCodeEngineClosed, "engine is closed")
	}
	if len(key) == 0 {
		return errors.NewValidationError(errors.ErrInvalidEmptyKey, errors.ErrorCodeInvalidInput, "key must not be empty").
			WithField("key")
	}

	if err := e.rotateIfNeeded(record.EncodedSize(key, nil)); err != nil {
		return err
	}

	buf, _, err := record.EncodeTombstone(key)
	if err != nil {
		return errors.NewStorageError(err, errors.ErrorCodeIO, "failed to encode tombstone")
	}

	if _, err := e.writer.Append(buf); err != nil {
		return err
	}

	e.idx.Delete(string(key))
	return nil
}

// Keys returns a snapshot of every currently live key.
func (e *Engine) Keys() []string {
	return e.idx.Keys()
}

// Stats summarizes the engine's current state.
type Stats struct {
	LiveKeys       int
	ActiveSegment  uint64
	ActiveSize     int64
	SealedSegments int
}

// Stats reports the number of live keys, the active segment's id and
// size, and how many sealed segments currently exist on disk.
func (e *Engine) Stats() (Stats, error) {
	layout, err := recovery.Scan(e.dir)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		LiveKeys:       e.idx.Len(),
		ActiveSegment:  e.writer.ID(),
		ActiveSize:     e.writer.Size(),
		SealedSegments: len(layout.SealedIDs),
	}, nil
}

// Index exposes the engine's keydir for the compaction package, which
// needs to read and rewrite it as part of merging sealed segments.
func (e *Engine) Index() *index.Index { return e.idx }

// Dir returns the data directory this engine owns.
func (e *Engine) Dir() string { return e.dir }

// Logger returns the engine's structured logger, for subsystems that need
// to log under the same fields.
func (e *Engine) Logger() *zap.SugaredLogger { return e.log }

// Writer exposes the active segment writer. Compaction does not use it: it
// skips the active segment by copying only records from the sealed
// segments recovery.Scan lists.
func (e *Engine) Writer() *segment.Writer { return e.writer }

// Readers exposes the sealed-segment reader cache, needed by compaction to
// read the records it is about to merge and to evict handles it unlinks.
func (e *Engine) Readers() *segment.ReaderCache { return e.readers }

// Options returns the engine's configuration.
func (e *Engine) Options() *options.Options { return e.opts }

// readEntry resolves a keydir entry to the record bytes it names. If the
// segment it points at is missing from disk — a keydir pointing somewhere
// that doesn't exist, which should never happen outside of out-of-band
// tampering with the data directory — it reports the richer
// errors.IndexError instead of the raw storage failure, since the problem
// is the keydir's consistency with disk, not the read itself.
func (e *Engine) readEntry(key string, entry index.Entry) ([]byte, error) {
	var (
		body []byte
		err  error
	)
	if entry.SegmentID == e.writer.ID() {
		body, err = e.writer.ReadAt(entry.Offset, int(entry.EntrySize))
	} else {
		body, err = e.readers.ReadAt(entry.SegmentID, entry.Offset, int(entry.EntrySize))
	}
	if err != nil {
		if se, ok := errors.AsStorageError(err); ok && se.Code() == errors.ErrorCodeFileNotFound {
			return nil, errors.NewSegmentIDError(entry.SegmentID, key)
		}
		return nil, err
	}
	return body, nil
}

// rotateIfNeeded seals the active segment and opens a fresh one if
// appending nextRecordSize bytes would push it past the configured
// rotation threshold. A record larger than the threshold by itself is
// still written to its own segment rather than rejected.
func (e *Engine) rotateIfNeeded(nextRecordSize int64) error {
	maxSize := int64(e.opts.SegmentOptions.Size)
	if e.writer.Size() == 0 || e.writer.Size()+nextRecordSize <= maxSize {
		return nil
	}

	if err := e.writer.Seal(); err != nil {
		return err
	}

	newWriter, err := segment.CreateWriter(segment.WriterConfig{
		Dir: e.dir, ID: segpath.NewID(), Sync: e.opts.Sync, Logger: e.log,
	})
	if err != nil {
		return err
	}

	e.log.Infow("rotated active segment", "previousSegment", e.writer.ID(), "newSegment", newWriter.ID())
	e.writer = newWriter
	return nil
}

// Compact merges every sealed segment's live records into one fresh
// segment and unlinks the ones it replaces. It is a no-op, returning no
// error, if fewer than compaction.MinSealedSegments sealed segments exist.
func (e *Engine) Compact() error {
	if e.closed.Load() {
		return errors.NewEngineError(errors.ErrEngineClosed, errors.ErrorCodeEngineClosed, "engine is closed")
	}

	_, err := compaction.Run(compaction.Config{
		Dir:     e.dir,
		Index:   e.idx,
		Readers: e.readers,
		Sync:    e.opts.Sync,
		Logger:  e.log,
	})
	return err
}

// Close releases the engine's segment handles and directory lock. It is
// idempotent; calling it more than once returns
// errors.ErrEngineClosed on the second and later calls.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return errors.NewEngineError(errors.ErrEngineClosed, errors.ErrorCodeEngineClosed, "engine already closed")
	}

	var err error
	if closeErr := e.writer.Close(); closeErr != nil {
		err = multierr.Append(err, closeErr)
	}
	if closeErr := e.readers.Close(); closeErr != nil {
		err = multierr.Append(err, closeErr)
	}
	if closeErr := e.lock.Close(); closeErr != nil {
		err = multierr.Append(err, closeErr)
	}
	return err
}
