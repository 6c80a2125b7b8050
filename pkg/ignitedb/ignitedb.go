// Package ignitedb provides an embedded, single-writer key-value store
// built on the Bitcask design: an append-only log on disk plus an
// in-memory index mapping each live key to the byte location of its most
// recent value. It targets workloads where keys fit comfortably in RAM and
// reads should cost one seek plus one sequential read.
package ignitedb

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ignitedb/ignitedb/internal/autocompact"
	"github.com/ignitedb/ignitedb/internal/engine"
	"github.com/ignitedb/ignitedb/pkg/errors"
	"github.com/ignitedb/ignitedb/pkg/filesys"
	"github.com/ignitedb/ignitedb/pkg/logger"
	"github.com/ignitedb/ignitedb/pkg/options"
)

// manifestFileName holds a snapshot of the database's stats at backup
// time, written atomically so a reader of dest never sees a half-written
// manifest if the process is killed mid-backup.
const manifestFileName = "MANIFEST"

// DB is the primary entry point for interacting with ignitedb. It wraps
// the internal engine façade and the background compaction ticker, if one
// was requested through WithCompactInterval.
type DB struct {
	engine *engine.Engine
	opts   *options.Options
	ticker *autocompact.Ticker
}

// Open opens (or creates) a database at the directory named by opts'
// DataDir, replaying its log to rebuild the in-memory index before
// returning. Only one DB may have a given directory open at a time,
// enforced by an OS-level advisory lock; a second concurrent Open on the
// same directory fails immediately.
func Open(service string, opts ...options.OptionFunc) (*DB, error) {
	if strings.TrimSpace(service) == "" {
		return nil, errors.NewRequiredFieldError("service")
	}

	log := logger.New(service)

	cfg := options.NewDefaultOptions()
	for _, apply := range opts {
		apply(&cfg)
	}

	eng, err := engine.Open(&engine.Config{Options: &cfg, Logger: log})
	if err != nil {
		return nil, err
	}

	db := &DB{engine: eng, opts: &cfg}
	if cfg.CompactInterval > 0 {
		db.ticker = autocompact.Start(eng, cfg.CompactInterval, log)
	}

	return db, nil
}

// Get returns the value stored for key, or an error wrapping
// errors.ErrKeyNotFound if key has no live entry.
func (db *DB) Get(_ context.Context, key []byte) ([]byte, error) {
	return db.engine.Get(key)
}

// Put stores value under key, overwriting any previous value. Both key and
// value must be non-empty.
func (db *DB) Put(_ context.Context, key, value []byte) error {
	return db.engine.Put(key, value)
}

// Delete removes key's value, appending a tombstone record. Deleting an
// absent key is not an error.
func (db *DB) Delete(_ context.Context, key []byte) error {
	return db.engine.Delete(key)
}

// Compact merges every sealed segment's live records into one fresh
// segment and unlinks the segments it replaces. It is a no-op if fewer
// than two sealed segments currently exist.
func (db *DB) Compact(_ context.Context) error {
	return db.engine.Compact()
}

// Keys returns a snapshot of every key currently live in the database.
func (db *DB) Keys(_ context.Context) []string {
	return db.engine.Keys()
}

// Stats summarizes the database's current state: live key count, the
// active segment's id and size, and the number of sealed segments.
type Stats = engine.Stats

// Stats reports the database's current size and segment layout.
func (db *DB) Stats(_ context.Context) (Stats, error) {
	return db.engine.Stats()
}

// Backup copies the entire data directory, including the lock file, to
// dest, then writes a MANIFEST file recording the stats observed at backup
// time. The caller is responsible for ensuring dest does not collide with
// a directory another engine has open; Backup does not acquire a lock on
// dest itself.
func (db *DB) Backup(ctx context.Context, dest string) error {
	if err := filesys.CopyDir(db.engine.Dir(), dest); err != nil {
		return err
	}

	stats, err := db.Stats(ctx)
	if err != nil {
		return err
	}

	manifest := fmt.Sprintf(
		"liveKeys=%d\nactiveSegment=%d\nactiveSize=%d\nsealedSegments=%d\n",
		stats.LiveKeys, stats.ActiveSegment, stats.ActiveSize, stats.SealedSegments,
	)
	return filesys.WriteFileAtomic(filepath.Join(dest, manifestFileName), []byte(manifest))
}

// Close releases the directory lock and stops the background compaction
// ticker, if one was running. It is idempotent; calling Close more than
// once returns an error on the second and later calls.
func (db *DB) Close(_ context.Context) error {
	if db.ticker != nil {
		db.ticker.Stop()
	}
	return db.engine.Close()
}

// Destroy removes a database's entire data directory, including every
// segment file and the lock sentinel. The directory must not currently be
// open in this or any other process: Destroy attempts to acquire the
// directory's lock before removing anything, and fails without touching
// disk if another engine already holds it.
func Destroy(dataDir string) error {
	exists, err := filesys.Exists(dataDir)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}

	cfg := options.NewDefaultOptions()
	options.WithDataDir(dataDir)(&cfg)

	eng, err := engine.Open(&engine.Config{Options: &cfg, Logger: logger.Nop()})
	if err != nil {
		return err
	}
	if err := eng.Close(); err != nil {
		return err
	}

	return filesys.DeleteDir(dataDir)
}
