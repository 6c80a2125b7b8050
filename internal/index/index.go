// Package index provides the in-memory keydir that maps every live key to
// the location of its most recent value on disk: which segment holds it,
// the byte offset its record starts at, and how large that record is.
//
// The keydir is the reason Bitcask-style reads stay O(1) regardless of how
// much data lives on disk: a lookup never scans a segment, it seeks
// straight to the offset the keydir already knows. The cost is that every
// live key's metadata, and the key itself, must fit in memory at once.
//
// This package does not protect itself with a mutex. The calling engine is
// the sole writer and sole reader of a directory for the lifetime of the
// process, so serializing access is the caller's responsibility, not the
// keydir's.
package index

import (
	"go.uber.org/zap"
)

// Entry is the metadata the keydir keeps for a single live key: enough to
// seek directly to its value without touching any other segment.
type Entry struct {
	SegmentID   uint64
	Offset      int64
	EntrySize   uint32
	TimestampMs uint64
}

// Index is the in-memory hash table from key to Entry.
type Index struct {
	log     *zap.SugaredLogger
	entries map[string]Entry
}

// Config configures a new Index.
type Config struct {
	Logger *zap.SugaredLogger
}

// New creates an empty keydir ready to be populated by recovery or by live writes.
func New(cfg Config) *Index {
	return &Index{
		log:     cfg.Logger,
		entries: make(map[string]Entry, 1024),
	}
}

// Put records or overwrites the location of key's most recent value.
// Callers are expected to call this only after the corresponding record
// has been durably appended to the segment it names.
func (idx *Index) Put(key string, entry Entry) {
	idx.entries[key] = entry
}

// Get returns the stored location for key, and whether it exists. A key
// absent from the keydir has either never been written or was deleted by a
// tombstone, which removes it entirely rather than leaving a marker.
func (idx *Index) Get(key string) (Entry, bool) {
	e, ok := idx.entries[key]
	return e, ok
}

// Delete removes key's entry from the keydir. It does not write a
// tombstone record to disk; that is the engine's responsibility before
// calling Delete.
func (idx *Index) Delete(key string) {
	delete(idx.entries, key)
}

// Len returns the number of live keys currently tracked.
func (idx *Index) Len() int {
	return len(idx.entries)
}

// Keys returns a snapshot slice of every live key. The slice is a copy;
// mutating it has no effect on the index.
func (idx *Index) Keys() []string {
	keys := make([]string, 0, len(idx.entries))
	for k := range idx.entries {
		keys = append(keys, k)
	}
	return keys
}

// Range calls fn for every live key/entry pair, stopping early if fn
// returns false. Used by compaction to decide which records in a sealed
// segment are still live.
func (idx *Index) Range(fn func(key string, entry Entry) bool) {
	for k, e := range idx.entries {
		if !fn(k, e) {
			return
		}
	}
}

// LiveSegments returns the set of segment ids the keydir currently has at
// least one live entry pointing into.
func (idx *Index) LiveSegments() map[uint64]struct{} {
	segs := make(map[uint64]struct{})
	for _, e := range idx.entries {
		segs[e.SegmentID] = struct{}{}
	}
	return segs
}
