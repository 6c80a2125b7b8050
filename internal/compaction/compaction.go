// Package compaction implements the offline merge that reclaims space from
// superseded records: it rewrites every keydir-referenced record still
// living in a sealed segment into one fresh segment, rewires the keydir to
// point at the new locations, and unlinks the segments it just emptied.
//
// Compaction never touches the active segment. It is invoked explicitly by
// the caller through the engine façade; nothing in this package runs on a
// background schedule.
package compaction

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ignitedb/ignitedb/internal/index"
	"github.com/ignitedb/ignitedb/internal/recovery"
	"github.com/ignitedb/ignitedb/internal/segment"
	"github.com/ignitedb/ignitedb/internal/segpath"
	"github.com/ignitedb/ignitedb/pkg/errors"
)

// MinSealedSegments is the threshold below which Run is a no-op: merging a
// single sealed segment with nothing else to reclaim from isn't worth the
// write amplification of rewriting it.
const MinSealedSegments = 2

// Config bundles everything Run needs from the engine it is compacting.
// It takes the engine's leaf dependencies directly rather than the engine
// type itself, so this package never has to import the engine façade.
type Config struct {
	Dir     string
	Index   *index.Index
	Readers *segment.ReaderCache
	Sync    bool
	Logger  *zap.SugaredLogger
}

// Result reports what a compaction run actually did.
type Result struct {
	Skipped        bool
	MergedSegments int
	NewSegmentID   uint64
	RecordsCopied  int
}

// Run performs one compaction pass. If fewer than MinSealedSegments sealed
// segments exist, Run returns a Result with Skipped set and does not touch
// the directory at all.
func Run(cfg Config) (Result, error) {
	opID := uuid.NewString()
	log := cfg.Logger.With("compactionId", opID)

	layout, err := recovery.Scan(cfg.Dir)
	if err != nil {
		return Result{}, err
	}

	if len(layout.SealedIDs) < MinSealedSegments {
		log.Infow("skipping compaction, too few sealed segments", "sealedSegments", len(layout.SealedIDs))
		return Result{Skipped: true}, nil
	}

	sealed := make(map[uint64]struct{}, len(layout.SealedIDs))
	for _, id := range layout.SealedIDs {
		sealed[id] = struct{}{}
	}

	type liveRecord struct {
		key   string
		entry index.Entry
	}

	var toCopy []liveRecord
	cfg.Index.Range(func(key string, entry index.Entry) bool {
		if _, ok := sealed[entry.SegmentID]; ok {
			toCopy = append(toCopy, liveRecord{key: key, entry: entry})
		}
		return true
	})

	log.Infow("starting compaction", "sealedSegments", len(layout.SealedIDs), "liveRecordsToCopy", len(toCopy))

	newID := segpath.NewID()
	writer, err := segment.CreateWriter(segment.WriterConfig{
		Dir: cfg.Dir, ID: newID, Sync: cfg.Sync, Logger: log,
	})
	if err != nil {
		return Result{}, err
	}

	type relocation struct {
		key      string
		offset   int64
		newEntry index.Entry
	}
	relocations := make([]relocation, 0, len(toCopy))

	for _, rec := range toCopy {
		buf, err := cfg.Readers.ReadAt(rec.entry.SegmentID, rec.entry.Offset, int(rec.entry.EntrySize))
		if err != nil {
			_ = writer.Close()
			return Result{}, err
		}

		offset, err := writer.Append(buf)
		if err != nil {
			_ = writer.Close()
			return Result{}, err
		}

		relocations = append(relocations, relocation{
			key:    rec.key,
			offset: offset,
			newEntry: index.Entry{
				SegmentID:   newID,
				Offset:      offset,
				EntrySize:   rec.entry.EntrySize,
				TimestampMs: rec.entry.TimestampMs,
			},
		})
	}

	if err := writer.Sync(); err != nil {
		_ = writer.Close()
		return Result{}, err
	}
	if err := writer.Seal(); err != nil {
		return Result{}, err
	}

	// Only after the merged segment is durably sealed do we rewire the
	// keydir and unlink the segments it replaces: a failure above leaves
	// the original sealed segments untouched and the keydir unchanged.
	for _, reloc := range relocations {
		cfg.Index.Put(reloc.key, reloc.newEntry)
	}

	merged := 0
	for id := range sealed {
		if id == newID {
			continue
		}
		if err := cfg.Readers.Evict(id); err != nil {
			log.Warnw("failed to evict reader for compacted segment", "segmentId", id, "error", err)
		}
		path := filepath.Join(cfg.Dir, segpath.SealedName(id))
		if err := os.Remove(path); err != nil {
			return Result{}, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to unlink compacted segment").
				WithPath(path).
				WithSegmentID(id)
		}
		merged++
	}

	log.Infow("compaction complete", "newSegment", newID, "mergedSegments", merged, "recordsCopied", len(relocations))

	return Result{MergedSegments: merged, NewSegmentID: newID, RecordsCopied: len(relocations)}, nil
}
