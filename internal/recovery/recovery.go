// Package recovery rebuilds the in-memory keydir by replaying every
// segment file in a data directory from scratch. It runs once, during
// Open, and is what lets the engine resume exactly where a previous
// process left off — including one that crashed mid-write.
package recovery

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/ignitedb/ignitedb/internal/index"
	"github.com/ignitedb/ignitedb/internal/record"
	"github.com/ignitedb/ignitedb/internal/segpath"
	ignerrors "github.com/ignitedb/ignitedb/pkg/errors"
)

// Layout describes what Scan found on disk: the sealed segments in
// ascending id order and the id of the single active segment, if any.
type Layout struct {
	SealedIDs []uint64
	ActiveID  uint64
	HasActive bool
}

// Scan lists dir and classifies every entry by name, ignoring the lock
// sentinel and subdirectories. Any other file that doesn't match the
// segment naming scheme is rejected with an *errors.IndexError. It also
// returns an *errors.IndexError if more than one active segment is
// found, which should never happen under the single-writer-per-directory
// contract and indicates the directory was tampered with out of band.
func Scan(dir string) (Layout, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Layout{}, ignerrors.NewEngineError(err, ignerrors.ErrorCodeIO, "failed to list data directory").
			WithPath(dir)
	}

	var layout Layout
	for _, e := range entries {
		if e.IsDir() {
			continue
		}

		name := e.Name()
		if name == segpath.LockFileName {
			continue
		}

		id, kind, err := segpath.Parse(name)
		if err != nil {
			return Layout{}, ignerrors.NewTimestampExtractionError(name, err)
		}

		switch kind {
		case segpath.Active:
			if layout.HasActive {
				return Layout{}, ignerrors.NewIndexCorruptionError("Scan", len(layout.SealedIDs), nil).
					WithDetail("path", dir).
					WithDetail("reason", "multiple active segments found")
			}
			layout.HasActive = true
			layout.ActiveID = id
		case segpath.Sealed:
			layout.SealedIDs = append(layout.SealedIDs, id)
		default:
			return Layout{}, ignerrors.NewTimestampExtractionError(name, errors.New("not a segment file name"))
		}
	}

	sort.Slice(layout.SealedIDs, func(i, j int) bool { return layout.SealedIDs[i] < layout.SealedIDs[j] })
	return layout, nil
}

// Replay rebuilds idx by scanning every sealed segment in ascending id
// order followed by the active segment, so that later writes always
// override earlier ones for the same key exactly as they did originally.
//
// A torn tail — a record whose header or body doesn't fully fit in what
// remains of the file, or whose CRC doesn't match — ends that segment's
// scan without returning an error. This is the expected shape of a crash
// that happened mid-append: everything durably written before the tear is
// recovered, and the tear itself is silently dropped.
func Replay(dir string, layout Layout, idx *index.Index, log *zap.SugaredLogger) (int64, error) {
	for _, id := range layout.SealedIDs {
		if _, err := replaySegment(filepath.Join(dir, segpath.SealedName(id)), id, idx, log); err != nil {
			return 0, err
		}
	}

	if !layout.HasActive {
		return 0, nil
	}

	size, err := replaySegment(filepath.Join(dir, segpath.ActiveName(layout.ActiveID)), layout.ActiveID, idx, log)
	if err != nil {
		return 0, err
	}
	return size, nil
}

// replaySegment scans a single file start to end, applying each record it
// fully decodes to idx, and returns the byte offset the scan stopped at —
// which is the file's true logical size after truncating any torn tail.
func replaySegment(path string, id uint64, idx *index.Index, log *zap.SugaredLogger) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, ignerrors.NewStorageError(err, ignerrors.ErrorCodeIO, "failed to open segment during recovery").
			WithPath(path).
			WithSegmentID(id)
	}
	defer f.Close()

	var offset int64
	headerBuf := make([]byte, record.HeaderSize)

	for {
		n, err := io.ReadFull(f, headerBuf)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return 0, ignerrors.NewStorageError(err, ignerrors.ErrorCodeHeaderReadFailure, "failed to read record header during recovery").
				WithPath(path).
				WithSegmentID(id).
				WithOffset(offset)
		}
		if n < record.HeaderSize {
			break
		}

		h, err := record.DecodeHeader(headerBuf)
		if err != nil {
			break
		}

		body := make([]byte, h.BodyLen())
		if _, err := io.ReadFull(f, body); err != nil {
			if log != nil {
				log.Warnw("torn record body at end of segment, truncating scan", "segmentId", id, "offset", offset)
			}
			break
		}

		if err := h.VerifyBody(body); err != nil {
			if log != nil {
				log.Warnw("crc mismatch during recovery, truncating scan", "segmentId", id, "offset", offset)
			}
			break
		}

		key := string(body[:h.KeyLen])
		recordSize := uint32(record.HeaderSize) + h.BodyLen()

		// Apply only if this record is not older than what the keydir
		// already has for key. Segments are scanned oldest-to-newest, which
		// makes this usually redundant, but clock skew across segment
		// boundaries can put an older timestamp later in scan order, and
		// the keydir must reflect the newest timestamp, not the last one seen.
		// Equal timestamps go to the record seen later in scan order.
		if current, exists := idx.Get(key); exists && h.TimestampMs < current.TimestampMs {
			offset += int64(recordSize)
			continue
		}

		if h.IsTombstone() {
			idx.Delete(key)
		} else {
			idx.Put(key, index.Entry{
				SegmentID:   id,
				Offset:      offset,
				EntrySize:   recordSize,
				TimestampMs: h.TimestampMs,
			})
		}

		offset += int64(recordSize)
	}

	return offset, nil
}
