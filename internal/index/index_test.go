package index

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/ignitedb/ignitedb/pkg/logger"
)

func newTestIndex() *Index {
	return New(Config{Logger: logger.Nop()})
}

func TestPutAndGet(t *testing.T) {
	idx := newTestIndex()

	want := Entry{SegmentID: 1, Offset: 0, EntrySize: 20, TimestampMs: 10}
	idx.Put("a", want)

	e, ok := idx.Get("a")
	require.True(t, ok)
	if diff := cmp.Diff(want, e); diff != "" {
		t.Errorf("Get(\"a\") mismatch (-want +got):\n%s", diff)
	}
}

func TestGetMissingKey(t *testing.T) {
	idx := newTestIndex()
	_, ok := idx.Get("missing")
	require.False(t, ok)
}

func TestPutOverwritesPreviousEntry(t *testing.T) {
	idx := newTestIndex()
	idx.Put("a", Entry{SegmentID: 1, Offset: 0, TimestampMs: 1})

	want := Entry{SegmentID: 2, Offset: 40, TimestampMs: 2}
	idx.Put("a", want)

	e, ok := idx.Get("a")
	require.True(t, ok)
	if diff := cmp.Diff(want, e); diff != "" {
		t.Errorf("Get(\"a\") mismatch after overwrite (-want +got):\n%s", diff)
	}
}

func TestDeleteRemovesEntry(t *testing.T) {
	idx := newTestIndex()
	idx.Put("a", Entry{SegmentID: 1})
	idx.Delete("a")

	_, ok := idx.Get("a")
	require.False(t, ok)
	require.Equal(t, 0, idx.Len())
}

func TestKeysSnapshot(t *testing.T) {
	idx := newTestIndex()
	idx.Put("a", Entry{})
	idx.Put("b", Entry{})

	keys := idx.Keys()
	require.ElementsMatch(t, []string{"a", "b"}, keys)

	idx.Put("c", Entry{})
	require.Len(t, keys, 2, "snapshot must not observe later mutations")
}

func TestRangeStopsEarly(t *testing.T) {
	idx := newTestIndex()
	idx.Put("a", Entry{})
	idx.Put("b", Entry{})
	idx.Put("c", Entry{})

	seen := 0
	idx.Range(func(key string, entry Entry) bool {
		seen++
		return seen < 2
	})
	require.Equal(t, 2, seen)
}

func TestLiveSegments(t *testing.T) {
	idx := newTestIndex()
	idx.Put("a", Entry{SegmentID: 1})
	idx.Put("b", Entry{SegmentID: 2})
	idx.Put("c", Entry{SegmentID: 1})

	segs := idx.LiveSegments()
	require.Len(t, segs, 2)
	require.Contains(t, segs, uint64(1))
	require.Contains(t, segs, uint64(2))
}
