package recovery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ignitedb/ignitedb/internal/index"
	"github.com/ignitedb/ignitedb/internal/record"
	"github.com/ignitedb/ignitedb/internal/segpath"
	"github.com/ignitedb/ignitedb/pkg/logger"
)

func writeFile(t *testing.T, dir, name string, content []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), content, 0o644))
}

func TestScanEmptyDirectory(t *testing.T) {
	dir := t.TempDir()
	layout, err := Scan(dir)
	require.NoError(t, err)
	require.False(t, layout.HasActive)
	require.Empty(t, layout.SealedIDs)
}

func TestScanClassifiesSegmentsAndIgnoresLock(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, segpath.LockFileName, nil)
	writeFile(t, dir, segpath.SealedName(1), nil)
	writeFile(t, dir, segpath.SealedName(2), nil)
	writeFile(t, dir, segpath.ActiveName(3), nil)

	layout, err := Scan(dir)
	require.NoError(t, err)
	require.True(t, layout.HasActive)
	require.EqualValues(t, 3, layout.ActiveID)
	require.Equal(t, []uint64{1, 2}, layout.SealedIDs)
}

func TestScanRejectsMultipleActiveSegments(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, segpath.ActiveName(1), nil)
	writeFile(t, dir, segpath.ActiveName(2), nil)

	_, err := Scan(dir)
	require.Error(t, err)
}

func TestScanRejectsUnrecognizedFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "garbage.txt", nil)

	_, err := Scan(dir)
	require.Error(t, err)
}

func buildSegmentBytes(t *testing.T, entries [][2]string, tombstoneLast bool) []byte {
	t.Helper()
	var out []byte
	for i, kv := range entries {
		var buf []byte
		var err error
		if tombstoneLast && i == len(entries)-1 {
			buf, _, err = record.EncodeTombstone([]byte(kv[0]))
		} else {
			buf, _, err = record.EncodePut([]byte(kv[0]), []byte(kv[1]))
		}
		require.NoError(t, err)
		out = append(out, buf...)
	}
	return out
}

func TestReplayRebuildsIndexAcrossSegments(t *testing.T) {
	dir := t.TempDir()

	sealedBytes := buildSegmentBytes(t, [][2]string{{"a", "1"}, {"b", "2"}}, false)
	writeFile(t, dir, segpath.SealedName(1), sealedBytes)

	activeBytes := buildSegmentBytes(t, [][2]string{{"a", "3"}}, false)
	writeFile(t, dir, segpath.ActiveName(2), activeBytes)

	layout, err := Scan(dir)
	require.NoError(t, err)

	idx := index.New(index.Config{Logger: logger.Nop()})
	size, err := Replay(dir, layout, idx, logger.Nop())
	require.NoError(t, err)
	require.EqualValues(t, len(activeBytes), size)

	require.Equal(t, 2, idx.Len())

	aEntry, ok := idx.Get("a")
	require.True(t, ok)
	require.EqualValues(t, 2, aEntry.SegmentID, "later write in active segment must win")

	_, ok = idx.Get("b")
	require.True(t, ok)
}

func TestReplayAppliesTombstones(t *testing.T) {
	dir := t.TempDir()

	bytes := buildSegmentBytes(t, [][2]string{{"a", "1"}, {"a", ""}}, true)
	writeFile(t, dir, segpath.ActiveName(1), bytes)

	layout, err := Scan(dir)
	require.NoError(t, err)

	idx := index.New(index.Config{Logger: logger.Nop()})
	_, err = Replay(dir, layout, idx, logger.Nop())
	require.NoError(t, err)

	_, ok := idx.Get("a")
	require.False(t, ok, "tombstone must remove the key from the keydir")
}

func TestReplayTruncatesTornTailWithoutError(t *testing.T) {
	dir := t.TempDir()

	good := buildSegmentBytes(t, [][2]string{{"a", "1"}}, false)
	torn, _, err := record.EncodePut([]byte("b"), []byte("2"))
	require.NoError(t, err)
	torn = torn[:len(torn)-2] // chop the tail off the last record

	writeFile(t, dir, segpath.ActiveName(1), append(good, torn...))

	layout, err := Scan(dir)
	require.NoError(t, err)

	idx := index.New(index.Config{Logger: logger.Nop()})
	size, err := Replay(dir, layout, idx, logger.Nop())
	require.NoError(t, err)
	require.EqualValues(t, len(good), size)

	_, ok := idx.Get("a")
	require.True(t, ok)
	_, ok = idx.Get("b")
	require.False(t, ok, "torn record must not be applied")
}

func TestReplayTruncatesOnCRCMismatch(t *testing.T) {
	dir := t.TempDir()

	good := buildSegmentBytes(t, [][2]string{{"a", "1"}}, false)
	corrupt, _, err := record.EncodePut([]byte("b"), []byte("2"))
	require.NoError(t, err)
	corrupt[len(corrupt)-1] ^= 0xFF

	writeFile(t, dir, segpath.ActiveName(1), append(good, corrupt...))

	layout, err := Scan(dir)
	require.NoError(t, err)

	idx := index.New(index.Config{Logger: logger.Nop()})
	size, err := Replay(dir, layout, idx, logger.Nop())
	require.NoError(t, err)
	require.EqualValues(t, len(good), size)

	_, ok := idx.Get("b")
	require.False(t, ok)
}

func TestReplayFreshDirectoryIsNoop(t *testing.T) {
	dir := t.TempDir()
	layout, err := Scan(dir)
	require.NoError(t, err)

	idx := index.New(index.Config{Logger: logger.Nop()})
	size, err := Replay(dir, layout, idx, logger.Nop())
	require.NoError(t, err)
	require.EqualValues(t, 0, size)
	require.Equal(t, 0, idx.Len())
}
