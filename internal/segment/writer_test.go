package segment

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ignitedb/ignitedb/internal/segpath"
	"github.com/ignitedb/ignitedb/pkg/logger"
)

func TestCreateWriterAppendTracksSizeAndOffset(t *testing.T) {
	dir := t.TempDir()

	w, err := CreateWriter(WriterConfig{Dir: dir, ID: 1, Logger: logger.Nop()})
	require.NoError(t, err)
	defer w.Close()

	off1, err := w.Append([]byte("hello"))
	require.NoError(t, err)
	require.EqualValues(t, 0, off1)
	require.EqualValues(t, 5, w.Size())

	off2, err := w.Append([]byte("world!"))
	require.NoError(t, err)
	require.EqualValues(t, 5, off2)
	require.EqualValues(t, 11, w.Size())
}

func TestCreateWriterFailsIfActiveAlreadyExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, segpath.ActiveName(1))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	_, err := CreateWriter(WriterConfig{Dir: dir, ID: 1, Logger: logger.Nop()})
	require.Error(t, err)
}

func TestOpenWriterResumesExistingActiveSize(t *testing.T) {
	dir := t.TempDir()

	w, err := CreateWriter(WriterConfig{Dir: dir, ID: 1, Logger: logger.Nop()})
	require.NoError(t, err)
	_, err = w.Append([]byte("payload"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	reopened, err := OpenWriter(WriterConfig{Dir: dir, ID: 1, Logger: logger.Nop()})
	require.NoError(t, err)
	defer reopened.Close()
	require.EqualValues(t, 7, reopened.Size())
}

func TestWriterReadAtReturnsAppendedBytes(t *testing.T) {
	dir := t.TempDir()
	w, err := CreateWriter(WriterConfig{Dir: dir, ID: 1, Logger: logger.Nop()})
	require.NoError(t, err)
	defer w.Close()

	off, err := w.Append([]byte("abcdef"))
	require.NoError(t, err)

	buf, err := w.ReadAt(off, 6)
	require.NoError(t, err)
	require.Equal(t, "abcdef", string(buf))
}

func TestSealRenamesActiveToSealed(t *testing.T) {
	dir := t.TempDir()
	w, err := CreateWriter(WriterConfig{Dir: dir, ID: 9, Logger: logger.Nop()})
	require.NoError(t, err)

	_, err = w.Append([]byte("data"))
	require.NoError(t, err)

	require.NoError(t, w.Seal())

	_, err = os.Stat(filepath.Join(dir, segpath.ActiveName(9)))
	require.True(t, os.IsNotExist(err))

	info, err := os.Stat(filepath.Join(dir, segpath.SealedName(9)))
	require.NoError(t, err)
	require.EqualValues(t, 4, info.Size())
}
