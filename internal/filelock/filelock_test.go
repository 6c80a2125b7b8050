package filelock

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	ignerrors "github.com/ignitedb/ignitedb/pkg/errors"
)

func TestAcquireCreatesSentinelWhenMissing(t *testing.T) {
	dir := t.TempDir()

	lock, err := Acquire(dir)
	require.NoError(t, err)
	defer lock.Close()

	_, statErr := os.Stat(Path(dir))
	require.NoError(t, statErr)
}

func TestAcquireIsExclusiveWithinProcess(t *testing.T) {
	dir := t.TempDir()

	first, err := Acquire(dir)
	require.NoError(t, err)
	defer first.Close()

	_, err = Acquire(dir)
	require.Error(t, err)

	ee, ok := ignerrors.AsEngineError(err)
	require.True(t, ok)
	require.ErrorIs(t, ee, ignerrors.ErrWriterBusy)
}

func TestReleaseAllowsReacquire(t *testing.T) {
	dir := t.TempDir()

	first, err := Acquire(dir)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Acquire(dir)
	require.NoError(t, err)
	require.NoError(t, second.Close())
}

func TestCloseIsIdempotent(t *testing.T) {
	dir := t.TempDir()

	lock, err := Acquire(dir)
	require.NoError(t, err)
	require.NoError(t, lock.Close())
	require.NoError(t, lock.Close())
}

func TestAcquireCreatesParentlessPathCorrectly(t *testing.T) {
	dir := t.TempDir()
	lock, err := Acquire(dir)
	require.NoError(t, err)
	defer lock.Close()

	require.Equal(t, filepath.Join(dir, "db.lock"), Path(dir))
}
