package fsutil_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jvs-project/timelock/pkg/fsutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAtomicWrite_CreatesAndReplaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "timelock.yaml")

	require.NoError(t, fsutil.AtomicWrite(path, []byte("first"), 0o600))
	require.NoError(t, fsutil.AtomicWrite(path, []byte("second"), 0o600))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestAtomicWrite_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, fsutil.AtomicWrite(filepath.Join(dir, "a.json"), []byte("{}"), 0o644))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a.json", entries[0].Name())
}

func TestFsyncDir_Missing(t *testing.T) {
	assert.Error(t, fsutil.FsyncDir(filepath.Join(t.TempDir(), "missing")))
}
