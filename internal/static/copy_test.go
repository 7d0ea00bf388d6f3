package static

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCopyTree_ReplacesTarget(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "js"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(src, "index.html"), []byte("index"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "js", "app.js"), []byte("app"), 0o600))

	target := filepath.Join(t.TempDir(), "www")
	require.NoError(t, os.MkdirAll(target, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(target, "stale.txt"), []byte("old"), 0o600))

	require.NoError(t, CopyTree(src, target))

	data, err := os.ReadFile(filepath.Join(target, "js", "app.js"))
	require.NoError(t, err)
	require.Equal(t, "app", string(data))

	info, err := os.Stat(filepath.Join(target, "index.html"))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o644), info.Mode().Perm())

	_, err = os.Stat(filepath.Join(target, "stale.txt"))
	require.True(t, os.IsNotExist(err))
}

func TestCopyTree_Errors(t *testing.T) {
	dir := t.TempDir()
	require.ErrorIs(t, CopyTree(dir, dir), ErrSameDir)
	require.Error(t, CopyTree(filepath.Join(dir, "missing"), filepath.Join(dir, "out")))

	file := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(file, nil, 0o600))
	require.Error(t, CopyTree(file, filepath.Join(dir, "out")))
}
