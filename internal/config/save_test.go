package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSaveViewerSetting_PreservesComments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, WriteDefaultConfig(path))

	require.NoError(t, SaveViewerSetting(path, "max_runs", 5))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	require.Contains(t, content, "max_runs: 5")
	require.Contains(t, content, "# runs kept per figure")
	require.Contains(t, content, "# Mock queue server")
	require.Contains(t, content, "interval: 250ms")
}

func TestSaveViewerSetting_CreatesFileAndSection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")

	require.NoError(t, SaveViewerSetting(path, "max_runs", 4))
	require.NoError(t, SaveViewerSetting(path, "stream_name", "baseline"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "viewer:\n  max_runs: 4\n  stream_name: baseline\n", string(data))
}

func TestSaveViewerSetting_AddsViewerToExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("# top\nserver:\n  steps: 5\n"), 0o600))

	require.NoError(t, SaveViewerSetting(path, "max_runs", 2))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "# top")
	require.Contains(t, string(data), "steps: 5")
	require.Contains(t, string(data), "viewer:\n  max_runs: 2")
}

func TestSaveViewerSetting_RejectsNonMapping(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- a\n- b\n"), 0o600))

	require.Error(t, SaveViewerSetting(path, "max_runs", 2))
}
