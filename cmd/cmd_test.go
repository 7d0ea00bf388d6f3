package cmd

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/skywidgets/internal/catalog"
	"github.com/zjrosen/skywidgets/internal/config"
	"github.com/zjrosen/skywidgets/internal/docs"
	"github.com/zjrosen/skywidgets/internal/infrastructure/sqlite"
	"github.com/zjrosen/skywidgets/internal/log"
	"github.com/zjrosen/skywidgets/internal/qclient"
	"github.com/zjrosen/skywidgets/internal/qserver"
	"github.com/zjrosen/skywidgets/internal/viewer"
)

func resetFlags(c *cobra.Command) {
	c.Flags().VisitAll(func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	})
}

// execute runs the root command against a throwaway config file.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, config.WriteDefaultConfig(path))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--config", path}, args...))
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
		cfgFile = ""
		for _, c := range rootCmd.Commands() {
			resetFlags(c)
		}
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	SetVersion("1.2.3")
	t.Cleanup(func() { SetVersion("dev") })

	out, err := execute(t, "version")
	require.NoError(t, err)
	require.Equal(t, "skywidgets 1.2.3\n", out)
}

func TestLogLevel(t *testing.T) {
	t.Setenv("SKYWIDGETS_DEBUG", "")
	t.Setenv("SKYWIDGETS_LOG_LEVEL", "warn")
	require.Equal(t, log.LevelWarn, logLevel())

	t.Setenv("SKYWIDGETS_LOG_LEVEL", "")
	require.Equal(t, log.LevelInfo, logLevel())

	t.Setenv("SKYWIDGETS_DEBUG", "1")
	t.Setenv("SKYWIDGETS_LOG_LEVEL", "error")
	require.Equal(t, log.LevelDebug, logLevel())
}

func TestConfigLoadedFromFlag(t *testing.T) {
	_, err := execute(t, "version")
	require.NoError(t, err)

	c, err := loadedConfig()
	require.NoError(t, err)
	require.Equal(t, config.Defaults().Viewer.MaxRuns, c.Viewer.MaxRuns)
	require.Equal(t, config.StorageMemory, c.Server.Storage)
}

func TestNginxConfigCommand(t *testing.T) {
	out, err := execute(t, "nginx-config", "bl1", "https://queue-bl1.bnl.gov:443")
	require.NoError(t, err)
	assert.Contains(t, out, "queue-monitor-bl1.nsls2.bnl.gov")
	assert.Contains(t, out, "https://queue-bl1.bnl.gov:443")
	generated := out

	path := filepath.Join(t.TempDir(), "bl1.conf")
	out, err = execute(t, "nginx-config", "bl1", "https://queue-bl1.bnl.gov:443", "-o", path)
	require.NoError(t, err)
	require.Contains(t, out, "Config written to "+path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, generated, string(data))

	out, err = execute(t, "nginx-config", "bl1", "https://queue-bl1.bnl.gov:443", "--diff", path)
	require.NoError(t, err)
	require.Equal(t, path+" is up to date\n", out)

	out, err = execute(t, "nginx-config", "bl1", "https://queue-bl2.bnl.gov:443", "--diff", path)
	require.NoError(t, err)
	assert.Contains(t, out, "- ")
	assert.Contains(t, out, "+ ")
	assert.Contains(t, out, "queue-bl2")
}

func TestNginxConfigCommand_RejectsBadInput(t *testing.T) {
	_, err := execute(t, "nginx-config", "bl 1", "https://queue-bl1.bnl.gov")
	require.Error(t, err)
	_, err = execute(t, "nginx-config", "bl1", "queue-bl1")
	require.Error(t, err)
	_, err = execute(t, "nginx-config", "bl1")
	require.Error(t, err)
}

func TestServerOverrides(t *testing.T) {
	t.Cleanup(func() { resetFlags(qserverCmd) })
	require.NoError(t, qserverCmd.Flags().Set("steps", "5"))
	require.NoError(t, qserverCmd.Flags().Set("storage", "jsonl"))

	s, err := serverOverrides(qserverCmd, config.Defaults().Server)
	require.NoError(t, err)
	require.Equal(t, 5, s.Steps)
	require.Equal(t, config.StorageJSONL, s.Storage)
	require.Equal(t, config.Defaults().Server.Addr, s.Addr)

	require.NoError(t, qserverCmd.Flags().Set("storage", "redis"))
	_, err = serverOverrides(qserverCmd, config.Defaults().Server)
	require.Error(t, err)
}

func TestViewerOverrides(t *testing.T) {
	t.Cleanup(func() { resetFlags(viewCmd) })
	require.NoError(t, viewCmd.Flags().Set("server", "http://example.com:9000"))
	require.NoError(t, viewCmd.Flags().Set("max-runs", "7"))

	v, err := viewerOverrides(viewCmd, config.Defaults().Viewer)
	require.NoError(t, err)
	require.Equal(t, "http://example.com:9000", v.ServerURL)
	require.Equal(t, 7, v.MaxRuns)
	require.Equal(t, "primary", v.StreamName)
}

func TestOpenFeed(t *testing.T) {
	t.Cleanup(func() { resetFlags(viewCmd) })
	vc := config.Defaults().Viewer

	feed, err := openFeed(viewCmd, vc, config.CatalogConfig{})
	require.NoError(t, err)
	require.IsType(t, &viewer.ServerFeed{}, feed)
	require.NoError(t, feed.Stop())

	dir := t.TempDir()
	store, err := catalog.NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Append(context.Background(), "run-1", docs.MustNew(docs.Start{UID: "run-1", Time: 1})))

	require.NoError(t, viewCmd.Flags().Set("catalog", dir))
	feed, err = openFeed(viewCmd, vc, config.CatalogConfig{Debounce: 10 * time.Millisecond})
	require.NoError(t, err)
	require.IsType(t, &catalog.Watcher{}, feed)
	t.Cleanup(func() { _ = feed.Stop() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := feed.Broker().Subscribe(ctx)
	require.NoError(t, feed.Start())
	select {
	case e := <-ch:
		require.Equal(t, docs.NameStart, e.Payload.Name)
	case <-time.After(2 * time.Second):
		t.Fatal("no document from the catalog")
	}
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	doc := docs.MustNew(docs.Start{UID: "run-1", Time: 1})

	tests := []struct {
		storage string
		check   func(t *testing.T, store qserver.DocumentStore)
	}{
		{config.StorageMemory, func(t *testing.T, store qserver.DocumentStore) {
			require.IsType(t, &qserver.MemoryStore{}, store)
		}},
		{config.StorageSQLite, func(t *testing.T, store qserver.DocumentStore) {
			require.IsType(t, &sqlite.DocumentRepository{}, store)
			require.FileExists(t, filepath.Join(dir, "documents.db"))
		}},
		{config.StorageJSONL, func(t *testing.T, store qserver.DocumentStore) {
			require.IsType(t, &catalog.FileStore{}, store)
			require.FileExists(t, filepath.Join(dir, "catalog", "run-1"+catalog.Ext))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.storage, func(t *testing.T) {
			store, err := openStore(
				config.ServerConfig{Storage: tt.storage, DBPath: filepath.Join(dir, "documents.db")},
				config.CatalogConfig{Dir: filepath.Join(dir, "catalog")},
			)
			require.NoError(t, err)
			t.Cleanup(func() { _ = store.Close() })

			require.NoError(t, store.Append(ctx, "run-1", doc))
			got, err := store.Documents(ctx, "run-1")
			require.NoError(t, err)
			require.Len(t, got, 1)
			require.Equal(t, docs.NameStart, got[0].Name)
			tt.check(t, store)
		})
	}
}

func TestRunSmoke(t *testing.T) {
	mock := qserver.NewMock(qserver.Config{Steps: 2, Interval: 5 * time.Millisecond})
	srv := httptest.NewServer(qserver.NewHandler(mock, qserver.WithHeartbeat(50*time.Millisecond)).Routes())
	t.Cleanup(func() {
		srv.Close()
		mock.Close()
	})
	c, err := qclient.New(srv.URL)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, runSmoke(context.Background(), c, &out, 10*time.Second))

	text := out.String()
	assert.Contains(t, text, "Queued smoke-1")
	assert.Contains(t, text, "Queued smoke-2")
	assert.Contains(t, text, "OK")
	assert.Len(t, mock.QueueStatus().History, 2)
}

func TestRunSmoke_TimesOut(t *testing.T) {
	mock := qserver.NewMock(qserver.Config{Steps: 1000, Interval: time.Hour})
	srv := httptest.NewServer(qserver.NewHandler(mock).Routes())
	t.Cleanup(func() {
		srv.Close()
		mock.Close()
	})
	c, err := qclient.New(srv.URL)
	require.NoError(t, err)

	err = runSmoke(context.Background(), c, &bytes.Buffer{}, 300*time.Millisecond)
	require.ErrorIs(t, err, ErrQueueNotDrained)
}
