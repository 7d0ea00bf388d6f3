package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/skywidgets/internal/docs"
	"github.com/zjrosen/skywidgets/internal/pubsub"
)

func startWatcher(t *testing.T, cfg WatcherConfig) <-chan pubsub.Event[docs.Document] {
	t.Helper()
	w, err := NewWatcher(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Stop() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	ch := w.Broker().Subscribe(ctx)
	require.NoError(t, w.Start())
	return ch
}

func receive(t *testing.T, ch <-chan pubsub.Event[docs.Document]) docs.Document {
	t.Helper()
	select {
	case event, ok := <-ch:
		require.True(t, ok, "channel closed")
		require.Equal(t, pubsub.DocumentEvent, event.Type)
		return event.Payload
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for document")
		return docs.Document{}
	}
}

func TestWatcher_ReplaysExistingThenTails(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Append(ctx, "run-1", docs.MustNew(docs.Start{UID: "run-1", ScanID: 1})))

	cfg := DefaultWatcherConfig(store.Dir())
	cfg.DebounceDur = 20 * time.Millisecond
	ch := startWatcher(t, cfg)

	first := receive(t, ch)
	require.Equal(t, docs.NameStart, first.Name)

	stop := docs.Stop{UID: "s", RunStart: "run-1", ExitStatus: docs.ExitSuccess}
	require.NoError(t, store.Append(ctx, "run-1", docs.MustNew(stop)))

	next := receive(t, ch)
	require.Equal(t, docs.NameStop, next.Name)
}

func TestWatcher_SkipExisting(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Append(ctx, "old", docs.MustNew(docs.Start{UID: "old"})))

	cfg := DefaultWatcherConfig(store.Dir())
	cfg.DebounceDur = 20 * time.Millisecond
	cfg.SkipExisting = true
	ch := startWatcher(t, cfg)

	require.NoError(t, store.Append(ctx, "new", docs.MustNew(docs.Start{UID: "new"})))
	doc := receive(t, ch)
	require.Equal(t, "new", doc.Body.(docs.Start).UID)
}

func TestWatcher_WaitsForCompleteLine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run-1.jsonl")
	line := `{"name":"start","doc":{"uid":"run-1","time":1}}`
	require.NoError(t, os.WriteFile(path, []byte(line[:10]), 0600))

	cfg := DefaultWatcherConfig(dir)
	cfg.DebounceDur = 20 * time.Millisecond
	ch := startWatcher(t, cfg)

	select {
	case event := <-ch:
		t.Fatalf("unexpected document %v", event.Payload.Name)
	case <-time.After(100 * time.Millisecond):
	}

	require.NoError(t, os.WriteFile(path, []byte(line+"\n"), 0600))
	doc := receive(t, ch)
	require.Equal(t, "run-1", doc.Body.(docs.Start).UID)
}

func TestWatcher_StopClosesSubscriptions(t *testing.T) {
	w, err := NewWatcher(DefaultWatcherConfig(t.TempDir()))
	require.NoError(t, err)
	ch := w.Broker().Subscribe(context.Background())
	require.NoError(t, w.Start())

	done := make(chan struct{})
	go func() {
		assert.NoError(t, w.Stop())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop() timed out")
	}

	_, ok := <-ch
	require.False(t, ok)
	require.NoError(t, w.Stop())
}
