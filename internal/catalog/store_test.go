package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/skywidgets/internal/docs"
)

func TestFileStore_AppendAndRead(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(filepath.Join(t.TempDir(), "catalog"))
	require.NoError(t, err)

	bundle := docs.ComposeRun(docs.Start{UID: "run-1", ScanID: 3})
	stop, err := bundle.ComposeStop(docs.ExitAbort, "stopped by user")
	require.NoError(t, err)
	require.NoError(t, store.Append(ctx, "run-1", docs.MustNew(bundle.Start)))
	require.NoError(t, store.Append(ctx, "run-1", docs.MustNew(stop)))

	got, err := store.Documents(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, 3, got[0].Body.(docs.Start).ScanID)
	require.Equal(t, docs.ExitAbort, got[1].Body.(docs.Stop).ExitStatus)

	_, err = os.Stat(filepath.Join(store.Dir(), "run-1.jsonl"))
	require.NoError(t, err)
}

func TestFileStore_UnknownRun(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	got, err := store.Documents(context.Background(), "nope")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestFileStore_RejectsPathUIDs(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	for _, uid := range []string{"", "..", "a/b", `a\b`} {
		err := store.Append(context.Background(), uid, docs.MustNew(docs.Start{UID: uid}))
		require.ErrorIs(t, err, ErrInvalidUID, uid)
	}
}

func TestFileStore_RunUIDs(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "notes.txt"), []byte("x"), 0600))
	for _, uid := range []string{"b", "a"} {
		require.NoError(t, store.Append(ctx, uid, docs.MustNew(docs.Start{UID: uid})))
	}

	uids, err := store.RunUIDs()
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, uids)
}
