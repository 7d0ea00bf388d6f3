package run

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/skywidgets/internal/docs"
	"github.com/zjrosen/skywidgets/internal/evented"
)

func TestRouter_AssemblesInterleavedRuns(t *testing.T) {
	r := NewRouter(nil)

	var added []string
	r.Runs.Added.Connect(func(e evented.ItemEvent[Run]) { added = append(added, e.Item.UID()) })

	one := NewBuilder(docs.Start{UID: "one"})
	two := NewBuilder(docs.Start{UID: "two"})
	require.NoError(t, one.AddStream("primary", NumberKeys("det"), nil))
	require.NoError(t, two.AddStream("primary", NumberKeys("det"), nil))
	require.NoError(t, one.AddData("primary", map[string][]any{"det": {1.0}}))
	require.NoError(t, two.AddData("primary", map[string][]any{"det": {2.0, 2.5}}))
	require.NoError(t, two.Close(docs.ExitSuccess))

	a, b := one.Documents(), two.Documents()
	for i := 0; i < max(len(a), len(b)); i++ {
		if i < len(a) {
			require.NoError(t, r.Ingest(a[i]))
		}
		if i < len(b) {
			require.NoError(t, r.Ingest(b[i]))
		}
	}

	require.Equal(t, []string{"one", "two"}, added)

	routedTwo, ok := r.Run("two")
	require.True(t, ok)
	require.NotNil(t, routedTwo.Metadata().Stop)

	routedOne, ok := r.Run("one")
	require.True(t, ok)
	require.True(t, IsLiveAndNotCompleted(routedOne))

	s, err := routedTwo.Stream("primary")
	require.NoError(t, err)
	ds, err := s.Read(context.Background())
	require.NoError(t, err)
	require.Equal(t, []float64{2, 2.5}, ds["det"].Data)
}

func TestRouter_UnknownRun(t *testing.T) {
	r := NewRouter(nil)

	err := r.Ingest(docs.MustNew(docs.Descriptor{UID: "d", RunStart: "ghost"}))
	require.ErrorIs(t, err, ErrUnknownRun)

	err = r.Ingest(docs.MustNew(docs.EventPage{Descriptor: "d"}))
	require.ErrorIs(t, err, ErrUnknownRun)
}

func TestRouter_DuplicateStartIgnored(t *testing.T) {
	r := NewRouter(nil)
	start := docs.MustNew(docs.Start{UID: "dup"})

	require.NoError(t, r.Ingest(start))
	require.NoError(t, r.Ingest(start))
	require.Equal(t, 1, r.Runs.Len())
}

func TestRouter_Forget(t *testing.T) {
	r := NewRouter(nil)
	b := NewBuilder(docs.Start{UID: "gone"})
	require.NoError(t, b.AddStream("primary", NumberKeys("det"), nil))
	for _, d := range b.Documents() {
		require.NoError(t, r.Ingest(d))
	}

	r.Forget("gone")
	_, ok := r.Run("gone")
	require.False(t, ok)
	require.Equal(t, 1, r.Runs.Len(), "Forget leaves the run list alone")

	err := r.Ingest(docs.MustNew(docs.EventPage{Descriptor: b.Run().streams["primary"].descriptors[0].UID}))
	require.ErrorIs(t, err, ErrUnknownRun)
}
