package builders

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/skywidgets/internal/docs"
	"github.com/zjrosen/skywidgets/internal/heuristics"
	"github.com/zjrosen/skywidgets/internal/run"
)

func cameraRun(t *testing.T, scanID int, frames ...[]any) *run.Builder {
	t.Helper()
	b := run.NewBuilder(docs.Start{ScanID: scanID})
	require.NoError(t, b.AddStream("primary", map[string]docs.DataKey{
		"cam": {Dtype: "array", Shape: []int{2, 2}},
	}, nil))
	if len(frames) > 0 {
		cells := make([]any, len(frames))
		for i, f := range frames {
			cells[i] = f
		}
		require.NoError(t, b.AddData("primary", map[string][]any{"cam": cells}))
	}
	return b
}

func frame(a, b, c, d float64) []any {
	return []any{[]any{a, b}, []any{c, d}}
}

func TestImage_SetRunAveragesLeadingAxes(t *testing.T) {
	img, err := NewImage("cam")
	require.NoError(t, err)
	require.Equal(t, "cam", img.Figure().Title())

	b := cameraRun(t, 12, frame(1, 2, 3, 4), frame(3, 4, 5, 6))
	img.SetRun(b.Run())

	uid := b.Run().UID()
	require.Equal(t, fmt.Sprintf("Scan ID 12   UID %s", uid[:8]), img.Axes().Title())
	require.Equal(t, 1, img.Axes().Images.Len())

	spec := img.Axes().Images.At(0)
	require.Equal(t, "cam", spec.Label())
	data, err := spec.Data(context.Background())
	require.NoError(t, err)
	require.Equal(t, []int{2, 2}, data.Shape)
	require.Equal(t, []float64{2, 3, 4, 5}, data.Data)
}

func TestImage_SetRunReplacesAndClears(t *testing.T) {
	_, err := NewImage("")
	require.ErrorIs(t, err, ErrEmptyField)

	img, err := NewImage("cam")
	require.NoError(t, err)
	first := cameraRun(t, 1).Run()
	second := cameraRun(t, 2).Run()

	img.SetRun(first)
	img.SetRun(second)
	require.Equal(t, 1, img.Axes().Images.Len())
	require.Same(t, second, img.Run())

	img.DiscardRun(first)
	require.Same(t, second, img.Run(), "discarding another run is a no-op")

	img.DiscardRun(second)
	require.Nil(t, img.Run())
	require.Zero(t, img.Axes().Images.Len())
}

func TestAutoImages_FollowsLatestRun(t *testing.T) {
	a := NewAutoImages()
	key := heuristics.ImageKey{Field: "cam", Stream: "primary"}

	first := cameraRun(t, 1, frame(0, 0, 0, 0))
	a.AddRun(first.Run())
	require.Equal(t, 1, a.Figures.Len())
	inst, ok := a.Instance(key)
	require.True(t, ok)
	require.Same(t, first.Run(), inst.Run())

	second := run.NewBuilder(docs.Start{ScanID: 2})
	a.AddRun(second.Run())
	require.Same(t, first.Run(), inst.Run(), "no stream yet")

	require.NoError(t, second.AddStream("primary", map[string]docs.DataKey{
		"cam": {Dtype: "array", Shape: []int{2, 2}},
	}, nil))
	require.Same(t, second.Run(), inst.Run())
	require.Equal(t, 1, a.Figures.Len())

	a.DiscardRun(second.Run())
	require.Nil(t, inst.Run())

	fresh, err := a.NewInstanceForKey(key)
	require.NoError(t, err)
	require.Contains(t, a.InactiveInstances(key), inst.Figure().UUID())
	require.Equal(t, fresh.Figure().UUID(), a.KeysToFigures()[key])
}
