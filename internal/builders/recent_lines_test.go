package builders

import (
	"context"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/zjrosen/skywidgets/internal/docs"
	"github.com/zjrosen/skywidgets/internal/plotspec"
	"github.com/zjrosen/skywidgets/internal/run"
)

func newRecent(t *testing.T, maxRuns int, opts ...Option) *RecentLines {
	t.Helper()
	rl, err := NewRecentLines(maxRuns, "motor", "det", opts...)
	require.NoError(t, err)
	return rl
}

func TestNewRecentLines_Validation(t *testing.T) {
	_, err := NewRecentLines(-1, "motor", "det")
	require.ErrorIs(t, err, ErrNegativeMaxRuns)
	_, err = NewRecentLines(1, "", "det")
	require.ErrorIs(t, err, ErrEmptyField)

	rl := newRecent(t, 3)
	require.Equal(t, "det v motor", rl.Figure().Title())
	require.Equal(t, "motor", rl.Axes().XLabel())
	require.Equal(t, "det", rl.Axes().YLabel())
	require.Equal(t, "primary", rl.StreamName())
	require.Equal(t, 3, rl.MaxRuns())
}

func TestRecentLines_KeepsMostRecent(t *testing.T) {
	rl := newRecent(t, 2)
	r1, r2, r3 := completedRun(t, 1), completedRun(t, 2), completedRun(t, 3)

	rl.AddRun(r1, false)
	rl.AddRun(r2, false)
	rl.AddRun(r3, false)

	require.Equal(t, []run.Run{r2, r3}, rl.Runs.Items())
	require.Equal(t, []string{"Scan 2", "Scan 3"}, labels(rl.Axes()))
	require.Equal(t, []string{"C1", "C2"}, colors(rl.Axes()))
	_, ok := rl.Line(r1.UID())
	require.False(t, ok)

	x, y, err := rl.Axes().Lines.At(0).Data(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, x.Data)
	assert.Equal(t, []float64{10, 20, 30}, y.Data)
}

func TestRecentLines_PinnedRunsSurviveCulling(t *testing.T) {
	rl := newRecent(t, 1)
	pinned := completedRun(t, 7)
	rl.AddRun(pinned, true)
	rl.AddRun(completedRun(t, 8), false)
	rl.AddRun(completedRun(t, 9), false)

	require.Equal(t, 1, rl.Runs.Len())
	require.Equal(t, 1, rl.PinnedRuns.Len())
	require.ElementsMatch(t, []string{"Scan 7 (pinned)", "Scan 9"}, labels(rl.Axes()))

	line, ok := rl.Line(pinned.UID())
	require.True(t, ok)
	require.Equal(t, "dashed", line.Style().String("linestyle"))

	rl.DiscardRun(pinned)
	require.Zero(t, rl.PinnedRuns.Len())
	require.Equal(t, []string{"Scan 9"}, labels(rl.Axes()))
}

func TestRecentLines_LiveRunRecoloredOnCompletion(t *testing.T) {
	rl := newRecent(t, 5)
	b := liveRun(4)
	addPrimary(t, b)
	rl.AddRun(b.Run(), false)

	line, ok := rl.Line(b.Run().UID())
	require.True(t, ok)
	require.Equal(t, SentinelColor, line.Style().String("color"))

	var updates []plotspec.StyleUpdate
	line.Style().Updated.Connect(func(u plotspec.StyleUpdate) { updates = append(updates, u) })

	require.NoError(t, b.Close(docs.ExitSuccess))
	require.Equal(t, "C0", line.Style().String("color"))
	require.Equal(t, []plotspec.StyleUpdate{{Changes: map[string]any{"color": "C0"}}}, updates)
}

func TestRecentLines_RecolorLeavesOtherLines(t *testing.T) {
	rl := newRecent(t, 5)
	rl.AddRun(completedRun(t, 1), false)
	b := liveRun(2)
	addPrimary(t, b)
	rl.AddRun(b.Run(), false)
	rl.AddRun(completedRun(t, 3), false)
	require.Equal(t, []string{"C0", SentinelColor, "C1"}, colors(rl.Axes()))

	require.NoError(t, b.Close(docs.ExitSuccess))
	require.Equal(t, []string{"C0", "C2", "C1"}, colors(rl.Axes()))
}

func TestRecentLines_DiscardRemovesFromBothLists(t *testing.T) {
	rl := newRecent(t, 3)
	r := completedRun(t, 1)
	rl.AddRun(r, false)
	rl.AddRun(r, true)
	require.Equal(t, 1, rl.Runs.Len())
	require.Equal(t, 1, rl.PinnedRuns.Len())

	rl.DiscardRun(r)
	require.Zero(t, rl.Runs.Len())
	require.Zero(t, rl.PinnedRuns.Len())
	require.Zero(t, rl.Axes().Lines.Len())
	_, ok := rl.Line(r.UID())
	require.False(t, ok)
}

func TestRecentLines_WaitsForStream(t *testing.T) {
	rl := newRecent(t, 5)
	b := liveRun(1)
	rl.AddRun(b.Run(), false)
	require.Zero(t, rl.Axes().Lines.Len())

	require.NoError(t, b.AddStream("baseline", run.NumberKeys("temp"), nil))
	require.Zero(t, rl.Axes().Lines.Len())

	addPrimary(t, b)
	require.Equal(t, []string{"Scan 1"}, labels(rl.Axes()))
}

func TestRecentLines_CulledRunDoesNotDrawLate(t *testing.T) {
	rl := newRecent(t, 1)
	b := liveRun(1)
	rl.AddRun(b.Run(), false)
	rl.AddRun(completedRun(t, 2), false)

	require.False(t, rl.Runs.Contains(b.Run()))
	addPrimary(t, b)
	require.Equal(t, []string{"Scan 2"}, labels(rl.Axes()))

	require.NoError(t, b.Close(docs.ExitSuccess))
	require.Equal(t, []string{"C0"}, colors(rl.Axes()), "no color is spent on a culled run")
}

func TestRecentLines_SetMaxRuns(t *testing.T) {
	rl := newRecent(t, 3)
	for i := range 3 {
		rl.AddRun(completedRun(t, i), false)
	}
	require.ErrorIs(t, rl.SetMaxRuns(-1), ErrNegativeMaxRuns)

	require.NoError(t, rl.SetMaxRuns(1))
	require.Equal(t, 1, rl.Runs.Len())
	require.Equal(t, []string{"Scan 2"}, labels(rl.Axes()))

	require.NoError(t, rl.SetMaxRuns(0))
	require.Zero(t, rl.Axes().Lines.Len())
}

func TestRecentLines_DiscardUntracked(t *testing.T) {
	rl := newRecent(t, 2)
	rl.AddRun(completedRun(t, 1), false)
	rl.DiscardRun(completedRun(t, 2))
	require.Equal(t, 1, rl.Runs.Len())
}

func TestRecentLines_WithAxes(t *testing.T) {
	ax := plotspec.NewAxesSpec("a", "b")
	rl := newRecent(t, 2, WithAxes(ax))
	require.Nil(t, rl.Figure())
	require.Same(t, ax, rl.Axes())

	rl.AddRun(completedRun(t, 1), false)
	require.Equal(t, 1, ax.Lines.Len())
}

func TestRecentLines_CustomFunc(t *testing.T) {
	var gotStream, gotX, gotY string
	fn := func(_ context.Context, _ run.Run, stream, x, y string) (run.Array, run.Array, error) {
		gotStream, gotX, gotY = stream, x, y
		return run.Vector(0), run.Vector(1), nil
	}
	rl := newRecent(t, 1, WithLinesFunc(fn))
	rl.AddRun(completedRun(t, 1), false)

	_, y, err := rl.Axes().Lines.At(0).Data(context.Background())
	require.NoError(t, err)
	require.Equal(t, []float64{1}, y.Data)
	require.Equal(t, []string{"primary", "motor", "det"}, []string{gotStream, gotX, gotY})
}

func TestRecentLines_CapacityProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		maxRuns := rapid.IntRange(0, 4).Draw(t, "max")
		rl, err := NewRecentLines(maxRuns, "motor", "det")
		require.NoError(t, err)

		pinned := []run.Run{}
		steps := rapid.IntRange(1, 25).Draw(t, "steps")
		for i := range steps {
			switch rapid.IntRange(0, 3).Draw(t, "op") {
			case 0:
				before := rl.Runs.Items()
				r := completedRun(t, i)
				rl.AddRun(r, false)
				want := append(before, r)
				if len(want) > maxRuns {
					want = want[len(want)-maxRuns:]
				}
				require.Equal(t, want, rl.Runs.Items())
			case 1:
				r := completedRun(t, i)
				rl.AddRun(r, true)
				pinned = append(pinned, r)
			case 2:
				tracked := append(rl.Runs.Items(), rl.PinnedRuns.Items()...)
				if len(tracked) > 0 {
					r := tracked[rapid.IntRange(0, len(tracked)-1).Draw(t, "discard")]
					rl.DiscardRun(r)
					pinned = slices.DeleteFunc(pinned, func(p run.Run) bool { return p == r })
				}
			case 3:
				before := rl.Runs.Items()
				maxRuns = rapid.IntRange(0, 4).Draw(t, "newMax")
				require.NoError(t, rl.SetMaxRuns(maxRuns))
				dropped := max(len(before)-maxRuns, 0)
				require.Equal(t, len(before)-dropped, rl.Runs.Len())
				require.Equal(t, before[dropped:], rl.Runs.Items())
			}

			require.LessOrEqual(t, rl.Runs.Len(), maxRuns)
			require.Equal(t, pinned, rl.PinnedRuns.Items(), "pinned runs are never culled")
			require.Equal(t, rl.Runs.Len()+rl.PinnedRuns.Len(), rl.Axes().Lines.Len())
			for _, r := range rl.Runs.All() {
				_, ok := rl.Line(r.UID())
				require.True(t, ok)
			}
		}
	})
}
