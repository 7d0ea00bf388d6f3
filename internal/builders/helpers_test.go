package builders

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/skywidgets/internal/docs"
	"github.com/zjrosen/skywidgets/internal/plotspec"
	"github.com/zjrosen/skywidgets/internal/run"
)

func completedRun(t require.TestingT, scanID int) run.Run {
	r, err := run.BuildSimpleRun(map[string][]float64{
		"motor": {1, 2, 3},
		"det":   {10, 20, 30},
	}, docs.Start{ScanID: scanID, Motors: []string{"motor"}})
	require.NoError(t, err)
	return r
}

func liveRun(scanID int) *run.Builder {
	return run.NewBuilder(docs.Start{ScanID: scanID, Motors: []string{"motor"}})
}

func addPrimary(t *testing.T, b *run.Builder) {
	t.Helper()
	require.NoError(t, b.AddStream("primary", run.NumberKeys("motor", "det"), nil))
	require.NoError(t, b.AddData("primary", map[string][]any{"motor": {1.0}, "det": {5.0}}))
}

func labels(ax *plotspec.AxesSpec) []string {
	var out []string
	for _, line := range ax.Lines.All() {
		out = append(out, line.Label())
	}
	return out
}

func colors(ax *plotspec.AxesSpec) []string {
	var out []string
	for _, line := range ax.Lines.All() {
		out = append(out, line.Style().String("color"))
	}
	return out
}
