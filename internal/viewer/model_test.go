package viewer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/exp/teatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/skywidgets/internal/docs"
	"github.com/zjrosen/skywidgets/internal/heuristics"
	"github.com/zjrosen/skywidgets/internal/pubsub"
)

var motorDet = heuristics.LineKey{X: "motor", Y: "det", Stream: "primary"}

func TestModel_DrawsFigureFromDocuments(t *testing.T) {
	m := newModel(t, Config{ShowStatusBar: true})
	require.Contains(t, m.View(), "waiting for runs")

	m = ingest(m, runDocuments(t, 1, "det"))

	require.Equal(t, 1, m.Lines().Figures.Len())
	view := m.View()
	assert.Contains(t, view, "det v motor")
	assert.Contains(t, view, "Scan 1")
	assert.Contains(t, view, "runs: 1")
}

func TestModel_IgnoresDocumentsOfUnknownRuns(t *testing.T) {
	m := newModel(t, Config{})
	documents := runDocuments(t, 1, "det")

	m = ingest(m, documents[1:])

	require.Zero(t, m.Runs().Len())
	require.Zero(t, m.Lines().Figures.Len())
}

func TestModel_CyclesAndClosesFigures(t *testing.T) {
	m := newModel(t, Config{})
	m = ingest(m, runDocuments(t, 1, "det", "det2"))
	require.Equal(t, 2, m.Lines().Figures.Len())
	require.Equal(t, 0, m.active)

	m = update(m, tea.KeyMsg{Type: tea.KeyTab})
	require.Equal(t, 1, m.active)
	m = update(m, tea.KeyMsg{Type: tea.KeyTab})
	require.Equal(t, 0, m.active)
	m = update(m, tea.KeyMsg{Type: tea.KeyShiftTab})
	require.Equal(t, 1, m.active)

	closed := m.Lines().Figures.At(1)
	m = press(m, "x")
	require.Equal(t, 1, m.Lines().Figures.Len())
	require.Equal(t, 0, m.active)
	require.NotContains(t, m.Lines().Figures.Items(), closed)
	require.Len(t, m.Lines().KeysToFigures(), 1)

	// The next run with the closed key gets a new figure.
	m = ingest(m, runDocuments(t, 2, "det", "det2"))
	require.Equal(t, 2, m.Lines().Figures.Len())
}

func TestModel_MaxRunsKeys(t *testing.T) {
	m := newModel(t, Config{MaxRuns: 2})
	for i := 1; i <= 3; i++ {
		m = ingest(m, runDocuments(t, i, "det"))
	}
	inst, ok := m.Lines().Instance(motorDet)
	require.True(t, ok)
	require.Equal(t, 2, inst.Runs.Len())

	m = press(m, "-")
	require.Equal(t, 1, m.Lines().MaxRuns())
	require.Equal(t, 1, inst.Runs.Len())
	require.Contains(t, m.status, "max runs: 1")

	m = press(m, "+")
	m = press(m, "+")
	require.Equal(t, 3, m.Lines().MaxRuns())
	require.Equal(t, 1, inst.Runs.Len(), "raising the limit does not bring runs back")

	m = press(m, "-")
	m = press(m, "-")
	m = press(m, "-")
	m = press(m, "-")
	require.Zero(t, m.Lines().MaxRuns())
}

func TestModel_MaxRunsSavedToConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("viewer:\n  max_runs: 3\n"), 0o600))

	m := newModel(t, Config{MaxRuns: 3, ConfigPath: path})
	press(m, "+")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "max_runs: 4")
}

func TestModel_PinAndUnpin(t *testing.T) {
	m := newModel(t, Config{MaxRuns: 1})
	m = ingest(m, runDocuments(t, 1, "det"))
	m = ingest(m, runDocuments(t, 2, "det"))

	m = press(m, "p")
	inst, ok := m.Lines().Instance(motorDet)
	require.True(t, ok)
	require.Equal(t, 1, inst.PinnedRuns.Len())
	require.Equal(t, 2, inst.PinnedRuns.At(0).Metadata().Start.ScanID)
	require.Contains(t, m.View(), "Scan 2 (pinned)")

	// The pinned run survives the next run.
	m = ingest(m, runDocuments(t, 3, "det"))
	require.Equal(t, 1, inst.PinnedRuns.Len())
	require.Equal(t, 1, inst.Runs.Len())

	m = press(m, "P")
	require.Zero(t, inst.PinnedRuns.Len())
	require.NotContains(t, m.View(), "(pinned)")
}

func TestModel_DetailsPanel(t *testing.T) {
	m := newModel(t, Config{MarkdownStyle: "dark"})
	m = ingest(m, runDocuments(t, 7, "det"))

	m = press(m, "d")
	require.True(t, m.showDetails)
	view := m.View()
	assert.Contains(t, view, "Scan 7")
	assert.Contains(t, view, "success")

	m = press(m, "d")
	require.False(t, m.showDetails)
}

func TestModel_StatusBarAndFeedClosed(t *testing.T) {
	m := newModel(t, Config{ShowStatusBar: true})
	require.Contains(t, m.View(), "figures: 0")

	m = update(m, feedClosedMsg{})
	require.True(t, m.feedClosed)
	view := m.View()
	assert.Contains(t, view, "no runs")
	assert.Contains(t, view, "feed closed")

	m = press(m, "w")
	require.NotContains(t, m.View(), "figures: 0")
}

func TestModel_Quit(t *testing.T) {
	m := newModel(t, Config{})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	require.Equal(t, tea.Quit(), cmd())
	require.Error(t, m.ctx.Err())
}

func TestModel_FollowsFeed(t *testing.T) {
	feed := pubsub.NewBroker[docs.Document]()
	m, err := New(Config{Feed: feed, MaxRuns: 3, ShowStatusBar: true})
	require.NoError(t, err)
	for _, d := range runDocuments(t, 11, "det") {
		feed.Publish(pubsub.DocumentEvent, d)
	}
	tm := teatest.NewTestModel(t, m, teatest.WithInitialTermSize(100, 30))

	teatest.WaitFor(t, tm.Output(), func(b []byte) bool {
		return strings.Contains(string(b), "Scan 11")
	}, teatest.WithDuration(5*time.Second), teatest.WithCheckInterval(20*time.Millisecond))

	feed.Close()
	tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})

	final := tm.FinalModel(t, teatest.WithFinalTimeout(5*time.Second)).(Model)
	require.Equal(t, 1, final.Runs().Len())
	require.Equal(t, 1, final.Lines().Figures.Len())
}
