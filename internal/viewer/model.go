// Package viewer is the terminal front-end that draws the figures of an
// AutoRecentLines as runs arrive from a document feed.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	zone "github.com/lrstanley/bubblezone"

	"github.com/zjrosen/skywidgets/internal/builders"
	"github.com/zjrosen/skywidgets/internal/config"
	"github.com/zjrosen/skywidgets/internal/docs"
	"github.com/zjrosen/skywidgets/internal/evented"
	"github.com/zjrosen/skywidgets/internal/heuristics"
	"github.com/zjrosen/skywidgets/internal/keys"
	"github.com/zjrosen/skywidgets/internal/log"
	"github.com/zjrosen/skywidgets/internal/plotspec"
	"github.com/zjrosen/skywidgets/internal/pubsub"
	"github.com/zjrosen/skywidgets/internal/run"
	"github.com/zjrosen/skywidgets/internal/ui/markdown"
)

const detailsWidth = 44

// Config holds configuration for creating a viewer Model.
type Config struct {
	// Feed publishes documents. The viewer subscribes in New and stops
	// listening once the broker is closed.
	Feed *pubsub.Broker[docs.Document]
	// MaxRuns is the number of unpinned runs kept per figure.
	MaxRuns int
	// StreamName limits figures to one stream. Empty plots every stream.
	StreamName string
	// MarkdownStyle is "dark", "light" or "auto".
	MarkdownStyle string
	ShowStatusBar bool
	// ConfigPath receives max_runs changes. Empty disables saving.
	ConfigPath string
	// Builders are extra options for every line builder.
	Builders []builders.Option
}

// Model is the viewer's bubbletea model.
type Model struct {
	keys    keys.KeyMap
	help    help.Model
	spinner spinner.Model
	details viewport.Model

	router *run.Router
	lines  *builders.AutoRecentLines
	feed   *pubsub.ContinuousListener[docs.Document]
	logs   *log.Listener

	ctx    context.Context
	cancel context.CancelFunc

	markdownStyle string
	configPath    string

	active      int
	width       int
	height      int
	status      string
	feedClosed  bool
	showDetails bool
	showStatus  bool
	showHelp    bool
}

// New builds the model and its line builders.
func New(cfg Config) (Model, error) {
	opts := append([]builders.Option(nil), cfg.Builders...)
	if cfg.StreamName != "" {
		opts = append(opts, builders.WithLineHeuristic(onlyStream(cfg.StreamName)))
	}
	lines, err := builders.NewAutoRecentLines(cfg.MaxRuns, opts...)
	if err != nil {
		return Model{}, err
	}

	router := run.NewRouter(nil)
	router.Runs.Added.Connect(func(e evented.ItemEvent[run.Run]) {
		lines.AddRun(e.Item, false)
	})

	ctx, cancel := context.WithCancel(context.Background())
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		keys:          keys.DefaultKeyMap(),
		help:          help.New(),
		spinner:       sp,
		details:       viewport.New(detailsWidth, 10),
		router:        router,
		lines:         lines,
		feed:          feedListener(ctx, cfg.Feed),
		logs:          log.NewListener(ctx),
		ctx:           ctx,
		cancel:        cancel,
		markdownStyle: cfg.MarkdownStyle,
		configPath:    cfg.ConfigPath,
		showStatus:    cfg.ShowStatusBar,
	}
	return m, nil
}

// onlyStream keeps the heuristic's suggestions for one stream.
func onlyStream(name string) builders.LineHeuristic {
	return func(r run.Run, s run.Stream) []heuristics.LineKey {
		if s.Name() != name {
			return nil
		}
		return heuristics.InferLinesToPlot(r, s)
	}
}

// Lines exposes the line builders driving the view.
func (m Model) Lines() *builders.AutoRecentLines { return m.lines }

// Runs is every run seen on the feed, oldest first.
func (m Model) Runs() *run.List { return m.router.Runs }

// Init starts listening to the feed and the log.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick}
	if m.feed != nil {
		cmds = append(cmds, m.feed.Listen())
	}
	if m.logs != nil {
		cmds = append(cmds, m.logs.Listen())
	}
	return tea.Batch(cmds...)
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.refreshDetails()
		return m, nil

	case docMsg:
		if err := m.router.Ingest(msg.doc); err != nil {
			if errors.Is(err, run.ErrUnknownRun) {
				log.Debug(log.CatViewer, "Skipped document", "name", msg.doc.Name, "error", err)
			} else {
				log.ErrorErr(log.CatViewer, "Failed to ingest document", err, "name", msg.doc.Name)
			}
		}
		m.clampActive()
		m.refreshDetails()
		if m.feed == nil {
			return m, nil
		}
		return m, m.feed.Listen()

	case feedClosedMsg:
		m.feedClosed = true
		m.status = "feed closed"
		return m, nil

	case log.Entry:
		m.status = strings.TrimSpace(msg.Payload)
		if m.logs == nil {
			return m, nil
		}
		return m, m.logs.Listen()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if msg.Action != tea.MouseActionRelease || msg.Button != tea.MouseButtonLeft {
		return m, nil
	}
	for i := range m.lines.Figures.Len() {
		if z := zone.Get(tabZoneID(i)); z != nil && z.InBounds(msg) {
			m.active = i
			m.refreshDetails()
			break
		}
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.cancel()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp

	case key.Matches(msg, m.keys.NextFigure):
		if n := m.lines.Figures.Len(); n > 0 {
			m.active = (m.active + 1) % n
			m.refreshDetails()
		}

	case key.Matches(msg, m.keys.PrevFigure):
		if n := m.lines.Figures.Len(); n > 0 {
			m.active = (m.active - 1 + n) % n
			m.refreshDetails()
		}

	case key.Matches(msg, m.keys.CloseFigure):
		if fig, ok := m.activeFigure(); ok {
			if err := m.lines.Figures.Remove(fig); err != nil {
				log.ErrorErr(log.CatViewer, "Failed to close figure", err, "figure", fig.UUID())
			}
			m.clampActive()
			m.refreshDetails()
		}

	case key.Matches(msg, m.keys.MoreRuns):
		m.setMaxRuns(m.lines.MaxRuns() + 1)

	case key.Matches(msg, m.keys.FewerRuns):
		if n := m.lines.MaxRuns(); n > 0 {
			m.setMaxRuns(n - 1)
		}

	case key.Matches(msg, m.keys.Pin):
		m.pinLatest()

	case key.Matches(msg, m.keys.Unpin):
		for k := range m.lines.KeysToFigures() {
			if inst, ok := m.lines.Instance(k); ok {
				inst.PinnedRuns.Clear()
			}
		}
		m.status = "unpinned all runs"

	case key.Matches(msg, m.keys.Details):
		m.showDetails = !m.showDetails
		m.refreshDetails()

	case key.Matches(msg, m.keys.ScrollUp):
		m.details.ScrollUp(1)

	case key.Matches(msg, m.keys.ScrollDown):
		m.details.ScrollDown(1)

	case key.Matches(msg, m.keys.ToggleStatus):
		m.showStatus = !m.showStatus
	}
	return m, nil
}

func (m *Model) setMaxRuns(n int) {
	if err := m.lines.SetMaxRuns(n); err != nil {
		log.ErrorErr(log.CatViewer, "Failed to set max runs", err, "max_runs", n)
		return
	}
	m.status = fmt.Sprintf("max runs: %d", n)
	if m.configPath == "" {
		return
	}
	if err := config.SaveViewerSetting(m.configPath, "max_runs", n); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to save max runs", err, "path", m.configPath)
	}
}

// pinLatest re-adds the newest run as pinned so it survives culling.
func (m *Model) pinLatest() {
	n := m.router.Runs.Len()
	if n == 0 {
		return
	}
	latest := m.router.Runs.At(n - 1)
	m.lines.DiscardRun(latest)
	m.lines.AddRun(latest, true)
	m.status = fmt.Sprintf("pinned scan %d", run.ScanID(latest))
	m.refreshDetails()
}

func (m Model) activeFigure() (*plotspec.FigureSpec, bool) {
	if m.active < 0 || m.active >= m.lines.Figures.Len() {
		return nil, false
	}
	return m.lines.Figures.At(m.active), true
}

func (m *Model) clampActive() {
	n := m.lines.Figures.Len()
	if m.active >= n {
		m.active = max(n-1, 0)
	}
}

// detailsRun is the newest run drawn in the active figure, or the newest
// run seen when the figure has no lines.
func (m Model) detailsRun() (run.Run, bool) {
	if fig, ok := m.activeFigure(); ok {
		for _, ax := range fig.Axes() {
			if n := ax.Lines.Len(); n > 0 {
				return ax.Lines.At(n - 1).Run(), true
			}
		}
	}
	if n := m.router.Runs.Len(); n > 0 {
		return m.router.Runs.At(n - 1), true
	}
	return nil, false
}

func (m *Model) refreshDetails() {
	if !m.showDetails {
		return
	}
	m.details.Width = detailsWidth
	m.details.Height = max(m.bodyHeight()-2, 3)

	r, ok := m.detailsRun()
	if !ok {
		m.details.SetContent(emptyStyle.Render("no runs yet"))
		return
	}
	md := runDetails(r)
	width := detailsWidth - 4
	renderer, err := markdown.New(m.markdownStyle, width)
	if err != nil {
		m.details.SetContent(markdown.Plain(md, width))
		return
	}
	out, err := renderer.Render(md)
	if err != nil {
		m.details.SetContent(markdown.Plain(md, width))
		return
	}
	m.details.SetContent(strings.TrimSpace(out))
}

// bodyHeight is what remains for the figure after tabs, help and status.
func (m Model) bodyHeight() int {
	h := m.height - 2
	if m.showStatus {
		h--
	}
	if m.showHelp {
		h -= 4
	}
	return max(h, 0)
}

// View renders the model.
func (m Model) View() string {
	if m.width == 0 {
		return "loading..."
	}
	figures := m.lines.Figures.Items()

	sections := []string{renderTabs(figures, m.active, m.width)}

	bodyW := m.width
	if m.showDetails {
		bodyW -= detailsWidth + 1
	}
	body := m.renderFigure(bodyW, m.bodyHeight())
	if m.showDetails {
		body = lipgloss.JoinHorizontal(lipgloss.Top, body, " ", detailsStyle.Render(m.details.View()))
	}
	sections = append(sections, lipgloss.NewStyle().Height(m.bodyHeight()).MaxHeight(m.bodyHeight()).Render(body))

	if m.showStatus {
		sections = append(sections, m.statusBar())
	}
	if m.showHelp {
		sections = append(sections, m.help.FullHelpView(m.keys.FullHelp()))
	} else {
		sections = append(sections, m.help.ShortHelpView(m.keys.ShortHelp()))
	}
	return zone.Scan(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

func (m Model) renderFigure(width, height int) string {
	fig, ok := m.activeFigure()
	if !ok {
		msg := "waiting for runs"
		if m.feedClosed {
			msg = "no runs"
		}
		return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, emptyStyle.Render(msg))
	}

	axes := fig.Axes()
	perAxes := max(height/len(axes), 1)
	parts := []string{titleStyle.Render(ansi.Truncate(fig.Title(), width, "…"))}
	for _, ax := range axes {
		ss, errs := collectSeries(m.ctx, ax)
		legend := renderLegend(ax.Lines.Items(), width)
		legendH := 0
		if legend != "" {
			legendH = strings.Count(legend, "\n") + 1
		}
		chartH := perAxes - legendH - len(errs)
		if len(axes) == 1 {
			chartH--
		}
		parts = append(parts, renderChart(ss, ax.XLabel(), ax.YLabel(), width, chartH))
		if legend != "" {
			parts = append(parts, legend)
		}
		for _, err := range errs {
			parts = append(parts, errorStyle.Render(ansi.Truncate(err.Error(), width, "…")))
		}
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) statusBar() string {
	left := fmt.Sprintf(" figures: %d  runs: %d  max runs: %d ", m.lines.Figures.Len(), m.router.Runs.Len(), m.lines.MaxRuns())
	if r, ok := m.detailsRun(); ok && run.IsLiveAndNotCompleted(r) {
		left = m.spinner.View() + left
	}
	right := ansi.Truncate(m.status, max(m.width-ansi.StringWidth(left)-1, 0), "…")
	gap := max(m.width-ansi.StringWidth(left)-ansi.StringWidth(right), 0)
	return statusBarStyle.Render(left + strings.Repeat(" ", gap) + right)
}
