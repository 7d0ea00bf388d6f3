package builders

import (
	"context"
	"fmt"

	"github.com/zjrosen/skywidgets/internal/evented"
	"github.com/zjrosen/skywidgets/internal/log"
	"github.com/zjrosen/skywidgets/internal/plotspec"
	"github.com/zjrosen/skywidgets/internal/run"
)

// pendingRun holds the subscriptions a tracked live run still owes us.
type pendingRun struct {
	events    *run.Events
	stream    evented.Subscription
	hasStream bool
	completed evented.Subscription
	hasDone   bool
}

// RecentLines plots y against x for the most recent max_runs runs plus any
// number of pinned runs. Adding past capacity drops the oldest unpinned run.
type RecentLines struct {
	Runs       *run.List
	PinnedRuns *run.List

	figure  *plotspec.FigureSpec
	axes    *plotspec.AxesSpec
	maxRuns int
	x, y    string
	stream  string
	fn      LinesFunc
	colors  colorCycle

	lines   map[string]*plotspec.LineSpec
	pending map[string]*pendingRun
}

// NewRecentLines returns a builder for y v x. Without WithAxes it creates its
// own figure titled "<y> v <x>".
func NewRecentLines(maxRuns int, x, y string, opts ...Option) (*RecentLines, error) {
	if maxRuns < 0 {
		return nil, ErrNegativeMaxRuns
	}
	if x == "" || y == "" {
		return nil, ErrEmptyField
	}
	o := buildOptions(opts)
	rl := &RecentLines{
		Runs:       run.NewList(),
		PinnedRuns: run.NewList(),
		axes:       o.axes,
		maxRuns:    maxRuns,
		x:          x,
		y:          y,
		stream:     o.stream,
		fn:         o.linesFunc,
		lines:      make(map[string]*plotspec.LineSpec),
		pending:    make(map[string]*pendingRun),
	}
	if rl.axes == nil {
		rl.axes = plotspec.NewAxesSpec(x, y)
		fig, err := plotspec.NewFigureSpec(fmt.Sprintf("%s v %s", y, x), rl.axes)
		if err != nil {
			return nil, err
		}
		rl.figure = fig
	} else {
		rl.figure = rl.axes.Figure()
	}

	rl.Runs.Added.Connect(func(e evented.ItemEvent[run.Run]) {
		rl.cull()
		rl.onRunAdded(e.Item)
	})
	rl.PinnedRuns.Added.Connect(func(e evented.ItemEvent[run.Run]) { rl.onRunAdded(e.Item) })
	rl.Runs.Removed.Connect(func(e evented.ItemEvent[run.Run]) { rl.onRunRemoved(e.Item) })
	rl.PinnedRuns.Removed.Connect(func(e evented.ItemEvent[run.Run]) { rl.onRunRemoved(e.Item) })
	return rl, nil
}

// Figure returns the owning figure, which may be nil when drawing into axes
// that belong to no figure.
func (rl *RecentLines) Figure() *plotspec.FigureSpec { return rl.figure }

// Axes returns the axes lines are drawn into.
func (rl *RecentLines) Axes() *plotspec.AxesSpec { return rl.axes }

// X returns the x field name.
func (rl *RecentLines) X() string { return rl.x }

// Y returns the y field name.
func (rl *RecentLines) Y() string { return rl.y }

// StreamName returns the stream lines are read from.
func (rl *RecentLines) StreamName() string { return rl.stream }

// Func returns the data extraction function.
func (rl *RecentLines) Func() LinesFunc { return rl.fn }

// MaxRuns returns the unpinned run capacity.
func (rl *RecentLines) MaxRuns() int { return rl.maxRuns }

// SetMaxRuns changes the capacity, dropping the oldest runs if needed.
func (rl *RecentLines) SetMaxRuns(n int) error {
	if n < 0 {
		return ErrNegativeMaxRuns
	}
	rl.maxRuns = n
	rl.cull()
	return nil
}

// Line returns the line drawn for a run uid.
func (rl *RecentLines) Line(uid string) (*plotspec.LineSpec, bool) {
	line, ok := rl.lines[uid]
	return line, ok
}

// AddRun tracks r, pinned or as one of the recent runs.
func (rl *RecentLines) AddRun(r run.Run, pinned bool) {
	if pinned {
		rl.PinnedRuns.Append(r)
		return
	}
	rl.Runs.Append(r)
}

// DiscardRun removes r from both the recent and pinned lists. Untracked runs
// are ignored.
func (rl *RecentLines) DiscardRun(r run.Run) {
	if rl.Runs.Contains(r) {
		_ = rl.Runs.Remove(r)
	}
	if rl.PinnedRuns.Contains(r) {
		_ = rl.PinnedRuns.Remove(r)
	}
}

func (rl *RecentLines) cull() {
	for rl.Runs.Len() > rl.maxRuns {
		if _, err := rl.Runs.Pop(0); err != nil {
			return
		}
	}
}

func (rl *RecentLines) tracked(r run.Run) bool {
	return rl.Runs.Contains(r) || rl.PinnedRuns.Contains(r)
}

func (rl *RecentLines) onRunAdded(r run.Run) {
	if !rl.tracked(r) {
		return
	}
	if r.Has(rl.stream) {
		rl.addLine(r)
		return
	}
	events := r.Events()
	if events == nil {
		log.Debug(log.CatModel, "Run has no such stream", "uid", r.UID(), "stream", rl.stream)
		return
	}
	p := rl.pendingFor(r.UID(), events)
	if p.hasStream {
		return
	}
	p.stream = events.NewStream.Connect(func(e run.StreamEvent) {
		if e.Name != rl.stream {
			return
		}
		events.NewStream.Disconnect(p.stream)
		p.hasStream = false
		if !p.hasDone {
			delete(rl.pending, e.Run.UID())
		}
		if rl.tracked(e.Run) {
			rl.addLine(e.Run)
		}
	})
	p.hasStream = true
}

func (rl *RecentLines) pendingFor(uid string, events *run.Events) *pendingRun {
	p, ok := rl.pending[uid]
	if !ok {
		p = &pendingRun{events: events}
		rl.pending[uid] = p
	}
	return p
}

func (rl *RecentLines) addLine(r run.Run) {
	rl.cull()
	if !rl.tracked(r) {
		return
	}
	uid := r.UID()
	if _, ok := rl.lines[uid]; ok {
		return
	}

	label := fmt.Sprintf("Scan %d", run.ScanID(r))
	style := map[string]any{}
	if run.IsLiveAndNotCompleted(r) {
		style["color"] = SentinelColor
		events := r.Events()
		p := rl.pendingFor(uid, events)
		p.completed = events.Completed.ConnectOnce(rl.onRunComplete)
		p.hasDone = true
	} else {
		style["color"] = rl.colors.Next()
	}
	if rl.PinnedRuns.Contains(r) {
		style["linestyle"] = "dashed"
		label += " (pinned)"
	}

	stream, x, y, fn := rl.stream, rl.x, rl.y, rl.fn
	lineFunc := func(ctx context.Context, r run.Run) (run.Array, run.Array, error) {
		return fn(ctx, r, stream, x, y)
	}
	line := plotspec.NewLineSpec(lineFunc, r, label, style)
	rl.lines[uid] = line
	rl.axes.Lines.Append(line)
}

func (rl *RecentLines) onRunComplete(e run.CompletedEvent) {
	uid := e.Run.UID()
	if p, ok := rl.pending[uid]; ok {
		p.hasDone = false
		if !p.hasStream {
			delete(rl.pending, uid)
		}
	}
	line, ok := rl.lines[uid]
	if !ok {
		return
	}
	line.Style().Update(map[string]any{"color": rl.colors.Next()})
}

func (rl *RecentLines) onRunRemoved(r run.Run) {
	if rl.tracked(r) {
		return
	}
	uid := r.UID()
	if p, ok := rl.pending[uid]; ok {
		if p.hasStream {
			p.events.NewStream.Disconnect(p.stream)
		}
		if p.hasDone {
			p.events.Completed.Disconnect(p.completed)
		}
		delete(rl.pending, uid)
	}
	line, ok := rl.lines[uid]
	if !ok {
		return
	}
	delete(rl.lines, uid)
	if err := rl.axes.Lines.Remove(line); err != nil {
		log.Debug(log.CatModel, "Line already removed from axes", "uid", uid)
	}
}
