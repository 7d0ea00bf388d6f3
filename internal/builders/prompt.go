package builders

import (
	"github.com/zjrosen/skywidgets/internal/evented"
	"github.com/zjrosen/skywidgets/internal/log"
	"github.com/zjrosen/skywidgets/internal/plotspec"
	"github.com/zjrosen/skywidgets/internal/run"
)

// PromptPlotter applies every builder to each run once it is complete and
// appends the resulting figures. Figures are never updated afterwards.
type PromptPlotter struct {
	Figures  *plotspec.FigureList
	Builders *BuilderList
	Runs     *run.List
}

// NewPromptPlotter returns a plotter with the given builders.
func NewPromptPlotter(builders ...Builder) *PromptPlotter {
	p := &PromptPlotter{
		Figures:  plotspec.NewFigureList(),
		Builders: NewBuilderList(builders...),
		Runs:     run.NewList(),
	}
	p.Runs.Added.Connect(p.onRunAdded)
	p.Builders.Added.Connect(p.onBuilderAdded)
	return p
}

// AddRun tracks r. Complete runs are processed immediately, live ones when
// they complete.
func (p *PromptPlotter) AddRun(r run.Run) {
	p.Runs.Append(r)
}

// DiscardRun stops tracking r. Figures already produced for it are kept.
// Discarding an untracked run is a no-op.
func (p *PromptPlotter) DiscardRun(r run.Run) {
	if err := p.Runs.Remove(r); err != nil {
		log.Debug(log.CatModel, "discard of untracked run", "uid", r.UID())
	}
}

func (p *PromptPlotter) onRunAdded(e evented.ItemEvent[run.Run]) {
	r := e.Item
	if !run.IsLiveAndNotCompleted(r) {
		p.process(r)
		return
	}
	r.Events().Completed.ConnectOnce(func(ev run.CompletedEvent) {
		if !p.Runs.Contains(ev.Run) {
			return
		}
		p.process(ev.Run)
	})
}

// Live runs pick up new builders through process at completion, so only
// complete runs are handled here.
func (p *PromptPlotter) onBuilderAdded(e evented.ItemEvent[Builder]) {
	for _, r := range p.Runs.All() {
		if run.IsLiveAndNotCompleted(r) {
			continue
		}
		p.apply(e.Item, r)
	}
}

func (p *PromptPlotter) process(r run.Run) {
	for _, b := range p.Builders.All() {
		p.apply(b, r)
	}
}

func (p *PromptPlotter) apply(b Builder, r run.Run) {
	figures, err := b.Build(r)
	if err != nil {
		log.ErrorErr(log.CatModel, "Plot builder failed", err, "uid", r.UID())
		return
	}
	p.Figures.Extend(figures...)
}
