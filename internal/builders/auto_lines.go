package builders

import (
	"maps"

	"github.com/google/uuid"

	"github.com/zjrosen/skywidgets/internal/heuristics"
	"github.com/zjrosen/skywidgets/internal/log"
	"github.com/zjrosen/skywidgets/internal/plotspec"
	"github.com/zjrosen/skywidgets/internal/run"
)

// AutoRecentLines creates one RecentLines per (x, y, stream) suggested by
// the line heuristic and shares runs and max_runs among them.
type AutoRecentLines struct {
	Figures *plotspec.FigureList

	core    *autoPlotter[heuristics.LineKey, *RecentLines]
	maxRuns int
	infer   LineHeuristic
	opts    []Option
}

// NewAutoRecentLines returns an empty auto builder. Options other than the
// heuristic are passed to each RecentLines it creates.
func NewAutoRecentLines(maxRuns int, opts ...Option) (*AutoRecentLines, error) {
	if maxRuns < 0 {
		return nil, ErrNegativeMaxRuns
	}
	o := buildOptions(opts)
	a := &AutoRecentLines{maxRuns: maxRuns, infer: o.lineHeuristic, opts: opts}
	a.core = newAutoPlotter(a.create, (*RecentLines).Figure)
	a.Figures = a.core.figures
	return a, nil
}

func (a *AutoRecentLines) create(key heuristics.LineKey) (*RecentLines, error) {
	opts := append(append([]Option(nil), a.opts...), WithStreamName(key.Stream), WithAxes(nil))
	return NewRecentLines(a.maxRuns, key.X, key.Y, opts...)
}

// MaxRuns returns the capacity given to each instance.
func (a *AutoRecentLines) MaxRuns() int { return a.maxRuns }

// SetMaxRuns updates the capacity of every active instance. Retired
// instances keep their old capacity.
func (a *AutoRecentLines) SetMaxRuns(n int) error {
	if n < 0 {
		return ErrNegativeMaxRuns
	}
	a.maxRuns = n
	for _, inst := range a.core.active {
		if err := inst.SetMaxRuns(n); err != nil {
			return err
		}
	}
	return nil
}

// KeysToFigures maps each active key to the uuid of its figure.
func (a *AutoRecentLines) KeysToFigures() map[heuristics.LineKey]uuid.UUID {
	return a.core.keysToFigures()
}

// Instance returns the active builder for key.
func (a *AutoRecentLines) Instance(key heuristics.LineKey) (*RecentLines, bool) {
	inst, ok := a.core.active[key]
	return inst, ok
}

// InactiveInstances returns the retired builders for key by figure uuid.
func (a *AutoRecentLines) InactiveInstances(key heuristics.LineKey) map[uuid.UUID]*RecentLines {
	return a.core.inactiveFor(key)
}

// NewInstanceForKey starts a fresh figure for key. The previous instance
// stops receiving runs but its figure stays until removed.
func (a *AutoRecentLines) NewInstanceForKey(key heuristics.LineKey) (*RecentLines, error) {
	return a.core.newInstance(key)
}

// AddRun routes r to the instance of every key its streams suggest.
func (a *AutoRecentLines) AddRun(r run.Run, pinned bool) {
	watchStreams(r, func(r run.Run, name string) { a.handleStream(r, name, pinned) })
}

// DiscardRun removes r from every active instance.
func (a *AutoRecentLines) DiscardRun(r run.Run) {
	for _, inst := range maps.Clone(a.core.active) {
		inst.DiscardRun(r)
	}
}

func (a *AutoRecentLines) handleStream(r run.Run, name string, pinned bool) {
	s, err := r.Stream(name)
	if err != nil {
		log.ErrorErr(log.CatModel, "Stream lookup failed", err, "uid", r.UID(), "stream", name)
		return
	}
	for _, key := range a.infer(r, s) {
		inst, err := a.core.instanceFor(key)
		if err != nil {
			log.ErrorErr(log.CatModel, "Could not create line builder", err, "x", key.X, "y", key.Y)
			continue
		}
		inst.AddRun(r, pinned)
	}
}
