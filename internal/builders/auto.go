package builders

import (
	"maps"

	"github.com/google/uuid"

	"github.com/zjrosen/skywidgets/internal/evented"
	"github.com/zjrosen/skywidgets/internal/log"
	"github.com/zjrosen/skywidgets/internal/plotspec"
	"github.com/zjrosen/skywidgets/internal/run"
)

// autoPlotter routes keys to builder instances, one figure per instance.
// Replaced instances are kept as inactive until their figure is removed.
type autoPlotter[K comparable, P any] struct {
	figures     *plotspec.FigureList
	active      map[K]P
	figureToKey map[uuid.UUID]K
	inactive    map[K]map[uuid.UUID]P

	create   func(K) (P, error)
	figureOf func(P) *plotspec.FigureSpec
}

func newAutoPlotter[K comparable, P any](create func(K) (P, error), figureOf func(P) *plotspec.FigureSpec) *autoPlotter[K, P] {
	a := &autoPlotter[K, P]{
		figures:     plotspec.NewFigureList(),
		active:      make(map[K]P),
		figureToKey: make(map[uuid.UUID]K),
		inactive:    make(map[K]map[uuid.UUID]P),
		create:      create,
		figureOf:    figureOf,
	}
	a.figures.Removed.Connect(a.onFigureRemoved)
	return a
}

func (a *autoPlotter[K, P]) instanceFor(key K) (P, error) {
	if inst, ok := a.active[key]; ok {
		return inst, nil
	}
	return a.newInstance(key)
}

func (a *autoPlotter[K, P]) newInstance(key K) (P, error) {
	inst, err := a.create(key)
	if err != nil {
		var zero P
		return zero, err
	}
	if old, ok := a.active[key]; ok {
		id := a.figureOf(old).UUID()
		delete(a.figureToKey, id)
		if a.inactive[key] == nil {
			a.inactive[key] = make(map[uuid.UUID]P)
		}
		a.inactive[key][id] = old
	}
	fig := a.figureOf(inst)
	a.active[key] = inst
	a.figureToKey[fig.UUID()] = key
	a.figures.Append(fig)
	return inst, nil
}

func (a *autoPlotter[K, P]) onFigureRemoved(e evented.ItemEvent[*plotspec.FigureSpec]) {
	id := e.Item.UUID()
	if key, ok := a.figureToKey[id]; ok {
		delete(a.figureToKey, id)
		delete(a.active, key)
		return
	}
	for key, retired := range a.inactive {
		if _, ok := retired[id]; ok {
			delete(retired, id)
			if len(retired) == 0 {
				delete(a.inactive, key)
			}
			return
		}
	}
	log.Debug(log.CatModel, "Removed figure has no builder", "figure", id.String())
}

func (a *autoPlotter[K, P]) keysToFigures() map[K]uuid.UUID {
	out := make(map[K]uuid.UUID, len(a.active))
	for key, inst := range a.active {
		out[key] = a.figureOf(inst).UUID()
	}
	return out
}

func (a *autoPlotter[K, P]) inactiveFor(key K) map[uuid.UUID]P {
	return maps.Clone(a.inactive[key])
}

// watchStreams calls handle for every stream r has now and, while r is live,
// for every stream that appears until it completes.
func watchStreams(r run.Run, handle func(r run.Run, stream string)) {
	for _, name := range r.StreamNames() {
		handle(r, name)
	}
	if !run.IsLiveAndNotCompleted(r) {
		return
	}
	events := r.Events()
	sub := events.NewStream.Connect(func(e run.StreamEvent) { handle(e.Run, e.Name) })
	events.Completed.ConnectOnce(func(run.CompletedEvent) { events.NewStream.Disconnect(sub) })
}
