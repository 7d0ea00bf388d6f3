package builders

import (
	"maps"

	"github.com/google/uuid"

	"github.com/zjrosen/skywidgets/internal/heuristics"
	"github.com/zjrosen/skywidgets/internal/log"
	"github.com/zjrosen/skywidgets/internal/plotspec"
	"github.com/zjrosen/skywidgets/internal/run"
)

// AutoImages creates one Image per (field, stream) suggested by the image
// heuristic. Each shows the latest run carrying that field.
type AutoImages struct {
	Figures *plotspec.FigureList

	core  *autoPlotter[heuristics.ImageKey, *Image]
	infer ImageHeuristic
	opts  []Option
}

// NewAutoImages returns an empty auto image builder.
func NewAutoImages(opts ...Option) *AutoImages {
	o := buildOptions(opts)
	a := &AutoImages{infer: o.imageHeuristic, opts: opts}
	a.core = newAutoPlotter(a.create, (*Image).Figure)
	a.Figures = a.core.figures
	return a
}

func (a *AutoImages) create(key heuristics.ImageKey) (*Image, error) {
	opts := append(append([]Option(nil), a.opts...), WithStreamName(key.Stream), WithAxes(nil))
	return NewImage(key.Field, opts...)
}

// KeysToFigures maps each active key to the uuid of its figure.
func (a *AutoImages) KeysToFigures() map[heuristics.ImageKey]uuid.UUID {
	return a.core.keysToFigures()
}

// Instance returns the active image for key.
func (a *AutoImages) Instance(key heuristics.ImageKey) (*Image, bool) {
	inst, ok := a.core.active[key]
	return inst, ok
}

// InactiveInstances returns retired images for key by figure uuid.
func (a *AutoImages) InactiveInstances(key heuristics.ImageKey) map[uuid.UUID]*Image {
	return a.core.inactiveFor(key)
}

// NewInstanceForKey starts a fresh figure for key.
func (a *AutoImages) NewInstanceForKey(key heuristics.ImageKey) (*Image, error) {
	return a.core.newInstance(key)
}

// AddRun shows r in the image of every key its streams suggest.
func (a *AutoImages) AddRun(r run.Run) {
	watchStreams(r, a.handleStream)
}

// DiscardRun clears every active image showing r.
func (a *AutoImages) DiscardRun(r run.Run) {
	for _, inst := range maps.Clone(a.core.active) {
		inst.DiscardRun(r)
	}
}

func (a *AutoImages) handleStream(r run.Run, name string) {
	s, err := r.Stream(name)
	if err != nil {
		log.ErrorErr(log.CatModel, "Stream lookup failed", err, "uid", r.UID(), "stream", name)
		return
	}
	for _, key := range a.infer(r, s) {
		inst, err := a.core.instanceFor(key)
		if err != nil {
			log.ErrorErr(log.CatModel, "Could not create image builder", err, "field", key.Field)
			continue
		}
		inst.SetRun(r)
	}
}
