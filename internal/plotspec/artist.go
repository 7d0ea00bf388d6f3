package plotspec

import (
	"context"

	"github.com/google/uuid"

	"github.com/zjrosen/skywidgets/internal/log"
	"github.com/zjrosen/skywidgets/internal/run"
)

// Artist is anything drawn on an AxesSpec.
type Artist interface {
	UUID() uuid.UUID
	Label() string
	Run() run.Run
	Style() *Style
	Axes() *AxesSpec

	attach(*AxesSpec)
}

type artist struct {
	id    uuid.UUID
	run   run.Run
	label string
	style *Style
	axes  *AxesSpec
}

func newArtist(r run.Run, label string, style map[string]any) artist {
	return artist{id: uuid.New(), run: r, label: label, style: NewStyle(style)}
}

func (a *artist) UUID() uuid.UUID { return a.id }
func (a *artist) Label() string { return a.label }
func (a *artist) Run() run.Run { return a.run }
func (a *artist) Style() *Style { return a.style }
func (a *artist) Axes() *AxesSpec { return a.axes }

// attach records the owning axes once. An artist belongs to one axes for
// its whole life.
func (a *artist) attach(ax *AxesSpec) {
	if a.axes == nil {
		a.axes = ax
		return
	}
	if a.axes != ax {
		log.Warn(log.CatModel, "artist already belongs to other axes", "artist", a.id, "axes", a.axes.UUID(), "other", ax.UUID())
	}
}

// LineFunc produces the x and y data of a line.
type LineFunc func(ctx context.Context, r run.Run) (x, y run.Array, err error)

// LineSpec describes one line trace.
type LineSpec struct {
	artist
	fn LineFunc
}

// NewLineSpec returns a line drawing fn(run).
func NewLineSpec(fn LineFunc, r run.Run, label string, style map[string]any) *LineSpec {
	return &LineSpec{artist: newArtist(r, label, style), fn: fn}
}

// Func returns the data function.
func (l *LineSpec) Func() LineFunc {
	return l.fn
}

// Data calls the data function for the line's run. This is where stream
// reads happen.
func (l *LineSpec) Data(ctx context.Context) (x, y run.Array, err error) {
	return l.fn(ctx, l.run)
}

// ImageFunc produces the 2-D array of an image.
type ImageFunc func(ctx context.Context, r run.Run) (run.Array, error)

// ImageSpec describes one image.
type ImageSpec struct {
	artist
	fn ImageFunc
}

// NewImageSpec returns an image drawing fn(run).
func NewImageSpec(fn ImageFunc, r run.Run, label string, style map[string]any) *ImageSpec {
	return &ImageSpec{artist: newArtist(r, label, style), fn: fn}
}

// Func returns the data function.
func (i *ImageSpec) Func() ImageFunc {
	return i.fn
}

// Data calls the data function for the image's run.
func (i *ImageSpec) Data(ctx context.Context) (run.Array, error) {
	return i.fn(ctx, i.run)
}
