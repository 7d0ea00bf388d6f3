// Package builders turns a changing collection of Runs into plot
// specs: per-run figures (PromptPlotter), rolling line windows
// (RecentLines, AutoRecentLines) and single-run images (Image, AutoImages).
//
// Everything here runs synchronously inside signal handlers on the caller's
// goroutine. Stream reads happen only when a renderer calls a spec's data
// function.
package builders

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/zjrosen/skywidgets/internal/evented"
	"github.com/zjrosen/skywidgets/internal/plotspec"
	"github.com/zjrosen/skywidgets/internal/run"
)

var (
	// ErrNegativeMaxRuns is returned for a negative run capacity.
	ErrNegativeMaxRuns = errors.New("max_runs must not be negative")
	// ErrEmptyField is returned when a required field name is empty.
	ErrEmptyField = errors.New("field name must not be empty")
)

// Builder turns a completed Run into figures.
type Builder interface {
	Build(r run.Run) ([]*plotspec.FigureSpec, error)
}

// BuilderFunc adapts a function to Builder. Two BuilderFuncs count as the
// same builder when they refer to the same top-level function.
type BuilderFunc func(r run.Run) ([]*plotspec.FigureSpec, error)

// Build calls f.
func (f BuilderFunc) Build(r run.Run) ([]*plotspec.FigureSpec, error) {
	return f(r)
}

type singleBuilder struct {
	fn func(r run.Run) (*plotspec.FigureSpec, error)
}

func (s *singleBuilder) Build(r run.Run) ([]*plotspec.FigureSpec, error) {
	fig, err := s.fn(r)
	if err != nil {
		return nil, err
	}
	if fig == nil {
		return nil, nil
	}
	return []*plotspec.FigureSpec{fig}, nil
}

// Single adapts a function returning one figure into a Builder producing a
// one-element slice.
func Single(fn func(r run.Run) (*plotspec.FigureSpec, error)) Builder {
	return &singleBuilder{fn: fn}
}

// BuilderList is an observable list of builders.
type BuilderList = evented.List[Builder]

// NewBuilderList returns a builder list.
func NewBuilderList(builders ...Builder) *BuilderList {
	return evented.NewListFunc(sameBuilder, builders...)
}

func sameBuilder(a, b Builder) bool {
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if !va.IsValid() || !vb.IsValid() {
		return !va.IsValid() && !vb.IsValid()
	}
	if va.Type() != vb.Type() {
		return false
	}
	if va.Kind() == reflect.Func {
		return va.Pointer() == vb.Pointer()
	}
	if va.Comparable() {
		return va.Equal(vb)
	}
	return false
}

// PromptLineBuilder plots "det" against "motor" from the primary stream of
// one run.
func PromptLineBuilder(r run.Run) ([]*plotspec.FigureSpec, error) {
	fn := func(ctx context.Context, r run.Run) (run.Array, run.Array, error) {
		return DefaultLinesFunc(ctx, r, "primary", "motor", "det")
	}
	line := plotspec.NewLineSpec(fn, r, fmt.Sprintf("Scan %d", run.ScanID(r)), nil)
	axes := plotspec.NewAxesSpec("motor", "det")
	axes.Lines.Append(line)
	fig, err := plotspec.NewFigureSpec("det v motor", axes)
	if err != nil {
		return nil, err
	}
	return []*plotspec.FigureSpec{fig}, nil
}

// DefaultLinesFunc reads the stream and returns its x and y fields.
func DefaultLinesFunc(ctx context.Context, r run.Run, stream, x, y string) (run.Array, run.Array, error) {
	ds, err := readStream(ctx, r, stream)
	if err != nil {
		return run.Array{}, run.Array{}, err
	}
	xa, err := ds.Field(x)
	if err != nil {
		return run.Array{}, run.Array{}, err
	}
	ya, err := ds.Field(y)
	if err != nil {
		return run.Array{}, run.Array{}, err
	}
	return xa, ya, nil
}

// DefaultImageFunc reads the field and averages over leading axes until two
// dimensions remain.
func DefaultImageFunc(ctx context.Context, r run.Run, stream, field string) (run.Array, error) {
	ds, err := readStream(ctx, r, stream)
	if err != nil {
		return run.Array{}, err
	}
	data, err := ds.Field(field)
	if err != nil {
		return run.Array{}, err
	}
	for data.NDim() > 2 {
		data = data.MeanLeading()
	}
	return data, nil
}

func readStream(ctx context.Context, r run.Run, stream string) (run.Dataset, error) {
	s, err := r.Stream(stream)
	if err != nil {
		return nil, err
	}
	return s.Read(ctx)
}
