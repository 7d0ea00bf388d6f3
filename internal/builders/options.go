package builders

import (
	"context"

	"github.com/zjrosen/skywidgets/internal/heuristics"
	"github.com/zjrosen/skywidgets/internal/plotspec"
	"github.com/zjrosen/skywidgets/internal/run"
)

// LinesFunc extracts x and y arrays of a stream.
type LinesFunc func(ctx context.Context, r run.Run, stream, x, y string) (run.Array, run.Array, error)

// ImagesFunc extracts a 2-D array for one field of a stream.
type ImagesFunc func(ctx context.Context, r run.Run, stream, field string) (run.Array, error)

// LineHeuristic proposes line keys for a stream.
type LineHeuristic func(r run.Run, s run.Stream) []heuristics.LineKey

// ImageHeuristic proposes image keys for a stream.
type ImageHeuristic func(r run.Run, s run.Stream) []heuristics.ImageKey

type options struct {
	stream         string
	linesFunc      LinesFunc
	imagesFunc     ImagesFunc
	axes           *plotspec.AxesSpec
	lineHeuristic  LineHeuristic
	imageHeuristic ImageHeuristic
}

// Option configures a plot builder.
type Option func(*options)

// WithStreamName selects the stream to read (default "primary").
func WithStreamName(name string) Option {
	return func(o *options) { o.stream = name }
}

// WithLinesFunc replaces DefaultLinesFunc.
func WithLinesFunc(fn LinesFunc) Option {
	return func(o *options) { o.linesFunc = fn }
}

// WithImagesFunc replaces DefaultImageFunc.
func WithImagesFunc(fn ImagesFunc) Option {
	return func(o *options) { o.imagesFunc = fn }
}

// WithAxes draws into existing axes instead of creating a figure.
func WithAxes(ax *plotspec.AxesSpec) Option {
	return func(o *options) { o.axes = ax }
}

// WithLineHeuristic replaces heuristics.InferLinesToPlot.
func WithLineHeuristic(fn LineHeuristic) Option {
	return func(o *options) { o.lineHeuristic = fn }
}

// WithImageHeuristic replaces heuristics.InferImages.
func WithImageHeuristic(fn ImageHeuristic) Option {
	return func(o *options) { o.imageHeuristic = fn }
}

func buildOptions(opts []Option) options {
	o := options{
		stream:         "primary",
		linesFunc:      DefaultLinesFunc,
		imagesFunc:     DefaultImageFunc,
		lineHeuristic:  heuristics.InferLinesToPlot,
		imageHeuristic: heuristics.InferImages,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// SentinelColor marks lines of runs still in progress.
const SentinelColor = "black"

// Palette is the color cycle assigned to completed runs.
var Palette = []string{"C0", "C1", "C2", "C3", "C4", "C5", "C6", "C7", "C8", "C9"}

type colorCycle struct {
	next int
}

func (c *colorCycle) Next() string {
	color := Palette[c.next%len(Palette)]
	c.next++
	return color
}
