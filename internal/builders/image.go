package builders

import (
	"context"
	"fmt"

	"github.com/zjrosen/skywidgets/internal/plotspec"
	"github.com/zjrosen/skywidgets/internal/run"
)

// Image shows one 2-D field of a single run.
type Image struct {
	field  string
	stream string
	fn     ImagesFunc
	run    run.Run
	figure *plotspec.FigureSpec
	axes   *plotspec.AxesSpec
}

// NewImage returns an image builder for field. Without WithAxes it creates
// a figure titled after the field.
func NewImage(field string, opts ...Option) (*Image, error) {
	if field == "" {
		return nil, ErrEmptyField
	}
	o := buildOptions(opts)
	img := &Image{field: field, stream: o.stream, fn: o.imagesFunc, axes: o.axes}
	if img.axes == nil {
		img.axes = plotspec.NewAxesSpec("", "")
		fig, err := plotspec.NewFigureSpec(field, img.axes)
		if err != nil {
			return nil, err
		}
		img.figure = fig
	} else {
		img.figure = img.axes.Figure()
	}
	return img, nil
}

// Figure returns the owning figure, nil for unowned axes.
func (img *Image) Figure() *plotspec.FigureSpec { return img.figure }

// Axes returns the axes the image is drawn into.
func (img *Image) Axes() *plotspec.AxesSpec { return img.axes }

// Field returns the plotted field.
func (img *Image) Field() string { return img.field }

// StreamName returns the stream the field is read from.
func (img *Image) StreamName() string { return img.stream }

// Run returns the current run, or nil.
func (img *Image) Run() run.Run { return img.run }

// SetRun replaces the displayed run. nil clears the axes.
func (img *Image) SetRun(r run.Run) {
	img.run = r
	img.axes.Images.Clear()
	if r == nil {
		return
	}
	uid := r.UID()
	img.axes.SetTitle(fmt.Sprintf("Scan ID %d   UID %s", run.ScanID(r), uid[:min(8, len(uid))]))

	stream, field, fn := img.stream, img.field, img.fn
	data := func(ctx context.Context, r run.Run) (run.Array, error) {
		return fn(ctx, r, stream, field)
	}
	img.axes.Images.Append(plotspec.NewImageSpec(data, r, field, nil))
}

// DiscardRun clears the image if it shows r.
func (img *Image) DiscardRun(r run.Run) {
	if img.run != nil && run.SameRun(img.run, r) {
		img.SetRun(nil)
	}
}
