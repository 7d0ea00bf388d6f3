// Package plotspec holds backend-independent descriptions of figures, axes,
// lines and images. Views observe them through evented lists and signals.
package plotspec

import (
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/zjrosen/skywidgets/internal/evented"
)

var (
	// ErrAxesOwned is returned when an axes is placed in a second figure.
	ErrAxesOwned = errors.New("axes already belongs to a figure")
	// ErrNoAxes is returned for figures without axes.
	ErrNoAxes = errors.New("figure needs at least one axes")
)

// AxesField names an axes property that can change.
type AxesField string

const (
	FieldTitle  AxesField = "title"
	FieldXLabel AxesField = "x_label"
	FieldYLabel AxesField = "y_label"
)

// AxesChange reports a changed axes property.
type AxesChange struct {
	Field AxesField
	Value string
}

// AxesSpec holds the lines and images of one plot area.
type AxesSpec struct {
	id     uuid.UUID
	figure *FigureSpec
	title  string
	xLabel string
	yLabel string

	Lines  *evented.List[*LineSpec]
	Images *evented.List[*ImageSpec]

	Changed evented.Signal[AxesChange]
}

// NewAxesSpec returns empty axes with the given labels.
func NewAxesSpec(xLabel, yLabel string) *AxesSpec {
	ax := &AxesSpec{
		id:     uuid.New(),
		xLabel: xLabel,
		yLabel: yLabel,
		Lines:  evented.NewList[*LineSpec](),
		Images: evented.NewList[*ImageSpec](),
	}
	ax.Lines.Added.Connect(func(e evented.ItemEvent[*LineSpec]) { e.Item.attach(ax) })
	ax.Images.Added.Connect(func(e evented.ItemEvent[*ImageSpec]) { e.Item.attach(ax) })
	return ax
}

func (a *AxesSpec) UUID() uuid.UUID { return a.id }
func (a *AxesSpec) Figure() *FigureSpec { return a.figure }
func (a *AxesSpec) Title() string { return a.title }
func (a *AxesSpec) XLabel() string { return a.xLabel }
func (a *AxesSpec) YLabel() string { return a.yLabel }

// SetTitle changes the title.
func (a *AxesSpec) SetTitle(v string) { a.set(&a.title, FieldTitle, v) }

// SetXLabel changes the x label.
func (a *AxesSpec) SetXLabel(v string) { a.set(&a.xLabel, FieldXLabel, v) }

// SetYLabel changes the y label.
func (a *AxesSpec) SetYLabel(v string) { a.set(&a.yLabel, FieldYLabel, v) }

func (a *AxesSpec) set(dst *string, field AxesField, v string) {
	if *dst == v {
		return
	}
	*dst = v
	a.Changed.Emit(AxesChange{Field: field, Value: v})
}

// Artists returns lines then images.
func (a *AxesSpec) Artists() []Artist {
	out := make([]Artist, 0, a.Lines.Len()+a.Images.Len())
	for _, l := range a.Lines.All() {
		out = append(out, l)
	}
	for _, im := range a.Images.All() {
		out = append(out, im)
	}
	return out
}

// ByLabel returns every artist with the given label.
func (a *AxesSpec) ByLabel(label string) []Artist {
	var out []Artist
	for _, art := range a.Artists() {
		if art.Label() == label {
			out = append(out, art)
		}
	}
	return out
}

// ByUUID finds an artist by id.
func (a *AxesSpec) ByUUID(id uuid.UUID) (Artist, bool) {
	for _, art := range a.Artists() {
		if art.UUID() == id {
			return art, true
		}
	}
	return nil, false
}

// FigureSpec groups axes under a title.
type FigureSpec struct {
	id    uuid.UUID
	axes  []*AxesSpec
	title string

	TitleChanged evented.Signal[string]
}

// NewFigureSpec claims each axes for the new figure.
func NewFigureSpec(title string, axes ...*AxesSpec) (*FigureSpec, error) {
	if len(axes) == 0 {
		return nil, ErrNoAxes
	}
	for _, ax := range axes {
		if ax.figure != nil {
			return nil, fmt.Errorf("%w: axes %s in figure %s", ErrAxesOwned, ax.id, ax.figure.id)
		}
	}
	f := &FigureSpec{id: uuid.New(), axes: slices.Clone(axes), title: title}
	for _, ax := range axes {
		ax.figure = f
	}
	return f, nil
}

func (f *FigureSpec) UUID() uuid.UUID { return f.id }
func (f *FigureSpec) Title() string { return f.title }

// Axes returns the axes in order. The set is fixed at construction.
func (f *FigureSpec) Axes() []*AxesSpec {
	return slices.Clone(f.axes)
}

// SetTitle changes the title and emits TitleChanged.
func (f *FigureSpec) SetTitle(title string) {
	if f.title == title {
		return
	}
	f.title = title
	f.TitleChanged.Emit(title)
}

// FigureList is the observable collection of figures a view displays.
type FigureList = evented.List[*FigureSpec]

// NewFigureList returns an empty figure list.
func NewFigureList(figures ...*FigureSpec) *FigureList {
	return evented.NewList(figures...)
}

// FindFigure returns the figure with the given id.
func FindFigure(l *FigureList, id uuid.UUID) (*FigureSpec, bool) {
	for _, f := range l.All() {
		if f.id == id {
			return f, true
		}
	}
	return nil, false
}
