package run

import (
	"errors"
	"fmt"
	"slices"
)

// ErrShape is returned when values cannot form a rectangular array.
var ErrShape = errors.New("inconsistent array shape")

// Array is a dense row-major n-dimensional array of float64.
type Array struct {
	Shape []int
	Data  []float64
}

// NDim returns the number of dimensions.
func (a Array) NDim() int {
	return len(a.Shape)
}

// Len returns the size of the leading dimension (1 for scalars).
func (a Array) Len() int {
	if len(a.Shape) == 0 {
		return 1
	}
	return a.Shape[0]
}

// Size returns the number of elements.
func (a Array) Size() int {
	n := 1
	for _, d := range a.Shape {
		n *= d
	}
	return n
}

// At returns the element at the given index.
func (a Array) At(idx ...int) float64 {
	if len(idx) != len(a.Shape) {
		panic(fmt.Sprintf("run: index of %d dims into %d-dim array", len(idx), len(a.Shape)))
	}
	off := 0
	for i, d := range a.Shape {
		if idx[i] < 0 || idx[i] >= d {
			panic(fmt.Sprintf("run: index %d out of range for axis %d of size %d", idx[i], i, d))
		}
		off = off*d + idx[i]
	}
	return a.Data[off]
}

// MeanLeading averages over the leading axis, dropping one dimension.
// A 1-D array reduces to a scalar; an empty leading axis yields zeros.
func (a Array) MeanLeading() Array {
	if len(a.Shape) == 0 {
		return a
	}
	n := a.Shape[0]
	inner := a.Size()
	if n > 0 {
		inner /= n
	} else {
		inner = 1
		for _, d := range a.Shape[1:] {
			inner *= d
		}
	}
	out := Array{Shape: slices.Clone(a.Shape[1:]), Data: make([]float64, inner)}
	if n == 0 {
		return out
	}
	for i := 0; i < n; i++ {
		row := a.Data[i*inner : (i+1)*inner]
		for j, v := range row {
			out.Data[j] += v
		}
	}
	for j := range out.Data {
		out.Data[j] /= float64(n)
	}
	return out
}

// Stack joins equally shaped arrays along a new leading axis.
func Stack(rows []Array) (Array, error) {
	if len(rows) == 0 {
		return Array{Shape: []int{0}}, nil
	}
	inner := rows[0].Shape
	out := Array{
		Shape: append([]int{len(rows)}, inner...),
		Data:  make([]float64, 0, len(rows)*rows[0].Size()),
	}
	for i, r := range rows {
		if !slices.Equal(r.Shape, inner) {
			return Array{}, fmt.Errorf("%w: row %d has shape %v, want %v", ErrShape, i, r.Shape, inner)
		}
		out.Data = append(out.Data, r.Data...)
	}
	return out, nil
}

// FromValue converts a decoded JSON value (number, bool or nested lists of
// them) into an Array.
func FromValue(v any) (Array, error) {
	switch x := v.(type) {
	case float64:
		return Array{Data: []float64{x}}, nil
	case float32:
		return Array{Data: []float64{float64(x)}}, nil
	case int:
		return Array{Data: []float64{float64(x)}}, nil
	case int64:
		return Array{Data: []float64{float64(x)}}, nil
	case bool:
		if x {
			return Array{Data: []float64{1}}, nil
		}
		return Array{Data: []float64{0}}, nil
	case []float64:
		return Array{Shape: []int{len(x)}, Data: slices.Clone(x)}, nil
	case []any:
		rows := make([]Array, len(x))
		for i, e := range x {
			r, err := FromValue(e)
			if err != nil {
				return Array{}, err
			}
			rows[i] = r
		}
		return Stack(rows)
	case Array:
		return x, nil
	default:
		return Array{}, fmt.Errorf("%w: unsupported value %T", ErrShape, v)
	}
}

// Vector builds a 1-D array.
func Vector(values ...float64) Array {
	return Array{Shape: []int{len(values)}, Data: slices.Clone(values)}
}
