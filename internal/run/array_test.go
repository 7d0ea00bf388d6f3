package run

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFromValue_NestedLists(t *testing.T) {
	a, err := FromValue([]any{[]any{1.0, 2.0}, []any{3.0, 4.0}})
	require.NoError(t, err)
	require.Equal(t, []int{2, 2}, a.Shape)
	require.Equal(t, 4.0, a.At(1, 1))
	require.Equal(t, 2, a.NDim())

	_, err = FromValue([]any{[]any{1.0}, []any{1.0, 2.0}})
	require.ErrorIs(t, err, ErrShape)

	_, err = FromValue("text")
	require.ErrorIs(t, err, ErrShape)
}

func TestArray_MeanLeading(t *testing.T) {
	// two 2x2 frames
	a := Array{Shape: []int{2, 2, 2}, Data: []float64{0, 2, 4, 6, 2, 4, 6, 8}}

	m := a.MeanLeading()
	require.Equal(t, []int{2, 2}, m.Shape)
	require.Equal(t, []float64{1, 3, 5, 7}, m.Data)

	scalar := Vector(1, 2, 3).MeanLeading()
	require.Empty(t, scalar.Shape)
	require.Equal(t, []float64{2}, scalar.Data)

	empty := Array{Shape: []int{0, 3}}.MeanLeading()
	require.Equal(t, []int{3}, empty.Shape)
	require.Equal(t, []float64{0, 0, 0}, empty.Data)
}

func TestStack(t *testing.T) {
	s, err := Stack([]Array{Vector(1, 2), Vector(3, 4), Vector(5, 6)})
	require.NoError(t, err)
	require.Equal(t, []int{3, 2}, s.Shape)
	require.Equal(t, 3, s.Len())
	require.Equal(t, 6, s.Size())

	empty, err := Stack(nil)
	require.NoError(t, err)
	require.Equal(t, []int{0}, empty.Shape)
}
