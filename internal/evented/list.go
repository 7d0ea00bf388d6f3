package evented

import (
	"errors"
	"fmt"
	"iter"
	"slices"
)

// ErrNotInList is returned by Remove when the item is absent.
var ErrNotInList = errors.New("item not in list")

// ErrIndexOutOfRange is returned for indexes outside the list.
var ErrIndexOutOfRange = errors.New("list index out of range")

// ItemEvent describes one insertion or removal.
type ItemEvent[T any] struct {
	Item  T
	Index int
}

// List is an ordered sequence that emits Added after every insertion and
// Removed after every removal. Replacing an item emits Removed then Added at
// the same index.
type List[T any] struct {
	items []T
	equal func(a, b T) bool

	Added   Signal[ItemEvent[T]]
	Removed Signal[ItemEvent[T]]
}

// NewList returns a list of comparable items matched with ==.
func NewList[T comparable](items ...T) *List[T] {
	return NewListFunc(func(a, b T) bool { return a == b }, items...)
}

// NewListFunc returns a list whose Remove/Index/Contains match with equal.
func NewListFunc[T any](equal func(a, b T) bool, items ...T) *List[T] {
	l := &List[T]{equal: equal}
	l.items = append(l.items, items...)
	return l
}

// Len returns the number of items.
func (l *List[T]) Len() int {
	return len(l.items)
}

// At returns the item at i. Negative indexes count from the end.
func (l *List[T]) At(i int) T {
	n, err := l.normalize(i)
	if err != nil {
		panic(err)
	}
	return l.items[n]
}

// Items returns a copy of the items.
func (l *List[T]) Items() []T {
	out := make([]T, len(l.items))
	copy(out, l.items)
	return out
}

// All iterates over a snapshot of the list.
func (l *List[T]) All() iter.Seq2[int, T] {
	snapshot := l.Items()
	return func(yield func(int, T) bool) {
		for i, v := range snapshot {
			if !yield(i, v) {
				return
			}
		}
	}
}

// Index returns the position of the first item equal to v, or -1.
func (l *List[T]) Index(v T) int {
	for i, item := range l.items {
		if l.equal(item, v) {
			return i
		}
	}
	return -1
}

// Contains reports whether an item equal to v is present.
func (l *List[T]) Contains(v T) bool {
	return l.Index(v) >= 0
}

// Append adds v at the end.
func (l *List[T]) Append(v T) {
	l.Insert(len(l.items), v)
}

// Extend appends each item in order, one event per item.
func (l *List[T]) Extend(items ...T) {
	for _, v := range items {
		l.Append(v)
	}
}

// Insert places v before index i. Indexes are clamped to the list bounds and
// negative ones count from the end.
func (l *List[T]) Insert(i int, v T) {
	if i < 0 {
		i += len(l.items)
	}
	i = max(0, min(i, len(l.items)))
	l.items = append(l.items, v)
	copy(l.items[i+1:], l.items[i:])
	l.items[i] = v
	l.Added.Emit(ItemEvent[T]{Item: v, Index: i})
}

// Set replaces the item at i.
func (l *List[T]) Set(i int, v T) error {
	n, err := l.normalize(i)
	if err != nil {
		return err
	}
	old := l.items[n]
	l.items[n] = v
	l.Removed.Emit(ItemEvent[T]{Item: old, Index: n})
	l.Added.Emit(ItemEvent[T]{Item: v, Index: n})
	return nil
}

// Pop removes and returns the item at i. Negative indexes count from the end.
func (l *List[T]) Pop(i int) (T, error) {
	var zero T
	n, err := l.normalize(i)
	if err != nil {
		return zero, err
	}
	v := l.items[n]
	l.items = slices.Delete(l.items, n, n+1)
	l.Removed.Emit(ItemEvent[T]{Item: v, Index: n})
	return v, nil
}

// Remove drops the first item equal to v.
func (l *List[T]) Remove(v T) error {
	i := l.Index(v)
	if i < 0 {
		return ErrNotInList
	}
	_, err := l.Pop(i)
	return err
}

// Clear removes every item, last first.
func (l *List[T]) Clear() {
	for len(l.items) > 0 {
		_, _ = l.Pop(len(l.items) - 1)
	}
}

func (l *List[T]) normalize(i int) (int, error) {
	n := i
	if n < 0 {
		n += len(l.items)
	}
	if n < 0 || n >= len(l.items) {
		return 0, fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, i, len(l.items))
	}
	return n, nil
}
