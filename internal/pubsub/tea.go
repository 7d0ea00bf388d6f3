package pubsub

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
)

// listenCmd waits for one event on ch and returns wrap(event). It returns
// nil once ctx is cancelled and closed once the channel is closed.
func listenCmd[T any](ctx context.Context, ch <-chan Event[T], wrap func(Event[T]) tea.Msg, closed tea.Msg) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-ch:
			if !ok {
				return closed
			}
			return wrap(event)
		}
	}
}

// ContinuousListener maintains subscription state for the Bubble Tea update loop.
type ContinuousListener[T any] struct {
	ctx    context.Context
	ch     <-chan Event[T]
	wrap   func(Event[T]) tea.Msg
	closed tea.Msg
}

// NewContinuousListener creates a new listener that subscribes to the broker.
// The subscription is automatically cleaned up when the context is cancelled.
func NewContinuousListener[T any](ctx context.Context, broker *Broker[T]) *ContinuousListener[T] {
	return &ContinuousListener[T]{
		ctx:  ctx,
		ch:   broker.Subscribe(ctx),
		wrap: func(e Event[T]) tea.Msg { return e },
	}
}

// NewMappedListener is NewContinuousListener delivering wrap(event), so a
// model can switch on its own message types.
func NewMappedListener[T any](ctx context.Context, broker *Broker[T], wrap func(Event[T]) tea.Msg) *ContinuousListener[T] {
	l := NewContinuousListener(ctx, broker)
	l.wrap = wrap
	return l
}

// OnClose sets the message Listen returns after the broker is closed.
// Without it a closed broker yields nil.
func (l *ContinuousListener[T]) OnClose(msg tea.Msg) *ContinuousListener[T] {
	l.closed = msg
	return l
}

// Listen returns a tea.Cmd that waits for the next event.
// Call it again from Update after handling an event to keep receiving.
func (l *ContinuousListener[T]) Listen() tea.Cmd {
	return listenCmd(l.ctx, l.ch, l.wrap, l.closed)
}
