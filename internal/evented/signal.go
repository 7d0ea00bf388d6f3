// Package evented provides synchronous observer primitives: a typed Signal
// and an observable List that reports insertions and removals.
//
// Handlers run on the emitting goroutine, in connection order, before Emit
// returns. Nothing here is safe for concurrent use; owners serialise access.
package evented

// Subscription identifies one connected handler.
type Subscription uint64

type slot[E any] struct {
	id      Subscription
	fn      func(E)
	once    bool
	dropped bool
}

// Signal fans a value out to connected handlers.
// The zero value is ready to use.
type Signal[E any] struct {
	next  Subscription
	slots []*slot[E]
}

// Connect registers fn and returns its subscription.
func (s *Signal[E]) Connect(fn func(E)) Subscription {
	return s.connect(fn, false)
}

// ConnectOnce registers fn to run for the next emission only.
func (s *Signal[E]) ConnectOnce(fn func(E)) Subscription {
	return s.connect(fn, true)
}

func (s *Signal[E]) connect(fn func(E), once bool) Subscription {
	s.next++
	s.slots = append(s.slots, &slot[E]{id: s.next, fn: fn, once: once})
	return s.next
}

// Disconnect removes a handler. It reports whether the subscription was live.
func (s *Signal[E]) Disconnect(id Subscription) bool {
	for i, sl := range s.slots {
		if sl.id == id {
			sl.dropped = true
			s.slots = append(s.slots[:i:i], s.slots[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of connected handlers.
func (s *Signal[E]) Len() int {
	return len(s.slots)
}

// Emit calls every handler connected when Emit starts. Handlers disconnected
// during the emission are skipped; handlers connected during it wait for the
// next one.
func (s *Signal[E]) Emit(v E) {
	if len(s.slots) == 0 {
		return
	}
	snapshot := make([]*slot[E], len(s.slots))
	copy(snapshot, s.slots)
	for _, sl := range snapshot {
		if sl.dropped {
			continue
		}
		if sl.once {
			s.Disconnect(sl.id)
		}
		sl.fn(v)
	}
}
