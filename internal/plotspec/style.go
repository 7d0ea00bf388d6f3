package plotspec

import (
	"fmt"
	"maps"
	"reflect"

	"github.com/zjrosen/skywidgets/internal/evented"
)

// StyleUpdate lists the keys whose values changed.
type StyleUpdate struct {
	Changes map[string]any
}

// Style is an update-only mapping of rendering options (color, linestyle).
// Keys can be added or changed but never removed.
type Style struct {
	values map[string]any

	Updated evented.Signal[StyleUpdate]
}

// NewStyle copies initial.
func NewStyle(initial map[string]any) *Style {
	s := &Style{values: make(map[string]any, len(initial))}
	maps.Copy(s.values, initial)
	return s
}

// Get returns one value.
func (s *Style) Get(key string) (any, bool) {
	v, ok := s.values[key]
	return v, ok
}

// String returns a value formatted as a string, or "".
func (s *Style) String(key string) string {
	v, ok := s.values[key]
	if !ok {
		return ""
	}
	if str, ok := v.(string); ok {
		return str
	}
	return fmt.Sprint(v)
}

// Values returns a copy of every key.
func (s *Style) Values() map[string]any {
	return maps.Clone(s.values)
}

// Update applies changes and emits Updated with the keys that actually changed.
func (s *Style) Update(changes map[string]any) {
	changed := make(map[string]any)
	for k, v := range changes {
		if old, ok := s.values[k]; ok && reflect.DeepEqual(old, v) {
			continue
		}
		s.values[k] = v
		changed[k] = v
	}
	if len(changed) > 0 {
		s.Updated.Emit(StyleUpdate{Changes: changed})
	}
}
