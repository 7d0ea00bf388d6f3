package docs

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrRunClosed is returned when composing into a run that already has a stop document.
	ErrRunClosed = errors.New("run already stopped")
	// ErrKeysMismatch is returned when event data keys differ from the descriptor's data keys.
	ErrKeysMismatch = errors.New("event keys do not match descriptor data keys")
	// ErrStreamExists is returned when a stream name is declared twice.
	ErrStreamExists = errors.New("stream already declared")
	// ErrBadExitStatus is returned for exit statuses other than success, abort or fail.
	ErrBadExitStatus = errors.New("invalid exit status")
	// ErrRaggedPage is returned when event page columns differ in length.
	ErrRaggedPage = errors.New("event page columns differ in length")
)

// Clock returns the current time. Tests substitute a fixed clock.
type Clock func() time.Time

func epoch(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// RunOption configures ComposeRun.
type RunOption func(*RunBundle)

// WithClock sets the clock used to stamp every document of the run.
func WithClock(c Clock) RunOption {
	return func(b *RunBundle) { b.clock = c }
}

// RunBundle composes the documents of one run.
type RunBundle struct {
	Start Start

	clock     Clock
	streams   map[string]*DescriptorBundle
	numEvents map[string]int
	stopped   bool
}

// ComposeRun stamps start with a uid (unless set) and time and returns a
// bundle for composing the rest of the run.
func ComposeRun(start Start, opts ...RunOption) *RunBundle {
	b := &RunBundle{
		clock:     time.Now,
		streams:   make(map[string]*DescriptorBundle),
		numEvents: make(map[string]int),
	}
	for _, opt := range opts {
		opt(b)
	}
	if start.UID == "" {
		start.UID = uuid.New().String()
	}
	if start.Time == 0 {
		start.Time = epoch(b.clock())
	}
	b.Start = start
	return b
}

// ComposeDescriptor declares a stream. UID, RunStart and Time are filled in.
func (b *RunBundle) ComposeDescriptor(d Descriptor) (*DescriptorBundle, error) {
	if b.stopped {
		return nil, ErrRunClosed
	}
	if d.Name == "" {
		d.Name = "primary"
	}
	if _, ok := b.streams[d.Name]; ok {
		return nil, fmt.Errorf("%w: %s", ErrStreamExists, d.Name)
	}
	d.UID = uuid.New().String()
	d.RunStart = b.Start.UID
	d.Time = epoch(b.clock())
	if d.ObjectKeys == nil {
		d.ObjectKeys = make(map[string][]string, len(d.DataKeys))
		for _, k := range slices.Sorted(maps.Keys(d.DataKeys)) {
			d.ObjectKeys[k] = []string{k}
		}
	}
	db := &DescriptorBundle{Descriptor: d, run: b}
	b.streams[d.Name] = db
	b.numEvents[d.Name] = 0
	return db, nil
}

// ComposeResource registers an external resource of the run.
func (b *RunBundle) ComposeResource(r Resource) (*ResourceBundle, error) {
	if b.stopped {
		return nil, ErrRunClosed
	}
	if r.UID == "" {
		r.UID = uuid.New().String()
	}
	r.RunStart = b.Start.UID
	if r.ResourceKwargs == nil {
		r.ResourceKwargs = map[string]any{}
	}
	if r.PathSemantics == "" {
		r.PathSemantics = "posix"
	}
	return &ResourceBundle{Resource: r}, nil
}

// ComposeStop closes the run. Only one stop may be composed.
func (b *RunBundle) ComposeStop(exitStatus, reason string) (Stop, error) {
	if b.stopped {
		return Stop{}, ErrRunClosed
	}
	switch exitStatus {
	case ExitSuccess, ExitAbort, ExitFail:
	default:
		return Stop{}, fmt.Errorf("%w: %q", ErrBadExitStatus, exitStatus)
	}
	b.stopped = true
	return Stop{
		UID:        uuid.New().String(),
		RunStart:   b.Start.UID,
		Time:       epoch(b.clock()),
		ExitStatus: exitStatus,
		Reason:     reason,
		NumEvents:  maps.Clone(b.numEvents),
	}, nil
}

// DescriptorBundle composes the events of one stream.
type DescriptorBundle struct {
	Descriptor Descriptor

	run *RunBundle
	seq int
}

func (d *DescriptorBundle) checkKeys(keys []string) error {
	if len(keys) != len(d.Descriptor.DataKeys) {
		return fmt.Errorf("%w: got %v", ErrKeysMismatch, keys)
	}
	for _, k := range keys {
		if _, ok := d.Descriptor.DataKeys[k]; !ok {
			return fmt.Errorf("%w: unexpected %q", ErrKeysMismatch, k)
		}
	}
	return nil
}

// ComposeEvent composes the next event of the stream. Missing timestamps
// default to the event time.
func (d *DescriptorBundle) ComposeEvent(data map[string]any, timestamps map[string]float64) (Event, error) {
	if d.run.stopped {
		return Event{}, ErrRunClosed
	}
	if err := d.checkKeys(slices.Collect(maps.Keys(data))); err != nil {
		return Event{}, err
	}
	now := epoch(d.run.clock())
	ts := make(map[string]float64, len(data))
	for k := range data {
		if v, ok := timestamps[k]; ok {
			ts[k] = v
		} else {
			ts[k] = now
		}
	}
	d.seq++
	d.run.numEvents[d.Descriptor.Name]++
	return Event{
		UID:        uuid.New().String(),
		Descriptor: d.Descriptor.UID,
		Time:       now,
		SeqNum:     d.seq,
		Data:       maps.Clone(data),
		Timestamps: ts,
	}, nil
}

// ComposeEventPage composes a page of consecutive events. Every data column
// must have the same length; missing timestamp columns default to the page
// time.
func (d *DescriptorBundle) ComposeEventPage(data map[string][]any, timestamps map[string][]float64) (EventPage, error) {
	if d.run.stopped {
		return EventPage{}, ErrRunClosed
	}
	if err := d.checkKeys(slices.Collect(maps.Keys(data))); err != nil {
		return EventPage{}, err
	}
	n := -1
	for k, col := range data {
		if n >= 0 && len(col) != n {
			return EventPage{}, fmt.Errorf("%w: %q has %d rows, want %d", ErrRaggedPage, k, len(col), n)
		}
		n = len(col)
	}
	if n < 0 {
		n = 0
	}
	now := epoch(d.run.clock())
	page := EventPage{
		Descriptor: d.Descriptor.UID,
		UID:        make([]string, n),
		Time:       make([]float64, n),
		SeqNum:     make([]int, n),
		Data:       make(map[string][]any, len(data)),
		Timestamps: make(map[string][]float64, len(data)),
	}
	for i := 0; i < n; i++ {
		d.seq++
		page.UID[i] = uuid.New().String()
		page.Time[i] = now
		page.SeqNum[i] = d.seq
	}
	for k, col := range data {
		page.Data[k] = slices.Clone(col)
		ts, ok := timestamps[k]
		if !ok || len(ts) != n {
			ts = make([]float64, n)
			for i := range ts {
				ts[i] = now
			}
		}
		page.Timestamps[k] = slices.Clone(ts)
	}
	d.run.numEvents[d.Descriptor.Name] += n
	return page, nil
}

// ResourceBundle composes datums of one resource.
type ResourceBundle struct {
	Resource Resource

	counter int
}

// ComposeDatum composes the next datum, with id "<resource uid>/<n>".
func (r *ResourceBundle) ComposeDatum(kwargs map[string]any) Datum {
	id := fmt.Sprintf("%s/%d", r.Resource.UID, r.counter)
	r.counter++
	if kwargs == nil {
		kwargs = map[string]any{}
	}
	return Datum{
		DatumID:     id,
		Resource:    r.Resource.UID,
		DatumKwargs: kwargs,
	}
}
