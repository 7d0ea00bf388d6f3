package run

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/zjrosen/skywidgets/internal/cachemanager"
	"github.com/zjrosen/skywidgets/internal/docs"
	"github.com/zjrosen/skywidgets/internal/log"
)

var (
	// ErrWrongRun is returned when a document belongs to another run.
	ErrWrongRun = errors.New("document belongs to another run")
	// ErrUnknownDescriptor is returned for events whose descriptor was never seen.
	ErrUnknownDescriptor = errors.New("unknown descriptor")
	// ErrAlreadyStopped is returned when a second stop document arrives.
	ErrAlreadyStopped = errors.New("run already stopped")
)

// ReadCache memoises stream reads. Keys are "<run uid>/<stream>/<event count>".
type ReadCache = cachemanager.InMemoryCacheManager[string, Dataset]

// NewReadCache returns a read cache with the given expiry.
func NewReadCache(ttl time.Duration) *ReadCache {
	return cachemanager.NewInMemoryCacheManager[string, Dataset]("stream-reads", ttl, cachemanager.DefaultCleanupInterval)
}

const readTTL = 5 * time.Minute

// DocumentRun is a Run assembled from event-model documents.
//
// Ingest must be called from one goroutine; signals fire on it. Reads may
// happen concurrently with Ingest.
type DocumentRun struct {
	mu          sync.RWMutex
	start       docs.Start
	stop        *docs.Stop
	streams     map[string]*documentStream
	order       []string
	descriptors map[string]*documentStream
	resources   map[string]docs.Resource
	datums      map[string]docs.Datum

	events *Events
	reads  *cachemanager.ReadThroughCache[string, Dataset, readInput]
	cache  *ReadCache
}

// Option configures a DocumentRun.
type Option func(*DocumentRun)

// WithReadCache shares a read cache between runs.
func WithReadCache(c *ReadCache) Option {
	return func(r *DocumentRun) { r.cache = c }
}

// Frozen marks the run as unable to change: Events returns nil.
func Frozen() Option {
	return func(r *DocumentRun) { r.events = nil }
}

// NewDocumentRun starts a run from its start document.
func NewDocumentRun(start docs.Start, opts ...Option) *DocumentRun {
	r := &DocumentRun{
		start:       start,
		streams:     make(map[string]*documentStream),
		descriptors: make(map[string]*documentStream),
		resources:   make(map[string]docs.Resource),
		datums:      make(map[string]docs.Datum),
		events:      &Events{},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cache == nil {
		r.cache = NewReadCache(readTTL)
	}
	r.reads = cachemanager.NewReadThroughCache[string, Dataset, readInput](r.cache, readRows, false)
	return r
}

// UID returns the run uid.
func (r *DocumentRun) UID() string {
	return r.start.UID
}

// Metadata returns copies of the start and stop documents.
func (r *DocumentRun) Metadata() Metadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	md := Metadata{Start: r.start}
	if r.stop != nil {
		stop := *r.stop
		md.Stop = &stop
	}
	return md
}

// Has reports whether the stream exists.
func (r *DocumentRun) Has(stream string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.streams[stream]
	return ok
}

// StreamNames lists streams in arrival order.
func (r *DocumentRun) StreamNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// Stream returns the named stream.
func (r *DocumentRun) Stream(name string) (Stream, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.streams[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q in run %s", ErrNoStream, name, r.start.UID)
	}
	return s, nil
}

// Events returns the lifecycle signals, or nil for frozen runs.
func (r *DocumentRun) Events() *Events {
	return r.events
}

// Resources returns the resources registered so far, keyed by uid.
func (r *DocumentRun) Resources() map[string]docs.Resource {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.resources)
}

// Ingest applies one document. A descriptor for a new stream emits
// NewStream; a stop emits Completed.
func (r *DocumentRun) Ingest(doc docs.Document) error {
	switch body := doc.Body.(type) {
	case docs.Start:
		if body.UID != r.start.UID {
			return fmt.Errorf("%w: start %s into %s", ErrWrongRun, body.UID, r.start.UID)
		}
		return nil
	case docs.Descriptor:
		return r.addDescriptor(body)
	case docs.Event:
		return r.addEvents(body.Descriptor, body)
	case docs.EventPage:
		return r.addEvents(body.Descriptor, body.Events()...)
	case docs.Stop:
		return r.finish(body)
	case docs.Resource:
		if body.RunStart != "" && body.RunStart != r.start.UID {
			return fmt.Errorf("%w: resource %s", ErrWrongRun, body.UID)
		}
		r.mu.Lock()
		r.resources[body.UID] = body
		r.mu.Unlock()
		return nil
	case docs.Datum:
		r.mu.Lock()
		r.datums[body.DatumID] = body
		r.mu.Unlock()
		return nil
	default:
		return fmt.Errorf("%w: %T", docs.ErrUnknownName, doc.Body)
	}
}

func (r *DocumentRun) addDescriptor(d docs.Descriptor) error {
	if d.RunStart != r.start.UID {
		return fmt.Errorf("%w: descriptor %s for run %s", ErrWrongRun, d.UID, d.RunStart)
	}
	name := d.Name
	if name == "" {
		name = "primary"
	}

	r.mu.Lock()
	s, exists := r.streams[name]
	if !exists {
		s = &documentStream{run: r, name: name}
		r.streams[name] = s
		r.order = append(r.order, name)
	}
	s.descriptors = append(s.descriptors, d)
	r.descriptors[d.UID] = s
	r.mu.Unlock()

	if !exists {
		log.Debug(log.CatRun, "new stream", "run", r.start.UID, "stream", name)
		if r.events != nil {
			r.events.NewStream.Emit(StreamEvent{Run: r, Name: name})
		}
	}
	return nil
}

func (r *DocumentRun) addEvents(descriptor string, events ...docs.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.descriptors[descriptor]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDescriptor, descriptor)
	}
	s.rows = append(s.rows, events...)
	return nil
}

func (r *DocumentRun) finish(stop docs.Stop) error {
	if stop.RunStart != r.start.UID {
		return fmt.Errorf("%w: stop for run %s", ErrWrongRun, stop.RunStart)
	}
	r.mu.Lock()
	if r.stop != nil {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyStopped, r.start.UID)
	}
	r.stop = &stop
	r.mu.Unlock()

	log.Debug(log.CatRun, "run completed", "run", r.start.UID, "exit_status", stop.ExitStatus)
	if r.events != nil {
		r.events.Completed.Emit(CompletedEvent{Run: r})
	}
	return nil
}

type documentStream struct {
	run         *DocumentRun
	name        string
	descriptors []docs.Descriptor
	rows        []docs.Event
}

type readInput struct {
	descriptors []docs.Descriptor
	rows        []docs.Event
}

func (s *documentStream) Name() string {
	return s.name
}

func (s *documentStream) Descriptors() []docs.Descriptor {
	s.run.mu.RLock()
	defer s.run.mu.RUnlock()
	return slices.Clone(s.descriptors)
}

// Read stacks every event received so far. Results are cached per event
// count, so a read after new events arrive sees them.
func (s *documentStream) Read(ctx context.Context) (Dataset, error) {
	s.run.mu.RLock()
	in := readInput{
		descriptors: slices.Clone(s.descriptors),
		rows:        s.rows[:len(s.rows):len(s.rows)],
	}
	s.run.mu.RUnlock()

	key := fmt.Sprintf("%s/%s/%d", s.run.start.UID, s.name, len(in.rows))
	return s.run.reads.Get(ctx, key, in, readTTL)
}

func plottable(k docs.DataKey) bool {
	if k.External != "" {
		return false
	}
	switch k.Dtype {
	case "number", "integer", "boolean", "array":
		return true
	default:
		return false
	}
}

func readRows(ctx context.Context, in readInput) (Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	keys := make(map[string]docs.DataKey)
	for _, d := range in.descriptors {
		for name, k := range d.DataKeys {
			keys[name] = k
		}
	}

	ds := make(Dataset, len(keys)+2)
	times := make([]float64, len(in.rows))
	seq := make([]float64, len(in.rows))
	for i, ev := range in.rows {
		times[i] = ev.Time
		seq[i] = float64(ev.SeqNum)
	}
	ds["time"] = Vector(times...)
	ds["seq_num"] = Vector(seq...)

	for name, k := range keys {
		if !plottable(k) {
			continue
		}
		cells := make([]Array, 0, len(in.rows))
		for _, ev := range in.rows {
			v, ok := ev.Data[name]
			if !ok {
				return nil, fmt.Errorf("event %d lacks field %q: %w", ev.SeqNum, name, ErrShape)
			}
			a, err := FromValue(v)
			if err != nil {
				return nil, fmt.Errorf("field %q of event %d: %w", name, ev.SeqNum, err)
			}
			cells = append(cells, a)
		}
		stacked, err := Stack(cells)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		if len(cells) == 0 {
			stacked.Shape = append([]int{0}, k.Shape...)
		}
		ds[name] = stacked
	}
	return ds, nil
}
