package run

import (
	"fmt"
	"maps"
	"slices"

	"github.com/zjrosen/skywidgets/internal/docs"
)

// Builder composes documents and feeds them into a live DocumentRun, for
// tests and demos that need a run to grow step by step.
type Builder struct {
	bundle  *docs.RunBundle
	run     *DocumentRun
	streams map[string]*docs.DescriptorBundle
	emitted []docs.Document
}

// NewBuilder starts a live run.
func NewBuilder(start docs.Start, opts ...docs.RunOption) *Builder {
	bundle := docs.ComposeRun(start, opts...)
	b := &Builder{
		bundle:  bundle,
		run:     NewDocumentRun(bundle.Start),
		streams: make(map[string]*docs.DescriptorBundle),
	}
	b.emitted = append(b.emitted, docs.MustNew(bundle.Start))
	return b
}

// Run returns the run being built.
func (b *Builder) Run() *DocumentRun {
	return b.run
}

// Documents returns every document produced so far.
func (b *Builder) Documents() []docs.Document {
	return slices.Clone(b.emitted)
}

func (b *Builder) ingest(body any) error {
	doc := docs.MustNew(body)
	b.emitted = append(b.emitted, doc)
	return b.run.Ingest(doc)
}

// AddStream declares a stream. Nil hints means no object hints.
func (b *Builder) AddStream(name string, keys map[string]docs.DataKey, hints map[string]docs.ObjectHints) error {
	return b.AddDescriptor(docs.Descriptor{Name: name, DataKeys: keys, Hints: hints})
}

// AddDescriptor declares a stream from a partial descriptor, for callers
// that need object keys.
func (b *Builder) AddDescriptor(d docs.Descriptor) error {
	db, err := b.bundle.ComposeDescriptor(d)
	if err != nil {
		return err
	}
	b.streams[db.Descriptor.Name] = db
	return b.ingest(db.Descriptor)
}

// AddData appends rows to a declared stream as one event page.
func (b *Builder) AddData(name string, data map[string][]any) error {
	db, ok := b.streams[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNoStream, name)
	}
	page, err := db.ComposeEventPage(data, nil)
	if err != nil {
		return err
	}
	return b.ingest(page)
}

// Close stops the run.
func (b *Builder) Close(exitStatus string) error {
	stop, err := b.bundle.ComposeStop(exitStatus, "")
	if err != nil {
		return err
	}
	return b.ingest(stop)
}

// NumberKeys declares every name as a scalar number field.
func NumberKeys(names ...string) map[string]docs.DataKey {
	keys := make(map[string]docs.DataKey, len(names))
	for _, n := range names {
		keys[n] = docs.DataKey{Dtype: "number", Shape: []int{}, Source: "simulated"}
	}
	return keys
}

// BuildSimpleRun returns a completed run whose "primary" stream holds the
// given numeric columns.
func BuildSimpleRun(columns map[string][]float64, start docs.Start, opts ...docs.RunOption) (*DocumentRun, error) {
	b := NewBuilder(start, opts...)
	names := slices.Sorted(maps.Keys(columns))
	if err := b.AddStream("primary", NumberKeys(names...), nil); err != nil {
		return nil, err
	}
	data := make(map[string][]any, len(columns))
	for name, col := range columns {
		cells := make([]any, len(col))
		for i, v := range col {
			cells[i] = v
		}
		data[name] = cells
	}
	if len(data) > 0 {
		if err := b.AddData("primary", data); err != nil {
			return nil, err
		}
	}
	if err := b.Close(docs.ExitSuccess); err != nil {
		return nil, err
	}
	return b.Run(), nil
}
