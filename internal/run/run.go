// Package run models Bluesky Runs: metadata, named streams with lazy reads,
// and the lifecycle signals (new stream, completed) plot builders react to.
package run

import (
	"context"
	"errors"
	"fmt"

	"github.com/zjrosen/skywidgets/internal/docs"
	"github.com/zjrosen/skywidgets/internal/evented"
)

var (
	// ErrNoStream is returned when a run has no stream of the requested name.
	ErrNoStream = errors.New("no such stream")
	// ErrNoField is returned when a dataset lacks a requested field.
	ErrNoField = errors.New("no such field")
)

// Metadata holds the start document and, once the run finished, the stop document.
type Metadata struct {
	Start docs.Start
	Stop  *docs.Stop
}

// Dataset maps field names to stacked arrays, leading axis = event.
type Dataset map[string]Array

// Field returns the array of one field.
func (d Dataset) Field(name string) (Array, error) {
	a, ok := d[name]
	if !ok {
		return Array{}, fmt.Errorf("%w: %q", ErrNoField, name)
	}
	return a, nil
}

// Stream is a named, time-ordered table of a run.
type Stream interface {
	Name() string
	Descriptors() []docs.Descriptor
	Read(ctx context.Context) (Dataset, error)
}

// StreamEvent reports a stream that appeared on a live run.
type StreamEvent struct {
	Run  Run
	Name string
}

// CompletedEvent reports that a live run received its stop document.
type CompletedEvent struct {
	Run Run
}

// Events are the lifecycle signals of a live run.
type Events struct {
	NewStream evented.Signal[StreamEvent]
	Completed evented.Signal[CompletedEvent]
}

// Run is one data-acquisition session, possibly still in progress.
type Run interface {
	UID() string
	Metadata() Metadata
	Has(stream string) bool
	StreamNames() []string
	Stream(name string) (Stream, error)
	// Events returns nil for runs that can no longer change.
	Events() *Events
}

// IsLiveAndNotCompleted reports whether r may still grow and has not stopped.
func IsLiveAndNotCompleted(r Run) bool {
	return r.Events() != nil && r.Metadata().Stop == nil
}

// ScanID returns the scan id from the start document.
func ScanID(r Run) int {
	return r.Metadata().Start.ScanID
}

// SameRun reports whether a and b have the same uid.
func SameRun(a, b Run) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.UID() == b.UID()
}

// List is an observable list of runs matched by uid.
type List = evented.List[Run]

// NewList returns a run list.
func NewList(runs ...Run) *List {
	return evented.NewListFunc(SameRun, runs...)
}
