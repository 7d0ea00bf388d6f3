package run

import (
	"context"
	"errors"
	"fmt"

	"github.com/zjrosen/skywidgets/internal/docs"
	"github.com/zjrosen/skywidgets/internal/log"
)

// ErrUnknownRun is returned for documents whose run was never started here,
// typically because the feed was joined mid-run.
var ErrUnknownRun = errors.New("document for unknown run")

// Router assembles a mixed document feed into DocumentRuns and appends each
// new run to Runs as soon as its start document arrives.
type Router struct {
	Runs *List

	runs        map[string]*DocumentRun
	descriptors map[string]string
	resources   map[string]string
	cache       *ReadCache
}

// NewRouter routes into runs, creating a list when runs is nil.
func NewRouter(runs *List) *Router {
	if runs == nil {
		runs = NewList()
	}
	return &Router{
		Runs:        runs,
		runs:        make(map[string]*DocumentRun),
		descriptors: make(map[string]string),
		resources:   make(map[string]string),
		cache:       NewReadCache(readTTL),
	}
}

// Run returns an assembled run by uid.
func (r *Router) Run(uid string) (*DocumentRun, bool) {
	dr, ok := r.runs[uid]
	return dr, ok
}

// Ingest routes one document.
func (r *Router) Ingest(doc docs.Document) error {
	if start, ok := doc.Body.(docs.Start); ok {
		if _, dup := r.runs[start.UID]; dup {
			log.Warn(log.CatRun, "duplicate start document ignored", "run", start.UID)
			return nil
		}
		dr := NewDocumentRun(start, WithReadCache(r.cache))
		r.runs[start.UID] = dr
		log.Debug(log.CatRun, "run started", "run", start.UID, "scan_id", start.ScanID)
		r.Runs.Append(dr)
		return nil
	}

	uid, err := r.owner(doc)
	if err != nil {
		return err
	}
	dr, ok := r.runs[uid]
	if !ok {
		return fmt.Errorf("%w: %s document for %s", ErrUnknownRun, doc.Name, uid)
	}

	switch body := doc.Body.(type) {
	case docs.Descriptor:
		r.descriptors[body.UID] = uid
	case docs.Resource:
		r.resources[body.UID] = uid
	}
	return dr.Ingest(doc)
}

func (r *Router) owner(doc docs.Document) (string, error) {
	key := doc.Key()
	switch doc.Name {
	case docs.NameEvent, docs.NameEventPage:
		uid, ok := r.descriptors[key]
		if !ok {
			return "", fmt.Errorf("%w: descriptor %s", ErrUnknownRun, key)
		}
		return uid, nil
	case docs.NameDatum:
		uid, ok := r.resources[key]
		if !ok {
			return "", fmt.Errorf("%w: resource %s", ErrUnknownRun, key)
		}
		return uid, nil
	default:
		return key, nil
	}
}

// Forget drops a run from the routing tables and evicts its cached reads.
// The run stays in Runs; removing it there is the caller's decision.
func (r *Router) Forget(uid string) {
	if _, ok := r.runs[uid]; !ok {
		return
	}
	delete(r.runs, uid)
	for d, owner := range r.descriptors {
		if owner == uid {
			delete(r.descriptors, d)
		}
	}
	for res, owner := range r.resources {
		if owner == uid {
			delete(r.resources, res)
		}
	}
	r.cache.DeletePrefix(context.Background(), uid+"/")
}
