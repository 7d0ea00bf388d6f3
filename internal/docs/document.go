package docs

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Name identifies the kind of a document.
type Name string

const (
	NameStart      Name = "start"
	NameDescriptor Name = "descriptor"
	NameEvent      Name = "event"
	NameEventPage  Name = "event_page"
	NameStop       Name = "stop"
	NameResource   Name = "resource"
	NameDatum      Name = "datum"
)

// ErrUnknownName is returned when decoding a document of an unknown kind.
var ErrUnknownName = errors.New("unknown document name")

// Document is a (name, doc) pair. Body holds one of Start, Descriptor, Event,
// EventPage, Stop, Resource or Datum by value.
type Document struct {
	Name Name
	Body any
}

type envelope struct {
	Name Name            `json:"name"`
	Doc  json.RawMessage `json:"doc"`
}

// New wraps a document body, deriving its name from the body's type.
func New(body any) (Document, error) {
	var name Name
	switch body.(type) {
	case Start:
		name = NameStart
	case Descriptor:
		name = NameDescriptor
	case Event:
		name = NameEvent
	case EventPage:
		name = NameEventPage
	case Stop:
		name = NameStop
	case Resource:
		name = NameResource
	case Datum:
		name = NameDatum
	default:
		return Document{}, fmt.Errorf("%w: body of type %T", ErrUnknownName, body)
	}
	return Document{Name: name, Body: body}, nil
}

// MustNew is New for bodies whose type is known at compile time.
func MustNew(body any) Document {
	d, err := New(body)
	if err != nil {
		panic(err)
	}
	return d
}

// MarshalJSON encodes the document as {"name": ..., "doc": ...}.
func (d Document) MarshalJSON() ([]byte, error) {
	body, err := json.Marshal(d.Body)
	if err != nil {
		return nil, fmt.Errorf("encode %s document: %w", d.Name, err)
	}
	return json.Marshal(envelope{Name: d.Name, Doc: body})
}

// UnmarshalJSON decodes the envelope and the typed body.
func (d *Document) UnmarshalJSON(b []byte) error {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return fmt.Errorf("decode document envelope: %w", err)
	}
	body, err := decodeBody(env.Name, env.Doc)
	if err != nil {
		return err
	}
	d.Name = env.Name
	d.Body = body
	return nil
}

func decodeBody(name Name, raw json.RawMessage) (any, error) {
	var (
		body any
		err  error
	)
	switch name {
	case NameStart:
		var v Start
		err = json.Unmarshal(raw, &v)
		body = v
	case NameDescriptor:
		var v Descriptor
		err = json.Unmarshal(raw, &v)
		body = v
	case NameEvent:
		var v Event
		err = json.Unmarshal(raw, &v)
		body = v
	case NameEventPage:
		var v EventPage
		err = json.Unmarshal(raw, &v)
		body = v
	case NameStop:
		var v Stop
		err = json.Unmarshal(raw, &v)
		body = v
	case NameResource:
		var v Resource
		err = json.Unmarshal(raw, &v)
		body = v
	case NameDatum:
		var v Datum
		err = json.Unmarshal(raw, &v)
		body = v
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownName, name)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s document: %w", name, err)
	}
	return body, nil
}

// Key returns the uid a router needs to place the document: the run uid for
// start, descriptor, stop and resource documents, the descriptor uid for
// events and event pages, the resource uid for datums.
func (d Document) Key() string {
	switch b := d.Body.(type) {
	case Start:
		return b.UID
	case Descriptor:
		return b.RunStart
	case Stop:
		return b.RunStart
	case Resource:
		return b.RunStart
	case Event:
		return b.Descriptor
	case EventPage:
		return b.Descriptor
	case Datum:
		return b.Resource
	default:
		return ""
	}
}
