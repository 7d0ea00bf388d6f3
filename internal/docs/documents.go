// Package docs defines the event-model documents a Run is built from and the
// composers that produce them with consistent uids and sequence numbers.
package docs

import (
	"encoding/json"
	"fmt"
)

// Dimension names the independent-variable fields of a plan and the stream
// they are recorded in. It encodes as [["motor"], "primary"].
type Dimension struct {
	Fields []string
	Stream string
}

// MarshalJSON encodes the dimension as a two-element array.
func (d Dimension) MarshalJSON() ([]byte, error) {
	fields := d.Fields
	if fields == nil {
		fields = []string{}
	}
	return json.Marshal([]any{fields, d.Stream})
}

// UnmarshalJSON decodes a two-element [fields, stream] array.
func (d *Dimension) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("decode dimension: %w", err)
	}
	if len(raw) != 2 {
		return fmt.Errorf("decode dimension: want [fields, stream], got %d elements", len(raw))
	}
	if err := json.Unmarshal(raw[0], &d.Fields); err != nil {
		return fmt.Errorf("decode dimension fields: %w", err)
	}
	if err := json.Unmarshal(raw[1], &d.Stream); err != nil {
		return fmt.Errorf("decode dimension stream: %w", err)
	}
	return nil
}

// StartHints carries plan-level plotting hints.
// A nil Dimensions means the plan gave no hint.
type StartHints struct {
	Dimensions []Dimension `json:"dimensions,omitempty"`
}

// Start opens a run. Metadata keys without a dedicated field are kept in
// Extra and written back at the top level.
type Start struct {
	UID       string         `json:"uid"`
	Time      float64        `json:"time"`
	ScanID    int            `json:"scan_id,omitempty"`
	PlanName  string         `json:"plan_name,omitempty"`
	Motors    []string       `json:"motors,omitempty"`
	NumPoints int            `json:"num_points,omitempty"`
	Hints     StartHints     `json:"hints,omitzero"`
	Extra     map[string]any `json:"-"`
}

var startFields = []string{"uid", "time", "scan_id", "plan_name", "motors", "num_points", "hints"}

type startAlias Start

// MarshalJSON flattens Extra next to the known fields.
func (s Start) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(startAlias(s))
	if err != nil || len(s.Extra) == 0 {
		return base, err
	}
	merged := make(map[string]any, len(s.Extra)+len(startFields))
	for k, v := range s.Extra {
		merged[k] = v
	}
	var known map[string]json.RawMessage
	if err := json.Unmarshal(base, &known); err != nil {
		return nil, err
	}
	for k, v := range known {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// UnmarshalJSON collects unknown keys into Extra.
func (s *Start) UnmarshalJSON(b []byte) error {
	var a startAlias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	for _, k := range startFields {
		delete(raw, k)
	}
	if len(raw) > 0 {
		a.Extra = make(map[string]any, len(raw))
		for k, v := range raw {
			var val any
			if err := json.Unmarshal(v, &val); err != nil {
				return fmt.Errorf("decode start key %q: %w", k, err)
			}
			a.Extra[k] = val
		}
	}
	*s = Start(a)
	return nil
}

// DataKey describes one field of a stream.
type DataKey struct {
	Dtype    string `json:"dtype"`
	Shape    []int  `json:"shape"`
	Source   string `json:"source"`
	External string `json:"external,omitempty"`
}

// ObjectHints lists the interesting fields of one device.
// A nil Fields means the device gave no hint.
type ObjectHints struct {
	Fields []string `json:"fields"`
}

// Descriptor declares a stream of a run.
type Descriptor struct {
	UID           string                 `json:"uid"`
	RunStart      string                 `json:"run_start"`
	Time          float64                `json:"time"`
	Name          string                 `json:"name"`
	DataKeys      map[string]DataKey     `json:"data_keys"`
	ObjectKeys    map[string][]string    `json:"object_keys,omitempty"`
	Hints         map[string]ObjectHints `json:"hints,omitempty"`
	Configuration map[string]any         `json:"configuration,omitempty"`
}

// Event is one row of a stream.
type Event struct {
	UID        string             `json:"uid"`
	Descriptor string             `json:"descriptor"`
	Time       float64            `json:"time"`
	SeqNum     int                `json:"seq_num"`
	Data       map[string]any     `json:"data"`
	Timestamps map[string]float64 `json:"timestamps"`
	Filled     map[string]bool    `json:"filled,omitempty"`
}

// EventPage is a column-oriented batch of events.
type EventPage struct {
	UID        []string             `json:"uid"`
	Descriptor string               `json:"descriptor"`
	Time       []float64            `json:"time"`
	SeqNum     []int                `json:"seq_num"`
	Data       map[string][]any     `json:"data"`
	Timestamps map[string][]float64 `json:"timestamps"`
	Filled     map[string][]bool    `json:"filled,omitempty"`
}

// Len returns the number of events in the page.
func (p EventPage) Len() int {
	return len(p.SeqNum)
}

// Events unpacks the page into row-oriented events.
func (p EventPage) Events() []Event {
	out := make([]Event, p.Len())
	for i := range out {
		ev := Event{
			Descriptor: p.Descriptor,
			SeqNum:     p.SeqNum[i],
			Data:       make(map[string]any, len(p.Data)),
			Timestamps: make(map[string]float64, len(p.Timestamps)),
		}
		if i < len(p.UID) {
			ev.UID = p.UID[i]
		}
		if i < len(p.Time) {
			ev.Time = p.Time[i]
		}
		for k, col := range p.Data {
			if i < len(col) {
				ev.Data[k] = col[i]
			}
		}
		for k, col := range p.Timestamps {
			if i < len(col) {
				ev.Timestamps[k] = col[i]
			}
		}
		out[i] = ev
	}
	return out
}

// Exit statuses a Stop may carry.
const (
	ExitSuccess = "success"
	ExitAbort   = "abort"
	ExitFail    = "fail"
)

// Stop closes a run.
type Stop struct {
	UID        string         `json:"uid"`
	RunStart   string         `json:"run_start"`
	Time       float64        `json:"time"`
	ExitStatus string         `json:"exit_status"`
	Reason     string         `json:"reason"`
	NumEvents  map[string]int `json:"num_events"`
}

// Resource points at externally stored data.
type Resource struct {
	UID            string         `json:"uid"`
	RunStart       string         `json:"run_start,omitempty"`
	Spec           string         `json:"spec"`
	Root           string         `json:"root"`
	ResourcePath   string         `json:"resource_path"`
	ResourceKwargs map[string]any `json:"resource_kwargs"`
	PathSemantics  string         `json:"path_semantics,omitempty"`
}

// Datum addresses one slice of a Resource.
type Datum struct {
	DatumID     string         `json:"datum_id"`
	Resource    string         `json:"resource"`
	DatumKwargs map[string]any `json:"datum_kwargs"`
}
