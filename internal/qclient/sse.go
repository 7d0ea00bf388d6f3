package qclient

import (
	"bufio"
	"io"
	"strings"
)

// SSEEvent is one server-sent event. Multi-line data is joined with "\n".
type SSEEvent struct {
	Type string
	Data string
}

// SSEScanner splits a text/event-stream body into events. Comments, id and
// retry fields are dropped.
type SSEScanner struct {
	lines *bufio.Scanner
	event SSEEvent
	done  bool
}

// NewSSEScanner reads events from r.
func NewSSEScanner(r io.Reader) *SSEScanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	return &SSEScanner{lines: sc}
}

// Next advances to the next event with data. A final event without a
// trailing blank line is still returned.
func (s *SSEScanner) Next() bool {
	if s.done {
		return false
	}
	var typ string
	var data []string
	for s.lines.Scan() {
		line := strings.TrimSuffix(s.lines.Text(), "\r")
		if line == "" {
			if data != nil {
				s.event = SSEEvent{Type: typ, Data: strings.Join(data, "\n")}
				return true
			}
			typ = ""
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			typ = value
		case "data":
			data = append(data, value)
		}
	}
	s.done = true
	if data != nil {
		s.event = SSEEvent{Type: typ, Data: strings.Join(data, "\n")}
		return true
	}
	return false
}

// Event returns the event found by the last call to Next.
func (s *SSEScanner) Event() SSEEvent { return s.event }

// Err returns the read error, nil at a clean end of stream.
func (s *SSEScanner) Err() error { return s.lines.Err() }
