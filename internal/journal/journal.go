// Package journal implements the append-only JSON-line event log every
// subsystem in the execution core writes to. Writes are mutex-protected and
// never rewrite prior lines; readers must tolerate a partial trailing line
// left by a crash mid-append.
package journal

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kaviarasu301/imperium-exec-core/internal/logger"
)

var log = logger.With("journal")

// Event is one journaled line.
type Event struct {
	EventType      string         `json:"event_type"`
	Timestamp      string         `json:"timestamp"`
	TraceID        string         `json:"trace_id,omitempty"`
	SpanID         string         `json:"span_id,omitempty"`
	ParentSpanID   string         `json:"parent_span_id,omitempty"`
	Operation      string         `json:"operation,omitempty"`
	Tags           map[string]any `json:"tags,omitempty"`
	Payload        map[string]any `json:"payload,omitempty"`
}

// Journal is a durable append-only writer for one file path.
type Journal struct {
	mu   sync.Mutex
	path string
}

// New opens (lazily, on first Append) the journal file at path.
func New(path string) *Journal {
	return &Journal{path: path}
}

// nowUTC formats "now" as UTC ISO-8601 with millisecond precision and an
// explicit Z suffix.
func nowUTC() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
}

// Append writes one event as a single JSON line, creating the parent
// directory if needed and opening the file in append mode.
func (j *Journal) Append(eventType, operation string, traceID, spanID, parentSpanID string, tags, payload map[string]any) error {
	ev := Event{
		EventType:    eventType,
		Timestamp:    nowUTC(),
		TraceID:      traceID,
		SpanID:       spanID,
		ParentSpanID: parentSpanID,
		Operation:    operation,
		Tags:         tags,
		Payload:      payload,
	}
	return j.appendEvent(ev)
}

func (j *Journal) appendEvent(ev Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(j.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	line, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	line = append(line, '\n')
	if _, err := f.Write(line); err != nil {
		log.Error("journal append failed")
		return err
	}
	return nil
}

// ReadAll parses every complete line in the journal file, skipping a
// malformed trailing partial line rather than failing the whole read.
func ReadAll(path string) ([]Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var events []Event
	lines := splitLines(data)
	for i, line := range lines {
		if len(line) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			if i == len(lines)-1 {
				continue // tolerate a partial trailing line
			}
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

func splitLines(data []byte) [][]byte {
	var out [][]byte
	start := 0
	for i, b := range data {
		if b == '\n' {
			out = append(out, data[start:i])
			start = i + 1
		}
	}
	if start < len(data) {
		out = append(out, data[start:])
	}
	return out
}
