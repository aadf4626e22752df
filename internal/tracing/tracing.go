// Package tracing threads trace/span identifiers through journal events,
// generated the same way original_source used uuid4().hex: opaque hex
// strings with no embedded structure.
package tracing

import "github.com/google/uuid"

// Context carries the identifiers every journal event is tagged with.
type Context struct {
	TraceID      string
	SpanID       string
	ParentSpanID string
	Tags         map[string]any
}

func newHexID() string {
	return uuid.New().String()
}

// New starts a fresh trace with a freshly generated trace_id and span_id
// and no parent.
func New(tags map[string]any) Context {
	if tags == nil {
		tags = map[string]any{}
	}
	return Context{
		TraceID: newHexID(),
		SpanID:  newHexID(),
		Tags:    tags,
	}
}

// NextSpan derives a child span: the trace_id is stable, a fresh span_id is
// generated, and parent_span_id becomes the caller's span_id.
func (c Context) NextSpan() Context {
	return Context{
		TraceID:      c.TraceID,
		SpanID:       newHexID(),
		ParentSpanID: c.SpanID,
		Tags:         c.Tags,
	}
}
