package tracing

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewGeneratesFreshTraceAndSpanWithNoParent(t *testing.T) {
	c := New(nil)
	require.NotEmpty(t, c.TraceID)
	require.NotEmpty(t, c.SpanID)
	require.Empty(t, c.ParentSpanID)
	require.NotNil(t, c.Tags)
}

func TestNewTwoContextsHaveDistinctIDs(t *testing.T) {
	a := New(nil)
	b := New(nil)
	require.NotEqual(t, a.TraceID, b.TraceID)
	require.NotEqual(t, a.SpanID, b.SpanID)
}

func TestNextSpanKeepsTraceIDAndChainsParent(t *testing.T) {
	root := New(map[string]any{"symbol": "NIFTY"})
	child := root.NextSpan()

	require.Equal(t, root.TraceID, child.TraceID)
	require.Equal(t, root.SpanID, child.ParentSpanID)
	require.NotEqual(t, root.SpanID, child.SpanID)
	require.Equal(t, root.Tags, child.Tags)
}

func TestNextSpanChainsAcrossGenerations(t *testing.T) {
	root := New(nil)
	mid := root.NextSpan()
	leaf := mid.NextSpan()

	require.Equal(t, root.TraceID, leaf.TraceID)
	require.Equal(t, mid.SpanID, leaf.ParentSpanID)
}
