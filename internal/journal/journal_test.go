package journal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppendWritesOneJSONLinePerEvent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")
	j := New(path)

	require.NoError(t, j.Append("order_placed", "execute", "trace-1", "span-1", "", nil, map[string]any{"order_id": "ord-1"}))
	require.NoError(t, j.Append("order_filled", "record_fill", "trace-1", "span-2", "span-1", nil, map[string]any{"order_id": "ord-1"}))

	events, err := ReadAll(path)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, "order_placed", events[0].EventType)
	require.Equal(t, "trace-1", events[0].TraceID)
	require.Equal(t, "order_filled", events[1].EventType)
	require.Equal(t, "span-1", events[1].ParentSpanID)
}

func TestAppendCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "journal.jsonl")
	j := New(path)
	require.NoError(t, j.Append("tick", "ingest", "", "", "", nil, nil))

	_, err := os.Stat(path)
	require.NoError(t, err)
}

func TestReadAllOnMissingFileReturnsNilNoError(t *testing.T) {
	events, err := ReadAll(filepath.Join(t.TempDir(), "missing.jsonl"))
	require.NoError(t, err)
	require.Nil(t, events)
}

func TestReadAllTreatsMalformedTrailingLineAsPartial(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")
	j := New(path)
	require.NoError(t, j.Append("order_placed", "execute", "", "", "", nil, nil))

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"event_type":"order_fil`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	events, err := ReadAll(path)
	require.NoError(t, err)
	require.Len(t, events, 1, "a malformed trailing partial line must be skipped, not fail the whole read")
}

func TestReadAllSkipsMalformedMiddleLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("{\"event_type\":\"a\"}\nnot json at all\n{\"event_type\":\"b\"}\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	events, err := ReadAll(path)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, "a", events[0].EventType)
	require.Equal(t, "b", events[1].EventType)
}

func TestAppendTimestampIsUTCISO8601Millis(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")
	j := New(path)
	require.NoError(t, j.Append("tick", "ingest", "", "", "", nil, nil))

	events, err := ReadAll(path)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Regexp(t, `^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}Z$`, events[0].Timestamp)
}
