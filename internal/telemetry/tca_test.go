package telemetry

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kaviarasu301/imperium-exec-core/internal/journal"
)

func TestGenerateComputesFillAndRejectRates(t *testing.T) {
	dir := t.TempDir()
	journalPath := filepath.Join(dir, "journal.jsonl")
	j := journal.New(journalPath)

	require.NoError(t, j.Append("order_placed", "execute", "", "", "", nil, map[string]any{"latency_ms": 50.0, "expected_slippage": 0.5}))
	require.NoError(t, j.Append("order_placed", "execute", "", "", "", nil, map[string]any{"latency_ms": 150.0, "expected_slippage": -0.2}))
	require.NoError(t, j.Append("order_fill", "record_fill", "", "", "", nil, map[string]any{"status": "COMPLETE"}))
	require.NoError(t, j.Append("order_rejected", "execute", "", "", "", nil, nil))
	require.NoError(t, j.Append("incident", "detector", "", "", "", nil, map[string]any{"kind": "stuck_order"}))

	r := NewTCAReporter(journalPath, filepath.Join(dir, "tca.json"))
	report, err := r.Generate()
	require.NoError(t, err)

	require.Equal(t, 2, report.OrdersPlaced)
	require.Equal(t, 1, report.OrdersFilled)
	require.Equal(t, 1, report.OrdersRejected)
	require.InDelta(t, 50.0, report.FillRatePct, 1e-9)
	require.InDelta(t, 50.0, report.RejectRatePct, 1e-9)
	require.InDelta(t, 100.0, report.AvgLatencyMs, 1e-9)
	require.Equal(t, 1, report.TotalIncidents)
	require.Equal(t, 1, report.StuckOrderIncidents)
	require.InDelta(t, 50.0, report.HitRatioPct, 1e-9, "only the negative-slippage fill counts as favorable")
}

func TestGenerateOnEmptyJournalYieldsZeroedReport(t *testing.T) {
	dir := t.TempDir()
	r := NewTCAReporter(filepath.Join(dir, "missing.jsonl"), filepath.Join(dir, "tca.json"))
	report, err := r.Generate()
	require.NoError(t, err)
	require.Zero(t, report.OrdersPlaced)
	require.Zero(t, report.FillRatePct)
}

func TestGeneratePersistsReportToOutputPath(t *testing.T) {
	dir := t.TempDir()
	journalPath := filepath.Join(dir, "journal.jsonl")
	j := journal.New(journalPath)
	require.NoError(t, j.Append("order_placed", "execute", "", "", "", nil, nil))

	outPath := filepath.Join(dir, "tca.json")
	r := NewTCAReporter(journalPath, outPath)
	_, err := r.Generate()
	require.NoError(t, err)

	events, err := journal.ReadAll(journalPath)
	require.NoError(t, err)
	require.Len(t, events, 1)
}
