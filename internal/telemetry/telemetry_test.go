package telemetry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIncrUpdatesNamedCounter(t *testing.T) {
	d := New("paper", filepath.Join(t.TempDir(), "telemetry.json"))
	d.Incr("orders_placed", 3)
	d.Incr("orders_placed", 2)
	require.Equal(t, int64(5), d.Counter("orders_placed"))
}

func TestObserveLatencyComputesRunningMean(t *testing.T) {
	d := New("paper", filepath.Join(t.TempDir(), "telemetry.json"))
	d.ObserveLatency(100)
	d.ObserveLatency(200)
	require.InDelta(t, 150, d.AvgLatencyMs(), 1e-9)
}

func TestAvgLatencyMsZeroWithNoSamples(t *testing.T) {
	d := New("paper", filepath.Join(t.TempDir(), "telemetry.json"))
	require.Zero(t, d.AvgLatencyMs())
}

func TestRecordIncidentAppendsRecentEvent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telemetry.json")
	d := New("paper", path)
	d.RecordIncident("stuck_order")

	require.NoError(t, d.Snapshot())
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc snapshotDoc
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc.RecentEvents, 1)
	require.Equal(t, "stuck_order", doc.RecentEvents[0].Kind)
}

func TestRecordIncidentCapsRecentEventLog(t *testing.T) {
	d := New("paper", filepath.Join(t.TempDir(), "telemetry.json"))
	for i := 0; i < recentCap+50; i++ {
		d.RecordIncident("stale_tick")
	}
	require.Len(t, d.recent, recentCap)
}

func TestSnapshotWritesValidJSONAtomically(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "telemetry.json")
	d := New("paper", path)
	d.Incr("orders_filled", 7)

	require.NoError(t, d.Snapshot())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc snapshotDoc
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Equal(t, int64(7), doc.Counters["orders_filled"])

	_, err = os.Stat(path + ".tmp")
	require.True(t, os.IsNotExist(err), "the .tmp staging file must be renamed away, not left behind")
}
