// Package telemetry keeps in-memory rolling counters and periodically
// overwrites a JSON snapshot file, plus exposes the same counters as
// Prometheus metrics through a dedicated registry the way metrics/metrics.go
// wires its trader gauges.
package telemetry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry is the dedicated Prometheus registry for this core, mirroring
// the reference tree's package-level `var Registry = prometheus.NewRegistry()`.
var Registry = prometheus.NewRegistry()

var (
	ordersPlaced = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: "imperium",
		Subsystem: "execution",
		Name:      "orders_placed_total",
	}, []string{"mode"})

	ordersFilled = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: "imperium",
		Subsystem: "execution",
		Name:      "orders_filled_total",
	}, []string{"mode"})

	ordersRejected = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: "imperium",
		Subsystem: "execution",
		Name:      "orders_rejected_total",
	}, []string{"mode"})

	incidentsTotal = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: "imperium",
		Subsystem: "anomaly",
		Name:      "incidents_total",
	}, []string{"kind"})

	avgLatencyGauge = promauto.With(Registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "imperium",
		Subsystem: "execution",
		Name:      "avg_latency_ms",
	}, []string{"mode"})
)

// Event is a single recent occurrence kept for the snapshot's trailing log.
type Event struct {
	At      string `json:"at"`
	Kind    string `json:"kind"`
	Details string `json:"details,omitempty"`
}

const recentCap = 200

// Dashboard is the rolling-counter store for one trading mode.
type Dashboard struct {
	mu     sync.Mutex
	mode   string
	path   string
	counters map[string]int64
	latencySumMs float64
	latencyCount int64
	recent []Event
}

// New creates a dashboard that periodically overwrites snapshotPath.
func New(mode, snapshotPath string) *Dashboard {
	return &Dashboard{
		mode:     mode,
		path:     snapshotPath,
		counters: map[string]int64{},
	}
}

// Incr bumps a named counter, e.g. "orders_placed", "orders_filled",
// "orders_rejected".
func (d *Dashboard) Incr(name string, delta int64) {
	d.mu.Lock()
	d.counters[name] += delta
	d.mu.Unlock()

	switch name {
	case "orders_placed":
		ordersPlaced.WithLabelValues(d.mode).Add(float64(delta))
	case "orders_filled":
		ordersFilled.WithLabelValues(d.mode).Add(float64(delta))
	case "orders_rejected":
		ordersRejected.WithLabelValues(d.mode).Add(float64(delta))
	}
}

// ObserveLatency records one child-order placement latency sample.
func (d *Dashboard) ObserveLatency(ms float64) {
	d.mu.Lock()
	d.latencySumMs += ms
	d.latencyCount++
	avg := d.latencySumMs / float64(d.latencyCount)
	d.mu.Unlock()
	avgLatencyGauge.WithLabelValues(d.mode).Set(avg)
}

// AvgLatencyMs returns the running mean placement latency.
func (d *Dashboard) AvgLatencyMs() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.latencyCount == 0 {
		return 0
	}
	return d.latencySumMs / float64(d.latencyCount)
}

// RecordIncident bumps the incident counter and appends to the recent log.
func (d *Dashboard) RecordIncident(kind string) {
	incidentsTotal.WithLabelValues(kind).Inc()
	d.appendRecent(kind, "")
}

func (d *Dashboard) appendRecent(kind, details string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.recent = append(d.recent, Event{
		At:      time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
		Kind:    kind,
		Details: details,
	})
	if len(d.recent) > recentCap {
		d.recent = d.recent[len(d.recent)-recentCap:]
	}
}

// Counter returns the current value of a named counter.
func (d *Dashboard) Counter(name string) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.counters[name]
}

type snapshotDoc struct {
	GeneratedAt  string           `json:"generated_at"`
	Counters     map[string]int64 `json:"counters"`
	RecentEvents []Event          `json:"recent_events"`
}

// Snapshot overwrites the snapshot file with the current counters and
// trailing recent-event log.
func (d *Dashboard) Snapshot() error {
	d.mu.Lock()
	doc := snapshotDoc{
		GeneratedAt:  time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
		Counters:     copyCounters(d.counters),
		RecentEvents: append([]Event(nil), d.recent...),
	}
	d.mu.Unlock()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(d.path), 0o755); err != nil {
		return err
	}
	tmp := d.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, d.path)
}

func copyCounters(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
