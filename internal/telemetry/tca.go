package telemetry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/kaviarasu301/imperium-exec-core/internal/journal"
)

// TCAReport is the overwritten transaction-cost-analysis snapshot the
// heartbeat timer regenerates on every tick.
type TCAReport struct {
	GeneratedAt         string  `json:"generated_at"`
	OrdersPlaced        int     `json:"orders_placed"`
	OrdersFilled        int     `json:"orders_filled"`
	FillRatePct         float64 `json:"fill_rate_pct"`
	OrdersRejected      int     `json:"orders_rejected"`
	RejectRatePct       float64 `json:"reject_rate_pct"`
	AvgLatencyMs        float64 `json:"avg_latency_ms"`
	AvgExpectedSlippage float64 `json:"avg_expected_slippage"`
	HitRatioPct         float64 `json:"hit_ratio_pct"`
	TotalIncidents      int     `json:"total_incidents"`
	StuckOrderIncidents int     `json:"stuck_order_incidents"`
}

// TCAReporter derives the report from the execution journal on demand.
type TCAReporter struct {
	journalPath string
	outPath     string
}

// NewTCAReporter builds a reporter reading journalPath and overwriting
// outPath on every Generate call.
func NewTCAReporter(journalPath, outPath string) *TCAReporter {
	return &TCAReporter{journalPath: journalPath, outPath: outPath}
}

// Generate recomputes and persists the TCA report from the journal's
// contents, matching the heartbeat timer's "regenerate the TCA report"
// responsibility.
func (r *TCAReporter) Generate() (TCAReport, error) {
	events, err := journal.ReadAll(r.journalPath)
	if err != nil {
		return TCAReport{}, err
	}

	var placed, filled, rejected, incidents, stuckIncidents int
	var latencySum, slippageSum float64
	var latencyN, slippageN int
	var favorableFills int

	for _, ev := range events {
		switch ev.EventType {
		case "order_placed":
			placed++
			if v, ok := numeric(ev.Payload["latency_ms"]); ok {
				latencySum += v
				latencyN++
			}
			if v, ok := numeric(ev.Payload["expected_slippage"]); ok {
				slippageSum += v
				slippageN++
				if v <= 0 {
					favorableFills++
				}
			}
		case "order_fill", "order_update":
			if status, ok := ev.Payload["status"].(string); ok && status == "COMPLETE" {
				filled++
			}
		case "order_rejected":
			rejected++
		case "incident":
			incidents++
			if kind, ok := ev.Payload["kind"].(string); ok && kind == "stuck_order" {
				stuckIncidents++
			}
		}
	}

	report := TCAReport{
		GeneratedAt:    time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
		OrdersPlaced:   placed,
		OrdersFilled:   filled,
		OrdersRejected: rejected,
		TotalIncidents: incidents,
		StuckOrderIncidents: stuckIncidents,
	}
	if placed > 0 {
		report.FillRatePct = round2(float64(filled) / float64(placed) * 100)
		report.RejectRatePct = round2(float64(rejected) / float64(placed) * 100)
	}
	if latencyN > 0 {
		report.AvgLatencyMs = round2(latencySum / float64(latencyN))
	}
	if slippageN > 0 {
		report.AvgExpectedSlippage = round2(slippageSum / float64(slippageN))
		report.HitRatioPct = round2(float64(favorableFills) / float64(slippageN) * 100)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return report, err
	}
	if err := os.MkdirAll(filepath.Dir(r.outPath), 0o755); err != nil {
		return report, err
	}
	tmp := r.outPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return report, err
	}
	return report, os.Rename(tmp, r.outPath)
}

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
