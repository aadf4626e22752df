// Package anomaly implements the Anomaly Detector & Incident Responder:
// independent heartbeat surveillance of stuck orders, stale ticks,
// duplicate signals, and runaway event loops, dispatching playbook actions
// through pluggable remediation hooks. Grounded on
// original_source/core/market_data/api_circuit_breaker.py's metrics-style
// bookkeeping and on the reference tree's Run()-loop ticker idiom in
// trader/auto_trader.go.
package anomaly

import (
	"fmt"
	"sync"
	"time"

	"github.com/kaviarasu301/imperium-exec-core/internal/journal"
	"github.com/kaviarasu301/imperium-exec-core/internal/model"
	"github.com/kaviarasu301/imperium-exec-core/internal/telemetry"
)

const (
	staleTickSeconds   = 10
	stuckMaxAgeSeconds = 600
	stuckAlertAfter    = 20
	stuckAlertCooldown = 300
	runawayWindow      = time.Second
	runawayThreshold   = 80
	loopWindowCap      = 200
	duplicateWindow    = 30 * time.Second
)

// Detector holds all per-instance surveillance state for stale ticks,
// stuck/evicted orders, duplicate signals, and runaway event loops.
type Detector struct {
	mu sync.Mutex

	lastTickTs     map[string]int64
	activeOrders   map[string]int64
	stuckAlertedAt map[string]int64
	signalSeen     map[string]int64
	loopWindow     []int64

	journal   *journal.Journal
	dashboard *telemetry.Dashboard
	responder *Responder

	now func() time.Time
}

// New builds a Detector that journals to j and dispatches incidents
// through responder.
func New(j *journal.Journal, dash *telemetry.Dashboard, responder *Responder) *Detector {
	return &Detector{
		lastTickTs:     map[string]int64{},
		activeOrders:   map[string]int64{},
		stuckAlertedAt: map[string]int64{},
		signalSeen:     map[string]int64{},
		journal:        j,
		dashboard:      dash,
		responder:      responder,
		now:            time.Now,
	}
}

func (d *Detector) nowUnix() int64 { return d.now().Unix() }

// OnTick updates last-tick liveness and scans for a runaway event loop.
func (d *Detector) OnTick(symbol string, ts time.Time) {
	if ts.IsZero() {
		ts = d.now()
	}
	d.mu.Lock()
	d.lastTickTs[symbol] = ts.Unix()
	d.loopWindow = append(d.loopWindow, ts.UnixNano())
	if len(d.loopWindow) > loopWindowCap {
		d.loopWindow = d.loopWindow[len(d.loopWindow)-loopWindowCap:]
	}
	count := d.countWithinLocked(runawayWindow)
	var trigger bool
	if count >= runawayThreshold {
		trigger = true
		d.loopWindow = nil
	}
	d.mu.Unlock()

	if trigger {
		d.emit(model.IncidentRunawayLoop, model.SeverityCritical, map[string]any{"window_events": count})
	}
}

func (d *Detector) countWithinLocked(window time.Duration) int {
	if len(d.loopWindow) == 0 {
		return 0
	}
	cutoff := d.loopWindow[len(d.loopWindow)-1] - window.Nanoseconds()
	n := 0
	for _, t := range d.loopWindow {
		if t >= cutoff {
			n++
		}
	}
	return n
}

// OnSignal deduplicates signals seen within a 30-second window.
func (d *Detector) OnSignal(rawID, tradingSymbol string, quantity int, source string) {
	effectiveID := rawID
	if effectiveID == "" {
		effectiveID = fmt.Sprintf("%s:%d:%s", tradingSymbol, quantity, source)
	}

	now := d.nowUnix()
	d.mu.Lock()
	prev, seen := d.signalSeen[effectiveID]
	d.signalSeen[effectiveID] = now
	d.mu.Unlock()

	if seen && now-prev <= int64(duplicateWindow.Seconds()) {
		d.emit(model.IncidentDuplicateSignal, model.SeverityMedium, map[string]any{
			"signal_id": effectiveID,
		})
	}
}

// OnOrderSubmitted starts surveillance on a newly placed order.
func (d *Detector) OnOrderSubmitted(orderID string) {
	d.mu.Lock()
	d.activeOrders[orderID] = d.nowUnix()
	d.mu.Unlock()
}

// OnOrderClosed removes an order from surveillance entirely.
func (d *Detector) OnOrderClosed(orderID string) {
	d.mu.Lock()
	delete(d.activeOrders, orderID)
	delete(d.stuckAlertedAt, orderID)
	d.mu.Unlock()
}

// Heartbeat runs the fixed-interval surveillance pass: stale ticks and
// stuck/evicted orders.
func (d *Detector) Heartbeat() {
	now := d.nowUnix()

	d.mu.Lock()
	type staleTick struct {
		symbol  string
		elapsed int64
	}
	var staleSymbols []staleTick
	for symbol, ts := range d.lastTickTs {
		if elapsed := now - ts; elapsed > staleTickSeconds {
			staleSymbols = append(staleSymbols, staleTick{symbol: symbol, elapsed: elapsed})
			d.lastTickTs[symbol] = now // snooze per-symbol
		}
	}

	var evicted []string
	var stuck []string
	for orderID, createdAt := range d.activeOrders {
		age := now - createdAt
		if age > stuckMaxAgeSeconds {
			evicted = append(evicted, orderID)
			continue
		}
		if age > stuckAlertAfter {
			last, alerted := d.stuckAlertedAt[orderID]
			if !alerted || now-last >= stuckAlertCooldown {
				stuck = append(stuck, orderID)
				d.stuckAlertedAt[orderID] = now
			}
		}
	}
	for _, orderID := range evicted {
		delete(d.activeOrders, orderID)
		delete(d.stuckAlertedAt, orderID)
	}
	d.mu.Unlock()

	for _, st := range staleSymbols {
		d.emit(model.IncidentStaleTick, model.SeverityHigh, map[string]any{
			"symbol":             st.symbol,
			"seconds_since_tick": st.elapsed,
		})
	}
	for _, orderID := range evicted {
		d.journal.Append("order_evicted", "heartbeat", "", "", "", nil, map[string]any{
			"order_id": orderID,
			"reason":   "no_fill_callback_within_max_age",
		})
	}
	for _, orderID := range stuck {
		d.emit(model.IncidentStuckOrder, model.SeverityCritical, map[string]any{
			"order_id": orderID,
		})
	}
}

func (d *Detector) emit(kind model.IncidentKind, severity model.Severity, details map[string]any) {
	playbook := playbookFor(kind)
	incident := model.Incident{Kind: kind, Severity: severity, Details: details, Playbook: playbook}

	d.journal.Append("incident", "detector", "", "", "", nil, map[string]any{
		"kind":     string(kind),
		"severity": string(severity),
		"details":  details,
		"playbook": playbook,
	})
	if d.dashboard != nil {
		d.dashboard.RecordIncident(string(kind))
	}
	if d.responder != nil {
		d.responder.Respond(incident, d.journal)
	}
}
