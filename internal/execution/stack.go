// Package execution implements the Execution Stack: smart order routing,
// parent-to-child slicing, slippage estimation, retry classification, and
// fill/journal recording, grounded on the reference tree's executeOpen*/
// executeDecisionWithRecord dispatch pattern in trader/auto_trader.go and on
// original_source/core/execution/execution_stack.py's UTC+cooldown variant.
package execution

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/kaviarasu301/imperium-exec-core/internal/journal"
	"github.com/kaviarasu301/imperium-exec-core/internal/logger"
	"github.com/kaviarasu301/imperium-exec-core/internal/model"
	"github.com/kaviarasu301/imperium-exec-core/internal/telemetry"
	"github.com/kaviarasu301/imperium-exec-core/internal/tracing"
)

var log = logger.With("execution")

// Sentinel error kinds, favoring kinds over concrete types for callers
// that only need to branch on the bucket.
var (
	ErrRisk  = errors.New("risk rejection")
	ErrFatal = errors.New("fatal execution error")
)

// FatalExecutionError carries the child order-ids already placed before a
// fatal slice failed, so the caller can reconcile partial fills.
type FatalExecutionError struct {
	PlacedOrderIDs []string
	Cause          error
}

func (e *FatalExecutionError) Error() string {
	return fmt.Sprintf("fatal execution error after placing %d children: %v", len(e.PlacedOrderIDs), e.Cause)
}

func (e *FatalExecutionError) Unwrap() error { return ErrFatal }

// PlaceOrderFunc places one broker order and returns its order id.
type PlaceOrderFunc func(args OrderArgs) (string, error)

// OrderArgs is what gets handed to the broker for one child order.
type OrderArgs struct {
	TradingSymbol   string
	TransactionType model.TransactionType
	Quantity        int
	Product         model.Product
	OrderType       model.OrderType
	Price           *float64
	TriggerPrice    *float64
	GroupName       string
}

// AnomalyNotifier is the subset of the Anomaly Detector the Execution Stack
// drives directly; defined here (rather than imported) to avoid a package
// cycle, and satisfied structurally by *anomaly.Detector.
type AnomalyNotifier interface {
	OnOrderSubmitted(orderID string)
	OnOrderClosed(orderID string)
	OnTick(symbol string, ts time.Time)
	Heartbeat()
}

// Stack is one Execution Stack instance, scoped to a trading mode.
type Stack struct {
	mode      string
	journal   *journal.Journal
	qaJournal *journal.Journal // execution_quality_<mode>.jsonl
	dashboard *telemetry.Dashboard
	anomaly   AnomalyNotifier
	tca       *telemetry.TCAReporter

	rng *rand.Rand

	heartbeatInterval time.Duration
	stopHeartbeat     chan struct{}
	heartbeatOnce     sync.Once
	heartbeatRunning  bool
	mu                sync.Mutex
}

// New builds an Execution Stack writing to the journal/telemetry files at
// the given paths.
func New(mode string, j, qa *journal.Journal, dash *telemetry.Dashboard, anomaly AnomalyNotifier, tca *telemetry.TCAReporter) *Stack {
	return &Stack{
		mode:              mode,
		journal:           j,
		qaJournal:         qa,
		dashboard:         dash,
		anomaly:           anomaly,
		tca:               tca,
		rng:               rand.New(rand.NewSource(time.Now().UnixNano())),
		heartbeatInterval: 30 * time.Second,
	}
}

// Execute transforms an ExecutionRequest into one or more broker child
// orders, returning child order ids in placement order.
func (s *Stack) Execute(req model.ExecutionRequest, place PlaceOrderFunc, marketOverride bool, trace tracing.Context) ([]string, error) {
	decision := Route(req, marketOverride)
	slices := Plan(req.ExecutionAlgo, req.Quantity, req.MaxChildOrders, req.RandomizeSlices, s.rng)

	var placedIDs []string
	for idx, qty := range slices {
		span := trace.NextSpan()
		args := OrderArgs{
			TradingSymbol:   req.TradingSymbol,
			TransactionType: req.TransactionType,
			Quantity:        qty,
			Product:         req.Product,
			OrderType:       decision.OrderType,
		}
		if decision.OrderType == model.OrderLimit && decision.LimitPrice > 0 {
			lp := decision.LimitPrice
			args.Price = &lp
		}

		slip := EstimateSlippage(req.Bid, req.Ask, req.LTP, qty, req.Quantity)

		orderID, err := s.placeWithRetry(args, place, span, idx+1, len(slices), slip, decision)
		if err != nil {
			var fatal *FatalExecutionError
			if errors.As(err, &fatal) {
				fatal.PlacedOrderIDs = append(placedIDs, fatal.PlacedOrderIDs...)
				return placedIDs, fatal
			}
			return placedIDs, err
		}

		placedIDs = append(placedIDs, orderID)
		s.anomaly.OnOrderSubmitted(orderID)
		if s.dashboard != nil {
			s.dashboard.Incr("orders_placed", 1)
		}
	}

	return placedIDs, nil
}

func (s *Stack) placeWithRetry(args OrderArgs, place PlaceOrderFunc, span tracing.Context, childIndex, childCount int, slip SlippageEstimate, decision RouteDecision) (string, error) {
	var lastErr error
	var bucket Bucket

	for attempt := 0; ; attempt++ {
		start := time.Now()
		orderID, err := place(args)
		latencyMs := float64(time.Since(start).Microseconds()) / 1000.0

		if err == nil {
			s.journal.Append("order_placed", "execute", span.TraceID, span.SpanID, span.ParentSpanID, span.Tags, map[string]any{
				"order_id":          orderID,
				"child_index":       childIndex,
				"children":          childCount,
				"quantity":          args.Quantity,
				"latency_ms":        latencyMs,
				"expected_slippage": slip.ExpectedSlippage,
				"impact_estimate":   slip.ImpactEstimate,
				"route":             string(decision.OrderType),
				"queue_priority":    string(decision.QueuePriority),
			})
			if s.dashboard != nil {
				s.dashboard.ObserveLatency(latencyMs)
			}
			return orderID, nil
		}

		lastErr = err
		bucket = Classify(err)
		max := MaxAttempts(bucket)

		s.journal.Append("order_error", "execute", span.TraceID, span.SpanID, span.ParentSpanID, span.Tags, map[string]any{
			"bucket":  string(bucket),
			"attempt": attempt + 1,
			"error":   err.Error(),
		})
		if s.qaJournal != nil {
			s.qaJournal.Append("order_error", "execute", span.TraceID, span.SpanID, span.ParentSpanID, nil, map[string]any{
				"bucket": string(bucket), "attempt": attempt + 1,
			})
		}

		if attempt+1 >= max {
			break
		}

		sleep := Backoff(bucket, attempt)
		if sleep > 0 {
			time.Sleep(sleep)
		}
	}

	if bucket == BucketRisk {
		return "", fmt.Errorf("%w: %v", ErrRisk, lastErr)
	}
	return "", &FatalExecutionError{Cause: lastErr}
}

// RecordFill closes out a filled order: removes it from anomaly
// surveillance so the heartbeat no longer watches it.
func (s *Stack) RecordFill(orderID string, price float64, qty int) {
	s.anomaly.OnOrderClosed(orderID)
	s.journal.Append("order_fill", "record_fill", "", "", "", nil, map[string]any{
		"order_id": orderID, "price": roundRupees(price), "quantity": qty,
	})
	if s.dashboard != nil {
		s.dashboard.Incr("orders_filled", 1)
	}
}

// RecordPaperFill is a convenience wrapper invoked when a simulated order's
// status becomes COMPLETE.
func (s *Stack) RecordPaperFill(orderID string, averagePrice float64, filledQty int) {
	s.RecordFill(orderID, averagePrice, filledQty)
}

// RecordCancelled removes an order from surveillance and journals the
// cancellation.
func (s *Stack) RecordCancelled(orderID string) {
	s.anomaly.OnOrderClosed(orderID)
	s.journal.Append("order_cancelled", "record_cancelled", "", "", "", nil, map[string]any{
		"order_id": orderID,
	})
}

// RecordExit journals a position-exit outcome.
func (s *Stack) RecordExit(tradingSymbol, outcome string, pnl float64) {
	s.journal.Append("position_exit", "record_exit", "", "", "", nil, map[string]any{
		"tradingsymbol": tradingSymbol, "outcome": outcome, "pnl": roundRupees(pnl),
	})
}

// IngestTick forwards tick-liveness to the Anomaly Detector.
func (s *Stack) IngestTick(symbol string, ts time.Time) {
	if ts.IsZero() {
		ts = time.Now()
	}
	s.anomaly.OnTick(symbol, ts)
}

// StartHeartbeatTimer starts the independent, self-rescheduling heartbeat
// that drives the Anomaly Detector and regenerates the TCA report. It
// must run regardless of execute() activity.
func (s *Stack) StartHeartbeatTimer() {
	s.mu.Lock()
	if s.heartbeatRunning {
		s.mu.Unlock()
		return
	}
	s.heartbeatRunning = true
	s.stopHeartbeat = make(chan struct{})
	stop := s.stopHeartbeat
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(s.heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.anomaly.Heartbeat()
				if s.tca != nil {
					if _, err := s.tca.Generate(); err != nil {
						log.ErrorErr(err, "tca report regeneration failed")
					}
				}
			}
		}
	}()
}

// StopHeartbeatTimer cancels the background heartbeat.
func (s *Stack) StopHeartbeatTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.heartbeatRunning {
		return
	}
	close(s.stopHeartbeat)
	s.heartbeatRunning = false
}
