package execution

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kaviarasu301/imperium-exec-core/internal/journal"
	"github.com/kaviarasu301/imperium-exec-core/internal/model"
	"github.com/kaviarasu301/imperium-exec-core/internal/telemetry"
	"github.com/kaviarasu301/imperium-exec-core/internal/tracing"
)

type fakeAnomaly struct {
	submitted []string
	closed    []string
	ticks     int
	heartbeat int
}

func (f *fakeAnomaly) OnOrderSubmitted(orderID string)     { f.submitted = append(f.submitted, orderID) }
func (f *fakeAnomaly) OnOrderClosed(orderID string)        { f.closed = append(f.closed, orderID) }
func (f *fakeAnomaly) OnTick(symbol string, ts time.Time)  { f.ticks++ }
func (f *fakeAnomaly) Heartbeat()                          { f.heartbeat++ }

func newTestStack(t *testing.T, anomaly AnomalyNotifier) *Stack {
	t.Helper()
	dir := t.TempDir()
	j := journal.New(filepath.Join(dir, "journal.jsonl"))
	qa := journal.New(filepath.Join(dir, "quality.jsonl"))
	dash := telemetry.New("paper", filepath.Join(dir, "telemetry.json"))
	return New("paper", j, qa, dash, anomaly, nil)
}

func TestExecuteSlicesAndPlacesEveryChild(t *testing.T) {
	anomaly := &fakeAnomaly{}
	s := newTestStack(t, anomaly)

	var placed []int
	place := func(args OrderArgs) (string, error) {
		placed = append(placed, args.Quantity)
		return "ord-" + args.TradingSymbol, nil
	}

	req := model.ExecutionRequest{
		TradingSymbol: "NIFTY24DEC24500CE", TransactionType: model.TransactionBuy,
		Quantity: 30, OrderType: model.OrderMarket, ExecutionAlgo: model.AlgoTWAP, MaxChildOrders: 3,
	}
	ids, err := s.Execute(req, place, false, tracing.New(nil))
	require.NoError(t, err)
	require.Len(t, ids, 3)
	require.Equal(t, 30, sum(placed))
	require.Len(t, anomaly.submitted, 3)
}

func TestExecuteImmediateSinglePlacement(t *testing.T) {
	anomaly := &fakeAnomaly{}
	s := newTestStack(t, anomaly)

	calls := 0
	place := func(args OrderArgs) (string, error) {
		calls++
		return "ord-1", nil
	}

	req := model.ExecutionRequest{TradingSymbol: "SYM", Quantity: 50, OrderType: model.OrderMarket, ExecutionAlgo: model.AlgoImmediate}
	ids, err := s.Execute(req, place, false, tracing.New(nil))
	require.NoError(t, err)
	require.Equal(t, []string{"ord-1"}, ids)
	require.Equal(t, 1, calls)
}

func TestExecuteRiskBucketStopsAfterOneAttempt(t *testing.T) {
	anomaly := &fakeAnomaly{}
	s := newTestStack(t, anomaly)

	calls := 0
	place := func(args OrderArgs) (string, error) {
		calls++
		return "", errors.New("insufficient margin")
	}

	req := model.ExecutionRequest{TradingSymbol: "SYM", Quantity: 10, OrderType: model.OrderMarket, ExecutionAlgo: model.AlgoImmediate}
	_, err := s.Execute(req, place, false, tracing.New(nil))
	require.Error(t, err)
	require.ErrorIs(t, err, ErrRisk)
	require.Equal(t, 1, calls)
}

func TestExecuteFatalBucketCarriesPlacedOrderIDs(t *testing.T) {
	anomaly := &fakeAnomaly{}
	s := newTestStack(t, anomaly)

	attempt := 0
	place := func(args OrderArgs) (string, error) {
		attempt++
		if attempt == 1 {
			return "ord-1", nil
		}
		return "", errors.New("invalid tradingsymbol")
	}

	req := model.ExecutionRequest{TradingSymbol: "SYM", Quantity: 20, OrderType: model.OrderMarket, ExecutionAlgo: model.AlgoTWAP, MaxChildOrders: 2}
	ids, err := s.Execute(req, place, false, tracing.New(nil))
	require.Error(t, err)
	var fatal *FatalExecutionError
	require.ErrorAs(t, err, &fatal)
	require.Equal(t, []string{"ord-1"}, fatal.PlacedOrderIDs)
	require.Equal(t, []string{"ord-1"}, ids)
}

func TestRecordFillAndCancelledNotifyAnomalyDetector(t *testing.T) {
	anomaly := &fakeAnomaly{}
	s := newTestStack(t, anomaly)

	s.RecordFill("ord-1", 120.5, 50)
	s.RecordCancelled("ord-2")

	require.Contains(t, anomaly.closed, "ord-1")
	require.Contains(t, anomaly.closed, "ord-2")
}

func TestIngestTickForwardsToDetector(t *testing.T) {
	anomaly := &fakeAnomaly{}
	s := newTestStack(t, anomaly)

	s.IngestTick("NIFTY24DEC24500CE", time.Now())
	require.Equal(t, 1, anomaly.ticks)
}

func TestHeartbeatTimerStartStopIsIdempotent(t *testing.T) {
	anomaly := &fakeAnomaly{}
	s := newTestStack(t, anomaly)
	s.heartbeatInterval = 10 * time.Millisecond

	s.StartHeartbeatTimer()
	s.StartHeartbeatTimer() // second call must be a no-op, not a double-start
	time.Sleep(35 * time.Millisecond)
	s.StopHeartbeatTimer()
	s.StopHeartbeatTimer() // second stop must not panic

	require.GreaterOrEqual(t, anomaly.heartbeat, 1)
}
