package cvd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kaviarasu301/imperium-exec-core/internal/journal"
	"github.com/kaviarasu301/imperium-exec-core/internal/model"
)

type fakeLadder struct {
	contract model.Contract
	ok       bool
}

func (f fakeLadder) ResolveATM(token int64, side model.Side) (model.Contract, bool) {
	return f.contract, f.ok
}

type fakePositions struct {
	has map[string]bool
}

func (f fakePositions) HasPosition(symbol string) bool { return f.has[symbol] }

type fakePending struct {
	orders map[string]struct {
		id    string
		price float64
	}
}

func (f fakePending) PendingOrderFor(symbol string) (string, float64, bool) {
	o, ok := f.orders[symbol]
	return o.id, o.price, ok
}

func newTestCoordinator(t *testing.T, ladder StrikeLadder, positions PositionChecker, pending PendingOrderChecker) (*Coordinator, string) {
	t.Helper()
	dir := t.TempDir()
	j := journal.New(filepath.Join(dir, "journal.jsonl"))
	c := New(model.ModePaper, dir, j, ladder, nil, nil, positions, pending, nil, nil)
	return c, dir
}

func at(hour, min, sec int) time.Time {
	return time.Date(2026, 7, 29, hour, min, sec, 0, time.Local)
}

func TestCutoffExactly1500IsPostCutoff(t *testing.T) {
	require.True(t, isAfterCutoff(at(15, 0, 0)))
	require.True(t, isAfterCutoff(at(15, 0, 1)))
	require.False(t, isAfterCutoff(at(14, 59, 59)))
}

func TestSignalAfterCutoffForcesExitAndDropsSignal(t *testing.T) {
	ladder := fakeLadder{contract: model.Contract{TradingSymbol: "NIFTY24DEC24500CE", LotSize: 50}, ok: true}
	c, _ := newTestCoordinator(t, ladder, nil, nil)
	c.mu.Lock()
	c.marketState[1] = model.MarketStateFrame{InstrumentToken: 1, Enabled: true}
	c.mu.Unlock()

	c.OnSignal(Signal{InstrumentToken: 1, Side: model.SideLong, StrategyType: model.StrategyATRReversal, Timestamp: at(10, 0, 0), EntryUnderlying: 100})
	_, ok := c.Trade(1)
	require.True(t, ok)

	c.OnSignal(Signal{InstrumentToken: 1, Side: model.SideShort, StrategyType: model.StrategyEMACross, Timestamp: at(15, 0, 0), EntryUnderlying: 90})

	_, ok = c.Trade(1)
	require.False(t, ok, "post-cutoff signal must force-exit and drop, never opening a new trade")
}

func TestStackingRuleRejectsBefore15MinutesAcceptsAt15(t *testing.T) {
	ladder := fakeLadder{contract: model.Contract{TradingSymbol: "SYM", LotSize: 50}, ok: true}
	c, _ := newTestCoordinator(t, ladder, nil, nil)
	c.mu.Lock()
	c.marketState[1] = model.MarketStateFrame{InstrumentToken: 1, Enabled: true}
	c.mu.Unlock()

	base := at(10, 0, 0)
	c.OnSignal(Signal{InstrumentToken: 1, Side: model.SideLong, StrategyType: model.StrategyATRReversal, Timestamp: base, EntryUnderlying: 100})
	firstTrade, _ := c.Trade(1)

	// +14:59 elapsed: rejected, trade unchanged.
	c.OnSignal(Signal{InstrumentToken: 1, Side: model.SideLong, StrategyType: model.StrategyATRReversal, Timestamp: base.Add(14*time.Minute + 59*time.Second), EntryUnderlying: 105})
	mid, _ := c.Trade(1)
	require.Equal(t, firstTrade.EntryUnderlying, mid.EntryUnderlying)

	// +15:00 elapsed exactly: accepted, trade replaced with new entry.
	c.OnSignal(Signal{InstrumentToken: 1, Side: model.SideLong, StrategyType: model.StrategyATRReversal, Timestamp: base.Add(15 * time.Minute), EntryUnderlying: 110})
	last, _ := c.Trade(1)
	require.Equal(t, 110.0, last.EntryUnderlying)
}

func TestReversalRequiresStrictlyHigherPriority(t *testing.T) {
	ladder := fakeLadder{contract: model.Contract{TradingSymbol: "SYM", LotSize: 50}, ok: true}
	c, _ := newTestCoordinator(t, ladder, nil, nil)
	c.mu.Lock()
	c.marketState[1] = model.MarketStateFrame{InstrumentToken: 1, Enabled: true}
	c.mu.Unlock()

	// Active trade is ema_cross (priority 3).
	c.OnSignal(Signal{InstrumentToken: 1, Side: model.SideLong, StrategyType: model.StrategyEMACross, Timestamp: at(10, 0, 0), EntryUnderlying: 100})

	// atr_divergence (priority 2) does not outrank ema_cross (priority 3): no reversal.
	c.OnSignal(Signal{InstrumentToken: 1, Side: model.SideShort, StrategyType: model.StrategyATRDivergence, Timestamp: at(10, 1, 0), EntryUnderlying: 90})
	trade, ok := c.Trade(1)
	require.True(t, ok)
	require.Equal(t, model.SideLong, trade.SignalSide)

	// Equal priority never outranks either: an opposite-side ema_cross is also dropped.
	c.OnSignal(Signal{InstrumentToken: 1, Side: model.SideShort, StrategyType: model.StrategyEMACross, Timestamp: at(10, 2, 0), EntryUnderlying: 90})
	trade, ok = c.Trade(1)
	require.True(t, ok)
	require.Equal(t, model.SideLong, trade.SignalSide)
}

func TestReversalSucceedsWithStrictlyHigherPriorityStrategy(t *testing.T) {
	ladder := fakeLadder{contract: model.Contract{TradingSymbol: "SYM", LotSize: 50}, ok: true}
	c, _ := newTestCoordinator(t, ladder, nil, nil)
	c.mu.Lock()
	c.marketState[1] = model.MarketStateFrame{InstrumentToken: 1, Enabled: true}
	c.mu.Unlock()

	// Active trade is atr_reversal (priority 1, lowest).
	c.OnSignal(Signal{InstrumentToken: 1, Side: model.SideLong, StrategyType: model.StrategyATRReversal, Timestamp: at(10, 0, 0), EntryUnderlying: 100})

	// ema_cross (priority 3) outranks atr_reversal (priority 1): reversal proceeds.
	c.OnSignal(Signal{InstrumentToken: 1, Side: model.SideShort, StrategyType: model.StrategyEMACross, Timestamp: at(10, 1, 0), EntryUnderlying: 95})

	trade, ok := c.Trade(1)
	require.True(t, ok)
	require.Equal(t, model.SideShort, trade.SignalSide)
	require.Equal(t, model.StrategyEMACross, trade.StrategyType)
}

func TestTrailingStopOnlyTightensATRReversal(t *testing.T) {
	trade := &model.AutomationTrade{
		StrategyType:          model.StrategyATRReversal,
		SignalSide:             model.SideLong,
		EntryUnderlying:        100,
		StoplossPoints:         20,
		SLUnderlying:           80,
		ATRTrailingStepPoints:  10,
		MaxFavorablePts:        35,
	}
	applyTrailing(trade)
	// steps = floor(35/10) = 3, trail = 30: candidate = 100-20+30 = 110 > 80, tightens.
	require.InDelta(t, 110.0, trade.SLUnderlying, 1e-9)

	trade.MaxFavorablePts = 5 // lower favorable must never widen the already-tightened SL.
	applyTrailing(trade)
	require.InDelta(t, 110.0, trade.SLUnderlying, 1e-9)
}

func TestExitReasonSLBreachLong(t *testing.T) {
	trade := &model.AutomationTrade{
		StrategyType:    model.StrategyATRDivergence,
		SignalSide:      model.SideLong,
		EntryUnderlying: 100,
		SLUnderlying:    95,
	}
	frame := model.MarketStateFrame{PriceClose: 94}
	require.Equal(t, "AUTO_SL", exitReason(trade, frame, favorableMove(trade, 94)))
}

func TestExitReasonMaxProfitGiveback(t *testing.T) {
	trade := &model.AutomationTrade{
		StrategyType:                model.StrategyATRDivergence,
		SignalSide:                  model.SideLong,
		EntryUnderlying:             100,
		SLUnderlying:                50,
		MaxFavorablePts:             100,
		MaxProfitGivebackPoints:     30,
		MaxProfitGivebackStrategies: map[string]bool{},
	}
	// favorable move has retraced to 60 (giveback of 40 >= 30 threshold).
	frame := model.MarketStateFrame{PriceClose: 160}
	favorable := favorableMove(trade, 160)
	require.Equal(t, "AUTO_MAX_PROFIT_GIVEBACK", exitReason(trade, frame, favorable))
}

func TestPendingRetryTickStopsAtSixAttempts(t *testing.T) {
	ladder := fakeLadder{}
	positions := fakePositions{has: map[string]bool{}}
	pendingOrders := fakePending{orders: map[string]struct {
		id    string
		price float64
	}{
		"SYM": {id: "ord-1", price: 100},
	}}
	c, _ := newTestCoordinator(t, ladder, positions, pendingOrders)
	c.mu.Lock()
	c.trades[1] = &model.AutomationTrade{InstrumentToken: 1, TradingSymbols: []string{"SYM"}, Quantity: 50}
	c.mu.Unlock()

	var stop bool
	for i := 0; i < 6; i++ {
		stop = c.PendingRetryTick(1, "SYM", time.Now(), model.StrategyATRReversal)
	}
	require.True(t, stop)
}

func TestPendingRetryTickStopsWhenPositionAppears(t *testing.T) {
	ladder := fakeLadder{}
	positions := fakePositions{has: map[string]bool{"SYM": true}}
	c, _ := newTestCoordinator(t, ladder, positions, nil)
	c.mu.Lock()
	c.trades[1] = &model.AutomationTrade{InstrumentToken: 1, TradingSymbols: []string{"SYM"}}
	c.mu.Unlock()

	require.True(t, c.PendingRetryTick(1, "SYM", time.Now(), model.StrategyATRReversal))
}

func TestPendingRetryTickStopsForOpenDriveWindow(t *testing.T) {
	ladder := fakeLadder{}
	positions := fakePositions{has: map[string]bool{}}
	pendingOrders := fakePending{orders: map[string]struct {
		id    string
		price float64
	}{"SYM": {id: "ord-1", price: 100}}}
	c, _ := newTestCoordinator(t, ladder, positions, pendingOrders)
	c.mu.Lock()
	c.trades[1] = &model.AutomationTrade{InstrumentToken: 1, TradingSymbols: []string{"SYM"}}
	c.mu.Unlock()

	signalTime := time.Now().Add(-4 * time.Minute)
	require.True(t, c.PendingRetryTick(1, "SYM", signalTime, model.StrategyOpenDrive))
}

func TestPersistenceRoundTrip(t *testing.T) {
	ladder := fakeLadder{contract: model.Contract{TradingSymbol: "SYM", LotSize: 50}, ok: true}
	c, dir := newTestCoordinator(t, ladder, nil, nil)
	c.mu.Lock()
	c.marketState[1] = model.MarketStateFrame{InstrumentToken: 1, Enabled: true}
	c.mu.Unlock()

	c.OnSignal(Signal{InstrumentToken: 1, Side: model.SideLong, StrategyType: model.StrategyATRReversal, Timestamp: at(10, 0, 0), EntryUnderlying: 100})

	c2 := New(model.ModePaper, dir, journal.New(filepath.Join(dir, "j2.jsonl")), ladder, nil, nil, nil, nil, nil, nil)
	c2.Load()

	trade, ok := c2.Trade(1)
	require.True(t, ok)
	require.Equal(t, 100.0, trade.EntryUnderlying)
}

func TestPersistenceLoadDropsMalformedEntriesWithoutFailing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cvd_automation_state_paper.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"saved_at": "2026-07-29T10:00:00.000Z",
		"trading_mode": "PAPER",
		"positions": {
			"1": {"instrument_token": 1, "entry_underlying": 100},
			"2": "not-an-object",
			"bad-key": {"instrument_token": 3}
		}
	}`), 0o644))

	j := journal.New(filepath.Join(dir, "journal.jsonl"))
	c := New(model.ModePaper, dir, j, nil, nil, nil, nil, nil, nil, nil)
	c.Load()

	_, ok := c.Trade(1)
	require.True(t, ok)
	_, ok = c.Trade(2)
	require.False(t, ok)
	_, ok = c.Trade(3)
	require.False(t, ok)
}

func TestPersistenceLoadToleratesCorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cvd_automation_state_paper.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not valid json`), 0o644))

	j := journal.New(filepath.Join(dir, "journal.jsonl"))
	c := New(model.ModePaper, dir, j, nil, nil, nil, nil, nil, nil, nil)
	c.Load() // must not panic; state stays empty

	_, ok := c.Trade(1)
	require.False(t, ok)
}
