// Package cvd implements the CVD Automation Coordinator: a per-instrument
// state machine that consumes signal events and market_state frames and
// decides entries, reversals, exits, the 15:00 cutoff, and durable
// persistence. Grounded on the reference tree's
// trader.AutoTrader cycle loop (trader/auto_trader.go) — a single
// goroutine-safe struct owning per-instrument state, persisted to disk on
// every mutation — adapted from a crypto scan-decide-execute loop into an
// options signal/market-state FSM.
package cvd

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/kaviarasu301/imperium-exec-core/internal/execution"
	"github.com/kaviarasu301/imperium-exec-core/internal/journal"
	"github.com/kaviarasu301/imperium-exec-core/internal/logger"
	"github.com/kaviarasu301/imperium-exec-core/internal/model"
	"github.com/kaviarasu301/imperium-exec-core/internal/tracing"
)

var log = logger.With("cvd")

// strategyPriority ranks strategies for the reversal rule: a higher number
// outranks a lower one. Strategies absent from this table (open_drive,
// cvd_range_breakout) never win a reversal.
var strategyPriority = map[model.StrategyType]int{
	model.StrategyATRReversal:   1,
	model.StrategyATRDivergence: 2,
	model.StrategyEMACross:      3,
	model.StrategyRangeBreakout: 4,
}

const stackingWindow = 15 * time.Minute

// Signal is one incoming entry signal.
type Signal struct {
	SignalID                   string
	InstrumentToken            int64
	Side                       model.Side
	StrategyType               model.StrategyType
	Timestamp                  time.Time
	EntryUnderlying            float64
	StoplossPoints             *float64
	MaxProfitGivebackPoints    *float64
	MaxProfitGivebackStrategies []string
	LotSize                    int
	Lots                       int
	Route                      string // "buy_exit_panel" or "single_strike"
}

// StrikeLadder resolves the ATM contract for a side, sourced from the
// (out-of-scope) strike ladder snapshot.
type StrikeLadder interface {
	ResolveATM(instrumentToken int64, side model.Side) (model.Contract, bool)
}

// PositionChecker reports whether a tradingsymbol currently has a live
// position, satisfied structurally by *position.Manager.
type PositionChecker interface {
	HasPosition(tradingSymbol string) bool
}

// PendingOrderChecker reports whether a tradingsymbol has a pending order
// outstanding and, if so, its order id and current limit price.
type PendingOrderChecker interface {
	PendingOrderFor(tradingSymbol string) (orderID string, limitPrice float64, ok bool)
}

// BuyExitExecutor delegates a multi-strike buy_exit_panel order, an
// external collaborator out of this spec's scope.
type BuyExitExecutor func(token int64, side model.Side, contract model.Contract, quantity int) error

// Coordinator is the CVD Automation Coordinator for one trading mode.
type Coordinator struct {
	mu sync.Mutex

	mode    model.TradingMode
	baseDir string

	trades      map[int64]*model.AutomationTrade
	marketState map[int64]model.MarketStateFrame
	disabled    map[int64]bool

	journal      *journal.Journal
	strikeLadder StrikeLadder
	exec         *execution.Stack
	placeOrder   execution.PlaceOrderFunc
	positions    PositionChecker
	pending      PendingOrderChecker
	cancelOrder  func(orderID string) error
	buyExit      BuyExitExecutor

	retryStop map[int64]chan struct{}

	now func() time.Time
}

// New builds a Coordinator. Any of strikeLadder/positions/pending/buyExit
// may be nil in tests that only exercise the pure decision logic.
func New(mode model.TradingMode, baseDir string, j *journal.Journal, strikeLadder StrikeLadder, exec *execution.Stack, placeOrder execution.PlaceOrderFunc, positions PositionChecker, pending PendingOrderChecker, cancelOrder func(string) error, buyExit BuyExitExecutor) *Coordinator {
	return &Coordinator{
		mode:         mode,
		baseDir:      baseDir,
		trades:       map[int64]*model.AutomationTrade{},
		marketState:  map[int64]model.MarketStateFrame{},
		disabled:     map[int64]bool{},
		journal:      j,
		strikeLadder: strikeLadder,
		exec:         exec,
		placeOrder:   placeOrder,
		positions:    positions,
		pending:      pending,
		cancelOrder:  cancelOrder,
		buyExit:      buyExit,
		retryStop:    map[int64]chan struct{}{},
		now:          time.Now,
	}
}

func (c *Coordinator) statePath() string {
	return filepath.Join(c.baseDir, fmt.Sprintf("cvd_automation_state_%s.json", modeLower(c.mode)))
}

func modeLower(m model.TradingMode) string {
	switch m {
	case model.ModeLive:
		return "live"
	case model.ModePaper:
		return "paper"
	default:
		return string(m)
	}
}

func isAfterCutoff(t time.Time) bool {
	local := t.Local()
	h, m, s := local.Clock()
	if h > 15 {
		return true
	}
	if h == 15 && (m > 0 || s > 0) {
		return true
	}
	return h == 15 && m == 0 && s == 0 // exactly 15:00:00 is post-cutoff
}

// OnMarketUpdate records the latest per-bar frame for a token and runs the
// per-bar update rules (trailing, exits, cutoff) for any active trade on
// that token.
func (c *Coordinator) OnMarketUpdate(frame model.MarketStateFrame) {
	if isAfterCutoff(frame.Timestamp) {
		c.forceExitAllActive("AUTO_3PM_CUTOFF")
		return
	}

	c.mu.Lock()
	c.marketState[frame.InstrumentToken] = frame
	trade, ok := c.trades[frame.InstrumentToken]
	c.mu.Unlock()
	if !ok {
		return
	}

	if !c.tradeStillLive(trade) {
		c.mu.Lock()
		delete(c.trades, frame.InstrumentToken)
		c.mu.Unlock()
		c.persist()
		return
	}

	if !finite(frame.PriceClose) || frame.PriceClose <= 0 {
		return
	}

	c.mu.Lock()
	favorable := favorableMove(trade, frame.PriceClose)
	if favorable > trade.MaxFavorablePts {
		trade.MaxFavorablePts = favorable
	}
	applyTrailing(trade)

	reason := exitReason(trade, frame, favorable)
	c.mu.Unlock()

	if reason != "" {
		c.exitAllSymbols(trade, reason)
		c.mu.Lock()
		delete(c.trades, frame.InstrumentToken)
		c.mu.Unlock()
		c.persist()
		return
	}

	c.mu.Lock()
	trade.LastPriceClose = frame.PriceClose
	trade.LastEMA10 = frame.EMA10
	trade.LastEMA51 = frame.EMA51
	trade.LastCVDClose = frame.CVDClose
	trade.LastCVDEMA10 = frame.CVDEMA10
	trade.LastCVDEMA51 = frame.CVDEMA51
	c.mu.Unlock()
	c.persist()
}

// tradeStillLive implements rule 2 of the per-bar update: if none of the
// trade's symbols have a live position, start (or continue) the
// pending-retry loop when a pending order still exists; otherwise the
// trade is dropped.
func (c *Coordinator) tradeStillLive(trade *model.AutomationTrade) bool {
	if c.positions == nil {
		return true
	}
	for _, symbol := range trade.TradingSymbols {
		if c.positions.HasPosition(symbol) {
			return true
		}
	}
	if c.pending != nil {
		for _, symbol := range trade.TradingSymbols {
			if _, _, ok := c.pending.PendingOrderFor(symbol); ok {
				c.startPendingRetryLoop(trade.InstrumentToken, symbol, trade.SignalTimestamp, trade.StrategyType)
				return true
			}
		}
	}
	return false
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func favorableMove(trade *model.AutomationTrade, priceClose float64) float64 {
	if trade.SignalSide == model.SideLong {
		return priceClose - trade.EntryUnderlying
	}
	return trade.EntryUnderlying - priceClose
}

// applyTrailing tightens sl_underlying per the strategy recorded at entry
// (never the current bar's strategy filter) — the trade's locked strategy
// decides the step.
func applyTrailing(trade *model.AutomationTrade) {
	var step float64
	switch trade.StrategyType {
	case model.StrategyATRReversal:
		step = trade.ATRTrailingStepPoints
		if step <= 0 {
			step = 10
		}
	case model.StrategyEMACross, model.StrategyRangeBreakout:
		if trade.MaxFavorablePts < 200 {
			return
		}
		step = 100
	default:
		return
	}

	steps := math.Floor(trade.MaxFavorablePts / step)
	if steps <= 0 {
		return
	}
	trail := steps * step

	long := trade.SignalSide == model.SideLong
	if long {
		candidate := trade.EntryUnderlying - trade.StoplossPoints + trail
		if candidate > trade.SLUnderlying {
			trade.SLUnderlying = candidate
		}
	} else {
		candidate := trade.EntryUnderlying + trade.StoplossPoints - trail
		if candidate < trade.SLUnderlying {
			trade.SLUnderlying = candidate
		}
	}
}

// exitReason evaluates the first-match-wins exit ladder: SL, then max
// profit giveback, then the strategy-specific cross trigger.
func exitReason(trade *model.AutomationTrade, frame model.MarketStateFrame, favorable float64) string {
	long := trade.SignalSide == model.SideLong

	if long && frame.PriceClose <= trade.SLUnderlying {
		return "AUTO_SL"
	}
	if !long && frame.PriceClose >= trade.SLUnderlying {
		return "AUTO_SL"
	}

	if trade.MaxProfitGivebackPoints > 0 {
		inSet := len(trade.MaxProfitGivebackStrategies) == 0 || trade.MaxProfitGivebackStrategies[string(trade.StrategyType)]
		giveback := trade.MaxFavorablePts - favorable
		if inSet && giveback >= trade.MaxProfitGivebackPoints {
			return "AUTO_MAX_PROFIT_GIVEBACK"
		}
	}

	switch trade.StrategyType {
	case model.StrategyEMACross:
		if crossedAgainst(trade.LastPriceClose, trade.LastEMA10, frame.PriceClose, frame.EMA10, long) {
			return "AUTO_EMA10_CROSS"
		}
		if crossedAgainst(trade.LastPriceClose, trade.LastEMA51, frame.PriceClose, frame.EMA51, long) {
			return "AUTO_EMA51_CROSS"
		}
	case model.StrategyRangeBreakout:
		if crossedAgainst(trade.LastCVDClose, trade.LastCVDEMA51, frame.CVDClose, frame.CVDEMA51, long) {
			return "AUTO_BREAKOUT_EXIT"
		}
	case model.StrategyATRReversal:
		if crossedAgainst(trade.LastCVDClose, trade.LastCVDEMA10, frame.CVDClose, frame.CVDEMA10, long) {
			return "AUTO_ATR_REVERSAL_EXIT"
		}
	}
	return ""
}

// crossedAgainst detects A crossing from favoring the position to opposing
// it: for a long, A falling from at-or-above B to below B; for a short,
// A rising from at-or-below B to above B.
func crossedAgainst(prevA, prevB, curA, curB float64, long bool) bool {
	if prevA == 0 && prevB == 0 {
		return false // no prior bar recorded yet
	}
	if long {
		return prevA >= prevB && curA < curB
	}
	return prevA <= prevB && curA > curB
}

// forceExitAllActive exits every tracked trade's symbols and clears the
// active set, used by the 15:00 cutoff on both the signal and market-state
// paths.
func (c *Coordinator) forceExitAllActive(reason string) {
	c.mu.Lock()
	trades := make([]*model.AutomationTrade, 0, len(c.trades))
	for _, t := range c.trades {
		trades = append(trades, t)
	}
	c.trades = map[int64]*model.AutomationTrade{}
	c.mu.Unlock()

	for _, t := range trades {
		c.exitAllSymbols(t, reason)
	}
	if len(trades) > 0 {
		c.persist()
	}
}

func (c *Coordinator) exitAllSymbols(trade *model.AutomationTrade, reason string) {
	for _, symbol := range trade.TradingSymbols {
		c.journal.Append("position_exit", "cvd_exit", "", "", "", nil, map[string]any{
			"tradingsymbol": symbol,
			"outcome":       reason,
			"instrument_token": trade.InstrumentToken,
		})
	}
	c.stopPendingRetryLoop(trade.InstrumentToken)
}

// OnSignal applies the entry rules for a fresh signal event.
func (c *Coordinator) OnSignal(sig Signal) {
	ts := sig.Timestamp
	if ts.IsZero() {
		ts = c.now()
	}

	if isAfterCutoff(ts) {
		c.forceExitAllActive("AUTO_3PM_CUTOFF")
		return
	}

	c.mu.Lock()
	frame, hasFrame := c.marketState[sig.InstrumentToken]
	disabled := c.disabled[sig.InstrumentToken]
	c.mu.Unlock()

	if disabled || !hasFrame || !frame.Enabled {
		return
	}
	if sig.Side != model.SideLong && sig.Side != model.SideShort {
		return
	}

	c.mu.Lock()
	existing, hasExisting := c.trades[sig.InstrumentToken]
	c.mu.Unlock()

	if hasExisting {
		if existing.SignalSide == sig.Side {
			if ts.Sub(existing.SignalTimestamp) < stackingWindow {
				return // stacking rule: same-side re-entry before 15 minutes elapsed is dropped
			}
		} else {
			incoming, hasIncoming := strategyPriority[sig.StrategyType]
			current, hasCurrent := strategyPriority[existing.StrategyType]
			if !hasIncoming || !hasCurrent || incoming <= current {
				return // incoming must strictly outrank the active trade's strategy
			}
			c.exitAllSymbols(existing, "AUTO_REVERSE")
			c.mu.Lock()
			delete(c.trades, sig.InstrumentToken)
			c.mu.Unlock()
		}
	}

	if c.strikeLadder == nil {
		return
	}
	contract, ok := c.strikeLadder.ResolveATM(sig.InstrumentToken, sig.Side)
	if !ok {
		return
	}

	lots := sig.Lots
	if lots <= 0 {
		lots = 1
	}
	lotSize := sig.LotSize
	if lotSize <= 0 {
		lotSize = contract.LotSize
	}
	if lotSize <= 0 {
		lotSize = 1
	}
	quantity := lotSize * lots
	if quantity < 1 {
		quantity = 1
	}

	stoplossPoints := orDefault(sig.StoplossPoints, &frame.StoplossPoints, 50.0)
	givebackPoints := orDefault(sig.MaxProfitGivebackPoints, ptrOrNil(frame.MaxProfitGivebackPoints), 0)
	givebackSet := normalizeSet(coalesceSlices(sig.MaxProfitGivebackStrategies, frame.MaxProfitGivebackStrategies))

	var slUnderlying float64
	if sig.Side == model.SideLong {
		slUnderlying = sig.EntryUnderlying - stoplossPoints
	} else {
		slUnderlying = sig.EntryUnderlying + stoplossPoints
	}

	trade := &model.AutomationTrade{
		InstrumentToken:             sig.InstrumentToken,
		SignalSide:                  sig.Side,
		SignalTimestamp:             ts,
		StrategyType:                sig.StrategyType,
		EntryUnderlying:             sig.EntryUnderlying,
		SLUnderlying:                slUnderlying,
		StoplossPoints:              stoplossPoints,
		MaxProfitGivebackPoints:     givebackPoints,
		MaxProfitGivebackStrategies: givebackSet,
		ATRTrailingStepPoints:       10,
		TradingSymbols:              []string{contract.TradingSymbol},
		Quantity:                    quantity,
		LastPriceClose:              sig.EntryUnderlying,
	}

	route := frame.Route
	if sig.Route != "" {
		route = sig.Route
	}

	if route == "buy_exit_panel" {
		if c.buyExit != nil {
			if err := c.buyExit(sig.InstrumentToken, sig.Side, contract, quantity); err != nil {
				log.ErrorErr(err, "buy_exit_panel delegation failed")
			}
		}
	} else if c.exec != nil && c.placeOrder != nil {
		req := model.ExecutionRequest{
			TradingSymbol:   contract.TradingSymbol,
			TransactionType: model.TransactionBuy,
			Quantity:        quantity,
			OrderType:       model.OrderMarket,
			LTP:             contract.Quote.LTP,
			Bid:             contract.Quote.Bid,
			Ask:             contract.Quote.Ask,
			ExecutionAlgo:   model.AlgoImmediate,
			Metadata:        map[string]any{"auto_token": sig.InstrumentToken, "signal_id": sig.SignalID},
		}
		if _, err := c.exec.Execute(req, c.placeOrder, false, tracing.New(nil)); err != nil {
			c.journal.Append("cvd_entry_error", "on_signal", "", "", "", nil, map[string]any{
				"instrument_token": sig.InstrumentToken,
				"error":            err.Error(),
			})
		}
	}

	c.mu.Lock()
	c.trades[sig.InstrumentToken] = trade
	c.mu.Unlock()
	c.persist()
}

func orDefault(p *float64, fallback *float64, def float64) float64 {
	if p != nil {
		return *p
	}
	if fallback != nil {
		return *fallback
	}
	return def
}

func ptrOrNil(v float64) *float64 {
	if v == 0 {
		return nil
	}
	return &v
}

func coalesceSlices(a, b []string) []string {
	if len(a) > 0 {
		return a
	}
	return b
}

func normalizeSet(strategies []string) map[string]bool {
	if len(strategies) == 0 {
		return map[string]bool{}
	}
	out := make(map[string]bool, len(strategies))
	for _, s := range strategies {
		out[s] = true
	}
	return out
}

// DisableAll marks every token's automation disabled, satisfying
// risk.AutomationDisabler for the kill-switch activation path.
func (c *Coordinator) DisableAll() {
	c.mu.Lock()
	for token := range c.marketState {
		c.disabled[token] = true
	}
	for token, frame := range c.marketState {
		frame.Enabled = false
		c.marketState[token] = frame
	}
	c.trades = map[int64]*model.AutomationTrade{}
	c.mu.Unlock()
	c.persist()
}

// startPendingRetryLoop ticks every 10s: cancel the pending order,
// recompute a smart limit price, resubmit, bump the retry counter. Stops
// at 6 attempts, once a position exists, once no pending order remains, or
// once the strategy-specific window closes.
func (c *Coordinator) startPendingRetryLoop(token int64, symbol string, signalTime time.Time, strategy model.StrategyType) {
	c.mu.Lock()
	if _, exists := c.retryStop[token]; exists {
		c.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	c.retryStop[token] = stop
	c.mu.Unlock()

	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if c.PendingRetryTick(token, symbol, signalTime, strategy) {
					c.stopPendingRetryLoop(token)
					return
				}
			}
		}
	}()
}

func (c *Coordinator) stopPendingRetryLoop(token int64) {
	c.mu.Lock()
	stop, ok := c.retryStop[token]
	if ok {
		delete(c.retryStop, token)
	}
	c.mu.Unlock()
	if ok {
		close(stop)
	}
}

// PendingRetryTick runs one iteration of the pending-order retry loop and
// reports whether the loop should stop. Exported so callers (and tests)
// can drive it without waiting on the real 10-second ticker.
func (c *Coordinator) PendingRetryTick(token int64, symbol string, signalTime time.Time, strategy model.StrategyType) bool {
	c.mu.Lock()
	trade, ok := c.trades[token]
	c.mu.Unlock()
	if !ok {
		return true
	}

	if c.positions != nil && c.positions.HasPosition(symbol) {
		return true
	}
	if strategy == model.StrategyOpenDrive && c.now().Sub(signalTime) > 3*time.Minute {
		return true
	}

	if c.pending == nil {
		return true
	}
	orderID, limitPrice, ok := c.pending.PendingOrderFor(symbol)
	if !ok {
		return true
	}

	if c.cancelOrder != nil {
		if err := c.cancelOrder(orderID); err != nil {
			log.ErrorErr(err, "pending retry cancel failed")
		}
	}

	newPrice := limitPrice // smart-limit recompute is a broker/market-data concern outside this package's scope; keep last known price as the floor
	if c.placeOrder != nil {
		args := execution.OrderArgs{
			TradingSymbol:   symbol,
			TransactionType: model.TransactionBuy,
			Quantity:        trade.Quantity,
			OrderType:       model.OrderLimit,
			Price:           &newPrice,
		}
		if _, err := c.placeOrder(args); err != nil {
			log.ErrorErr(err, "pending retry resubmit failed")
		}
	}

	c.mu.Lock()
	trade.PendingRetryAttempts++
	attempts := trade.PendingRetryAttempts
	c.mu.Unlock()
	c.persist()

	return attempts >= 6
}

// MarketStateFor returns the latest known frame for a token, if any.
func (c *Coordinator) MarketStateFor(token int64) (model.MarketStateFrame, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.marketState[token]
	return f, ok
}

// Trade returns a copy of the active trade for a token, if any.
func (c *Coordinator) Trade(token int64) (model.AutomationTrade, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.trades[token]
	if !ok {
		return model.AutomationTrade{}, false
	}
	return *t, true
}

type stateDoc struct {
	SavedAt     string                     `json:"saved_at"`
	TradingMode string                     `json:"trading_mode"`
	Positions   map[string]json.RawMessage `json:"positions"`
}

// persist atomically serializes the active trades map and trading mode to
// disk, ignoring failures beyond a log line (durability best-effort, never
// blocking the decision path).
func (c *Coordinator) persist() {
	if c.baseDir == "" {
		return
	}
	c.mu.Lock()
	positions := make(map[string]json.RawMessage, len(c.trades))
	for token, trade := range c.trades {
		data, err := json.Marshal(trade)
		if err != nil {
			continue
		}
		positions[strconv.FormatInt(token, 10)] = data
	}
	c.mu.Unlock()

	doc := stateDoc{
		SavedAt:     time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
		TradingMode: string(c.mode),
		Positions:   positions,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		log.ErrorErr(err, "cvd state marshal failed")
		return
	}
	path := c.statePath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		log.ErrorErr(err, "cvd state mkdir failed")
		return
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		log.ErrorErr(err, "cvd state write failed")
		return
	}
	if err := os.Rename(tmp, path); err != nil {
		log.ErrorErr(err, "cvd state rename failed")
	}
}

// Load restores trades from disk, tolerating a malformed file or
// individual malformed/non-object entries by skipping them: log, ignore,
// continue with empty state.
func (c *Coordinator) Load() {
	path := c.statePath()
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}

	var doc stateDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		log.Warnf("cvd state file corrupt, starting empty: %v", err)
		return
	}

	trades := map[int64]*model.AutomationTrade{}
	for key, raw := range doc.Positions {
		token, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			continue
		}
		var trade model.AutomationTrade
		if err := json.Unmarshal(raw, &trade); err != nil {
			continue
		}
		trades[token] = &trade
	}

	c.mu.Lock()
	c.trades = trades
	c.mu.Unlock()
}
