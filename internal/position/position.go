// Package position implements the Position Manager: the authoritative
// in-process ledger of open positions and pending orders. It computes
// PnL on every tick, enforces SL/TP/TSL, triggers
// portfolio-level kill switches, averages correctly on scale-ins, and
// reconciles against broker state. Grounded on the reference tree's
// positionFirstSeenTime-style in-memory maps in trader/auto_trader.go,
// adapted from a per-exchange crypto ledger into an options SL/TP/TSL
// ledger.
package position

import (
	"sync"
	"time"

	"github.com/kaviarasu301/imperium-exec-core/internal/journal"
	"github.com/kaviarasu301/imperium-exec-core/internal/logger"
	"github.com/kaviarasu301/imperium-exec-core/internal/model"
	"github.com/kaviarasu301/imperium-exec-core/internal/telemetry"
)

var log = logger.With("position")

// BrokerPosition is one row of the broker's positions().net payload.
type BrokerPosition struct {
	TradingSymbol   string
	InstrumentToken int64
	Quantity        int
	AvgPrice        float64
	LTP             float64
	Product         model.Product
	Exchange        model.Exchange
	GroupName       string
	Contract        model.Contract
}

// BrokerPendingOrder is one row of the broker's orders() payload, already
// filtered to the pending-status set.
type BrokerPendingOrder = model.PendingOrder

// ExitOrderFunc places a live MARKET order in the inverse direction of an
// exit; unused in paper mode, where the UI is assumed to have already
// routed the exit.
type ExitOrderFunc func(tradingSymbol string, txnType model.TransactionType, qty int, product model.Product) (orderID string, err error)

// Manager is the Position Manager for one trading mode.
type Manager struct {
	mu sync.Mutex

	mode model.TradingMode

	positions map[string]*model.Position // keyed by tradingsymbol
	pending   []model.PendingOrder

	exiting map[string]bool // in-progress exit set, for idempotent ExitPosition

	journal   *journal.Journal
	dashboard *telemetry.Dashboard
	placeExit ExitOrderFunc

	refreshInProgress bool

	portfolioStopLoss *float64
	portfolioTarget   *float64
	portfolioFired    bool
}

// NewManager builds a Position Manager. placeExit may be nil in paper mode.
func NewManager(mode model.TradingMode, j *journal.Journal, dash *telemetry.Dashboard, placeExit ExitOrderFunc) *Manager {
	return &Manager{
		mode:      mode,
		positions: map[string]*model.Position{},
		exiting:   map[string]bool{},
		journal:   j,
		dashboard: dash,
		placeExit: placeExit,
	}
}

// SetPortfolioLimits arms the portfolio-level kill switches; either may be
// nil to disable that side.
func (m *Manager) SetPortfolioLimits(stopLoss, target *float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.portfolioStopLoss = stopLoss
	m.portfolioTarget = target
}

// ArmPortfolioCycle resets the latch so the portfolio kill switch can fire
// again (called at the new-trading-day boundary).
func (m *Manager) ArmPortfolioCycle() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.portfolioFired = false
}

// RefreshFromAPI implements the refresh protocol. Only one refresh runs at
// a time; an overlapping call is discarded rather than queued, via the
// `_refresh_in_progress` gate.
func (m *Manager) RefreshFromAPI(brokerPositions []BrokerPosition, brokerPending []model.PendingOrder) {
	m.mu.Lock()
	if m.refreshInProgress {
		m.mu.Unlock()
		log.Warn("refresh already in progress, discarding overlapping call")
		return
	}
	m.refreshInProgress = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.refreshInProgress = false
		m.mu.Unlock()
	}()

	seen := map[string]bool{}

	for _, bp := range brokerPositions {
		if bp.Quantity == 0 {
			continue
		}
		seen[bp.TradingSymbol] = true
		m.applyBrokerPosition(bp)
	}

	m.mu.Lock()
	var removed []string
	for symbol := range m.positions {
		if !seen[symbol] {
			removed = append(removed, symbol)
		}
	}
	for _, symbol := range removed {
		delete(m.positions, symbol)
		delete(m.exiting, symbol)
	}
	for _, pos := range m.positions {
		pos.IsNew = false
	}
	m.mu.Unlock()

	for _, symbol := range removed {
		m.journal.Append("position_removed", "refresh_from_api", "", "", "", nil, map[string]any{
			"tradingsymbol": symbol,
		})
	}

	m.mu.Lock()
	m.pending = filterPending(brokerPending)
	m.mu.Unlock()

	m.pruneExpired(time.Now())

	m.journal.Append("refresh_completed", "refresh_from_api", "", "", "", nil, map[string]any{
		"ok": true,
	})
}

func filterPending(orders []model.PendingOrder) []model.PendingOrder {
	var out []model.PendingOrder
	for _, o := range orders {
		switch o.Status {
		case model.StatusTriggerPending, model.StatusOpen, model.StatusAMORequired:
			out = append(out, o)
		}
	}
	return out
}

func (m *Manager) applyBrokerPosition(bp BrokerPosition) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.positions[bp.TradingSymbol]
	if !ok {
		pos := &model.Position{
			Contract:      bp.Contract,
			TradingSymbol: bp.TradingSymbol,
			Quantity:      bp.Quantity,
			AvgPrice:      bp.AvgPrice,
			LTP:           bp.LTP,
			Product:       bp.Product,
			Exchange:      bp.Exchange,
			EntryTime:     time.Now(),
			GroupName:     bp.GroupName,
			IsNew:         true,
		}
		pos.PnL = (pos.LTP - pos.AvgPrice) * float64(pos.Quantity)
		m.positions[bp.TradingSymbol] = pos
		return
	}

	oldQty := existing.Quantity
	existing.Quantity = bp.Quantity
	existing.AvgPrice = bp.AvgPrice
	existing.LTP = bp.LTP
	existing.Contract = bp.Contract
	existing.Product = bp.Product
	existing.Exchange = bp.Exchange
	if bp.GroupName != "" {
		existing.GroupName = bp.GroupName
	}

	if absInt(bp.Quantity) > absInt(oldQty) && !existing.IsNew && hasRiskSet(existing) {
		scaleRiskProportionally(existing, oldQty)
	}

	existing.PnL = (existing.LTP - existing.AvgPrice) * float64(existing.Quantity)
}

func hasRiskSet(pos *model.Position) bool {
	return pos.StopLossPrice != nil || pos.TargetPrice != nil
}

// scaleRiskProportionally preserves proportional rupee risk across a
// scale-in: new_risk = old_risk * (|new_qty| / |old_qty|), then re-derives
// SL/TP around the new average price, side-aware.
func scaleRiskProportionally(pos *model.Position, oldQty int) {
	if oldQty == 0 {
		return
	}
	ratio := float64(absInt(pos.Quantity)) / float64(absInt(oldQty))
	long := pos.Quantity > 0

	if pos.StopLossPrice != nil {
		oldRisk := riskAmount(pos.AvgPrice, *pos.StopLossPrice, oldQty)
		newRisk := oldRisk * ratio
		perUnit := newRisk / float64(absInt(pos.Quantity))
		var sl float64
		if long {
			sl = pos.AvgPrice - perUnit
		} else {
			sl = pos.AvgPrice + perUnit
		}
		pos.StopLossPrice = &sl
	}
	if pos.TargetPrice != nil {
		oldRisk := riskAmount(pos.AvgPrice, *pos.TargetPrice, oldQty)
		newRisk := oldRisk * ratio
		perUnit := newRisk / float64(absInt(pos.Quantity))
		var tp float64
		if long {
			tp = pos.AvgPrice + perUnit
		} else {
			tp = pos.AvgPrice - perUnit
		}
		pos.TargetPrice = &tp
	}
}

func riskAmount(avg, level float64, qty int) float64 {
	diff := avg - level
	if diff < 0 {
		diff = -diff
	}
	return diff * float64(absInt(qty))
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// OnTick updates every position whose contract matches instrumentToken
// with the fresh LTP, recomputes PnL, tightens the trailing stop, and
// checks for an SL/TP breach.
func (m *Manager) OnTick(instrumentToken int64, ltp float64) {
	var toExit []*model.Position

	m.mu.Lock()
	for _, pos := range m.positions {
		if pos.Contract.InstrumentToken != instrumentToken {
			continue
		}
		pos.LTP = ltp
		pos.PnL = (ltp - pos.AvgPrice) * float64(pos.Quantity)

		if pos.TrailingStopLoss != nil {
			tightenTrailingStop(pos, ltp)
		}

		if breached(pos) {
			toExit = append(toExit, pos)
		}
	}
	m.mu.Unlock()

	for _, pos := range toExit {
		m.ExitPosition(pos.TradingSymbol, "SL_TP_BREACH")
	}

	m.evaluatePortfolioKillSwitch()
}

// tightenTrailingStop monotonically tightens stop_loss_price: long moves
// it up toward ltp-tsl, short moves it down toward ltp+tsl; it never
// widens.
func tightenTrailingStop(pos *model.Position, ltp float64) {
	tsl := *pos.TrailingStopLoss
	long := pos.Quantity > 0

	var candidate float64
	if long {
		candidate = ltp - tsl
	} else {
		candidate = ltp + tsl
	}

	if pos.StopLossPrice == nil {
		pos.StopLossPrice = &candidate
		return
	}
	current := *pos.StopLossPrice
	if long {
		if candidate > current {
			pos.StopLossPrice = &candidate
		}
	} else {
		if candidate < current {
			pos.StopLossPrice = &candidate
		}
	}
}

func breached(pos *model.Position) bool {
	long := pos.Quantity > 0
	if pos.StopLossPrice != nil {
		if long && pos.LTP <= *pos.StopLossPrice {
			return true
		}
		if !long && pos.LTP >= *pos.StopLossPrice {
			return true
		}
	}
	if pos.TargetPrice != nil {
		if long && pos.LTP >= *pos.TargetPrice {
			return true
		}
		if !long && pos.LTP <= *pos.TargetPrice {
			return true
		}
	}
	return false
}

func (m *Manager) evaluatePortfolioKillSwitch() {
	m.mu.Lock()
	if m.portfolioFired {
		m.mu.Unlock()
		return
	}
	total := m.totalPnLLocked()
	sl := m.portfolioStopLoss
	target := m.portfolioTarget
	var outcome string
	switch {
	case sl != nil && total <= *sl:
		outcome = "STOP_LOSS"
	case target != nil && total >= *target:
		outcome = "TARGET"
	}
	if outcome != "" {
		m.portfolioFired = true
	}
	m.mu.Unlock()

	if outcome != "" {
		m.journal.Append("portfolio_exit_triggered", "evaluate_portfolio", "", "", "", nil, map[string]any{
			"outcome": outcome,
			"pnl":     total,
		})
		m.BulkExitAll(outcome)
	}
}

func (m *Manager) totalPnLLocked() float64 {
	var total float64
	for _, pos := range m.positions {
		total += pos.PnL
	}
	return total
}

// TotalUnrealizedPnL returns the sum of every tracked position's PnL.
func (m *Manager) TotalUnrealizedPnL() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totalPnLLocked()
}

// DistinctSymbolCount returns the number of distinct tradingsymbols held.
func (m *Manager) DistinctSymbolCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.positions)
}

// GrossOpenQuantity returns the sum of |quantity| across all positions.
func (m *Manager) GrossOpenQuantity() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int
	for _, pos := range m.positions {
		total += absInt(pos.Quantity)
	}
	return total
}

// IsNewSymbol reports whether tradingSymbol is not currently tracked.
func (m *Manager) IsNewSymbol(tradingSymbol string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.positions[tradingSymbol]
	return !ok
}

// ExitPosition is idempotent per symbol via an in-progress set. Paper mode
// assumes the UI already routed the exit and just drops the entry; live
// mode sends a MARKET order in the inverse direction for |quantity|, then
// removes the entry optimistically.
func (m *Manager) ExitPosition(tradingSymbol, reason string) {
	m.mu.Lock()
	if m.exiting[tradingSymbol] {
		m.mu.Unlock()
		return
	}
	pos, ok := m.positions[tradingSymbol]
	if !ok {
		m.mu.Unlock()
		return
	}
	m.exiting[tradingSymbol] = true
	pos.IsExiting = true
	qty := pos.Quantity
	product := pos.Product
	pnl := pos.PnL
	m.mu.Unlock()

	if m.mode == model.ModeLive && m.placeExit != nil {
		txn := model.TransactionSell
		if qty < 0 {
			txn = model.TransactionBuy
		}
		if _, err := m.placeExit(tradingSymbol, txn, absInt(qty), product); err != nil {
			log.ErrorErr(err, "live exit order placement failed")
		}
	}

	m.mu.Lock()
	delete(m.positions, tradingSymbol)
	delete(m.exiting, tradingSymbol)
	m.mu.Unlock()

	m.journal.Append("position_exit", "exit_position", "", "", "", nil, map[string]any{
		"tradingsymbol": tradingSymbol,
		"outcome":       reason,
		"pnl":           pnl,
	})
	m.journal.Append("position_removed", "exit_position", "", "", "", nil, map[string]any{
		"tradingsymbol": tradingSymbol,
	})
	if m.dashboard != nil {
		m.dashboard.Incr("positions_exited", 1)
	}
}

// BulkExitAll exits every currently tracked position, satisfying
// risk.PositionBulkExiter for the kill-switch activation path.
func (m *Manager) BulkExitAll(reason string) {
	m.mu.Lock()
	symbols := make([]string, 0, len(m.positions))
	for symbol := range m.positions {
		symbols = append(symbols, symbol)
	}
	m.mu.Unlock()

	for _, symbol := range symbols {
		m.ExitPosition(symbol, reason)
	}
}

// pruneExpired removes positions whose contract has expired as of today,
// run after every synchronize pass.
func (m *Manager) pruneExpired(today time.Time) {
	todayDate := today.Truncate(24 * time.Hour)

	m.mu.Lock()
	var expired []string
	for symbol, pos := range m.positions {
		if !pos.Contract.Expiry.IsZero() && pos.Contract.Expiry.Before(todayDate) {
			expired = append(expired, symbol)
		}
	}
	for _, symbol := range expired {
		delete(m.positions, symbol)
		delete(m.exiting, symbol)
	}
	m.mu.Unlock()

	for _, symbol := range expired {
		m.journal.Append("position_removed", "prune_expired", "", "", "", nil, map[string]any{
			"tradingsymbol": symbol,
			"reason":        "expired",
		})
	}
}

// SetSLTP sets or clears the stop-loss/target/trailing-stop for a tracked
// position; nil clears that field.
func (m *Manager) SetSLTP(tradingSymbol string, stopLoss, target, trailingStop *float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pos, ok := m.positions[tradingSymbol]
	if !ok {
		return
	}
	pos.StopLossPrice = stopLoss
	pos.TargetPrice = target
	pos.TrailingStopLoss = trailingStop
}

// Positions returns a read-only snapshot of every tracked position, safe
// for fan-out to other subsystems (telemetry, status API).
func (m *Manager) Positions() []model.Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Position, 0, len(m.positions))
	for _, pos := range m.positions {
		out = append(out, *pos)
	}
	return out
}

// PendingOrders returns a read-only snapshot of the current pending list.
func (m *Manager) PendingOrders() []model.PendingOrder {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.PendingOrder, len(m.pending))
	copy(out, m.pending)
	return out
}

// Position looks up a single tracked position by tradingsymbol.
func (m *Manager) Position(tradingSymbol string) (model.Position, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pos, ok := m.positions[tradingSymbol]
	if !ok {
		return model.Position{}, false
	}
	return *pos, true
}

// HasPosition reports whether tradingSymbol is currently tracked, satisfying
// cvd.PositionChecker.
func (m *Manager) HasPosition(tradingSymbol string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.positions[tradingSymbol]
	return ok
}

// PendingOrderFor returns the first pending order for tradingSymbol, if any,
// satisfying cvd.PendingOrderChecker.
func (m *Manager) PendingOrderFor(tradingSymbol string) (orderID string, limitPrice float64, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.pending {
		if o.TradingSymbol == tradingSymbol {
			return o.OrderID, o.Price, true
		}
	}
	return "", 0, false
}
