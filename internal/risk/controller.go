package risk

import (
	"sync"
	"time"

	"github.com/kaviarasu301/imperium-exec-core/internal/journal"
	"github.com/kaviarasu301/imperium-exec-core/internal/model"
)

// PositionSnapshot is the minimal view the drawdown monitor needs from the
// Position Manager — the live set of open positions' unrealized PnL and
// their distinct symbols/gross quantity.
type PositionSnapshot struct {
	Symbols       map[string]bool
	GrossQuantity int
	UnrealizedPnL float64
}

// LedgerReader is the minimal view the drawdown monitor needs from the
// Trade Ledger.
type LedgerReader interface {
	RealizedPnLForDate(sessionDate string) (float64, error)
}

// AutomationDisabler lets the kill switch reach into the CVD Coordinator
// without a package cycle.
type AutomationDisabler interface {
	DisableAll()
}

// PositionBulkExiter lets the kill switch reach into the Position Manager
// without a package cycle.
type PositionBulkExiter interface {
	BulkExitAll(reason string)
}

// Controller is the live Risk Controller (RMS): pre-trade gate plus
// drawdown/kill-switch monitor.
type Controller struct {
	mu sync.Mutex

	limits model.RiskLimits

	killSwitchActive bool
	killSwitchReason string

	intradayPeakPnL float64

	journal *journal.Journal

	ledger       LedgerReader
	automations  AutomationDisabler
	positions    PositionBulkExiter
}

// NewController builds a Controller with the given limits.
func NewController(limits model.RiskLimits, j *journal.Journal, ledger LedgerReader, automations AutomationDisabler, positions PositionBulkExiter) *Controller {
	return &Controller{
		limits:      limits,
		journal:     j,
		ledger:      ledger,
		automations: automations,
		positions:   positions,
	}
}

// ValidatePreTradeRisk gates BUY transactions. Only BUY is gated; other
// transaction types are always allowed through this check.
func (c *Controller) ValidatePreTradeRisk(txnType model.TransactionType, qty int, tradingSymbol string, isNewSymbol bool, distinctSymbols, grossOpenQty int) (bool, string) {
	if txnType != model.TransactionBuy {
		return true, ""
	}

	c.mu.Lock()
	active := c.killSwitchActive
	c.mu.Unlock()

	if active {
		return false, "kill switch active"
	}

	if c.limits.MaxOpenPositions > 0 && isNewSymbol && distinctSymbols >= c.limits.MaxOpenPositions {
		return false, "max open positions reached"
	}

	if c.limits.MaxGrossOpenQuantity > 0 {
		abs := qty
		if abs < 0 {
			abs = -abs
		}
		if grossOpenQty+abs > c.limits.MaxGrossOpenQuantity {
			return false, "max gross open quantity exceeded"
		}
	}

	return true, ""
}

// EvaluateRiskLocks is the drawdown monitor: computes total intraday PnL,
// ratchets the peak, and activates the kill switch on breach.
func (c *Controller) EvaluateRiskLocks(sessionDate string, unrealizedPnL float64) error {
	realized, err := c.ledger.RealizedPnLForDate(sessionDate)
	if err != nil {
		return err
	}
	total := realized + unrealizedPnL

	c.mu.Lock()
	if total > c.intradayPeakPnL {
		c.intradayPeakPnL = total
	}
	peak := c.intradayPeakPnL
	c.mu.Unlock()

	if c.limits.MaxPortfolioLoss > 0 && total <= -c.limits.MaxPortfolioLoss {
		c.activateKillSwitch("MAX_PORTFOLIO_LOSS", true)
		return nil
	}
	if c.limits.IntradayDrawdownLimit > 0 && peak-total >= c.limits.IntradayDrawdownLimit {
		c.activateKillSwitch("INTRADAY_DRAWDOWN_LOCK", true)
	}
	return nil
}

// activateKillSwitch is idempotent: a no-op if already active.
func (c *Controller) activateKillSwitch(reason string, exitOpenPositions bool) {
	c.mu.Lock()
	if c.killSwitchActive {
		c.mu.Unlock()
		return
	}
	c.killSwitchActive = true
	c.killSwitchReason = reason
	c.mu.Unlock()

	if c.automations != nil {
		c.automations.DisableAll()
	}
	if exitOpenPositions && c.positions != nil {
		c.positions.BulkExitAll(reason)
	}

	if c.journal != nil {
		c.journal.Append("kill_switch_activated", "evaluate_risk_locks", "", "", "", nil, map[string]any{
			"reason": reason,
			"at":     time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
		})
	}
}

// KillSwitchActive reports current kill-switch state.
func (c *Controller) KillSwitchActive() (bool, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.killSwitchActive, c.killSwitchReason
}

// ResetForNewDay clears the kill switch and peak-PnL ratchet at the new
// trading day boundary.
func (c *Controller) ResetForNewDay() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.killSwitchActive = false
	c.killSwitchReason = ""
	c.intradayPeakPnL = 0
}

// IntradayPeakPnL returns the ratcheted intraday peak, for the
// `intraday_peak_pnl >= total_intraday_pnl(t)` invariant check in tests.
func (c *Controller) IntradayPeakPnL() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.intradayPeakPnL
}
