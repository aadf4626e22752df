package risk

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kaviarasu301/imperium-exec-core/internal/journal"
	"github.com/kaviarasu301/imperium-exec-core/internal/model"
)

type fakeLedger struct {
	realized    float64
	realizedErr error
}

func (f *fakeLedger) RealizedPnLForDate(sessionDate string) (float64, error) {
	return f.realized, f.realizedErr
}

type fakeAutomations struct{ disabled bool }

func (f *fakeAutomations) DisableAll() { f.disabled = true }

type fakePositions struct {
	exited bool
	reason string
}

func (f *fakePositions) BulkExitAll(reason string) { f.exited = true; f.reason = reason }

func newTestController(t *testing.T, limits model.RiskLimits, ledger LedgerReader, automations AutomationDisabler, positions PositionBulkExiter) *Controller {
	t.Helper()
	j := journal.New(filepath.Join(t.TempDir(), "journal.jsonl"))
	return NewController(limits, j, ledger, automations, positions)
}

func TestValidatePreTradeRiskAllowsNonBuy(t *testing.T) {
	c := newTestController(t, model.RiskLimits{MaxOpenPositions: 1}, &fakeLedger{}, nil, nil)
	ok, reason := c.ValidatePreTradeRisk(model.TransactionSell, 100, "SYM", true, 5, 500)
	require.True(t, ok)
	require.Empty(t, reason)
}

func TestValidatePreTradeRiskRejectsWhenKillSwitchActive(t *testing.T) {
	c := newTestController(t, model.RiskLimits{}, &fakeLedger{}, nil, nil)
	c.activateKillSwitch("MAX_PORTFOLIO_LOSS", false)

	ok, reason := c.ValidatePreTradeRisk(model.TransactionBuy, 10, "SYM", true, 0, 0)
	require.False(t, ok)
	require.Equal(t, "kill switch active", reason)
}

func TestValidatePreTradeRiskRejectsNewSymbolPastMaxOpenPositions(t *testing.T) {
	c := newTestController(t, model.RiskLimits{MaxOpenPositions: 3}, &fakeLedger{}, nil, nil)
	ok, _ := c.ValidatePreTradeRisk(model.TransactionBuy, 10, "SYM", true, 3, 0)
	require.False(t, ok)
}

func TestValidatePreTradeRiskAllowsExistingSymbolPastMaxOpenPositions(t *testing.T) {
	c := newTestController(t, model.RiskLimits{MaxOpenPositions: 3}, &fakeLedger{}, nil, nil)
	ok, _ := c.ValidatePreTradeRisk(model.TransactionBuy, 10, "SYM", false, 3, 0)
	require.True(t, ok, "scaling into an already-open symbol is not gated by max open positions")
}

func TestValidatePreTradeRiskRejectsGrossQuantityBreach(t *testing.T) {
	c := newTestController(t, model.RiskLimits{MaxGrossOpenQuantity: 100}, &fakeLedger{}, nil, nil)
	ok, reason := c.ValidatePreTradeRisk(model.TransactionBuy, 50, "SYM", false, 0, 60)
	require.False(t, ok)
	require.Equal(t, "max gross open quantity exceeded", reason)
}

func TestEvaluateRiskLocksRatchetsPeakAndStaysOpenAboveLimits(t *testing.T) {
	ledger := &fakeLedger{realized: 1000}
	c := newTestController(t, model.RiskLimits{MaxPortfolioLoss: 5000, IntradayDrawdownLimit: 2000}, ledger, nil, nil)

	require.NoError(t, c.EvaluateRiskLocks("2026-08-01", 500))
	require.InDelta(t, 1500, c.IntradayPeakPnL(), 1e-9)

	active, _ := c.KillSwitchActive()
	require.False(t, active)
}

func TestEvaluateRiskLocksTripsOnMaxPortfolioLoss(t *testing.T) {
	ledger := &fakeLedger{realized: -6000}
	automations := &fakeAutomations{}
	positions := &fakePositions{}
	c := newTestController(t, model.RiskLimits{MaxPortfolioLoss: 5000}, ledger, automations, positions)

	require.NoError(t, c.EvaluateRiskLocks("2026-08-01", 0))

	active, reason := c.KillSwitchActive()
	require.True(t, active)
	require.Equal(t, "MAX_PORTFOLIO_LOSS", reason)
	require.True(t, automations.disabled)
	require.True(t, positions.exited)
}

func TestEvaluateRiskLocksTripsOnIntradayDrawdownFromPeak(t *testing.T) {
	ledger := &fakeLedger{realized: 5000}
	c := newTestController(t, model.RiskLimits{IntradayDrawdownLimit: 1000}, ledger, nil, nil)

	require.NoError(t, c.EvaluateRiskLocks("2026-08-01", 0))
	active, _ := c.KillSwitchActive()
	require.False(t, active, "first observation only sets the peak, no drawdown yet")

	ledger.realized = 3500
	require.NoError(t, c.EvaluateRiskLocks("2026-08-01", 0))
	active, reason := c.KillSwitchActive()
	require.True(t, active)
	require.Equal(t, "INTRADAY_DRAWDOWN_LOCK", reason)
}

func TestActivateKillSwitchIsIdempotent(t *testing.T) {
	automations := &fakeAutomations{}
	c := newTestController(t, model.RiskLimits{}, &fakeLedger{}, automations, nil)

	c.activateKillSwitch("FIRST", false)
	c.activateKillSwitch("SECOND", false)

	_, reason := c.KillSwitchActive()
	require.Equal(t, "FIRST", reason, "a second activation must not override the first reason")
}

func TestResetForNewDayClearsKillSwitchAndPeak(t *testing.T) {
	ledger := &fakeLedger{realized: -6000}
	c := newTestController(t, model.RiskLimits{MaxPortfolioLoss: 5000}, ledger, nil, nil)
	require.NoError(t, c.EvaluateRiskLocks("2026-08-01", 0))

	active, _ := c.KillSwitchActive()
	require.True(t, active)

	c.ResetForNewDay()
	active, reason := c.KillSwitchActive()
	require.False(t, active)
	require.Empty(t, reason)
	require.Zero(t, c.IntradayPeakPnL())
}

func TestEvaluateRiskLocksPropagatesLedgerError(t *testing.T) {
	ledger := &fakeLedger{realizedErr: require.AnError}
	c := newTestController(t, model.RiskLimits{}, ledger, nil, nil)
	require.Error(t, c.EvaluateRiskLocks("2026-08-01", 0))
}
