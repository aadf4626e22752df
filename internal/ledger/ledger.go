// Package ledger implements the Trade Ledger: a durable, append-only record
// of CLOSED trades keyed by the unique order_id_exit, modeled on
// _teacher_ref/store/tactics_outer_ref.go's raw-SQL/migration pattern but
// backed by modernc.org/sqlite instead of the reference tree's driver.
// LIVE and PAPER trading modes are segregated into separate store instances
// (separate files).
package ledger

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kaviarasu301/imperium-exec-core/internal/logger"
	"github.com/kaviarasu301/imperium-exec-core/internal/model"
)

var log = logger.With("ledger")

// Store is one trading mode's trade ledger.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the sqlite-backed ledger file at path and
// ensures its schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	db.SetMaxOpenConns(1) // single-writer file, avoid SQLITE_BUSY under concurrent appends

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init ledger schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS trades (
			trade_id        TEXT NOT NULL,
			order_id_entry  TEXT NOT NULL,
			order_id_exit   TEXT NOT NULL UNIQUE,
			symbol          TEXT NOT NULL,
			tradingsymbol   TEXT NOT NULL,
			instrument_token INTEGER NOT NULL,
			option_type     TEXT DEFAULT '',
			expiry          TEXT DEFAULT '',
			strike          REAL DEFAULT 0,
			side            TEXT NOT NULL,
			quantity        INTEGER NOT NULL,
			entry_price     REAL NOT NULL,
			exit_price      REAL NOT NULL,
			entry_time      TEXT NOT NULL,
			exit_time       TEXT NOT NULL,
			realized_pnl    REAL NOT NULL,
			charges         REAL NOT NULL DEFAULT 0,
			net_pnl         REAL NOT NULL,
			exit_reason     TEXT DEFAULT '',
			strategy_tag    TEXT DEFAULT '',
			trade_status    TEXT NOT NULL DEFAULT 'MANUAL',
			strategy_name   TEXT NOT NULL DEFAULT 'N/A',
			trading_mode    TEXT NOT NULL,
			session_date    TEXT NOT NULL,
			created_at      TEXT NOT NULL
		)
	`)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_trades_session_date ON trades(session_date)`)
	return err
}

// RecordTrade inserts a closed trade row. Idempotent on the
// UNIQUE(order_id_exit) constraint: a collision is logged and skipped
// rather than returned as an error.
func (s *Store) RecordTrade(row model.TradeLedgerRow) error {
	status := row.TradeStatus
	if status == "" {
		status = model.TradeManual
	}
	strategyName := row.StrategyName
	if strategyName == "" {
		strategyName = "N/A"
	}
	mode := string(row.TradingMode)

	_, err := s.db.Exec(`
		INSERT INTO trades (
			trade_id, order_id_entry, order_id_exit, symbol, tradingsymbol,
			instrument_token, option_type, expiry, strike, side, quantity,
			entry_price, exit_price, entry_time, exit_time, realized_pnl,
			charges, net_pnl, exit_reason, strategy_tag, trade_status,
			strategy_name, trading_mode, session_date, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		row.TradeID, row.OrderIDEntry, row.OrderIDExit, row.Symbol, row.TradingSymbol,
		row.InstrumentTok, string(row.OptionType), isoDate(row.Expiry), row.Strike, string(row.Side), row.Quantity,
		row.EntryPrice, row.ExitPrice, row.EntryTime.UTC().Format(time.RFC3339Nano), row.ExitTime.UTC().Format(time.RFC3339Nano), row.RealizedPnL,
		row.Charges, row.NetPnL, row.ExitReason, row.StrategyTag, string(status),
		strategyName, mode, row.SessionDate, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueViolation(err) {
			log.Warnf("duplicate trade skipped: order_id_exit=%s", row.OrderIDExit)
			return nil
		}
		return fmt.Errorf("record trade: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return containsAny(msg, "UNIQUE constraint failed", "constraint failed: UNIQUE")
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if indexOf(s, sub) >= 0 {
			return true
		}
	}
	return false
}

func indexOf(s, sub string) int {
	n, m := len(s), len(sub)
	if m == 0 {
		return 0
	}
	for i := 0; i+m <= n; i++ {
		if s[i:i+m] == sub {
			return i
		}
	}
	return -1
}

func isoDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

// rowScan is the column set shared by every read query below.
const selectCols = `trade_id, order_id_entry, order_id_exit, symbol, tradingsymbol,
	instrument_token, option_type, expiry, strike, side, quantity,
	entry_price, exit_price, entry_time, exit_time, realized_pnl,
	charges, net_pnl, exit_reason, strategy_tag, trade_status,
	strategy_name, trading_mode, session_date`

func scanRow(scanner interface{ Scan(...any) error }) (model.TradeLedgerRow, error) {
	var row model.TradeLedgerRow
	var optionType, side, status, mode string
	var entryTime, exitTime, expiry string
	err := scanner.Scan(
		&row.TradeID, &row.OrderIDEntry, &row.OrderIDExit, &row.Symbol, &row.TradingSymbol,
		&row.InstrumentTok, &optionType, &expiry, &row.Strike, &side, &row.Quantity,
		&row.EntryPrice, &row.ExitPrice, &entryTime, &exitTime, &row.RealizedPnL,
		&row.Charges, &row.NetPnL, &row.ExitReason, &row.StrategyTag, &status,
		&row.StrategyName, &mode, &row.SessionDate,
	)
	if err != nil {
		return row, err
	}
	row.OptionType = model.OptionType(optionType)
	row.Side = model.Side(side)
	row.TradeStatus = model.TradeStatus(status)
	row.TradingMode = model.TradingMode(mode)
	row.EntryTime, _ = time.Parse(time.RFC3339Nano, entryTime)
	row.ExitTime, _ = time.Parse(time.RFC3339Nano, exitTime)
	if expiry != "" {
		row.Expiry, _ = time.Parse("2006-01-02", expiry)
	}
	return row, nil
}

// GetTradesForDate returns every row whose session_date matches.
func (s *Store) GetTradesForDate(sessionDate string) ([]model.TradeLedgerRow, error) {
	rows, err := s.db.Query(`SELECT `+selectCols+` FROM trades WHERE session_date = ? ORDER BY exit_time ASC`, sessionDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.TradeLedgerRow
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// GetRealizedPnLForDate sums realized_pnl across a session date; used
// directly by the Risk Controller's drawdown monitor.
func (s *Store) GetRealizedPnLForDate(sessionDate string) (float64, error) {
	var total sql.NullFloat64
	err := s.db.QueryRow(`SELECT SUM(realized_pnl) FROM trades WHERE session_date = ?`, sessionDate).Scan(&total)
	if err != nil {
		return 0, err
	}
	return total.Float64, nil
}

// RealizedPnLForDate satisfies risk.LedgerReader; it's a thin alias over
// GetRealizedPnLForDate so the Store can be handed to risk.NewController
// directly.
func (s *Store) RealizedPnLForDate(sessionDate string) (float64, error) {
	return s.GetRealizedPnLForDate(sessionDate)
}

// DayStats is the summary get_daily_trade_stats returns.
type DayStats struct {
	TradeCount  int     `json:"trade_count"`
	RealizedPnL float64 `json:"realized_pnl"`
	NetPnL      float64 `json:"net_pnl"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
}

// GetDailyTradeStats aggregates a session date's trade count, PnL, and
// win/loss split.
func (s *Store) GetDailyTradeStats(sessionDate string) (DayStats, error) {
	rows, err := s.GetTradesForDate(sessionDate)
	if err != nil {
		return DayStats{}, err
	}
	var stats DayStats
	for _, r := range rows {
		stats.TradeCount++
		stats.RealizedPnL += r.RealizedPnL
		stats.NetPnL += r.NetPnL
		if r.NetPnL > 0 {
			stats.Wins++
		} else if r.NetPnL < 0 {
			stats.Losses++
		}
	}
	return stats, nil
}

// DaySummary is the richer get_day_summary view (win rate, avg win/loss,
// best trade), a supplement from original_source/core/execution/trade_ledger.py.
type DaySummary struct {
	DayStats
	WinRatePct float64 `json:"win_rate_pct"`
	AvgWin     float64 `json:"avg_win"`
	AvgLoss    float64 `json:"avg_loss"`
	BestTrade  float64 `json:"best_trade"`
	WorstTrade float64 `json:"worst_trade"`
}

// GetDaySummary builds the richer day-level view atop GetTradesForDate.
func (s *Store) GetDaySummary(sessionDate string) (DaySummary, error) {
	rows, err := s.GetTradesForDate(sessionDate)
	if err != nil {
		return DaySummary{}, err
	}

	var summary DaySummary
	var winSum, lossSum float64
	for i, r := range rows {
		summary.TradeCount++
		summary.RealizedPnL += r.RealizedPnL
		summary.NetPnL += r.NetPnL
		if r.NetPnL > 0 {
			summary.Wins++
			winSum += r.NetPnL
		} else if r.NetPnL < 0 {
			summary.Losses++
			lossSum += r.NetPnL
		}
		if i == 0 || r.NetPnL > summary.BestTrade {
			summary.BestTrade = r.NetPnL
		}
		if i == 0 || r.NetPnL < summary.WorstTrade {
			summary.WorstTrade = r.NetPnL
		}
	}
	if summary.TradeCount > 0 {
		summary.WinRatePct = float64(summary.Wins) / float64(summary.TradeCount) * 100
	}
	if summary.Wins > 0 {
		summary.AvgWin = winSum / float64(summary.Wins)
	}
	if summary.Losses > 0 {
		summary.AvgLoss = lossSum / float64(summary.Losses)
	}
	return summary, nil
}

// GetLastNTrades returns the most recently closed n trades, newest first.
func (s *Store) GetLastNTrades(n int) ([]model.TradeLedgerRow, error) {
	rows, err := s.db.Query(`SELECT `+selectCols+` FROM trades ORDER BY exit_time DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.TradeLedgerRow
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// RowCount returns the total number of closed trades recorded.
func (s *Store) RowCount() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM trades`).Scan(&n)
	return n, err
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
