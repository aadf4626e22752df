// Package config loads runtime settings for the execution and risk core from
// the environment, the same .env-then-os.Getenv pattern the reference
// trading bot bootstraps its per-trader configuration with.
package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Settings carries every configuration knob the desk needs, plus the base
// directory every persisted file (journal, telemetry, cvd state, paper
// account, trade ledger) is rooted under.
type Settings struct {
	AppName string

	DefaultProduct string // MIS or NRML

	RiskIntradayDrawdownLimit float64
	RiskMaxPortfolioLoss      float64
	RiskMaxOpenPositions      int
	RiskMaxGrossOpenQuantity  int

	DefaultSymbol string
	DefaultLots   int

	BaseDir string

	LogFormat string // "console" or "json"

	TradingMode string // "paper" or "live"
}

// Load reads a .env file if present (missing file is not an error, matching
// godotenv's typical best-effort use in small services) and then overlays
// explicit environment variables on top of sane defaults.
func Load() (*Settings, error) {
	_ = godotenv.Load()

	s := &Settings{
		AppName:                   "imperium_desk",
		DefaultProduct:            "MIS",
		RiskIntradayDrawdownLimit: 0,
		RiskMaxPortfolioLoss:      0,
		RiskMaxOpenPositions:      0,
		RiskMaxGrossOpenQuantity:  0,
		DefaultSymbol:             "NIFTY",
		DefaultLots:               1,
		LogFormat:                 "console",
		TradingMode:               "paper",
	}

	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	s.BaseDir = filepath.Join(home, "."+s.AppName)

	if v := os.Getenv("IMPERIUM_DEFAULT_PRODUCT"); v != "" {
		s.DefaultProduct = v
	}
	if v := os.Getenv("IMPERIUM_TRADING_MODE"); v != "" {
		s.TradingMode = v
	}
	if v := os.Getenv("IMPERIUM_LOG_FORMAT"); v != "" {
		s.LogFormat = v
	}
	if v := os.Getenv("IMPERIUM_DEFAULT_SYMBOL"); v != "" {
		s.DefaultSymbol = v
	}
	if v := os.Getenv("IMPERIUM_BASE_DIR"); v != "" {
		s.BaseDir = v
	}
	if v, ok := getFloat("IMPERIUM_RISK_INTRADAY_DRAWDOWN_LIMIT"); ok {
		s.RiskIntradayDrawdownLimit = v
	}
	if v, ok := getFloat("IMPERIUM_RISK_MAX_PORTFOLIO_LOSS"); ok {
		s.RiskMaxPortfolioLoss = v
	}
	if v, ok := getInt("IMPERIUM_RISK_MAX_OPEN_POSITIONS"); ok {
		s.RiskMaxOpenPositions = v
	}
	if v, ok := getInt("IMPERIUM_RISK_MAX_GROSS_OPEN_QUANTITY"); ok {
		s.RiskMaxGrossOpenQuantity = v
	}
	if v, ok := getInt("IMPERIUM_DEFAULT_LOTS"); ok {
		s.DefaultLots = v
	}

	if err := os.MkdirAll(s.BaseDir, 0o755); err != nil {
		return nil, err
	}

	return s, nil
}

func getFloat(key string) (float64, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func getInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// PathFor joins the base directory with a mode-qualified file name, e.g.
// PathFor("execution_journal", "paper") -> execution_journal_paper.jsonl.
func (s *Settings) PathFor(stem, mode, ext string) string {
	return filepath.Join(s.BaseDir, stem+"_"+mode+"."+ext)
}
