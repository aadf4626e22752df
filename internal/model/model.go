// Package model holds the shared data types every subsystem in the
// execution and risk core exchanges, tagged for JSON persistence the way
// the reference tree's strategy configuration structs are tagged.
package model

import "time"

// OptionType enumerates the contract kinds this core trades.
type OptionType string

const (
	OptionCE  OptionType = "CE"
	OptionPE  OptionType = "PE"
	OptionFUT OptionType = "FUT"
	OptionEQ  OptionType = "EQ"
)

// Side is a position or signal direction.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// TransactionType is the broker-facing buy/sell direction.
type TransactionType string

const (
	TransactionBuy  TransactionType = "BUY"
	TransactionSell TransactionType = "SELL"
)

// OrderType mirrors the broker's order-type constants.
type OrderType string

const (
	OrderMarket OrderType = "MARKET"
	OrderLimit  OrderType = "LIMIT"
	OrderSL     OrderType = "SL"
	OrderSLM    OrderType = "SL-M"
)

// Product mirrors the broker's margin-product constants.
type Product string

const (
	ProductMIS  Product = "MIS"
	ProductNRML Product = "NRML"
)

// Exchange mirrors the broker's exchange constants.
type Exchange string

const (
	ExchangeNFO Exchange = "NFO"
	ExchangeNSE Exchange = "NSE"
)

// PendingOrderStatus enumerates broker-side order lifecycle states this
// core reasons about.
type PendingOrderStatus string

const (
	StatusOpen             PendingOrderStatus = "OPEN"
	StatusTriggerPending   PendingOrderStatus = "TRIGGER_PENDING"
	StatusAMORequired      PendingOrderStatus = "AMO_REQ_RECEIVED"
	StatusPendingExecution PendingOrderStatus = "PENDING_EXECUTION"
	StatusComplete         PendingOrderStatus = "COMPLETE"
	StatusCancelled        PendingOrderStatus = "CANCELLED"
	StatusRejected         PendingOrderStatus = "REJECTED"
)

// Quote is the last-seen tick data for a contract.
type Quote struct {
	LTP float64
	Bid float64
	Ask float64
	OI  float64
}

// Contract is an immutable instrument descriptor, owned by the instrument
// loader (out of scope) and shared by reference among positions and orders.
type Contract struct {
	Symbol          string
	TradingSymbol   string
	InstrumentToken int64
	LotSize         int
	Strike          float64
	OptionType      OptionType
	Expiry          time.Time
	Quote           Quote
}

// Position is a live holding tracked by the Position Manager.
type Position struct {
	Contract         Contract
	TradingSymbol    string
	Quantity         int
	AvgPrice         float64
	LTP              float64
	PnL              float64
	Product          Product
	Exchange         Exchange
	EntryTime        time.Time
	StopLossPrice    *float64
	TargetPrice      *float64
	TrailingStopLoss *float64
	GroupName        string
	IsExiting        bool
	IsNew            bool

	// bookkeeping carried across refreshes, not part of the broker payload.
	OrderID           string
	StopLossOrderID   string
	TargetOrderID     string
	RiskAmountAtEntry float64
}

// PendingOrder is a broker-side open or trigger-pending order.
type PendingOrder struct {
	OrderID         string
	TradingSymbol   string
	TransactionType TransactionType
	Quantity        int
	PendingQuantity int
	Price           float64
	TriggerPrice    float64
	Status          PendingOrderStatus
	Product         Product
	Exchange        Exchange
}

// Algo enumerates the execution algorithms the planner understands.
type Algo string

const (
	AlgoImmediate Algo = "IMMEDIATE"
	AlgoTWAP      Algo = "TWAP"
	AlgoVWAP      Algo = "VWAP"
	AlgoPOV       Algo = "POV"
	AlgoIS        Algo = "IS"
)

// Urgency biases the smart order router toward taking liquidity.
type Urgency string

const (
	UrgencyNormal Urgency = "normal"
	UrgencyHigh   Urgency = "high"
)

// ExecutionRequest is a parent-order intent handed to the Execution Stack.
type ExecutionRequest struct {
	TradingSymbol    string
	TransactionType  TransactionType
	Quantity         int
	OrderType        OrderType
	Product          Product
	LTP              float64
	Bid              float64
	Ask              float64
	LimitPrice       *float64
	Urgency          Urgency
	ParticipationRate float64
	ExecutionAlgo    Algo
	MaxChildOrders   int
	RandomizeSlices  bool
	Metadata         map[string]any
}

// RiskLimits are the portfolio-level thresholds; zero means disabled.
type RiskLimits struct {
	IntradayDrawdownLimit float64
	MaxPortfolioLoss      float64
	MaxOpenPositions      int
	MaxGrossOpenQuantity  int
}

// StrategyType enumerates the CVD automation's strategy families.
type StrategyType string

const (
	StrategyATRReversal      StrategyType = "atr_reversal"
	StrategyATRDivergence    StrategyType = "atr_divergence"
	StrategyEMACross         StrategyType = "ema_cross"
	StrategyRangeBreakout    StrategyType = "range_breakout"
	StrategyOpenDrive        StrategyType = "open_drive"
	StrategyCVDRangeBreakout StrategyType = "cvd_range_breakout"
)

// AutomationTrade is the CVD Coordinator's per-instrument-token active
// automation record, persisted per trading mode.
type AutomationTrade struct {
	InstrumentToken int64        `json:"instrument_token"`
	SignalSide      Side         `json:"signal_side"`
	SignalTimestamp time.Time    `json:"signal_timestamp"`
	StrategyType    StrategyType `json:"strategy_type"`

	EntryUnderlying  float64 `json:"entry_underlying"`
	MaxFavorablePts  float64 `json:"max_favorable_points"`
	SLUnderlying     float64 `json:"sl_underlying"`
	StoplossPoints   float64 `json:"stoploss_points"`

	MaxProfitGivebackPoints     float64         `json:"max_profit_giveback_points"`
	MaxProfitGivebackStrategies map[string]bool `json:"max_profit_giveback_strategies"`
	ATRTrailingStepPoints       float64         `json:"atr_trailing_step_points"`

	LastPriceClose float64 `json:"last_price_close"`
	LastEMA10      float64 `json:"last_ema10"`
	LastEMA51      float64 `json:"last_ema51"`
	LastCVDClose   float64 `json:"last_cvd_close"`
	LastCVDEMA10   float64 `json:"last_cvd_ema10"`
	LastCVDEMA51   float64 `json:"last_cvd_ema51"`

	TradingSymbols []string `json:"tradingsymbols"`
	Quantity       int      `json:"quantity"`
	GroupName      string   `json:"group_name"`

	PendingRetryAttempts int  `json:"pending_retry_attempts"`
	PendingRetryDisabled bool `json:"pending_retry_disabled"`
}

// MarketStateFrame is a per-bar update the CVD Coordinator consumes.
type MarketStateFrame struct {
	InstrumentToken int64
	Timestamp       time.Time
	PriceClose      float64
	EMA10           float64
	EMA51           float64
	CVDClose        float64
	CVDEMA10        float64
	CVDEMA51        float64
	Enabled         bool
	StrategyFilter  StrategyType

	StoplossPoints              float64
	MaxProfitGivebackPoints     float64
	MaxProfitGivebackStrategies []string
	Route                       string // "buy_exit_panel" or "single_strike"
}

// IncidentKind enumerates the anomaly detector's four failure modes.
type IncidentKind string

const (
	IncidentStuckOrder      IncidentKind = "stuck_order"
	IncidentStaleTick       IncidentKind = "stale_tick"
	IncidentDuplicateSignal IncidentKind = "duplicate_signal"
	IncidentRunawayLoop     IncidentKind = "runaway_loop"
)

// Severity ranks an incident's urgency.
type Severity string

const (
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Incident is what the Anomaly Detector emits and the Incident Responder
// acts on.
type Incident struct {
	Kind     IncidentKind
	Severity Severity
	Details  map[string]any
	Playbook []string
}

// TradeStatus distinguishes manually-initiated from algo-initiated trades.
type TradeStatus string

const (
	TradeManual TradeStatus = "MANUAL"
	TradeAlgo   TradeStatus = "ALGO"
)

// TradingMode distinguishes live from simulated trading.
type TradingMode string

const (
	ModeLive  TradingMode = "LIVE"
	ModePaper TradingMode = "PAPER"
)

// TradeLedgerRow is a closed-trade record keyed by unique OrderIDExit.
type TradeLedgerRow struct {
	TradeID       string
	OrderIDEntry  string
	OrderIDExit   string
	Symbol        string
	TradingSymbol string
	InstrumentTok int64
	OptionType    OptionType
	Expiry        time.Time
	Strike        float64
	Side          Side
	Quantity      int
	EntryPrice    float64
	ExitPrice     float64
	EntryTime     time.Time
	ExitTime      time.Time
	RealizedPnL   float64
	Charges       float64
	NetPnL        float64
	ExitReason    string
	StrategyTag   string
	TradeStatus   TradeStatus
	StrategyName  string
	TradingMode   TradingMode
	SessionDate   string // ISO date
}
