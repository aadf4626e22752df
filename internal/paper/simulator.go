// Package paper implements the Paper Trading Simulator: a deterministic
// in-process matching engine mirroring the live broker's API surface
// (VARIETY_REGULAR, exchanges NFO/NSE, order types MARKET/LIMIT/SL/SL-M).
// Grounded line-for-line on
// original_source/core/execution/paper_trading_manager.py, adapted from a
// Qt QTimer-driven PySide6 object into a goroutine-safe Go struct with a
// self-rescheduling 1 Hz matching timer in the style of the reference
// tree's heartbeat pattern (execution/stack.go).
package paper

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/kaviarasu301/imperium-exec-core/internal/journal"
	"github.com/kaviarasu301/imperium-exec-core/internal/logger"
	"github.com/kaviarasu301/imperium-exec-core/internal/model"
	"github.com/kaviarasu301/imperium-exec-core/internal/position"
	"github.com/kaviarasu301/imperium-exec-core/internal/risk"
	"github.com/kaviarasu301/imperium-exec-core/internal/telemetry"
)

var log = logger.With("paper")

const defaultBalance = 1_000_000.0

// Order is one simulated broker order, mirroring the Kite-style order dict
// the reference tree appends to and mutates in place on fill.
type Order struct {
	OrderID           string
	TradingSymbol     string
	TransactionType   model.TransactionType
	Quantity          int
	Price             float64
	TriggerPrice      float64
	OrderType         model.OrderType
	Product           model.Product
	Exchange          model.Exchange
	Status            model.PendingOrderStatus
	OrderTimestamp    time.Time
	AveragePrice      float64
	FilledQuantity    int
	GroupName         string
	ExchangeTimestamp time.Time
	EntryQty          int
	ExitQty           int
	RealizedPnL       float64
}

type paperPosition struct {
	TradingSymbol string
	Quantity      int
	AvgPrice      float64
	LastPrice     float64
	RealizedPnL   float64
	Product       model.Product
	Exchange      model.Exchange
	Timestamp     time.Time
	GroupName     string
}

// PlaceOrderRequest is the duck-typed broker place_order call.
type PlaceOrderRequest struct {
	TradingSymbol   string
	TransactionType model.TransactionType
	Quantity        int
	Product         model.Product
	Exchange        model.Exchange
	OrderType       model.OrderType
	Price           *float64
	TriggerPrice    *float64
	GroupName       string
}

// Simulator is one paper-trading account.
type Simulator struct {
	mu sync.Mutex

	baseDir   string
	journal   *journal.Journal
	dashboard *telemetry.Dashboard

	marketData    map[int64]float64
	symbolToToken map[string]int64

	positions map[string]*paperPosition
	orders    []*Order

	balance float64
	rms     *risk.PaperRMS

	stopMatching    chan struct{}
	matchingRunning bool

	now func() time.Time
}

// NewSimulator builds a Simulator, restoring prior state from
// <baseDir>/paper_account.json if present.
func NewSimulator(baseDir string, j *journal.Journal, dash *telemetry.Dashboard) *Simulator {
	s := &Simulator{
		baseDir:       baseDir,
		journal:       j,
		dashboard:     dash,
		marketData:    map[int64]float64{},
		symbolToToken: map[string]int64{},
		positions:     map[string]*paperPosition{},
		balance:       defaultBalance,
		now:           time.Now,
	}
	s.rms = risk.NewPaperRMS(s.balance)
	s.load()
	return s
}

func (s *Simulator) statePath() string {
	return filepath.Join(s.baseDir, "paper_account.json")
}

// SetInstrumentToken records the tradingsymbol → instrument-token mapping,
// populated by the (out-of-scope) instrument loader.
func (s *Simulator) SetInstrumentToken(tradingSymbol string, token int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.symbolToToken[tradingSymbol] = token
}

// UpdateMarketData records the latest LTP for a token, consumed by both
// order placement and the matching engine.
func (s *Simulator) UpdateMarketData(token int64, ltp float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marketData[token] = ltp
}

func (s *Simulator) ltpFor(token int64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.marketData[token]
}

func (s *Simulator) tokenFor(tradingSymbol string) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.symbolToToken[tradingSymbol]
	return t, ok
}

func (s *Simulator) resolvePrice(req PlaceOrderRequest) (float64, bool) {
	if req.Price != nil && *req.Price > 0 {
		return *req.Price, true
	}
	token, ok := s.tokenFor(req.TradingSymbol)
	if !ok {
		return 0, false
	}
	ltp := s.ltpFor(token)
	if ltp <= 0 {
		return 0, false
	}
	return ltp, true
}

func openingQuantity(pos *paperPosition, txn model.TransactionType, qty int) int {
	if txn == model.TransactionBuy {
		if pos != nil && pos.Quantity < 0 {
			opening := qty - absInt(pos.Quantity)
			if opening < 0 {
				opening = 0
			}
			return opening
		}
		return qty
	}
	if pos != nil && pos.Quantity > 0 {
		opening := qty - pos.Quantity
		if opening < 0 {
			opening = 0
		}
		return opening
	}
	return qty
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// PlaceOrder implements the order-placement rules: resolve price, compute
// opening_qty reducing the opposite side first, gate any opening quantity
// through the Paper RMS, then attempt immediate execution
// for MARKET/LIMIT while SL/SL-M always start TRIGGER_PENDING.
func (s *Simulator) PlaceOrder(req PlaceOrderRequest) (string, error) {
	if req.Quantity <= 0 {
		return "", fmt.Errorf("quantity must be positive")
	}

	price, ok := s.resolvePrice(req)
	if !ok {
		reason := "price unavailable for margin calculation"
		s.journal.Append("order_rejected", "place_order", "", "", "", nil, map[string]any{
			"reason":        reason,
			"tradingsymbol": req.TradingSymbol,
			"quantity":      req.Quantity,
		})
		return "", fmt.Errorf("%s", reason)
	}

	s.mu.Lock()
	pos := s.positions[req.TradingSymbol]
	var posSnapshot *paperPosition
	if pos != nil {
		cp := *pos
		posSnapshot = &cp
	}
	s.mu.Unlock()

	opening := openingQuantity(posSnapshot, req.TransactionType, req.Quantity)
	if opening > 0 {
		if allowed, reason := s.rms.CanPlaceOrder(price, opening); !allowed {
			log.Warnf("RMS rejected order: %s", reason)
			s.journal.Append("order_rejected", "place_order", "", "", "", nil, map[string]any{
				"reason":        reason,
				"tradingsymbol": req.TradingSymbol,
				"quantity":      req.Quantity,
			})
			return "", fmt.Errorf("%s", reason)
		}
	}

	order := &Order{
		OrderID:         fmt.Sprintf("paper_%d", s.now().UnixMilli()),
		TradingSymbol:   req.TradingSymbol,
		TransactionType: req.TransactionType,
		Quantity:        req.Quantity,
		Price:           price,
		OrderType:       req.OrderType,
		Product:         req.Product,
		Exchange:        req.Exchange,
		Status:          model.StatusOpen,
		OrderTimestamp:  s.now(),
		GroupName:       req.GroupName,
	}
	if req.TriggerPrice != nil {
		order.TriggerPrice = *req.TriggerPrice
	}

	token, hasToken := s.tokenFor(req.TradingSymbol)
	ltp := 0.0
	if hasToken {
		ltp = s.ltpFor(token)
	}

	switch req.OrderType {
	case model.OrderMarket:
		if ltp > 0 {
			s.executeTrade(order, ltp)
		} else {
			order.Status = model.StatusPendingExecution
		}
	case model.OrderLimit:
		isBuy := req.TransactionType == model.TransactionBuy
		if ltp > 0 && ((isBuy && price >= ltp) || (!isBuy && price <= ltp)) {
			s.executeTrade(order, ltp)
		} else {
			order.Status = model.StatusTriggerPending
		}
	case model.OrderSL, model.OrderSLM:
		order.Status = model.StatusTriggerPending
	}

	s.mu.Lock()
	s.orders = append(s.orders, order)
	s.mu.Unlock()

	if order.Status != model.StatusComplete {
		s.emitOrderUpdate(order)
	}
	return order.OrderID, nil
}

// CancelOrder cancels a still-open/pending paper order.
func (s *Simulator) CancelOrder(orderID string) error {
	s.mu.Lock()
	var found *Order
	for _, o := range s.orders {
		if o.OrderID == orderID && isCancellable(o.Status) {
			o.Status = model.StatusCancelled
			found = o
			break
		}
	}
	s.mu.Unlock()

	if found == nil {
		return fmt.Errorf("could not find cancellable paper order with id: %s", orderID)
	}
	s.emitOrderUpdate(found)
	return nil
}

func isCancellable(status model.PendingOrderStatus) bool {
	switch status {
	case model.StatusOpen, model.StatusPendingExecution, model.StatusTriggerPending:
		return true
	}
	return false
}

// Orders returns a snapshot of every order placed this session.
func (s *Simulator) Orders() []Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Order, len(s.orders))
	for i, o := range s.orders {
		out[i] = *o
	}
	return out
}

// Margins returns a Kite-compatible margins payload for paper trading.
func (s *Simulator) Margins() map[string]any {
	avail := s.rms.AvailableMargin()
	used := s.rms.UsedMargin()
	return map[string]any{
		"equity": map[string]any{
			"available": map[string]any{"live_balance": avail},
			"utilised":  map[string]any{"total": used},
			"net":       avail + used,
		},
	}
}

// Profile returns the fixed paper-trading user profile.
func (s *Simulator) Profile() map[string]string {
	return map[string]string{"user_id": "PAPER"}
}

// UsedMargin and AvailableMargin expose the underlying Paper RMS state.
func (s *Simulator) UsedMargin() float64      { return s.rms.UsedMargin() }
func (s *Simulator) AvailableMargin() float64 { return s.rms.AvailableMargin() }

// Positions prunes expired contracts then returns a broker-shaped snapshot
// suitable for feeding directly into position.Manager.RefreshFromAPI.
func (s *Simulator) Positions() []position.BrokerPosition {
	s.pruneExpiredPositions(s.now())

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]position.BrokerPosition, 0, len(s.positions))
	for _, pos := range s.positions {
		token := s.symbolToToken[pos.TradingSymbol]
		ltp := pos.LastPrice
		if l, ok := s.marketData[token]; ok && l > 0 {
			ltp = l
			pos.LastPrice = l
		}
		out = append(out, position.BrokerPosition{
			TradingSymbol:   pos.TradingSymbol,
			InstrumentToken: token,
			Quantity:        pos.Quantity,
			AvgPrice:        pos.AvgPrice,
			LTP:             ltp,
			Product:         pos.Product,
			Exchange:        pos.Exchange,
			GroupName:       pos.GroupName,
		})
	}
	return out
}

// PlaceProtectiveOrders places SL-M and/or LIMIT exit orders for an already
// open position, called after a position's SL/TP levels are decided.
func (s *Simulator) PlaceProtectiveOrders(tradingSymbol string, slPrice, tpPrice *float64) {
	s.mu.Lock()
	pos, ok := s.positions[tradingSymbol]
	var qty int
	var product model.Product
	var exchange model.Exchange
	if ok {
		qty = pos.Quantity
		product = pos.Product
		exchange = pos.Exchange
	}
	s.mu.Unlock()

	if !ok {
		log.Warnf("cannot place protective orders - position %s not found", tradingSymbol)
		return
	}

	exitTxn := model.TransactionSell
	if qty < 0 {
		exitTxn = model.TransactionBuy
	}

	if slPrice != nil && *slPrice > 0 {
		trig := *slPrice
		if _, err := s.PlaceOrder(PlaceOrderRequest{
			TradingSymbol: tradingSymbol, TransactionType: exitTxn, Quantity: absInt(qty),
			Product: product, Exchange: exchange, OrderType: model.OrderSLM, TriggerPrice: &trig,
		}); err != nil {
			log.ErrorErr(err, "failed to place paper SL order")
		}
	}
	if tpPrice != nil && *tpPrice > 0 {
		p := *tpPrice
		if _, err := s.PlaceOrder(PlaceOrderRequest{
			TradingSymbol: tradingSymbol, TransactionType: exitTxn, Quantity: absInt(qty),
			Product: product, Exchange: exchange, OrderType: model.OrderLimit, Price: &p,
		}); err != nil {
			log.ErrorErr(err, "failed to place paper TP order")
		}
	}
}

// StartMatchingTimer starts the independent 1 Hz matching tick, in the same
// self-rescheduling style as the Execution Stack's heartbeat timer.
func (s *Simulator) StartMatchingTimer() {
	s.mu.Lock()
	if s.matchingRunning {
		s.mu.Unlock()
		return
	}
	s.matchingRunning = true
	s.stopMatching = make(chan struct{})
	stop := s.stopMatching
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.processPendingOrders()
			}
		}
	}()
}

// StopMatchingTimer cancels the background matching tick.
func (s *Simulator) StopMatchingTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.matchingRunning {
		return
	}
	close(s.stopMatching)
	s.matchingRunning = false
}

// processPendingOrders runs one matching-engine tick over every order still
// in {OPEN, PENDING_EXECUTION, TRIGGER_PENDING}.
func (s *Simulator) processPendingOrders() {
	s.mu.Lock()
	var candidates []*Order
	for _, o := range s.orders {
		switch o.Status {
		case model.StatusOpen, model.StatusPendingExecution, model.StatusTriggerPending:
			candidates = append(candidates, o)
		}
	}
	s.mu.Unlock()

	for _, o := range candidates {
		token, hasToken := s.tokenFor(o.TradingSymbol)
		if !hasToken {
			continue
		}
		ltp := s.ltpFor(token)
		if ltp <= 0 {
			continue
		}

		switch o.OrderType {
		case model.OrderLimit:
			isBuy := o.TransactionType == model.TransactionBuy
			if isBuy && ltp <= o.Price {
				s.executeTrade(o, ltp)
			} else if !isBuy && ltp >= o.Price {
				s.executeTrade(o, ltp)
			}
		case model.OrderSL, model.OrderSLM:
			if o.TriggerPrice <= 0 {
				continue
			}
			if o.TransactionType == model.TransactionSell && ltp <= o.TriggerPrice {
				s.executeTrade(o, slExecPrice(o))
			} else if o.TransactionType == model.TransactionBuy && ltp >= o.TriggerPrice {
				s.executeTrade(o, slExecPrice(o))
			}
		default:
			if o.Status == model.StatusPendingExecution {
				s.executeTrade(o, ltp)
			}
		}
	}
}

// slExecPrice fills a plain SL order at its limit price when set (protective
// limit beyond the trigger), otherwise at the trigger price itself (SL-M).
func slExecPrice(o *Order) float64 {
	if o.OrderType == model.OrderSL && o.Price > 0 {
		return o.Price
	}
	return o.TriggerPrice
}

// executeTrade: a BUY against an existing short covers it first with
// realized PnL and margin release before any residual opens/extends a
// long; SELL mirrors it for shorts.
func (s *Simulator) executeTrade(order *Order, price float64) {
	s.mu.Lock()

	order.Status = model.StatusComplete
	order.AveragePrice = price
	order.FilledQuantity = order.Quantity
	order.ExchangeTimestamp = s.now()

	qty := order.Quantity
	var exitQty, entryQty int
	var realized float64

	pos := s.positions[order.TradingSymbol]

	if order.TransactionType == model.TransactionBuy {
		if pos != nil && pos.Quantity < 0 {
			cover := qty
			if absInt(pos.Quantity) < cover {
				cover = absInt(pos.Quantity)
			}
			entryPrice := pos.AvgPrice
			realized = (entryPrice - price) * float64(cover)
			exitQty = cover
			pos.RealizedPnL += realized
			s.balance += realized
			s.rms.ReleaseMargin(entryPrice, cover)
			pos.Quantity += cover
			if pos.Quantity == 0 {
				delete(s.positions, order.TradingSymbol)
				pos = nil
			}
			qty -= cover
		}
		if qty > 0 {
			entryQty = qty
			s.rms.ReserveMargin(price, qty)
			if pos == nil {
				pos = &paperPosition{
					TradingSymbol: order.TradingSymbol, Quantity: qty, AvgPrice: price, LastPrice: price,
					Product: order.Product, Exchange: order.Exchange, Timestamp: order.ExchangeTimestamp,
					GroupName: order.GroupName,
				}
				s.positions[order.TradingSymbol] = pos
			} else {
				total := pos.Quantity + qty
				pos.AvgPrice = (pos.AvgPrice*float64(pos.Quantity) + price*float64(qty)) / float64(total)
				pos.Quantity = total
				if order.GroupName != "" {
					pos.GroupName = order.GroupName
				}
			}
		}
	} else {
		if pos != nil && pos.Quantity > 0 {
			closeQty := qty
			if pos.Quantity < closeQty {
				closeQty = pos.Quantity
			}
			entryPrice := pos.AvgPrice
			realized = (price - entryPrice) * float64(closeQty)
			exitQty = closeQty
			pos.RealizedPnL += realized
			s.balance += realized
			s.rms.ReleaseMargin(entryPrice, closeQty)
			pos.Quantity -= closeQty
			if pos.Quantity == 0 {
				delete(s.positions, order.TradingSymbol)
				pos = nil
			}
			qty -= closeQty
		}
		if qty > 0 {
			entryQty = qty
			s.rms.ReserveMargin(price, qty)
			if pos == nil {
				pos = &paperPosition{
					TradingSymbol: order.TradingSymbol, Quantity: -qty, AvgPrice: price, LastPrice: price,
					Product: order.Product, Exchange: order.Exchange, Timestamp: order.ExchangeTimestamp,
					GroupName: order.GroupName,
				}
				s.positions[order.TradingSymbol] = pos
			} else {
				total := absInt(pos.Quantity) + qty
				pos.AvgPrice = (pos.AvgPrice*float64(absInt(pos.Quantity)) + price*float64(qty)) / float64(total)
				pos.Quantity = -total
				if order.GroupName != "" {
					pos.GroupName = order.GroupName
				}
			}
		}
	}

	if exitQty > 0 {
		order.RealizedPnL = realized
	}
	order.ExitQty = exitQty
	order.EntryQty = entryQty

	s.mu.Unlock()

	s.persist()
	s.emitOrderUpdate(order)
}

func (s *Simulator) emitOrderUpdate(order *Order) {
	s.journal.Append("order_update", "paper_fill", "", "", "", nil, map[string]any{
		"order_id":        order.OrderID,
		"tradingsymbol":   order.TradingSymbol,
		"status":          string(order.Status),
		"average_price":   order.AveragePrice,
		"filled_quantity": order.FilledQuantity,
		"entry_qty":       order.EntryQty,
		"exit_qty":        order.ExitQty,
		"realized_pnl":    order.RealizedPnL,
	})
	if s.dashboard != nil && order.Status == model.StatusComplete {
		s.dashboard.Incr("paper_fills", 1)
	}
}

var (
	monthlyExpiryPattern = regexp.MustCompile(`(\d{2})(JAN|FEB|MAR|APR|MAY|JUN|JUL|AUG|SEP|OCT|NOV|DEC)`)
	weeklyExpiryPattern  = regexp.MustCompile(`(\d{5})`)
	monthNumber          = map[string]int{
		"JAN": 1, "FEB": 2, "MAR": 3, "APR": 4, "MAY": 5, "JUN": 6,
		"JUL": 7, "AUG": 8, "SEP": 9, "OCT": 10, "NOV": 11, "DEC": 12,
	}
)

// parseExpiryFromSymbol extracts an expiry date from a tradingsymbol's
// monthly `DDMMM` or weekly 5-digit `YMDD` pattern.
func parseExpiryFromSymbol(symbol string) (time.Time, bool) {
	if m := monthlyExpiryPattern.FindStringSubmatch(symbol); m != nil {
		yy, err := strconv.Atoi(m[1])
		if err != nil {
			return time.Time{}, false
		}
		month := monthNumber[m[2]]
		year := 2000 + yy
		firstOfNext := time.Date(year, time.Month(month)+1, 1, 0, 0, 0, 0, time.UTC)
		if time.Month(month) == time.December {
			firstOfNext = time.Date(year+1, time.January, 1, 0, 0, 0, 0, time.UTC)
		}
		return firstOfNext.AddDate(0, 0, -1), true
	}
	if m := weeklyExpiryPattern.FindStringSubmatch(symbol); m != nil {
		digits := m[1]
		yy, err1 := strconv.Atoi(digits[0:2])
		mon, err2 := strconv.Atoi(digits[2:3])
		day, err3 := strconv.Atoi(digits[3:5])
		if err1 != nil || err2 != nil || err3 != nil || mon < 1 || mon > 12 {
			return time.Time{}, false
		}
		return time.Date(2000+yy, time.Month(mon), day, 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}

func (s *Simulator) pruneExpiredPositions(today time.Time) {
	todayDate := today.Truncate(24 * time.Hour)

	s.mu.Lock()
	var expired []string
	for symbol := range s.positions {
		if expiry, ok := parseExpiryFromSymbol(symbol); ok && expiry.Before(todayDate) {
			expired = append(expired, symbol)
		}
	}
	for _, symbol := range expired {
		delete(s.positions, symbol)
	}
	s.mu.Unlock()

	if len(expired) == 0 {
		return
	}
	for _, symbol := range expired {
		s.journal.Append("position_removed", "prune_expired", "", "", "", nil, map[string]any{
			"tradingsymbol": symbol,
			"reason":        "expired",
		})
	}
	s.persist()
}

type stateDoc struct {
	Balance       float64                 `json:"balance"`
	Positions     map[string]persistedPos `json:"positions"`
	RMSUsedMargin float64                 `json:"rms_used_margin"`
}

type persistedPos struct {
	TradingSymbol string  `json:"tradingsymbol"`
	Quantity      int     `json:"quantity"`
	AvgPrice      float64 `json:"average_price"`
	LastPrice     float64 `json:"last_price"`
	RealizedPnL   float64 `json:"realized_pnl"`
	Product       string  `json:"product"`
	Exchange      string  `json:"exchange"`
	Timestamp     string  `json:"timestamp"`
	GroupName     string  `json:"group_name"`
}

// persist atomically serializes balance, positions, and used margin to
// <baseDir>/paper_account.json, the same durable-write pattern every other
// subsystem's state file uses (write to .tmp, then rename).
func (s *Simulator) persist() {
	if s.baseDir == "" {
		return
	}

	s.mu.Lock()
	doc := stateDoc{
		Balance:       s.balance,
		Positions:     make(map[string]persistedPos, len(s.positions)),
		RMSUsedMargin: s.rms.UsedMargin(),
	}
	for sym, pos := range s.positions {
		doc.Positions[sym] = persistedPos{
			TradingSymbol: pos.TradingSymbol,
			Quantity:      pos.Quantity,
			AvgPrice:      pos.AvgPrice,
			LastPrice:     pos.LastPrice,
			RealizedPnL:   pos.RealizedPnL,
			Product:       string(pos.Product),
			Exchange:      string(pos.Exchange),
			Timestamp:     pos.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z"),
			GroupName:     pos.GroupName,
		}
	}
	s.mu.Unlock()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		log.ErrorErr(err, "paper account marshal failed")
		return
	}
	path := s.statePath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		log.ErrorErr(err, "paper account mkdir failed")
		return
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		log.ErrorErr(err, "paper account write failed")
		return
	}
	if err := os.Rename(tmp, path); err != nil {
		log.ErrorErr(err, "paper account rename failed")
	}
}

// load restores balance/positions/used-margin from disk, tolerating a
// missing or malformed file by starting fresh.
func (s *Simulator) load() {
	data, err := os.ReadFile(s.statePath())
	if err != nil {
		return
	}

	var doc stateDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		log.Warnf("paper account file corrupt, starting fresh: %v", err)
		return
	}

	s.mu.Lock()
	if doc.Balance > 0 {
		s.balance = doc.Balance
	}
	for sym, p := range doc.Positions {
		if p.Quantity == 0 {
			continue
		}
		ts, _ := time.Parse("2006-01-02T15:04:05.000Z", p.Timestamp)
		s.positions[sym] = &paperPosition{
			TradingSymbol: p.TradingSymbol,
			Quantity:      p.Quantity,
			AvgPrice:      p.AvgPrice,
			LastPrice:     p.LastPrice,
			RealizedPnL:   p.RealizedPnL,
			Product:       model.Product(p.Product),
			Exchange:      model.Exchange(p.Exchange),
			Timestamp:     ts,
			GroupName:     p.GroupName,
		}
	}
	s.mu.Unlock()

	s.rms = risk.NewPaperRMS(s.balance)
	s.rms.SetUsedMargin(doc.RMSUsedMargin)
}
