// Package broker adapts the duck-typed broker contract
// (place_order/cancel_order/positions/orders/profile/margins) into the
// execution.PlaceOrderFunc and position.BrokerPosition shapes the core's
// other packages consume, wrapping every call with the circuit breaker and
// a 5-second per-call timeout for live mode.
package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/kaviarasu301/imperium-exec-core/internal/circuitbreaker"
	"github.com/kaviarasu301/imperium-exec-core/internal/execution"
	"github.com/kaviarasu301/imperium-exec-core/internal/logger"
	"github.com/kaviarasu301/imperium-exec-core/internal/model"
	"github.com/kaviarasu301/imperium-exec-core/internal/position"
)

var log = logger.With("broker")

// callTimeout is the per-call broker API timeout.
const callTimeout = 5 * time.Second

// RawPosition is one row of a raw broker positions() payload, before this
// package reshapes it into position.BrokerPosition.
type RawPosition struct {
	TradingSymbol   string
	InstrumentToken int64
	Quantity        int
	AvgPrice        float64
	LTP             float64
	Product         model.Product
	Exchange        model.Exchange
	GroupName       string
}

// Client is the duck-typed broker contract: place_order, cancel_order,
// positions, orders, profile, margins, plus the constants callers need to
// read (exposed as package-level consts below rather than client methods,
// since they're compile-time fixed).
type Client interface {
	PlaceOrder(variety string, exchange model.Exchange, tradingSymbol string, txnType model.TransactionType, quantity int, product model.Product, orderType model.OrderType, price, triggerPrice *float64, groupName string) (orderID string, err error)
	CancelOrder(variety, orderID string) error
	Positions() ([]RawPosition, error)
	Orders() ([]model.PendingOrder, error)
	Profile() (map[string]string, error)
	Margins() (map[string]any, error)
}

// Broker-side constants the duck-typed contract exposes.
const (
	VarietyRegular          = "regular"
	ExchangeNFO             = model.ExchangeNFO
	ExchangeNSE             = model.ExchangeNSE
	TransactionTypeBuy      = model.TransactionBuy
	TransactionTypeSell     = model.TransactionSell
	ProductMIS              = model.ProductMIS
	ProductNRML             = model.ProductNRML
	OrderTypeMarket         = model.OrderMarket
	OrderTypeLimit          = model.OrderLimit
	OrderTypeSL             = model.OrderSL
	OrderTypeSLM            = model.OrderSLM
)

// LiveBroker wraps a duck-typed broker Client with the circuit breaker and
// per-call timeout: every live broker call is short-circuited by the
// breaker before the execution stack's own retry policy ever runs.
type LiveBroker struct {
	client  Client
	breaker *circuitbreaker.Breaker
}

// NewLiveBroker builds a LiveBroker around a duck-typed client, with a
// fresh circuit breaker using the standard default parameters.
func NewLiveBroker(client Client) *LiveBroker {
	return &LiveBroker{
		client:  client,
		breaker: circuitbreaker.New("broker"),
	}
}

func withTimeout(fn func() error) error {
	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case err := <-done:
		return err
	case <-time.After(callTimeout):
		return context.DeadlineExceeded
	}
}

// PlaceOrder satisfies execution.PlaceOrderFunc, routing the call through
// the circuit breaker and the per-call timeout before the execution
// stack's own retry/backoff policy ever sees the error.
func (b *LiveBroker) PlaceOrder(args execution.OrderArgs) (string, error) {
	var orderID string
	err := b.breaker.Call(func() error {
		return withTimeout(func() error {
			id, err := b.client.PlaceOrder(VarietyRegular, model.ExchangeNFO, args.TradingSymbol, args.TransactionType, args.Quantity, args.Product, args.OrderType, args.Price, args.TriggerPrice, args.GroupName)
			if err != nil {
				return err
			}
			orderID = id
			return nil
		})
	})
	if err != nil {
		if err == circuitbreaker.ErrOpen {
			log.Warn("broker call short-circuited: breaker open")
		}
		return "", fmt.Errorf("place order: %w", err)
	}
	return orderID, nil
}

// CancelOrder cancels a live order through the breaker.
func (b *LiveBroker) CancelOrder(orderID string) error {
	return b.breaker.Call(func() error {
		return withTimeout(func() error {
			return b.client.CancelOrder(VarietyRegular, orderID)
		})
	})
}

// Positions pulls the broker's net position book, reshaped into
// position.BrokerPosition for the Position Manager's refresh protocol.
func (b *LiveBroker) Positions() ([]position.BrokerPosition, error) {
	var raw []RawPosition
	err := b.breaker.Call(func() error {
		return withTimeout(func() error {
			r, err := b.client.Positions()
			if err != nil {
				return err
			}
			raw = r
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("positions: %w", err)
	}
	out := make([]position.BrokerPosition, 0, len(raw))
	for _, r := range raw {
		out = append(out, position.BrokerPosition{
			TradingSymbol:   r.TradingSymbol,
			InstrumentToken: r.InstrumentToken,
			Quantity:        r.Quantity,
			AvgPrice:        r.AvgPrice,
			LTP:             r.LTP,
			Product:         r.Product,
			Exchange:        r.Exchange,
			GroupName:       r.GroupName,
		})
	}
	return out, nil
}

// Orders pulls the broker's full order book.
func (b *LiveBroker) Orders() ([]model.PendingOrder, error) {
	var out []model.PendingOrder
	err := b.breaker.Call(func() error {
		return withTimeout(func() error {
			o, err := b.client.Orders()
			if err != nil {
				return err
			}
			out = o
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("orders: %w", err)
	}
	return out, nil
}

// Profile returns the broker's user profile, e.g. {"user_id": "..."}.
func (b *LiveBroker) Profile() (map[string]string, error) {
	var out map[string]string
	err := b.breaker.Call(func() error {
		return withTimeout(func() error {
			p, err := b.client.Profile()
			if err != nil {
				return err
			}
			out = p
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("profile: %w", err)
	}
	return out, nil
}

// Margins returns the broker's equity/commodity margin segments.
func (b *LiveBroker) Margins() (map[string]any, error) {
	var out map[string]any
	err := b.breaker.Call(func() error {
		return withTimeout(func() error {
			m, err := b.client.Margins()
			if err != nil {
				return err
			}
			out = m
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("margins: %w", err)
	}
	return out, nil
}

// BreakerState exposes the underlying circuit breaker's state for the
// status API's ops surface.
func (b *LiveBroker) BreakerState() circuitbreaker.State {
	return b.breaker.State()
}

// BreakerMetrics exposes the underlying circuit breaker's call metrics.
func (b *LiveBroker) BreakerMetrics() circuitbreaker.Metrics {
	return b.breaker.Metrics()
}
