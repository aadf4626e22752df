package broker

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kaviarasu301/imperium-exec-core/internal/execution"
	"github.com/kaviarasu301/imperium-exec-core/internal/model"
)

type fakeClient struct {
	placeErr  error
	orderID   string
	positions []RawPosition
	orders    []model.PendingOrder
	calls     int
}

func (f *fakeClient) PlaceOrder(variety string, exchange model.Exchange, tradingSymbol string, txnType model.TransactionType, quantity int, product model.Product, orderType model.OrderType, price, triggerPrice *float64, groupName string) (string, error) {
	f.calls++
	if f.placeErr != nil {
		return "", f.placeErr
	}
	return f.orderID, nil
}

func (f *fakeClient) CancelOrder(variety, orderID string) error { return nil }
func (f *fakeClient) Positions() ([]RawPosition, error)         { return f.positions, nil }
func (f *fakeClient) Orders() ([]model.PendingOrder, error)     { return f.orders, nil }
func (f *fakeClient) Profile() (map[string]string, error)       { return map[string]string{"user_id": "u1"}, nil }
func (f *fakeClient) Margins() (map[string]any, error)          { return map[string]any{}, nil }

func TestLiveBrokerPlaceOrderSuccess(t *testing.T) {
	fc := &fakeClient{orderID: "ord-1"}
	b := NewLiveBroker(fc)

	id, err := b.PlaceOrder(execution.OrderArgs{TradingSymbol: "NIFTY24DEC24500CE", TransactionType: model.TransactionBuy, Quantity: 50, Product: model.ProductMIS, OrderType: model.OrderMarket})
	require.NoError(t, err)
	require.Equal(t, "ord-1", id)
	require.Equal(t, 1, fc.calls)
}

func TestLiveBrokerPlaceOrderTripsBreaker(t *testing.T) {
	fc := &fakeClient{placeErr: errors.New("connection reset")}
	b := NewLiveBroker(fc)

	for i := 0; i < 5; i++ {
		_, err := b.PlaceOrder(execution.OrderArgs{TradingSymbol: "NIFTY24DEC24500CE", TransactionType: model.TransactionBuy, Quantity: 50})
		require.Error(t, err)
	}

	require.Equal(t, "open", string(b.BreakerState()))

	_, err := b.PlaceOrder(execution.OrderArgs{TradingSymbol: "NIFTY24DEC24500CE", TransactionType: model.TransactionBuy, Quantity: 50})
	require.Error(t, err)
	// the breaker itself rejected this call rather than reaching the client
	require.Equal(t, 5, fc.calls)
}

func TestLiveBrokerPositionsReshapesRows(t *testing.T) {
	fc := &fakeClient{positions: []RawPosition{{TradingSymbol: "NIFTY24DEC24500CE", InstrumentToken: 256265, Quantity: 50, AvgPrice: 120, Product: model.ProductMIS, Exchange: model.ExchangeNFO}}}
	b := NewLiveBroker(fc)

	pos, err := b.Positions()
	require.NoError(t, err)
	require.Len(t, pos, 1)
	require.Equal(t, "NIFTY24DEC24500CE", pos[0].TradingSymbol)
	require.Equal(t, 50, pos[0].Quantity)
}
