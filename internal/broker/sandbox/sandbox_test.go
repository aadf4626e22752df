package sandbox

import (
	"testing"

	"github.com/adshao/go-binance/v2"
	"github.com/stretchr/testify/require"

	"github.com/kaviarasu301/imperium-exec-core/internal/broker"
	"github.com/kaviarasu301/imperium-exec-core/internal/model"
)

// the reference tree never type-asserts its exchange clients against a
// shared interface, but this assertion is the whole point of the
// adapter: a SandboxBroker must satisfy the same duck-typed contract a
// LiveBroker does.
var _ broker.Client = (*SandboxBroker)(nil)

func TestSandboxBrokerTokenAssignmentIsStable(t *testing.T) {
	s := New("", "")

	first := s.tokenFor("BTCUSDT")
	second := s.tokenFor("BTCUSDT")
	require.Equal(t, first, second)

	other := s.tokenFor("ETHUSDT")
	require.NotEqual(t, first, other)
}

func TestSandboxBrokerSideAndOrderTypeMapping(t *testing.T) {
	require.Equal(t, binance.SideTypeBuy, sideFor(model.TransactionBuy))
	require.Equal(t, binance.SideTypeSell, sideFor(model.TransactionSell))

	require.Equal(t, binance.OrderTypeMarket, orderTypeFor(model.OrderMarket))
	require.Equal(t, binance.OrderTypeLimit, orderTypeFor(model.OrderLimit))
	require.Equal(t, binance.OrderTypeStopLoss, orderTypeFor(model.OrderSL))
}

func TestSandboxBrokerParseFloat(t *testing.T) {
	require.InDelta(t, 1.25, parseFloat("1.25"), 1e-9)
	require.InDelta(t, 0, parseFloat(""), 1e-9)
}
