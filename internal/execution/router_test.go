package execution

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kaviarasu301/imperium-exec-core/internal/model"
)

func TestRouteJoinsBidOnWideSpread(t *testing.T) {
	req := model.ExecutionRequest{OrderType: model.OrderMarket, Bid: 99, Ask: 101.5}
	decision := Route(req, false)
	require.Equal(t, model.OrderLimit, decision.OrderType)
	require.Equal(t, 99.0, decision.LimitPrice)
	require.Equal(t, QueueJoin, decision.QueuePriority)
	require.Greater(t, decision.SpreadBps, 12.0)
}

func TestRouteLeavesTightSpreadUnchanged(t *testing.T) {
	req := model.ExecutionRequest{OrderType: model.OrderMarket, Bid: 100, Ask: 100.05}
	decision := Route(req, false)
	require.Equal(t, model.OrderMarket, decision.OrderType)
	require.Equal(t, QueueNone, decision.QueuePriority)
}

func TestRouteHighUrgencyTakesQueue(t *testing.T) {
	req := model.ExecutionRequest{OrderType: model.OrderLimit, Bid: 100, Ask: 100.05, Urgency: model.UrgencyHigh}
	decision := Route(req, false)
	require.Equal(t, QueueTake, decision.QueuePriority)
}

func TestRouteMarketOverrideCrossesTheAsk(t *testing.T) {
	req := model.ExecutionRequest{OrderType: model.OrderLimit, Bid: 100, Ask: 100.2}
	decision := Route(req, true)
	require.Equal(t, model.OrderLimit, decision.OrderType)
	require.Equal(t, 100.2, decision.LimitPrice)
}

func TestRouteZeroQuotesYieldZeroSpread(t *testing.T) {
	req := model.ExecutionRequest{OrderType: model.OrderMarket}
	decision := Route(req, false)
	require.Equal(t, 0.0, decision.SpreadBps)
}
