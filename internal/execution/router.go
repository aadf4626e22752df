package execution

import "github.com/kaviarasu301/imperium-exec-core/internal/model"

// QueuePriority is the router's hint about how aggressively a child order
// should seek to cross the spread.
type QueuePriority string

const (
	QueueTake QueuePriority = "take"
	QueueJoin QueuePriority = "join"
	QueueNone QueuePriority = ""
)

// RouteDecision is the smart order router's output.
type RouteDecision struct {
	OrderType     model.OrderType
	LimitPrice    float64
	QueuePriority QueuePriority
	SpreadBps     float64
}

// Route computes the smart order router's decision.
func Route(req model.ExecutionRequest, marketOverride bool) RouteDecision {
	spreadBps := spreadBps(req.Bid, req.Ask)

	decision := RouteDecision{
		OrderType:     req.OrderType,
		QueuePriority: QueueNone,
	}
	if req.LimitPrice != nil {
		decision.LimitPrice = *req.LimitPrice
	}

	if req.Urgency == model.UrgencyHigh {
		decision.QueuePriority = QueueTake
	}

	switch {
	case marketOverride && req.Ask > 0:
		if decision.LimitPrice < req.Ask {
			decision.LimitPrice = req.Ask
		}
		decision.OrderType = model.OrderLimit
	case spreadBps > 12 && req.Bid > 0:
		decision.OrderType = model.OrderLimit
		decision.LimitPrice = req.Bid
		decision.QueuePriority = QueueJoin
	}

	decision.SpreadBps = spreadBps
	return decision
}

func spreadBps(bid, ask float64) float64 {
	if bid <= 0 || ask <= 0 {
		return 0
	}
	mid := (bid + ask) / 2
	if mid == 0 {
		return 0
	}
	return (ask - bid) / mid * 10000
}
