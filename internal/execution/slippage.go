package execution

import (
	"math"

	"github.com/shopspring/decimal"
)

// SlippageEstimate is the per-child cost estimate the Execution Stack
// journals alongside every order_placed event.
type SlippageEstimate struct {
	ExpectedSlippage float64
	ImpactEstimate   float64
}

// EstimateSlippage implements the slippage model: spread cost plus a
// participation-scaled market-impact term.
func EstimateSlippage(bid, ask, ltp float64, childQty, parentQty int) SlippageEstimate {
	var spreadCost float64
	if bid > 0 && ask > 0 && ask >= bid {
		spreadCost = (ask - bid) / 2
	} else {
		spreadCost = ltp * 0.001
	}

	participation := 0.0
	if parentQty > 0 {
		participation = float64(childQty) / float64(parentQty)
	}
	participation = clamp(participation, 0.01, 1.0)

	impact := ltp * 0.0004 * math.Pow(participation, 0.6)

	return SlippageEstimate{
		ExpectedSlippage: roundRupees(spreadCost + impact),
		ImpactEstimate:   roundRupees(impact),
	}
}

// roundRupees rounds a money amount to paise precision through
// decimal.Decimal rather than float64, so the journaled and ledgered
// figures don't drift across process restarts the way repeated
// float-formatting can.
func roundRupees(v float64) float64 {
	d, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return d
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
