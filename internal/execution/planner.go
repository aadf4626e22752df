package execution

import (
	"math/rand"

	"github.com/kaviarasu301/imperium-exec-core/internal/model"
)

// Plan slices a parent quantity into child orders: a single slice for
// IMMEDIATE/IS, an evenly-distributed (optionally
// jittered) set of slices for TWAP/VWAP/POV. The sum of slices always
// equals quantity and no slice is ever zero.
func Plan(algo model.Algo, quantity, maxChildOrders int, randomizeSlices bool, rng *rand.Rand) []int {
	if quantity <= 0 {
		return nil
	}

	switch algo {
	case model.AlgoImmediate, model.AlgoIS:
		return []int{quantity}
	}

	slices := maxChildOrders
	if slices <= 0 || slices > quantity {
		slices = quantity
	}
	if slices < 1 {
		slices = 1
	}

	base := quantity / slices
	remainder := quantity % slices

	out := make([]int, slices)
	for i := range out {
		out[i] = base
		if i < remainder {
			out[i]++
		}
	}

	if randomizeSlices && slices > 1 {
		jitter(out, rng)
	}

	return out
}

// jitter applies +/-15% jitter per slice while preserving the total; the
// last slice absorbs whatever residue the rounding leaves behind, and no
// slice is ever pushed to zero.
func jitter(slices []int, rng *rand.Rand) {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}

	total := 0
	for _, s := range slices {
		total += s
	}

	jittered := make([]int, len(slices))
	runningSum := 0
	for i := 0; i < len(slices)-1; i++ {
		factor := 1.0 + (rng.Float64()*2-1)*0.15
		v := int(float64(slices[i]) * factor)
		if v < 1 {
			v = 1
		}
		jittered[i] = v
		runningSum += v
	}
	last := total - runningSum
	if last < 1 {
		last = 1
	}
	jittered[len(slices)-1] = last

	copy(slices, jittered)
}
