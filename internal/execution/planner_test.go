package execution

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kaviarasu301/imperium-exec-core/internal/model"
)

func sum(slices []int) int {
	total := 0
	for _, s := range slices {
		total += s
	}
	return total
}

func TestPlanImmediateIsSingleSlice(t *testing.T) {
	require.Equal(t, []int{75}, Plan(model.AlgoImmediate, 75, 5, false, nil))
	require.Equal(t, []int{75}, Plan(model.AlgoIS, 75, 5, false, nil))
}

func TestPlanTWAPDistributesEvenlyWithRemainder(t *testing.T) {
	slices := Plan(model.AlgoTWAP, 17, 5, false, nil)
	require.Len(t, slices, 5)
	require.Equal(t, 17, sum(slices))
	for _, s := range slices {
		require.GreaterOrEqual(t, s, 3)
	}
}

func TestPlanCapsSlicesAtQuantity(t *testing.T) {
	slices := Plan(model.AlgoVWAP, 3, 10, false, nil)
	require.Len(t, slices, 3)
	require.Equal(t, 3, sum(slices))
}

func TestPlanZeroOrNegativeQuantityReturnsNil(t *testing.T) {
	require.Nil(t, Plan(model.AlgoTWAP, 0, 5, false, nil))
	require.Nil(t, Plan(model.AlgoTWAP, -4, 5, false, nil))
}

func TestPlanJitterPreservesTotalAndNeverZeros(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	slices := Plan(model.AlgoPOV, 50, 6, true, rng)
	require.Equal(t, 50, sum(slices))
	for _, s := range slices {
		require.GreaterOrEqual(t, s, 1)
	}
}
