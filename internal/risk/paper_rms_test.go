package risk

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewPaperRMSDefaultsStartingBalance(t *testing.T) {
	r := NewPaperRMS(0)
	require.Equal(t, 1_000_000.0, r.AvailableMargin())
}

func TestRequiredMarginAppliesSafetyFactor(t *testing.T) {
	r := NewPaperRMS(100000)
	margin, err := r.RequiredMargin(100, 10)
	require.NoError(t, err)
	require.InDelta(t, 1100.0, margin, 1e-9)
}

func TestRequiredMarginRejectsNonPositiveQuantity(t *testing.T) {
	r := NewPaperRMS(100000)
	_, err := r.RequiredMargin(100, 0)
	require.Error(t, err)
}

func TestCanPlaceOrderRejectsWhenMarginInsufficient(t *testing.T) {
	r := NewPaperRMS(1000)
	ok, reason := r.CanPlaceOrder(100, 100)
	require.False(t, ok)
	require.Contains(t, reason, "insufficient margin")
}

func TestReserveAndReleaseMarginRoundTrip(t *testing.T) {
	r := NewPaperRMS(100000)
	r.ReserveMargin(100, 10)
	require.InDelta(t, 1100.0, r.UsedMargin(), 1e-9)
	require.InDelta(t, 98900.0, r.AvailableMargin(), 1e-9)

	r.ReleaseMargin(100, 10)
	require.InDelta(t, 0, r.UsedMargin(), 1e-9)
	require.InDelta(t, 100000.0, r.AvailableMargin(), 1e-9)
}

func TestReleaseMarginNeverGoesNegative(t *testing.T) {
	r := NewPaperRMS(100000)
	r.ReleaseMargin(100, 10)
	require.Zero(t, r.UsedMargin())
}

func TestSetUsedMarginClampsNegativeToZero(t *testing.T) {
	r := NewPaperRMS(100000)
	r.SetUsedMargin(-50)
	require.Zero(t, r.UsedMargin())
}

func TestSnapshotReflectsCurrentState(t *testing.T) {
	r := NewPaperRMS(50000)
	r.ReserveMargin(100, 5)
	snap := r.Snapshot()
	require.InDelta(t, 550.0, snap["used"], 1e-9)
	require.InDelta(t, 49450.0, snap["available"], 1e-9)
	require.InDelta(t, 50000.0, snap["total"], 1e-9)
}
