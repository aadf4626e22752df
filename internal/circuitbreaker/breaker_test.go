package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCallTripsOpenAfterThresholdFailures(t *testing.T) {
	b := NewWithParams("test", 3, time.Hour, 2, 1, time.Hour)
	failing := func() error { return errors.New("boom") }

	for i := 0; i < 3; i++ {
		require.Error(t, b.Call(failing))
	}
	require.Equal(t, Open, b.State())

	err := b.Call(failing)
	require.ErrorIs(t, err, ErrOpen)
	require.Equal(t, int64(3), b.Metrics().FailedCalls)
}

func TestCallResetsFailureCountOnSuccessWhileClosed(t *testing.T) {
	b := NewWithParams("test", 3, time.Hour, 2, 1, time.Hour)
	require.NoError(t, b.Call(func() error { return nil }))
	require.Error(t, b.Call(func() error { return errors.New("one") }))
	require.Error(t, b.Call(func() error { return errors.New("two") }))
	require.Equal(t, Closed, b.State(), "a success between failures should not let unrelated failures accumulate past the reset")
}

func TestHalfOpenAllowsLimitedProbesThenCloses(t *testing.T) {
	b := NewWithParams("test", 1, time.Millisecond, 2, 2, time.Hour)
	require.Error(t, b.Call(func() error { return errors.New("trip") }))
	require.Equal(t, Open, b.State())

	time.Sleep(5 * time.Millisecond)

	require.NoError(t, b.Call(func() error { return nil }))
	require.Equal(t, HalfOpen, b.State(), "one success short of successThreshold must stay half-open")

	require.NoError(t, b.Call(func() error { return nil }))
	require.Equal(t, Closed, b.State())
}

func TestHalfOpenFailureReopensImmediately(t *testing.T) {
	b := NewWithParams("test", 1, time.Millisecond, 2, 2, time.Hour)
	require.Error(t, b.Call(func() error { return errors.New("trip") }))
	time.Sleep(5 * time.Millisecond)

	require.Error(t, b.Call(func() error { return errors.New("probe failed") }))
	require.Equal(t, Open, b.State())
}

func TestHalfOpenRejectsCallsBeyondMaxProbes(t *testing.T) {
	b := NewWithParams("test", 1, time.Millisecond, 1, 5, time.Hour)
	require.Error(t, b.Call(func() error { return errors.New("trip") }))
	time.Sleep(5 * time.Millisecond)

	calls := 0
	slow := func() error { calls++; return nil }
	require.NoError(t, b.Call(slow))
	require.Equal(t, HalfOpen, b.State())

	err := b.Call(slow)
	require.ErrorIs(t, err, ErrOpen)
	require.Equal(t, 1, calls, "a second probe beyond halfOpenMaxCalls must never reach fn")
}

func TestResetForcesClosed(t *testing.T) {
	b := NewWithParams("test", 1, time.Hour, 2, 1, time.Hour)
	require.Error(t, b.Call(func() error { return errors.New("trip") }))
	require.Equal(t, Open, b.State())

	b.Reset()
	require.Equal(t, Closed, b.State())
}

func TestMetricsSuccessRate(t *testing.T) {
	b := New("test")
	require.Equal(t, 0.0, b.Metrics().SuccessRate())

	require.NoError(t, b.Call(func() error { return nil }))
	require.Error(t, b.Call(func() error { return errors.New("x") }))

	require.InDelta(t, 50.0, b.Metrics().SuccessRate(), 1e-9)
}
