// Package circuitbreaker implements the CLOSED/OPEN/HALF_OPEN breaker that
// guards broker API calls, ported from original_source's APICircuitBreaker
// (exponential backoff, half-open probing, metrics summary on recovery).
package circuitbreaker

import (
	"errors"
	"sync"
	"time"

	"github.com/kaviarasu301/imperium-exec-core/internal/logger"
)

// State is one of the three breaker states.
type State string

const (
	Closed   State = "closed"
	Open     State = "open"
	HalfOpen State = "half_open"
)

// StateChange records a transition for the metrics history.
type StateChange struct {
	State State
	At    time.Time
}

// Metrics tracks call outcomes across the breaker's lifetime.
type Metrics struct {
	TotalCalls     int64
	SuccessfulCalls int64
	FailedCalls     int64
	RejectedCalls   int64
	LastSuccess     time.Time
	LastFailure     time.Time
	StateChanges    []StateChange
}

// SuccessRate returns the percentage of calls that succeeded.
func (m Metrics) SuccessRate() float64 {
	if m.TotalCalls == 0 {
		return 0
	}
	return float64(m.SuccessfulCalls) / float64(m.TotalCalls) * 100
}

// ErrOpen is returned by Call when the breaker rejects the call outright.
var ErrOpen = errors.New("circuit breaker open")

// Breaker is a single API instance's circuit breaker.
type Breaker struct {
	mu sync.Mutex

	failureThreshold  int
	baseTimeout       time.Duration
	timeout           time.Duration
	halfOpenMaxCalls  int
	successThreshold  int
	maxTimeout        time.Duration

	failureCount        int
	halfOpenAttempts    int
	halfOpenSuccesses   int
	consecutiveFailures int

	state           State
	lastFailureTime time.Time
	lastStateChange time.Time

	metrics Metrics

	name string
}

// New builds a breaker with the standard defaults:
// failure_threshold=5, base_timeout=60s, half_open_max_calls=3,
// success_threshold=2, max_timeout=300s.
func New(name string) *Breaker {
	return NewWithParams(name, 5, 60*time.Second, 3, 2, 300*time.Second)
}

// NewWithParams builds a breaker with explicit parameters, for tests.
func NewWithParams(name string, failureThreshold int, baseTimeout time.Duration, halfOpenMaxCalls, successThreshold int, maxTimeout time.Duration) *Breaker {
	return &Breaker{
		name:             name,
		failureThreshold: failureThreshold,
		baseTimeout:      baseTimeout,
		timeout:          baseTimeout,
		halfOpenMaxCalls: halfOpenMaxCalls,
		successThreshold: successThreshold,
		maxTimeout:       maxTimeout,
		state:            Closed,
	}
}

// CanExecute reports whether a call should be allowed right now, per the
// CLOSED/OPEN/HALF_OPEN state machine.
func (b *Breaker) CanExecute() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.metrics.TotalCalls++

	switch b.state {
	case Closed:
		return true
	case Open:
		if b.shouldAttemptResetLocked() {
			b.transitionToHalfOpenLocked()
			return true
		}
		b.metrics.RejectedCalls++
		return false
	case HalfOpen:
		if b.halfOpenAttempts < b.halfOpenMaxCalls {
			b.halfOpenAttempts++
			return true
		}
		b.metrics.RejectedCalls++
		return false
	}
	return false
}

// RecordSuccess marks the most recent allowed call as successful.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.metrics.SuccessfulCalls++
	b.metrics.LastSuccess = time.Now()
	b.consecutiveFailures = 0

	switch b.state {
	case HalfOpen:
		b.halfOpenSuccesses++
		if b.halfOpenSuccesses >= b.successThreshold {
			b.transitionToClosedLocked()
		}
	case Closed:
		b.failureCount = 0
	}
}

// RecordFailure marks the most recent allowed call as failed, applying
// exponential backoff when it reopens the circuit.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.metrics.FailedCalls++
	b.failureCount++
	b.consecutiveFailures++
	b.lastFailureTime = time.Now()
	b.metrics.LastFailure = b.lastFailureTime

	switch b.state {
	case HalfOpen:
		b.transitionToOpenLocked()
	case Closed:
		if b.failureCount >= b.failureThreshold {
			b.transitionToOpenLocked()
		}
	}
}

// Call wraps fn with the breaker: rejects outright when OPEN and the
// timeout hasn't elapsed, short-circuiting before any retry policy runs.
func (b *Breaker) Call(fn func() error) error {
	if !b.CanExecute() {
		return ErrOpen
	}
	if err := fn(); err != nil {
		b.RecordFailure()
		return err
	}
	b.RecordSuccess()
	return nil
}

func (b *Breaker) transitionToOpenLocked() {
	b.state = Open
	b.lastStateChange = time.Now()

	exp := 1 << uint(max(0, b.consecutiveFailures-1))
	backoff := b.baseTimeout * time.Duration(exp)
	if backoff > b.maxTimeout {
		backoff = b.maxTimeout
	}
	b.timeout = backoff

	b.metrics.StateChanges = append(b.metrics.StateChanges, StateChange{State: Open, At: b.lastStateChange})
	logger.Warnf("circuit %s OPEN failures=%d timeout=%s", b.name, b.failureCount, b.timeout)
}

func (b *Breaker) transitionToHalfOpenLocked() {
	b.state = HalfOpen
	b.lastStateChange = time.Now()
	b.halfOpenAttempts = 0
	b.halfOpenSuccesses = 0
	b.metrics.StateChanges = append(b.metrics.StateChanges, StateChange{State: HalfOpen, At: b.lastStateChange})
	logger.Infof("circuit %s HALF_OPEN testing recovery", b.name)
}

func (b *Breaker) transitionToClosedLocked() {
	b.state = Closed
	b.lastStateChange = time.Now()
	b.failureCount = 0
	b.halfOpenAttempts = 0
	b.halfOpenSuccesses = 0
	b.timeout = b.baseTimeout
	b.metrics.StateChanges = append(b.metrics.StateChanges, StateChange{State: Closed, At: b.lastStateChange})

	log := logger.With("api_health")
	zl := log.Raw()
	zl.Info().
		Int64("total", b.metrics.TotalCalls).
		Int64("success", b.metrics.SuccessfulCalls).
		Int64("failed", b.metrics.FailedCalls).
		Int64("rejected", b.metrics.RejectedCalls).
		Float64("success_rate", b.metrics.SuccessRate()).
		Msg("circuit closed, recovery complete")
}

func (b *Breaker) shouldAttemptResetLocked() bool {
	if b.lastFailureTime.IsZero() {
		return true
	}
	return time.Since(b.lastFailureTime) >= b.timeout
}

// State returns the current breaker state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Metrics returns a snapshot of the breaker's call metrics.
func (b *Breaker) Metrics() Metrics {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.metrics
}

// Reset manually forces the breaker back to CLOSED.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transitionToClosedLocked()
}
