package recovery

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ballast-systems/ballast/internal/metrics"
	"github.com/ballast-systems/ballast/pkg/types"
)

// ErrCircuitOpen is returned when an open breaker rejects a call without
// invoking the operation.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// ErrTooManyTrialCalls is returned when a half-open breaker has already
// admitted its quota of trial calls.
var ErrTooManyTrialCalls = errors.New("circuit breaker half-open trial quota exhausted")

// BreakerConfig holds circuit breaker settings.
type BreakerConfig struct {
	FailureThreshold int           // consecutive failures before opening (default 5)
	RecoveryTimeout  time.Duration // how long to stay open before probing (default 30s)
	HalfOpenMaxCalls int           // trial calls admitted while half-open (default 3)
}

// DefaultBreakerConfig returns the default breaker settings.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		RecoveryTimeout:  30 * time.Second,
		HalfOpenMaxCalls: 3,
	}
}

// BreakerCounts is a snapshot of breaker activity.
type BreakerCounts struct {
	TotalCalls        int64 `json:"totalCalls"`
	SuccessfulCalls   int64 `json:"successfulCalls"`
	FailedCalls       int64 `json:"failedCalls"`
	RejectedCalls     int64 `json:"rejectedCalls"`
	StateChanges      int64 `json:"stateChanges"`
	RecoveryAttempts  int64 `json:"recoveryAttempts"`
	RecoverySuccesses int64 `json:"recoverySuccesses"`
}

// CircuitBreaker guards one named operation. In closed state failures
// accumulate; at the threshold the breaker opens and rejects calls without
// invoking the operation. After RecoveryTimeout has elapsed since the last
// failure, the next call flips the breaker half-open and is admitted as a
// trial; HalfOpenMaxCalls consecutive trial successes close it again, any
// trial failure reopens it immediately.
type CircuitBreaker struct {
	name string
	cfg  BreakerConfig

	mu                sync.Mutex
	state             types.CircuitState
	failureCount      int
	lastFailureTime   time.Time
	halfOpenCalls     int
	halfOpenSuccesses int
	counts            BreakerCounts
}

// NewCircuitBreaker creates a breaker, filling zero config fields with
// defaults.
func NewCircuitBreaker(name string, cfg BreakerConfig) *CircuitBreaker {
	def := DefaultBreakerConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = def.RecoveryTimeout
	}
	if cfg.HalfOpenMaxCalls <= 0 {
		cfg.HalfOpenMaxCalls = def.HalfOpenMaxCalls
	}
	return &CircuitBreaker{
		name:  name,
		cfg:   cfg,
		state: types.CircuitClosed,
	}
}

// Name returns the breaker's guarded operation name.
func (cb *CircuitBreaker) Name() string { return cb.name }

// State returns the current breaker state.
func (cb *CircuitBreaker) State() types.CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Counts returns a snapshot of breaker activity.
func (cb *CircuitBreaker) Counts() BreakerCounts {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.counts
}

// FailureCount returns the consecutive failure counter.
func (cb *CircuitBreaker) FailureCount() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failureCount
}

// transition moves to a new state and updates counters. Caller holds the lock.
func (cb *CircuitBreaker) transition(to types.CircuitState) {
	if cb.state == to {
		return
	}
	cb.state = to
	cb.counts.StateChanges++
	metrics.BreakerTransitionsTotal.WithLabelValues(cb.name, string(to)).Inc()
	if to == types.CircuitHalfOpen {
		cb.halfOpenCalls = 0
		cb.halfOpenSuccesses = 0
		cb.counts.RecoveryAttempts++
	}
}

// admit decides whether a call may proceed. Caller holds the lock.
func (cb *CircuitBreaker) admit(now time.Time) error {
	switch cb.state {
	case types.CircuitClosed:
		return nil
	case types.CircuitOpen:
		if now.Sub(cb.lastFailureTime) >= cb.cfg.RecoveryTimeout {
			cb.transition(types.CircuitHalfOpen)
			cb.halfOpenCalls = 1
			return nil
		}
		return ErrCircuitOpen
	case types.CircuitHalfOpen:
		if cb.halfOpenCalls < cb.cfg.HalfOpenMaxCalls {
			cb.halfOpenCalls++
			return nil
		}
		return ErrTooManyTrialCalls
	}
	return nil
}

// record applies one call outcome to the state machine. Caller holds the lock.
func (cb *CircuitBreaker) record(success bool, now time.Time) {
	switch cb.state {
	case types.CircuitClosed:
		if success {
			cb.failureCount = 0
			return
		}
		cb.failureCount++
		cb.lastFailureTime = now
		if cb.failureCount >= cb.cfg.FailureThreshold {
			cb.transition(types.CircuitOpen)
		}
	case types.CircuitHalfOpen:
		if success {
			cb.halfOpenSuccesses++
			if cb.halfOpenSuccesses >= cb.cfg.HalfOpenMaxCalls {
				cb.transition(types.CircuitClosed)
				cb.failureCount = 0
				cb.counts.RecoverySuccesses++
			}
			return
		}
		cb.lastFailureTime = now
		cb.transition(types.CircuitOpen)
	case types.CircuitOpen:
		// A call recorded against an open breaker finished after the state
		// flipped; only failures refresh the failure clock.
		if !success {
			cb.lastFailureTime = now
		}
	}
}

// Execute guards the operation. Rejected calls return ErrCircuitOpen or
// ErrTooManyTrialCalls without invoking the operation.
func (cb *CircuitBreaker) Execute(ctx context.Context, op Operation) (interface{}, error) {
	cb.mu.Lock()
	if err := cb.admit(time.Now()); err != nil {
		cb.counts.RejectedCalls++
		cb.mu.Unlock()
		metrics.BreakerRejectionsTotal.WithLabelValues(cb.name).Inc()
		return nil, err
	}
	cb.counts.TotalCalls++
	cb.mu.Unlock()

	value, err := runSafely(ctx, op)

	cb.mu.Lock()
	if err != nil {
		cb.counts.FailedCalls++
	} else {
		cb.counts.SuccessfulCalls++
	}
	cb.record(err == nil, time.Now())
	cb.mu.Unlock()

	return value, err
}
