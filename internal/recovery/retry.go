// Package recovery implements the recovery strategy engine: backoff retry,
// circuit breaking, prioritized fallback, and the strategy-selecting
// orchestrator.
package recovery

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/ballast-systems/ballast/internal/metrics"
	"github.com/ballast-systems/ballast/pkg/types"
)

// RetryConfig holds retry strategy settings.
type RetryConfig struct {
	MaxAttempts  int
	Backoff      types.BackoffKind
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	JitterFactor float64
}

// DefaultRetryConfig returns the default retry settings.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		Backoff:      types.BackoffExponential,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.2,
	}
}

// RetryStats is a snapshot of retry activity across all executions.
type RetryStats struct {
	Executions      int64         `json:"executions"`
	Successes       int64         `json:"successes"`
	Failures        int64         `json:"failures"`
	AverageAttempts float64       `json:"averageAttempts"`
	AverageDuration time.Duration `json:"averageDuration"`
}

// Operation is a guarded call. The engine's cancellation is best-effort:
// operations should honor ctx or be idempotent.
type Operation func(ctx context.Context) (interface{}, error)

// Retryer executes operations with configurable backoff between attempts.
// The backoff sleep blocks the calling goroutine; callers wanting
// non-blocking retry must run the loop on their own worker.
type Retryer struct {
	cfg RetryConfig

	mu            sync.Mutex
	predicate     func(err error, attempt int) bool
	whitelist     []func(error) bool
	executions    int64
	successes     int64
	failures      int64
	totalAttempts int64
	totalDuration time.Duration
}

// NewRetryer creates a retryer, filling zero config fields with defaults.
func NewRetryer(cfg RetryConfig) *Retryer {
	def := DefaultRetryConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if !cfg.Backoff.Valid() {
		cfg.Backoff = def.Backoff
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = def.InitialDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = def.Multiplier
	}
	if cfg.JitterFactor < 0 {
		cfg.JitterFactor = def.JitterFactor
	}
	return &Retryer{cfg: cfg}
}

// SetPredicate registers a rejection predicate consulted by ShouldRetry.
func (r *Retryer) SetPredicate(p func(err error, attempt int) bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.predicate = p
}

// Whitelist registers a retryable failure kind. Once any matcher is
// registered, only matching failures are retried.
func (r *Retryer) Whitelist(match func(error) bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.whitelist = append(r.whitelist, match)
}

// nonRetryable reports failures that must never be retried: caller aborts
// and memory exhaustion.
func nonRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "out of memory") || strings.Contains(msg, "cannot allocate memory")
}

// ShouldRetry decides whether another attempt is permitted after a failure.
// attempt is the number of attempts already made.
func (r *Retryer) ShouldRetry(err error, attempt int) bool {
	if attempt >= r.cfg.MaxAttempts {
		return false
	}
	if err == nil {
		return false
	}
	r.mu.Lock()
	predicate := r.predicate
	whitelist := r.whitelist
	r.mu.Unlock()
	if predicate != nil && !predicate(err, attempt) {
		return false
	}
	if len(whitelist) > 0 {
		for _, match := range whitelist {
			if match(err) {
				return true
			}
		}
		return false
	}
	return !nonRetryable(err)
}

// CalculateDelay returns the backoff before the attempt after the given
// zero-based attempt index, clamped to MaxDelay.
func (r *Retryer) CalculateDelay(attempt int) time.Duration {
	base := float64(r.cfg.InitialDelay)
	var delay float64
	switch r.cfg.Backoff {
	case types.BackoffFixed:
		delay = base
	case types.BackoffLinear:
		delay = base * float64(attempt+1)
	case types.BackoffExponential:
		delay = base * math.Pow(r.cfg.Multiplier, float64(attempt))
	case types.BackoffExponentialJitter:
		delay = base * math.Pow(r.cfg.Multiplier, float64(attempt))
		delay += rand.Float64() * delay * r.cfg.JitterFactor
	default:
		delay = base
	}
	if delay > float64(r.cfg.MaxDelay) {
		delay = float64(r.cfg.MaxDelay)
	}
	return time.Duration(delay)
}

// ExecuteWithRetry runs the operation until it succeeds, retries are
// exhausted, or the failure is ruled non-retryable. Each attempt is recorded;
// the backoff sleep happens between attempts, never after the last.
func (r *Retryer) ExecuteWithRetry(ctx context.Context, op Operation) types.RetryResult {
	start := time.Now()
	result := types.RetryResult{}

	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		attemptStart := time.Now()
		value, err := runSafely(ctx, op)
		record := types.AttemptRecord{
			Number:   attempt,
			Success:  err == nil,
			Duration: time.Since(attemptStart),
		}
		if err != nil {
			record.Error = err.Error()
		}
		result.Attempts = append(result.Attempts, record)
		result.AttemptsMade = attempt

		if err == nil {
			result.Success = true
			result.Result = value
			metrics.RetryAttemptsTotal.WithLabelValues("success").Inc()
			break
		}
		result.Err = err
		metrics.RetryAttemptsTotal.WithLabelValues("failure").Inc()

		if !r.ShouldRetry(err, attempt) {
			break
		}

		// Delays records time actually slept, so an aborted backoff
		// reports the truncated wait, not the calculated one.
		delay := r.CalculateDelay(attempt - 1)
		sleepStart := time.Now()
		aborted := false
		select {
		case <-ctx.Done():
			result.Err = ctx.Err()
			aborted = true
		case <-time.After(delay):
		}
		result.Delays = append(result.Delays, time.Since(sleepStart))
		if aborted {
			break
		}
	}

	result.TotalDuration = time.Since(start)

	r.mu.Lock()
	r.executions++
	if result.Success {
		r.successes++
	} else {
		r.failures++
	}
	r.totalAttempts += int64(result.AttemptsMade)
	r.totalDuration += result.TotalDuration
	r.mu.Unlock()

	return result
}

// Stats returns a snapshot of retry activity with derived averages.
func (r *Retryer) Stats() RetryStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := RetryStats{
		Executions: r.executions,
		Successes:  r.successes,
		Failures:   r.failures,
	}
	if r.executions > 0 {
		s.AverageAttempts = float64(r.totalAttempts) / float64(r.executions)
		s.AverageDuration = r.totalDuration / time.Duration(r.executions)
	}
	return s
}
