package resilience

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/ballast-systems/ballast/internal/metrics"
	"github.com/ballast-systems/ballast/pkg/types"
)

const (
	// DefaultTimeout applies to operations with no configured base.
	DefaultTimeout = 30 * time.Second

	// timeoutHistoryCap bounds the per-operation duration history.
	timeoutHistoryCap = 100

	// adaptiveMinSamples is the minimum history length before the adaptive
	// value is considered.
	adaptiveMinSamples = 10

	// adaptiveBuffer is the headroom added to the observed p95.
	adaptiveBuffer = 1.2

	// adaptiveDeviation is the relative difference from the base beyond
	// which the adaptive value takes over.
	adaptiveDeviation = 0.30
)

// TimeoutStats is a snapshot of one operation's timeout behavior.
type TimeoutStats struct {
	Operation  string        `json:"operation"`
	Base       time.Duration `json:"base"`
	Effective  time.Duration `json:"effective"`
	Samples    int           `json:"samples"`
	Violations int64         `json:"violations"`
}

// TimeoutManager stores base per-operation timeouts and adapts them to
// observed latencies: once at least ten durations are recorded, the 95th
// percentile plus a 20% buffer replaces the base whenever it deviates from
// it by more than 30%.
type TimeoutManager struct {
	mu         sync.Mutex
	base       map[string]time.Duration
	history    map[string][]time.Duration
	violations map[string]int64
	defaultTO  time.Duration
}

// NewTimeoutManager creates a manager. A non-positive defaultTimeout selects
// the package default of 30s.
func NewTimeoutManager(defaultTimeout time.Duration) *TimeoutManager {
	if defaultTimeout <= 0 {
		defaultTimeout = DefaultTimeout
	}
	return &TimeoutManager{
		base:       make(map[string]time.Duration),
		history:    make(map[string][]time.Duration),
		violations: make(map[string]int64),
		defaultTO:  defaultTimeout,
	}
}

// SetTimeout stores the base timeout for an operation.
func (tm *TimeoutManager) SetTimeout(name string, d time.Duration) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.base[name] = d
}

// GetTimeout returns the effective timeout for an operation: the adaptive
// value when history justifies it, otherwise the base (or the default when
// no base is set).
func (tm *TimeoutManager) GetTimeout(name string) time.Duration {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.effectiveLocked(name)
}

func (tm *TimeoutManager) effectiveLocked(name string) time.Duration {
	base, ok := tm.base[name]
	if !ok {
		base = tm.defaultTO
	}

	hist := tm.history[name]
	if len(hist) < adaptiveMinSamples {
		return base
	}

	adaptive := time.Duration(float64(percentile(hist, 0.95)) * adaptiveBuffer)
	deviation := float64(adaptive-base) / float64(base)
	if deviation < 0 {
		deviation = -deviation
	}
	if deviation > adaptiveDeviation {
		return adaptive
	}
	return base
}

// record appends a completed duration to the bounded history.
func (tm *TimeoutManager) record(name string, d time.Duration) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	hist := append(tm.history[name], d)
	if len(hist) > timeoutHistoryCap {
		hist = hist[len(hist)-timeoutHistoryCap:]
	}
	tm.history[name] = hist
}

// ExecuteWithTimeout runs the operation under a hard wall-clock bound.
// Completions — success or failure — record their elapsed time, informing
// future adaptivity. A timeout is returned as a distinct outcome and
// counted; no duration is recorded for it. The underlying operation is not
// forcibly halted: cancellation is best-effort via ctx.
func (tm *TimeoutManager) ExecuteWithTimeout(ctx context.Context, name string, op Operation) types.TimeoutOutcome {
	limit := tm.GetTimeout(name)

	opCtx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	done := make(chan taskResult, 1)
	start := time.Now()
	go func() {
		value, err := runSafely(opCtx, op)
		done <- taskResult{value: value, err: err}
	}()

	select {
	case res := <-done:
		elapsed := time.Since(start)
		tm.record(name, elapsed)
		metrics.OperationLatency.WithLabelValues("timeout:" + name).Observe(elapsed.Seconds())
		return types.TimeoutOutcome{
			Operation: name,
			Success:   res.err == nil,
			Result:    res.value,
			Err:       res.err,
			Elapsed:   elapsed,
			Limit:     limit,
		}
	case <-time.After(limit):
		tm.mu.Lock()
		tm.violations[name]++
		tm.mu.Unlock()
		metrics.TimeoutViolationsTotal.WithLabelValues(name).Inc()
		return types.TimeoutOutcome{
			Operation: name,
			TimedOut:  true,
			Err:       context.DeadlineExceeded,
			Limit:     limit,
		}
	}
}

// Stats returns a snapshot for one operation.
func (tm *TimeoutManager) Stats(name string) TimeoutStats {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	base, ok := tm.base[name]
	if !ok {
		base = tm.defaultTO
	}
	return TimeoutStats{
		Operation:  name,
		Base:       base,
		Effective:  tm.effectiveLocked(name),
		Samples:    len(tm.history[name]),
		Violations: tm.violations[name],
	}
}

// percentile returns the pth percentile (0 < p <= 1) of the samples using
// the nearest-rank method.
func percentile(samples []time.Duration, p float64) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := make([]time.Duration, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	rank := int(math.Ceil(p*float64(len(sorted)))) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}
