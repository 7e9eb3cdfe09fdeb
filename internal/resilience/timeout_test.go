package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ballast-systems/ballast/internal/testutil"
)

func TestTimeoutManager_BaseAndDefault(t *testing.T) {
	tm := NewTimeoutManager(0)
	assert.Equal(t, DefaultTimeout, tm.GetTimeout("unconfigured"))

	tm.SetTimeout("db-query", 2*time.Second)
	assert.Equal(t, 2*time.Second, tm.GetTimeout("db-query"))
}

func TestTimeoutManager_AdaptiveNeedsMinSamples(t *testing.T) {
	tm := NewTimeoutManager(time.Second)
	tm.SetTimeout("op", time.Second)

	// Nine samples: too few, the base stands.
	for i := 0; i < adaptiveMinSamples-1; i++ {
		tm.record("op", 10*time.Millisecond)
	}
	assert.Equal(t, time.Second, tm.GetTimeout("op"))

	// The tenth sample makes the history eligible; p95(10ms)*1.2 = 12ms
	// deviates from 1s by far more than 30%.
	tm.record("op", 10*time.Millisecond)
	assert.Equal(t, 12*time.Millisecond, tm.GetTimeout("op"))
}

func TestTimeoutManager_AdaptiveWithinDeviationKeepsBase(t *testing.T) {
	tm := NewTimeoutManager(time.Second)
	tm.SetTimeout("op", 100*time.Millisecond)

	// p95*1.2 = 120ms, exactly 20% off the base: inside the 30% band.
	for i := 0; i < adaptiveMinSamples; i++ {
		tm.record("op", 100*time.Millisecond)
	}
	assert.Equal(t, 100*time.Millisecond, tm.GetTimeout("op"))
}

func TestTimeoutManager_AdaptiveTracksP95(t *testing.T) {
	tm := NewTimeoutManager(time.Second)
	tm.SetTimeout("op", time.Second)

	// 19 fast samples and one slow outlier; p95 of 20 samples is the
	// 19th-ranked value, which is still fast.
	for i := 0; i < 19; i++ {
		tm.record("op", 10*time.Millisecond)
	}
	tm.record("op", 5*time.Second)

	assert.Equal(t, 12*time.Millisecond, tm.GetTimeout("op"))
}

func TestTimeoutManager_HistoryBounded(t *testing.T) {
	tm := NewTimeoutManager(time.Second)
	for i := 0; i < timeoutHistoryCap+25; i++ {
		tm.record("op", time.Millisecond)
	}
	assert.Equal(t, timeoutHistoryCap, tm.Stats("op").Samples)
}

func TestExecuteWithTimeout_Success(t *testing.T) {
	tm := NewTimeoutManager(time.Second)

	outcome := tm.ExecuteWithTimeout(context.Background(), "quick", testutil.SucceedingOp("done"))

	assert.True(t, outcome.Success)
	assert.False(t, outcome.TimedOut)
	assert.Equal(t, "done", outcome.Result)
	assert.Equal(t, time.Second, outcome.Limit)
	assert.Equal(t, 1, tm.Stats("quick").Samples)
}

func TestExecuteWithTimeout_Violation(t *testing.T) {
	tm := NewTimeoutManager(time.Second)
	tm.SetTimeout("slow", 20*time.Millisecond)

	// The operation honors ctx, so the worker goroutine exits once the
	// deadline cancels it.
	never := make(chan struct{})
	outcome := tm.ExecuteWithTimeout(context.Background(), "slow", testutil.BlockingOp(never, "late"))

	assert.True(t, outcome.TimedOut)
	assert.False(t, outcome.Success)
	assert.ErrorIs(t, outcome.Err, context.DeadlineExceeded)

	stats := tm.Stats("slow")
	assert.Equal(t, int64(1), stats.Violations)
	// Timed-out calls contribute no duration sample.
	assert.Equal(t, 0, stats.Samples)

	// Let the cancelled worker goroutine exit before the test ends.
	time.Sleep(20 * time.Millisecond)
}

func TestExecuteWithTimeout_FailureRecordsDuration(t *testing.T) {
	tm := NewTimeoutManager(time.Second)

	outcome := tm.ExecuteWithTimeout(context.Background(), "failing", testutil.FailingOp(testutil.ErrFlaky))

	assert.False(t, outcome.Success)
	assert.False(t, outcome.TimedOut)
	assert.ErrorIs(t, outcome.Err, testutil.ErrFlaky)
	assert.Equal(t, 1, tm.Stats("failing").Samples)
}

func TestPercentile(t *testing.T) {
	samples := make([]time.Duration, 100)
	for i := range samples {
		samples[i] = time.Duration(i+1) * time.Millisecond
	}
	assert.Equal(t, 95*time.Millisecond, percentile(samples, 0.95))
	assert.Equal(t, 100*time.Millisecond, percentile(samples, 1.0))
	assert.Equal(t, time.Duration(0), percentile(nil, 0.95))

	require.Equal(t, 9*time.Millisecond, percentile([]time.Duration{
		9 * time.Millisecond, 7 * time.Millisecond, 3 * time.Millisecond,
	}, 0.95))
}
