package recovery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ballast-systems/ballast/internal/testutil"
	"github.com/ballast-systems/ballast/pkg/types"
)

func testBreaker(threshold, trials int, recovery time.Duration) *CircuitBreaker {
	return NewCircuitBreaker("test-op", BreakerConfig{
		FailureThreshold: threshold,
		RecoveryTimeout:  recovery,
		HalfOpenMaxCalls: trials,
	})
}

func tripBreaker(t *testing.T, cb *CircuitBreaker, failures int) {
	t.Helper()
	for i := 0; i < failures; i++ {
		_, err := cb.Execute(context.Background(), testutil.FailingOp(testutil.ErrFlaky))
		require.ErrorIs(t, err, testutil.ErrFlaky)
	}
}

func TestBreaker_OpensAtThreshold(t *testing.T) {
	cb := testBreaker(3, 2, time.Minute)
	assert.Equal(t, types.CircuitClosed, cb.State())

	tripBreaker(t, cb, 2)
	assert.Equal(t, types.CircuitClosed, cb.State())
	assert.Equal(t, 2, cb.FailureCount())

	tripBreaker(t, cb, 1)
	assert.Equal(t, types.CircuitOpen, cb.State())
}

func TestBreaker_OpenRejectsWithoutInvoking(t *testing.T) {
	cb := testBreaker(2, 2, time.Minute)
	tripBreaker(t, cb, 2)

	invoked := false
	_, err := cb.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
		invoked = true
		return nil, nil
	})

	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, invoked)
	assert.Equal(t, int64(1), cb.Counts().RejectedCalls)
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := testBreaker(3, 2, time.Minute)

	tripBreaker(t, cb, 2)
	_, err := cb.Execute(context.Background(), testutil.SucceedingOp("ok"))
	require.NoError(t, err)
	assert.Equal(t, 0, cb.FailureCount())

	// Counting restarts; two more failures do not open the breaker.
	tripBreaker(t, cb, 2)
	assert.Equal(t, types.CircuitClosed, cb.State())
}

func TestBreaker_HalfOpenAfterRecoveryTimeout(t *testing.T) {
	cb := testBreaker(2, 2, 30*time.Millisecond)
	tripBreaker(t, cb, 2)
	require.Equal(t, types.CircuitOpen, cb.State())

	time.Sleep(40 * time.Millisecond)

	// The next call is admitted as a trial.
	value, err := cb.Execute(context.Background(), testutil.SucceedingOp("probe"))
	require.NoError(t, err)
	assert.Equal(t, "probe", value)
	assert.Equal(t, types.CircuitHalfOpen, cb.State())
	assert.Equal(t, int64(1), cb.Counts().RecoveryAttempts)
}

func TestBreaker_ClosesAfterTrialSuccesses(t *testing.T) {
	cb := testBreaker(2, 3, 20*time.Millisecond)
	tripBreaker(t, cb, 2)
	time.Sleep(30 * time.Millisecond)

	for i := 0; i < 3; i++ {
		_, err := cb.Execute(context.Background(), testutil.SucceedingOp("ok"))
		require.NoError(t, err)
	}

	assert.Equal(t, types.CircuitClosed, cb.State())
	assert.Equal(t, 0, cb.FailureCount())
	assert.Equal(t, int64(1), cb.Counts().RecoverySuccesses)
}

func TestBreaker_TrialFailureReopens(t *testing.T) {
	cb := testBreaker(2, 3, 20*time.Millisecond)
	tripBreaker(t, cb, 2)
	time.Sleep(30 * time.Millisecond)

	_, err := cb.Execute(context.Background(), testutil.FailingOp(testutil.ErrFlaky))
	require.ErrorIs(t, err, testutil.ErrFlaky)
	assert.Equal(t, types.CircuitOpen, cb.State())

	// Reopened: rejected again until the recovery timeout elapses.
	_, err = cb.Execute(context.Background(), testutil.SucceedingOp("ok"))
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestBreaker_HalfOpenTrialQuota(t *testing.T) {
	cb := testBreaker(2, 1, 20*time.Millisecond)
	tripBreaker(t, cb, 2)
	time.Sleep(30 * time.Millisecond)

	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = cb.Execute(context.Background(), testutil.BlockingOp(release, "slow probe"))
	}()

	testutil.WaitFor(t, time.Second, func() bool {
		return cb.State() == types.CircuitHalfOpen
	}, "breaker half-open")

	// The single trial slot is taken by the in-flight probe.
	_, err := cb.Execute(context.Background(), testutil.SucceedingOp("eager"))
	assert.ErrorIs(t, err, ErrTooManyTrialCalls)

	close(release)
	<-done
	assert.Equal(t, types.CircuitClosed, cb.State())
}

func TestBreaker_PanicCountsAsFailure(t *testing.T) {
	cb := testBreaker(1, 1, time.Minute)

	_, err := cb.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
		panic("guarded op exploded")
	})

	require.Error(t, err)
	assert.Equal(t, types.CircuitOpen, cb.State())
}

func TestBreaker_Counts(t *testing.T) {
	cb := testBreaker(3, 2, time.Minute)

	_, _ = cb.Execute(context.Background(), testutil.SucceedingOp("ok"))
	tripBreaker(t, cb, 3)
	_, _ = cb.Execute(context.Background(), testutil.SucceedingOp("ok")) // rejected

	c := cb.Counts()
	assert.Equal(t, int64(4), c.TotalCalls)
	assert.Equal(t, int64(1), c.SuccessfulCalls)
	assert.Equal(t, int64(3), c.FailedCalls)
	assert.Equal(t, int64(1), c.RejectedCalls)
	assert.Equal(t, int64(1), c.StateChanges)
}
