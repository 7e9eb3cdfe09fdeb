// Package testutil provides shared helpers for engine tests.
package testutil

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// ErrFlaky is the error returned by flaky operations before they recover.
var ErrFlaky = errors.New("transient failure")

// FlakyOp returns an operation that fails the first n calls and then
// succeeds with the given value.
func FlakyOp(n int, value interface{}) func(ctx context.Context) (interface{}, error) {
	var mu sync.Mutex
	calls := 0
	return func(ctx context.Context) (interface{}, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls <= n {
			return nil, ErrFlaky
		}
		return value, nil
	}
}

// FailingOp returns an operation that always fails with err.
func FailingOp(err error) func(ctx context.Context) (interface{}, error) {
	return func(ctx context.Context) (interface{}, error) {
		return nil, err
	}
}

// SucceedingOp returns an operation that always succeeds with value.
func SucceedingOp(value interface{}) func(ctx context.Context) (interface{}, error) {
	return func(ctx context.Context) (interface{}, error) {
		return value, nil
	}
}

// BlockingOp returns an operation that blocks until release is closed or ctx
// expires, then succeeds with value.
func BlockingOp(release <-chan struct{}, value interface{}) func(ctx context.Context) (interface{}, error) {
	return func(ctx context.Context) (interface{}, error) {
		select {
		case <-release:
			return value, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// WaitFor polls check every 10ms, failing the test if it never returns true
// within timeout.
func WaitFor(t *testing.T, timeout time.Duration, check func() bool, msg string) {
	t.Helper()
	for start := time.Now(); time.Since(start) < timeout; {
		if check() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v: %s", timeout, msg)
}
