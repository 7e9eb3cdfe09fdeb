package resilience

import (
	"context"
	"fmt"
)

// runSafely invokes an operation, converting a panic into a returned error
// so compartment workers and timeout goroutines always produce a structured
// outcome.
func runSafely(ctx context.Context, op Operation) (value interface{}, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			value = nil
			err = fmt.Errorf("operation panic: %v", rec)
		}
	}()
	return op(ctx)
}
