package recovery

import (
	"context"
	"log/slog"
	"time"

	"github.com/ballast-systems/ballast/pkg/types"
)

// Orchestrator owns one retryer, breaker, and fallback chain and selects a
// recovery strategy per error context:
//
//	network category            -> retry
//	severity >= critical        -> fallback
//	system category             -> circuit breaker
//	everything else             -> combined (breaker-wrapped op through
//	                               retry, then the fallback chain)
//
// It always returns a structured outcome; internal failures become a failed
// outcome, never a raised error.
type Orchestrator struct {
	retryer  *Retryer
	breaker  *CircuitBreaker
	fallback *FallbackChain
	logger   *slog.Logger
}

// NewOrchestrator assembles an orchestrator from its strategies.
func NewOrchestrator(r *Retryer, cb *CircuitBreaker, f *FallbackChain, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{retryer: r, breaker: cb, fallback: f, logger: logger}
}

// Retryer returns the owned retry strategy.
func (o *Orchestrator) Retryer() *Retryer { return o.retryer }

// Breaker returns the owned circuit breaker.
func (o *Orchestrator) Breaker() *CircuitBreaker { return o.breaker }

// Fallback returns the owned fallback chain.
func (o *Orchestrator) Fallback() *FallbackChain { return o.fallback }

// SelectStrategy picks the recovery strategy for an error context.
func (o *Orchestrator) SelectStrategy(ec *types.ErrorContext) types.RecoveryStrategy {
	switch {
	case ec.Metadata.Category == types.CategoryNetwork:
		return types.StrategyRetry
	case ec.Metadata.Severity.AtLeast(types.SeverityCritical):
		return types.StrategyFallback
	case ec.Metadata.Category == types.CategorySystem:
		return types.StrategyCircuitBreaker
	default:
		// Combined path, reported as retry-with-breaker.
		return types.StrategyRetry
	}
}

// Recover runs the operation under the strategy selected for the context and
// updates the context's recovery bookkeeping.
func (o *Orchestrator) Recover(ctx context.Context, ec *types.ErrorContext, op Operation) types.RecoveryOutcome {
	start := time.Now()
	strategy := o.SelectStrategy(ec)
	ec.SuggestedStrategy = strategy

	var outcome types.RecoveryOutcome
	switch {
	case ec.Metadata.Category == types.CategoryNetwork:
		outcome = o.recoverWithRetry(ctx, ec, op)
	case ec.Metadata.Severity.AtLeast(types.SeverityCritical):
		outcome = o.recoverWithFallback(ctx, op)
	case ec.Metadata.Category == types.CategorySystem:
		outcome = o.recoverWithBreaker(ctx, op)
	default:
		outcome = o.recoverCombined(ctx, ec, op)
	}

	outcome.Elapsed = time.Since(start)
	if outcome.Success {
		ec.MarkResolved(outcome.Strategy, "recovered by orchestrator")
	}
	o.logger.Debug("recovery finished",
		"errorId", ec.Metadata.ID,
		"strategy", outcome.Strategy,
		"success", outcome.Success,
		"elapsed", outcome.Elapsed,
	)
	return outcome
}

func (o *Orchestrator) recoverWithRetry(ctx context.Context, ec *types.ErrorContext, op Operation) types.RecoveryOutcome {
	res := o.retryer.ExecuteWithRetry(ctx, op)
	ec.AttemptsMade += res.AttemptsMade
	return types.RecoveryOutcome{
		Success:  res.Success,
		Result:   res.Result,
		Err:      res.Err,
		Strategy: types.StrategyRetry,
	}
}

func (o *Orchestrator) recoverWithFallback(ctx context.Context, op Operation) types.RecoveryOutcome {
	res := o.fallback.Execute(ctx, op)
	return types.RecoveryOutcome{
		Success:  res.Success,
		Result:   res.Result,
		Err:      res.PrimaryErr,
		Strategy: types.StrategyFallback,
	}
}

func (o *Orchestrator) recoverWithBreaker(ctx context.Context, op Operation) types.RecoveryOutcome {
	value, err := o.breaker.Execute(ctx, op)
	return types.RecoveryOutcome{
		Success:  err == nil,
		Result:   value,
		Err:      err,
		Strategy: types.StrategyCircuitBreaker,
	}
}

// recoverCombined wraps the operation in the breaker, runs that through the
// retry loop, and only if the whole path fails falls through to the fallback
// chain.
func (o *Orchestrator) recoverCombined(ctx context.Context, ec *types.ErrorContext, op Operation) types.RecoveryOutcome {
	guarded := func(ctx context.Context) (interface{}, error) {
		return o.breaker.Execute(ctx, op)
	}

	res := o.retryer.ExecuteWithRetry(ctx, guarded)
	ec.AttemptsMade += res.AttemptsMade
	if res.Success {
		return types.RecoveryOutcome{
			Success:  true,
			Result:   res.Result,
			Strategy: types.StrategyRetry,
		}
	}

	fb := o.fallback.Execute(ctx, func(context.Context) (interface{}, error) {
		return nil, res.Err
	})
	return types.RecoveryOutcome{
		Success:  fb.Success,
		Result:   fb.Result,
		Err:      fb.PrimaryErr,
		Strategy: types.StrategyFallback,
	}
}
