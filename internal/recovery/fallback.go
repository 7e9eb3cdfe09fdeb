package recovery

import (
	"context"
	"sort"
	"sync"
	"time"
)

// FallbackCandidate is one alternative operation tried when the primary
// fails. Applies, when set, gates the candidate on the primary error.
type FallbackCandidate struct {
	Priority    int // lower tries first
	Description string
	Applies     func(primaryErr error) bool
	Op          Operation
}

// FallbackResult is the structured outcome of a fallback chain execution.
// The chain never raises: on total failure the primary error is carried here.
type FallbackResult struct {
	Success    bool          `json:"success"`
	Result     interface{}   `json:"result,omitempty"`
	PrimaryErr error         `json:"-"`
	Used       string        `json:"used,omitempty"` // description of the winning candidate
	Tried      int           `json:"tried"`
	Elapsed    time.Duration `json:"elapsed"`
}

// FallbackStats is a snapshot of fallback activity.
type FallbackStats struct {
	Executions       int64 `json:"executions"`
	PrimarySuccesses int64 `json:"primarySuccesses"`
	FallbackRescues  int64 `json:"fallbackRescues"`
	TotalFailures    int64 `json:"totalFailures"`
}

// FallbackChain holds candidates ordered by ascending priority.
type FallbackChain struct {
	mu         sync.Mutex
	candidates []FallbackCandidate
	stats      FallbackStats
}

// NewFallbackChain creates an empty chain.
func NewFallbackChain() *FallbackChain {
	return &FallbackChain{}
}

// Add registers a candidate; candidates are kept sorted by priority.
func (f *FallbackChain) Add(c FallbackCandidate) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.candidates = append(f.candidates, c)
	sort.SliceStable(f.candidates, func(i, j int) bool {
		return f.candidates[i].Priority < f.candidates[j].Priority
	})
}

// Len returns the number of registered candidates.
func (f *FallbackChain) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.candidates)
}

// Execute runs the primary operation and, on failure, each applicable
// candidate in priority order until one succeeds. Candidate failures are
// swallowed; on total failure the result carries the primary error.
func (f *FallbackChain) Execute(ctx context.Context, primary Operation) FallbackResult {
	start := time.Now()

	f.mu.Lock()
	candidates := make([]FallbackCandidate, len(f.candidates))
	copy(candidates, f.candidates)
	f.stats.Executions++
	f.mu.Unlock()

	value, primaryErr := runSafely(ctx, primary)
	if primaryErr == nil {
		f.mu.Lock()
		f.stats.PrimarySuccesses++
		f.mu.Unlock()
		return FallbackResult{Success: true, Result: value, Elapsed: time.Since(start)}
	}

	result := FallbackResult{PrimaryErr: primaryErr}
	for _, c := range candidates {
		if c.Applies != nil && !c.Applies(primaryErr) {
			continue
		}
		result.Tried++
		if v, err := runSafely(ctx, c.Op); err == nil {
			result.Success = true
			result.Result = v
			result.Used = c.Description
			break
		}
	}
	result.Elapsed = time.Since(start)

	f.mu.Lock()
	if result.Success {
		f.stats.FallbackRescues++
	} else {
		f.stats.TotalFailures++
	}
	f.mu.Unlock()

	return result
}

// Stats returns a snapshot of fallback counters.
func (f *FallbackChain) Stats() FallbackStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats
}
