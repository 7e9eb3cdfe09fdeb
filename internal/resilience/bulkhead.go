// Package resilience implements the resilience control plane: bulkhead
// isolation, adaptive timeouts, and SLA metrics.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/ballast-systems/ballast/internal/metrics"
	"github.com/ballast-systems/ballast/pkg/types"
)

// Operation is a guarded call executed inside a compartment or under a
// timeout bound. Cancellation is best-effort: operations should honor ctx or
// be idempotent.
type Operation func(ctx context.Context) (interface{}, error)

// Admission errors returned without invoking the operation.
var (
	ErrCompartmentIsolated  = errors.New("compartment is isolated")
	ErrCompartmentFull      = errors.New("compartment at capacity")
	ErrDuplicateCompartment = errors.New("compartment already exists")
	ErrUnknownCompartment   = errors.New("unknown compartment")
)

// CompartmentConfig holds per-compartment thresholds.
type CompartmentConfig struct {
	Capacity           int64         // concurrent calls and worker pool size (default 10)
	FailureThreshold   int           // failures before degraded (default 5)
	IsolationThreshold int           // failures before isolated (default 10)
	RecoveryTime       time.Duration // isolation cool-off before recovering (default 30s)
}

// DefaultCompartmentConfig returns the default thresholds.
func DefaultCompartmentConfig() CompartmentConfig {
	return CompartmentConfig{
		Capacity:           10,
		FailureThreshold:   5,
		IsolationThreshold: 10,
		RecoveryTime:       30 * time.Second,
	}
}

// healthyRatio is the running success ratio above which a degraded or
// recovering compartment returns to healthy.
const healthyRatio = 0.80

// compartmentTask is one queued execution on a compartment's worker pool.
type compartmentTask struct {
	ctx    context.Context
	op     Operation
	result chan taskResult
}

type taskResult struct {
	value interface{}
	err   error
}

// Compartment is one isolated resource partition with its own bounded worker
// pool, so a stalled operation here cannot starve another compartment.
type Compartment struct {
	name string
	cfg  CompartmentConfig
	sem  *semaphore.Weighted

	tasks chan compartmentTask
	wg    sync.WaitGroup

	mu                 sync.Mutex
	state              types.CompartmentState
	currentLoad        int64
	failureCount       int
	lastFailureTime    time.Time
	totalRequests      int64
	successfulRequests int64
	avgResponse        time.Duration
}

// CompartmentStats is a snapshot of one compartment.
type CompartmentStats struct {
	Name               string                 `json:"name"`
	State              types.CompartmentState `json:"state"`
	CurrentLoad        int64                  `json:"currentLoad"`
	MaxCapacity        int64                  `json:"maxCapacity"`
	FailureCount       int                    `json:"failureCount"`
	TotalRequests      int64                  `json:"totalRequests"`
	SuccessfulRequests int64                  `json:"successfulRequests"`
	AvgResponseTime    time.Duration          `json:"avgResponseTime"`
}

func newCompartment(name string, cfg CompartmentConfig) *Compartment {
	def := DefaultCompartmentConfig()
	if cfg.Capacity <= 0 {
		cfg.Capacity = def.Capacity
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.IsolationThreshold <= 0 {
		cfg.IsolationThreshold = def.IsolationThreshold
	}
	if cfg.RecoveryTime <= 0 {
		cfg.RecoveryTime = def.RecoveryTime
	}

	c := &Compartment{
		name:  name,
		cfg:   cfg,
		sem:   semaphore.NewWeighted(cfg.Capacity),
		tasks: make(chan compartmentTask, cfg.Capacity),
		state: types.CompartmentHealthy,
	}
	for i := int64(0); i < cfg.Capacity; i++ {
		c.wg.Add(1)
		go c.worker()
	}
	return c
}

func (c *Compartment) worker() {
	defer c.wg.Done()
	for task := range c.tasks {
		start := time.Now()
		value, err := runSafely(task.ctx, task.op)
		elapsed := time.Since(start)

		c.finish(err == nil, elapsed)

		// Buffered channel: the send never blocks even if the caller
		// stopped waiting.
		task.result <- taskResult{value: value, err: err}
	}
}

// finish releases capacity and applies the generic success/failure handlers.
// The load decrement happens on every completion, timeouts and panics
// included.
func (c *Compartment) finish(success bool, elapsed time.Duration) {
	c.sem.Release(1)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.currentLoad--
	c.totalRequests++

	if success {
		c.successfulRequests++
		// Rolling average over successful responses.
		n := c.successfulRequests
		c.avgResponse += (elapsed - c.avgResponse) / time.Duration(n)

		if c.state == types.CompartmentDegraded || c.state == types.CompartmentRecovering {
			ratio := float64(c.successfulRequests) / float64(c.totalRequests)
			if ratio > healthyRatio {
				c.state = types.CompartmentHealthy
				c.failureCount = 0
			}
		}
		return
	}

	c.failureCount++
	c.lastFailureTime = time.Now()
	switch {
	case c.failureCount >= c.cfg.IsolationThreshold:
		c.state = types.CompartmentIsolated
	case c.failureCount >= c.cfg.FailureThreshold:
		if c.state != types.CompartmentIsolated {
			c.state = types.CompartmentDegraded
		}
	}
}

// admit decides whether a call may enter the compartment.
func (c *Compartment) admit() error {
	c.mu.Lock()
	if c.state == types.CompartmentIsolated {
		if time.Since(c.lastFailureTime) >= c.cfg.RecoveryTime {
			c.state = types.CompartmentRecovering
		} else {
			c.mu.Unlock()
			return ErrCompartmentIsolated
		}
	}
	c.mu.Unlock()

	if !c.sem.TryAcquire(1) {
		return ErrCompartmentFull
	}

	c.mu.Lock()
	c.currentLoad++
	c.mu.Unlock()
	return nil
}

// Execute runs the operation on the compartment's worker pool. The caller
// blocks until completion or ctx expiry; expiry abandons the wait but the
// worker still finishes and releases capacity.
func (c *Compartment) Execute(ctx context.Context, op Operation) types.BulkheadOutcome {
	start := time.Now()

	if err := c.admit(); err != nil {
		reason := "isolated"
		if errors.Is(err, ErrCompartmentFull) {
			reason = "capacity"
		}
		metrics.BulkheadRejectionsTotal.WithLabelValues(c.name, reason).Inc()
		return types.BulkheadOutcome{
			Compartment: c.name,
			Rejected:    true,
			Err:         err,
			Elapsed:     time.Since(start),
		}
	}

	task := compartmentTask{ctx: ctx, op: op, result: make(chan taskResult, 1)}
	c.tasks <- task

	select {
	case res := <-task.result:
		metrics.OperationLatency.WithLabelValues("bulkhead:" + c.name).Observe(time.Since(start).Seconds())
		return types.BulkheadOutcome{
			Compartment: c.name,
			Success:     res.err == nil,
			Result:      res.value,
			Err:         res.err,
			Elapsed:     time.Since(start),
		}
	case <-ctx.Done():
		return types.BulkheadOutcome{
			Compartment: c.name,
			Err:         ctx.Err(),
			Elapsed:     time.Since(start),
		}
	}
}

// State returns the compartment's health state.
func (c *Compartment) State() types.CompartmentState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Stats returns a snapshot of the compartment.
func (c *Compartment) Stats() CompartmentStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CompartmentStats{
		Name:               c.name,
		State:              c.state,
		CurrentLoad:        c.currentLoad,
		MaxCapacity:        c.cfg.Capacity,
		FailureCount:       c.failureCount,
		TotalRequests:      c.totalRequests,
		SuccessfulRequests: c.successfulRequests,
		AvgResponseTime:    c.avgResponse,
	}
}

// close stops the worker pool after in-flight tasks drain.
func (c *Compartment) close() {
	close(c.tasks)
	c.wg.Wait()
}

// Bulkhead is the registry of named compartments. It is constructed once at
// startup and shared by reference across callers.
type Bulkhead struct {
	mu           sync.Mutex
	compartments map[string]*Compartment
	logger       *slog.Logger
}

// NewBulkhead creates an empty bulkhead registry.
func NewBulkhead(logger *slog.Logger) *Bulkhead {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bulkhead{
		compartments: make(map[string]*Compartment),
		logger:       logger,
	}
}

// CreateCompartment registers a named compartment with its own worker pool.
// Duplicate names fail fast.
func (b *Bulkhead) CreateCompartment(name string, cfg CompartmentConfig) (*Compartment, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.compartments[name]; exists {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateCompartment, name)
	}
	c := newCompartment(name, cfg)
	b.compartments[name] = c
	b.logger.Info("compartment created", "name", name, "capacity", c.cfg.Capacity)
	return c, nil
}

// Compartment returns a registered compartment.
func (b *Bulkhead) Compartment(name string) (*Compartment, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.compartments[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCompartment, name)
	}
	return c, nil
}

// Execute runs the operation in the named compartment.
func (b *Bulkhead) Execute(ctx context.Context, name string, op Operation) types.BulkheadOutcome {
	c, err := b.Compartment(name)
	if err != nil {
		return types.BulkheadOutcome{Compartment: name, Rejected: true, Err: err}
	}
	return c.Execute(ctx, op)
}

// Close stops every compartment's worker pool.
func (b *Bulkhead) Close() {
	b.mu.Lock()
	compartments := make([]*Compartment, 0, len(b.compartments))
	for _, c := range b.compartments {
		compartments = append(compartments, c)
	}
	b.mu.Unlock()

	for _, c := range compartments {
		c.close()
	}
}
