package intake

import (
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"

	"github.com/ballast-systems/ballast/internal/metrics"
	"github.com/ballast-systems/ballast/pkg/types"
)

// Handler processes a routed error context. Handler failures are caught and
// counted by the router, never propagated.
type Handler func(ec *types.ErrorContext) error

// Rule matches error contexts to a named handler. A rule matches only if
// every present condition holds; absent conditions are unconstrained.
type Rule struct {
	Name       string
	Priority   int // lower runs first
	Categories []types.ErrorCategory
	Severities []types.ErrorSeverity
	Pipelines  []string
	Handler    string
}

// matches reports whether every present condition holds for the context.
func (r Rule) matches(ec *types.ErrorContext) bool {
	if len(r.Categories) > 0 && !slices.Contains(r.Categories, ec.Metadata.Category) {
		return false
	}
	if len(r.Severities) > 0 && !slices.Contains(r.Severities, ec.Metadata.Severity) {
		return false
	}
	if len(r.Pipelines) > 0 && !slices.Contains(r.Pipelines, ec.Metadata.Pipeline) {
		return false
	}
	return true
}

// RouterStats is a snapshot of routing activity.
type RouterStats struct {
	Processed  int64 `json:"processed"`
	Successful int64 `json:"successful"`
	Failed     int64 `json:"failed"`
	Fallback   int64 `json:"fallback"`
}

// Router dispatches error contexts to the first matching rule's handler.
// Handlers live in an explicit per-router registry; there is no package-level
// lookup.
type Router struct {
	mu             sync.Mutex
	rules          []Rule
	handlers       map[string]Handler
	defaultHandler Handler
	stats          RouterStats
	logger         *slog.Logger
}

// NewRouter creates an empty router.
func NewRouter(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		handlers: make(map[string]Handler),
		logger:   logger,
	}
}

// RegisterHandler binds a handler name used by rules. Rebinding an existing
// name is a setup error.
func (r *Router) RegisterHandler(name string, h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("handler %q already registered", name)
	}
	r.handlers[name] = h
	return nil
}

// SetDefaultHandler sets the handler run when no rule matches.
func (r *Router) SetDefaultHandler(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultHandler = h
}

// AddRule appends a rule; rules are kept sorted by ascending priority.
func (r *Router) AddRule(rule Rule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.handlers[rule.Handler]; !ok {
		return fmt.Errorf("rule %q references unregistered handler %q", rule.Name, rule.Handler)
	}
	r.rules = append(r.rules, rule)
	sort.SliceStable(r.rules, func(i, j int) bool { return r.rules[i].Priority < r.rules[j].Priority })
	return nil
}

// Route dispatches the context to the first matching rule's handler, exactly
// once. A handler failure is counted, not retried against later rules. With
// no match, the default handler runs if registered.
func (r *Router) Route(ec *types.ErrorContext) {
	r.mu.Lock()
	r.stats.Processed++
	var handler Handler
	var ruleName string
	for _, rule := range r.rules {
		if rule.matches(ec) {
			handler = r.handlers[rule.Handler]
			ruleName = rule.Name
			break
		}
	}
	fallback := false
	if handler == nil && r.defaultHandler != nil {
		handler = r.defaultHandler
		fallback = true
	}
	r.mu.Unlock()

	if handler == nil {
		metrics.RoutesTotal.WithLabelValues("unrouted").Inc()
		r.logger.Warn("no route for error context", "errorId", ec.Metadata.ID, "category", ec.Metadata.Category)
		return
	}

	err := runHandler(handler, ec)

	r.mu.Lock()
	switch {
	case err != nil:
		r.stats.Failed++
	case fallback:
		r.stats.Fallback++
		r.stats.Successful++
	default:
		r.stats.Successful++
	}
	r.mu.Unlock()

	if err != nil {
		metrics.RoutesTotal.WithLabelValues("failed").Inc()
		r.logger.Error("route handler failed", "rule", ruleName, "errorId", ec.Metadata.ID, "error", err)
		return
	}
	if fallback {
		metrics.RoutesTotal.WithLabelValues("fallback").Inc()
	} else {
		metrics.RoutesTotal.WithLabelValues("matched").Inc()
	}
}

// Stats returns a snapshot of routing counters.
func (r *Router) Stats() RouterStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// runHandler isolates handler panics so one misbehaving handler cannot
// interrupt the intake pipeline.
func runHandler(h Handler, ec *types.ErrorContext) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panic: %v", rec)
		}
	}()
	return h(ec)
}
