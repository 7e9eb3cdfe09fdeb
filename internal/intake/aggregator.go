package intake

import (
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"github.com/ballast-systems/ballast/internal/metrics"
	"github.com/ballast-systems/ballast/pkg/types"
)

// AggregationWindow is the trailing span within which duplicate errors are
// suppressed.
const AggregationWindow = 5 * time.Minute

// groupEntry is one stored, non-duplicate error in a group.
type groupEntry struct {
	message string
	at      time.Time
	context *types.ErrorContext
}

// Group collects errors sharing a group key, with a duplicate counter.
type Group struct {
	Key        uint64
	entries    []groupEntry
	Duplicates int64
}

// Size returns the number of stored (non-duplicate) members.
func (g *Group) Size() int { return len(g.entries) }

// AggregatorStats is a snapshot of aggregation activity.
type AggregatorStats struct {
	Groups     int   `json:"groups"`
	Stored     int64 `json:"stored"`
	Duplicates int64 `json:"duplicates"`
}

// Aggregator groups incoming errors by (category, severity, failure type,
// pipeline) and suppresses exact-message duplicates within the trailing
// window. Duplicate detection is exact string equality, not fuzzy matching.
type Aggregator struct {
	mu     sync.Mutex
	window time.Duration
	groups map[uint64]*Group
	stats  AggregatorStats
	now    func() time.Time
}

// NewAggregator creates an aggregator with the standard 5-minute window.
func NewAggregator() *Aggregator {
	return &Aggregator{
		window: AggregationWindow,
		groups: make(map[uint64]*Group),
		now:    time.Now,
	}
}

// GroupKey hashes the grouping dimensions of a context.
func GroupKey(ec *types.ErrorContext) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(ec.Metadata.Category))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(ec.Metadata.Severity))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(ec.Failure.Type))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(ec.Metadata.Pipeline))
	return h.Sum64()
}

// Add records the context in its group. It reports true if the context is a
// duplicate: an existing group member within the trailing window carries an
// identical message. Duplicates increment the group counter but are not
// stored.
func (a *Aggregator) Add(ec *types.ErrorContext) bool {
	key := GroupKey(ec)
	now := a.now()
	cutoff := now.Add(-a.window)

	a.mu.Lock()
	defer a.mu.Unlock()

	g, ok := a.groups[key]
	if !ok {
		g = &Group{Key: key}
		a.groups[key] = g
		a.stats.Groups = len(a.groups)
	}

	for _, entry := range g.entries {
		if entry.at.After(cutoff) && entry.message == ec.Message {
			g.Duplicates++
			a.stats.Duplicates++
			metrics.DuplicatesSuppressed.Inc()
			return true
		}
	}

	g.entries = append(g.entries, groupEntry{message: ec.Message, at: now, context: ec})
	a.stats.Stored++
	return false
}

// Group returns the group for a context's key, or nil if none exists.
func (a *Aggregator) Group(ec *types.ErrorContext) *Group {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.groups[GroupKey(ec)]
}

// Prune drops stored entries older than the window. Groups left empty are
// removed. Returns the number of entries dropped.
func (a *Aggregator) Prune() int {
	cutoff := a.now().Add(-a.window)

	a.mu.Lock()
	defer a.mu.Unlock()

	dropped := 0
	for key, g := range a.groups {
		kept := g.entries[:0]
		for _, e := range g.entries {
			if e.at.After(cutoff) {
				kept = append(kept, e)
			} else {
				dropped++
			}
		}
		g.entries = kept
		if len(g.entries) == 0 {
			delete(a.groups, key)
		}
	}
	a.stats.Groups = len(a.groups)
	return dropped
}

// Stats returns a snapshot of aggregation counters.
func (a *Aggregator) Stats() AggregatorStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.stats
	s.Groups = len(a.groups)
	return s
}

// String implements fmt.Stringer for diagnostics.
func (s AggregatorStats) String() string {
	return "groups=" + strconv.Itoa(s.Groups) +
		" stored=" + strconv.FormatInt(s.Stored, 10) +
		" duplicates=" + strconv.FormatInt(s.Duplicates, 10)
}
