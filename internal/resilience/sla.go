package resilience

import (
	"fmt"
	"sync"
	"time"

	"github.com/ballast-systems/ballast/internal/metrics"
	"github.com/ballast-systems/ballast/pkg/types"
)

const (
	// slaWindowCap bounds each service's sample window.
	slaWindowCap = 1000

	// slaViolationCap bounds the violation log.
	slaViolationCap = 1000

	// availabilityWindow is the trailing sample count for per-record
	// availability checks.
	availabilityWindow = 100

	// availabilityMinSamples is the minimum window size before availability
	// violations are reported.
	availabilityMinSamples = 10

	// reportRecentViolations is how many violations a report carries.
	reportRecentViolations = 10
)

// slaSample is one recorded operation.
type slaSample struct {
	at           time.Time
	success      bool
	responseTime time.Duration
}

// SLAStore tracks per-service operation windows against configured targets
// and produces compliance reports on demand. Response-time targets are
// expressed in seconds; availability and error-rate targets as ratios in
// [0, 1]; throughput targets as operations per second.
type SLAStore struct {
	mu         sync.Mutex
	windows    map[string][]slaSample
	targets    map[string]map[types.SLAMetric]float64
	violations []types.SLAViolation

	totalOperations int64
	totalFailures   int64
}

// NewSLAStore creates an empty store.
func NewSLAStore() *SLAStore {
	return &SLAStore{
		windows: make(map[string][]slaSample),
		targets: make(map[string]map[types.SLAMetric]float64),
	}
}

// SetTarget configures one target for one service. Unknown metrics and
// out-of-range targets fail fast.
func (s *SLAStore) SetTarget(service string, metric types.SLAMetric, target float64) error {
	if !metric.Valid() {
		return fmt.Errorf("unknown SLA metric %q", metric)
	}
	if target < 0 {
		return fmt.Errorf("SLA target for %s/%s must be non-negative, got %v", service, metric, target)
	}
	if (metric == types.SLAAvailability || metric == types.SLAErrorRate) && target > 1 {
		return fmt.Errorf("SLA target for %s/%s must be a ratio in [0,1], got %v", service, metric, target)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.targets[service] == nil {
		s.targets[service] = make(map[types.SLAMetric]float64)
	}
	s.targets[service][metric] = target
	return nil
}

// RecordOperation appends one operation to the service's bounded window,
// updates global totals, and checks per-record violations: a response-time
// target is violated when this sample exceeds it; an availability target is
// violated when the trailing-100-sample success ratio (minimum 10 samples)
// falls below it.
func (s *SLAStore) RecordOperation(service string, success bool, responseTime time.Duration) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	window := append(s.windows[service], slaSample{at: now, success: success, responseTime: responseTime})
	if len(window) > slaWindowCap {
		window = window[len(window)-slaWindowCap:]
	}
	s.windows[service] = window

	s.totalOperations++
	if !success {
		s.totalFailures++
	}

	targets := s.targets[service]
	if len(targets) == 0 {
		return
	}

	if target, ok := targets[types.SLAResponseTime]; ok {
		if responseTime.Seconds() > target {
			s.appendViolation(types.SLAViolation{
				Service:  service,
				Metric:   types.SLAResponseTime,
				Target:   target,
				Actual:   responseTime.Seconds(),
				Occurred: now,
			})
		}
	}

	if target, ok := targets[types.SLAAvailability]; ok {
		tail := window
		if len(tail) > availabilityWindow {
			tail = tail[len(tail)-availabilityWindow:]
		}
		if len(tail) >= availabilityMinSamples {
			successes := 0
			for _, sample := range tail {
				if sample.success {
					successes++
				}
			}
			ratio := float64(successes) / float64(len(tail))
			if ratio < target {
				s.appendViolation(types.SLAViolation{
					Service:  service,
					Metric:   types.SLAAvailability,
					Target:   target,
					Actual:   ratio,
					Occurred: now,
				})
			}
		}
	}
}

// appendViolation logs a violation into the bounded log. Caller holds the lock.
func (s *SLAStore) appendViolation(v types.SLAViolation) {
	s.violations = append(s.violations, v)
	if len(s.violations) > slaViolationCap {
		s.violations = s.violations[len(s.violations)-slaViolationCap:]
	}
	metrics.SLAViolationsTotal.WithLabelValues(v.Service, string(v.Metric)).Inc()
}

// Totals returns the global operation and failure counts.
func (s *SLAStore) Totals() (operations, failures int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalOperations, s.totalFailures
}

// Report recomputes each requested service's metrics over its full window and
// compares them against its targets. With no arguments it reports every
// tracked service. Reports are fresh values, immutable once returned.
func (s *SLAStore) Report(services ...string) types.SLAReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(services) == 0 {
		services = make([]string, 0, len(s.windows))
		for svc := range s.windows {
			services = append(services, svc)
		}
	}

	report := types.SLAReport{
		GeneratedAt:     time.Now().UTC(),
		Services:        make(map[string]types.SLAServiceReport, len(services)),
		ViolationCounts: make(map[string]map[types.SLAMetric]int),
	}

	for _, svc := range services {
		report.Services[svc] = s.serviceReportLocked(svc)
	}

	// The most recent violations, newest last.
	start := len(s.violations) - reportRecentViolations
	if start < 0 {
		start = 0
	}
	recent := s.violations[start:]
	report.RecentViolations = make([]types.SLAViolation, len(recent))
	copy(report.RecentViolations, recent)

	for _, v := range s.violations {
		if report.ViolationCounts[v.Service] == nil {
			report.ViolationCounts[v.Service] = make(map[types.SLAMetric]int)
		}
		report.ViolationCounts[v.Service][v.Metric]++
	}

	return report
}

func (s *SLAStore) serviceReportLocked(service string) types.SLAServiceReport {
	window := s.windows[service]
	sr := types.SLAServiceReport{
		Service: service,
		Samples: len(window),
	}

	if targets := s.targets[service]; len(targets) > 0 {
		sr.Targets = make(map[types.SLAMetric]float64, len(targets))
		for m, t := range targets {
			sr.Targets[m] = t
		}
	}

	if len(window) == 0 {
		return sr
	}

	successes := 0
	var total time.Duration
	durations := make([]time.Duration, len(window))
	for i, sample := range window {
		if sample.success {
			successes++
		}
		total += sample.responseTime
		durations[i] = sample.responseTime
	}

	sr.Availability = float64(successes) / float64(len(window))
	sr.ErrorRate = 1 - sr.Availability
	sr.MeanResponseTime = total / time.Duration(len(window))
	sr.P95ResponseTime = percentile(durations, 0.95)

	if span := window[len(window)-1].at.Sub(window[0].at); span > 0 {
		sr.Throughput = float64(len(window)) / span.Seconds()
	}

	if len(sr.Targets) > 0 {
		sr.Compliant = make(map[types.SLAMetric]bool, len(sr.Targets))
		for metric, target := range sr.Targets {
			switch metric {
			case types.SLAAvailability:
				sr.Compliant[metric] = sr.Availability >= target
			case types.SLAErrorRate:
				sr.Compliant[metric] = sr.ErrorRate <= target
			case types.SLAResponseTime:
				sr.Compliant[metric] = sr.P95ResponseTime.Seconds() <= target
			case types.SLAThroughput:
				sr.Compliant[metric] = sr.Throughput >= target
			}
		}
	}

	return sr
}
