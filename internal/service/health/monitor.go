// Package health keeps rolling per-component counters and derives a health report from them.
package health

import (
	"errors"
	"sort"
	"sync"
	"time"

	"FinSignal/internal/domain/errs"
	"FinSignal/internal/domain/models"
	domrepo "FinSignal/internal/domain/repository"
)

// Config holds the rolling window size and status thresholds.
type Config struct {
	Window        int     `yaml:"window" default:"200"`
	DegradedRate  float64 `yaml:"degraded_error_rate" default:"0.1"`
	DownRate      float64 `yaml:"down_error_rate" default:"0.5"`
	MinSamples    int     `yaml:"min_samples" default:"5"`
	SlowLatencyMs float64 `yaml:"slow_latency_ms" default:"2000"`
}

// DefaultConfig returns a 200-sample window, degraded above 10% errors, down above 50%.
func DefaultConfig() Config {
	return Config{Window: 200, DegradedRate: 0.1, DownRate: 0.5, MinSamples: 5, SlowLatencyMs: 2000}
}

type call struct {
	latency time.Duration
	failed  bool
}

// ring is a fixed-size window of the most recent observations.
type ring[T any] struct {
	buf  []T
	next int
	full bool
}

func newRing[T any](n int) *ring[T] { return &ring[T]{buf: make([]T, n)} }

func (r *ring[T]) add(v T) {
	r.buf[r.next] = v
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
}

func (r *ring[T]) items() []T {
	if r.full {
		return r.buf
	}
	return r.buf[:r.next]
}

type component struct {
	calls  *ring[call]
	lookup *ring[bool]
}

// Monitor implements domain.repository.Metrics. Every observation is kept in a bounded
// window and forwarded to next.
type Monitor struct {
	mu         sync.Mutex
	cfg        Config
	components map[string]*component
	next       domrepo.Metrics
}

// NewMonitor creates a monitor forwarding to next (may be nil).
func NewMonitor(cfg Config, next domrepo.Metrics) *Monitor {
	def := DefaultConfig()
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.DownRate <= 0 {
		cfg.DownRate = def.DownRate
	}
	if cfg.DegradedRate <= 0 || cfg.DegradedRate > cfg.DownRate {
		cfg.DegradedRate = def.DegradedRate
	}
	if next == nil {
		next = domrepo.NopMetrics{}
	}
	return &Monitor{cfg: cfg, components: make(map[string]*component), next: next}
}

func (m *Monitor) get(name string) *component {
	c, ok := m.components[name]
	if !ok {
		c = &component{calls: newRing[call](m.cfg.Window), lookup: newRing[bool](m.cfg.Window)}
		m.components[name] = c
	}
	return c
}

// ObserveCall records one call. A "no sentiment" answer is not a failure.
func (m *Monitor) ObserveCall(name string, d time.Duration, err error) {
	failed := err != nil && !errors.Is(err, errs.ErrNoSentimentAvailable)
	m.mu.Lock()
	m.get(name).calls.add(call{latency: d, failed: failed})
	m.mu.Unlock()
	m.next.ObserveCall(name, d, err)
}

// ObserveCache records one cache lookup for a category.
func (m *Monitor) ObserveCache(category, tier string, hit bool) {
	m.mu.Lock()
	m.get(category).lookup.add(hit)
	m.mu.Unlock()
	m.next.ObserveCache(category, tier, hit)
}

// ObserveSignal only forwards; signals carry no health information.
func (m *Monitor) ObserveSignal(symbol string, action models.Action, degraded bool) {
	m.next.ObserveSignal(symbol, action, degraded)
}

// Snapshot builds the report from the current windows. The overall status is the worst
// component status.
func (m *Monitor) Snapshot() models.HealthReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	report := models.HealthReport{Status: models.StatusHealthy, Components: make(map[string]models.ComponentHealth, len(m.components))}
	names := make([]string, 0, len(m.components))
	for name := range m.components {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		c := m.components[name]
		h := models.ComponentHealth{Status: models.StatusHealthy}

		calls := c.calls.items()
		if len(calls) > 0 {
			var total time.Duration
			failed := 0
			for _, s := range calls {
				total += s.latency
				if s.failed {
					failed++
				}
			}
			h.Samples = len(calls)
			h.AverageLatencyMs = float64(total) / float64(len(calls)) / float64(time.Millisecond)
			h.ErrorRate = float64(failed) / float64(len(calls))
		}
		if lookups := c.lookup.items(); len(lookups) > 0 {
			hits := 0
			for _, hit := range lookups {
				if hit {
					hits++
				}
			}
			h.CacheHitRate = float64(hits) / float64(len(lookups))
		}

		h.Status = m.status(h)
		report.Components[name] = h
		report.Status = worse(report.Status, h.Status)
	}
	return report
}

func (m *Monitor) status(h models.ComponentHealth) models.HealthStatus {
	if h.Samples < m.cfg.MinSamples {
		return models.StatusHealthy
	}
	switch {
	case h.ErrorRate > m.cfg.DownRate:
		return models.StatusDown
	case h.ErrorRate > m.cfg.DegradedRate:
		return models.StatusDegraded
	case m.cfg.SlowLatencyMs > 0 && h.AverageLatencyMs > m.cfg.SlowLatencyMs:
		return models.StatusDegraded
	}
	return models.StatusHealthy
}

func worse(a, b models.HealthStatus) models.HealthStatus {
	rank := map[models.HealthStatus]int{models.StatusHealthy: 0, models.StatusDegraded: 1, models.StatusDown: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

var _ domrepo.Metrics = (*Monitor)(nil)
