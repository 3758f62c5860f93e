// Package ratelimit enforces a per-caller request budget.
package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"FinSignal/internal/domain/errs"

	"golang.org/x/time/rate"
)

// Config is the budget of one caller.
type Config struct {
	RequestsPerSecond float64       `yaml:"requests_per_second" default:"5"`
	Burst             int           `yaml:"burst" default:"20"`
	IdleTTL           time.Duration `yaml:"idle_ttl" default:"10m"`
}

type entry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// Limiter keeps one token bucket per caller. Buckets idle for longer than IdleTTL are
// dropped on the next sweep.
type Limiter struct {
	mu        sync.Mutex
	m         map[string]*entry
	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// New creates a limiter. A non-positive rate disables limiting.
func New(cfg Config) *Limiter {
	limit := rate.Limit(cfg.RequestsPerSecond)
	if cfg.RequestsPerSecond <= 0 {
		limit = rate.Inf
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 10 * time.Minute
	}
	return &Limiter{m: make(map[string]*entry), limit: limit, burst: cfg.Burst, idleTTL: cfg.IdleTTL, now: time.Now}
}

// Allow returns true if one token can be consumed for key.
func (l *Limiter) Allow(key string) bool {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now)
	e, ok := l.m[key]
	if !ok {
		e = &entry{lim: rate.NewLimiter(l.limit, l.burst)}
		l.m[key] = e
	}
	e.lastSeen = now
	return e.lim.AllowN(now, 1)
}

// Check is Allow returning errs.ErrRateLimited when the caller's budget is spent.
func (l *Limiter) Check(caller string) error {
	if !l.Allow(caller) {
		return fmt.Errorf("caller %q: %w", caller, errs.ErrRateLimited)
	}
	return nil
}

func (l *Limiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.idleTTL {
		return
	}
	l.lastSweep = now
	for k, e := range l.m {
		if now.Sub(e.lastSeen) > l.idleTTL {
			delete(l.m, k)
		}
	}
}
