// Package cache fronts every expensive pipeline step with a tiered, single-flight cache.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"FinSignal/internal/domain/errs"
	domrepo "FinSignal/internal/domain/repository"
	pkgcache "FinSignal/pkg/cache"
	applogger "FinSignal/pkg/logger"
)

// Category selects the TTL policy of an entry.
type Category string

const (
	CategoryQuotes    Category = "quotes"
	CategoryNews      Category = "news"
	CategorySentiment Category = "sentiment"
	CategorySignals   Category = "signals"
)

// State tells the caller how fresh a returned value is.
type State string

const (
	StateFresh State = "fresh"
	StateStale State = "stale"
)

// Policy is the TTL policy of one category. NegativeTTL > 0 enables caching of the
// negative outcome (errs.ErrNoSentimentAvailable) for that long.
type Policy struct {
	TTL         time.Duration
	NegativeTTL time.Duration
}

// Config holds category policies and fallback bounds.
type Config struct {
	Policies       map[Category]Policy
	StaleFactor    int
	ComputeTimeout time.Duration
}

// DefaultConfig returns quotes 30s, news 15m, sentiment 5m (negative 20s), signals 60s.
func DefaultConfig() Config {
	return Config{
		Policies: map[Category]Policy{
			CategoryQuotes:    {TTL: 30 * time.Second},
			CategoryNews:      {TTL: 15 * time.Minute},
			CategorySentiment: {TTL: 5 * time.Minute, NegativeTTL: 20 * time.Second},
			CategorySignals:   {TTL: 60 * time.Second},
		},
		StaleFactor:    10,
		ComputeTimeout: 0,
	}
}

// Result is a decoded cache value. Every caller gets its own copy.
type Result[T any] struct {
	Value    T
	State    State
	StoredAt time.Time
	Tier     string
	cause    error
}

// Degraded returns nil for fresh results. For stale ones it returns an ErrCacheDegraded
// describing the compute failure the stale value stands in for.
func (r Result[T]) Degraded() error {
	if r.State != StateStale {
		return nil
	}
	return fmt.Errorf("%w: serving entry stored at %s: %v", errs.ErrCacheDegraded, r.StoredAt.Format(time.RFC3339), r.cause)
}

// envelope is the stored form of an entry.
type envelope struct {
	StoredAt time.Time       `json:"stored_at"`
	TTL      time.Duration   `json:"ttl"`
	Negative bool            `json:"negative,omitempty"`
	Reason   string          `json:"reason,omitempty"`
	Value    json.RawMessage `json:"value,omitempty"`
}

func (e *envelope) age(now time.Time) time.Duration { return now.Sub(e.StoredAt) }

// fresh is true strictly before stored_at + ttl.
func (e *envelope) fresh(now time.Time) bool { return e.age(now) < e.TTL }

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l *applogger.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(mt domrepo.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// WithClock overrides the clock used for freshness decisions.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// Manager owns all cache entries. Tiers are consulted in order (fastest first).
type Manager struct {
	tiers   []pkgcache.Tier
	cfg     Config
	flights *flightGroup
	log     *applogger.Logger
	metrics domrepo.Metrics
	now     func() time.Time
}

// NewManager builds a manager over tiers.
func NewManager(cfg Config, tiers []pkgcache.Tier, opts ...Option) (*Manager, error) {
	if len(tiers) == 0 {
		return nil, errors.New("cache manager needs at least one tier")
	}
	if cfg.StaleFactor < 1 {
		cfg.StaleFactor = 1
	}
	def := DefaultConfig()
	if cfg.Policies == nil {
		cfg.Policies = def.Policies
	}
	for cat, p := range cfg.Policies {
		if p.TTL <= 0 {
			return nil, fmt.Errorf("cache category %s: ttl must be positive", cat)
		}
	}
	m := &Manager{
		tiers:   tiers,
		cfg:     cfg,
		flights: newFlightGroup(),
		log:     applogger.NewNop(),
		metrics: domrepo.NopMetrics{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// InFlight reports the number of keys currently being computed.
func (m *Manager) InFlight() int { return m.flights.inFlight() }

// GetOrCompute returns the cached value for (category, key), or runs fn exactly once for
// all concurrent callers of a missing key. On compute failure a stale entry no older than
// stale_factor × ttl is returned with State stale.
func GetOrCompute[T any](ctx context.Context, m *Manager, category Category, key string, fn func(context.Context) (T, error)) (Result[T], error) {
	var zero Result[T]
	pol, ok := m.cfg.Policies[category]
	if !ok {
		return zero, fmt.Errorf("unknown cache category %q", category)
	}
	fullKey := pkgcache.GenerateKey(string(category), key)

	hit, stale := m.lookup(ctx, category, fullKey, true)
	if hit != nil {
		return decodeResult[T](hit.env, StateFresh, hit.tier)
	}

	raw, shared, err := m.flights.do(ctx, fullKey, m.cfg.ComputeTimeout, func(fctx context.Context) ([]byte, error) {
		if again, _ := m.lookup(fctx, category, fullKey, false); again != nil {
			return json.Marshal(again.env)
		}
		start := time.Now()
		v, err := fn(fctx)
		m.metrics.ObserveCall(string(category), time.Since(start), err)
		if err != nil {
			if pol.NegativeTTL > 0 && errors.Is(err, errs.ErrNoSentimentAvailable) {
				m.store(fctx, category, fullKey, &envelope{
					StoredAt: m.now(),
					TTL:      pol.NegativeTTL,
					Negative: true,
					Reason:   err.Error(),
				})
			}
			return nil, err
		}
		body, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode %s value: %w", category, err)
		}
		env := &envelope{StoredAt: m.now(), TTL: pol.TTL, Value: body}
		m.store(fctx, category, fullKey, env)
		return json.Marshal(env)
	})
	if shared {
		m.log.Debug("cache flight joined", applogger.String("key", fullKey))
	}
	if err == nil {
		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return zero, fmt.Errorf("decode %s envelope: %w", category, err)
		}
		return decodeResult[T](&env, StateFresh, "compute")
	}

	if ctx.Err() != nil || (pol.NegativeTTL > 0 && errors.Is(err, errs.ErrNoSentimentAvailable)) {
		return zero, err
	}
	if stale != nil && !stale.env.Negative && stale.env.age(m.now()) <= m.staleBound(stale.env.TTL) {
		m.log.Warn("serving stale cache entry",
			applogger.String("category", string(category)),
			applogger.String("key", fullKey),
			applogger.Duration("age_ms", stale.env.age(m.now())),
			applogger.Error(err),
		)
		res, derr := decodeResult[T](stale.env, StateStale, stale.tier)
		if derr != nil {
			return zero, err
		}
		res.cause = err
		return res, nil
	}
	return zero, err
}

type found struct {
	env  *envelope
	tier string
}

// lookup walks the tiers. A fresh entry is returned as hit after backfilling faster tiers;
// otherwise the first entry still inside the stale bound is returned as stale. One lookup
// records one cache observation: a hit on the serving tier, or a miss on "none".
func (m *Manager) lookup(ctx context.Context, category Category, key string, observe bool) (hit, stale *found) {
	now := m.now()
	for i, t := range m.tiers {
		b, ok, err := t.GetBytes(ctx, key)
		if err != nil {
			m.log.Warn("cache tier read failed",
				applogger.String("tier", t.Name()),
				applogger.String("key", key),
				applogger.Error(err),
			)
			m.metrics.ObserveCall("cache."+t.Name(), 0, err)
			continue
		}
		if !ok {
			continue
		}
		var env envelope
		if err := json.Unmarshal(b, &env); err != nil {
			m.log.Warn("cache entry undecodable", applogger.String("key", key), applogger.Error(err))
			continue
		}
		if env.age(now) > m.staleBound(env.TTL) {
			continue
		}
		if env.fresh(now) {
			if observe {
				m.metrics.ObserveCache(string(category), t.Name(), true)
			}
			m.backfill(ctx, key, b, &env, i)
			return &found{env: &env, tier: t.Name()}, stale
		}
		if stale == nil {
			stale = &found{env: &env, tier: t.Name()}
		}
	}
	if observe {
		m.metrics.ObserveCache(string(category), "none", false)
	}
	return nil, stale
}

func (m *Manager) staleBound(ttl time.Duration) time.Duration {
	return ttl * time.Duration(m.cfg.StaleFactor)
}

// hardTTL is how long tiers keep an entry: long enough to serve the stale fallback.
func (m *Manager) hardTTL(env *envelope) time.Duration {
	if env.Negative {
		return env.TTL
	}
	return m.staleBound(env.TTL)
}

func (m *Manager) backfill(ctx context.Context, key string, b []byte, env *envelope, upto int) {
	remaining := env.StoredAt.Add(m.hardTTL(env)).Sub(m.now())
	if remaining <= 0 {
		return
	}
	for j := 0; j < upto; j++ {
		if err := m.tiers[j].SetBytes(ctx, key, b, remaining); err != nil {
			m.log.Warn("cache backfill failed", applogger.String("tier", m.tiers[j].Name()), applogger.Error(err))
		}
	}
}

func (m *Manager) store(ctx context.Context, category Category, key string, env *envelope) {
	b, err := json.Marshal(env)
	if err != nil {
		m.log.Error("cache envelope encode failed", applogger.String("key", key), applogger.Error(err))
		return
	}
	ctx = context.WithoutCancel(ctx)
	for _, t := range m.tiers {
		if err := t.SetBytes(ctx, key, b, m.hardTTL(env)); err != nil {
			m.log.Warn("cache tier write failed",
				applogger.String("tier", t.Name()),
				applogger.String("category", string(category)),
				applogger.Error(err),
			)
			m.metrics.ObserveCall("cache."+t.Name(), 0, err)
		}
	}
}

func decodeResult[T any](env *envelope, state State, tier string) (Result[T], error) {
	var res Result[T]
	if env.Negative {
		return res, fmt.Errorf("%s (cached): %w", env.Reason, errs.ErrNoSentimentAvailable)
	}
	if err := json.Unmarshal(env.Value, &res.Value); err != nil {
		return res, fmt.Errorf("decode cached value: %w", err)
	}
	res.State = state
	res.StoredAt = env.StoredAt
	res.Tier = tier
	return res, nil
}
