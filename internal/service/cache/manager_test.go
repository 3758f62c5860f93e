package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"FinSignal/internal/domain/errs"
	pkgcache "FinSignal/pkg/cache"
)

type mapTier struct {
	name   string
	mu     sync.Mutex
	m      map[string][]byte
	getErr error
	setErr error
}

func newMapTier(name string) *mapTier {
	return &mapTier{name: name, m: make(map[string][]byte)}
}

func (t *mapTier) Name() string { return t.name }

func (t *mapTier) GetBytes(_ context.Context, key string) ([]byte, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.getErr != nil {
		return nil, false, t.getErr
	}
	b, ok := t.m[key]
	return b, ok, nil
}

func (t *mapTier) SetBytes(_ context.Context, key string, value []byte, _ time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.setErr != nil {
		return t.setErr
	}
	t.m[key] = append([]byte(nil), value...)
	return nil
}

func (t *mapTier) has(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.m[key]
	return ok
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestManager(t *testing.T, tiers ...pkgcache.Tier) (*Manager, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)}
	if len(tiers) == 0 {
		tiers = []pkgcache.Tier{newMapTier("memory")}
	}
	m, err := NewManager(DefaultConfig(), tiers, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m, clock
}

func TestGetOrComputeSingleFlight(t *testing.T) {
	m, _ := newTestManager(t)
	var calls int32
	release := make(chan struct{})

	const n = 50
	var wg sync.WaitGroup
	results := make([]Result[[]int], n)
	errsOut := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errsOut[i] = GetOrCompute(context.Background(), m, CategoryQuotes, "AAPL:7", func(ctx context.Context) ([]int, error) {
				atomic.AddInt32(&calls, 1)
				<-release
				return []int{1, 2, 3}, nil
			})
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected exactly one compute, got %d", got)
	}
	for i := 0; i < n; i++ {
		if errsOut[i] != nil {
			t.Fatalf("caller %d: %v", i, errsOut[i])
		}
		if len(results[i].Value) != 3 || results[i].Value[2] != 3 {
			t.Fatalf("caller %d got %v", i, results[i].Value)
		}
	}
	results[0].Value[0] = 99
	if results[1].Value[0] != 1 {
		t.Fatalf("callers must not share decoded values")
	}
	if m.InFlight() != 0 {
		t.Fatalf("flight should be released, %d in flight", m.InFlight())
	}
}

func TestGetOrComputeTTLBoundary(t *testing.T) {
	for category, policy := range DefaultConfig().Policies {
		category, ttl := category, policy.TTL
		t.Run(string(category), func(t *testing.T) {
			m, clock := newTestManager(t)
			var calls int
			fn := func(context.Context) (int, error) {
				calls++
				return calls, nil
			}
			ctx := context.Background()

			if _, err := GetOrCompute(ctx, m, category, "k", fn); err != nil {
				t.Fatalf("first call: %v", err)
			}
			clock.Advance(ttl - time.Nanosecond)
			res, _ := GetOrCompute(ctx, m, category, "k", fn)
			if calls != 1 || res.Value != 1 || res.State != StateFresh {
				t.Fatalf("expected cached value just before ttl %v, calls=%d res=%+v", ttl, calls, res)
			}
			clock.Advance(time.Nanosecond)
			res, _ = GetOrCompute(ctx, m, category, "k", fn)
			if calls != 2 || res.Value != 2 {
				t.Fatalf("expected recompute at ttl %v, calls=%d res=%+v", ttl, calls, res)
			}
		})
	}
}

func TestGetOrComputeStaleFallbackBound(t *testing.T) {
	m, clock := newTestManager(t)
	ctx := context.Background()
	boom := fmt.Errorf("upstream: %w", errs.ErrProviderUnavailable)

	if _, err := GetOrCompute(ctx, m, CategoryQuotes, "k", func(context.Context) (string, error) { return "v1", nil }); err != nil {
		t.Fatalf("seed: %v", err)
	}
	failing := func(context.Context) (string, error) { return "", boom }

	clock.Advance(100 * time.Second)
	res, err := GetOrCompute(ctx, m, CategoryQuotes, "k", failing)
	if err != nil {
		t.Fatalf("expected stale fallback, got %v", err)
	}
	if res.State != StateStale || res.Value != "v1" {
		t.Fatalf("expected stale v1, got %+v", res)
	}
	if !errors.Is(res.Degraded(), errs.ErrCacheDegraded) {
		t.Fatalf("stale result should report degradation, got %v", res.Degraded())
	}

	clock.Advance(201 * time.Second)
	if _, err := GetOrCompute(ctx, m, CategoryQuotes, "k", failing); !errors.Is(err, errs.ErrProviderUnavailable) {
		t.Fatalf("entries older than stale_factor*ttl must not be served, got %v", err)
	}
}

func TestGetOrComputeBackfillsFasterTier(t *testing.T) {
	mem := newMapTier("memory")
	shared := newMapTier("redis")
	m, _ := newTestManager(t, mem, shared)
	ctx := context.Background()

	if _, err := GetOrCompute(ctx, m, CategoryNews, "AAPL:7", func(context.Context) (string, error) { return "news", nil }); err != nil {
		t.Fatalf("seed: %v", err)
	}
	mem.mu.Lock()
	mem.m = make(map[string][]byte)
	mem.mu.Unlock()

	res, err := GetOrCompute(ctx, m, CategoryNews, "AAPL:7", func(context.Context) (string, error) {
		t.Fatalf("compute must not run on a shared-tier hit")
		return "", nil
	})
	if err != nil || res.Tier != "redis" || res.Value != "news" {
		t.Fatalf("expected redis hit, got %+v err=%v", res, err)
	}
	if !mem.has("news:AAPL:7") {
		t.Fatalf("expected memory tier to be backfilled")
	}
}

func TestGetOrComputeTierErrorsAreMisses(t *testing.T) {
	broken := newMapTier("redis")
	broken.getErr = errors.New("connection refused")
	broken.setErr = errors.New("connection refused")
	m, _ := newTestManager(t, broken)

	res, err := GetOrCompute(context.Background(), m, CategorySignals, "k", func(context.Context) (int, error) { return 7, nil })
	if err != nil || res.Value != 7 {
		t.Fatalf("tier failure must not fail the request, got %+v err=%v", res, err)
	}
}

func TestGetOrComputeNegativeCaching(t *testing.T) {
	m, clock := newTestManager(t)
	ctx := context.Background()
	var calls int
	fn := func(context.Context) (string, error) {
		calls++
		return "", fmt.Errorf("AAPL: %w", errs.ErrNoSentimentAvailable)
	}

	for i := 0; i < 3; i++ {
		if _, err := GetOrCompute(ctx, m, CategorySentiment, "AAPL", fn); !errors.Is(err, errs.ErrNoSentimentAvailable) {
			t.Fatalf("call %d: expected ErrNoSentimentAvailable, got %v", i, err)
		}
	}
	if calls != 1 {
		t.Fatalf("negative outcome should be cached, got %d computes", calls)
	}
	clock.Advance(20*time.Second - time.Nanosecond)
	_, _ = GetOrCompute(ctx, m, CategorySentiment, "AAPL", fn)
	if calls != 1 {
		t.Fatalf("negative entry should hold until its ttl, got %d computes", calls)
	}
	clock.Advance(time.Nanosecond)
	_, _ = GetOrCompute(ctx, m, CategorySentiment, "AAPL", fn)
	if calls != 2 {
		t.Fatalf("negative entry should expire after its ttl, got %d computes", calls)
	}
}

func TestGetOrComputeCallerCancellationDoesNotStrandOthers(t *testing.T) {
	m, _ := newTestManager(t)
	started := make(chan struct{})
	release := make(chan struct{})
	var calls int32
	fn := func(ctx context.Context) (string, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(started)
		}
		select {
		case <-release:
			return "ok", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := GetOrCompute(leaderCtx, m, CategorySignals, "k", fn)
		leaderErr <- err
	}()
	<-started

	followerRes := make(chan Result[string], 1)
	go func() {
		res, err := GetOrCompute(context.Background(), m, CategorySignals, "k", fn)
		if err != nil {
			t.Errorf("follower: %v", err)
		}
		followerRes <- res
	}()
	time.Sleep(20 * time.Millisecond)

	cancelLeader()
	if err := <-leaderErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("leader should see its own cancellation, got %v", err)
	}
	close(release)

	if res := <-followerRes; res.Value != "ok" {
		t.Fatalf("follower should receive the shared result, got %+v", res)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected one compute, got %d", got)
	}
}

func TestGetOrComputeAbandonedFlightIsCancelled(t *testing.T) {
	m, _ := newTestManager(t)
	cancelled := make(chan struct{})
	fn := func(ctx context.Context) (string, error) {
		<-ctx.Done()
		close(cancelled)
		return "", ctx.Err()
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = GetOrCompute(ctx, m, CategorySignals, "k", fn)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatalf("compute should be cancelled once every waiter left")
	}
	if m.InFlight() != 0 {
		t.Fatalf("abandoned flight should be released")
	}

	res, err := GetOrCompute(context.Background(), m, CategorySignals, "k", func(context.Context) (string, error) { return "fresh", nil })
	if err != nil || res.Value != "fresh" {
		t.Fatalf("next caller should start a new flight, got %+v err=%v", res, err)
	}
}

func TestGetOrComputeUnknownCategory(t *testing.T) {
	m, _ := newTestManager(t)
	if _, err := GetOrCompute(context.Background(), m, Category("bogus"), "k", func(context.Context) (int, error) { return 1, nil }); err == nil {
		t.Fatalf("expected error for unknown category")
	}
}
