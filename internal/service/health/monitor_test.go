package health

import (
	"errors"
	"math"
	"testing"
	"time"

	"FinSignal/internal/domain/errs"
	"FinSignal/internal/domain/models"
)

type countingMetrics struct{ calls, caches, signals int }

func (c *countingMetrics) ObserveCall(string, time.Duration, error) { c.calls++ }
func (c *countingMetrics) ObserveCache(string, string, bool) { c.caches++ }
func (c *countingMetrics) ObserveSignal(string, models.Action, bool) { c.signals++ }

func TestSnapshotRates(t *testing.T) {
	next := &countingMetrics{}
	m := NewMonitor(DefaultConfig(), next)

	for i := 0; i < 10; i++ {
		m.ObserveCall("quotes", 20*time.Millisecond, nil)
	}
	m.ObserveCache("quotes", "memory", true)
	m.ObserveCache("quotes", "none", false)
	m.ObserveCache("quotes", "redis", true)
	m.ObserveCache("quotes", "memory", true)
	m.ObserveSignal("AAPL", models.ActionBuy, false)

	rep := m.Snapshot()
	q := rep.Components["quotes"]
	if q.Status != models.StatusHealthy || rep.Status != models.StatusHealthy {
		t.Fatalf("expected healthy, got %+v", rep)
	}
	if math.Abs(q.AverageLatencyMs-20) > 1e-9 {
		t.Fatalf("expected 20ms average, got %v", q.AverageLatencyMs)
	}
	if q.CacheHitRate != 0.75 {
		t.Fatalf("expected hit rate 0.75, got %v", q.CacheHitRate)
	}
	if next.calls != 10 || next.caches != 4 || next.signals != 1 {
		t.Fatalf("observations must be forwarded, got %+v", next)
	}
}

func TestSnapshotStatusFromErrorRate(t *testing.T) {
	m := NewMonitor(DefaultConfig(), nil)
	boom := errors.New("boom")

	for i := 0; i < 8; i++ {
		m.ObserveCall("news", time.Millisecond, nil)
	}
	for i := 0; i < 2; i++ {
		m.ObserveCall("news", time.Millisecond, boom)
	}
	for i := 0; i < 10; i++ {
		m.ObserveCall("sentiment.finbert", time.Millisecond, boom)
	}

	rep := m.Snapshot()
	if got := rep.Components["news"].Status; got != models.StatusDegraded {
		t.Fatalf("20%% errors should be degraded, got %s", got)
	}
	if got := rep.Components["sentiment.finbert"].Status; got != models.StatusDown {
		t.Fatalf("100%% errors should be down, got %s", got)
	}
	if rep.Status != models.StatusDown {
		t.Fatalf("overall status should be the worst component, got %s", rep.Status)
	}
}

func TestNoSentimentIsNotAFailure(t *testing.T) {
	m := NewMonitor(DefaultConfig(), nil)
	for i := 0; i < 10; i++ {
		m.ObserveCall("sentiment", time.Millisecond, errs.ErrNoSentimentAvailable)
	}
	if h := m.Snapshot().Components["sentiment"]; h.ErrorRate != 0 || h.Status != models.StatusHealthy {
		t.Fatalf("expected healthy sentiment, got %+v", h)
	}
}

func TestWindowIsBounded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Window = 10
	m := NewMonitor(cfg, nil)
	for i := 0; i < 10; i++ {
		m.ObserveCall("quotes", time.Millisecond, errors.New("old failure"))
	}
	for i := 0; i < 10; i++ {
		m.ObserveCall("quotes", time.Millisecond, nil)
	}
	h := m.Snapshot().Components["quotes"]
	if h.ErrorRate != 0 || h.Samples != 10 {
		t.Fatalf("old samples should roll out of the window, got %+v", h)
	}
}
