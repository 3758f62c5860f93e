package metrics

import (
	"fmt"
	"testing"
	"time"

	"FinSignal/internal/domain/errs"
	"FinSignal/internal/domain/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderCountsOutcomes(t *testing.T) {
	r := New(prometheus.NewRegistry())

	r.ObserveCall("quotes", 10*time.Millisecond, nil)
	r.ObserveCall("quotes", 10*time.Millisecond, fmt.Errorf("x: %w", errs.ErrProviderUnavailable))
	r.ObserveCall("sentiment", time.Millisecond, errs.ErrNoSentimentAvailable)

	if got := testutil.ToFloat64(r.callsTotal.WithLabelValues("quotes", "ok")); got != 1 {
		t.Fatalf("expected 1 ok call, got %v", got)
	}
	if got := testutil.ToFloat64(r.callsTotal.WithLabelValues("quotes", "provider_unavailable")); got != 1 {
		t.Fatalf("expected 1 provider_unavailable call, got %v", got)
	}
	if got := testutil.ToFloat64(r.callsTotal.WithLabelValues("sentiment", "empty")); got != 1 {
		t.Fatalf("expected 1 empty sentiment call, got %v", got)
	}
}

func TestRecorderCacheAndSignals(t *testing.T) {
	r := New(prometheus.NewRegistry())
	r.ObserveCache("quotes", "memory", true)
	r.ObserveCache("quotes", "memory", false)
	r.ObserveCache("quotes", "memory", true)
	r.ObserveSignal("AAPL", models.ActionBuy, false)

	if got := testutil.ToFloat64(r.cacheLookups.WithLabelValues("quotes", "memory", "hit")); got != 2 {
		t.Fatalf("expected 2 hits, got %v", got)
	}
	if got := testutil.ToFloat64(r.signalsTotal.WithLabelValues("buy", "false")); got != 1 {
		t.Fatalf("expected 1 buy signal, got %v", got)
	}
}
