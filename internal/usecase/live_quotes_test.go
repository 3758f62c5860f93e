package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"FinSignal/internal/domain/models"
)

// scriptedStream serves one batch of trades per connection, then fails it.
// Trades are unbuffered so the failure is seen only after the whole batch.
type scriptedStream struct {
	batches    [][]*models.Trade
	reads      atomic.Int32
	reconnects atomic.Int32
	connected  atomic.Bool
}

func (s *scriptedStream) Connect(context.Context) error {
	s.connected.Store(true)
	return nil
}

func (s *scriptedStream) Subscribe(context.Context) error { return nil }

func (s *scriptedStream) Close() error {
	s.connected.Store(false)
	return nil
}

func (s *scriptedStream) IsConnected() bool { return s.connected.Load() }

func (s *scriptedStream) Reconnect(context.Context) error {
	s.reconnects.Add(1)
	s.connected.Store(true)
	return nil
}

func (s *scriptedStream) Read(ctx context.Context) (<-chan *models.Trade, <-chan error) {
	i := int(s.reads.Add(1)) - 1
	trades := make(chan *models.Trade)
	errc := make(chan error, 1)
	if i < len(s.batches) {
		batch := s.batches[i]
		go func() {
			defer close(trades)
			defer close(errc)
			for _, t := range batch {
				select {
				case trades <- t:
				case <-ctx.Done():
					return
				}
			}
			errc <- errors.New("connection reset")
		}()
		return trades, errc
	}
	go func() {
		<-ctx.Done()
		close(trades)
		close(errc)
	}()
	return trades, errc
}

type priceLog struct {
	mu     sync.Mutex
	prices map[string]float64
	errors int
}

func (p *priceLog) RecordLastPrice(symbol string, price float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prices[symbol] = price
}

func (p *priceLog) RecordError(string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errors++
}

func TestLiveQuotesReconnectsAndKeepsLatest(t *testing.T) {
	now := time.Unix(1_000, 0)
	stream := &scriptedStream{batches: [][]*models.Trade{
		{{Symbol: "AAPL", Timestamp: 990, Price: 190}, {Symbol: "AAPL", Timestamp: 995, Price: 191}},
		{{Symbol: "AAPL", Timestamp: 980, Price: 150}, {Symbol: "MSFT", Timestamp: 996, Price: 410}},
	}}
	rec := &priceLog{prices: map[string]float64{}}
	lq := NewLiveQuotes(stream, rec, nil, time.Minute)
	lq.now = func() time.Time { return now }

	if err := lq.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	deadline := time.After(2 * time.Second)
	for stream.reads.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("collector stalled after %d reads", stream.reads.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}

	if px, ok := lq.LastPrice("AAPL"); !ok || px != 191 {
		t.Fatalf("AAPL = %v,%v want 191 (older trade must not win)", px, ok)
	}
	if px, ok := lq.LastPrice("MSFT"); !ok || px != 410 {
		t.Fatalf("MSFT = %v,%v", px, ok)
	}
	if stream.reconnects.Load() != 2 {
		t.Fatalf("reconnects = %d, want 2", stream.reconnects.Load())
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := lq.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.errors != 2 {
		t.Fatalf("stream errors recorded = %d, want 2", rec.errors)
	}
}

func TestLiveQuotesExpiresOldPrices(t *testing.T) {
	lq := NewLiveQuotes(&scriptedStream{}, nil, nil, time.Minute)
	lq.now = func() time.Time { return time.Unix(1_000, 0) }
	lq.observe(&models.Trade{Symbol: "AAPL", Timestamp: 900, Price: 190})
	if _, ok := lq.LastPrice("AAPL"); ok {
		t.Fatalf("price older than max age served")
	}
	if _, ok := lq.LastPrice("MSFT"); ok {
		t.Fatalf("unknown symbol served")
	}
}
