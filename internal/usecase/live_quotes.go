package usecase

import (
	"context"
	"sync"
	"time"

	"FinSignal/internal/domain/models"
	drepo "FinSignal/internal/domain/repository"
	applogger "FinSignal/pkg/logger"
)

// PriceRecorder receives stream-side observations.
type PriceRecorder interface {
	RecordLastPrice(symbol string, price float64)
	RecordError(kind string)
}

type lastTrade struct {
	price float64
	at    time.Time
}

// LiveQuotes collects trades from the market stream and keeps the latest price
// per symbol for the pipeline's overlay.
type LiveQuotes struct {
	stream  drepo.MarketStream
	metrics PriceRecorder
	log     *applogger.Logger
	maxAge  time.Duration
	now     func() time.Time

	mu   sync.RWMutex
	last map[string]lastTrade

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewLiveQuotes creates a collector. Prices older than maxAge are not served.
func NewLiveQuotes(stream drepo.MarketStream, metrics PriceRecorder, log *applogger.Logger, maxAge time.Duration) *LiveQuotes {
	if log == nil {
		log = applogger.NewNop()
	}
	if maxAge <= 0 {
		maxAge = time.Minute
	}
	return &LiveQuotes{
		stream:  stream,
		metrics: metrics,
		log:     log,
		maxAge:  maxAge,
		now:     time.Now,
		last:    make(map[string]lastTrade),
	}
}

// IsConnected returns true if the market stream is connected.
func (c *LiveQuotes) IsConnected() bool {
	return c.stream.IsConnected()
}

// Start connects, subscribes and consumes in the background until Shutdown or ctx ends.
func (c *LiveQuotes) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		_ = c.stream.Close()
		return err
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run(ctx)
	}()
	return nil
}

func (c *LiveQuotes) run(ctx context.Context) {
	for ctx.Err() == nil {
		trCh, errCh := c.stream.Read(ctx)
		err := c.consume(ctx, trCh, errCh)
		if ctx.Err() != nil {
			return
		}
		if c.metrics != nil {
			c.metrics.RecordError("stream")
		}
		c.log.Warn("market stream interrupted, reconnecting", applogger.Error(err))
		for ctx.Err() == nil {
			rerr := c.stream.Reconnect(ctx)
			if rerr == nil {
				break
			}
			c.log.Warn("market stream reconnect failed", applogger.Error(rerr))
		}
	}
}

// consume drains one connection's channels and returns why it ended.
func (c *LiveQuotes) consume(ctx context.Context, trCh <-chan *models.Trade, errCh <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-errCh:
			if ok && err != nil {
				return err
			}
			if !ok {
				errCh = nil
			}
		case t, ok := <-trCh:
			if !ok {
				return errStreamClosed
			}
			if t == nil || t.Price <= 0 {
				continue
			}
			c.observe(t)
		}
	}
}

func (c *LiveQuotes) observe(t *models.Trade) {
	at := time.Unix(t.Timestamp, 0)
	c.mu.Lock()
	if prev, ok := c.last[t.Symbol]; !ok || !at.Before(prev.at) {
		c.last[t.Symbol] = lastTrade{price: t.Price, at: at}
	}
	c.mu.Unlock()
	if c.metrics != nil {
		c.metrics.RecordLastPrice(t.Symbol, t.Price)
	}
}

// LastPrice returns the latest trade price seen for symbol within maxAge.
func (c *LiveQuotes) LastPrice(symbol string) (float64, bool) {
	c.mu.RLock()
	lt, ok := c.last[symbol]
	c.mu.RUnlock()
	if !ok || c.now().Sub(lt.at) > c.maxAge {
		return 0, false
	}
	return lt.price, true
}

// Shutdown stops consuming and closes the stream.
func (c *LiveQuotes) Shutdown(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}
	err := c.stream.Close()
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return err
}
