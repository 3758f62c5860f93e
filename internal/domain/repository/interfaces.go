package repository

import (
	"context"
	"time"

	"FinSignal/internal/domain/models"
)

// QuoteProvider returns ascending daily bars covering the lookback window.
// Provider-side throttling must surface as errs.ErrRateLimited, any other
// transport failure as errs.ErrProviderUnavailable.
type QuoteProvider interface {
	GetBars(ctx context.Context, symbol string, lookbackDays int) ([]models.PriceBar, error)
}

// NewsProvider returns articles mentioning symbol published within the lookback window.
type NewsProvider interface {
	GetArticles(ctx context.Context, symbol string, lookbackDays int) ([]models.NewsArticle, error)
}

// MarketStream delivers real-time trades for the live quote overlay.
type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Trade, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// SignalPublisher emits freshly computed analyses to downstream consumers.
type SignalPublisher interface {
	PublishAnalysis(ctx context.Context, a *models.Analysis) error
	Close() error
}

// Metrics is the sink for component-level observations.
type Metrics interface {
	ObserveCall(component string, d time.Duration, err error)
	ObserveCache(category, tier string, hit bool)
	ObserveSignal(symbol string, action models.Action, degraded bool)
}

// NopMetrics discards observations.
type NopMetrics struct{}

func (NopMetrics) ObserveCall(string, time.Duration, error) {}
func (NopMetrics) ObserveCache(string, string, bool) {}
func (NopMetrics) ObserveSignal(string, models.Action, bool) {}
