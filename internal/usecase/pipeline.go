package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"FinSignal/internal/domain/errs"
	"FinSignal/internal/domain/models"
	domrepo "FinSignal/internal/domain/repository"
	domsvc "FinSignal/internal/domain/service"
	svccache "FinSignal/internal/service/cache"
	"FinSignal/internal/services/signal"
	pkgcache "FinSignal/pkg/cache"
	applogger "FinSignal/pkg/logger"
	"FinSignal/pkg/util"

	"golang.org/x/sync/errgroup"
)

const (
	minLookbackDays = 1
	maxLookbackDays = 30
)

// Pipeline states, logged on every transition.
const (
	stateReceived  = "received"
	stateFetching  = "fetching"
	stateAnalyzing = "analyzing"
	stateSignaling = "signaling"
	stateCached    = "cached_response"
	stateCompleted = "completed"
	stateFailed    = "failed"
)

// PipelineConfig bounds one pipeline run.
type PipelineConfig struct {
	Timeout           time.Duration `yaml:"timeout" default:"10s"`
	QuoteRetryBackoff time.Duration `yaml:"quote_retry_backoff" default:"250ms"`
	PublishTimeout    time.Duration `yaml:"publish_timeout" default:"2s"`
}

// SentimentScorer is the ensemble as the pipeline sees it.
type SentimentScorer interface {
	Score(ctx context.Context, symbol string, articles []models.NewsArticle) (*models.SentimentResult, error)
}

// CallerBudget rejects callers that exceeded their request budget.
type CallerBudget interface {
	Check(caller string) error
}

// LastPriceSource supplies the latest streamed trade price for a symbol.
type LastPriceSource interface {
	LastPrice(symbol string) (float64, bool)
}

// Query identifies one inbound request.
type Query struct {
	Caller       string
	RequestID    string
	Symbol       string
	LookbackDays int
}

// SignalFilter narrows GetSignals output without touching the computation.
type SignalFilter struct {
	Action              models.Action // empty matches all
	ConfidenceThreshold float64
}

// Pipeline is the orchestrator: the only component talking to the cache manager
// and the quote and news providers.
type Pipeline struct {
	cfg       PipelineConfig
	quotes    domrepo.QuoteProvider
	news      domrepo.NewsProvider
	engine    domsvc.IndicatorEngine
	sentiment SentimentScorer
	generator *signal.Generator
	cache     *svccache.Manager
	budget    CallerBudget
	publisher domrepo.SignalPublisher
	live      LastPriceSource
	metrics   domrepo.Metrics
	log       *applogger.Logger
	now       func() time.Time
}

// PipelineOption configures optional collaborators.
type PipelineOption func(*Pipeline)

func WithBudget(b CallerBudget) PipelineOption { return func(p *Pipeline) { p.budget = b } }

func WithPublisher(pub domrepo.SignalPublisher) PipelineOption {
	return func(p *Pipeline) { p.publisher = pub }
}

// WithLiveQuotes overlays the latest streamed price onto the last bar's close.
func WithLiveQuotes(src LastPriceSource) PipelineOption { return func(p *Pipeline) { p.live = src } }

func WithPipelineMetrics(m domrepo.Metrics) PipelineOption {
	return func(p *Pipeline) { p.metrics = m }
}

func WithPipelineLogger(l *applogger.Logger) PipelineOption {
	return func(p *Pipeline) { p.log = l }
}

func WithPipelineClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) { p.now = now }
}

// NewPipeline wires the orchestrator.
func NewPipeline(
	cfg PipelineConfig,
	quotes domrepo.QuoteProvider,
	news domrepo.NewsProvider,
	engine domsvc.IndicatorEngine,
	sentiment SentimentScorer,
	generator *signal.Generator,
	cache *svccache.Manager,
	opts ...PipelineOption,
) *Pipeline {
	p := &Pipeline{
		cfg:       cfg,
		quotes:    quotes,
		news:      news,
		engine:    engine,
		sentiment: sentiment,
		generator: generator,
		cache:     cache,
		metrics:   domrepo.NopMetrics{},
		log:       applogger.NewNop(),
		now:       time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// GetSentiment returns the ensemble sentiment for the symbol. With includeNews the
// deduplicated articles that were scored are attached.
func (p *Pipeline) GetSentiment(ctx context.Context, q Query, includeNews bool) (*models.SentimentResponse, error) {
	a, stale, notes, err := p.analysis(ctx, q)
	if err != nil {
		return nil, err
	}
	if a.Sentiment == nil {
		return nil, fmt.Errorf("%s: %w", a.Symbol, errs.ErrNoSentimentAvailable)
	}
	resp := &models.SentimentResponse{
		Symbol:       a.Symbol,
		LookbackDays: a.LookbackDays,
		Sentiment:    a.Sentiment,
		Degraded:     a.Degraded || stale,
		Stale:        stale,
		Notes:        notes,
	}
	if includeNews {
		resp.Articles = a.Articles
	}
	return resp, nil
}

// GetSignals returns the symbol's signal if it passes the filter.
func (p *Pipeline) GetSignals(ctx context.Context, q Query, f SignalFilter) (*models.SignalsResponse, error) {
	a, stale, notes, err := p.analysis(ctx, q)
	if err != nil {
		return nil, err
	}
	resp := &models.SignalsResponse{
		Symbol:       a.Symbol,
		LookbackDays: a.LookbackDays,
		Signals:      []models.Signal{},
		Degraded:     a.Degraded || stale,
		Stale:        stale,
		Notes:        notes,
	}
	s := a.Signal
	if (f.Action == "" || s.Action == f.Action) && s.Confidence >= f.ConfidenceThreshold {
		resp.Signals = append(resp.Signals, s)
	}
	return resp, nil
}

// analysis validates the query, then serves the cached analysis or runs the pipeline.
func (p *Pipeline) analysis(ctx context.Context, q Query) (models.Analysis, bool, []string, error) {
	var zero models.Analysis
	sym, ok := util.NormalizeSymbol(q.Symbol)
	if !ok {
		return zero, false, nil, fmt.Errorf("%w: symbol %q must be 1-10 characters of A-Z, 0-9, '.', '-'", errs.ErrValidation, q.Symbol)
	}
	if q.LookbackDays < minLookbackDays || q.LookbackDays > maxLookbackDays {
		return zero, false, nil, fmt.Errorf("%w: lookback_days must be in [%d,%d], got %d", errs.ErrValidation, minLookbackDays, maxLookbackDays, q.LookbackDays)
	}
	if p.budget != nil {
		if err := p.budget.Check(q.Caller); err != nil {
			return zero, false, nil, err
		}
	}
	q.Symbol = sym

	log := p.log.With(
		applogger.String("request_id", q.RequestID),
		applogger.String("symbol", sym),
		applogger.Int("lookback_days", q.LookbackDays),
	)
	log.Debug("pipeline state", applogger.String("state", stateReceived))

	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	key := pkgcache.GenerateKeyWithParams(sym, q.LookbackDays)
	res, err := svccache.GetOrCompute(ctx, p.cache, svccache.CategorySignals, key, func(cctx context.Context) (models.Analysis, error) {
		return p.run(cctx, q, log)
	})
	p.metrics.ObserveCall("pipeline", time.Since(start), err)
	if err != nil {
		log.Warn("pipeline state",
			applogger.String("state", stateFailed),
			applogger.String("reason", errs.Kind(err)),
			applogger.Error(err),
		)
		return zero, false, nil, err
	}

	a := res.Value
	notes := append([]string(nil), a.Notes...)
	stale := res.State == svccache.StateStale
	if derr := res.Degraded(); derr != nil {
		notes = append(notes, derr.Error())
	}
	log.Debug("pipeline state",
		applogger.String("state", stateCompleted),
		applogger.String("served_from", res.Tier),
		applogger.Bool("stale", stale),
	)
	return a, stale, notes, nil
}

// run is one full computation: fetch, analyze, signal. It only runs inside the
// signals cache flight.
func (p *Pipeline) run(ctx context.Context, q Query, log *applogger.Logger) (models.Analysis, error) {
	var notes []string
	degraded := false
	note := func(format string, args ...interface{}) {
		notes = append(notes, fmt.Sprintf(format, args...))
		degraded = true
	}

	log.Debug("pipeline state", applogger.String("state", stateFetching))
	var (
		bars      []models.PriceBar
		articles  []models.NewsArticle
		newsErr   error
		quoteWarn error
		newsWarn  error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := p.fetchBars(gctx, q)
		if err != nil {
			return err
		}
		bars, quoteWarn = res.Value, res.Degraded()
		return nil
	})
	g.Go(func() error {
		res, err := p.fetchArticles(gctx, q)
		if err != nil {
			newsErr = err
			return nil
		}
		articles, newsWarn = models.DedupeArticles(res.Value), res.Degraded()
		return nil
	})
	if err := g.Wait(); err != nil {
		return models.Analysis{}, err
	}
	if ctx.Err() != nil {
		return models.Analysis{}, ctx.Err()
	}
	if quoteWarn != nil {
		note("quotes: %v", quoteWarn)
	}
	if newsWarn != nil {
		note("news: %v", newsWarn)
	}
	if newsErr != nil {
		log.Warn("news branch failed, continuing without sentiment", applogger.Error(newsErr))
		note("news unavailable: %v", newsErr)
	}

	if px, ok := p.lastPrice(q.Symbol); ok && len(bars) > 0 {
		bars = overlayLastPrice(bars, px)
		notes = append(notes, fmt.Sprintf("last close replaced by live price %.4f", px))
	}

	log.Debug("pipeline state", applogger.String("state", stateAnalyzing))
	var (
		sent     *models.SentimentResult
		sentErr  error
		sentWarn error
		ind      *models.IndicatorSet
		indErr   error
	)
	var ag errgroup.Group
	ag.Go(func() error {
		start := time.Now()
		set, err := p.engine.Compute(bars)
		p.metrics.ObserveCall("indicators", time.Since(start), err)
		if err != nil {
			indErr = err
			return nil
		}
		ind = &set
		return nil
	})
	ag.Go(func() error {
		if newsErr != nil {
			sentErr = fmt.Errorf("%w: news unavailable", errs.ErrNoSentimentAvailable)
			return nil
		}
		res, err := p.scoreSentiment(ctx, q, articles)
		if err != nil {
			sentErr = err
			return nil
		}
		v := res.Value
		sent, sentWarn = &v, res.Degraded()
		return nil
	})
	_ = ag.Wait()
	if ctx.Err() != nil {
		return models.Analysis{}, ctx.Err()
	}

	switch {
	case sentErr != nil && !errors.Is(sentErr, errs.ErrNoSentimentAvailable):
		return models.Analysis{}, sentErr
	case indErr != nil && !errors.Is(indErr, errs.ErrInsufficientHistory):
		return models.Analysis{}, indErr
	}
	if sentWarn != nil {
		note("sentiment: %v", sentWarn)
	}
	if sentErr != nil && newsErr == nil {
		note("sentiment unavailable: %v", sentErr)
	}
	if indErr != nil {
		note("indicators unavailable: %v", indErr)
	}

	log.Debug("pipeline state", applogger.String("state", stateSignaling))
	sig, err := p.generator.Generate(signal.Inputs{
		Symbol:     q.Symbol,
		Sentiment:  sent,
		Indicators: ind,
		Bars:       bars,
	})
	if err != nil {
		return models.Analysis{}, fmt.Errorf("signal %s: %w", q.Symbol, err)
	}

	a := models.Analysis{
		Symbol:       q.Symbol,
		LookbackDays: q.LookbackDays,
		Sentiment:    sent,
		Indicators:   ind,
		Signal:       sig,
		Articles:     articles,
		Degraded:     degraded,
		Notes:        notes,
		ComputedAt:   p.now().UTC(),
	}
	p.metrics.ObserveSignal(a.Symbol, sig.Action, degraded)
	p.publish(ctx, &a, log)
	log.Debug("pipeline state",
		applogger.String("state", stateCached),
		applogger.String("action", string(sig.Action)),
		applogger.Float64("confidence", sig.Confidence),
	)
	return a, nil
}

// fetchBars reads quotes through the cache. ProviderUnavailable is retried once
// after a backoff; RateLimited fails fast.
func (p *Pipeline) fetchBars(ctx context.Context, q Query) (svccache.Result[[]models.PriceBar], error) {
	key := pkgcache.GenerateKeyWithParams(q.Symbol, q.LookbackDays)
	return svccache.GetOrCompute(ctx, p.cache, svccache.CategoryQuotes, key, func(cctx context.Context) ([]models.PriceBar, error) {
		bars, err := p.callQuotes(cctx, q)
		if err == nil || !errors.Is(err, errs.ErrProviderUnavailable) || errors.Is(err, errs.ErrRateLimited) {
			return bars, err
		}
		p.log.Warn("quote provider unavailable, retrying",
			applogger.String("symbol", q.Symbol),
			applogger.Duration("backoff", p.cfg.QuoteRetryBackoff),
			applogger.Error(err),
		)
		select {
		case <-cctx.Done():
			return nil, err
		case <-time.After(p.cfg.QuoteRetryBackoff):
		}
		return p.callQuotes(cctx, q)
	})
}

func (p *Pipeline) callQuotes(ctx context.Context, q Query) ([]models.PriceBar, error) {
	start := time.Now()
	bars, err := p.quotes.GetBars(ctx, q.Symbol, q.LookbackDays)
	p.metrics.ObserveCall("quote_provider", time.Since(start), err)
	return bars, err
}

func (p *Pipeline) fetchArticles(ctx context.Context, q Query) (svccache.Result[[]models.NewsArticle], error) {
	key := pkgcache.GenerateKeyWithParams(q.Symbol, q.LookbackDays)
	return svccache.GetOrCompute(ctx, p.cache, svccache.CategoryNews, key, func(cctx context.Context) ([]models.NewsArticle, error) {
		start := time.Now()
		arts, err := p.news.GetArticles(cctx, q.Symbol, q.LookbackDays)
		p.metrics.ObserveCall("news_provider", time.Since(start), err)
		return arts, err
	})
}

func (p *Pipeline) scoreSentiment(ctx context.Context, q Query, articles []models.NewsArticle) (svccache.Result[models.SentimentResult], error) {
	key := pkgcache.GenerateKeyWithParams(q.Symbol, q.LookbackDays)
	return svccache.GetOrCompute(ctx, p.cache, svccache.CategorySentiment, key, func(cctx context.Context) (models.SentimentResult, error) {
		res, err := p.sentiment.Score(cctx, q.Symbol, articles)
		if err != nil {
			return models.SentimentResult{}, err
		}
		return *res, nil
	})
}

func (p *Pipeline) lastPrice(symbol string) (float64, bool) {
	if p.live == nil {
		return 0, false
	}
	px, ok := p.live.LastPrice(symbol)
	return px, ok && px > 0
}

// publish emits the analysis. Failures are logged; they never fail the request.
func (p *Pipeline) publish(ctx context.Context, a *models.Analysis, log *applogger.Logger) {
	if p.publisher == nil {
		return
	}
	pctx := context.WithoutCancel(ctx)
	if p.cfg.PublishTimeout > 0 {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(pctx, p.cfg.PublishTimeout)
		defer cancel()
	}
	if err := p.publisher.PublishAnalysis(pctx, a); err != nil {
		log.Warn("publish analysis failed", applogger.Error(err))
	}
}

// overlayLastPrice returns a copy of bars whose last close is px, widening the
// last bar's range if needed.
func overlayLastPrice(bars []models.PriceBar, px float64) []models.PriceBar {
	out := append([]models.PriceBar(nil), bars...)
	last := &out[len(out)-1]
	last.Close = px
	if px > last.High {
		last.High = px
	}
	if px < last.Low {
		last.Low = px
	}
	return out
}
