package di

import (
	"context"
	"fmt"
	"strings"
	"time"

	"FinSignal/internal/domain/repository"
	domsvc "FinSignal/internal/domain/service"
	"FinSignal/internal/handler/api"
	internalrepo "FinSignal/internal/repository"
	svccache "FinSignal/internal/service/cache"
	"FinSignal/internal/service/finnhub"
	"FinSignal/internal/service/health"
	"FinSignal/internal/service/ratelimit"
	"FinSignal/internal/services/indicators"
	"FinSignal/internal/services/sentiment"
	"FinSignal/internal/services/signal"
	"FinSignal/internal/usecase"
	pkgcache "FinSignal/pkg/cache"
	pkgch "FinSignal/pkg/clickhouse"
	"FinSignal/pkg/config"
	xhttp "FinSignal/pkg/http"
	pkgkafka "FinSignal/pkg/kafka"
	applogger "FinSignal/pkg/logger"
	"FinSignal/pkg/metrics"
	"FinSignal/pkg/server"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&cfg.Logger.Config)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideRegistry creates the Prometheus registry served on /metrics. Nil when metrics are off.
func ProvideRegistry(cfg *config.Config) *prometheus.Registry {
	if !cfg.Metrics.Enabled {
		return nil
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// ProvideRecorder creates the Prometheus metrics recorder.
func ProvideRecorder(reg *prometheus.Registry) *metrics.Recorder {
	if reg == nil {
		return metrics.New(prometheus.NewRegistry())
	}
	return metrics.New(reg)
}

// ProvideHealthMonitor wraps the recorder so every observation also feeds /health.
func ProvideHealthMonitor(cfg *config.Config, rec *metrics.Recorder) *health.Monitor {
	return health.NewMonitor(cfg.Health, rec)
}

// ProvideMetrics exposes the monitor as the component metrics sink.
func ProvideMetrics(m *health.Monitor) repository.Metrics {
	return m
}

// ProvideCacheTiers builds L1 memory and, when enabled, L2 Redis.
func ProvideCacheTiers(cfg *config.Config, l *applogger.Logger) ([]pkgcache.Tier, func(), error) {
	tiers := []pkgcache.Tier{pkgcache.NewMemoryCache(
		pkgcache.WithMemoryMaxEntries(cfg.Cache.Memory.MaxEntries),
		pkgcache.WithMemoryShards(cfg.Cache.Memory.Shards),
	)}
	if !cfg.Redis.Enabled {
		return tiers, func() {}, nil
	}

	rc, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisAddr(cfg.Redis.Addr),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
		pkgcache.WithRedisPool(cfg.Redis.PoolSize, cfg.Redis.PoolSize/4, 30*time.Second),
		pkgcache.WithRedisOpTimeout(cfg.Redis.OpTimeout),
		pkgcache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis cache: %w", err)
	}
	l.Info("redis cache tier enabled", applogger.String("addr", cfg.Redis.Addr))
	cleanup := func() {
		if err := rc.Close(); err != nil {
			l.Warn("redis close error", applogger.Error(err))
		}
	}
	return append(tiers, rc), cleanup, nil
}

// ProvideCacheManager creates the tiered cache manager from category TTLs.
func ProvideCacheManager(cfg *config.Config, tiers []pkgcache.Tier, l *applogger.Logger, m repository.Metrics) (*svccache.Manager, error) {
	mc := svccache.Config{
		Policies: map[svccache.Category]svccache.Policy{
			svccache.CategoryQuotes: {TTL: cfg.Cache.QuotesTTL},
			svccache.CategoryNews:   {TTL: cfg.Cache.NewsTTL},
			svccache.CategorySentiment: {
				TTL:         cfg.Cache.SentimentTTL,
				NegativeTTL: cfg.Cache.SentimentNegativeTTL,
			},
			svccache.CategorySignals: {TTL: cfg.Cache.SignalsTTL},
		},
		StaleFactor:    cfg.Cache.StaleFactor,
		ComputeTimeout: cfg.Cache.ComputeTimeout,
	}
	mgr, err := svccache.NewManager(mc, tiers,
		svccache.WithLogger(l.With(applogger.String("component", "cache"))),
		svccache.WithMetrics(m),
	)
	if err != nil {
		return nil, fmt.Errorf("cache manager: %w", err)
	}
	return mgr, nil
}

// ProvideKafkaProducer creates a Kafka producer. Nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config, reg *prometheus.Registry, l *applogger.Logger) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	opts := []pkgkafka.ProducerOption{
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.BatchTimeout),
		pkgkafka.WithTimeouts(cfg.Kafka.WriteTimeout, cfg.Kafka.WriteTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Async),
		pkgkafka.WithHashByKey(true),
	}
	if reg != nil {
		opts = append(opts, pkgkafka.WithRegisterer(reg))
	}
	producer, err := pkgkafka.NewProducer(opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	cleanup := func() {
		if err := producer.Close(); err != nil {
			l.Warn("kafka producer close error", applogger.Error(err))
		}
	}
	return producer, cleanup, nil
}

// ProvideSignalPublisher publishes analyses to Kafka, or discards them when Kafka is off.
func ProvideSignalPublisher(cfg *config.Config, producer *pkgkafka.Producer) repository.SignalPublisher {
	if producer == nil {
		return internalrepo.NopSignalPublisher{}
	}
	return internalrepo.NewKafkaSignalPublisher(producer, cfg.Kafka.SignalsTopic)
}

// ProvideFinnhubREST creates the Finnhub REST client.
func ProvideFinnhubREST(cfg *config.Config) *finnhub.REST {
	return finnhub.NewREST(finnhub.RESTConfig{
		BaseURL:     cfg.Finnhub.RESTURL,
		APIKey:      cfg.Finnhub.APIKey,
		Timeout:     cfg.Finnhub.Timeout,
		HistoryDays: cfg.Quotes.HistoryDays,
	})
}

// ProvideQuoteProvider selects the bar source.
func ProvideQuoteProvider(cfg *config.Config, rest *finnhub.REST, l *applogger.Logger) (repository.QuoteProvider, func(), error) {
	if cfg.Quotes.Source != config.QuotesClickHouse {
		return rest, func() {}, nil
	}

	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	if cfg.ClickHouse.InitSchema {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := client.InitSchema(ctx, internalrepo.DailyBarsSchema); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
		}
	}

	l.Info("quotes served from clickhouse", applogger.String("table", cfg.ClickHouse.Table))
	store := internalrepo.NewCHBarStore(client, cfg.ClickHouse.Table, cfg.Quotes.HistoryDays, l)
	cleanup := func() {
		if err := client.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}
	return store, cleanup, nil
}

// ProvideNewsProvider returns the Finnhub company news source.
func ProvideNewsProvider(rest *finnhub.REST) repository.NewsProvider {
	return rest
}

// ProvideIndicatorEngine creates the technical indicator engine.
func ProvideIndicatorEngine(cfg *config.Config) domsvc.IndicatorEngine {
	return indicators.NewEngine(cfg.Indicators)
}

// ProvideSentimentEnsemble builds the model registry and the weighted ensemble over it.
func ProvideSentimentEnsemble(cfg *config.Config, l *applogger.Logger, m repository.Metrics) (*sentiment.Ensemble, error) {
	members := make([]sentiment.Member, 0, len(cfg.Sentiment.Models))
	for _, mc := range cfg.Sentiment.Models {
		model, err := buildModel(mc)
		if err != nil {
			return nil, fmt.Errorf("sentiment model %s: %w", mc.Name, err)
		}
		members = append(members, sentiment.Member{Model: model, Weight: mc.Weight})
	}

	ens, err := sentiment.NewEnsemble(members, cfg.Sentiment.EnsembleConfig,
		sentiment.WithLogger(l.With(applogger.String("component", "sentiment"))),
		sentiment.WithMetrics(m),
	)
	if err != nil {
		return nil, fmt.Errorf("sentiment ensemble: %w", err)
	}
	l.Info("sentiment ensemble ready", applogger.Strings("models", ens.Names()))
	return ens, nil
}

func buildModel(mc config.ModelConfig) (domsvc.SentimentModel, error) {
	switch strings.ToLower(mc.Kind) {
	case config.ModelLexicon:
		return sentiment.NewLexiconScorer(), nil
	case config.ModelLinear:
		lm, err := sentiment.LoadLinearModel(mc.Path)
		if err != nil {
			return nil, err
		}
		return sentiment.NewLinearScorer(lm), nil
	case config.ModelHTTP:
		base := sentiment.NewHTTPServiceBase(mc.URL, mc.Timeout)
		return sentiment.NewHTTPModelScorer(mc.Name, base, mc.Attempts), nil
	default:
		return nil, fmt.Errorf("unknown kind %q", mc.Kind)
	}
}

// ProvideSignalGenerator creates the signal generator from the configured policy.
func ProvideSignalGenerator(cfg *config.Config) (*signal.Generator, error) {
	g, err := signal.NewGenerator(cfg.Signal, time.Now)
	if err != nil {
		return nil, fmt.Errorf("signal generator: %w", err)
	}
	return g, nil
}

// ProvideRateLimiter creates the per-caller request budget.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.RateLimit)
}

// ProvideLiveQuotes creates the Finnhub trade stream collector. Nil when the stream is off.
func ProvideLiveQuotes(cfg *config.Config, rec *metrics.Recorder, l *applogger.Logger) *usecase.LiveQuotes {
	if !cfg.Finnhub.Stream.Enabled {
		return nil
	}
	sl := l.With(applogger.String("component", "finnhub_stream"))
	stream := finnhub.NewStream(finnhub.StreamConfig{
		APIKey:         cfg.Finnhub.APIKey,
		WebsocketURL:   cfg.Finnhub.WebSocketURL,
		Symbols:        cfg.Finnhub.Stream.Symbols,
		ReconnectDelay: cfg.Finnhub.Stream.ReconnectDelay,
		PingInterval:   cfg.Finnhub.Stream.PingInterval,
	}, sl)
	return usecase.NewLiveQuotes(stream, rec, sl, cfg.Finnhub.Stream.MaxPriceAge)
}

// ProvidePipeline creates the orchestrator.
func ProvidePipeline(
	cfg *config.Config,
	quotes repository.QuoteProvider,
	news repository.NewsProvider,
	engine domsvc.IndicatorEngine,
	ens *sentiment.Ensemble,
	gen *signal.Generator,
	cache *svccache.Manager,
	limiter *ratelimit.Limiter,
	pub repository.SignalPublisher,
	live *usecase.LiveQuotes,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.Pipeline {
	opts := []usecase.PipelineOption{
		usecase.WithBudget(limiter),
		usecase.WithPublisher(pub),
		usecase.WithPipelineMetrics(m),
		usecase.WithPipelineLogger(l.With(applogger.String("component", "pipeline"))),
	}
	if live != nil {
		opts = append(opts, usecase.WithLiveQuotes(live))
	}
	return usecase.NewPipeline(cfg.Pipeline, quotes, news, engine, ens, gen, cache, opts...)
}

// ProvideHTTPHandler registers the pipeline routes.
func ProvideHTTPHandler(l *applogger.Logger, p *usecase.Pipeline, mon *health.Monitor) xhttp.Handler {
	return api.NewPipelineEchoHandler(l, p, mon)
}

// ProvideHTTPServer creates the Echo server.
func ProvideHTTPServer(cfg *config.Config, h xhttp.Handler, l *applogger.Logger, reg *prometheus.Registry) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithSlowThreshold(cfg.Server.SlowThreshold),
		xhttp.WithCORS(cfg.Server.CORS),
	}
	if reg != nil {
		opts = append(opts, xhttp.WithRegistry(reg))
	}
	return xhttp.NewServer(h, l, opts...)
}

// ProvideApp assembles the application. Error logs are shipped to Kafka when the
// collector is enabled and a producer exists.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	srv *xhttp.Server,
	live *usecase.LiveQuotes,
	producer *pkgkafka.Producer,
) *server.App {
	if cfg.Logger.Collector.Enabled && producer != nil {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   cfg.Logger.Collector.FlushInterval,
			CountThreshold: cfg.Logger.Collector.CountThreshold,
			Topic:          cfg.Logger.Collector.Topic,
			Publisher:      producer,
		})
	}
	return server.New(cfg, l, srv, live)
}
