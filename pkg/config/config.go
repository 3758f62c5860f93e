package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"FinSignal/internal/service/health"
	"FinSignal/internal/service/ratelimit"
	"FinSignal/internal/services/indicators"
	"FinSignal/internal/services/sentiment"
	"FinSignal/internal/services/signal"
	"FinSignal/internal/usecase"
	"FinSignal/pkg/logger"
	"FinSignal/pkg/util"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Quote sources.
const (
	QuotesFinnhub    = "finnhub"
	QuotesClickHouse = "clickhouse"
)

// Sentiment model kinds.
const (
	ModelLexicon = "lexicon"
	ModelLinear  = "linear"
	ModelHTTP    = "http"
)

type Config struct {
	Environment string                 `yaml:"environment" default:"development"`
	Server      ServerConfig           `yaml:"server"`
	Metrics     MetricsConfig          `yaml:"metrics"`
	Logger      LoggerConfig           `yaml:"logger"`
	Cache       CacheConfig            `yaml:"cache"`
	Redis       RedisConfig            `yaml:"redis"`
	Quotes      QuotesConfig           `yaml:"quotes"`
	Finnhub     FinnhubConfig          `yaml:"finnhub"`
	ClickHouse  ClickHouseConfig       `yaml:"clickhouse"`
	Kafka       KafkaConfig            `yaml:"kafka"`
	Sentiment   SentimentConfig        `yaml:"sentiment"`
	Indicators  indicators.Config      `yaml:"indicators"`
	Signal      signal.Policy          `yaml:"signal"`
	Pipeline    usecase.PipelineConfig `yaml:"pipeline"`
	RateLimit   ratelimit.Config       `yaml:"ratelimit"`
	Health      health.Config          `yaml:"health"`
}

type ServerConfig struct {
	Host            string        `yaml:"host" default:"0.0.0.0"`
	Port            int           `yaml:"port" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	SlowThreshold   time.Duration `yaml:"slow_threshold" default:"2s"`
	CORS            bool          `yaml:"cors" default:"true"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled" default:"true"`
}

type LoggerConfig struct {
	logger.Config `yaml:",inline"`
	Collector     struct {
		Enabled        bool          `yaml:"enabled"`
		Topic          string        `yaml:"topic" default:"finsignal.logs"`
		FlushInterval  time.Duration `yaml:"flush_interval" default:"30s"`
		CountThreshold int           `yaml:"count_threshold" default:"100"`
	} `yaml:"collector"`
}

// CacheConfig holds category TTLs. A negative sentiment_negative_ttl disables
// caching of "no sentiment" outcomes.
type CacheConfig struct {
	Memory struct {
		MaxEntries int `yaml:"max_entries" default:"10000"`
		Shards     int `yaml:"shards" default:"16"`
	} `yaml:"memory"`
	QuotesTTL            time.Duration `yaml:"quotes_ttl" default:"30s"`
	NewsTTL              time.Duration `yaml:"news_ttl" default:"15m"`
	SentimentTTL         time.Duration `yaml:"sentiment_ttl" default:"5m"`
	SentimentNegativeTTL time.Duration `yaml:"sentiment_negative_ttl" default:"20s"`
	SignalsTTL           time.Duration `yaml:"signals_ttl" default:"60s"`
	StaleFactor          int           `yaml:"stale_factor" default:"10"`
	ComputeTimeout       time.Duration `yaml:"compute_timeout" default:"30s"`
}

type RedisConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Addr      string        `yaml:"addr" default:"localhost:6379"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	PoolSize  int           `yaml:"pool_size" default:"20"`
	OpTimeout time.Duration `yaml:"op_timeout" default:"150ms"`
	Prefix    string        `yaml:"prefix" default:"finsignal"`
}

type QuotesConfig struct {
	Source      string `yaml:"source" default:"finnhub"`
	HistoryDays int    `yaml:"history_days" default:"60"`
}

type FinnhubConfig struct {
	APIKey       string        `yaml:"api_key"`
	RESTURL      string        `yaml:"rest_url" default:"https://finnhub.io/api/v1"`
	WebSocketURL string        `yaml:"websocket_url" default:"wss://ws.finnhub.io"`
	Timeout      time.Duration `yaml:"timeout" default:"5s"`
	Stream       struct {
		Enabled        bool          `yaml:"enabled"`
		Symbols        []string      `yaml:"symbols"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"5s"`
		PingInterval   time.Duration `yaml:"ping_interval" default:"30s"`
		MaxPriceAge    time.Duration `yaml:"max_price_age" default:"1m"`
	} `yaml:"stream"`
}

type ClickHouseConfig struct {
	Host             string        `yaml:"host" default:"localhost"`
	Port             int           `yaml:"port" default:"9000"`
	Database         string        `yaml:"database" default:"finsignal"`
	User             string        `yaml:"user" default:"default"`
	Password         string        `yaml:"password"`
	Table            string        `yaml:"table" default:"finsignal.daily_bars"`
	UseHTTP          bool          `yaml:"use_http"`
	InitSchema       bool          `yaml:"init_schema"`
	DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"10s"`
}

type KafkaConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Brokers      []string      `yaml:"brokers"`
	SignalsTopic string        `yaml:"signals_topic" default:"finsignal.signals"`
	RequiredAcks int           `yaml:"required_acks" default:"-1"`
	Compression  string        `yaml:"compression" default:"snappy"`
	MaxAttempts  int           `yaml:"max_attempts" default:"3"`
	BatchSize    int           `yaml:"batch_size" default:"100"`
	BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
	BatchTimeout time.Duration `yaml:"batch_timeout" default:"200ms"`
	WriteTimeout time.Duration `yaml:"write_timeout" default:"5s"`
	Async        bool          `yaml:"async"`
}

type SentimentConfig struct {
	sentiment.EnsembleConfig `yaml:",inline"`
	Models                   []ModelConfig `yaml:"models"`
}

// ModelConfig registers one ensemble member. Path is the linear model file
// (empty selects the built-in model); URL the remote scoring service.
type ModelConfig struct {
	Name     string        `yaml:"name"`
	Kind     string        `yaml:"kind"`
	Weight   float64       `yaml:"weight"`
	Path     string        `yaml:"path"`
	URL      string        `yaml:"url"`
	Timeout  time.Duration `yaml:"timeout" default:"2s"`
	Attempts int           `yaml:"attempts" default:"2"`
}

// Load reads and parses a YAML configuration file, then applies defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML, applies defaults and validates.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.finish(); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadWithEnv loads an optional .env file, the YAML config, then overrides
// with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyEnv(os.Getenv)
	if err := c.finish(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("FINNHUB_API_KEY"); v != "" {
		c.Finnhub.APIKey = v
	}
	if v := getenv("SYMBOLS"); v != "" {
		c.Finnhub.Stream.Symbols = util.SplitCSV(v)
	}
	if v := getenv("QUOTES_SOURCE"); v != "" {
		c.Quotes.Source = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := getenv("REDIS_DB"); v != "" {
		c.Redis.DB = util.ParseIntDefault(v, c.Redis.DB)
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = util.SplitCSV(v)
		c.Kafka.Enabled = true
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Logger.Level = v
	}
}

func (c *Config) finish() error {
	if len(c.Sentiment.Models) == 0 {
		c.Sentiment.Models = DefaultModels()
	}
	if err := defaults.Set(c); err != nil {
		return fmt.Errorf("config defaults: %w", err)
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	return nil
}

// DefaultModels is the registry used when none is configured.
func DefaultModels() []ModelConfig {
	return []ModelConfig{
		{Name: "lexicon", Kind: ModelLexicon, Weight: 0.5},
		{Name: "linear", Kind: ModelLinear, Weight: 0.5},
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.Quotes.Source {
	case QuotesFinnhub:
		if c.Finnhub.APIKey == "" {
			return fmt.Errorf("finnhub.api_key is required when quotes.source is %q", QuotesFinnhub)
		}
	case QuotesClickHouse:
		if c.ClickHouse.Host == "" {
			return fmt.Errorf("clickhouse.host is required when quotes.source is %q", QuotesClickHouse)
		}
	default:
		return fmt.Errorf("quotes.source must be '%s' or '%s', got '%s'", QuotesFinnhub, QuotesClickHouse, c.Quotes.Source)
	}
	if c.Finnhub.Stream.Enabled && len(c.Finnhub.Stream.Symbols) == 0 {
		return fmt.Errorf("finnhub.stream.symbols cannot be empty when the stream is enabled")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Cache.StaleFactor < 1 {
		return fmt.Errorf("cache.stale_factor must be >= 1")
	}
	if err := c.Signal.Validate(); err != nil {
		return fmt.Errorf("signal: %w", err)
	}

	seen := make(map[string]bool, len(c.Sentiment.Models))
	for i, m := range c.Sentiment.Models {
		if m.Name == "" {
			return fmt.Errorf("sentiment.models[%d].name is required", i)
		}
		if seen[m.Name] {
			return fmt.Errorf("sentiment.models: duplicate name %q", m.Name)
		}
		seen[m.Name] = true
		switch strings.ToLower(m.Kind) {
		case ModelLexicon, ModelLinear:
		case ModelHTTP:
			if m.URL == "" {
				return fmt.Errorf("sentiment.models[%s].url is required for kind http", m.Name)
			}
		default:
			return fmt.Errorf("sentiment.models[%s].kind %q is not one of lexicon, linear, http", m.Name, m.Kind)
		}
	}
	return nil
}
