package finnhub

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"FinSignal/internal/domain/errs"
	"FinSignal/internal/domain/models"
	drepo "FinSignal/internal/domain/repository"
	xhttp "FinSignal/pkg/http"
)

// RESTConfig configures the Finnhub REST providers.
type RESTConfig struct {
	BaseURL     string
	APIKey      string
	Timeout     time.Duration
	HistoryDays int // minimum calendar days of bars fetched, whatever the lookback
}

// REST implements QuoteProvider (daily candles) and NewsProvider (company news).
type REST struct {
	cfg    RESTConfig
	client *xhttp.Client
	now    func() time.Time
}

// NewREST creates the REST adapter.
func NewREST(cfg RESTConfig) *REST {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://finnhub.io/api/v1"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.HistoryDays <= 0 {
		cfg.HistoryDays = 60
	}
	return &REST{cfg: cfg, client: xhttp.NewClient(xhttp.WithTimeout(cfg.Timeout)), now: time.Now}
}

type candleResponse struct {
	Status string    `json:"s"`
	Open   []float64 `json:"o"`
	High   []float64 `json:"h"`
	Low    []float64 `json:"l"`
	Close  []float64 `json:"c"`
	Volume []float64 `json:"v"`
	Time   []int64   `json:"t"`
}

type newsItem struct {
	ID       int64  `json:"id"`
	Datetime int64  `json:"datetime"`
	Headline string `json:"headline"`
	Summary  string `json:"summary"`
	Source   string `json:"source"`
	Related  string `json:"related"`
	URL      string `json:"url"`
}

// GetBars fetches daily candles covering max(lookbackDays, HistoryDays) calendar days.
func (r *REST) GetBars(ctx context.Context, symbol string, lookbackDays int) ([]models.PriceBar, error) {
	days := lookbackDays
	if days < r.cfg.HistoryDays {
		days = r.cfg.HistoryDays
	}
	to := r.now().UTC()
	from := to.AddDate(0, 0, -days)

	var resp candleResponse
	err := r.get(ctx, "/stock/candle", map[string][]string{
		"symbol":     {symbol},
		"resolution": {"D"},
		"from":       {strconv.FormatInt(from.Unix(), 10)},
		"to":         {strconv.FormatInt(to.Unix(), 10)},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("finnhub candles %s: %w", symbol, err)
	}
	if resp.Status == "no_data" {
		return nil, nil
	}
	if resp.Status != "ok" {
		return nil, fmt.Errorf("finnhub candles %s: status %q: %w", symbol, resp.Status, errs.ErrProviderUnavailable)
	}
	n := len(resp.Time)
	if len(resp.Close) != n || len(resp.Open) != n || len(resp.High) != n || len(resp.Low) != n || len(resp.Volume) != n {
		return nil, fmt.Errorf("finnhub candles %s: ragged arrays: %w", symbol, errs.ErrProviderUnavailable)
	}

	bars := make([]models.PriceBar, 0, n)
	for i := 0; i < n; i++ {
		if resp.Close[i] <= 0 {
			continue
		}
		bars = append(bars, models.PriceBar{
			Timestamp: time.Unix(resp.Time[i], 0).UTC(),
			Open:      resp.Open[i],
			High:      resp.High[i],
			Low:       resp.Low[i],
			Close:     resp.Close[i],
			Volume:    resp.Volume[i],
		})
	}
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })
	return bars, nil
}

// GetArticles fetches company news published in the lookback window, deduplicated by id.
func (r *REST) GetArticles(ctx context.Context, symbol string, lookbackDays int) ([]models.NewsArticle, error) {
	to := r.now().UTC()
	from := to.AddDate(0, 0, -lookbackDays)

	var items []newsItem
	err := r.get(ctx, "/company-news", map[string][]string{
		"symbol": {symbol},
		"from":   {from.Format(time.DateOnly)},
		"to":     {to.Format(time.DateOnly)},
	}, &items)
	if err != nil {
		return nil, fmt.Errorf("finnhub news %s: %w", symbol, err)
	}

	out := make([]models.NewsArticle, 0, len(items))
	for _, it := range items {
		if it.Headline == "" && it.Summary == "" {
			continue
		}
		symbols := []string{symbol}
		if it.Related != "" {
			symbols = strings.Split(it.Related, ",")
		}
		out = append(out, models.NewsArticle{
			ID:          strconv.FormatInt(it.ID, 10),
			Symbols:     symbols,
			PublishedAt: time.Unix(it.Datetime, 0).UTC(),
			Headline:    it.Headline,
			Body:        it.Summary,
			Source:      it.Source,
			URL:         it.URL,
		})
	}
	return models.DedupeArticles(out), nil
}

func (r *REST) get(ctx context.Context, path string, query map[string][]string, dest interface{}) error {
	query["token"] = []string{r.cfg.APIKey}
	err := r.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         r.cfg.BaseURL + path,
		QueryParams: query,
	}, dest)
	return classify(err)
}

// classify maps transport outcomes onto the provider error kinds.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var se *xhttp.StatusError
	if errors.As(err, &se) && se.Code == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %v", errs.ErrRateLimited, err)
	}
	return fmt.Errorf("%w: %v", errs.ErrProviderUnavailable, err)
}

var (
	_ drepo.QuoteProvider = (*REST)(nil)
	_ drepo.NewsProvider  = (*REST)(nil)
)
