package sentiment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"FinSignal/internal/domain/models"
	domsvc "FinSignal/internal/domain/service"
	xhttp "FinSignal/pkg/http"
)

const scorePath = "/sentiment/score"

// HTTPServiceBase centralizes client construction and JSON POST handling for remote models.
type HTTPServiceBase struct {
	baseURL string
	client  *xhttp.Client
}

// NewHTTPServiceBase builds an HTTP client with timeout and base URL.
func NewHTTPServiceBase(baseURL string, timeout time.Duration) *HTTPServiceBase {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HTTPServiceBase{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout)),
	}
}

// PostJSON posts the given payload to `path` under baseURL and decodes JSON into dest.
func (b *HTTPServiceBase) PostJSON(ctx context.Context, path string, payload interface{}, dest interface{}) error {
	if b.client == nil || b.baseURL == "" {
		return fmt.Errorf("sentiment http client not initialized")
	}
	err := b.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    b.baseURL + path,
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
		Body: payload,
	}, dest)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	return nil
}

// PostJSONWithRetry posts JSON with up to `attempts` tries. Only transient failures
// (transport errors, 429, 5xx) are retried.
func (b *HTTPServiceBase) PostJSONWithRetry(ctx context.Context, path string, payload interface{}, dest interface{}, attempts int) error {
	if attempts <= 1 {
		return b.PostJSON(ctx, path, payload, dest)
	}
	var err error
	for i := 1; i <= attempts; i++ {
		err = b.PostJSON(ctx, path, payload, dest)
		if err == nil || !transient(err) || i == attempts {
			return err
		}
		select {
		case <-time.After(time.Duration(i) * 50 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func transient(err error) bool {
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

type scoreRequest struct {
	Texts []string `json:"texts"`
}

type scoreResponse struct {
	Scores []struct {
		Label string  `json:"label"`
		Score float64 `json:"score"`
	} `json:"scores"`
}

// HTTPModelScorer calls a remotely served learned model (e.g. a FinBERT service).
type HTTPModelScorer struct {
	*HTTPServiceBase
	name     string
	attempts int
}

// NewHTTPModelScorer creates a remote scorer named name.
func NewHTTPModelScorer(name string, base *HTTPServiceBase, attempts int) *HTTPModelScorer {
	if attempts <= 0 {
		attempts = 2
	}
	return &HTTPModelScorer{HTTPServiceBase: base, name: name, attempts: attempts}
}

func (s *HTTPModelScorer) Name() string { return s.name }

// Score scores a single text.
func (s *HTTPModelScorer) Score(ctx context.Context, text string) (domsvc.SentimentScore, error) {
	out, err := s.ScoreBatch(ctx, []string{text})
	if err != nil {
		return domsvc.SentimentScore{}, err
	}
	return out[0], nil
}

// ScoreBatch scores all texts in one request.
func (s *HTTPModelScorer) ScoreBatch(ctx context.Context, texts []string) ([]domsvc.SentimentScore, error) {
	var resp scoreResponse
	if err := s.PostJSONWithRetry(ctx, scorePath, scoreRequest{Texts: texts}, &resp, s.attempts); err != nil {
		return nil, fmt.Errorf("%s: %w", s.name, err)
	}
	if len(resp.Scores) != len(texts) {
		return nil, fmt.Errorf("%s: got %d scores for %d texts", s.name, len(resp.Scores), len(texts))
	}
	out := make([]domsvc.SentimentScore, len(texts))
	for i, sc := range resp.Scores {
		out[i] = domsvc.SentimentScore{Label: parseLabel(sc.Label), Magnitude: clamp(sc.Score, 0, 1)}
	}
	return out, nil
}

func parseLabel(s string) models.SentimentLabel {
	switch strings.ToLower(s) {
	case "positive", "bullish":
		return models.Bullish
	case "negative", "bearish":
		return models.Bearish
	default:
		return models.Neutral
	}
}

var _ domsvc.BatchSentimentModel = (*HTTPModelScorer)(nil)
