package sentiment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"FinSignal/internal/domain/models"
)

func TestHTTPModelScorerBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sentiment/score" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req scoreRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		scores := make([]map[string]interface{}, 0, len(req.Texts))
		for i := range req.Texts {
			label := "positive"
			if i%2 == 1 {
				label = "negative"
			}
			scores = append(scores, map[string]interface{}{"label": label, "score": 0.9})
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"scores": scores})
	}))
	defer srv.Close()

	s := NewHTTPModelScorer("finbert", NewHTTPServiceBase(srv.URL, time.Second), 1)
	out, err := s.ScoreBatch(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("ScoreBatch: %v", err)
	}
	if len(out) != 2 || out[0].Label != models.Bullish || out[1].Label != models.Bearish {
		t.Fatalf("unexpected scores %+v", out)
	}
}

func TestHTTPModelScorerRetriesTransient(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"scores":[{"label":"neutral","score":0.4}]}`))
	}))
	defer srv.Close()

	s := NewHTTPModelScorer("finbert", NewHTTPServiceBase(srv.URL, time.Second), 2)
	got, err := s.Score(context.Background(), "text")
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if got.Label != models.Neutral || atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected retry then neutral, got %+v after %d calls", got, calls)
	}
}

func TestHTTPModelScorerNoRetryOnClientError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	s := NewHTTPModelScorer("finbert", NewHTTPServiceBase(srv.URL, time.Second), 3)
	if _, err := s.Score(context.Background(), "text"); err == nil {
		t.Fatalf("expected error")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
}

func TestHTTPModelScorerCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"scores":[]}`))
	}))
	defer srv.Close()

	s := NewHTTPModelScorer("finbert", NewHTTPServiceBase(srv.URL, time.Second), 1)
	if _, err := s.ScoreBatch(context.Background(), []string{"a"}); err == nil {
		t.Fatalf("expected mismatch error")
	}
}
