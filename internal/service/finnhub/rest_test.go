package finnhub

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"FinSignal/internal/domain/errs"
)

func newTestREST(t *testing.T, h http.HandlerFunc) *REST {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	r := NewREST(RESTConfig{BaseURL: srv.URL, APIKey: "k", Timeout: time.Second, HistoryDays: 60})
	r.now = func() time.Time { return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC) }
	return r
}

func TestGetBarsSortsAndWidensWindow(t *testing.T) {
	var gotFrom, gotTo, gotToken string
	r := newTestREST(t, func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/stock/candle" {
			t.Fatalf("unexpected path %s", req.URL.Path)
		}
		q := req.URL.Query()
		gotFrom, gotTo, gotToken = q.Get("from"), q.Get("to"), q.Get("token")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"s":"ok","t":[200,100],"o":[2,1],"h":[2,1],"l":[2,1],"c":[2,1],"v":[20,10]}`))
	})

	bars, err := r.GetBars(context.Background(), "AAPL", 7)
	if err != nil {
		t.Fatalf("GetBars: %v", err)
	}
	if len(bars) != 2 || bars[0].Close != 1 || bars[1].Close != 2 {
		t.Fatalf("bars not ascending: %+v", bars)
	}
	if gotToken != "k" {
		t.Fatalf("token = %q", gotToken)
	}
	// 60 days before 2024-03-01.
	if gotFrom != "1704067200" || gotTo != "1709251200" {
		t.Fatalf("window = %s..%s", gotFrom, gotTo)
	}
}

func TestGetBarsNoData(t *testing.T) {
	r := newTestREST(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"s":"no_data"}`))
	})
	bars, err := r.GetBars(context.Background(), "ZZZZ", 7)
	if err != nil || len(bars) != 0 {
		t.Fatalf("want empty, got %v %v", bars, err)
	}
}

func TestGetBarsErrorKinds(t *testing.T) {
	cases := []struct {
		name   string
		status int
		want   error
	}{
		{"throttled", http.StatusTooManyRequests, errs.ErrRateLimited},
		{"server", http.StatusBadGateway, errs.ErrProviderUnavailable},
		{"forbidden", http.StatusForbidden, errs.ErrProviderUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestREST(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
			})
			_, err := r.GetBars(context.Background(), "AAPL", 7)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestGetArticlesDedupes(t *testing.T) {
	r := newTestREST(t, func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/company-news" {
			t.Fatalf("unexpected path %s", req.URL.Path)
		}
		if req.URL.Query().Get("from") != "2024-02-23" || req.URL.Query().Get("to") != "2024-03-01" {
			t.Fatalf("dates = %v", req.URL.Query())
		}
		_, _ = w.Write([]byte(`[
			{"id":1,"datetime":1709200000,"headline":"Acme beats","summary":"strong quarter","source":"wire","related":"ACME,XYZ"},
			{"id":1,"datetime":1709200000,"headline":"Acme beats","summary":"strong quarter","source":"wire","related":"ACME"},
			{"id":2,"datetime":1709100000,"headline":"","summary":"","source":"wire"},
			{"id":3,"datetime":1709000000,"headline":"Acme guidance","summary":"","source":"wire"}
		]`))
	})
	arts, err := r.GetArticles(context.Background(), "ACME", 7)
	if err != nil {
		t.Fatalf("GetArticles: %v", err)
	}
	if len(arts) != 2 {
		t.Fatalf("want 2 articles, got %d", len(arts))
	}
	if arts[0].ID != "1" || len(arts[0].Symbols) != 2 || arts[0].Body != "strong quarter" {
		t.Fatalf("bad first article: %+v", arts[0])
	}
	if arts[1].Symbols[0] != "ACME" {
		t.Fatalf("symbol fallback missing: %+v", arts[1])
	}
}
