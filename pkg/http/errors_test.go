package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"FinSignal/internal/domain/errs"

	"github.com/labstack/echo/v4"
)

func TestFromDomainErrorStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("bad: %w", errs.ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("slow down: %w", errs.ErrRateLimited), http.StatusTooManyRequests},
		{fmt.Errorf("quotes: %w", errs.ErrProviderUnavailable), http.StatusServiceUnavailable},
		{fmt.Errorf("x: %w", errs.ErrNoSentimentAvailable), http.StatusUnprocessableEntity},
		{errors.Join(errs.ErrNoSentimentAvailable, errs.ErrInsufficientHistory), http.StatusUnprocessableEntity},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := FromDomainError(tc.err).Status; got != tc.want {
			t.Fatalf("%v: status %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestAppErrorResponseWritesStatus(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	if err := AppErrorResponse(c, fmt.Errorf("caller c1: %w", errs.ErrRateLimited)); err != nil {
		t.Fatalf("AppErrorResponse: %v", err)
	}
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("code = %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatalf("Retry-After missing")
	}
	var body struct {
		Status int         `json:"status"`
		Data   []*AppError `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != http.StatusTooManyRequests || len(body.Data) != 1 || body.Data[0].Code != "ERR_RATE_LIMITED" {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}
