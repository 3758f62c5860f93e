package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

type quoteRequest struct {
	Symbol       string `query:"symbol" validate:"required,symbol"`
	LookbackDays *int   `query:"lookback_days" default:"7" validate:"required,gte=1,lte=30"`
}

func bind(t *testing.T, target string) (*quoteRequest, []ValidationError) {
	t.Helper()
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, target, nil), httptest.NewRecorder())
	req := &quoteRequest{}
	if verr := ReadAndValidateRequest(c, req); verr != nil {
		return req, verr.([]ValidationError)
	}
	return req, nil
}

func TestReadAndValidateRequestDefaults(t *testing.T) {
	req, verr := bind(t, "/?symbol=brk.b")
	if verr != nil {
		t.Fatalf("unexpected errors: %+v", verr)
	}
	if *req.LookbackDays != 7 {
		t.Fatalf("expected default lookback 7, got %d", *req.LookbackDays)
	}
}

func TestReadAndValidateRequestRejects(t *testing.T) {
	cases := []struct {
		target string
		code   string
		field  string
	}{
		{"/?symbol=THIS-IS-TOO-LONG", "ERR_SYMBOL", "symbol"},
		{"/?symbol=AA%24L", "ERR_SYMBOL", "symbol"},
		{"/", "ERR_REQUIRED", "symbol"},
		{"/?symbol=AAPL&lookback_days=0", "ERR_GTE", "lookback_days"},
		{"/?symbol=AAPL&lookback_days=31", "ERR_LTE", "lookback_days"},
		{"/?symbol=AAPL&lookback_days=abc", "ERR_BIND", ""},
	}
	for _, tc := range cases {
		_, verr := bind(t, tc.target)
		if len(verr) != 1 {
			t.Fatalf("%s: expected one error, got %+v", tc.target, verr)
		}
		if verr[0].Code != tc.code || verr[0].Field != tc.field {
			t.Fatalf("%s: got %+v, want code %s field %q", tc.target, verr[0], tc.code, tc.field)
		}
	}
}
