package api

import (
	"context"
	"net/http"
	"strings"

	"FinSignal/internal/domain/models"
	"FinSignal/internal/usecase"
	xhttp "FinSignal/pkg/http"
	"FinSignal/pkg/http/middleware"
	xlogger "FinSignal/pkg/logger"

	"github.com/labstack/echo/v4"
)

// CallerHeader carries the authenticated caller identity set by the gateway.
const CallerHeader = "X-Caller-ID"

// Analyzer is the orchestrator surface served over HTTP.
type Analyzer interface {
	GetSentiment(ctx context.Context, q usecase.Query, includeNews bool) (*models.SentimentResponse, error)
	GetSignals(ctx context.Context, q usecase.Query, f usecase.SignalFilter) (*models.SignalsResponse, error)
}

// HealthReporter exposes the health monitor snapshot.
type HealthReporter interface {
	Snapshot() models.HealthReport
}

// PipelineEchoHandler serves sentiment, signals and health.
type PipelineEchoHandler struct {
	logger   *xlogger.Logger
	analyzer Analyzer
	health   HealthReporter
}

func NewPipelineEchoHandler(logger *xlogger.Logger, analyzer Analyzer, health HealthReporter) *PipelineEchoHandler {
	return &PipelineEchoHandler{logger: logger, analyzer: analyzer, health: health}
}

func (h *PipelineEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1")
	g.GET("/sentiment", h.Sentiment)
	g.GET("/signals", h.Signals)
	e.GET("/health", h.Health)
}

func (h *PipelineEchoHandler) Sentiment(c echo.Context) error {
	req := &models.SentimentRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.analyzer.GetSentiment(c.Request().Context(), h.query(c, req.Symbol, *req.LookbackDays), req.IncludeNews)
	if err != nil {
		return h.fail(c, "sentiment", err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, res)
}

func (h *PipelineEchoHandler) Signals(c echo.Context) error {
	req := &models.SignalsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	filter := usecase.SignalFilter{
		Action:              models.Action(req.Action),
		ConfidenceThreshold: *req.ConfidenceThreshold,
	}
	res, err := h.analyzer.GetSignals(c.Request().Context(), h.query(c, req.Symbol, *req.LookbackDays), filter)
	if err != nil {
		return h.fail(c, "signals", err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, res)
}

// Health reports 503 only when some component is down.
func (h *PipelineEchoHandler) Health(c echo.Context) error {
	report := h.health.Snapshot()
	status := http.StatusOK
	if report.Status == models.StatusDown {
		status = http.StatusServiceUnavailable
	}
	return xhttp.DataResponse(c, status, report)
}

func (h *PipelineEchoHandler) query(c echo.Context, symbol string, lookback int) usecase.Query {
	caller := strings.TrimSpace(c.Request().Header.Get(CallerHeader))
	if caller == "" {
		caller = c.RealIP()
	}
	return usecase.Query{
		Caller:       caller,
		RequestID:    middleware.GetRequestID(c),
		Symbol:       symbol,
		LookbackDays: lookback,
	}
}

func (h *PipelineEchoHandler) fail(c echo.Context, op string, err error) error {
	appErr := xhttp.FromDomainError(err)
	if appErr.Status >= http.StatusInternalServerError {
		h.logger.Error(op+" usecase error",
			xlogger.String("request_id", middleware.GetRequestID(c)),
			xlogger.Error(err),
		)
	}
	return xhttp.AppErrorResponse(c, appErr)
}
