package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"

	"AgriPulse/internal/domain/errs"
	"AgriPulse/internal/domain/models"
	domrepo "AgriPulse/internal/domain/repository"
	domsvc "AgriPulse/internal/domain/service"
	"AgriPulse/internal/service/metrics"
	"AgriPulse/internal/service/ratelimit"
	xhttp "AgriPulse/pkg/http"
	xlogger "AgriPulse/pkg/logger"
)

const (
	healthTimeout = 2 * time.Second

	pruneEvery = 4096
	pruneIdle  = 10 * time.Minute
)

// Analyzer is the market analysis use case seen by the API.
type Analyzer interface {
	Analyze(ctx context.Context, req models.MarketAnalysisRequest) (*models.MarketComparison, error)
}

// HealthChecker is a dependency pinged by the root health route.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// MarketEchoHandler serves the market analysis, crop list and fertilizer routes.
type MarketEchoHandler struct {
	logger     *xlogger.Logger
	analyzer   Analyzer
	store      domrepo.ReferenceStore
	classifier domsvc.FertilizerClassifier
	maxCrops   int
	limiter    *ratelimit.Limiter
	requests   atomic.Uint64
	checks     map[string]HealthChecker
}

type HandlerOption func(*MarketEchoHandler)

// WithMaxCrops caps the crops accepted per analysis request.
func WithMaxCrops(n int) HandlerOption {
	return func(h *MarketEchoHandler) {
		if n > 0 {
			h.maxCrops = n
		}
	}
}

// WithRateLimit limits each client IP to rps requests per second with the given burst.
func WithRateLimit(rps float64, burst int) HandlerOption {
	return func(h *MarketEchoHandler) {
		if rps > 0 {
			h.limiter = ratelimit.New(burst, rps)
		}
	}
}

// WithHealthCheck adds a named dependency to GET /.
func WithHealthCheck(name string, hc HealthChecker) HandlerOption {
	return func(h *MarketEchoHandler) {
		if hc != nil {
			h.checks[name] = hc
		}
	}
}

func NewMarketEchoHandler(
	logger *xlogger.Logger,
	analyzer Analyzer,
	store domrepo.ReferenceStore,
	classifier domsvc.FertilizerClassifier,
	opts ...HandlerOption,
) *MarketEchoHandler {
	metrics.Register()
	if logger == nil {
		logger = xlogger.NewNop()
	}
	h := &MarketEchoHandler{
		logger:     logger,
		analyzer:   analyzer,
		store:      store,
		classifier: classifier,
		maxCrops:   4,
		checks:     make(map[string]HealthChecker),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

var _ xhttp.Handler = (*MarketEchoHandler)(nil)

func (h *MarketEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/", h.Health)

	g := e.Group("/api", h.rateLimit)
	g.GET("/crops", h.instrument("crops", h.Crops))
	g.POST("/market-analysis", h.instrument("market_analysis", h.MarketAnalysis))
	g.POST("/fertilizer", h.instrument("fertilizer", h.Fertilizer))
}

// Health reports the service and, when configured, its storage dependencies.
func (h *MarketEchoHandler) Health(c echo.Context) error {
	body := map[string]interface{}{"status": "Backend running"}
	if len(h.checks) == 0 {
		return c.JSON(http.StatusOK, body)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
	defer cancel()
	deps := make(map[string]string, len(h.checks))
	code := http.StatusOK
	for name, hc := range h.checks {
		if err := hc.Health(ctx); err != nil {
			h.logger.Warn("health check failed", xlogger.String("dependency", name), xlogger.Error(err))
			deps[name] = "down"
			code = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "up"
	}
	body["dependencies"] = deps
	return c.JSON(code, body)
}

func (h *MarketEchoHandler) Crops(c echo.Context) error {
	crops, err := h.store.ListCrops(c.Request().Context())
	if err != nil {
		h.logger.Error("list crops error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, crops)
}

func (h *MarketEchoHandler) MarketAnalysis(c echo.Context) error {
	req := &models.MarketAnalysisRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if len(req.Crops) > h.maxCrops {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("at most %d crops per request", h.maxCrops).
			WithField("crops").
			WithParam("max", h.maxCrops))
	}

	res, err := h.analyzer.Analyze(c.Request().Context(), *req)
	if err != nil {
		h.logger.Error("market analysis usecase error",
			xlogger.Strings("crops", req.Crops),
			xlogger.String("market", req.Market),
			xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *MarketEchoHandler) Fertilizer(c echo.Context) error {
	req := &models.FertilizerRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	name, err := h.classifier.Classify(c.Request().Context(), req.Features())
	if err != nil {
		h.logger.Error("fertilizer usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, models.FertilizerRecommendation{Fertilizer: name})
}

func (h *MarketEchoHandler) rateLimit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if h.limiter == nil {
			return next(c)
		}
		if h.requests.Add(1)%pruneEvery == 0 {
			h.limiter.Prune(pruneIdle)
		}
		if h.limiter.Allow(c.RealIP()) {
			return next(c)
		}
		metrics.RateLimited.WithLabelValues(c.Path()).Inc()
		h.logger.Warn("rate limited", xlogger.String("remote", c.RealIP()))
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("rate limited"))
	}
}

func (h *MarketEchoHandler) instrument(endpoint string, fn echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		defer func() {
			metrics.EndpointLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		}()
		err := fn(c)
		if status := c.Response().Status; status >= http.StatusBadRequest {
			metrics.EndpointErrors.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
		}
		return err
	}
}

// toAppError maps domain sentinels onto the HTTP error taxonomy.
func toAppError(err error) error {
	var appErr *xhttp.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, errs.ErrNotFound):
		return xhttp.NotFoundError("reference data not found").WithError(err)
	case errors.Is(err, errs.ErrInsufficientData), errors.Is(err, errs.ErrDivideByZero):
		return xhttp.UnprocessableError("ERR_INSUFFICIENT_DATA", "not enough data to analyse").WithError(err)
	case errors.Is(err, errs.ErrUnknownCategory):
		return xhttp.UnprocessableError("ERR_UNKNOWN_CATEGORY", "unknown soil or crop type").WithError(err)
	case errors.Is(err, errs.ErrInvalidArgument):
		return xhttp.BadRequestError("invalid request").WithError(err)
	case errors.Is(err, context.DeadlineExceeded):
		return xhttp.NewAppError("ERR_TIMEOUT", "", "analysis timed out", http.StatusGatewayTimeout).WithError(err)
	default:
		return xhttp.InternalError("internal error").WithError(err)
	}
}
