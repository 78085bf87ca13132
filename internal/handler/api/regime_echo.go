package api

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"RegimeLab/internal/domain/models"
	"RegimeLab/internal/service/ratelimit"
	"RegimeLab/internal/usecase"
	xhttp "RegimeLab/pkg/http"
	xlogger "RegimeLab/pkg/logger"
	"RegimeLab/pkg/queue"
	"RegimeLab/pkg/util"
)

// RegimeService is the use case surface the HTTP layer needs.
type RegimeService interface {
	Run(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisReport, error)
	Latest(ctx context.Context, symbol string) (*models.AnalysisReport, error)
	Rebacktest(ctx context.Context, symbol string, policy models.AllocationPolicy) (*models.BacktestResult, error)
	ComparePolicies(ctx context.Context, symbol string, policies map[string]models.AllocationPolicy) (map[string]*models.BacktestResult, error)
}

// RegimeEchoHandler serves the regime analysis API.
type RegimeEchoHandler struct {
	logger  *xlogger.Logger
	svc     RegimeService
	jobs    queue.Enqueuer
	limiter *ratelimit.Limiter
}

type HandlerOption func(*RegimeEchoHandler)

// WithJobQueue enables POST /api/regime/jobs.
func WithJobQueue(q queue.Enqueuer) HandlerOption {
	return func(h *RegimeEchoHandler) { h.jobs = q }
}

// WithAnalyzeLimiter throttles the endpoints that start a model fit, keyed by client IP.
func WithAnalyzeLimiter(l *ratelimit.Limiter) HandlerOption {
	return func(h *RegimeEchoHandler) { h.limiter = l }
}

func NewRegimeEchoHandler(logger *xlogger.Logger, svc RegimeService, opts ...HandlerOption) *RegimeEchoHandler {
	if logger == nil {
		logger = xlogger.NewNop()
	}
	h := &RegimeEchoHandler{logger: logger.Named("api"), svc: svc}
	for _, o := range opts {
		o(h)
	}
	return h
}

func (h *RegimeEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/regime")
	g.POST("/analyze", h.Analyze, h.throttle)
	g.GET("/latest", h.Latest)
	g.POST("/backtest", h.Backtest)
	g.POST("/backtest/compare", h.Compare)
	if h.jobs != nil {
		g.POST("/jobs", h.Enqueue, h.throttle)
	}
}

func (h *RegimeEchoHandler) throttle(next echo.HandlerFunc) echo.HandlerFunc {
	if h.limiter == nil {
		return next
	}
	return func(c echo.Context) error {
		key := c.RealIP()
		if !h.limiter.Allow(key) {
			wait := h.limiter.RetryAfter(key)
			c.Response().Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			h.logger.Warn("analyze rate limited", xlogger.String("remote", key))
			return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("too many analysis requests"))
		}
		return next(c)
	}
}

// Analyze runs a full analysis and returns its summary.
func (h *RegimeEchoHandler) Analyze(c echo.Context) error {
	req, verr, aerr := parseAnalyzeRequest(c)
	if verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if aerr != nil {
		return xhttp.AppErrorResponse(c, aerr)
	}
	report, err := h.svc.Run(c.Request().Context(), *req)
	if err != nil {
		h.logger.Error("analyze usecase error", xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.CreatedResponse(c, report.Summary())
}

// Enqueue queues an analysis and returns its job id. Poll /latest for the result.
func (h *RegimeEchoHandler) Enqueue(c echo.Context) error {
	req, verr, aerr := parseAnalyzeRequest(c)
	if verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if aerr != nil {
		return xhttp.AppErrorResponse(c, aerr)
	}
	id, err := h.jobs.Enqueue(c.Request().Context(), usecase.AnalyzeJobType, req)
	if err != nil {
		h.logger.Error("enqueue analysis failed", xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("analysis queue unavailable").WithError(err))
	}
	return xhttp.AcceptedResponse(c, map[string]string{"job_id": id, "symbol": req.Symbol})
}

// parseAnalyzeRequest binds and validates the body and converts its dates.
func parseAnalyzeRequest(c echo.Context) (*models.AnalysisRequest, []xhttp.ValidationError, *xhttp.AppError) {
	req := &models.AnalyzeHTTPRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return nil, verr, nil
	}
	from, err := util.ParseDay(req.From)
	if err != nil {
		return nil, nil, xhttp.BadRequestError(err.Error())
	}
	to, err := util.ParseDay(req.To)
	if err != nil {
		return nil, nil, xhttp.BadRequestError(err.Error())
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return nil, nil, xhttp.BadRequestError("to must not be before from")
	}
	return &models.AnalysisRequest{
		Symbol:      req.Symbol,
		From:        from,
		To:          to,
		StateCounts: req.StateCounts,
		Restarts:    req.Restarts,
	}, nil, nil
}

// Latest returns the cached report of the most recent run.
func (h *RegimeEchoHandler) Latest(c echo.Context) error {
	req := &models.LatestRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	report, err := h.svc.Latest(c.Request().Context(), req.Symbol)
	if err != nil {
		if !errors.Is(err, models.ErrRunNotFound) {
			h.logger.Error("latest usecase error", xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		}
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=60")
	return xhttp.SuccessResponse(c, report)
}

// Backtest replays the cached run under the supplied allocation.
func (h *RegimeEchoHandler) Backtest(c echo.Context) error {
	req := &models.BacktestRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	policy, err := parsePolicy(req.Allocation)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()).WithParam("field", "allocation"))
	}
	res, err := h.svc.Rebacktest(c.Request().Context(), req.Symbol, policy)
	if err != nil {
		h.logger.Warn("backtest usecase error", xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, res)
}

// Compare replays the cached run under several named allocations.
func (h *RegimeEchoHandler) Compare(c echo.Context) error {
	req := &models.ComparePoliciesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	policies := make(map[string]models.AllocationPolicy, len(req.Policies))
	for name, raw := range req.Policies {
		p, err := parsePolicy(raw)
		if err != nil {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("policy %q: %v", name, err).WithParam("policy", name))
		}
		policies[name] = p
	}
	res, err := h.svc.ComparePolicies(c.Request().Context(), req.Symbol, policies)
	if err != nil {
		h.logger.Warn("compare usecase error", xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, res)
}

// parsePolicy converts JSON object keys to regime labels.
func parsePolicy(raw map[string]float64) (models.AllocationPolicy, error) {
	p := make(models.AllocationPolicy, len(raw))
	for k, w := range raw {
		label, err := strconv.Atoi(k)
		if err != nil || label < 0 {
			return nil, fmt.Errorf("allocation key %q is not a regime label", k)
		}
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("allocation for regime %d is not finite", label)
		}
		p[label] = w
	}
	return p, nil
}

// toAppError maps domain failures to HTTP statuses.
func toAppError(err error) *xhttp.AppError {
	switch {
	case errors.Is(err, models.ErrDataShape):
		return xhttp.BadRequestError(err.Error()).WithError(err)
	case errors.Is(err, models.ErrConfiguration):
		return xhttp.UnprocessableError("ERR_CONFIGURATION", err.Error()).WithError(err)
	case errors.Is(err, models.ErrModelFitFailure):
		return xhttp.UnprocessableError("ERR_MODEL_FIT", err.Error()).WithError(err)
	case errors.Is(err, models.ErrRunNotFound), errors.Is(err, models.ErrSymbolNotFound):
		return xhttp.NotFoundError(err.Error()).WithError(err)
	case errors.Is(err, models.ErrRunInProgress):
		return xhttp.ConflictError(err.Error()).WithError(err)
	case errors.Is(err, context.DeadlineExceeded):
		return xhttp.NewAppError("ERR_TIMEOUT", "", "analysis timed out", http.StatusGatewayTimeout).WithError(err)
	default:
		return xhttp.InternalError("analysis failed").WithError(err)
	}
}
