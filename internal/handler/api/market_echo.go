package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"ChartDesk/internal/domain/models"
	"ChartDesk/internal/service/metrics"
	"ChartDesk/internal/usecase"
	xhttp "ChartDesk/pkg/http"
	"ChartDesk/pkg/http/middleware"
	xlogger "ChartDesk/pkg/logger"
	"ChartDesk/pkg/util"
)

// MarketEchoHandler serves the candle proxy and the archive history.
type MarketEchoHandler struct {
	logger   *xlogger.Logger
	market   *usecase.MarketCandlesUseCase
	history  *usecase.HistoryUseCase
	endpoint *metrics.Endpoint
	limiter  middleware.Allower
}

func NewMarketEchoHandler(logger *xlogger.Logger, market *usecase.MarketCandlesUseCase, history *usecase.HistoryUseCase,
	endpoint *metrics.Endpoint, limiter middleware.Allower) *MarketEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &MarketEchoHandler{logger: logger.Component("market_api"), market: market, history: history, endpoint: endpoint, limiter: limiter}
}

func (h *MarketEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/market", middleware.RateLimit(h.limiter, rateLimited))
	g.GET("/candles", h.Candles)
	g.GET("/history", h.History)
}

func rateLimited(c echo.Context) error {
	return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("too many requests"))
}

// Candles answers with the bare candles shape so feed clients can normalize it
// like a socket frame. Errors use the AppError envelope.
func (h *MarketEchoHandler) Candles(c echo.Context) error {
	start := time.Now()
	var failure error
	defer func() { h.endpoint.Observe("candles", start, failure) }()

	req := &models.CandlesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		failure = models.ErrInvalidArgument
		return xhttp.BadRequestResponse(c, verr)
	}

	resp, err := h.market.GetCandles(c.Request().Context(), req.Symbol, req.Interval)
	if err != nil {
		failure = err
		h.logger.Warn("candles request failed", xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return c.JSON(http.StatusOK, resp)
}

func (h *MarketEchoHandler) History(c echo.Context) error {
	start := time.Now()
	var failure error
	defer func() { h.endpoint.Observe("history", start, failure) }()

	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		failure = models.ErrInvalidArgument
		return xhttp.BadRequestResponse(c, verr)
	}
	params := usecase.HistoryParams{Symbol: req.Symbol, Interval: req.Interval, Limit: req.Limit}
	if req.From != "" {
		t, ok := util.ParseTime(req.From)
		if !ok {
			failure = models.ErrInvalidArgument
			return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_FORMAT", "from", "from must be RFC3339 or unix seconds", http.StatusBadRequest))
		}
		params.From = t
	}
	if req.To != "" {
		t, ok := util.ParseTime(req.To)
		if !ok {
			failure = models.ErrInvalidArgument
			return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_FORMAT", "to", "to must be RFC3339 or unix seconds", http.StatusBadRequest))
		}
		params.To = t
	}

	res, err := h.history.GetHistory(c.Request().Context(), params)
	if err != nil {
		failure = err
		h.logger.Warn("history request failed", xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return c.JSON(http.StatusOK, res)
}
