package api

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"ChartDesk/internal/domain/models"
	"ChartDesk/internal/usecase"
	xhttp "ChartDesk/pkg/http"
	xlogger "ChartDesk/pkg/logger"
)

// FeedWSHandler upgrades /ws/feed and hands the socket to the hub.
type FeedWSHandler struct {
	logger   *xlogger.Logger
	hub      *usecase.FeedHub
	upgrader websocket.Upgrader
}

func NewFeedWSHandler(logger *xlogger.Logger, hub *usecase.FeedHub) *FeedWSHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &FeedWSHandler{
		logger: logger.Component("feed_ws"),
		hub:    hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (h *FeedWSHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/feed", h.Feed)
}

func (h *FeedWSHandler) Feed(c echo.Context) error {
	req := &models.CandlesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.logger.Debug("websocket upgrade failed", xlogger.Error(err))
		return nil
	}
	if err := h.hub.Serve(c.Request().Context(), conn, req.Symbol, req.Interval); err != nil {
		h.logger.Debug("feed socket closed", xlogger.String("symbol", req.Symbol), xlogger.Error(err))
	}
	return nil
}
