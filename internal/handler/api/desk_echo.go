package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"ChartDesk/internal/domain/models"
	"ChartDesk/internal/service/synthetic"
	"ChartDesk/internal/usecase"
	xhttp "ChartDesk/pkg/http"
	xlogger "ChartDesk/pkg/logger"
	"ChartDesk/pkg/util"
)

const (
	defaultEventCount = 50
	maxEventCount     = 500
)

// DeskEchoHandler is the control surface a browser renderer drives the desk through.
type DeskEchoHandler struct {
	logger *xlogger.Logger
	desk   *usecase.Desk
}

func NewDeskEchoHandler(logger *xlogger.Logger, desk *usecase.Desk) *DeskEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &DeskEchoHandler{logger: logger.Component("desk_api"), desk: desk}
}

func (h *DeskEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/desk")
	g.GET("", h.Snapshot)
	g.GET("/", h.Snapshot)
	g.POST("/symbol", h.Symbol)
	g.POST("/tool", h.Tool)
	g.POST("/bounds", h.Bounds)
	g.POST("/pointer", h.Pointer)
	g.POST("/theme", h.Theme)
	g.POST("/chart-type", h.ChartType)
	g.POST("/indicators", h.Indicators)
	g.POST("/risk", h.Risk)
	g.POST("/drawings/horizontal", h.HorizontalLine)
	g.DELETE("/drawings/:id", h.DeleteDrawing)
	g.DELETE("/drawings", h.ClearDrawings)
	g.POST("/feedback", h.Feedback)
	g.GET("/events/:stream", h.Events)
}

func (h *DeskEchoHandler) Snapshot(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.desk.Snapshot())
}

func (h *DeskEchoHandler) Symbol(c echo.Context) error {
	req := &models.SymbolRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.desk.SetSymbol(req.Symbol, synthetic.ParseHorizon(req.Horizon), req.Interval); err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, h.desk.Snapshot())
}

func (h *DeskEchoHandler) Tool(c echo.Context) error {
	req := &models.ToolRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	h.desk.SetTool(models.ParseTool(req.Tool))
	return xhttp.SuccessResponse(c, h.desk.Snapshot().Drawing)
}

func (h *DeskEchoHandler) Bounds(c echo.Context) error {
	req := &models.BoundsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	h.desk.SetBounds(models.Rect{Left: req.Left, Top: req.Top, Width: req.Width, Height: req.Height})
	return xhttp.NoContentResponse(c)
}

// Pointer answers with whether the event was consumed and the resulting drawing state.
func (h *DeskEchoHandler) Pointer(c echo.Context) error {
	req := &models.PointerRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	handled, err := h.desk.Pointer(req.Type, models.Point{X: req.X, Y: req.Y}, req.Text)
	if err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, map[string]any{
		"handled": handled,
		"drawing": h.desk.Snapshot().Drawing,
	})
}

func (h *DeskEchoHandler) Theme(c echo.Context) error {
	req := &models.ThemeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	h.desk.SetTheme(models.Theme(req.Theme))
	return xhttp.SuccessResponse(c, h.desk.Snapshot().Chart)
}

func (h *DeskEchoHandler) ChartType(c echo.Context) error {
	req := &models.ChartTypeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	h.desk.SetChartType(models.ChartType(req.ChartType))
	return xhttp.SuccessResponse(c, h.desk.Snapshot().Chart)
}

func (h *DeskEchoHandler) Indicators(c echo.Context) error {
	req := &models.IndicatorsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	h.desk.SetIndicators(req.EMA, req.EMAPeriod, req.Volume)
	return xhttp.SuccessResponse(c, h.desk.Snapshot().Chart)
}

func (h *DeskEchoHandler) Risk(c echo.Context) error {
	req := &models.RiskRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	risk := models.RiskParams{StopLossPct: req.StopLossPct, TargetReturnPct: req.TargetReturnPct}
	if err := h.desk.SetRisk(c.Request().Context(), risk); err != nil {
		// The lines are already updated; only the audit entry failed.
		h.logger.Warn("risk event not recorded", xlogger.Error(err))
	}
	return xhttp.SuccessResponse(c, h.desk.Snapshot().Chart.Levels)
}

func (h *DeskEchoHandler) HorizontalLine(c echo.Context) error {
	req := &models.HorizontalLineRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	dr, err := h.desk.AddHorizontalAtPrice(req.Price)
	if err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.CreatedResponse(c, dr)
}

func (h *DeskEchoHandler) DeleteDrawing(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_FORMAT", "id", "id must be an integer", http.StatusBadRequest))
	}
	if !h.desk.DeleteDrawing(id) {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("drawing %d not found", id))
	}
	return xhttp.NoContentResponse(c)
}

func (h *DeskEchoHandler) ClearDrawings(c echo.Context) error {
	n := h.desk.ClearDrawings()
	return xhttp.SuccessResponse(c, map[string]int{"removed": n})
}

func (h *DeskEchoHandler) Feedback(c echo.Context) error {
	req := &models.FeedbackRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.desk.Feedback(c.Request().Context(), req.Message, req.Rating); err != nil {
		h.logger.Error("feedback not recorded", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.CreatedResponse(c, map[string]bool{"recorded": true})
}

func (h *DeskEchoHandler) Events(c echo.Context) error {
	stream := c.Param("stream")
	switch stream {
	case usecase.StreamRisk, usecase.StreamFeedback, usecase.StreamDrawings:
	default:
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("unknown event stream %q", stream))
	}
	n := util.ParseIntDefault(c.QueryParam("n"), defaultEventCount)
	if n <= 0 || n > maxEventCount {
		n = defaultEventCount
	}
	events, err := h.desk.Events(c.Request().Context(), stream, n)
	if err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, events)
}
