package api

import (
	"time"

	models "MarketPulse/internal/domain/models"
	"MarketPulse/internal/usecase"
	xhttp "MarketPulse/pkg/http"
	xlogger "MarketPulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

// StatusHandler exposes read-only monitor state over Echo.
type StatusHandler struct {
	logger    *xlogger.Logger
	scheduler *usecase.Scheduler
	startedAt time.Time
}

func NewStatusHandler(logger *xlogger.Logger, scheduler *usecase.Scheduler) *StatusHandler {
	return &StatusHandler{logger: logger, scheduler: scheduler, startedAt: time.Now()}
}

func (h *StatusHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/status", h.Status)
	g.GET("/health", h.Health)
}

func (h *StatusHandler) Status(c echo.Context) error {
	req := &models.StatusRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	snap := h.scheduler.Snapshot()
	res := &models.StatusResponse{}
	switch req.Section {
	case "scheduler":
		res.Scheduler = &snap
	case "blocks":
		res.Blocked = snap.Blocked
	default:
		res.Uptime = time.Since(h.startedAt).Round(time.Second).String()
		res.Scheduler = &snap
		res.Blocked = snap.Blocked
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *StatusHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}
