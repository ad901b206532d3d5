package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"analysis-backend/internal/models"
	"analysis-backend/pkg/logger"
)

type StatusProvider interface {
	GetSystemStatus(ctx context.Context) (*models.SystemStatus, error)
}

type StatusHandler struct {
	statusService StatusProvider
	log           zerolog.Logger
}

func NewStatusHandler(
	statusService StatusProvider,
	logger *logger.Logger,
) *StatusHandler {
	return &StatusHandler{
		statusService: statusService,
		log:           logger.GetLogger("status-handler"),
	}
}

func (h *StatusHandler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/health", h.GetSystemStatus)
}

func (h *StatusHandler) GetSystemStatus(c *gin.Context) {
	h.log.Debug().Msg("Retrieving system status")

	status, err := h.statusService.GetSystemStatus(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get system status")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
		return
	}

	h.log.Debug().
		Int("total_tasks", status.Tasks.Total).
		Int("active_tasks", status.ActiveTasks).
		Msg("System status retrieved successfully")

	c.JSON(http.StatusOK, status)
}
