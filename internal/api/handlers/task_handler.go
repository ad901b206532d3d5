package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"analysis-backend/internal/models"
	"analysis-backend/internal/service"
	"analysis-backend/internal/store/types"
	"analysis-backend/pkg/logger"
)

// TaskManager 任务服务中处理器需要的部分
type TaskManager interface {
	StartAnalysis(ctx context.Context, prompt string) (*models.Task, error)
	StartDummyAnalysis(ctx context.Context) (*models.Task, error)
	GetTask(ctx context.Context, id string) (*models.Task, error)
	ListTasks(ctx context.Context) ([]*models.Task, error)
	Cancel(ctx context.Context, id string) (*models.Task, error)
}

type TaskHandler struct {
	tasks TaskManager
	log   zerolog.Logger
}

func NewTaskHandler(
	tasks TaskManager,
	logger *logger.Logger,
) *TaskHandler {
	return &TaskHandler{
		tasks: tasks,
		log:   logger.GetLogger("task-handler"),
	}
}

func (h *TaskHandler) RegisterRoutes(r gin.IRoutes) {
	r.POST("/start-analysis", h.StartAnalysis)
	r.POST("/start-dummy-analysis", h.StartDummyAnalysis)
	r.GET("/analysis-status/:task_id", h.GetStatus)
	r.POST("/analysis/:task_id/cancel", h.Cancel)
	r.GET("/tasks", h.ListTasks)
}

func (h *TaskHandler) StartAnalysis(c *gin.Context) {
	var req models.StartAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Prompt == nil || strings.TrimSpace(*req.Prompt) == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Missing 'prompt' in request body"})
		return
	}

	task, err := h.tasks.StartAnalysis(c.Request.Context(), *req.Prompt)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrEmptyPrompt):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Missing 'prompt' in request body"})
		return
	case errors.Is(err, service.ErrQueueFull), errors.Is(err, service.ErrShuttingDown):
		h.log.Warn().Err(err).Msg("Rejected analysis request")
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: "Server is busy, try again later"})
		return
	default:
		h.log.Error().Err(err).Msg("Failed to start analysis")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, models.StartAnalysisResponse{
		TaskID:  task.ID,
		Message: "Analysis started.",
	})
}

func (h *TaskHandler) StartDummyAnalysis(c *gin.Context) {
	task, err := h.tasks.StartDummyAnalysis(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to create dummy task")

		resp := models.ErrorResponse{Error: "Error creating dummy task: " + err.Error()}
		if task != nil {
			resp.TaskID = task.ID
		}
		switch {
		case errors.Is(err, service.ErrDummySourceMissing):
			resp.Error = "Failed to create dummy task: source HTML file not found."
		case errors.Is(err, service.ErrShuttingDown):
			c.JSON(http.StatusServiceUnavailable, resp)
			return
		}
		c.JSON(http.StatusInternalServerError, resp)
		return
	}

	c.JSON(http.StatusAccepted, models.StartAnalysisResponse{
		TaskID:  task.ID,
		Message: "Dummy analysis task created and completed immediately.",
	})
}

func (h *TaskHandler) GetStatus(c *gin.Context) {
	taskID := c.Param("task_id")

	task, err := h.tasks.GetTask(c.Request.Context(), taskID)
	if err != nil {
		if errors.Is(err, types.ErrTaskNotFound) {
			h.log.Warn().Str("task_id", taskID).Msg("Status requested for unknown task")
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "Task not found"})
			return
		}
		h.log.Error().Err(err).Str("task_id", taskID).Msg("Failed to get task")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, models.NewTaskStatusResponse(task))
}

func (h *TaskHandler) Cancel(c *gin.Context) {
	taskID := c.Param("task_id")

	task, err := h.tasks.Cancel(c.Request.Context(), taskID)
	switch {
	case err == nil:
	case errors.Is(err, types.ErrTaskNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "Task not found"})
		return
	case errors.Is(err, service.ErrTaskFinished):
		c.JSON(http.StatusConflict, models.ErrorResponse{TaskID: taskID, Error: "Task already finished"})
		return
	default:
		h.log.Error().Err(err).Str("task_id", taskID).Msg("Failed to cancel task")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{TaskID: taskID, Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, models.NewTaskStatusResponse(task))
}

func (h *TaskHandler) ListTasks(c *gin.Context) {
	h.log.Debug().Msg("Listing all tasks")

	tasks, err := h.tasks.ListTasks(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list tasks")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
		return
	}

	summaries := make([]models.TaskSummary, 0, len(tasks))
	for _, task := range tasks {
		summaries = append(summaries, models.TaskSummary{
			TaskID:    task.ID,
			Kind:      task.Kind,
			Status:    task.Status,
			Message:   task.Message,
			CreatedAt: task.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	c.JSON(http.StatusOK, summaries)
}
