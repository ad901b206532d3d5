package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"analysis-backend/internal/models"
	"analysis-backend/internal/service"
	"analysis-backend/pkg/logger"
)

type ChatReplier interface {
	Enabled() bool
	Reply(ctx context.Context, message string) (string, error)
}

type ChatHandler struct {
	chat ChatReplier
	log  zerolog.Logger
}

func NewChatHandler(chat ChatReplier, logger *logger.Logger) *ChatHandler {
	return &ChatHandler{
		chat: chat,
		log:  logger.GetLogger("chat-handler"),
	}
}

func (h *ChatHandler) RegisterRoutes(r gin.IRoutes) {
	r.POST("/chat", h.Chat)
}

func (h *ChatHandler) Chat(c *gin.Context) {
	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil && h.chat.Enabled() {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	reply, err := h.chat.Reply(c.Request.Context(), req.Message)
	if err != nil {
		if errors.Is(err, service.ErrEmptyMessage) {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Missing 'message' in request body"})
			return
		}
		h.log.Error().Err(err).Msg("Chat request failed")
		c.JSON(http.StatusBadGateway, models.ErrorResponse{Error: "Chat backend unavailable"})
		return
	}

	c.JSON(http.StatusOK, models.ChatResponse{Reply: reply})
}
