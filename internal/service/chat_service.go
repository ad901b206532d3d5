package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
)

var (
	ErrEmptyMessage = errors.New("message must not be empty")
	ErrNoReply      = errors.New("model returned no reply")
)

const chatSystemPrompt = "You are an assistant for a text analysis dashboard. Answer briefly."

// ChatConfig 聊天服务配置
type ChatConfig struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
	Reply    string
}

// ChatService 处理聊天请求，未配置模型时返回固定回复
type ChatService struct {
	model  llms.Model
	reply  string
	logger zerolog.Logger
}

// NewChatService 根据配置创建聊天服务
func NewChatService(cfg ChatConfig, logger zerolog.Logger) (*ChatService, error) {
	if cfg.Provider == "" {
		return NewChatServiceWithModel(nil, cfg.Reply, logger), nil
	}

	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating %s client: %w", cfg.Provider, err)
	}

	return NewChatServiceWithModel(llm, cfg.Reply, logger), nil
}

// NewChatServiceWithModel 使用指定模型创建聊天服务，model 为 nil 时只返回固定回复
func NewChatServiceWithModel(model llms.Model, reply string, logger zerolog.Logger) *ChatService {
	return &ChatService{
		model:  model,
		reply:  reply,
		logger: logger.With().Str("component", "chat_service").Logger(),
	}
}

// Enabled 是否接入了模型
func (s *ChatService) Enabled() bool {
	return s.model != nil
}

// Reply 返回对用户消息的回复
func (s *ChatService) Reply(ctx context.Context, message string) (string, error) {
	if s.model == nil {
		s.logger.Info().Msg("Received chat request, no model configured")
		return s.reply, nil
	}

	if strings.TrimSpace(message) == "" {
		return "", ErrEmptyMessage
	}

	messages := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, chatSystemPrompt),
		llms.TextParts(schema.ChatMessageTypeHuman, message),
	}

	resp, err := s.model.GenerateContent(ctx, messages)
	if err != nil {
		s.logger.Error().Err(err).Msg("Chat completion failed")
		return "", fmt.Errorf("generating reply: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Content == "" {
		return "", ErrNoReply
	}

	return resp.Choices[0].Content, nil
}
