package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
)

// fakeModel 记录收到的消息并返回固定内容
type fakeModel struct {
	reply    string
	err      error
	messages []llms.MessageContent
}

func (m *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.messages = messages
	if m.err != nil {
		return nil, m.err
	}
	if m.reply == "" {
		return &llms.ContentResponse{}, nil
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: m.reply}},
	}, nil
}

func (m *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func TestChatServiceStaticReply(t *testing.T) {
	svc, err := NewChatService(ChatConfig{Reply: "not yet implemented"}, zerolog.Nop())
	require.NoError(t, err)
	assert.False(t, svc.Enabled())

	reply, err := svc.Reply(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "not yet implemented", reply)
}

func TestChatServiceWithModel(t *testing.T) {
	model := &fakeModel{reply: "hi there"}
	svc := NewChatServiceWithModel(model, "static", zerolog.Nop())
	assert.True(t, svc.Enabled())

	reply, err := svc.Reply(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "hi there", reply)

	require.Len(t, model.messages, 2)
	assert.Equal(t, schema.ChatMessageTypeSystem, model.messages[0].Role)
	assert.Equal(t, schema.ChatMessageTypeHuman, model.messages[1].Role)
	assert.Equal(t, llms.TextContent{Text: "hello"}, model.messages[1].Parts[0])
}

func TestChatServiceErrors(t *testing.T) {
	t.Run("empty message", func(t *testing.T) {
		svc := NewChatServiceWithModel(&fakeModel{reply: "x"}, "", zerolog.Nop())
		_, err := svc.Reply(context.Background(), "  ")
		assert.ErrorIs(t, err, ErrEmptyMessage)
	})

	t.Run("model error", func(t *testing.T) {
		boom := errors.New("rate limited")
		svc := NewChatServiceWithModel(&fakeModel{err: boom}, "", zerolog.Nop())
		_, err := svc.Reply(context.Background(), "hello")
		assert.ErrorIs(t, err, boom)
	})

	t.Run("no choices", func(t *testing.T) {
		svc := NewChatServiceWithModel(&fakeModel{}, "", zerolog.Nop())
		_, err := svc.Reply(context.Background(), "hello")
		assert.ErrorIs(t, err, ErrNoReply)
	})
}

func TestNewChatServiceOpenRouter(t *testing.T) {
	svc, err := NewChatService(ChatConfig{
		Provider: "openrouter",
		APIKey:   "sk-test",
		Model:    "openai/gpt-4o-mini",
		BaseURL:  "https://openrouter.ai/api/v1",
	}, zerolog.Nop())
	require.NoError(t, err)
	assert.True(t, svc.Enabled())
}
