package knowledge

import (
	"context"

	openai "github.com/sashabaranov/go-openai"

	apperrors "github.com/raghub/backend-go/internal/errors"
	"github.com/raghub/backend-go/internal/ollama"
)

// ollamaGenerator 基于本地模型服务的生成实现
type ollamaGenerator struct {
	service *ollama.Service
}

// NewOllamaGenerator 创建基于本地模型服务的Generator
func NewOllamaGenerator(service *ollama.Service) Generator {
	return &ollamaGenerator{service: service}
}

func (g *ollamaGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return g.service.Generate(ctx, prompt)
}

// openaiGenerator 基于OpenAI兼容接口的生成实现
type openaiGenerator struct {
	client *openai.Client
	model  string
}

// NewOpenAIGenerator 创建OpenAI兼容的Generator
func NewOpenAIGenerator(apiKey, baseURL, model string) Generator {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &openaiGenerator{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (g *openaiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", apperrors.NewExternalError(apperrors.ErrCodeExternalService, "生成请求失败").WithCause(err)
	}
	if len(resp.Choices) == 0 {
		return "", apperrors.NewExternalError(apperrors.ErrCodeExternalService, "生成响应为空")
	}
	return resp.Choices[0].Message.Content, nil
}
