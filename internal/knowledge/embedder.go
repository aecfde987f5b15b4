package knowledge

import (
	"context"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	apperrors "github.com/raghub/backend-go/internal/errors"
	"github.com/raghub/backend-go/internal/ollama"
)

// ollamaEmbedder 基于本地模型服务的向量化实现
type ollamaEmbedder struct {
	service *ollama.Service
	baseURL string
}

// NewOllamaEmbedder 创建基于本地模型服务的Embedder
func NewOllamaEmbedder(service *ollama.Service, baseURL string) Embedder {
	return &ollamaEmbedder{
		service: service,
		baseURL: baseURL,
	}
}

func (e *ollamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.service.Embed(ctx, text)
}

func (e *ollamaEmbedder) Ready() bool {
	if e.baseURL == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// openaiEmbedder 基于OpenAI兼容接口的向量化实现，
// 适配部署了OpenAI协议网关的场景。
type openaiEmbedder struct {
	client *openai.Client
	model  string
}

// NewOpenAIEmbedder 创建OpenAI兼容的Embedder
func NewOpenAIEmbedder(apiKey, baseURL, model string) Embedder {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}
	return &openaiEmbedder{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (e *openaiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: []string{text},
	})
	if err != nil {
		return nil, apperrors.NewExternalError(apperrors.ErrCodeExternalService, "向量化请求失败").WithCause(err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, apperrors.NewExternalError(apperrors.ErrCodeInvalidEmbedding, "向量响应为空")
	}
	return resp.Data[0].Embedding, nil
}

func (e *openaiEmbedder) Ready() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := e.client.ListModels(ctx)
	return err == nil
}
