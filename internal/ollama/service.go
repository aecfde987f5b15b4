package ollama

import (
	"context"
	"encoding/json"
	"math"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/raghub/backend-go/internal/errors"
	"github.com/raghub/backend-go/internal/logger"
)

// Service 模型服务，封装向量化与文本生成两类调用。
// 不假设服务端的具体响应格式，按已知形状依次尝试解析。
type Service struct {
	embedClient   *Client
	genClient     *Client
	embedModel    string
	generateModel string
	sem           chan struct{}
}

var (
	globalService *Service
	serviceOnce   sync.Once
)

// NewService 创建模型服务。向量化与生成使用独立的超时：
// 向量化应当较快，生成允许更长。
func NewService(baseURL, embedModel, generateModel string, embedTimeout, generateTimeout time.Duration) *Service {
	if embedTimeout <= 0 {
		embedTimeout = 60 * time.Second
	}
	if generateTimeout <= 0 {
		generateTimeout = 120 * time.Second
	}
	return &Service{
		embedClient:   NewClient(baseURL, embedTimeout),
		genClient:     NewClient(baseURL, generateTimeout),
		embedModel:    embedModel,
		generateModel: generateModel,
		// 限制同时在途的模型请求数，避免压垮本地模型服务
		sem: make(chan struct{}, 4),
	}
}

// InitService 初始化全局模型服务
func InitService(baseURL, embedModel, generateModel string, embedTimeout, generateTimeout time.Duration) *Service {
	serviceOnce.Do(func() {
		globalService = NewService(baseURL, embedModel, generateModel, embedTimeout, generateTimeout)
		logger.Info("模型服务初始化完成",
			zap.String("base_url", baseURL),
			zap.String("embed_model", embedModel),
			zap.String("generate_model", generateModel))
	})
	return globalService
}

// GetService 获取全局模型服务
func GetService() *Service {
	return globalService
}

func (s *Service) acquire(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return apperrors.NewExternalError(apperrors.ErrCodeExternalService, "等待模型服务超时").WithCause(ctx.Err())
	}
}

func (s *Service) release() {
	<-s.sem
}

// Embed 对单段文本做向量化
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()

	payload := map[string]interface{}{
		"model":  s.embedModel,
		"prompt": text,
		"input":  text,
	}
	body, err := s.embedClient.Post(ctx, "/api/embeddings", payload)
	if err != nil {
		return nil, err
	}
	return ParseEmbedding(body)
}

// Generate 根据提示词生成回答，stream固定为false
func (s *Service) Generate(ctx context.Context, prompt string) (string, error) {
	if err := s.acquire(ctx); err != nil {
		return "", err
	}
	defer s.release()

	payload := map[string]interface{}{
		"model":  s.generateModel,
		"prompt": prompt,
		"stream": false,
	}
	body, err := s.genClient.Post(ctx, "/api/generate", payload)
	if err != nil {
		return "", err
	}
	return ParseGeneration(body), nil
}

// ParseEmbedding 按已知形状依次解析向量响应：
//  1. {"embedding": [...]}
//  2. {"data": [{"embedding": [...]}]}
//  3. {"embeddings": [[...]]}
func ParseEmbedding(body []byte) ([]float32, error) {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(body, &root); err != nil {
		return nil, apperrors.NewExternalError(apperrors.ErrCodeInvalidEmbedding, "向量响应不是合法JSON").WithCause(err)
	}

	if raw, ok := root["embedding"]; ok {
		var vec []float64
		if err := json.Unmarshal(raw, &vec); err == nil {
			return validateEmbedding(vec)
		}
	}

	if raw, ok := root["data"]; ok {
		var items []struct {
			Embedding []float64 `json:"embedding"`
		}
		if err := json.Unmarshal(raw, &items); err == nil && len(items) > 0 {
			return validateEmbedding(items[0].Embedding)
		}
	}

	if raw, ok := root["embeddings"]; ok {
		var vecs [][]float64
		if err := json.Unmarshal(raw, &vecs); err == nil && len(vecs) > 0 {
			return validateEmbedding(vecs[0])
		}
	}

	return nil, apperrors.NewExternalError(apperrors.ErrCodeInvalidEmbedding, "无法识别的向量响应格式")
}

func validateEmbedding(vec []float64) ([]float32, error) {
	if len(vec) == 0 {
		return nil, apperrors.NewExternalError(apperrors.ErrCodeInvalidEmbedding, "向量响应为空")
	}
	out := make([]float32, len(vec))
	for i, v := range vec {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, apperrors.NewExternalError(apperrors.ErrCodeInvalidEmbedding, "向量包含非法数值")
		}
		out[i] = float32(v)
	}
	return out, nil
}

// ParseGeneration 按已知形状依次解析生成响应，最终兜底返回原始文本。
func ParseGeneration(body []byte) string {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(body, &root); err != nil {
		return strings.TrimSpace(string(body))
	}

	if s, ok := stringField(root, "response"); ok {
		return s
	}
	if s, ok := stringField(root, "text"); ok {
		return s
	}

	if raw, ok := root["choices"]; ok {
		var choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			Text string `json:"text"`
		}
		if err := json.Unmarshal(raw, &choices); err == nil && len(choices) > 0 {
			if choices[0].Message.Content != "" {
				return choices[0].Message.Content
			}
			if choices[0].Text != "" {
				return choices[0].Text
			}
		}
	}

	return strings.TrimSpace(string(body))
}

func stringField(root map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := root[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}
