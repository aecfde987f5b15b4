package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/raghub/backend-go/internal/errors"
	"github.com/raghub/backend-go/internal/logger"
)

// Client Ollama HTTP客户端
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient 创建Ollama客户端
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// errorResponse 服务端错误响应体
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Post 向模型服务发送JSON请求并返回原始响应体
func (c *Client) Post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeInternalServer, "请求序列化失败").WithCause(err)
	}

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeInternalServer, "创建HTTP请求失败").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Error("模型服务请求失败",
			zap.String("url", url),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, apperrors.NewExternalError(apperrors.ErrCodeExternalService,
			fmt.Sprintf("模型服务不可达: %s", path)).WithCause(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewExternalError(apperrors.ErrCodeExternalService, "读取模型服务响应失败").WithCause(err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := parseErrorBody(respBody)
		logger.Error("模型服务返回错误",
			zap.String("url", url),
			zap.Int("status", resp.StatusCode),
			zap.String("message", msg))
		return nil, apperrors.NewExternalError(apperrors.ErrCodeExternalService,
			fmt.Sprintf("模型服务错误(HTTP %d): %s", resp.StatusCode, msg))
	}

	logger.Debug("模型服务请求完成",
		zap.String("url", url),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("response_bytes", len(respBody)))
	return respBody, nil
}

// parseErrorBody 尽力从错误响应体中提取可读信息
func parseErrorBody(body []byte) string {
	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err == nil {
		if errResp.Error != "" {
			return errResp.Error
		}
		if errResp.Message != "" {
			return errResp.Message
		}
	}
	if len(body) > 512 {
		body = body[:512]
	}
	return string(body)
}
