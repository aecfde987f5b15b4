package controllers

import (
	"net/http"

	"github.com/raghub/backend-go/internal/config"
	"github.com/raghub/backend-go/internal/services"
)

// RootController 服务入口信息
type RootController struct {
	BaseController
}

// Index GET /
func (c *RootController) Index() {
	c.JSON(http.StatusOK, map[string]interface{}{
		"service": "rag-backend",
		"status":  "running",
	})
}

// HealthController 存活检查
type HealthController struct {
	BaseController
}

// Health GET /health
func (c *HealthController) Health() {
	c.JSON(http.StatusOK, map[string]interface{}{
		"status": "ok",
	})
}

// StatusController 依赖组件状态
type StatusController struct {
	BaseController
}

// Status GET /api/status
// 只读的配置与组件状态介绍
func (c *StatusController) Status() {
	health := services.GetHealthService()
	components := health.Components()
	cfg := config.GetConfig()

	status := http.StatusOK
	overall := "ok"
	if !health.Healthy() {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}

	c.JSON(status, map[string]interface{}{
		"status":     overall,
		"components": components,
		"sessions":   len(services.GetSessionService().ListSessions()),
		"config": map[string]interface{}{
			"ollama_url":     cfg.Ollama.URL,
			"embed_model":    cfg.Ollama.EmbedModel,
			"generate_model": cfg.Ollama.GenerateModel,
			"data_dir":       cfg.Server.DataDir,
			"collection":     cfg.Store.CollectionName,
			"store_backend":  cfg.Store.Backend,
			"chunk_size":     cfg.Chunk.Size,
			"chunk_overlap":  cfg.Chunk.Overlap,
			"watch_dir":      cfg.WatchDir(),
		},
	})
}
