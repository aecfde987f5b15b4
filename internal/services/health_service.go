package services

import (
	"sync"

	"github.com/raghub/backend-go/internal/knowledge"
	"github.com/raghub/backend-go/internal/middleware"
)

// HealthService 汇总各依赖组件的就绪状态
type HealthService struct {
	embedder knowledge.Embedder
	store    knowledge.VectorStore
}

var (
	healthService *HealthService
	healthOnce    sync.Once
)

// InitHealthService 初始化健康检查服务
func InitHealthService(embedder knowledge.Embedder, store knowledge.VectorStore) *HealthService {
	healthOnce.Do(func() {
		healthService = &HealthService{
			embedder: embedder,
			store:    store,
		}
	})
	return healthService
}

// GetHealthService 获取健康检查服务
func GetHealthService() *HealthService {
	return healthService
}

// Components 返回各组件就绪状态，可选组件未启用时不出现在结果中
func (s *HealthService) Components() map[string]bool {
	components := map[string]bool{
		"embedder":     s.embedder.Ready(),
		"vector_store": s.store.Ready(),
	}
	if minioSvc := middleware.GetMinIOService(); minioSvc != nil {
		components["minio"] = minioSvc.Ready()
	}
	if redisSvc := middleware.GetRedisService(); redisSvc != nil {
		components["redis"] = redisSvc.Ready()
	}
	return components
}

// Healthy 所有组件都就绪时返回true
func (s *HealthService) Healthy() bool {
	for _, ok := range s.Components() {
		if !ok {
			return false
		}
	}
	return true
}
