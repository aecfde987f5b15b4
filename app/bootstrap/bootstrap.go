package bootstrap

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/raghub/backend-go/app/router"
	"github.com/raghub/backend-go/internal/config"
	"github.com/raghub/backend-go/internal/knowledge"
	"github.com/raghub/backend-go/internal/logger"
	"github.com/raghub/backend-go/internal/middleware"
	"github.com/raghub/backend-go/internal/ollama"
	"github.com/raghub/backend-go/internal/services"
)

// InitCore 初始化日志、配置与核心服务，HTTP服务与监听进程共用
func InitCore() error {
	if err := logger.InitLogger(); err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}

	if err := config.InitConfig(); err != nil {
		return fmt.Errorf("初始化配置失败: %w", err)
	}
	cfg := config.GetConfig()

	services.InitMetricsService()

	var embedder knowledge.Embedder
	var generator knowledge.Generator
	switch cfg.Embedding.Provider {
	case "openai":
		embedder = knowledge.NewOpenAIEmbedder(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.EmbedModel)
		generator = knowledge.NewOpenAIGenerator(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.GenerateModel)
		logger.Info("使用OpenAI模型服务", zap.String("embed_model", cfg.OpenAI.EmbedModel))
	default:
		ollamaService := ollama.InitService(
			cfg.Ollama.URL,
			cfg.Ollama.EmbedModel,
			cfg.Ollama.GenerateModel,
			cfg.Ollama.EmbedTimeout,
			cfg.Ollama.GenerateTimeout,
		)
		embedder = knowledge.NewOllamaEmbedder(ollamaService, cfg.Ollama.URL)
		generator = knowledge.NewOllamaGenerator(ollamaService)
	}

	store, err := initVectorStore(cfg)
	if err != nil {
		return err
	}

	// 可选组件：未配置时跳过，失败只降级不阻断启动
	if cfg.MinIO.Enabled {
		if err := middleware.InitMinIOService(cfg.MinIO.Endpoint, cfg.MinIO.AccessKey,
			cfg.MinIO.SecretKey, cfg.MinIO.Bucket, cfg.MinIO.UseSSL); err != nil {
			logger.Warn("MinIO初始化失败，归档功能不可用", zap.Error(err))
		}
	}
	if cfg.Redis.Enabled {
		if err := middleware.InitRedisService(cfg.Redis.Addr, cfg.Redis.Password,
			cfg.Redis.DB, cfg.Redis.CacheTTL); err != nil {
			logger.Warn("Redis初始化失败，检索缓存不可用", zap.Error(err))
		}
	}

	uploadChunker, err := knowledge.NewChunker(cfg.Chunk.Size, cfg.Chunk.Overlap)
	if err != nil {
		return err
	}
	watchChunker, err := knowledge.NewChunker(cfg.Watch.ChunkSize, cfg.Watch.ChunkOverlap)
	if err != nil {
		return err
	}

	sessions := services.InitSessionService()
	parser := knowledge.NewFileParserManager()
	services.InitIngestService(parser, uploadChunker, watchChunker, embedder, store, cfg.Server.DataDir)
	services.InitQueryService(embedder, generator, store, sessions, cfg.Store.TopK)
	services.InitHealthService(embedder, store)

	logger.Info("核心服务初始化完成")
	return nil
}

// Init 初始化核心服务并注册HTTP路由
func Init() error {
	if err := InitCore(); err != nil {
		return err
	}
	router.Init()
	return nil
}

func initVectorStore(cfg *config.Config) (knowledge.VectorStore, error) {
	switch cfg.Store.Backend {
	case "memory":
		logger.Info("使用内存向量存储")
		return knowledge.NewMemoryVectorStore(), nil
	default:
		store, err := knowledge.NewMilvusVectorStore(knowledge.MilvusOptions{
			Address:        cfg.Milvus.Address,
			CollectionName: cfg.Store.CollectionName,
			VectorSize:     cfg.Milvus.VectorDim,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("使用Milvus向量存储",
			zap.String("address", cfg.Milvus.Address),
			zap.String("collection", cfg.Store.CollectionName))
		return store, nil
	}
}
