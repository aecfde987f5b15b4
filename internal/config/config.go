package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/raghub/backend-go/internal/logger"
)

// Config 应用配置结构
type Config struct {
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Embedding EmbeddingConfig `mapstructure:"embedding" validate:"required"`
	Ollama    OllamaConfig    `mapstructure:"ollama" validate:"required"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Chunk     ChunkConfig     `mapstructure:"chunk" validate:"required"`
	Watch     WatchConfig     `mapstructure:"watch" validate:"required"`
	Store     StoreConfig     `mapstructure:"store" validate:"required"`
	Milvus    MilvusConfig    `mapstructure:"milvus"`
	MinIO     MinIOConfig     `mapstructure:"minio"`
	Redis     RedisConfig     `mapstructure:"redis"`
}

// ServerConfig HTTP服务配置
type ServerConfig struct {
	Port         int      `mapstructure:"port" validate:"min=1,max=65535"`
	AllowOrigins []string `mapstructure:"allow_origins"`
	DataDir      string   `mapstructure:"data_dir" validate:"required"`
}

// EmbeddingConfig 模型提供方选择
type EmbeddingConfig struct {
	// Provider 可选 ollama / openai
	Provider string `mapstructure:"provider" validate:"oneof=ollama openai"`
}

// OllamaConfig 模型服务配置
type OllamaConfig struct {
	URL             string        `mapstructure:"url" validate:"required,url"`
	EmbedModel      string        `mapstructure:"embed_model" validate:"required"`
	GenerateModel   string        `mapstructure:"generate_model" validate:"required"`
	EmbedTimeout    time.Duration `mapstructure:"embed_timeout"`
	GenerateTimeout time.Duration `mapstructure:"generate_timeout"`
}

// OpenAIConfig OpenAI兼容服务配置（embedding.provider=openai 时生效）
type OpenAIConfig struct {
	APIKey        string `mapstructure:"api_key"`
	BaseURL       string `mapstructure:"base_url"`
	EmbedModel    string `mapstructure:"embed_model"`
	GenerateModel string `mapstructure:"generate_model"`
}

// ChunkConfig 上传入库的切分配置
type ChunkConfig struct {
	Size    int `mapstructure:"size" validate:"min=1"`
	Overlap int `mapstructure:"overlap" validate:"min=0"`
}

// WatchConfig 目录监听入库配置
type WatchConfig struct {
	Dir              string        `mapstructure:"dir"`
	ChunkSize        int           `mapstructure:"chunk_size" validate:"min=1"`
	ChunkOverlap     int           `mapstructure:"chunk_overlap" validate:"min=0"`
	StablePollPeriod time.Duration `mapstructure:"stable_poll_period"`
	StableTimeout    time.Duration `mapstructure:"stable_timeout"`
}

// StoreConfig 向量存储配置
type StoreConfig struct {
	// Backend 可选 milvus / memory
	Backend        string `mapstructure:"backend" validate:"oneof=milvus memory"`
	CollectionName string `mapstructure:"collection_name" validate:"required"`
	TopK           int    `mapstructure:"top_k" validate:"min=1"`
}

// MilvusConfig Milvus连接配置
type MilvusConfig struct {
	Address   string `mapstructure:"address"`
	VectorDim int    `mapstructure:"vector_dim"`
}

// MinIOConfig MinIO对象存储配置（可选的原始文档归档）
type MinIOConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// RedisConfig Redis缓存配置（可选的检索结果缓存）
type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// GlobalConfig 全局配置实例
var GlobalConfig *Config

// InitConfig 初始化配置
func InitConfig() error {
	// 加载.env文件（不存在时忽略）
	_ = godotenv.Load()

	setDefaults()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("读取配置文件失败: %w", err)
		}
		logger.Info("未找到配置文件，使用默认值与环境变量")
	}

	applyEnvOverrides()

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return fmt.Errorf("解析配置失败: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return err
	}

	GlobalConfig = config
	logger.Info("配置加载完成",
		zap.String("ollama_url", config.Ollama.URL),
		zap.String("store_backend", config.Store.Backend),
		zap.String("collection", config.Store.CollectionName))
	return nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8000)
	viper.SetDefault("server.allow_origins", []string{"*"})
	viper.SetDefault("server.data_dir", "./data")

	viper.SetDefault("embedding.provider", "ollama")

	viper.SetDefault("ollama.url", "http://localhost:11434")
	viper.SetDefault("ollama.embed_model", "nomic-embed-text")
	viper.SetDefault("ollama.generate_model", "llama3")
	viper.SetDefault("ollama.embed_timeout", "60s")
	viper.SetDefault("ollama.generate_timeout", "120s")

	viper.SetDefault("openai.embed_model", "text-embedding-3-small")
	viper.SetDefault("openai.generate_model", "gpt-4o-mini")

	viper.SetDefault("chunk.size", 1200)
	viper.SetDefault("chunk.overlap", 200)

	// 为空时取 {data_dir}/uploads
	viper.SetDefault("watch.dir", "")
	viper.SetDefault("watch.chunk_size", 1000)
	viper.SetDefault("watch.chunk_overlap", 100)
	viper.SetDefault("watch.stable_poll_period", "1s")
	viper.SetDefault("watch.stable_timeout", "30s")

	viper.SetDefault("store.backend", "milvus")
	viper.SetDefault("store.collection_name", "rag_chunks")
	viper.SetDefault("store.top_k", 3)

	viper.SetDefault("milvus.address", "localhost:19530")
	viper.SetDefault("milvus.vector_dim", 768)

	viper.SetDefault("minio.enabled", false)
	viper.SetDefault("minio.endpoint", "localhost:9000")
	viper.SetDefault("minio.bucket", "rag-documents")
	viper.SetDefault("minio.use_ssl", false)

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.cache_ttl", "5m")
}

// applyEnvOverrides 环境变量优先于配置文件
func applyEnvOverrides() {
	if v := os.Getenv("OLLAMA_URL"); v != "" {
		viper.Set("ollama.url", v)
	}
	if v := os.Getenv("EMBED_MODEL"); v != "" {
		viper.Set("ollama.embed_model", v)
	}
	if v := os.Getenv("GENERATE_MODEL"); v != "" {
		viper.Set("ollama.generate_model", v)
	}
	if v := os.Getenv("EMBEDDING_PROVIDER"); v != "" {
		viper.Set("embedding.provider", v)
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		viper.Set("openai.api_key", v)
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		viper.Set("openai.base_url", v)
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		viper.Set("server.data_dir", v)
	}
	if v := os.Getenv("WATCH_DIR"); v != "" {
		viper.Set("watch.dir", v)
	}
	if v := os.Getenv("COLLECTION_NAME"); v != "" {
		viper.Set("store.collection_name", v)
	}
	if v := os.Getenv("STORE_BACKEND"); v != "" {
		viper.Set("store.backend", v)
	}
	if v := os.Getenv("MILVUS_ADDRESS"); v != "" {
		viper.Set("milvus.address", v)
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			viper.Set("server.port", port)
		}
	}
	if v := os.Getenv("ALLOW_ORIGINS"); v != "" {
		viper.Set("server.allow_origins", strings.Split(v, ","))
	}
	if v := os.Getenv("CHUNK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			viper.Set("chunk.size", n)
		}
	}
	if v := os.Getenv("CHUNK_OVERLAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			viper.Set("chunk.overlap", n)
		}
	}
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		viper.Set("minio.enabled", true)
		viper.Set("minio.endpoint", v)
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		viper.Set("minio.access_key", v)
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		viper.Set("minio.secret_key", v)
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		viper.Set("redis.enabled", true)
		viper.Set("redis.addr", v)
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		viper.Set("redis.password", v)
	}
}

func validateConfig(config *Config) error {
	validate := validator.New()
	if err := validate.Struct(config); err != nil {
		return fmt.Errorf("配置验证失败: %w", err)
	}
	if config.Chunk.Overlap >= config.Chunk.Size {
		return fmt.Errorf("配置验证失败: chunk.overlap(%d) 必须小于 chunk.size(%d)",
			config.Chunk.Overlap, config.Chunk.Size)
	}
	if config.Watch.ChunkOverlap >= config.Watch.ChunkSize {
		return fmt.Errorf("配置验证失败: watch.chunk_overlap(%d) 必须小于 watch.chunk_size(%d)",
			config.Watch.ChunkOverlap, config.Watch.ChunkSize)
	}
	if config.Embedding.Provider == "openai" && config.OpenAI.APIKey == "" {
		return fmt.Errorf("配置验证失败: embedding.provider=openai 需要设置 openai.api_key")
	}
	return nil
}

// WatchDir 监听目录，未显式配置时落在数据目录的uploads子目录
func (c *Config) WatchDir() string {
	if c.Watch.Dir != "" {
		return c.Watch.Dir
	}
	return filepath.Join(c.Server.DataDir, "uploads")
}

// GetConfig 获取全局配置
func GetConfig() *Config {
	return GlobalConfig
}
