package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/raghub/backend-go/internal/knowledge"
	"github.com/raghub/backend-go/internal/logger"
)

// RedisService 检索结果缓存服务。对相同查询向量短期内重复检索时
// 直接返回缓存命中，减轻向量库压力。缓存未启用或不可用时调用方降级为直查。
type RedisService struct {
	client *redis.Client
	ttl    time.Duration
}

var (
	redisService *RedisService
	redisOnce    sync.Once
)

// InitRedisService 初始化Redis缓存服务
func InitRedisService(addr, password string, db int, ttl time.Duration) error {
	var initErr error
	redisOnce.Do(func() {
		client := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			initErr = fmt.Errorf("连接Redis失败: %w", err)
			return
		}

		if ttl <= 0 {
			ttl = 5 * time.Minute
		}
		redisService = &RedisService{
			client: client,
			ttl:    ttl,
		}
		logger.Info("Redis缓存服务初始化完成",
			zap.String("addr", addr),
			zap.Duration("ttl", ttl))
	})
	return initErr
}

// GetRedisService 获取Redis缓存服务，未初始化时返回nil
func GetRedisService() *RedisService {
	return redisService
}

// searchCacheKey 以查询向量的哈希作为缓存键
func searchCacheKey(vector []float32, topK int) string {
	h := sha256.New()
	buf := make([]byte, 4)
	for _, v := range vector {
		bits := math.Float32bits(v)
		buf[0] = byte(bits)
		buf[1] = byte(bits >> 8)
		buf[2] = byte(bits >> 16)
		buf[3] = byte(bits >> 24)
		h.Write(buf)
	}
	return fmt.Sprintf("search:%s:%d", hex.EncodeToString(h.Sum(nil))[:32], topK)
}

// GetSearchResult 读取检索结果缓存，未命中返回(nil, false)
func (s *RedisService) GetSearchResult(ctx context.Context, vector []float32, topK int) ([]knowledge.SearchMatch, bool) {
	if s == nil || s.client == nil {
		return nil, false
	}
	data, err := s.client.Get(ctx, searchCacheKey(vector, topK)).Bytes()
	if err != nil {
		return nil, false
	}
	var matches []knowledge.SearchMatch
	if err := json.Unmarshal(data, &matches); err != nil {
		return nil, false
	}
	return matches, true
}

// SetSearchResult 写入检索结果缓存，失败只记录不报错
func (s *RedisService) SetSearchResult(ctx context.Context, vector []float32, topK int, matches []knowledge.SearchMatch) {
	if s == nil || s.client == nil {
		return
	}
	data, err := json.Marshal(matches)
	if err != nil {
		return
	}
	if err := s.client.Set(ctx, searchCacheKey(vector, topK), data, s.ttl).Err(); err != nil {
		logger.Debug("写入检索缓存失败", zap.Error(err))
	}
}

// InvalidateAll 清空检索缓存，入库新文档后调用
func (s *RedisService) InvalidateAll(ctx context.Context) {
	if s == nil || s.client == nil {
		return
	}
	iter := s.client.Scan(ctx, 0, "search:*", 100).Iterator()
	for iter.Next(ctx) {
		s.client.Del(ctx, iter.Val())
	}
}

// Ready 检查Redis连接
func (s *RedisService) Ready() bool {
	if s == nil || s.client == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return s.client.Ping(ctx).Err() == nil
}
