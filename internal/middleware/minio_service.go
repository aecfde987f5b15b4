package middleware

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/raghub/backend-go/internal/logger"
)

// MinIOService 对象存储服务，归档已成功入库的原始文档
type MinIOService struct {
	client *minio.Client
	bucket string
}

var (
	minioService *MinIOService
	minioOnce    sync.Once
)

// InitMinIOService 初始化MinIO服务
func InitMinIOService(endpoint, accessKey, secretKey, bucket string, useSSL bool) error {
	var initErr error
	minioOnce.Do(func() {
		client, err := minio.New(endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
			Secure: useSSL,
		})
		if err != nil {
			initErr = fmt.Errorf("创建MinIO客户端失败: %w", err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		exists, err := client.BucketExists(ctx, bucket)
		if err != nil {
			initErr = fmt.Errorf("检查bucket失败: %w", err)
			return
		}
		if !exists {
			if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
				initErr = fmt.Errorf("创建bucket失败: %w", err)
				return
			}
		}

		minioService = &MinIOService{
			client: client,
			bucket: bucket,
		}
		logger.Info("MinIO服务初始化完成",
			zap.String("endpoint", endpoint),
			zap.String("bucket", bucket))
	})
	return initErr
}

// GetMinIOService 获取MinIO服务，未初始化时返回nil
func GetMinIOService() *MinIOService {
	return minioService
}

// ArchiveDocument 归档原始文档，对象名带日期前缀避免同名覆盖历史
func (s *MinIOService) ArchiveDocument(ctx context.Context, filename string, data []byte) error {
	objectName := fmt.Sprintf("%s/%s", time.Now().Format("2006-01-02"), filename)
	_, err := s.client.PutObject(ctx, s.bucket, objectName,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/octet-stream"})
	if err != nil {
		return fmt.Errorf("归档文档失败: %w", err)
	}
	logger.Debug("文档已归档",
		zap.String("bucket", s.bucket),
		zap.String("object", objectName),
		zap.Int("bytes", len(data)))
	return nil
}

// Ready 检查对象存储连接
func (s *MinIOService) Ready() bool {
	if s == nil || s.client == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := s.client.BucketExists(ctx, s.bucket)
	return err == nil
}
