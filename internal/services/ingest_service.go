package services

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/raghub/backend-go/internal/errors"
	"github.com/raghub/backend-go/internal/knowledge"
	"github.com/raghub/backend-go/internal/logger"
	"github.com/raghub/backend-go/internal/middleware"
)

// 入库结果状态
const (
	IngestStatusOK    = "ok"
	IngestStatusEmpty = "empty"
)

// IngestResult 单个文档的入库结果
type IngestResult struct {
	Status     string `json:"status"`
	Filename   string `json:"file"`
	ChunkCount int    `json:"chunks"`
}

// IngestService 文档入库服务：解析、切分、向量化、写入向量库。
// 向量化阶段任一chunk失败则整个文档不入库。
type IngestService struct {
	parser        *knowledge.FileParserManager
	uploadChunker *knowledge.Chunker
	watchChunker  *knowledge.Chunker
	embedder      knowledge.Embedder
	store         knowledge.VectorStore
	dataDir       string
}

var (
	ingestService *IngestService
	ingestOnce    sync.Once
)

// NewIngestService 创建入库服务。dataDir为空时不保存上传原件。
func NewIngestService(parser *knowledge.FileParserManager, uploadChunker, watchChunker *knowledge.Chunker,
	embedder knowledge.Embedder, store knowledge.VectorStore, dataDir string) *IngestService {
	return &IngestService{
		parser:        parser,
		uploadChunker: uploadChunker,
		watchChunker:  watchChunker,
		embedder:      embedder,
		store:         store,
		dataDir:       dataDir,
	}
}

// InitIngestService 初始化全局入库服务
func InitIngestService(parser *knowledge.FileParserManager, uploadChunker, watchChunker *knowledge.Chunker,
	embedder knowledge.Embedder, store knowledge.VectorStore, dataDir string) *IngestService {
	ingestOnce.Do(func() {
		ingestService = NewIngestService(parser, uploadChunker, watchChunker, embedder, store, dataDir)
	})
	return ingestService
}

// GetIngestService 获取全局入库服务
func GetIngestService() *IngestService {
	return ingestService
}

// IngestUpload 处理HTTP上传的文档。
// chunk ID为 {uuid}_{序号}，同名文件重复上传会生成新的一批记录。
func (s *IngestService) IngestUpload(ctx context.Context, filename string, data []byte) (*IngestResult, error) {
	uid := uuid.New().String()

	// 原件落盘到监听目录，带__标记避免被监听进程重复入库
	if s.dataDir != "" {
		uploadDir := filepath.Join(s.dataDir, "uploads")
		if err := os.MkdirAll(uploadDir, 0o755); err != nil {
			logger.Warn("创建上传目录失败", zap.String("dir", uploadDir), zap.Error(err))
		} else {
			savedPath := filepath.Join(uploadDir, fmt.Sprintf("%s__%s", uid, filepath.Base(filename)))
			if err := os.WriteFile(savedPath, data, 0o644); err != nil {
				logger.Warn("保存上传原件失败", zap.String("path", savedPath), zap.Error(err))
			}
		}
	}

	result, err := s.ingest(ctx, filename, data, s.uploadChunker, func(i int) string {
		return fmt.Sprintf("%s_%d", uid, i)
	})
	if err != nil {
		return nil, err
	}

	// 入库成功后归档原始文档，失败不影响结果
	if result.Status == IngestStatusOK {
		if minioSvc := middleware.GetMinIOService(); minioSvc != nil {
			if archiveErr := minioSvc.ArchiveDocument(ctx, filename, data); archiveErr != nil {
				logger.Warn("归档上传文档失败",
					zap.String("filename", filename),
					zap.Error(archiveErr))
			}
		}
	}
	return result, nil
}

// IngestFromPath 处理监听目录中的文档。
// chunk ID为 {文件名}__chunk_{序号}，同一文件重新出现时覆盖旧记录。
// sourceName为空时使用路径中的文件名。
func (s *IngestService) IngestFromPath(ctx context.Context, path, sourceName string) (*IngestResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeInternalServer, "读取文件失败").WithCause(err)
	}
	if sourceName == "" {
		sourceName = filepath.Base(path)
	}
	return s.ingest(ctx, sourceName, data, s.watchChunker, func(i int) string {
		return fmt.Sprintf("%s__chunk_%d", sourceName, i)
	})
}

func (s *IngestService) ingest(ctx context.Context, filename string, data []byte,
	chunker *knowledge.Chunker, chunkID func(int) string) (*IngestResult, error) {
	start := time.Now()

	text, err := s.parser.ParseFile(bytes.NewReader(data), filename)
	if err != nil {
		recordIngest("error")
		return nil, err
	}

	if strings.TrimSpace(text) == "" {
		logger.Info("文档无可提取文本", zap.String("filename", filename))
		recordIngest(IngestStatusEmpty)
		return &IngestResult{
			Status:   IngestStatusEmpty,
			Filename: filename,
		}, nil
	}

	chunks := chunker.Split(text)
	if len(chunks) == 0 {
		recordIngest(IngestStatusEmpty)
		return &IngestResult{
			Status:   IngestStatusEmpty,
			Filename: filename,
		}, nil
	}

	// 先完成全部向量化再写入，保证失败时向量库不残留半个文档
	stored := make([]knowledge.StoredChunk, 0, len(chunks))
	dim := 0
	for _, chunk := range chunks {
		embedding, err := s.embedder.Embed(ctx, chunk.Text)
		if err != nil {
			if m := GetMetricsService(); m != nil {
				m.EmbeddingErrors.Inc()
			}
			recordIngest("error")
			return nil, err
		}
		// 同一文档所有chunk的向量维度必须一致
		if dim == 0 {
			dim = len(embedding)
		} else if len(embedding) != dim {
			recordIngest("error")
			return nil, apperrors.NewExternalError(apperrors.ErrCodeInvalidEmbedding,
				fmt.Sprintf("向量维度不一致: %d != %d", len(embedding), dim))
		}
		stored = append(stored, knowledge.StoredChunk{
			ID:        chunkID(chunk.Index),
			Text:      chunk.Text,
			Source:    filename,
			Index:     chunk.Index,
			Embedding: embedding,
		})
	}

	if err := s.store.Upsert(ctx, stored); err != nil {
		recordIngest("error")
		return nil, err
	}

	// 向量库内容变化，失效检索缓存
	if redisSvc := middleware.GetRedisService(); redisSvc != nil {
		redisSvc.InvalidateAll(ctx)
	}

	if m := GetMetricsService(); m != nil {
		m.ChunksStored.Add(float64(len(stored)))
		m.IngestDuration.Observe(time.Since(start).Seconds())
	}
	recordIngest(IngestStatusOK)

	logger.Info("文档入库完成",
		zap.String("filename", filename),
		zap.Int("chunks", len(stored)),
		zap.Duration("elapsed", time.Since(start)))

	return &IngestResult{
		Status:     IngestStatusOK,
		Filename:   filename,
		ChunkCount: len(stored),
	}, nil
}

func recordIngest(status string) {
	if m := GetMetricsService(); m != nil {
		m.DocumentsIngested.WithLabelValues(status).Inc()
	}
}
