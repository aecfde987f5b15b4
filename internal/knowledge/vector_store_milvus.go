package knowledge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	apperrors "github.com/raghub/backend-go/internal/errors"
	"github.com/raghub/backend-go/internal/logger"
)

// MilvusOptions Milvus向量存储配置
type MilvusOptions struct {
	Address        string
	Username       string
	Password       string
	CollectionName string
	VectorSize     int
	Timeout        time.Duration
}

type milvusVectorStore struct {
	milvusClient   client.Client
	collectionName string
	vectorSize     int

	// initMu 串行化集合初始化，Upsert与Search可能并发首次触达
	initMu sync.Mutex
	loaded bool
}

// NewMilvusVectorStore 创建Milvus向量存储
func NewMilvusVectorStore(opts MilvusOptions) (VectorStore, error) {
	if opts.Address == "" {
		opts.Address = "localhost:19530"
	}
	if opts.CollectionName == "" {
		opts.CollectionName = "rag_chunks"
	}
	if opts.VectorSize == 0 {
		opts.VectorSize = 768
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	milvusClient, err := client.NewClient(ctx, client.Config{
		Address:  opts.Address,
		Username: opts.Username,
		Password: opts.Password,
	})
	if err != nil {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeStoreError, "连接Milvus失败").WithCause(err)
	}

	return &milvusVectorStore{
		milvusClient:   milvusClient,
		collectionName: opts.CollectionName,
		vectorSize:     opts.VectorSize,
	}, nil
}

// ensureCollection 校验集合存在，不存在则按schema创建并建索引。
// 主键为VarChar，chunk ID格式由上层决定。
// 初始化失败不置位，下一次调用重试。
func (s *milvusVectorStore) ensureCollection(ctx context.Context) error {
	s.initMu.Lock()
	defer s.initMu.Unlock()
	if s.loaded {
		return nil
	}

	hasCollection, err := s.milvusClient.HasCollection(ctx, s.collectionName)
	if err != nil {
		return apperrors.NewSystemError(apperrors.ErrCodeStoreError, "检查集合失败").WithCause(err)
	}

	if !hasCollection {
		schema := &entity.Schema{
			CollectionName: s.collectionName,
			Description:    "document chunk vectors",
			Fields: []*entity.Field{
				{
					Name:       "id",
					DataType:   entity.FieldTypeVarChar,
					PrimaryKey: true,
					AutoID:     false,
					TypeParams: map[string]string{
						"max_length": "512",
					},
				},
				{
					Name:     "source",
					DataType: entity.FieldTypeVarChar,
					TypeParams: map[string]string{
						"max_length": "512",
					},
				},
				{
					Name:     "chunk_index",
					DataType: entity.FieldTypeInt64,
				},
				{
					Name:     "content",
					DataType: entity.FieldTypeVarChar,
					TypeParams: map[string]string{
						"max_length": "65535",
					},
				},
				{
					Name:     "vector",
					DataType: entity.FieldTypeFloatVector,
					TypeParams: map[string]string{
						"dim": fmt.Sprintf("%d", s.vectorSize),
					},
				},
			},
		}

		if err := s.milvusClient.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
			return apperrors.NewSystemError(apperrors.ErrCodeStoreError, "创建集合失败").WithCause(err)
		}

		var index entity.Index
		index, indexErr := entity.NewIndexHNSW(entity.COSINE, 8, 64)
		if indexErr != nil {
			// HNSW不可用时回退到IVF_FLAT
			index, indexErr = entity.NewIndexIvfFlat(entity.COSINE, 128)
			if indexErr != nil {
				return apperrors.NewSystemError(apperrors.ErrCodeStoreError, "创建索引失败").WithCause(indexErr)
			}
		}
		if err := s.milvusClient.CreateIndex(ctx, s.collectionName, "vector", index, false); err != nil {
			logger.Warn("创建索引失败", zap.String("collection", s.collectionName), zap.Error(err))
		}
	}

	if err := s.milvusClient.LoadCollection(ctx, s.collectionName, false); err != nil {
		return apperrors.NewSystemError(apperrors.ErrCodeStoreError, "加载集合失败").WithCause(err)
	}
	s.loaded = true

	return nil
}

// Upsert 批量写入chunk，主键相同的记录被覆盖
func (s *milvusVectorStore) Upsert(ctx context.Context, chunks []StoredChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := s.ensureCollection(ctx); err != nil {
		return err
	}

	ids := make([]string, 0, len(chunks))
	sources := make([]string, 0, len(chunks))
	indexes := make([]int64, 0, len(chunks))
	contents := make([]string, 0, len(chunks))
	vectors := make([][]float32, 0, len(chunks))

	for _, chunk := range chunks {
		if len(chunk.Embedding) != s.vectorSize {
			return apperrors.NewSystemError(apperrors.ErrCodeStoreError,
				fmt.Sprintf("向量维度不匹配: got %d, want %d", len(chunk.Embedding), s.vectorSize))
		}
		ids = append(ids, chunk.ID)
		sources = append(sources, chunk.Source)
		indexes = append(indexes, int64(chunk.Index))
		contents = append(contents, chunk.Text)
		vectors = append(vectors, chunk.Embedding)
	}

	idColumn := entity.NewColumnVarChar("id", ids)
	sourceColumn := entity.NewColumnVarChar("source", sources)
	indexColumn := entity.NewColumnInt64("chunk_index", indexes)
	contentColumn := entity.NewColumnVarChar("content", contents)
	vectorColumn := entity.NewColumnFloatVector("vector", s.vectorSize, vectors)

	_, err := s.milvusClient.Upsert(ctx, s.collectionName, "",
		idColumn, sourceColumn, indexColumn, contentColumn, vectorColumn)
	if err != nil {
		return apperrors.NewSystemError(apperrors.ErrCodeStoreError, "向量写入失败").WithCause(err)
	}

	if err := s.milvusClient.Flush(ctx, s.collectionName, false); err != nil {
		logger.Warn("刷新集合失败", zap.String("collection", s.collectionName), zap.Error(err))
	}

	return nil
}

// Search 按余弦相似度检索topK个片段
func (s *milvusVectorStore) Search(ctx context.Context, vector []float32, topK int) ([]SearchMatch, error) {
	if len(vector) == 0 {
		return nil, nil
	}
	if topK <= 0 {
		topK = 3
	}
	if err := s.ensureCollection(ctx); err != nil {
		return nil, err
	}

	sp, _ := entity.NewIndexHNSWSearchParam(64)
	searchResults, err := s.milvusClient.Search(
		ctx,
		s.collectionName,
		[]string{},
		"",
		[]string{"source", "chunk_index", "content"},
		[]entity.Vector{entity.FloatVector(vector)},
		"vector",
		entity.COSINE,
		topK,
		sp,
	)
	if err != nil {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeStoreError, "向量检索失败").WithCause(err)
	}

	if len(searchResults) == 0 {
		return []SearchMatch{}, nil
	}
	result := searchResults[0]
	if result.Err != nil {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeStoreError, "向量检索失败").WithCause(result.Err)
	}
	if result.ResultCount == 0 {
		return []SearchMatch{}, nil
	}

	var ids []string
	if idCol, ok := result.IDs.(*entity.ColumnVarChar); ok {
		ids = idCol.Data()
	}

	var sources []string
	var indexes []int64
	var contents []string
	for _, field := range result.Fields {
		switch field.Name() {
		case "source":
			if val, ok := field.(*entity.ColumnVarChar); ok {
				sources = val.Data()
			}
		case "chunk_index":
			if val, ok := field.(*entity.ColumnInt64); ok {
				indexes = val.Data()
			}
		case "content":
			if val, ok := field.(*entity.ColumnVarChar); ok {
				contents = val.Data()
			}
		}
	}

	matches := make([]SearchMatch, 0, result.ResultCount)
	for i := 0; i < result.ResultCount; i++ {
		match := SearchMatch{}
		if i < len(ids) {
			match.ID = ids[i]
		}
		if i < len(sources) {
			match.Source = sources[i]
		}
		if i < len(indexes) {
			match.Index = int(indexes[i])
		}
		if i < len(contents) {
			match.Text = contents[i]
		}
		if i < len(result.Scores) {
			match.Score = float64(result.Scores[i])
		}
		matches = append(matches, match)
	}

	return matches, nil
}

func (s *milvusVectorStore) Ready() bool {
	if s.milvusClient == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := s.milvusClient.ListCollections(ctx)
	return err == nil
}
