package services

import (
	"context"
	"strings"

	apperrors "github.com/raghub/backend-go/internal/errors"
	"github.com/raghub/backend-go/internal/knowledge"
)

// fakeEmbedder 可注入失败的Embedder桩
type fakeEmbedder struct {
	failOn string
	calls  int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.failOn != "" && strings.Contains(text, f.failOn) {
		return nil, apperrors.NewExternalError(apperrors.ErrCodeExternalService, "向量化失败")
	}
	// 用文本长度构造确定性向量
	return []float32{float32(len(text)), 1}, nil
}

func (f *fakeEmbedder) Ready() bool { return true }

// fakeGenerator 记录最后一次提示词的Generator桩
type fakeGenerator struct {
	answer     string
	err        error
	lastPrompt string
	calls      int
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.calls++
	f.lastPrompt = prompt
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

// fakeStore 记录写入内容的VectorStore桩
type fakeStore struct {
	chunks      map[string]knowledge.StoredChunk
	matches     []knowledge.SearchMatch
	upsertErr   error
	searchErr   error
	upsertCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{chunks: make(map[string]knowledge.StoredChunk)}
}

func (f *fakeStore) Upsert(ctx context.Context, chunks []knowledge.StoredChunk) error {
	f.upsertCalls++
	if f.upsertErr != nil {
		return f.upsertErr
	}
	for _, chunk := range chunks {
		f.chunks[chunk.ID] = chunk
	}
	return nil
}

func (f *fakeStore) Search(ctx context.Context, vector []float32, topK int) ([]knowledge.SearchMatch, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.matches, nil
}

func (f *fakeStore) Ready() bool { return true }

func newTestIngestService(embedder knowledge.Embedder, store knowledge.VectorStore,
	chunkSize, overlap int) *IngestService {
	uploadChunker, _ := knowledge.NewChunker(chunkSize, overlap)
	watchChunker, _ := knowledge.NewChunker(chunkSize, overlap)
	return NewIngestService(knowledge.NewFileParserManager(), uploadChunker, watchChunker, embedder, store, "")
}
