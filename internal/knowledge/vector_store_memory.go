package knowledge

import (
	"context"
	"math"
	"sort"
	"sync"
)

// memoryVectorStore 进程内向量存储，按余弦相似度暴力检索。
// 用于本地开发与测试，不做持久化。
type memoryVectorStore struct {
	mu     sync.RWMutex
	chunks map[string]StoredChunk
}

// NewMemoryVectorStore 创建内存向量存储
func NewMemoryVectorStore() VectorStore {
	return &memoryVectorStore{
		chunks: make(map[string]StoredChunk),
	}
}

func (s *memoryVectorStore) Upsert(ctx context.Context, chunks []StoredChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, chunk := range chunks {
		stored := chunk
		stored.Embedding = make([]float32, len(chunk.Embedding))
		copy(stored.Embedding, chunk.Embedding)
		s.chunks[chunk.ID] = stored
	}
	return nil
}

func (s *memoryVectorStore) Search(ctx context.Context, vector []float32, topK int) ([]SearchMatch, error) {
	if len(vector) == 0 {
		return nil, nil
	}
	if topK <= 0 {
		topK = 3
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]SearchMatch, 0, len(s.chunks))
	for _, chunk := range s.chunks {
		score := cosineSimilarity(vector, chunk.Embedding)
		matches = append(matches, SearchMatch{
			ID:     chunk.ID,
			Text:   chunk.Text,
			Source: chunk.Source,
			Index:  chunk.Index,
			Score:  score,
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (s *memoryVectorStore) Ready() bool {
	return true
}

// Count 返回当前存储的chunk数量
func (s *memoryVectorStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
