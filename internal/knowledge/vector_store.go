package knowledge

import "context"

// StoredChunk 待入库的文本片段及其向量
type StoredChunk struct {
	ID        string
	Text      string
	Source    string
	Index     int
	Embedding []float32
}

// SearchMatch 检索命中的片段
type SearchMatch struct {
	ID     string
	Text   string
	Source string
	Index  int
	Score  float64
}

// VectorStore 向量存储接口。Upsert以chunk ID为幂等键，
// 重复入库同一来源会覆盖而不是累积。
type VectorStore interface {
	Upsert(ctx context.Context, chunks []StoredChunk) error
	Search(ctx context.Context, vector []float32, topK int) ([]SearchMatch, error)
	Ready() bool
}

// Embedder 文本向量化接口
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Ready() bool
}

// Generator 文本生成接口
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
