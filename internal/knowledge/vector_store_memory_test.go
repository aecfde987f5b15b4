package knowledge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreUpsertIdempotent(t *testing.T) {
	store := NewMemoryVectorStore()
	ctx := context.Background()

	chunks := []StoredChunk{
		{ID: "doc.txt__chunk_0", Text: "第一版内容", Source: "doc.txt", Embedding: []float32{1, 0}},
	}
	require.NoError(t, store.Upsert(ctx, chunks))

	// 同ID重复写入覆盖而不是累积
	chunks[0].Text = "第二版内容"
	require.NoError(t, store.Upsert(ctx, chunks))

	matches, err := store.Search(ctx, []float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "第二版内容", matches[0].Text)
}

func TestMemoryStoreSearchRanking(t *testing.T) {
	store := NewMemoryVectorStore()
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, []StoredChunk{
		{ID: "a", Text: "正交", Source: "a.txt", Embedding: []float32{0, 1}},
		{ID: "b", Text: "完全相同", Source: "b.txt", Embedding: []float32{1, 0}},
		{ID: "c", Text: "部分相似", Source: "c.txt", Embedding: []float32{1, 1}},
	}))

	matches, err := store.Search(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "b", matches[0].ID)
	assert.Equal(t, "c", matches[1].ID)
	assert.Greater(t, matches[0].Score, matches[1].Score)
}

func TestMemoryStoreSearchTopKDefault(t *testing.T) {
	store := NewMemoryVectorStore()
	ctx := context.Background()

	var chunks []StoredChunk
	for i := 0; i < 10; i++ {
		chunks = append(chunks, StoredChunk{
			ID:        string(rune('a' + i)),
			Embedding: []float32{1, float32(i)},
		})
	}
	require.NoError(t, store.Upsert(ctx, chunks))

	// topK<=0时回退为3
	matches, err := store.Search(ctx, []float32{1, 0}, 0)
	require.NoError(t, err)
	assert.Len(t, matches, 3)
}

func TestMemoryStoreEmptyQuery(t *testing.T) {
	store := NewMemoryVectorStore()
	matches, err := store.Search(context.Background(), nil, 3)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, cosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Equal(t, 0.0, cosineSimilarity([]float32{1}, []float32{1, 2}))
	assert.Equal(t, 0.0, cosineSimilarity([]float32{0, 0}, []float32{1, 1}))
}
