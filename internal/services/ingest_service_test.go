package services

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/raghub/backend-go/internal/errors"
	"github.com/raghub/backend-go/internal/knowledge"
)

func TestIngestUploadSuccess(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := newFakeStore()
	svc := newTestIngestService(embedder, store, 10, 2)

	result, err := svc.IngestUpload(context.Background(), "notes.txt", []byte("abcdefghijklmno"))
	require.NoError(t, err)
	assert.Equal(t, IngestStatusOK, result.Status)
	assert.Equal(t, "notes.txt", result.Filename)
	assert.Equal(t, 2, result.ChunkCount)
	assert.Len(t, store.chunks, 2)

	for id, chunk := range store.chunks {
		assert.Equal(t, "notes.txt", chunk.Source)
		// 上传路径的chunk ID为 {uuid}_{序号}
		assert.Regexp(t, `^[0-9a-f-]{36}_\d+$`, id)
		assert.NotEmpty(t, chunk.Embedding)
	}
}

func TestIngestUploadSavesOriginal(t *testing.T) {
	dataDir := t.TempDir()
	uploadChunker, _ := knowledge.NewChunker(10, 2)
	svc := NewIngestService(knowledge.NewFileParserManager(),
		uploadChunker, uploadChunker, &fakeEmbedder{}, newFakeStore(), dataDir)

	_, err := svc.IngestUpload(context.Background(), "notes.txt", []byte("原始内容"))
	require.NoError(t, err)

	// 原件以 {uuid}__{文件名} 落在数据目录的uploads子目录
	entries, err := os.ReadDir(filepath.Join(dataDir, "uploads"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Regexp(t, `^[0-9a-f-]{36}__notes\.txt$`, entries[0].Name())

	data, err := os.ReadFile(filepath.Join(dataDir, "uploads", entries[0].Name()))
	require.NoError(t, err)
	assert.Equal(t, "原始内容", string(data))
}

func TestIngestUploadEmptyDocument(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := newFakeStore()
	svc := newTestIngestService(embedder, store, 10, 2)

	result, err := svc.IngestUpload(context.Background(), "blank.txt", []byte("   \n\t  "))
	require.NoError(t, err)
	assert.Equal(t, IngestStatusEmpty, result.Status)
	assert.Equal(t, 0, result.ChunkCount)
	assert.Zero(t, embedder.calls)
	assert.Zero(t, store.upsertCalls)
}

func TestIngestUploadUnsupportedFormat(t *testing.T) {
	svc := newTestIngestService(&fakeEmbedder{}, newFakeStore(), 10, 2)

	_, err := svc.IngestUpload(context.Background(), "image.png", []byte("binary"))
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeUnsupportedFormat))
}

func TestIngestAllOrNothing(t *testing.T) {
	// 第二个chunk向量化失败时整个文档不入库
	embedder := &fakeEmbedder{failOn: "FAIL"}
	store := newFakeStore()
	svc := newTestIngestService(embedder, store, 10, 0)

	text := "aaaaaaaaaa" + "bbbbbFAILb" + "cccccccccc"
	_, err := svc.IngestUpload(context.Background(), "doc.txt", []byte(text))
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeExternalService))
	assert.Zero(t, store.upsertCalls)
	assert.Empty(t, store.chunks)
}

func TestIngestStoreFailure(t *testing.T) {
	store := newFakeStore()
	store.upsertErr = apperrors.NewSystemError(apperrors.ErrCodeStoreError, "写入失败")
	svc := newTestIngestService(&fakeEmbedder{}, store, 100, 10)

	_, err := svc.IngestUpload(context.Background(), "doc.txt", []byte("some content"))
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeStoreError))
}

func TestIngestFromPathChunkIDs(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := newFakeStore()
	svc := newTestIngestService(embedder, store, 10, 0)

	dir := t.TempDir()
	path := filepath.Join(dir, "queued.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("x", 25)), 0o644))

	result, err := svc.IngestFromPath(context.Background(), path, "original.txt")
	require.NoError(t, err)
	assert.Equal(t, IngestStatusOK, result.Status)
	assert.Equal(t, "original.txt", result.Filename)
	assert.Equal(t, 3, result.ChunkCount)

	// 监听路径的chunk ID为 {原文件名}__chunk_{序号}，重复入库会覆盖
	for i := 0; i < 3; i++ {
		id := "original.txt__chunk_" + string(rune('0'+i))
		chunk, ok := store.chunks[id]
		require.True(t, ok, id)
		assert.Equal(t, "original.txt", chunk.Source)
		assert.Equal(t, i, chunk.Index)
	}
}

func TestIngestFromPathDefaultName(t *testing.T) {
	svc := newTestIngestService(&fakeEmbedder{}, newFakeStore(), 100, 10)

	dir := t.TempDir()
	path := filepath.Join(dir, "plain.txt")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0o644))

	result, err := svc.IngestFromPath(context.Background(), path, "")
	require.NoError(t, err)
	assert.Equal(t, "plain.txt", result.Filename)
}

func TestIngestFromPathMissingFile(t *testing.T) {
	svc := newTestIngestService(&fakeEmbedder{}, newFakeStore(), 100, 10)

	_, err := svc.IngestFromPath(context.Background(), "/nonexistent/file.txt", "")
	require.Error(t, err)
}
