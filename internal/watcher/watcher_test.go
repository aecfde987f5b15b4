package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raghub/backend-go/internal/knowledge"
	"github.com/raghub/backend-go/internal/services"
)

type stubEmbedder struct{}

func (stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{float32(len(text)), 1}, nil
}

func (stubEmbedder) Ready() bool { return true }

func newTestWatcher(t *testing.T) (*Watcher, string, knowledge.VectorStore) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "uploads")
	store := knowledge.NewMemoryVectorStore()
	chunker, err := knowledge.NewChunker(1000, 100)
	require.NoError(t, err)

	ingest := services.NewIngestService(knowledge.NewFileParserManager(),
		chunker, chunker, stubEmbedder{}, store, "")

	w, err := New(dir, ingest, 10*time.Millisecond, time.Second)
	require.NoError(t, err)
	return w, dir, store
}

func TestShouldIgnore(t *testing.T) {
	tests := []struct {
		name   string
		ignore bool
	}{
		{"document.txt", false},
		{"report.pdf", false},
		{".hidden", true},
		{".DS_Store", true},
		{"upload.tmp", true},
		{"draft.txt~", true},
		{"~lock.docx", true},
		{"queued__file.txt", true},
		{"a__b", true},
		{"", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.ignore, shouldIgnore(tt.name), tt.name)
	}
}

func TestWatcherCreatesWorkDirs(t *testing.T) {
	_, dir, _ := newTestWatcher(t)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	// 队列与隔离目录在监听目录之外，同级并列
	for _, sub := range []string{queueDirName, errorDirName} {
		info, err := os.Stat(filepath.Join(filepath.Dir(dir), sub))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestMaybeHandleDeduplicatesByPath(t *testing.T) {
	w, dir, _ := newTestWatcher(t)

	path := filepath.Join(dir, "busy.txt")
	require.NoError(t, os.WriteFile(path, []byte("内容"), 0o644))

	// 同一路径正在处理时，重复事件不触发第二次处理
	w.mu.Lock()
	w.processing[path] = true
	w.mu.Unlock()

	w.maybeHandle(context.Background(), path)

	time.Sleep(150 * time.Millisecond)
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestWaitStable(t *testing.T) {
	w, dir, _ := newTestWatcher(t)

	path := filepath.Join(dir, "stable.txt")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0o644))

	assert.True(t, w.waitStable(context.Background(), path))
}

func TestWaitStableTimeout(t *testing.T) {
	dir := t.TempDir()
	w := &Watcher{pollPeriod: 10 * time.Millisecond, stableTimeout: time.Millisecond}

	path := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	assert.False(t, w.waitStable(context.Background(), path))
}

func TestWaitStableMissingFile(t *testing.T) {
	w, dir, _ := newTestWatcher(t)
	assert.False(t, w.waitStable(context.Background(), filepath.Join(dir, "gone.txt")))
}

func TestHandleFileSuccess(t *testing.T) {
	w, dir, store := newTestWatcher(t)

	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("一段用于入库的文本"), 0o644))

	w.handleFile(context.Background(), path)

	// 原文件已移走，队列中无残留
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	entries, err := os.ReadDir(filepath.Join(filepath.Dir(dir), queueDirName))
	require.NoError(t, err)
	assert.Empty(t, entries)

	// 内容已入库，来源为原始文件名
	matches, err := store.Search(context.Background(), []float32{1, 1}, 5)
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.Equal(t, "notes.txt", matches[0].Source)
	assert.Equal(t, "notes.txt__chunk_0", matches[0].ID)
}

func TestHandleFileQuarantine(t *testing.T) {
	w, dir, _ := newTestWatcher(t)

	// 不支持的格式会入库失败，文件按队列名进隔离目录
	path := filepath.Join(dir, "photo.png")
	require.NoError(t, os.WriteFile(path, []byte("binary"), 0o644))

	w.handleFile(context.Background(), path)

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	entries, err := os.ReadDir(filepath.Join(filepath.Dir(dir), errorDirName))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasSuffix(entries[0].Name(), "__photo.png"))
}

func TestHandleFileEmptyQuarantine(t *testing.T) {
	w, dir, _ := newTestWatcher(t)

	// 无可提取文本的文件同样隔离
	path := filepath.Join(dir, "blank.txt")
	require.NoError(t, os.WriteFile(path, []byte("   \n\t  "), 0o644))

	w.handleFile(context.Background(), path)

	entries, err := os.ReadDir(filepath.Join(filepath.Dir(dir), errorDirName))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasSuffix(entries[0].Name(), "__blank.txt"))

	queue, err := os.ReadDir(filepath.Join(filepath.Dir(dir), queueDirName))
	require.NoError(t, err)
	assert.Empty(t, queue)
}

func TestRunProcessesExistingFile(t *testing.T) {
	w, dir, store := newTestWatcher(t)

	path := filepath.Join(dir, "preexisting.txt")
	require.NoError(t, os.WriteFile(path, []byte("监听启动前就存在的文件"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool {
		matches, err := store.Search(context.Background(), []float32{1, 1}, 1)
		return err == nil && len(matches) > 0
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
