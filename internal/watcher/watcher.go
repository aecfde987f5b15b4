package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/raghub/backend-go/internal/logger"
	"github.com/raghub/backend-go/internal/services"
)

const (
	queueDirName = "queue"
	errorDirName = "error"
)

// Watcher 监听上传目录，发现新文档后等待写入稳定，
// 移入队列目录处理，失败的文件隔离到错误目录。
type Watcher struct {
	dir           string
	queueDir      string
	errorDir      string
	ingest        *services.IngestService
	pollPeriod    time.Duration
	stableTimeout time.Duration

	mu         sync.Mutex
	processing map[string]bool
}

// New 创建目录监听器并准备工作目录
func New(dir string, ingest *services.IngestService, pollPeriod, stableTimeout time.Duration) (*Watcher, error) {
	if pollPeriod <= 0 {
		pollPeriod = time.Second
	}
	if stableTimeout <= 0 {
		stableTimeout = 30 * time.Second
	}

	// 队列与隔离目录是监听目录的兄弟目录，不在监听范围内
	queueDir := filepath.Join(filepath.Dir(dir), queueDirName)
	errorDir := filepath.Join(filepath.Dir(dir), errorDirName)
	for _, d := range []string{dir, queueDir, errorDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("创建目录失败 %s: %w", d, err)
		}
	}

	return &Watcher{
		dir:           dir,
		queueDir:      queueDir,
		errorDir:      errorDir,
		ingest:        ingest,
		pollPeriod:    pollPeriod,
		stableTimeout: stableTimeout,
		processing:    make(map[string]bool),
	}, nil
}

// shouldIgnore 过滤隐藏文件、临时文件以及带处理标记的文件名
func shouldIgnore(name string) bool {
	if name == "" || strings.HasPrefix(name, ".") {
		return true
	}
	if strings.HasPrefix(name, "~") {
		return true
	}
	if strings.HasSuffix(name, ".tmp") || strings.HasSuffix(name, "~") {
		return true
	}
	// 双下划线是队列重命名的标记，避免二次处理
	if strings.Contains(name, "__") {
		return true
	}
	return false
}

// Run 启动监听循环，先处理目录中已有的文件，再消费文件系统事件。
// 阻塞直到ctx取消。
func (w *Watcher) Run(ctx context.Context) error {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("创建文件系统监听失败: %w", err)
	}
	defer fsWatcher.Close()

	if err := fsWatcher.Add(w.dir); err != nil {
		return fmt.Errorf("监听目录失败 %s: %w", w.dir, err)
	}

	logger.Info("目录监听已启动", zap.String("dir", w.dir))

	w.scanExisting(ctx)

	for {
		select {
		case <-ctx.Done():
			logger.Info("目录监听退出")
			return nil
		case event, ok := <-fsWatcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			w.maybeHandle(ctx, event.Name)
		case err, ok := <-fsWatcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("文件系统监听错误", zap.Error(err))
		}
	}
}

// scanExisting 处理启动前就已存在于目录中的文件
func (w *Watcher) scanExisting(ctx context.Context) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		logger.Warn("扫描目录失败", zap.String("dir", w.dir), zap.Error(err))
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		w.maybeHandle(ctx, filepath.Join(w.dir, entry.Name()))
	}
}

func (w *Watcher) maybeHandle(ctx context.Context, path string) {
	name := filepath.Base(path)
	if shouldIgnore(name) {
		return
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}

	w.mu.Lock()
	if w.processing[path] {
		w.mu.Unlock()
		return
	}
	w.processing[path] = true
	w.mu.Unlock()

	go func() {
		defer func() {
			w.mu.Lock()
			delete(w.processing, path)
			w.mu.Unlock()
		}()
		w.handleFile(ctx, path)
	}()
}

// handleFile 等待文件写入稳定后移入队列处理
func (w *Watcher) handleFile(ctx context.Context, path string) {
	name := filepath.Base(path)

	if !w.waitStable(ctx, path) {
		logger.Warn("文件长时间未写入完成，跳过", zap.String("file", name))
		return
	}

	// 带uuid前缀重命名进队列，避免同名文件互相覆盖
	queuedPath := filepath.Join(w.queueDir, fmt.Sprintf("%s__%s", uuid.New().String(), name))
	if err := os.Rename(path, queuedPath); err != nil {
		logger.Warn("移入队列失败", zap.String("file", name), zap.Error(err))
		return
	}

	result, err := w.ingest.IngestFromPath(ctx, queuedPath, name)
	if err != nil {
		logger.Error("文件入库失败，移入隔离目录",
			zap.String("file", name),
			zap.Error(err))
		w.quarantine(queuedPath, name)
		return
	}
	// 无可提取文本的文件同样隔离，留待人工检查
	if result.Status == services.IngestStatusEmpty {
		logger.Warn("文件无可提取文本，移入隔离目录", zap.String("file", name))
		w.quarantine(queuedPath, name)
		return
	}

	if err := os.Remove(queuedPath); err != nil {
		logger.Warn("清理队列文件失败", zap.String("file", name), zap.Error(err))
	}
	logger.Info("监听文件入库完成",
		zap.String("file", name),
		zap.String("status", result.Status),
		zap.Int("chunks", result.ChunkCount))
}

// waitStable 轮询文件大小，连续两次一致视为写入完成
func (w *Watcher) waitStable(ctx context.Context, path string) bool {
	deadline := time.Now().Add(w.stableTimeout)
	var lastSize int64 = -1

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(w.pollPeriod):
		}

		info, err := os.Stat(path)
		if err != nil {
			return false
		}
		if info.Size() == lastSize {
			return true
		}
		lastSize = info.Size()
	}
	return false
}

// quarantine 把处理失败的文件移到错误目录，保留队列中的文件名
func (w *Watcher) quarantine(queuedPath, originalName string) {
	errorPath := filepath.Join(w.errorDir, filepath.Base(queuedPath))
	if err := os.Rename(queuedPath, errorPath); err != nil {
		logger.Error("隔离文件失败",
			zap.String("file", originalName),
			zap.Error(err))
		return
	}
	if m := services.GetMetricsService(); m != nil {
		m.WatcherQuarantine.Inc()
	}
}
