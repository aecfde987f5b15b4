package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/raghub/backend-go/app/bootstrap"
	"github.com/raghub/backend-go/internal/config"
	"github.com/raghub/backend-go/internal/logger"
	"github.com/raghub/backend-go/internal/services"
	"github.com/raghub/backend-go/internal/watcher"
)

func main() {
	if err := bootstrap.InitCore(); err != nil {
		fmt.Fprintf(os.Stderr, "监听进程启动失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg := config.GetConfig()

	w, err := watcher.New(
		cfg.WatchDir(),
		services.GetIngestService(),
		cfg.Watch.StablePollPeriod,
		cfg.Watch.StableTimeout,
	)
	if err != nil {
		logger.Fatal("创建目录监听失败", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := w.Run(ctx); err != nil {
		logger.Fatal("目录监听异常退出", zap.Error(err))
	}
}
