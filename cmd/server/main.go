package main

import (
	"context"
	"fmt"
	"os"

	"github.com/beego/beego/v2/server/web"
	"go.uber.org/zap"

	"github.com/raghub/backend-go/app/bootstrap"
	"github.com/raghub/backend-go/internal/config"
	"github.com/raghub/backend-go/internal/logger"
	"github.com/raghub/backend-go/internal/services"
	"github.com/raghub/backend-go/internal/watcher"
)

func main() {
	if err := bootstrap.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "服务启动失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg := config.GetConfig()

	// 目录监听随服务一起运行，监听失败不阻断HTTP服务
	w, err := watcher.New(
		cfg.WatchDir(),
		services.GetIngestService(),
		cfg.Watch.StablePollPeriod,
		cfg.Watch.StableTimeout,
	)
	if err != nil {
		logger.Warn("目录监听初始化失败，仅提供HTTP上传", zap.Error(err))
	} else {
		go func() {
			if runErr := w.Run(context.Background()); runErr != nil {
				logger.Error("目录监听退出", zap.Error(runErr))
			}
		}()
	}

	// 控制器需要直接读取请求体
	web.BConfig.CopyRequestBody = true
	web.BConfig.MaxMemory = 64 << 20

	logger.Info("HTTP服务启动", zap.Int("port", cfg.Server.Port))
	web.Run(fmt.Sprintf(":%d", cfg.Server.Port))
}
