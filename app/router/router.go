package router

import (
	"github.com/beego/beego/v2/server/web"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/raghub/backend-go/app/controllers"
	"github.com/raghub/backend-go/app/middleware"
	"github.com/raghub/backend-go/internal/config"
)

// Init registers all routes. Must be called after config is loaded.
func Init() {
	web.Router("/", &controllers.RootController{}, "get:Index")
	web.Router("/health", &controllers.HealthController{}, "get:Health")

	middleware.SetAllowedOrigins(config.GetConfig().Server.AllowOrigins)
	web.InsertFilter("/*", web.BeforeRouter, middleware.CORSMiddleware)

	// 文档入库路由
	documentController := &controllers.DocumentController{}
	web.Router("/api/upload", documentController, "post:Upload")

	// 问答与会话路由
	chatController := &controllers.ChatController{}
	web.Router("/api/ask", chatController, "post:Ask")
	web.Router("/api/clear_session", chatController, "post:ClearSession")
	web.Router("/api/list_sessions", chatController, "get:ListSessions")

	// 状态路由
	statusController := &controllers.StatusController{}
	web.Router("/api/status", statusController, "get:Status")

	// Prometheus指标
	web.Handler("/metrics", promhttp.Handler())
}
