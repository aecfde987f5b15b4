package middleware

import (
	"net/http"

	beecontext "github.com/beego/beego/v2/server/web/context"
)

// allowedOrigins 允许跨域的来源，由路由初始化时注入
var allowedOrigins []string

// SetAllowedOrigins 设置允许跨域的来源列表
func SetAllowedOrigins(origins []string) {
	allowedOrigins = origins
}

// CORSMiddleware 跨域过滤器，挂在BeforeRouter阶段
func CORSMiddleware(ctx *beecontext.Context) {
	origin := ctx.Input.Header("Origin")
	if origin == "" {
		return
	}

	allowed := ""
	for _, candidate := range allowedOrigins {
		if candidate == "*" || candidate == origin {
			allowed = origin
			break
		}
	}
	if allowed == "" {
		return
	}

	ctx.Output.Header("Access-Control-Allow-Origin", allowed)
	ctx.Output.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	ctx.Output.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
	ctx.Output.Header("Access-Control-Allow-Credentials", "true")

	// 预检请求直接返回
	if ctx.Input.Method() == http.MethodOptions {
		ctx.Output.SetStatus(http.StatusNoContent)
		_ = ctx.Output.Body(nil)
	}
}
