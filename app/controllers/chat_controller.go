package controllers

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	apperrors "github.com/raghub/backend-go/internal/errors"
	"github.com/raghub/backend-go/internal/logger"
	"github.com/raghub/backend-go/internal/services"
)

// ChatController 检索问答与会话管理接口
type ChatController struct {
	BaseController
}

// askRequest 问答请求体
type askRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id"`
}

// sessionRequest 会话操作请求体
type sessionRequest struct {
	SessionID string `json:"session_id"`
}

// Ask 执行一次检索增强问答
// POST /api/ask
func (c *ChatController) Ask() {
	var req askRequest
	if strings.Contains(c.Ctx.Input.Header("Content-Type"), "application/json") {
		if err := json.Unmarshal(c.Ctx.Input.RequestBody, &req); err != nil {
			c.JSONError(http.StatusBadRequest, "无效的请求体")
			return
		}
	}
	// 兼容form提交
	if req.Query == "" {
		req.Query = c.GetString("query")
	}
	if req.SessionID == "" {
		req.SessionID = c.GetString("session_id")
	}
	if strings.TrimSpace(req.Query) == "" {
		c.JSONAppError(apperrors.NewValidationError(apperrors.ErrCodeMissingRequired, "query不能为空"))
		return
	}

	result, err := services.GetQueryService().Ask(c.Ctx.Request.Context(), req.SessionID, req.Query)
	if err != nil {
		logger.Error("问答失败",
			zap.String("session_id", req.SessionID),
			zap.Error(err))
		c.JSONAppError(err)
		return
	}

	c.JSONSuccess(result)
}

// ClearSession 清空指定会话的历史
// POST /api/clear_session
func (c *ChatController) ClearSession() {
	var req sessionRequest
	if strings.Contains(c.Ctx.Input.Header("Content-Type"), "application/json") {
		if err := json.Unmarshal(c.Ctx.Input.RequestBody, &req); err != nil {
			c.JSONError(http.StatusBadRequest, "无效的请求体")
			return
		}
	}
	if req.SessionID == "" {
		req.SessionID = c.GetString("session_id")
	}

	existed := services.GetSessionService().Clear(req.SessionID)
	status, msg := "ok", "会话已清空"
	if !existed {
		status, msg = "not_found", "会话不存在"
	}
	c.JSONSuccess(map[string]interface{}{
		"status": status,
		"msg":    msg,
	})
}

// ListSessions 列出当前所有会话ID
// GET /api/list_sessions
func (c *ChatController) ListSessions() {
	c.JSONSuccess(map[string]interface{}{
		"sessions": services.GetSessionService().ListSessions(),
	})
}
