package controllers

import (
	"io"
	"net/http"

	"go.uber.org/zap"

	apperrors "github.com/raghub/backend-go/internal/errors"
	"github.com/raghub/backend-go/internal/logger"
	"github.com/raghub/backend-go/internal/services"
)

// DocumentController 文档上传入库接口
type DocumentController struct {
	BaseController
}

// Upload 处理multipart文档上传
// POST /api/upload
func (c *DocumentController) Upload() {
	file, header, err := c.GetFile("file")
	if err != nil {
		c.JSONAppError(apperrors.NewValidationError(apperrors.ErrCodeMissingRequired, "缺少file字段"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSONError(http.StatusBadRequest, "读取上传文件失败")
		return
	}
	if len(data) == 0 {
		c.JSONAppError(apperrors.NewValidationError(apperrors.ErrCodeMissingRequired, "上传文件为空"))
		return
	}

	logger.Info("收到文档上传",
		zap.String("filename", header.Filename),
		zap.Int64("size", header.Size),
		zap.String("ip", c.getClientIP()))

	result, err := services.GetIngestService().IngestUpload(c.Ctx.Request.Context(), header.Filename, data)
	if err != nil {
		logger.Error("文档入库失败",
			zap.String("filename", header.Filename),
			zap.Error(err))
		c.JSONAppError(err)
		return
	}

	c.JSONSuccess(result)
}
