package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorWrapping(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := NewExternalError(ErrCodeExternalService, "模型服务不可达").WithCause(cause)

	assert.Contains(t, err.Error(), "connection refused")
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsCode(err, ErrCodeExternalService))
	assert.False(t, IsCode(err, ErrCodeStoreError))
}

func TestIsCodeThroughWrapping(t *testing.T) {
	inner := NewValidationError(ErrCodeUnsupportedFormat, "不支持的文件类型")
	wrapped := fmt.Errorf("上传失败: %w", inner)

	assert.True(t, IsCode(wrapped, ErrCodeUnsupportedFormat))
	assert.False(t, IsCode(errors.New("plain"), ErrCodeUnsupportedFormat))
}

func TestGetAppErrorFallback(t *testing.T) {
	plain := errors.New("some failure")
	appErr := GetAppError(plain)

	require.NotNil(t, appErr)
	assert.Equal(t, ErrCodeInternalServer, appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, appErr.HTTPCode)
	assert.ErrorIs(t, appErr, plain)
}

func TestHTTPCodeMapping(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, NewUnsupportedFormatError(".png").HTTPCode)
	assert.Equal(t, http.StatusBadRequest, NewParseError("a.pdf", nil).HTTPCode)
	assert.Equal(t, http.StatusNotFound, NewNotFoundError("session").HTTPCode)
	assert.Equal(t, http.StatusInternalServerError, NewSystemError(ErrCodeStoreError, "x").HTTPCode)
}

func TestPublicMessageHidesInternalDetail(t *testing.T) {
	storeErr := NewSystemError(ErrCodeStoreError, "milvus upsert failed at host 10.0.0.3").WithCause(errors.New("grpc unavailable"))
	msg := PublicMessage(storeErr)
	assert.NotContains(t, msg, "10.0.0.3")
	assert.NotContains(t, msg, "grpc")

	validationErr := NewValidationError(ErrCodeMissingRequired, "question不能为空")
	assert.Equal(t, "question不能为空", PublicMessage(validationErr))
}
