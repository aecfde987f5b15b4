package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode 错误码类型
type ErrorCode string

// 预定义错误码
const (
	// 通用错误
	ErrCodeInternalServer ErrorCode = "INTERNAL_SERVER_ERROR"
	ErrCodeBadRequest     ErrorCode = "BAD_REQUEST"
	ErrCodeNotFound       ErrorCode = "NOT_FOUND"

	// 验证错误
	ErrCodeMissingRequired ErrorCode = "MISSING_REQUIRED"
	ErrCodeConfiguration   ErrorCode = "CONFIGURATION_ERROR"

	// 文档解析错误
	ErrCodeUnsupportedFormat ErrorCode = "UNSUPPORTED_FORMAT"
	ErrCodeParseError        ErrorCode = "PARSE_ERROR"

	// 模型服务错误
	ErrCodeInvalidEmbedding ErrorCode = "INVALID_EMBEDDING"
	ErrCodeExternalService  ErrorCode = "EXTERNAL_SERVICE_ERROR"

	// 向量存储错误
	ErrCodeStoreError ErrorCode = "STORE_ERROR"
)

// ErrorType 错误类型
type ErrorType int

const (
	ErrorTypeSystem ErrorType = iota
	ErrorTypeBusiness
	ErrorTypeValidation
	ErrorTypeExternal
)

// AppError 应用错误结构体
type AppError struct {
	Code     ErrorCode `json:"code"`
	Message  string    `json:"message"`
	Type     ErrorType `json:"type"`
	HTTPCode int       `json:"-"`
	Cause    error     `json:"-"`
}

// Error 实现error接口
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap 返回底层错误
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithCause 添加错误原因
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// 错误构造函数

// NewSystemError 创建系统错误
func NewSystemError(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:     code,
		Message:  message,
		Type:     ErrorTypeSystem,
		HTTPCode: http.StatusInternalServerError,
	}
}

// NewValidationError 创建验证错误
func NewValidationError(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:     code,
		Message:  message,
		Type:     ErrorTypeValidation,
		HTTPCode: http.StatusBadRequest,
	}
}

// NewExternalError 创建外部服务错误
func NewExternalError(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:     code,
		Message:  message,
		Type:     ErrorTypeExternal,
		HTTPCode: http.StatusInternalServerError,
	}
}

// NewUnsupportedFormatError 创建不支持文件格式错误
func NewUnsupportedFormatError(ext string) *AppError {
	return &AppError{
		Code:     ErrCodeUnsupportedFormat,
		Message:  fmt.Sprintf("不支持的文件类型: %s", ext),
		Type:     ErrorTypeValidation,
		HTTPCode: http.StatusBadRequest,
	}
}

// NewParseError 创建文件解析错误
func NewParseError(filename string, cause error) *AppError {
	return &AppError{
		Code:     ErrCodeParseError,
		Message:  fmt.Sprintf("文件解析失败: %s", filename),
		Type:     ErrorTypeValidation,
		HTTPCode: http.StatusBadRequest,
		Cause:    cause,
	}
}

// NewNotFoundError 创建资源未找到错误
func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Code:     ErrCodeNotFound,
		Message:  fmt.Sprintf("%s not found", resource),
		Type:     ErrorTypeBusiness,
		HTTPCode: http.StatusNotFound,
	}
}

// IsCode 检查错误链中是否包含指定错误码
func IsCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// GetAppError 获取AppError，如果不是则包装为系统错误
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return NewSystemError(ErrCodeInternalServer, "Internal server error").WithCause(err)
}

// PublicMessage 返回可以暴露给调用方的错误信息。
// 系统内部错误（存储、内部异常）不透出具体原因，只返回通用消息。
func PublicMessage(err error) string {
	appErr := GetAppError(err)
	switch appErr.Type {
	case ErrorTypeSystem:
		if appErr.Code == ErrCodeStoreError {
			return "检索服务暂不可用（retrieval error）"
		}
		return "内部错误（internal error）"
	default:
		return appErr.Message
	}
}
