// internal/errors/errors.go
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType 定义错误类型
type ErrorType string

const (
	// 通用错误类型
	ErrorTypeValidation ErrorType = "validation_error"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeError      ErrorType = "processing_error"
	ErrorTypeConflict   ErrorType = "conflict"
	ErrorTypeTimeout    ErrorType = "timeout"

	// 生成链路错误类型
	ErrorTypeConfiguration    ErrorType = "configuration_error"
	ErrorTypeUpstream         ErrorType = "upstream_error"
	ErrorTypeEmptyResponse    ErrorType = "empty_response"
	ErrorTypeSchemaValidation ErrorType = "schema_validation_error"

	// 聊天链路错误类型
	ErrorTypeChat ErrorType = "chat_error"
)

// GenericFailureMessage 在错误没有可展示的消息时使用
const GenericFailureMessage = "An unexpected error occurred during processing."

// AppError 应用程序错误结构
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
	Code    string // 用户友好的错误代码
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap 实现错误链接
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError 创建新的 AppError
func NewAppError(errType ErrorType, message string, originalError error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Err:     originalError,
		Code:    generateErrorCode(errType),
	}
}

// NewValidationError 创建验证错误
func NewValidationError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeValidation, message, originalError)
}

// NewNotFoundError 创建未找到错误
func NewNotFoundError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeNotFound, message, originalError)
}

// NewProcessingError 创建处理错误
func NewProcessingError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeError, message, originalError)
}

// NewConflictError 创建冲突错误
func NewConflictError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeConflict, message, originalError)
}

// NewTimeoutError 创建超时错误
func NewTimeoutError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeTimeout, message, originalError)
}

// NewConfigurationError 缺少凭据等配置问题，不会重试
func NewConfigurationError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeConfiguration, message, originalError)
}

// NewUpstreamError 模型服务调用失败（网络、鉴权、配额）
func NewUpstreamError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeUpstream, message, originalError)
}

// NewEmptyResponseError 调用成功但没有返回内容
func NewEmptyResponseError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeEmptyResponse, message, originalError)
}

// NewSchemaValidationError 返回内容无法解析为预期结构
func NewSchemaValidationError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeSchemaValidation, message, originalError)
}

// NewChatError 单条聊天消息发送失败
func NewChatError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeChat, message, originalError)
}

// TypeOf 返回错误链中第一个 AppError 的类型
func TypeOf(err error) (ErrorType, bool) {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError.Type, true
	}
	return "", false
}

func isType(err error, errType ErrorType) bool {
	t, ok := TypeOf(err)
	return ok && t == errType
}

// IsValidationError 检查是否为验证错误
func IsValidationError(err error) bool {
	return isType(err, ErrorTypeValidation)
}

// IsNotFoundError 检查是否为未找到错误
func IsNotFoundError(err error) bool {
	return isType(err, ErrorTypeNotFound)
}

// IsConflictError 检查是否为冲突错误
func IsConflictError(err error) bool {
	return isType(err, ErrorTypeConflict)
}

// IsTimeoutError 检查是否为超时错误
func IsTimeoutError(err error) bool {
	return isType(err, ErrorTypeTimeout)
}

// IsConfigurationError 检查是否为配置错误
func IsConfigurationError(err error) bool {
	return isType(err, ErrorTypeConfiguration)
}

// IsUpstreamError 检查是否为上游错误
func IsUpstreamError(err error) bool {
	return isType(err, ErrorTypeUpstream)
}

// IsEmptyResponseError 检查是否为空响应错误
func IsEmptyResponseError(err error) bool {
	return isType(err, ErrorTypeEmptyResponse)
}

// IsSchemaValidationError 检查是否为结构校验错误
func IsSchemaValidationError(err error) bool {
	return isType(err, ErrorTypeSchemaValidation)
}

// IsChatError 检查是否为聊天错误
func IsChatError(err error) bool {
	return isType(err, ErrorTypeChat)
}

// IsGenerationError 生成链路上的四类错误都算 GenerationError
func IsGenerationError(err error) bool {
	t, ok := TypeOf(err)
	if !ok {
		return false
	}
	switch t {
	case ErrorTypeConfiguration, ErrorTypeUpstream, ErrorTypeEmptyResponse, ErrorTypeSchemaValidation:
		return true
	default:
		return false
	}
}

// UserMessage 返回可以直接展示给用户的消息
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var appError *AppError
	if errors.As(err, &appError) {
		if msg := strings.TrimSpace(appError.Message); msg != "" {
			return msg
		}
	}

	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return GenericFailureMessage
}

// generateErrorCode 根据错误类型生成错误代码
func generateErrorCode(errType ErrorType) string {
	switch errType {
	case ErrorTypeValidation:
		return "VALIDATION_ERROR"
	case ErrorTypeNotFound:
		return "NOT_FOUND"
	case ErrorTypeError:
		return "PROCESSING_ERROR"
	case ErrorTypeConflict:
		return "CONFLICT"
	case ErrorTypeTimeout:
		return "TIMEOUT"
	case ErrorTypeConfiguration:
		return "CONFIGURATION_ERROR"
	case ErrorTypeUpstream:
		return "UPSTREAM_ERROR"
	case ErrorTypeEmptyResponse:
		return "EMPTY_RESPONSE"
	case ErrorTypeSchemaValidation:
		return "SCHEMA_VALIDATION_ERROR"
	case ErrorTypeChat:
		return "CHAT_ERROR"
	default:
		return "UNKNOWN_ERROR"
	}
}

// WrapError 包装现有错误
func WrapError(err error, message string, errType ErrorType) error {
	if err == nil {
		return nil
	}

	var appError *AppError
	if errors.As(err, &appError) {
		// 如果已经是 AppError，只更新消息
		return &AppError{
			Type:    appError.Type,
			Message: fmt.Sprintf("%s: %s", message, appError.Message),
			Err:     appError,
			Code:    appError.Code,
		}
	}

	// 否则创建新的 AppError
	return NewAppError(errType, message, err)
}
