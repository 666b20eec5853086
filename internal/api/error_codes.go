// internal/api/error_codes.go
package api

// API错误代码常量
const (
	// 通用错误
	ErrorBadRequest    = "BAD_REQUEST"
	ErrorNotFound      = "NOT_FOUND"
	ErrorInternalError = "INTERNAL_ERROR"
	ErrorConflict      = "CONFLICT"
	ErrorTimeout       = "TIMEOUT"

	// 转录稿相关错误
	ErrorTranscriptInvalid = "TRANSCRIPT_INVALID"
	ErrorFileUploadFailed  = "FILE_UPLOAD_FAILED"

	// 生成相关错误
	ErrorGenerationInProgress = "GENERATION_IN_PROGRESS"
	ErrorGenerationInvalid    = "GENERATION_INVALID"
	ErrorUpstreamError        = "UPSTREAM_ERROR"
	ErrorAssetsNotFound       = "ASSETS_NOT_FOUND"
	ErrorTaskNotFound         = "TASK_NOT_FOUND"

	// 聊天相关错误
	ErrorChatSessionNotFound = "CHAT_SESSION_NOT_FOUND"
	ErrorChatFailed          = "CHAT_FAILED"

	// LLM服务相关错误
	ErrorLLMConfigInvalid   = "LLM_CONFIG_INVALID"
	ErrorLLMProviderMissing = "LLM_PROVIDER_MISSING"
	ErrorAPIKeyMissing      = "API_KEY_MISSING"

	// 导出相关错误
	ErrorExportFailed        = "EXPORT_FAILED"
	ErrorExportFormatInvalid = "EXPORT_FORMAT_INVALID"
)
