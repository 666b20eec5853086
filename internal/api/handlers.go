// internal/api/handlers.go
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/Corphon/PodcastContentFactory/internal/errors"
	"github.com/Corphon/PodcastContentFactory/internal/models"
	"github.com/Corphon/PodcastContentFactory/internal/services"
	"github.com/Corphon/PodcastContentFactory/internal/utils"
)

// Handler 处理API请求
type Handler struct {
	Project     *services.ProjectController // 生成状态机与聊天会话
	Transcripts *services.TranscriptService // 转录稿读取
	LLM         *services.LLMService        // 模型调用
	Config      *services.ConfigService     // 运行时配置
	Exports     *services.ExportService     // 导出
	Progress    *services.ProgressService   // 进度跟踪
	Metrics     *utils.APIMetrics           // 指标
	Stats       *services.StatsService      // 用量统计，可为 nil
	WebSockets  *WebSocketManager           // 聊天通道
	Response    *ResponseHelper             // 响应助手
}

// NewHandler 创建API处理器，并把项目状态变化推送到 WebSocket 客户端
func NewHandler(
	project *services.ProjectController,
	transcripts *services.TranscriptService,
	llmService *services.LLMService,
	configService *services.ConfigService,
	exports *services.ExportService,
	metrics *utils.APIMetrics,
) *Handler {
	h := &Handler{
		Project:     project,
		Transcripts: transcripts,
		LLM:         llmService,
		Config:      configService,
		Exports:     exports,
		Progress:    project.Progress(),
		Metrics:     metrics,
		WebSockets:  NewWebSocketManager(),
		Response:    NewResponseHelper(),
	}

	project.OnStatusChange(func(state models.ProjectState) {
		h.WebSockets.Broadcast(statusMessage(state))
	})
	return h
}

// Close 停止 WebSocket 管理器
func (h *Handler) Close() {
	h.WebSockets.Shutdown()
}

// GenerateRequest 生成请求
type GenerateRequest struct {
	Transcript string `json:"transcript"`
}

// ChatRequest 聊天请求
type ChatRequest struct {
	Message string `json:"message"`
}

// UpdateLLMConfigRequest 切换提供者/密钥/模型
type UpdateLLMConfigRequest struct {
	Provider string            `json:"provider"`
	Config   map[string]string `json:"config" binding:"required"`
}

// ------------------------------------------------
// 系统状态
// ------------------------------------------------

// HealthCheck 存活检查，附带 LLM 就绪状态
func (h *Handler) HealthCheck(c *gin.Context) {
	ready, readyState := h.LLM.GetProviderStatus()
	state := h.Project.State()

	h.Response.Success(c, gin.H{
		"status":         "ok",
		"llm_ready":      ready,
		"llm_state":      readyState,
		"provider":       h.LLM.GetProviderName(),
		"project_status": state.Status,
		"time":           time.Now().Format(time.RFC3339),
	})
}

// GetMetrics 指标快照
func (h *Handler) GetMetrics(c *gin.Context) {
	snapshot := h.Metrics.Collector().GetMetrics()
	snapshot["websocket"] = h.WebSockets.GetStatus()
	h.Response.Success(c, snapshot)
}

// GetUsageStats 模型调用用量
func (h *Handler) GetUsageStats(c *gin.Context) {
	if h.Stats == nil {
		h.Response.NotFound(c, ErrorNotFound, "Usage statistics are not enabled")
		return
	}
	h.Response.Success(c, h.Stats.GetUsageStats())
}

// ------------------------------------------------
// LLM 配置
// ------------------------------------------------

// GetLLMStatus 获取LLM服务状态
func (h *Handler) GetLLMStatus(c *gin.Context) {
	cfg := h.Config.GetCurrentConfig()
	ready, readyState := h.LLM.GetProviderStatus()

	h.Response.Success(c, gin.H{
		"ready":    ready,
		"status":   readyState,
		"provider": h.LLM.GetProviderName(),
		"model":    h.LLM.GetDefaultModel(),
		"config": gin.H{
			"provider":    cfg.LLMProvider,
			"has_api_key": cfg.APIKey() != "",
		},
	})
}

// GetLLMProviders 已注册的提供者及其模型
func (h *Handler) GetLLMProviders(c *gin.Context) {
	names := h.LLM.ListProviders()
	providers := make([]gin.H, 0, len(names))
	for _, name := range names {
		providers = append(providers, gin.H{
			"name":   name,
			"models": h.LLM.SupportedModels(name),
		})
	}

	h.Response.Success(c, gin.H{
		"current":   h.LLM.GetProviderName(),
		"providers": providers,
	})
}

// UpdateLLMConfig 更新LLM配置；LLMService 通过订阅立即生效
func (h *Handler) UpdateLLMConfig(c *gin.Context) {
	var req UpdateLLMConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "Invalid request body.", err.Error())
		return
	}

	if err := h.Config.UpdateLLMConfig(req.Provider, req.Config, "web_api"); err != nil {
		if apperrors.IsValidationError(err) {
			h.Response.Error(c, http.StatusBadRequest, ErrorLLMConfigInvalid, apperrors.UserMessage(err))
			return
		}
		h.Response.AppError(c, err)
		return
	}

	ready, readyState := h.LLM.GetProviderStatus()
	h.Response.Success(c, gin.H{
		"ready":    ready,
		"status":   readyState,
		"provider": h.LLM.GetProviderName(),
		"model":    h.LLM.GetDefaultModel(),
	}, "LLM configuration updated")
}

// GetConfigHistory 最近的配置变更（密钥已脱敏）
func (h *Handler) GetConfigHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	h.Response.Success(c, h.Config.GetChangeHistory(limit))
}

// ------------------------------------------------
// 转录稿
// ------------------------------------------------

// UploadTranscript 上传转录稿文件，返回文本内容
func (h *Handler) UploadTranscript(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		h.Response.Error(c, http.StatusBadRequest, ErrorFileUploadFailed, "No file uploaded.", err.Error())
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.Response.Error(c, http.StatusBadRequest, ErrorFileUploadFailed, "Failed to read uploaded file.", err.Error())
		return
	}
	defer file.Close()

	text, err := h.Transcripts.ReadUpload(fileHeader.Filename, fileHeader.Size, file)
	if err != nil {
		h.Response.Error(c, http.StatusBadRequest, ErrorTranscriptInvalid, apperrors.UserMessage(err))
		return
	}

	h.Response.Success(c, gin.H{
		"filename":   fileHeader.Filename,
		"bytes":      len(text),
		"transcript": text,
	}, "Transcript loaded")
}

// ------------------------------------------------
// 生成
// ------------------------------------------------

// bindTranscript 读取请求体中的转录稿
func (h *Handler) bindTranscript(c *gin.Context) (string, bool) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "Invalid request body.", err.Error())
		return "", false
	}
	return req.Transcript, true
}

// GenerateAssets 同步生成，完成后返回项目状态
func (h *Handler) GenerateAssets(c *gin.Context) {
	transcript, ok := h.bindTranscript(c)
	if !ok {
		return
	}

	state, err := h.Project.Start(c.Request.Context(), transcript)
	if err != nil {
		h.writeGenerationError(c, err)
		return
	}
	h.Response.Success(c, state, "Assets generated")
}

// GenerateAssetsAsync 后台生成，返回任务ID，进度通过 SSE 订阅
func (h *Handler) GenerateAssetsAsync(c *gin.Context) {
	transcript, ok := h.bindTranscript(c)
	if !ok {
		return
	}

	taskID, err := h.Project.StartAsync(transcript)
	if err != nil {
		h.writeGenerationError(c, err)
		return
	}

	h.Response.Accepted(c, gin.H{
		"task_id":      taskID,
		"progress_url": "/api/progress/" + taskID,
	}, "Generation started")
}

// writeGenerationError 生成失败或被拒绝
func (h *Handler) writeGenerationError(c *gin.Context, err error) {
	if apperrors.IsConflictError(err) {
		h.Response.Error(c, http.StatusConflict, ErrorGenerationInProgress, apperrors.UserMessage(err))
		return
	}
	if apperrors.IsValidationError(err) {
		h.Response.Error(c, http.StatusBadRequest, ErrorTranscriptInvalid, apperrors.UserMessage(err))
		return
	}
	h.Response.AppError(c, err)
}

// SubscribeProgress SSE 进度订阅
func (h *Handler) SubscribeProgress(c *gin.Context) {
	taskID := c.Param("taskID")

	tracker, exists := h.Progress.GetTracker(taskID)
	if !exists {
		h.Response.NotFound(c, ErrorTaskNotFound, "Task not found.")
		return
	}

	// 设置SSE响应头
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	clientGone := c.Request.Context().Done()

	updateChan := tracker.Subscribe()
	defer tracker.Unsubscribe(updateChan)

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	fmt.Fprintf(c.Writer, "event: connected\ndata: {\"task_id\":%q}\n\n", taskID)
	c.Writer.Flush()

	// 订阅时会先收到当前状态，已结束的任务也能拿到最终结果
	for {
		select {
		case <-clientGone:
			return
		case update, ok := <-updateChan:
			if !ok {
				return
			}
			writeProgressEvent(c, update)
			if update.Status == services.TaskCompleted || update.Status == services.TaskFailed {
				return
			}
		case <-ticker.C:
			fmt.Fprintf(c.Writer, "event: heartbeat\ndata: {\"time\":%d}\n\n", time.Now().Unix())
			c.Writer.Flush()
		}
	}
}

func writeProgressEvent(c *gin.Context, update services.ProgressUpdate) {
	data, _ := json.Marshal(update)
	fmt.Fprintf(c.Writer, "event: progress\ndata: %s\n\n", string(data))
	c.Writer.Flush()
}

// ------------------------------------------------
// 项目
// ------------------------------------------------

// GetProject 当前项目状态
func (h *Handler) GetProject(c *gin.Context) {
	state := h.Project.State()
	if c.Query("include_transcript") != "true" {
		state.Transcript = ""
	}
	h.Response.Success(c, state)
}

// ResetProject 回到 IDLE
func (h *Handler) ResetProject(c *gin.Context) {
	state, err := h.Project.Reset()
	if err != nil {
		h.writeGenerationError(c, err)
		return
	}
	h.Response.Success(c, state, "Project reset")
}

// GetDossier 导出素材包；save=true 时同时保存到数据目录并返回 JSON 结果
func (h *Handler) GetDossier(c *gin.Context) {
	format, err := models.ParseExportFormat(c.Query("format"))
	if err != nil {
		h.Response.Error(c, http.StatusBadRequest, ErrorExportFormatInvalid, err.Error())
		return
	}
	save := c.Query("save") == "true"

	result, err := h.Exports.Export(h.Project.State(), format, save)
	if err != nil {
		if apperrors.IsNotFoundError(err) {
			h.Response.NotFound(c, ErrorAssetsNotFound, apperrors.UserMessage(err))
			return
		}
		if apperrors.IsValidationError(err) {
			h.Response.Error(c, http.StatusBadRequest, ErrorExportFormatInvalid, apperrors.UserMessage(err))
			return
		}
		h.Response.Error(c, http.StatusInternalServerError, ErrorExportFailed, apperrors.UserMessage(err))
		return
	}

	if save {
		h.Response.Success(c, result, "Export saved")
		return
	}

	filename := "podcast_dossier" + format.Extension()
	h.Response.DownloadResponse(c, result.Content, filename, format.ContentType())
}

// ListExports 已保存的导出文件
func (h *Handler) ListExports(c *gin.Context) {
	files, err := h.Exports.ListExports()
	if err != nil {
		h.Response.Error(c, http.StatusInternalServerError, ErrorExportFailed, "Failed to list exports.", err.Error())
		return
	}
	h.Response.Success(c, files)
}

// ------------------------------------------------
// 聊天
// ------------------------------------------------

// Chat 发送一条消息；模型调用失败时仍返回 200，回复为固定的道歉文本
func (h *Handler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "Invalid request body.", err.Error())
		return
	}

	reply, err := h.Project.Chat(c.Request.Context(), req.Message)
	if reply == nil {
		h.Response.AppError(c, err, ErrorChatSessionNotFound)
		return
	}
	h.Response.Success(c, reply)
}

// GetChatHistory 当前会话的聊天记录
func (h *Handler) GetChatHistory(c *gin.Context) {
	history, err := h.Project.ChatHistory()
	if err != nil {
		h.Response.AppError(c, err, ErrorChatSessionNotFound)
		return
	}
	h.Response.Success(c, gin.H{"history": history})
}
