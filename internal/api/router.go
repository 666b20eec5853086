// internal/api/router.go
package api

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/PodcastContentFactory/internal/di"
	"github.com/Corphon/PodcastContentFactory/internal/services"
	"github.com/Corphon/PodcastContentFactory/internal/utils"
)

// maxUploadMemory multipart 表单在内存中保留的上限，超出部分落到临时文件
const maxUploadMemory = services.MaxTranscriptBytes + 1<<20

// SetupRouter 从容器取服务并配置HTTP路由
func SetupRouter(debug bool) (*gin.Engine, *Handler, error) {
	container := di.GetContainer()

	project, ok := di.Resolve[*services.ProjectController](container, di.ServiceProject)
	if !ok {
		return nil, nil, fmt.Errorf("项目服务未正确初始化")
	}

	transcripts, ok := di.Resolve[*services.TranscriptService](container, di.ServiceTranscript)
	if !ok {
		return nil, nil, fmt.Errorf("转录稿服务未正确初始化")
	}

	llmService, ok := di.Resolve[*services.LLMService](container, di.ServiceLLM)
	if !ok {
		return nil, nil, fmt.Errorf("LLM服务未正确初始化")
	}

	configService, ok := di.Resolve[*services.ConfigService](container, di.ServiceConfig)
	if !ok {
		return nil, nil, fmt.Errorf("配置服务未正确初始化")
	}

	exports, ok := di.Resolve[*services.ExportService](container, di.ServiceExport)
	if !ok {
		return nil, nil, fmt.Errorf("导出服务未正确初始化")
	}

	metrics, ok := di.Resolve[*utils.APIMetrics](container, di.ServiceMetrics)
	if !ok {
		return nil, nil, fmt.Errorf("指标服务未正确初始化")
	}

	handler := NewHandler(project, transcripts, llmService, configService, exports, metrics)
	if stats, ok := di.Resolve[*services.StatsService](container, di.ServiceStats); ok {
		handler.Stats = stats
	}
	return NewRouter(handler, debug), handler, nil
}

// NewRouter 注册所有路由
func NewRouter(handler *Handler, debug bool) *gin.Engine {
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(requestIDMiddleware())
	r.Use(corsMiddleware())
	r.Use(metricsMiddleware(handler.Metrics))
	r.MaxMultipartMemory = maxUploadMemory

	// WebSocket 聊天通道
	r.GET("/ws/chat", handler.ChatWebSocket)

	api := r.Group("/api")
	{
		api.GET("/health", handler.HealthCheck)
		api.GET("/metrics", handler.GetMetrics)
		api.GET("/stats/usage", handler.GetUsageStats)

		// ===============================
		// LLM配置相关路由
		// ===============================
		llmGroup := api.Group("/llm")
		{
			llmGroup.GET("/status", handler.GetLLMStatus)
			llmGroup.GET("/providers", handler.GetLLMProviders)
			llmGroup.PUT("/config", handler.UpdateLLMConfig)
			llmGroup.GET("/config/history", handler.GetConfigHistory)
		}

		// ===============================
		// 转录稿
		// ===============================
		api.POST("/transcripts/upload", handler.UploadTranscript)

		// ===============================
		// 项目与生成
		// ===============================
		projectGroup := api.Group("/project")
		{
			projectGroup.GET("", handler.GetProject)
			projectGroup.POST("/generate", handler.GenerateAssets)
			projectGroup.POST("/generate/async", handler.GenerateAssetsAsync)
			projectGroup.POST("/reset", handler.ResetProject)
			projectGroup.GET("/dossier", handler.GetDossier)
		}
		api.GET("/progress/:taskID", handler.SubscribeProgress)
		api.GET("/exports", handler.ListExports)

		// ===============================
		// 聊天相关路由
		// ===============================
		chatGroup := api.Group("/chat")
		{
			chatGroup.POST("", handler.Chat)
			chatGroup.GET("/history", handler.GetChatHistory)
		}
	}

	return r
}
