// internal/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/Corphon/PodcastContentFactory/internal/api"
	"github.com/Corphon/PodcastContentFactory/internal/config"
	"github.com/Corphon/PodcastContentFactory/internal/di"
	"github.com/Corphon/PodcastContentFactory/internal/services"
	"github.com/Corphon/PodcastContentFactory/internal/storage"
	"github.com/Corphon/PodcastContentFactory/internal/utils"

	// 注册 LLM 提供者
	_ "github.com/Corphon/PodcastContentFactory/internal/llm/providers/genaisdk"
	_ "github.com/Corphon/PodcastContentFactory/internal/llm/providers/google"
	_ "github.com/Corphon/PodcastContentFactory/internal/llm/providers/openrouter"
)

const (
	shutdownTimeout      = 30 * time.Second
	metricsReportEvery   = 5 * time.Minute
	progressCleanupEvery = 10 * time.Minute
	progressRetention    = time.Hour
)

// httpServer 便于测试替换
type httpServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// App 应用程序：配置、路由、HTTP 服务器
type App struct {
	config   *config.AppConfig
	router   http.Handler
	handler  *api.Handler
	server   httpServer
	stopChan chan os.Signal
}

var (
	instance   *App
	instanceMu sync.Mutex
)

// GetApp 获取应用单例
func GetApp() *App {
	instanceMu.Lock()
	defer instanceMu.Unlock()

	if instance == nil {
		instance = &App{
			stopChan: make(chan os.Signal, 1),
		}
	}
	return instance
}

// Initialize 加载配置、初始化日志和服务、设置路由
func Initialize(dataDir string) error {
	if err := config.InitConfig(dataDir); err != nil {
		return fmt.Errorf("初始化配置失败: %w", err)
	}
	cfg := config.GetCurrentConfig()

	if err := initLogger(cfg.LogDir); err != nil {
		return fmt.Errorf("初始化日志系统失败: %w", err)
	}
	utils.GetLogger().SetLogLevel(utils.ParseLogLevel(cfg.LogLevel))

	if err := InitServices(); err != nil {
		return fmt.Errorf("初始化服务失败: %w", err)
	}

	router, handler, err := api.SetupRouter(cfg.DebugMode)
	if err != nil {
		return fmt.Errorf("设置路由失败: %w", err)
	}

	app := GetApp()
	app.config = cfg
	app.router = router
	app.handler = handler
	app.server = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return nil
}

// initLogger 日志写到 logDir 下按天命名的文件
func initLogger(logDir string) error {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return err
	}
	return utils.InitLogger(utils.DailyLogFile(logDir, time.Now()))
}

// InitServices 按依赖顺序创建服务并注册到容器；已注册的服务会被复用
func InitServices() error {
	cfg := config.GetCurrentConfig()
	container := di.GetContainer()

	metrics, ok := di.Resolve[*utils.APIMetrics](container, di.ServiceMetrics)
	if !ok {
		metrics = utils.NewAPIMetrics()
		container.Register(di.ServiceMetrics, metrics)
	}

	stats, err := services.NewStatsService(filepath.Join(cfg.DataDir, "stats"), 0)
	if err != nil {
		return fmt.Errorf("初始化用量统计失败: %w", err)
	}
	container.Register(di.ServiceStats, stats)

	llmService, ok := di.Resolve[*services.LLMService](container, di.ServiceLLM)
	if !ok {
		llmService = services.NewLLMService(services.WithMetrics(metrics))
		container.Register(di.ServiceLLM, llmService)
	}
	llmService.SetUsageRecorder(stats)

	transcripts := services.NewTranscriptService(services.OSFileReader{})
	container.Register(di.ServiceTranscript, transcripts)

	assets := services.NewAssetService(llmService, cfg.GenerationTimeout, metrics)
	container.Register(di.ServiceAssets, assets)

	chat := services.NewChatService(llmService, cfg.ChatTimeout, metrics)
	container.Register(di.ServiceChat, chat)

	progress := services.NewProgressService()
	container.Register(di.ServiceProgress, progress)

	project := services.NewProjectController(assets, chat, progress, cfg.AnalyzingDelay, metrics)
	container.Register(di.ServiceProject, project)

	configService := services.NewConfigService(llmService.HasProvider)
	configService.SubscribeToChanges(llmService)
	container.Register(di.ServiceConfig, configService)

	fileStorage, err := storage.NewFileStorage(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("初始化存储失败: %w", err)
	}
	container.Register(di.ServiceStorage, fileStorage)
	container.Register(di.ServiceExport, services.NewExportService(fileStorage))

	ready, state := llmService.GetProviderStatus()
	utils.GetLogger().Info("Services initialized", map[string]interface{}{
		"provider":  llmService.GetProviderName(),
		"llm_ready": ready,
		"llm_state": state,
		"services":  container.GetNames(),
	})
	return nil
}

// Run 启动服务器，收到 SIGINT/SIGTERM 后优雅关闭
func Run() error {
	app := GetApp()
	if app.server == nil {
		return fmt.Errorf("应用尚未初始化")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	app.startBackgroundJobs(ctx)

	serverErr := make(chan error, 1)
	go func() {
		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	signal.Notify(app.stopChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(app.stopChan)

	select {
	case err := <-serverErr:
		app.cleanup()
		return fmt.Errorf("启动服务器失败: %w", err)
	case sig := <-app.stopChan:
		utils.GetLogger().Info("Shutting down", map[string]interface{}{"signal": sig.String()})
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	err := app.server.Shutdown(shutdownCtx)
	app.cleanup()
	if err != nil {
		return fmt.Errorf("服务器强制关闭: %w", err)
	}
	return nil
}

// startBackgroundJobs 定期输出指标并清理已结束的进度任务
func (a *App) startBackgroundJobs(ctx context.Context) {
	container := di.GetContainer()

	if metrics, ok := di.Resolve[*utils.APIMetrics](container, di.ServiceMetrics); ok {
		metrics.StartMetricsCollection(ctx, metricsReportEvery)
	}

	if progress, ok := di.Resolve[*services.ProgressService](container, di.ServiceProgress); ok {
		go func() {
			ticker := time.NewTicker(progressCleanupEvery)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if n := progress.CleanupCompletedTasks(progressRetention); n > 0 {
						utils.GetLogger().Debug("Cleaned up progress trackers", map[string]interface{}{"count": n})
					}
				}
			}
		}()
	}
}

// cleanup 关闭 WebSocket、服务和日志文件
func (a *App) cleanup() {
	if a.handler != nil {
		a.handler.Close()
	}
	if err := di.GetContainer().CloseAll(); err != nil {
		utils.GetLogger().Warn("Failed to close services", map[string]interface{}{"error": err.Error()})
	}
	utils.GetLogger().Info("Shutdown complete", nil)
	utils.CloseLogger()
}

// GetConfig 获取应用配置
func (a *App) GetConfig() *config.AppConfig {
	return a.config
}

// Router 返回HTTP路由
func (a *App) Router() http.Handler {
	return a.router
}

// GetDIContainer 获取依赖注入容器
func GetDIContainer() *di.Container {
	return di.GetContainer()
}

// IsDebugMode 是否开启调试模式
func IsDebugMode() bool {
	instanceMu.Lock()
	app := instance
	instanceMu.Unlock()

	return app != nil && app.config != nil && app.config.DebugMode
}
