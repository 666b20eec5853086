// internal/services/project_service.go
package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Corphon/PodcastContentFactory/internal/config"
	apperrors "github.com/Corphon/PodcastContentFactory/internal/errors"
	"github.com/Corphon/PodcastContentFactory/internal/models"
	"github.com/Corphon/PodcastContentFactory/internal/utils"
)

// StatusListener 状态变化回调，在锁外调用
type StatusListener func(state models.ProjectState)

// ProjectController 持有唯一的当前项目：状态、素材包和聊天会话
type ProjectController struct {
	assets         *AssetService
	chat           *ChatService
	progress       *ProgressService
	metrics        *utils.APIMetrics
	analyzingDelay time.Duration

	mutex     sync.RWMutex
	state     models.ProjectState
	session   *ChatSession
	running   bool
	listeners []StatusListener
}

// NewProjectController 创建项目控制器；analyzingDelay<0 时使用默认值
func NewProjectController(assets *AssetService, chat *ChatService, progress *ProgressService,
	analyzingDelay time.Duration, metrics *utils.APIMetrics) *ProjectController {
	if analyzingDelay < 0 {
		analyzingDelay = config.DefaultAnalyzingDelay
	}
	if progress == nil {
		progress = NewProgressService()
	}
	if metrics == nil {
		metrics = utils.NewAPIMetrics()
	}
	return &ProjectController{
		assets:         assets,
		chat:           chat,
		progress:       progress,
		metrics:        metrics,
		analyzingDelay: analyzingDelay,
		state:          models.NewProjectState(),
	}
}

// OnStatusChange 注册状态变化监听
func (c *ProjectController) OnStatusChange(listener StatusListener) {
	if listener == nil {
		return
	}
	c.mutex.Lock()
	c.listeners = append(c.listeners, listener)
	c.mutex.Unlock()
}

func (c *ProjectController) notify(state models.ProjectState) {
	c.mutex.RLock()
	listeners := append([]StatusListener(nil), c.listeners...)
	c.mutex.RUnlock()

	for _, listener := range listeners {
		listener(state.Snapshot())
	}
}

// apply 在锁内推进状态，返回新状态；调用方负责 notify
func (c *ProjectController) applyLocked(event models.Event) (models.ProjectState, error) {
	next, err := models.Apply(c.state, event)
	if err != nil {
		return c.state, apperrors.NewConflictError(err.Error(), err)
	}
	c.state = next
	return next, nil
}

func (c *ProjectController) apply(event models.Event) (models.ProjectState, error) {
	c.mutex.Lock()
	next, err := c.applyLocked(event)
	c.mutex.Unlock()
	if err == nil {
		c.notify(next)
	}
	return next, err
}

// begin 校验并进入 ANALYZING；COMPLETE/ERROR 时先隐式重置
func (c *ProjectController) begin(transcript string) (models.ProjectState, error) {
	if strings.TrimSpace(transcript) == "" {
		return c.State(), apperrors.NewValidationError(MsgEmptyTranscript, nil)
	}

	c.mutex.Lock()
	if c.running || c.state.Status.IsBusy() {
		state := c.state.Snapshot()
		c.mutex.Unlock()
		return state, apperrors.NewConflictError("A generation is already in progress.", nil)
	}

	if c.state.Status.IsTerminal() {
		if _, err := c.applyLocked(models.ResetEvent()); err != nil {
			c.mutex.Unlock()
			return c.State(), err
		}
		c.session = nil
	}

	next, err := c.applyLocked(models.StartEvent(uuid.New().String(), transcript))
	if err != nil {
		c.mutex.Unlock()
		return next, err
	}
	c.running = true
	c.mutex.Unlock()

	c.notify(next)
	return next, nil
}

// Start 同步执行一次完整生成，返回结束时的状态
func (c *ProjectController) Start(ctx context.Context, transcript string) (*models.ProjectState, error) {
	if _, err := c.begin(transcript); err != nil {
		return nil, err
	}
	state, err := c.run(ctx, transcript, nil)
	return &state, err
}

// StartAsync 在后台执行生成，返回进度任务ID
func (c *ProjectController) StartAsync(transcript string) (string, error) {
	if _, err := c.begin(transcript); err != nil {
		return "", err
	}

	taskID := uuid.New().String()
	tracker := c.progress.CreateTracker(taskID)

	go func() {
		if _, err := c.run(context.Background(), transcript, tracker); err != nil {
			utils.GetLogger().Warn("Background generation failed", map[string]interface{}{
				"task_id": taskID,
				"err":     err.Error(),
			})
		}
	}()

	return taskID, nil
}

// run ANALYZING -> GENERATING -> COMPLETE/ERROR
func (c *ProjectController) run(ctx context.Context, transcript string, tracker *ProgressTracker) (models.ProjectState, error) {
	start := time.Now()
	c.metrics.RecordGenerationStarted()

	defer func() {
		c.mutex.Lock()
		c.running = false
		c.mutex.Unlock()
	}()

	if tracker != nil {
		tracker.UpdatePhase(models.StatusAnalyzing, 5, "Analyzing transcript...")
	}

	// 分析阶段只是界面上的停顿
	if c.analyzingDelay > 0 {
		timer := time.NewTimer(c.analyzingDelay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return c.fail(ctx.Err(), tracker, start)
		}
	}

	if _, err := c.apply(models.BeginGenerationEvent()); err != nil {
		return c.fail(err, tracker, start)
	}
	if tracker != nil {
		tracker.UpdatePhase(models.StatusGenerating, 20, "Generating assets...")
	}

	bundle, err := c.assets.Generate(ctx, transcript)
	if err != nil {
		return c.fail(err, tracker, start)
	}
	if tracker != nil {
		tracker.UpdateProgress(90, "Opening chat session...")
	}

	session, err := c.chat.CreateSession(transcript)
	if err != nil {
		return c.fail(err, tracker, start)
	}

	c.mutex.Lock()
	next, err := c.applyLocked(models.SucceedEvent(bundle))
	if err == nil {
		c.session = session
	}
	c.mutex.Unlock()
	if err != nil {
		return c.fail(err, tracker, start)
	}
	c.notify(next)

	c.metrics.RecordGenerationFinished(true, time.Since(start))
	if tracker != nil {
		tracker.Complete("Assets ready")
	}
	return next.Snapshot(), nil
}

// fail 丢弃会话并进入 ERROR
func (c *ProjectController) fail(cause error, tracker *ProgressTracker, start time.Time) (models.ProjectState, error) {
	message := apperrors.UserMessage(cause)

	c.mutex.Lock()
	c.session = nil
	next, err := c.applyLocked(models.FailEvent(message))
	c.mutex.Unlock()
	if err == nil {
		c.notify(next)
	}

	c.metrics.RecordGenerationFinished(false, time.Since(start))
	if errType, ok := apperrors.TypeOf(cause); ok {
		c.metrics.RecordError(string(errType), "generation")
	}
	if tracker != nil {
		tracker.Fail(message)
	}

	utils.GetLogger().Error("Generation failed", map[string]interface{}{
		"project_id": next.ID,
		"err":        cause.Error(),
	})
	return next.Snapshot(), cause
}

// Reset COMPLETE/ERROR -> IDLE，丢弃素材包、会话和历史；IDLE 时什么都不做
func (c *ProjectController) Reset() (models.ProjectState, error) {
	c.mutex.Lock()
	if c.running || c.state.Status.IsBusy() {
		state := c.state.Snapshot()
		c.mutex.Unlock()
		return state, apperrors.NewConflictError("Cannot reset while a generation is in progress.", nil)
	}
	if c.state.Status == models.StatusIdle {
		state := c.state.Snapshot()
		c.mutex.Unlock()
		return state, nil
	}

	next, err := c.applyLocked(models.ResetEvent())
	if err == nil {
		c.session = nil
	}
	c.mutex.Unlock()

	if err == nil {
		c.notify(next)
	}
	return next.Snapshot(), err
}

// State 当前状态的副本
func (c *ProjectController) State() models.ProjectState {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.state.Snapshot()
}

// IsRunning 是否有生成正在进行
func (c *ProjectController) IsRunning() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.running
}

// Session 当前聊天会话，没有时为 nil
func (c *ProjectController) Session() *ChatSession {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.session
}

// Progress 进度服务
func (c *ProjectController) Progress() *ProgressService {
	return c.progress
}

// Chat 向当前会话发送一条消息
func (c *ProjectController) Chat(ctx context.Context, text string) (*models.ChatReply, error) {
	session := c.Session()
	if session == nil {
		return nil, apperrors.NewNotFoundError("No active chat session. Generate assets first.", nil)
	}

	reply, err := c.chat.SendMessage(ctx, session, text)
	if err != nil && !apperrors.IsChatError(err) {
		return nil, err
	}

	result := &models.ChatReply{
		Reply:   reply,
		Failed:  err != nil,
		History: session.History(),
	}
	if err != nil {
		result.Reply = ChatErrorReply
	}
	return result, err
}

// ChatHistory 当前会话的历史
func (c *ProjectController) ChatHistory() ([]models.ChatMessage, error) {
	session := c.Session()
	if session == nil {
		return nil, apperrors.NewNotFoundError("No active chat session. Generate assets first.", nil)
	}
	return session.History(), nil
}

// Dossier 当前素材包的文本导出
func (c *ProjectController) Dossier() (string, error) {
	state := c.State()
	if state.Assets == nil {
		return "", apperrors.NewNotFoundError("No generated assets to export.", nil)
	}
	return models.BuildDossier(state.Assets), nil
}

// CopyDossier 把文本导出写入剪贴板
func (c *ProjectController) CopyDossier(clipboard ClipboardWriter) error {
	if clipboard == nil {
		return apperrors.NewConfigurationError("clipboard is not available", nil)
	}
	dossier, err := c.Dossier()
	if err != nil {
		return err
	}
	if err := clipboard.WriteAll(dossier); err != nil {
		return apperrors.NewProcessingError("failed to copy dossier", err)
	}
	return nil
}
