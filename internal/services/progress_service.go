// internal/services/progress_service.go
package services

import (
	"sync"
	"time"

	"github.com/Corphon/PodcastContentFactory/internal/models"
)

// 任务状态
const (
	TaskRunning   = "running"
	TaskCompleted = "completed"
	TaskFailed    = "failed"
)

// ProgressUpdate 表示进度更新
type ProgressUpdate struct {
	TaskID   string                  `json:"task_id"`
	Progress int                     `json:"progress"` // 0-100
	Message  string                  `json:"message"`
	Status   string                  `json:"status"` // running, completed, failed
	Phase    models.ProcessingStatus `json:"phase,omitempty"`
}

// ProgressTracker 跟踪一次生成的进度
type ProgressTracker struct {
	TaskID     string
	Progress   int
	Message    string
	Status     string
	Phase      models.ProcessingStatus
	StartTime  time.Time
	UpdateTime time.Time
	Done       chan struct{} // 完成或失败时关闭

	subscribers map[chan ProgressUpdate]struct{}
	finished    bool
	mutex       sync.Mutex
}

// ProgressService 管理所有进度跟踪器
type ProgressService struct {
	trackers map[string]*ProgressTracker
	mutex    sync.RWMutex
}

// NewProgressService 创建进度服务实例
func NewProgressService() *ProgressService {
	return &ProgressService{
		trackers: make(map[string]*ProgressTracker),
	}
}

// CreateTracker 创建新的进度跟踪器，已存在时返回现有的
func (s *ProgressService) CreateTracker(taskID string) *ProgressTracker {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if tracker, exists := s.trackers[taskID]; exists {
		return tracker
	}

	now := time.Now()
	tracker := &ProgressTracker{
		TaskID:      taskID,
		Message:     "Queued",
		Status:      TaskRunning,
		Phase:       models.StatusIdle,
		StartTime:   now,
		UpdateTime:  now,
		Done:        make(chan struct{}),
		subscribers: make(map[chan ProgressUpdate]struct{}),
	}

	s.trackers[taskID] = tracker
	return tracker
}

// GetTracker 获取进度跟踪器
func (s *ProgressService) GetTracker(taskID string) (*ProgressTracker, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	tracker, exists := s.trackers[taskID]
	return tracker, exists
}

// snapshotLocked 调用方持有 t.mutex
func (t *ProgressTracker) snapshotLocked() ProgressUpdate {
	return ProgressUpdate{
		TaskID:   t.TaskID,
		Progress: t.Progress,
		Message:  t.Message,
		Status:   t.Status,
		Phase:    t.Phase,
	}
}

// broadcastLocked 非阻塞发送，缓冲满的订阅者会丢掉这一条
func (t *ProgressTracker) broadcastLocked() {
	update := t.snapshotLocked()
	for subscriber := range t.subscribers {
		select {
		case subscriber <- update:
		default:
		}
	}
}

// Snapshot 当前进度
func (t *ProgressTracker) Snapshot() ProgressUpdate {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.snapshotLocked()
}

// UpdateProgress 更新进度，进度只增不减
func (t *ProgressTracker) UpdateProgress(progress int, message string) {
	t.update(progress, message, "")
}

// UpdatePhase 同时推进处理状态
func (t *ProgressTracker) UpdatePhase(phase models.ProcessingStatus, progress int, message string) {
	t.update(progress, message, phase)
}

func (t *ProgressTracker) update(progress int, message string, phase models.ProcessingStatus) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.finished {
		return
	}
	if progress > t.Progress {
		t.Progress = min(progress, 99)
	}
	if message != "" {
		t.Message = message
	}
	if phase != "" {
		t.Phase = phase
	}
	t.UpdateTime = time.Now()
	t.broadcastLocked()
}

// Complete 标记任务完成
func (t *ProgressTracker) Complete(message string) {
	t.finish(TaskCompleted, models.StatusComplete, message, "Assets ready")
}

// Fail 标记任务失败
func (t *ProgressTracker) Fail(errorMsg string) {
	t.finish(TaskFailed, models.StatusError, errorMsg, "Generation failed")
}

func (t *ProgressTracker) finish(status string, phase models.ProcessingStatus, message, fallback string) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.finished {
		return
	}
	t.finished = true

	if status == TaskCompleted {
		t.Progress = 100
	}
	if message == "" {
		message = fallback
	}
	t.Message = message
	t.Status = status
	t.Phase = phase
	t.UpdateTime = time.Now()

	t.broadcastLocked()
	close(t.Done)
}

// IsFinished 是否已经完成或失败
func (t *ProgressTracker) IsFinished() bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.finished
}

// Subscribe 订阅进度更新，立即收到当前状态
func (t *ProgressTracker) Subscribe() chan ProgressUpdate {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	subscriber := make(chan ProgressUpdate, 10)
	t.subscribers[subscriber] = struct{}{}
	subscriber <- t.snapshotLocked()

	return subscriber
}

// Unsubscribe 取消订阅并关闭通道
func (t *ProgressTracker) Unsubscribe(subscriber chan ProgressUpdate) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if _, ok := t.subscribers[subscriber]; !ok {
		return
	}
	delete(t.subscribers, subscriber)
	close(subscriber)
}

// CleanupCompletedTasks 清理结束超过 maxAge 的任务
func (s *ProgressService) CleanupCompletedTasks(maxAge time.Duration) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	removed := 0
	now := time.Now()
	for id, tracker := range s.trackers {
		tracker.mutex.Lock()
		stale := tracker.finished && now.Sub(tracker.UpdateTime) > maxAge
		tracker.mutex.Unlock()

		if stale {
			delete(s.trackers, id)
			removed++
		}
	}
	return removed
}
