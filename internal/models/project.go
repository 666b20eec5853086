// internal/models/project.go
package models

import (
	"fmt"
	"strings"
	"time"
)

// ProjectState 当前项目的不可变快照
type ProjectState struct {
	ID         string           `json:"id"`
	Status     ProcessingStatus `json:"status"`
	Transcript string           `json:"transcript,omitempty"`
	Assets     *AssetBundle     `json:"assets,omitempty"`
	Error      string           `json:"error,omitempty"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// EventKind 状态事件类型
type EventKind string

const (
	EventStart           EventKind = "start"
	EventBeginGeneration EventKind = "begin_generation"
	EventSucceed         EventKind = "succeed"
	EventFail            EventKind = "fail"
	EventReset           EventKind = "reset"
)

// Event 驱动状态迁移的事件
type Event struct {
	Kind       EventKind
	ProjectID  string
	Transcript string
	Assets     *AssetBundle
	Message    string
	At         time.Time
}

// StartEvent 开始分析一份转录稿
func StartEvent(projectID, transcript string) Event {
	return Event{Kind: EventStart, ProjectID: projectID, Transcript: transcript}
}

// BeginGenerationEvent 分析阶段结束，进入生成
func BeginGenerationEvent() Event {
	return Event{Kind: EventBeginGeneration}
}

// SucceedEvent 生成成功
func SucceedEvent(bundle *AssetBundle) Event {
	return Event{Kind: EventSucceed, Assets: bundle}
}

// FailEvent 生成失败
func FailEvent(message string) Event {
	return Event{Kind: EventFail, Message: message}
}

// ResetEvent 用户显式重置
func ResetEvent() Event {
	return Event{Kind: EventReset}
}

// NewProjectState 初始空闲状态
func NewProjectState() ProjectState {
	return ProjectState{Status: StatusIdle, UpdatedAt: time.Now()}
}

// Apply 纯函数：(state, event) -> state。不修改入参。
func Apply(state ProjectState, event Event) (ProjectState, error) {
	if !state.Status.IsValid() {
		return state, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, state.Status)
	}

	at := event.At
	if at.IsZero() {
		at = time.Now()
	}

	var target ProcessingStatus
	switch event.Kind {
	case EventStart:
		target = StatusAnalyzing
	case EventBeginGeneration:
		target = StatusGenerating
	case EventSucceed:
		target = StatusComplete
	case EventFail:
		target = StatusError
	case EventReset:
		target = StatusIdle
	default:
		return state, fmt.Errorf("%w: unknown event %q", ErrInvalidTransition, event.Kind)
	}

	if err := ValidateTransition(state.Status, target); err != nil {
		return state, err
	}

	next := state
	next.Status = target
	next.UpdatedAt = at

	switch event.Kind {
	case EventStart:
		if strings.TrimSpace(event.Transcript) == "" {
			return state, fmt.Errorf("start event requires a transcript")
		}
		next.ID = event.ProjectID
		next.Transcript = event.Transcript
		next.Assets = nil
		next.Error = ""
	case EventBeginGeneration:
		// 只改状态
	case EventSucceed:
		if event.Assets == nil {
			return state, fmt.Errorf("succeed event requires an asset bundle")
		}
		next.Assets = event.Assets.Clone()
		next.Error = ""
	case EventFail:
		next.Assets = nil
		next.Error = event.Message
	case EventReset:
		next = ProjectState{Status: StatusIdle, UpdatedAt: at}
	}

	return next, nil
}

// Snapshot 返回可以安全交给调用方的副本
func (s ProjectState) Snapshot() ProjectState {
	s.Assets = s.Assets.Clone()
	return s
}
