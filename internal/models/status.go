// internal/models/status.go
package models

import (
	"errors"
	"fmt"
)

// ProcessingStatus 项目处理状态
type ProcessingStatus string

const (
	StatusIdle       ProcessingStatus = "IDLE"
	StatusAnalyzing  ProcessingStatus = "ANALYZING"
	StatusGenerating ProcessingStatus = "GENERATING"
	StatusComplete   ProcessingStatus = "COMPLETE"
	StatusError      ProcessingStatus = "ERROR"
)

// ErrInvalidTransition 非法状态迁移
var ErrInvalidTransition = errors.New("invalid status transition")

var allowedTransitions = map[ProcessingStatus]map[ProcessingStatus]struct{}{
	StatusIdle: {
		StatusAnalyzing: {},
	},
	StatusAnalyzing: {
		StatusGenerating: {},
		StatusError:      {},
	},
	StatusGenerating: {
		StatusComplete: {},
		StatusError:    {},
	},
	StatusComplete: {
		StatusIdle: {},
	},
	StatusError: {
		StatusIdle: {},
	},
}

// AllStatuses 按生命周期顺序返回所有状态
func AllStatuses() []ProcessingStatus {
	return []ProcessingStatus{StatusIdle, StatusAnalyzing, StatusGenerating, StatusComplete, StatusError}
}

// IsValid 是否为已知状态
func (s ProcessingStatus) IsValid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

// IsBusy 是否有生成正在进行
func (s ProcessingStatus) IsBusy() bool {
	return s == StatusAnalyzing || s == StatusGenerating
}

// IsTerminal 是否为一次运行的终态
func (s ProcessingStatus) IsTerminal() bool {
	return s == StatusComplete || s == StatusError
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to ProcessingStatus) bool {
	next, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	_, ok = next[to]
	return ok
}

// ValidateTransition 返回包装了 ErrInvalidTransition 的错误
func ValidateTransition(from, to ProcessingStatus) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
