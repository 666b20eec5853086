// internal/services/stats_service.go
package services

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Corphon/PodcastContentFactory/internal/utils"
)

// UsageStats 模型调用用量，按天统计请求数、按月统计 token
type UsageStats struct {
	TodayRequests    int            `json:"today_requests"`
	TodayTokens      int            `json:"today_tokens"`
	MonthlyTokens    int            `json:"monthly_tokens"`
	DailyStats       map[string]int `json:"daily_stats"`
	MonthlyStats     map[string]int `json:"monthly_stats"`
	ProviderRequests map[string]int `json:"provider_requests"`
	LastUpdated      time.Time      `json:"last_updated"`
}

// UsageRecorder 由 LLMService 在每次成功调用后通知
type UsageRecorder interface {
	RecordAPIRequest(provider string, tokens int) error
}

// StatsService 把用量写到 <dir>/usage_stats.json，批量落盘
type StatsService struct {
	BasePath  string
	statsFile string

	mutex        sync.Mutex
	cachedStats  *UsageStats
	isDirty      bool
	lastSaveTime time.Time
	saveInterval time.Duration
	now          func() time.Time

	stopChan chan struct{}
	stopOnce sync.Once
}

// NewStatsService 创建统计服务；saveInterval<=0 时使用 30s
func NewStatsService(basePath string, saveInterval time.Duration) (*StatsService, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create stats directory: %w", err)
	}
	if saveInterval <= 0 {
		saveInterval = 30 * time.Second
	}

	s := &StatsService{
		BasePath:     basePath,
		statsFile:    filepath.Join(basePath, "usage_stats.json"),
		saveInterval: saveInterval,
		now:          time.Now,
		stopChan:     make(chan struct{}),
	}
	s.startPeriodicSave()
	return s, nil
}

func newEmptyStats(now time.Time) *UsageStats {
	return &UsageStats{
		DailyStats:       make(map[string]int),
		MonthlyStats:     make(map[string]int),
		ProviderRequests: make(map[string]int),
		LastUpdated:      now,
	}
}

// initStatsUnlocked 加载已有文件，不存在或损坏时从零开始
func (s *StatsService) initStatsUnlocked() {
	stats, err := s.loadStats()
	if err != nil {
		if !os.IsNotExist(err) {
			utils.GetLogger().Warn("Failed to load usage stats, starting fresh", map[string]interface{}{
				"file": s.statsFile,
				"err":  err.Error(),
			})
		}
		stats = newEmptyStats(s.now())
	}
	s.cachedStats = stats
	s.rollPeriodUnlocked()
}

// rollPeriodUnlocked 跨天清零当天计数，跨月清零月度 token
func (s *StatsService) rollPeriodUnlocked() {
	stats := s.cachedStats
	now := s.now()

	if now.Format("2006-01-02") != stats.LastUpdated.Format("2006-01-02") {
		stats.TodayRequests = 0
		stats.TodayTokens = 0
		s.isDirty = true
	}
	if now.Format("2006-01") != stats.LastUpdated.Format("2006-01") {
		stats.MonthlyTokens = 0
		s.isDirty = true
	}
	if s.isDirty {
		stats.LastUpdated = now
	}
}

func (s *StatsService) loadStats() (*UsageStats, error) {
	data, err := os.ReadFile(s.statsFile)
	if err != nil {
		return nil, err
	}

	var stats UsageStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("failed to parse stats data: %w", err)
	}
	if stats.DailyStats == nil {
		stats.DailyStats = make(map[string]int)
	}
	if stats.MonthlyStats == nil {
		stats.MonthlyStats = make(map[string]int)
	}
	if stats.ProviderRequests == nil {
		stats.ProviderRequests = make(map[string]int)
	}
	return &stats, nil
}

// saveStats 先写临时文件再重命名
func (s *StatsService) saveStats(stats *UsageStats) error {
	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize stats: %w", err)
	}

	tempFile := s.statsFile + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp stats file: %w", err)
	}
	if err := os.Rename(tempFile, s.statsFile); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to replace stats file: %w", err)
	}
	return nil
}

// GetUsageStats 返回深拷贝
func (s *StatsService) GetUsageStats() *UsageStats {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.cachedStats == nil {
		s.initStatsUnlocked()
	} else {
		s.rollPeriodUnlocked()
	}

	c := s.cachedStats
	return &UsageStats{
		TodayRequests:    c.TodayRequests,
		TodayTokens:      c.TodayTokens,
		MonthlyTokens:    c.MonthlyTokens,
		DailyStats:       maps.Clone(c.DailyStats),
		MonthlyStats:     maps.Clone(c.MonthlyStats),
		ProviderRequests: maps.Clone(c.ProviderRequests),
		LastUpdated:      c.LastUpdated,
	}
}

// RecordAPIRequest 记录一次成功的模型调用
func (s *StatsService) RecordAPIRequest(provider string, tokens int) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.cachedStats == nil {
		s.initStatsUnlocked()
	} else {
		s.rollPeriodUnlocked()
	}

	now := s.now()
	if tokens < 0 {
		tokens = 0
	}

	stats := s.cachedStats
	stats.TodayRequests++
	stats.TodayTokens += tokens
	stats.MonthlyTokens += tokens
	stats.DailyStats[now.Format("2006-01-02")]++
	stats.MonthlyStats[now.Format("2006-01")] += tokens
	if provider != "" {
		stats.ProviderRequests[provider]++
	}
	stats.LastUpdated = now
	s.isDirty = true

	if now.Sub(s.lastSaveTime) > s.saveInterval {
		return s.saveStatsImmediate()
	}
	return nil
}

func (s *StatsService) saveStatsImmediate() error {
	if !s.isDirty || s.cachedStats == nil {
		return nil
	}

	err := s.saveStats(s.cachedStats)
	if err == nil {
		s.isDirty = false
		s.lastSaveTime = s.now()
	}
	return err
}

func (s *StatsService) startPeriodicSave() {
	go func() {
		ticker := time.NewTicker(s.saveInterval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.mutex.Lock()
				if err := s.saveStatsImmediate(); err != nil {
					utils.GetLogger().Warn("Failed to save usage stats", map[string]interface{}{"err": err.Error()})
				}
				s.mutex.Unlock()
			}
		}
	}()
}

// ResetStats 清空统计并落盘
func (s *StatsService) ResetStats() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	fresh := newEmptyStats(s.now())
	if err := s.saveStats(fresh); err != nil {
		return err
	}
	s.cachedStats = fresh
	s.isDirty = false
	return nil
}

// Close 停止定时保存并写出未保存的数据
func (s *StatsService) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })

	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.saveStatsImmediate()
}
