// internal/services/config_service.go
package services

import (
	"strings"
	"sync"
	"time"

	"github.com/Corphon/PodcastContentFactory/internal/config"
	apperrors "github.com/Corphon/PodcastContentFactory/internal/errors"
	"github.com/Corphon/PodcastContentFactory/internal/utils"
)

// ConfigChangeSubscriber 配置变更订阅者接口
type ConfigChangeSubscriber interface {
	OnConfigChanged(oldConfig, newConfig *config.AppConfig)
}

// ConfigChangeRecord 配置变更记录，密钥只保留掩码
type ConfigChangeRecord struct {
	Timestamp time.Time         `json:"timestamp"`
	ChangedBy string            `json:"changed_by"`
	Provider  string            `json:"provider"`
	Config    map[string]string `json:"config"`
}

// ConfigService 运行时修改 LLM 配置，并通知订阅者
type ConfigService struct {
	providers     func(name string) bool
	subscribers   []ConfigChangeSubscriber
	changeHistory []ConfigChangeRecord
	mu            sync.RWMutex

	// 底层读写，测试里可替换
	load  func() *config.AppConfig
	store func(provider string, cfg map[string]string) error
}

// NewConfigService 创建配置服务；providers 用于检查提供者是否已注册
func NewConfigService(providers func(name string) bool) *ConfigService {
	return &ConfigService{
		providers:     providers,
		changeHistory: make([]ConfigChangeRecord, 0, 16),
		load:          config.GetCurrentConfig,
		store:         config.UpdateLLMConfig,
	}
}

// GetCurrentConfig 获取当前配置
func (s *ConfigService) GetCurrentConfig() *config.AppConfig {
	return s.load()
}

// UpdateLLMConfig 更新提供者与配置。api_key 为空时沿用当前密钥。
func (s *ConfigService) UpdateLLMConfig(provider string, configMap map[string]string, changedBy string) error {
	provider = strings.TrimSpace(provider)
	if provider == "" {
		provider = config.DefaultProvider
	}
	if s.providers != nil && !s.providers(provider) {
		return apperrors.NewValidationError("Unknown LLM provider: "+provider, nil)
	}

	oldConfig := s.load()

	merged := make(map[string]string, len(configMap)+2)
	for k, v := range configMap {
		merged[k] = strings.TrimSpace(v)
	}
	if merged["api_key"] == "" {
		merged["api_key"] = oldConfig.APIKey()
	}
	if merged["api_key"] == "" {
		return apperrors.NewConfigurationError(MsgAPIKeyMissing, nil)
	}
	if merged["default_model"] == "" {
		if model, ok := providerDefaultModels[provider]; ok {
			merged["default_model"] = model
		} else {
			merged["default_model"] = config.DefaultModel
		}
	}

	if err := s.store(provider, merged); err != nil {
		return apperrors.NewProcessingError("Failed to save configuration.", err)
	}
	newConfig := s.load()

	s.recordChange(provider, merged, changedBy)
	utils.GetLogger().Info("LLM configuration updated", map[string]interface{}{
		"provider":   provider,
		"model":      merged["default_model"],
		"changed_by": changedBy,
	})

	s.notifySubscribers(oldConfig, newConfig)
	return nil
}

// SubscribeToChanges 订阅配置变更事件
func (s *ConfigService) SubscribeToChanges(subscriber ConfigChangeSubscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, subscriber)
}

// notifySubscribers 同步通知，返回时订阅者已经看到新配置
func (s *ConfigService) notifySubscribers(oldConfig, newConfig *config.AppConfig) {
	s.mu.RLock()
	subscribers := make([]ConfigChangeSubscriber, len(s.subscribers))
	copy(subscribers, s.subscribers)
	s.mu.RUnlock()

	for _, subscriber := range subscribers {
		subscriber.OnConfigChanged(oldConfig, newConfig)
	}
}

// GetChangeHistory 获取最近 limit 条变更
func (s *ConfigService) GetChangeHistory(limit int) []ConfigChangeRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.changeHistory) {
		limit = len(s.changeHistory)
	}
	history := make([]ConfigChangeRecord, limit)
	copy(history, s.changeHistory[len(s.changeHistory)-limit:])
	return history
}

func (s *ConfigService) recordChange(provider string, cfg map[string]string, changedBy string) {
	masked := make(map[string]string, len(cfg))
	for k, v := range cfg {
		if k == "api_key" {
			v = MaskSecret(v)
		}
		masked[k] = v
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.changeHistory) >= 100 {
		s.changeHistory = s.changeHistory[1:]
	}
	s.changeHistory = append(s.changeHistory, ConfigChangeRecord{
		Timestamp: time.Now(),
		ChangedBy: changedBy,
		Provider:  provider,
		Config:    masked,
	})
}

// MaskSecret 只保留末尾四位
func MaskSecret(secret string) string {
	if len(secret) <= 4 {
		return strings.Repeat("*", len(secret))
	}
	return strings.Repeat("*", len(secret)-4) + secret[len(secret)-4:]
}

// OnConfigChanged 配置变更后立即重建 provider，失败时保留旧的并记录日志
func (s *LLMService) OnConfigChanged(oldConfig, newConfig *config.AppConfig) {
	if newConfig == nil {
		return
	}
	if err := s.UpdateProvider(newConfig.LLMProvider, newConfig.LLMConfig); err != nil {
		utils.GetLogger().Warn("LLM provider not updated", map[string]interface{}{
			"provider": newConfig.LLMProvider,
			"err":      err.Error(),
		})
	}
}
