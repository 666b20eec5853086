// internal/services/llm_service.go
package services

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Corphon/PodcastContentFactory/internal/config"
	apperrors "github.com/Corphon/PodcastContentFactory/internal/errors"
	"github.com/Corphon/PodcastContentFactory/internal/llm"
	"github.com/Corphon/PodcastContentFactory/internal/utils"
)

// 面向用户的生成错误消息
const (
	MsgAPIKeyMissing = "API Key not found in environment. Make sure GEMINI_API_KEY is set."
	MsgNoResponse    = "No response generated from Gemini."
	MsgParseFailed   = "Failed to parse generated assets."
)

var providerDefaultModels = map[string]string{
	"google":     "gemini-2.5-flash",
	"google-sdk": "gemini-2.5-flash",
	"openrouter": "google/gemini-2.5-flash",
}

// ConfigSource 每次调用时读取配置，凭据不会在启动时被固化
type ConfigSource func() *config.AppConfig

// LLMService 提供统一的大语言模型调用接口
type LLMService struct {
	providerMutex      sync.RWMutex
	provider           llm.Provider
	providerName       string
	fingerprint        string // 当前 provider 对应的配置指纹
	activeDefaultModel string
	readyState         string

	cache        *LLMCache
	configSource ConfigSource
	registry     *llm.Registry
	metrics      *utils.APIMetrics
	usage        UsageRecorder
}

// LLMOption 可选配置
type LLMOption func(*LLMService)

// WithConfigSource 替换配置来源
func WithConfigSource(source ConfigSource) LLMOption {
	return func(s *LLMService) {
		if source != nil {
			s.configSource = source
		}
	}
}

// WithRegistry 替换提供者注册表
func WithRegistry(registry *llm.Registry) LLMOption {
	return func(s *LLMService) {
		if registry != nil {
			s.registry = registry
		}
	}
}

// WithMetrics 替换指标记录器
func WithMetrics(metrics *utils.APIMetrics) LLMOption {
	return func(s *LLMService) {
		if metrics != nil {
			s.metrics = metrics
		}
	}
}

// WithUsageRecorder 每次成功调用后记录用量
func WithUsageRecorder(recorder UsageRecorder) LLMOption {
	return func(s *LLMService) {
		s.usage = recorder
	}
}

// NewLLMService 创建LLM服务。provider 在第一次调用时按当前配置懒加载。
func NewLLMService(opts ...LLMOption) *LLMService {
	s := &LLMService{
		readyState:   "Uninitialized",
		cache:        newLLMCache(30 * time.Minute),
		configSource: config.GetCurrentConfig,
		registry:     llm.DefaultRegistry,
		metrics:      utils.NewAPIMetrics(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LLMCache 单轮请求的响应缓存
type LLMCache struct {
	cache      map[string]*CacheEntry
	mutex      sync.RWMutex
	expiration time.Duration
}

type CacheEntry struct {
	Response  *llm.CompletionResponse
	CreatedAt time.Time
}

func newLLMCache(expiration time.Duration) *LLMCache {
	return &LLMCache{
		cache:      make(map[string]*CacheEntry),
		expiration: expiration,
	}
}

func (c *LLMCache) get(key string) (*llm.CompletionResponse, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entry, exists := c.cache[key]
	if !exists || time.Since(entry.CreatedAt) > c.expiration {
		return nil, false
	}
	copied := *entry.Response
	return &copied, true
}

func (c *LLMCache) put(key string, response *llm.CompletionResponse) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	copied := *response
	c.cache[key] = &CacheEntry{Response: &copied, CreatedAt: time.Now()}

	if len(c.cache) > 200 {
		c.cleanupOldest(20)
	}
}

func (c *LLMCache) remove(key string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.cache, key)
}

func (c *LLMCache) clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.cache = make(map[string]*CacheEntry)
}

// cleanupOldest 调用方持有写锁
func (c *LLMCache) cleanupOldest(count int) {
	type keyAge struct {
		key string
		age time.Time
	}

	entries := make([]keyAge, 0, len(c.cache))
	for k, v := range c.cache {
		entries = append(entries, keyAge{k, v.CreatedAt})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].age.Before(entries[j].age)
	})

	for i := 0; i < min(count, len(entries)); i++ {
		delete(c.cache, entries[i].key)
	}
}

func configFingerprint(cfg *config.AppConfig) string {
	keys := make([]string, 0, len(cfg.LLMConfig))
	for k := range cfg.LLMConfig {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(cfg.LLMProvider)
	for _, k := range keys {
		fmt.Fprintf(&sb, "|%s=%s", k, cfg.LLMConfig[k])
	}
	h := md5.Sum([]byte(sb.String()))
	return fmt.Sprintf("%x", h)
}

// EnsureConfigured 在任何网络请求之前检查凭据与提供者
func (s *LLMService) EnsureConfigured() error {
	_, _, err := s.currentProvider()
	return err
}

// currentProvider 按当前配置返回（必要时重建）provider
func (s *LLMService) currentProvider() (llm.Provider, string, error) {
	cfg := s.configSource()
	if cfg == nil {
		return nil, "", apperrors.NewConfigurationError("Configuration is not available.", nil)
	}
	if cfg.APIKey() == "" {
		s.setReadyState("API key not configured")
		return nil, "", apperrors.NewConfigurationError(MsgAPIKeyMissing, nil)
	}

	providerName := strings.TrimSpace(cfg.LLMProvider)
	if providerName == "" {
		providerName = config.DefaultProvider
	}
	fp := configFingerprint(cfg)

	s.providerMutex.RLock()
	if s.provider != nil && s.providerName == providerName && s.fingerprint == fp {
		provider := s.provider
		s.providerMutex.RUnlock()
		return provider, providerName, nil
	}
	s.providerMutex.RUnlock()

	if err := s.install(providerName, cfg.LLMConfig, fp); err != nil {
		return nil, "", err
	}

	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.provider, s.providerName, nil
}

func (s *LLMService) install(providerName string, cfg map[string]string, fp string) error {
	provider, err := s.registry.GetProvider(providerName, cfg)
	if err != nil {
		s.setReadyState(fmt.Sprintf("Initialization failed: %v", err))
		if errors.Is(err, llm.ErrUnknownProvider) {
			return apperrors.NewConfigurationError(fmt.Sprintf("Unknown LLM provider %q.", providerName), err)
		}
		return apperrors.NewConfigurationError(fmt.Sprintf("Failed to initialize %s provider.", providerName), err)
	}

	s.providerMutex.Lock()
	old := s.provider
	s.provider = provider
	s.providerName = providerName
	s.fingerprint = fp
	s.activeDefaultModel = extractDefaultModel(cfg)
	s.readyState = "Ready"
	s.providerMutex.Unlock()

	if closer, ok := old.(io.Closer); ok && old != provider {
		_ = closer.Close()
	}
	s.cache.clear()

	utils.GetLogger().Info("LLM provider initialized", map[string]interface{}{
		"provider": providerName,
		"model":    s.GetDefaultModel(),
	})
	return nil
}

func (s *LLMService) setReadyState(state string) {
	s.providerMutex.Lock()
	s.readyState = state
	s.providerMutex.Unlock()
}

// IsReady 凭据已配置且提供者已注册
func (s *LLMService) IsReady() bool {
	cfg := s.configSource()
	if cfg == nil || cfg.APIKey() == "" {
		return false
	}
	name := cfg.LLMProvider
	if name == "" {
		name = config.DefaultProvider
	}
	return s.registry.Has(name)
}

// GetReadyState 返回服务就绪状态描述
func (s *LLMService) GetReadyState() string {
	cfg := s.configSource()
	if cfg == nil {
		return "Cannot get configuration"
	}
	if cfg.APIKey() == "" {
		return "API key not configured"
	}

	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	if s.provider != nil && s.fingerprint == configFingerprint(cfg) {
		return "Ready"
	}
	if strings.HasPrefix(s.readyState, "Initialization failed") {
		return s.readyState
	}
	return "Waiting for initialization"
}

// GetProviderStatus 返回服务是否就绪以及可读描述
func (s *LLMService) GetProviderStatus() (bool, string) {
	if s == nil {
		return false, "LLM服务实例未初始化"
	}
	if s.IsReady() {
		return true, "Ready"
	}
	return false, s.GetReadyState()
}

// GetProviderName 当前配置的提供者
func (s *LLMService) GetProviderName() string {
	if cfg := s.configSource(); cfg != nil && cfg.LLMProvider != "" {
		return cfg.LLMProvider
	}
	return config.DefaultProvider
}

// UpdateProvider 立即按新配置初始化提供者，失败时保留旧的
func (s *LLMService) UpdateProvider(providerName string, cfg map[string]string) error {
	if strings.TrimSpace(cfg["api_key"]) == "" {
		return apperrors.NewConfigurationError(MsgAPIKeyMissing, nil)
	}
	fp := configFingerprint(&config.AppConfig{LLMProvider: providerName, LLMConfig: cfg})
	return s.install(providerName, cfg, fp)
}

// ListProviders 已注册的提供者
func (s *LLMService) ListProviders() []string {
	return s.registry.ListProviders()
}

// HasProvider 提供者是否已注册
func (s *LLMService) HasProvider(providerName string) bool {
	return s.registry.Has(providerName)
}

// SupportedModels 指定提供者的模型列表
func (s *LLMService) SupportedModels(providerName string) []string {
	return s.registry.SupportedModels(providerName)
}

// GetDefaultModel 获取当前配置的默认模型
func (s *LLMService) GetDefaultModel() string {
	return s.resolveModel("")
}

// resolveModel 请求 > 当前 provider 默认 > 配置 > 内置默认
func (s *LLMService) resolveModel(requestedModel string) string {
	if trimmed := strings.TrimSpace(requestedModel); trimmed != "" {
		return trimmed
	}

	s.providerMutex.RLock()
	activeDefault := s.activeDefaultModel
	providerName := s.providerName
	s.providerMutex.RUnlock()

	if activeDefault != "" {
		return activeDefault
	}

	if cfg := s.configSource(); cfg != nil {
		if model := extractDefaultModel(cfg.LLMConfig); model != "" {
			return model
		}
		if providerName == "" {
			providerName = cfg.LLMProvider
		}
	}

	if model, exists := providerDefaultModels[providerName]; exists {
		return model
	}
	return config.DefaultModel
}

func extractDefaultModel(cfg map[string]string) string {
	if cfg == nil {
		return ""
	}
	if model := strings.TrimSpace(cfg["default_model"]); model != "" {
		return model
	}
	return strings.TrimSpace(cfg["model"])
}

// CacheKey 为单轮请求生成缓存键；多轮请求不缓存，返回空串
func (s *LLMService) CacheKey(providerName string, req llm.CompletionRequest) string {
	if len(req.Messages) > 0 || len(req.ExtraParams) > 0 {
		return ""
	}

	schema := ""
	if req.ResponseSchema != nil {
		if data, err := json.Marshal(req.ResponseSchema); err == nil {
			schema = string(data)
		}
	}

	hashInput := fmt.Sprintf("%s:::%s:::%s:::%s:::%s:::%s:::%.2f:::%d",
		providerName, req.Model, req.SystemPrompt, req.Prompt, req.ResponseMIMEType, schema, req.Temperature, req.MaxTokens)
	return fmt.Sprintf("%x", md5.Sum([]byte(hashInput)))
}

// SetUsageRecorder 替换用量记录器，nil 表示不记录
func (s *LLMService) SetUsageRecorder(recorder UsageRecorder) {
	s.providerMutex.Lock()
	s.usage = recorder
	s.providerMutex.Unlock()
}

func (s *LLMService) usageRecorder() UsageRecorder {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.usage
}

// Forget 丢弃某个请求的缓存（结果没通过校验时调用）
func (s *LLMService) Forget(req llm.CompletionRequest) {
	req.Model = s.resolveModel(req.Model)
	if key := s.CacheKey(s.GetProviderName(), req); key != "" {
		s.cache.remove(key)
	}
}

// Complete 调用当前提供者。失败一律包装为 upstream_error，不重试。
func (s *LLMService) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	provider, providerName, err := s.currentProvider()
	if err != nil {
		return nil, err
	}

	req.Model = s.resolveModel(req.Model)

	cacheKey := s.CacheKey(providerName, req)
	if cacheKey != "" {
		if cached, ok := s.cache.get(cacheKey); ok {
			utils.GetLogger().Debug("LLM cache hit", map[string]interface{}{"cache_key_prefix": cacheKey[:8]})
			return cached, nil
		}
	}

	start := time.Now()
	resp, err := provider.CompleteText(ctx, req)
	duration := time.Since(start)
	if err != nil {
		s.metrics.RecordError(string(apperrors.ErrorTypeUpstream), "llm")
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, apperrors.NewUpstreamError(
				fmt.Sprintf("Gemini request did not finish in time (%s).", ctxErr), err)
		}
		return nil, apperrors.NewUpstreamError(fmt.Sprintf("Gemini request failed: %v", err), err)
	}
	if resp == nil {
		resp = &llm.CompletionResponse{}
	}

	s.metrics.RecordLLMRequest(providerName, req.Model, resp.TokensUsed, duration)
	if usage := s.usageRecorder(); usage != nil {
		if err := usage.RecordAPIRequest(providerName, resp.TokensUsed); err != nil {
			utils.GetLogger().Warn("Failed to record usage", map[string]interface{}{"err": err.Error()})
		}
	}

	if cacheKey != "" && strings.TrimSpace(resp.Text) != "" {
		s.cache.put(cacheKey, resp)
	}
	return resp, nil
}

// CreateStructuredCompletion 请求 JSON 输出并解码到 out。
// 空响应 -> empty_response；无法解析 -> schema_validation_error。
func (s *LLMService) CreateStructuredCompletion(ctx context.Context, req llm.CompletionRequest, out interface{}) error {
	if req.ResponseMIMEType == "" {
		req.ResponseMIMEType = "application/json"
	}

	resp, err := s.Complete(ctx, req)
	if err != nil {
		return err
	}

	if strings.TrimSpace(resp.Text) == "" {
		s.Forget(req)
		detail := error(nil)
		if resp.FinishReason != "" {
			detail = fmt.Errorf("finish reason: %s", resp.FinishReason)
		}
		return apperrors.NewEmptyResponseError(MsgNoResponse, detail)
	}

	// 合法 JSON 原样解码；只有解析失败时才清洗
	if err := json.Unmarshal([]byte(resp.Text), out); err == nil {
		return nil
	}
	text := cleanJSONString(resp.Text)
	if err := json.Unmarshal([]byte(text), out); err != nil {
		s.Forget(req)
		utils.GetLogger().Warn("Structured response is not valid JSON", map[string]interface{}{
			"err":    err.Error(),
			"length": len(resp.Text),
		})
		return apperrors.NewSchemaValidationError(MsgParseFailed, err)
	}
	return nil
}

// Close 释放提供者持有的连接
func (s *LLMService) Close() error {
	s.providerMutex.Lock()
	provider := s.provider
	s.provider = nil
	s.fingerprint = ""
	s.providerMutex.Unlock()

	if closer, ok := provider.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
