// internal/services/asset_service.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Corphon/PodcastContentFactory/internal/config"
	apperrors "github.com/Corphon/PodcastContentFactory/internal/errors"
	"github.com/Corphon/PodcastContentFactory/internal/llm"
	"github.com/Corphon/PodcastContentFactory/internal/models"
	"github.com/Corphon/PodcastContentFactory/internal/utils"
)

// AssetService 一次调用生成完整素材包
type AssetService struct {
	LLMService *LLMService
	timeout    time.Duration
	metrics    *utils.APIMetrics
}

// NewAssetService 创建素材生成服务；timeout<=0 时使用默认值
func NewAssetService(llmService *LLMService, timeout time.Duration, metrics *utils.APIMetrics) *AssetService {
	if timeout <= 0 {
		timeout = config.DefaultGenerationTimeout
	}
	if metrics == nil {
		metrics = utils.NewAPIMetrics()
	}
	return &AssetService{
		LLMService: llmService,
		timeout:    timeout,
		metrics:    metrics,
	}
}

// buildRequest 生成请求：风格指南 + 转录稿 + schema
func (s *AssetService) buildRequest(transcript string) llm.CompletionRequest {
	return llm.CompletionRequest{
		SystemPrompt:     assetSystemPrompt,
		Prompt:           buildAssetPrompt(transcript),
		ResponseMIMEType: "application/json",
		ResponseSchema:   AssetSchema(),
		Temperature:      generationTemperature,
	}
}

// Generate 返回完整素材包，或者一个生成类错误；不会返回部分结果
func (s *AssetService) Generate(ctx context.Context, transcript string) (*models.AssetBundle, error) {
	if err := NewTranscriptService(nil).Validate(transcript); err != nil {
		return nil, err
	}
	if s.LLMService == nil {
		return nil, apperrors.NewConfigurationError("LLM service is not available.", nil)
	}
	// 没有密钥时不发起任何请求
	if err := s.LLMService.EnsureConfigured(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req := s.buildRequest(transcript)

	start := time.Now()
	var raw map[string]json.RawMessage
	if err := s.LLMService.CreateStructuredCompletion(ctx, req, &raw); err != nil {
		return nil, err
	}

	bundle, err := decodeAssetBundle(raw)
	if err != nil {
		s.LLMService.Forget(req)
		return nil, apperrors.NewSchemaValidationError(MsgParseFailed, err)
	}

	warnings := append(bundle.Warnings(), bannedPhraseWarnings(bundle)...)
	for _, warning := range warnings {
		utils.GetLogger().Warn("Asset bundle outside expected range", map[string]interface{}{
			"detail": warning,
		})
	}

	if err := CheckTimestampHonesty(transcript, bundle); err != nil {
		s.LLMService.Forget(req)
		s.metrics.RecordTimestampRejected()
		utils.GetLogger().Warn("Rejected invented timestamps", map[string]interface{}{
			"err": err.Error(),
		})
		return nil, apperrors.NewSchemaValidationError(
			"Generated timestamps do not match the transcript.", err)
	}

	bundle.Normalize()

	utils.GetLogger().Info("Asset bundle generated", map[string]interface{}{
		"titles":      len(bundle.EpisodeTitles),
		"timestamps":  len(bundle.Timestamps),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return bundle, nil
}

// decodeAssetBundle 先检查必需键是否齐全，再解码并做数量校验
func decodeAssetBundle(raw map[string]json.RawMessage) (*models.AssetBundle, error) {
	if raw == nil {
		return nil, fmt.Errorf("response is not a JSON object")
	}
	for _, key := range models.RequiredFields {
		if _, ok := raw[key]; !ok {
			return nil, fmt.Errorf("missing required field %q", key)
		}
	}

	var youtube map[string]json.RawMessage
	if err := json.Unmarshal(raw["youtube"], &youtube); err != nil || youtube == nil {
		return nil, fmt.Errorf("field \"youtube\" is not an object")
	}
	for _, key := range models.YouTubeRequiredFields {
		if _, ok := youtube[key]; !ok {
			return nil, fmt.Errorf("missing required field \"youtube.%s\"", key)
		}
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var bundle models.AssetBundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return nil, fmt.Errorf("decode asset bundle: %w", err)
	}
	if err := bundle.Validate(); err != nil {
		return nil, err
	}
	return &bundle, nil
}

// bannedPhraseWarnings 检查主要文案里是否出现风格指南禁用的说法（不区分大小写）
func bannedPhraseWarnings(bundle *models.AssetBundle) []string {
	fields := []struct {
		name string
		text string
	}{
		{"hook", bundle.Hook},
		{"showNotes", bundle.ShowNotes},
		{"blogPost", bundle.BlogPost},
		{"newsletterDraft", bundle.NewsletterDraft},
	}
	for i, title := range bundle.EpisodeTitles {
		fields = append(fields, struct {
			name string
			text string
		}{fmt.Sprintf("episodeTitles[%d]", i), title})
	}

	var warnings []string
	for _, f := range fields {
		lower := strings.ToLower(f.text)
		for _, phrase := range bannedPhrases {
			if strings.Contains(lower, strings.ToLower(phrase)) {
				warnings = append(warnings, fmt.Sprintf("%s uses banned phrase %q", f.name, phrase))
			}
		}
	}
	return warnings
}
