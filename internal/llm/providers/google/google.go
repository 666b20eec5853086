// internal/llm/providers/google/google.go
package google

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Corphon/PodcastContentFactory/internal/llm"
)

const (
	ProviderName   = "google"
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel   = "gemini-2.5-flash"
)

func init() {
	llm.Register(ProviderName, func() llm.Provider {
		return &Provider{
			recommendedModels: []string{
				"gemini-2.5-flash",
				"gemini-2.5-pro",
			},
			baseURL: DefaultBaseURL,
		}
	})
}

// Provider Gemini generateContent REST 接口
type Provider struct {
	apiKey            string
	baseURL           string
	client            *http.Client
	defaultModel      string
	recommendedModels []string

	mu              sync.RWMutex
	availableModels []string
}

func (p *Provider) Initialize(config map[string]string) error {
	apiKey, exists := config["api_key"]
	if !exists || apiKey == "" {
		return errors.New("google_api密钥未提供")
	}

	p.apiKey = apiKey
	p.client = &http.Client{Timeout: 10 * time.Minute}

	if model, exists := config["default_model"]; exists && model != "" {
		p.defaultModel = model
	} else {
		p.defaultModel = DefaultModel
	}

	if baseURL, exists := config["base_url"]; exists && baseURL != "" {
		p.baseURL = strings.TrimRight(baseURL, "/")
	}
	if p.baseURL == "" {
		p.baseURL = DefaultBaseURL
	}

	return nil
}

func (p *Provider) GetName() string {
	return "google gemini"
}

func (p *Provider) GetSupportedModels() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.availableModels) > 0 {
		return append([]string(nil), p.availableModels...)
	}
	// 否则返回推荐模型列表
	return append([]string(nil), p.recommendedModels...)
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents          []content              `json:"contents"`
	SystemInstruction *content               `json:"systemInstruction,omitempty"`
	GenerationConfig  map[string]interface{} `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

// buildRequest 历史轮次在前，本轮 Prompt 最后
func buildRequest(req llm.CompletionRequest) generateRequest {
	contents := make([]content, 0, len(req.Messages)+1)
	for _, msg := range req.Messages {
		role := msg.Role
		if role != llm.RoleModel {
			role = llm.RoleUser
		}
		contents = append(contents, content{Role: role, Parts: []part{{Text: msg.Text}}})
	}
	if req.Prompt != "" || len(contents) == 0 {
		contents = append(contents, content{Role: llm.RoleUser, Parts: []part{{Text: req.Prompt}}})
	}

	body := generateRequest{
		Contents: contents,
		GenerationConfig: map[string]interface{}{
			"temperature": req.Temperature,
		},
	}

	if req.SystemPrompt != "" {
		body.SystemInstruction = &content{Parts: []part{{Text: req.SystemPrompt}}}
	}

	gc := body.GenerationConfig
	if req.MaxTokens > 0 {
		gc["maxOutputTokens"] = req.MaxTokens
	}
	if req.TopP > 0 {
		gc["topP"] = req.TopP
	}
	if len(req.StopWords) > 0 {
		gc["stopSequences"] = req.StopWords
	}
	if req.ResponseMIMEType != "" {
		gc["responseMimeType"] = req.ResponseMIMEType
	}
	if req.ResponseSchema != nil {
		gc["responseSchema"] = req.ResponseSchema
	}
	for k, v := range req.ExtraParams {
		gc[k] = v
	}

	return body
}

func (p *Provider) CompleteText(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	jsonData, err := json.Marshal(buildRequest(req))
	if err != nil {
		return nil, err
	}

	apiURL := fmt.Sprintf("%s/models/%s:generateContent", p.baseURL, model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(jsonData))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", p.apiKey)

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, p.readError(httpResp)
	}

	var response generateResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("解析gemini响应失败: %w", err)
	}

	result := &llm.CompletionResponse{
		TokensUsed:   response.UsageMetadata.TotalTokenCount,
		PromptTokens: response.UsageMetadata.PromptTokenCount,
		OutputTokens: response.UsageMetadata.CandidatesTokenCount,
		ModelName:    model,
		ProviderName: p.GetName(),
	}

	// 没有候选结果时返回空文本，由上层判定为空响应
	if len(response.Candidates) == 0 {
		result.FinishReason = response.PromptFeedback.BlockReason
		return result, nil
	}

	var sb strings.Builder
	for _, pt := range response.Candidates[0].Content.Parts {
		sb.WriteString(pt.Text)
	}
	result.Text = sb.String()
	result.FinishReason = response.Candidates[0].FinishReason
	return result, nil
}

func (p *Provider) readError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errorResp struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	msg := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &errorResp); err == nil && errorResp.Error.Message != "" {
		msg = errorResp.Error.Message
	}

	return &llm.ProviderError{
		Provider:   p.GetName(),
		StatusCode: resp.StatusCode,
		Message:    msg,
	}
}

// FetchAvailableModels 获取账户可用的、支持 generateContent 的模型
func (p *Provider) FetchAvailableModels(ctx context.Context) error {
	if p.apiKey == "" {
		return errors.New("API密钥未设置，无法获取模型列表")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/models", nil)
	if err != nil {
		return err
	}
	req.Header.Set("x-goog-api-key", p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return p.readError(resp)
	}

	var response struct {
		Models []struct {
			Name                       string   `json:"name"`
			SupportedGenerationMethods []string `json:"supportedGenerationMethods"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return err
	}

	models := make([]string, 0, len(response.Models))
	for _, model := range response.Models {
		if len(model.SupportedGenerationMethods) > 0 && !contains(model.SupportedGenerationMethods, "generateContent") {
			continue
		}
		// "models/gemini-2.5-flash" -> "gemini-2.5-flash"
		models = append(models, strings.TrimPrefix(model.Name, "models/"))
	}

	p.mu.Lock()
	p.availableModels = models
	p.mu.Unlock()
	return nil
}

// SetCustomModels 设置自定义模型列表
func (p *Provider) SetCustomModels(models []string) {
	if len(models) == 0 {
		return
	}
	p.mu.Lock()
	p.availableModels = append([]string(nil), models...)
	p.mu.Unlock()
}

func contains(list []string, target string) bool {
	for _, s := range list {
		if s == target {
			return true
		}
	}
	return false
}
