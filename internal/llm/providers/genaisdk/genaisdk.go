// internal/llm/providers/genaisdk/genaisdk.go
package genaisdk

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/Corphon/PodcastContentFactory/internal/llm"
)

const (
	ProviderName = "google-sdk"
	DefaultModel = "gemini-2.5-flash"
)

func init() {
	llm.Register(ProviderName, func() llm.Provider {
		return &Provider{
			recommendedModels: []string{
				"gemini-2.5-flash",
				"gemini-2.5-pro",
			},
		}
	})
}

// Provider 通过官方 Go SDK 调用 Gemini
type Provider struct {
	client            *genai.Client
	defaultModel      string
	recommendedModels []string

	mu              sync.RWMutex
	availableModels []string
}

func (p *Provider) Initialize(config map[string]string) error {
	apiKey := config["api_key"]
	if apiKey == "" {
		return errors.New("google_api密钥未提供")
	}

	opts := []option.ClientOption{option.WithAPIKey(apiKey)}
	if endpoint := config["endpoint"]; endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}

	client, err := genai.NewClient(context.Background(), opts...)
	if err != nil {
		return fmt.Errorf("创建genai客户端失败: %w", err)
	}
	p.client = client

	p.defaultModel = config["default_model"]
	if p.defaultModel == "" {
		p.defaultModel = DefaultModel
	}
	return nil
}

// Close 释放底层 gRPC 连接
func (p *Provider) Close() error {
	if p.client == nil {
		return nil
	}
	return p.client.Close()
}

func (p *Provider) GetName() string {
	return "google gemini sdk"
}

func (p *Provider) GetSupportedModels() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.availableModels) > 0 {
		return append([]string(nil), p.availableModels...)
	}
	return append([]string(nil), p.recommendedModels...)
}

func (p *Provider) CompleteText(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if p.client == nil {
		return nil, errors.New("genai客户端未初始化")
	}

	modelName := req.Model
	if modelName == "" {
		modelName = p.defaultModel
	}

	model := p.client.GenerativeModel(modelName)
	configureModel(model, req)

	cs := model.StartChat()
	cs.History = toHistory(req.Messages)

	resp, err := cs.SendMessage(ctx, genai.Text(req.Prompt))
	if err != nil {
		return nil, err
	}

	return toCompletionResponse(resp, modelName, p.GetName()), nil
}

// configureModel 把通用请求参数映射到 GenerativeModel
func configureModel(model *genai.GenerativeModel, req llm.CompletionRequest) {
	model.SetTemperature(req.Temperature)
	if req.TopP > 0 {
		model.SetTopP(req.TopP)
	}
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	if len(req.StopWords) > 0 {
		model.StopSequences = req.StopWords
	}
	if req.SystemPrompt != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(req.SystemPrompt))
	}
	if req.ResponseMIMEType != "" {
		model.ResponseMIMEType = req.ResponseMIMEType
	}
	if req.ResponseSchema != nil {
		model.ResponseSchema = convertSchema(req.ResponseSchema)
	}
}

func toHistory(messages []llm.Message) []*genai.Content {
	if len(messages) == 0 {
		return nil
	}
	history := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		role := msg.Role
		if role != llm.RoleModel {
			role = llm.RoleUser
		}
		history = append(history, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(msg.Text)},
		})
	}
	return history
}

var schemaTypes = map[llm.SchemaType]genai.Type{
	llm.TypeObject:  genai.TypeObject,
	llm.TypeArray:   genai.TypeArray,
	llm.TypeString:  genai.TypeString,
	llm.TypeInteger: genai.TypeInteger,
	llm.TypeNumber:  genai.TypeNumber,
	llm.TypeBoolean: genai.TypeBoolean,
}

// convertSchema llm.Schema -> genai.Schema（SDK 的 Schema 没有 propertyOrdering）
func convertSchema(s *llm.Schema) *genai.Schema {
	if s == nil {
		return nil
	}

	out := &genai.Schema{
		Type:        schemaTypes[s.Type],
		Description: s.Description,
		Items:       convertSchema(s.Items),
	}
	if len(s.Required) > 0 {
		out.Required = append([]string(nil), s.Required...)
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = convertSchema(prop)
		}
	}
	return out
}

func toCompletionResponse(resp *genai.GenerateContentResponse, modelName, providerName string) *llm.CompletionResponse {
	result := &llm.CompletionResponse{
		ModelName:    modelName,
		ProviderName: providerName,
	}
	if resp == nil {
		return result
	}

	if resp.UsageMetadata != nil {
		result.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		result.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		result.TokensUsed = int(resp.UsageMetadata.TotalTokenCount)
	}

	if len(resp.Candidates) == 0 {
		if resp.PromptFeedback != nil {
			result.FinishReason = resp.PromptFeedback.BlockReason.String()
		}
		return result
	}

	candidate := resp.Candidates[0]
	result.FinishReason = candidate.FinishReason.String()
	if candidate.Content == nil {
		return result
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	result.Text = sb.String()
	return result
}

// FetchAvailableModels 遍历 ListModels 结果
func (p *Provider) FetchAvailableModels(ctx context.Context) error {
	if p.client == nil {
		return errors.New("genai客户端未初始化")
	}

	var models []string
	it := p.client.ListModels(ctx)
	for {
		info, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return fmt.Errorf("获取模型列表失败: %w", err)
		}
		if !supportsGenerate(info.SupportedGenerationMethods) {
			continue
		}
		models = append(models, strings.TrimPrefix(info.Name, "models/"))
	}

	p.mu.Lock()
	p.availableModels = models
	p.mu.Unlock()
	return nil
}

func supportsGenerate(methods []string) bool {
	if len(methods) == 0 {
		return true
	}
	for _, m := range methods {
		if m == "generateContent" {
			return true
		}
	}
	return false
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
