package genaisdk

import (
	"reflect"
	"testing"

	"github.com/google/generative-ai-go/genai"

	"github.com/Corphon/PodcastContentFactory/internal/llm"
)

func TestConvertSchema(t *testing.T) {
	in := llm.Object("bundle",
		llm.Property{Name: "titles", Schema: llm.ArrayOf(llm.String("title"), "3 titles")},
		llm.Property{Name: "score", Schema: llm.Integer("1-10")},
	)

	out := convertSchema(in)
	if out.Type != genai.TypeObject || out.Description != "bundle" {
		t.Fatalf("unexpected root %+v", out)
	}
	if !reflect.DeepEqual(out.Required, []string{"titles", "score"}) {
		t.Fatalf("required = %v", out.Required)
	}
	titles := out.Properties["titles"]
	if titles.Type != genai.TypeArray || titles.Items == nil || titles.Items.Type != genai.TypeString {
		t.Fatalf("titles not converted: %+v", titles)
	}
	if out.Properties["score"].Type != genai.TypeInteger {
		t.Fatal("score should be an integer")
	}
	if convertSchema(nil) != nil {
		t.Fatal("nil schema should stay nil")
	}
}

func TestToHistory(t *testing.T) {
	history := toHistory([]llm.Message{
		{Role: llm.RoleUser, Text: "transcript"},
		{Role: llm.RoleModel, Text: "understood"},
		{Role: "system", Text: "odd"},
	})

	if len(history) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(history))
	}
	roles := []string{history[0].Role, history[1].Role, history[2].Role}
	if !reflect.DeepEqual(roles, []string{"user", "model", "user"}) {
		t.Fatalf("roles = %v", roles)
	}
	if history[1].Parts[0] != genai.Text("understood") {
		t.Fatalf("unexpected part %v", history[1].Parts[0])
	}
	if toHistory(nil) != nil {
		t.Fatal("empty history should be nil")
	}
}

func TestConfigureModel(t *testing.T) {
	model := &genai.GenerativeModel{}
	configureModel(model, llm.CompletionRequest{
		SystemPrompt:     "style",
		Temperature:      0.4,
		MaxTokens:        1024,
		ResponseMIMEType: "application/json",
		ResponseSchema:   llm.Object("", llm.Property{Name: "hook", Schema: llm.String("")}),
	})

	if model.Temperature == nil || *model.Temperature != 0.4 {
		t.Fatalf("temperature = %v", model.Temperature)
	}
	if model.MaxOutputTokens == nil || *model.MaxOutputTokens != 1024 {
		t.Fatalf("max tokens = %v", model.MaxOutputTokens)
	}
	if model.TopP != nil {
		t.Fatal("topP should stay unset")
	}
	if model.SystemInstruction == nil || model.SystemInstruction.Parts[0] != genai.Text("style") {
		t.Fatal("system instruction not set")
	}
	if model.ResponseMIMEType != "application/json" || model.ResponseSchema == nil {
		t.Fatal("structured output not configured")
	}
}

func TestToCompletionResponse(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content:      &genai.Content{Parts: []genai.Part{genai.Text("hello "), genai.Text("world")}},
			FinishReason: genai.FinishReasonStop,
		}},
		UsageMetadata: &genai.UsageMetadata{PromptTokenCount: 3, CandidatesTokenCount: 2, TotalTokenCount: 5},
	}

	out := toCompletionResponse(resp, "gemini-2.5-flash", "sdk")
	if out.Text != "hello world" || out.TokensUsed != 5 || out.ModelName != "gemini-2.5-flash" {
		t.Fatalf("unexpected %+v", out)
	}

	empty := toCompletionResponse(&genai.GenerateContentResponse{}, "m", "sdk")
	if empty.Text != "" {
		t.Fatal("no candidates should produce empty text")
	}
}

func TestInitializeRequiresKey(t *testing.T) {
	p := &Provider{}
	if err := p.Initialize(map[string]string{}); err == nil {
		t.Fatal("expected error without api_key")
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close on uninitialized provider: %v", err)
	}
}
