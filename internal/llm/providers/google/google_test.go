package google

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/Corphon/PodcastContentFactory/internal/llm"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p := &Provider{}
	if err := p.Initialize(map[string]string{"api_key": "secret", "base_url": srv.URL}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return p
}

func TestInitializeRequiresKey(t *testing.T) {
	p := &Provider{}
	if err := p.Initialize(map[string]string{}); err == nil {
		t.Fatal("expected error without api_key")
	}
}

func TestCompleteTextBuildsStructuredRequest(t *testing.T) {
	var captured map[string]interface{}
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/gemini-2.5-flash:generateContent" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "secret" {
			t.Errorf("api key header missing")
		}
		if r.URL.Query().Get("key") != "" {
			t.Errorf("api key must not be in the query string")
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &captured)

		_, _ = w.Write([]byte(`{
			"candidates":[{"content":{"parts":[{"text":"{\"a\":"},{"text":"1}"}]},"finishReason":"STOP"}],
			"usageMetadata":{"promptTokenCount":10,"candidatesTokenCount":5,"totalTokenCount":15}
		}`))
	})

	resp, err := p.CompleteText(context.Background(), llm.CompletionRequest{
		SystemPrompt:     "be terse",
		Prompt:           "transcript",
		Temperature:      0.4,
		ResponseMIMEType: "application/json",
		ResponseSchema:   llm.Object("", llm.Property{Name: "a", Schema: llm.Integer("")}),
	})
	if err != nil {
		t.Fatalf("CompleteText: %v", err)
	}
	if resp.Text != `{"a":1}` || resp.TokensUsed != 15 || resp.FinishReason != "STOP" {
		t.Fatalf("unexpected response %+v", resp)
	}

	sys := captured["systemInstruction"].(map[string]interface{})
	if sys["parts"].([]interface{})[0].(map[string]interface{})["text"] != "be terse" {
		t.Fatalf("system instruction not sent: %v", captured)
	}
	gc := captured["generationConfig"].(map[string]interface{})
	if gc["responseMimeType"] != "application/json" {
		t.Fatalf("responseMimeType missing: %v", gc)
	}
	schema := gc["responseSchema"].(map[string]interface{})
	if schema["type"] != "OBJECT" {
		t.Fatalf("responseSchema not serialized: %v", schema)
	}
}

func TestBuildRequestKeepsHistoryOrder(t *testing.T) {
	body := buildRequest(llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: llm.RoleUser, Text: "seed"},
			{Role: llm.RoleModel, Text: "ok"},
			{Role: "assistant", Text: "coerced"},
		},
		Prompt: "question",
	})

	var roles, texts []string
	for _, c := range body.Contents {
		roles = append(roles, c.Role)
		texts = append(texts, c.Parts[0].Text)
	}
	if !reflect.DeepEqual(roles, []string{"user", "model", "user", "user"}) {
		t.Fatalf("roles = %v", roles)
	}
	if !reflect.DeepEqual(texts, []string{"seed", "ok", "coerced", "question"}) {
		t.Fatalf("texts = %v", texts)
	}
	if body.SystemInstruction != nil {
		t.Fatal("no system instruction expected")
	}
}

func TestCompleteTextNoCandidates(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[],"promptFeedback":{"blockReason":"SAFETY"}}`))
	})

	resp, err := p.CompleteText(context.Background(), llm.CompletionRequest{Prompt: "x"})
	if err != nil {
		t.Fatalf("CompleteText: %v", err)
	}
	if resp.Text != "" || resp.FinishReason != "SAFETY" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestCompleteTextHTTPError(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"Resource has been exhausted"}}`))
	})

	_, err := p.CompleteText(context.Background(), llm.CompletionRequest{Prompt: "x"})
	var perr *llm.ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if perr.StatusCode != http.StatusTooManyRequests || perr.Message != "Resource has been exhausted" {
		t.Fatalf("unexpected provider error %+v", perr)
	}
}

func TestFetchAvailableModels(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"models":[
			{"name":"models/gemini-2.5-flash","supportedGenerationMethods":["generateContent"]},
			{"name":"models/text-embedding-004","supportedGenerationMethods":["embedContent"]}
		]}`))
	})

	if err := p.FetchAvailableModels(context.Background()); err != nil {
		t.Fatalf("FetchAvailableModels: %v", err)
	}
	if got := p.GetSupportedModels(); !reflect.DeepEqual(got, []string{"gemini-2.5-flash"}) {
		t.Fatalf("models = %v", got)
	}

	p.SetCustomModels([]string{"custom"})
	if got := p.GetSupportedModels(); !reflect.DeepEqual(got, []string{"custom"}) {
		t.Fatalf("custom models = %v", got)
	}
}
