package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/Corphon/PodcastContentFactory/internal/config"
	"github.com/Corphon/PodcastContentFactory/internal/llm"
	"github.com/Corphon/PodcastContentFactory/internal/models"
	"github.com/Corphon/PodcastContentFactory/internal/utils"
)

// fakeProvider 记录请求并按 respond 返回
type fakeProvider struct {
	mu       sync.Mutex
	inits    int
	requests []llm.CompletionRequest
	respond  func(req llm.CompletionRequest) (*llm.CompletionResponse, error)
}

func (f *fakeProvider) Initialize(cfg map[string]string) error {
	f.mu.Lock()
	f.inits++
	f.mu.Unlock()
	return nil
}
func (f *fakeProvider) GetName() string              { return "fake" }
func (f *fakeProvider) GetSupportedModels() []string { return []string{"fake-model"} }
func (f *fakeProvider) CompleteText(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	respond := f.respond
	f.mu.Unlock()

	if respond == nil {
		return &llm.CompletionResponse{Text: "ok"}, nil
	}
	return respond(req)
}
func (f *fakeProvider) FetchAvailableModels(ctx context.Context) error { return nil }
func (f *fakeProvider) SetCustomModels(models []string)                {}

func (f *fakeProvider) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeProvider) lastRequest() llm.CompletionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func (f *fakeProvider) initCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inits
}

func replyWith(text string) func(llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return func(llm.CompletionRequest) (*llm.CompletionResponse, error) {
		return &llm.CompletionResponse{Text: text}, nil
	}
}

type testConfig struct {
	mu  sync.Mutex
	cfg config.AppConfig
}

func (c *testConfig) get() *config.AppConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	copied := c.cfg
	copied.LLMConfig = map[string]string{}
	for k, v := range c.cfg.LLMConfig {
		copied.LLMConfig[k] = v
	}
	return &copied
}

func (c *testConfig) setKey(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.LLMConfig["api_key"] = key
}

func newTestLLMService(t *testing.T, fake *fakeProvider, apiKey string) (*LLMService, *testConfig) {
	t.Helper()

	registry := llm.NewRegistry()
	registry.Register("fake", func() llm.Provider { return fake })

	cfg := &testConfig{cfg: config.AppConfig{
		LLMProvider: "fake",
		LLMConfig:   map[string]string{"api_key": apiKey, "default_model": "fake-model"},
	}}

	svc := NewLLMService(
		WithRegistry(registry),
		WithConfigSource(cfg.get),
		WithMetrics(utils.NewAPIMetricsWith(utils.NewMetricsCollector())),
	)
	return svc, cfg
}

func validBundle() *models.AssetBundle {
	return &models.AssetBundle{
		EpisodeTitles:   []string{"Stop Doing This", "The Sugar Lie", "Why You Wake Up Tired"},
		Hook:            "She quit sugar for 30 days. Day four nearly broke her.",
		ShowNotes:       "What You Will Learn\n- One\n- Two\n- Three",
		BlogPost:        "## The Crash\nShort paragraphs.",
		Timestamps:      []models.Timestamp{},
		NewsletterDraft: "Subject: I almost gave up",
		GuestSwipeEmail: "I sat down with the host...",
		LinkedinCarousel: []models.CarouselSlide{
			{SlideNumber: 1, Title: "Sugar", Content: "a"},
			{SlideNumber: 2, Title: "Sleep", Content: "b"},
			{SlideNumber: 3, Title: "Energy", Content: "c"},
			{SlideNumber: 4, Title: "Habits", Content: "d"},
			{SlideNumber: 5, Title: "Start", Content: "e"},
		},
		ViralQuotes: []string{"Quote one", "Quote two", "Quote three"},
		SocialHooks: []models.SocialHook{
			{Platform: "Twitter", Content: "x"},
			{Platform: "Instagram", Content: "y"},
			{Platform: "LinkedIn", Content: "z"},
		},
		YouTube: models.YouTubeAssets{
			Titles:        []string{"I Quit Sugar", "30 Days Later", "Never Again"},
			Description:   "Line one\nLine two\nLine three",
			ThumbnailText: []string{"STOP", "NO SUGAR", "DAY 4"},
			Tags:          []string{"sugar", "health"},
			Shorts: []models.Short{
				{Timestamp: "the day four crash", Hook: "h1", Score: 9},
				{Timestamp: "the sleep story", Hook: "h2", Score: 7},
				{Timestamp: "the ending", Hook: "h3", Score: 6},
			},
		},
	}
}

func bundleJSON(t *testing.T, bundle *models.AssetBundle) string {
	t.Helper()
	data, err := json.Marshal(bundle)
	if err != nil {
		t.Fatalf("marshal bundle: %v", err)
	}
	return string(data)
}

// bundleJSONWithout 删掉某个顶层键
func bundleJSONWithout(t *testing.T, bundle *models.AssetBundle, key string) string {
	t.Helper()
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(bundleJSON(t, bundle)), &raw); err != nil {
		t.Fatalf("unmarshal bundle: %v", err)
	}
	delete(raw, key)
	data, err := json.Marshal(raw)
	if err != nil {
		t.Fatalf("marshal raw: %v", err)
	}
	return string(data)
}
