package services

import (
	"strings"
	"sync"
	"testing"

	"github.com/Corphon/PodcastContentFactory/internal/config"
	apperrors "github.com/Corphon/PodcastContentFactory/internal/errors"
)

type memoryConfig struct {
	mu  sync.Mutex
	cfg config.AppConfig
}

func (m *memoryConfig) load() *config.AppConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := m.cfg
	copied.LLMConfig = map[string]string{}
	for k, v := range m.cfg.LLMConfig {
		copied.LLMConfig[k] = v
	}
	return &copied
}

func (m *memoryConfig) store(provider string, cfg map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg.LLMProvider = provider
	m.cfg.LLMConfig = cfg
	return nil
}

type recordingSubscriber struct {
	calls []string
}

func (r *recordingSubscriber) OnConfigChanged(oldConfig, newConfig *config.AppConfig) {
	r.calls = append(r.calls, newConfig.LLMProvider)
}

func newTestConfigService(initialKey string) (*ConfigService, *memoryConfig) {
	mem := &memoryConfig{cfg: config.AppConfig{
		LLMProvider: "google",
		LLMConfig:   map[string]string{"api_key": initialKey},
	}}
	svc := NewConfigService(func(name string) bool { return name == "google" || name == "google-sdk" })
	svc.load = mem.load
	svc.store = mem.store
	return svc, mem
}

func TestConfigServiceUpdate(t *testing.T) {
	svc, mem := newTestConfigService("old-secret-key")
	sub := &recordingSubscriber{}
	svc.SubscribeToChanges(sub)

	if err := svc.UpdateLLMConfig("google-sdk", map[string]string{}, "tester"); err != nil {
		t.Fatalf("UpdateLLMConfig: %v", err)
	}

	cfg := mem.load()
	if cfg.LLMProvider != "google-sdk" || cfg.APIKey() != "old-secret-key" {
		t.Fatalf("config = %+v", cfg)
	}
	if cfg.LLMConfig["default_model"] != "gemini-2.5-flash" {
		t.Fatalf("default model = %q", cfg.LLMConfig["default_model"])
	}
	if len(sub.calls) != 1 || sub.calls[0] != "google-sdk" {
		t.Fatalf("subscriber calls = %v", sub.calls)
	}

	history := svc.GetChangeHistory(0)
	if len(history) != 1 {
		t.Fatalf("history = %v", history)
	}
	if masked := history[0].Config["api_key"]; strings.Contains(masked, "old-secret") || !strings.HasSuffix(masked, "-key") {
		t.Fatalf("api key not masked: %q", masked)
	}
}

func TestConfigServiceRejects(t *testing.T) {
	svc, _ := newTestConfigService("")

	if err := svc.UpdateLLMConfig("openai", map[string]string{"api_key": "k"}, "tester"); !apperrors.IsValidationError(err) {
		t.Fatalf("expected validation error for unknown provider, got %v", err)
	}
	if err := svc.UpdateLLMConfig("google", map[string]string{}, "tester"); !apperrors.IsConfigurationError(err) {
		t.Fatalf("expected configuration error without key, got %v", err)
	}
	if len(svc.GetChangeHistory(10)) != 0 {
		t.Fatal("rejected updates must not be recorded")
	}
}

func TestMaskSecret(t *testing.T) {
	if got := MaskSecret("abc"); got != "***" {
		t.Fatalf("MaskSecret(abc) = %q", got)
	}
	if got := MaskSecret("abcdefgh"); got != "****efgh" {
		t.Fatalf("MaskSecret(abcdefgh) = %q", got)
	}
}

func TestLLMServiceFollowsConfigChanges(t *testing.T) {
	fake := &fakeProvider{}
	llmSvc, _ := newTestLLMService(t, fake, "key")

	llmSvc.OnConfigChanged(nil, &config.AppConfig{
		LLMProvider: "fake",
		LLMConfig:   map[string]string{"api_key": "new", "default_model": "other-model"},
	})
	if fake.initCount() != 1 {
		t.Fatalf("provider should be rebuilt immediately, inits = %d", fake.initCount())
	}
	if got := llmSvc.GetDefaultModel(); got != "other-model" {
		t.Fatalf("default model = %q", got)
	}
}
