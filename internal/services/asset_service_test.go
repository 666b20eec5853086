package services

import (
	"context"
	"strings"
	"testing"
	"time"

	apperrors "github.com/Corphon/PodcastContentFactory/internal/errors"
	"github.com/Corphon/PodcastContentFactory/internal/llm"
	"github.com/Corphon/PodcastContentFactory/internal/models"
	"github.com/Corphon/PodcastContentFactory/internal/utils"
)

func newTestAssetService(t *testing.T, fake *fakeProvider, apiKey string) *AssetService {
	t.Helper()
	svc, _ := newTestLLMService(t, fake, apiKey)
	return NewAssetService(svc, time.Second, utils.NewAPIMetricsWith(utils.NewMetricsCollector()))
}

func TestGenerateBuildsStructuredRequest(t *testing.T) {
	fake := &fakeProvider{}
	fake.respond = replyWith(bundleJSON(t, validBundle()))
	assets := newTestAssetService(t, fake, "key")

	transcript := "Host: welcome. Guest: I quit sugar for thirty days."
	bundle, err := assets.Generate(context.Background(), transcript)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(bundle.EpisodeTitles) != 3 || bundle.YouTube.Shorts[0].Score != 9 {
		t.Fatalf("unexpected bundle %+v", bundle)
	}

	req := fake.lastRequest()
	if !strings.Contains(req.Prompt, transcript) {
		t.Fatal("prompt must contain the transcript verbatim")
	}
	if !strings.Contains(req.SystemPrompt, "NO AI FLUFF") || !strings.Contains(req.SystemPrompt, "Do NOT hallucinate times") {
		t.Fatal("style guide missing from system prompt")
	}
	if req.Temperature != 0.4 {
		t.Fatalf("temperature = %v, want 0.4", req.Temperature)
	}
	if req.ResponseMIMEType != "application/json" || req.ResponseSchema == nil {
		t.Fatal("structured output not requested")
	}
	if len(req.ResponseSchema.Required) != len(models.RequiredFields) {
		t.Fatalf("schema required = %v", req.ResponseSchema.Required)
	}
}

func TestAssetSchemaIsConsistent(t *testing.T) {
	schema := AssetSchema()
	if err := schema.Validate(); err != nil {
		t.Fatalf("schema invalid: %v", err)
	}
	youtube := schema.Properties["youtube"]
	if youtube == nil || len(youtube.Required) != len(models.YouTubeRequiredFields) {
		t.Fatalf("youtube schema = %+v", youtube)
	}
	if schema.Properties["timestamps"].Type != llm.TypeArray {
		t.Fatal("timestamps should be an array")
	}
}

func TestGenerateWithoutKey(t *testing.T) {
	fake := &fakeProvider{}
	assets := newTestAssetService(t, fake, "")

	_, err := assets.Generate(context.Background(), "some transcript")
	if !apperrors.IsConfigurationError(err) || !apperrors.IsGenerationError(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if fake.calls() != 0 {
		t.Fatalf("no network call expected, got %d", fake.calls())
	}
}

func TestGenerateRejectsInvalidResponses(t *testing.T) {
	tooFewTitles := validBundle()
	tooFewTitles.EpisodeTitles = tooFewTitles.EpisodeTitles[:2]

	badScore := validBundle()
	badScore.YouTube.Shorts[1].Score = 11

	twoThumbnails := validBundle()
	twoThumbnails.YouTube.ThumbnailText = twoThumbnails.YouTube.ThumbnailText[:2]

	tests := []struct {
		name  string
		reply func(t *testing.T) string
		check func(error) bool
	}{
		{"empty", func(*testing.T) string { return "" }, apperrors.IsEmptyResponseError},
		{"not json", func(*testing.T) string { return "I can't do that" }, apperrors.IsSchemaValidationError},
		{"missing hook", func(t *testing.T) string { return bundleJSONWithout(t, validBundle(), "hook") }, apperrors.IsSchemaValidationError},
		{"too few titles", func(t *testing.T) string { return bundleJSON(t, tooFewTitles) }, apperrors.IsSchemaValidationError},
		{"score out of range", func(t *testing.T) string { return bundleJSON(t, badScore) }, apperrors.IsSchemaValidationError},
		{"two thumbnails", func(t *testing.T) string { return bundleJSON(t, twoThumbnails) }, apperrors.IsSchemaValidationError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeProvider{respond: replyWith(tt.reply(t))}
			assets := newTestAssetService(t, fake, "key")

			bundle, err := assets.Generate(context.Background(), "transcript")
			if bundle != nil {
				t.Fatal("no partial bundle may be returned")
			}
			if !tt.check(err) || !apperrors.IsGenerationError(err) {
				t.Fatalf("unexpected error %v", err)
			}
		})
	}
}

func TestGenerateMissingYouTubeKey(t *testing.T) {
	raw := strings.Replace(bundleJSON(t, validBundle()), `"tags":`, `"labels":`, 1)
	fake := &fakeProvider{respond: replyWith(raw)}
	assets := newTestAssetService(t, fake, "key")

	_, err := assets.Generate(context.Background(), "transcript")
	if !apperrors.IsSchemaValidationError(err) {
		t.Fatalf("expected schema error, got %v", err)
	}
}

func TestGenerateAcceptsLenientFields(t *testing.T) {
	b := validBundle()
	b.ViralQuotes = b.ViralQuotes[:2]
	b.SocialHooks = b.SocialHooks[:1]
	b.LinkedinCarousel = nil

	fake := &fakeProvider{respond: replyWith(bundleJSON(t, b))}
	assets := newTestAssetService(t, fake, "key")

	bundle, err := assets.Generate(context.Background(), "transcript")
	if err != nil {
		t.Fatalf("lenient fields should only warn: %v", err)
	}
	if bundle.LinkedinCarousel == nil {
		t.Fatal("bundle should be normalized")
	}
}

func TestGeneratePlainTranscriptNeverHasTimestamps(t *testing.T) {
	invented := validBundle()
	invented.Timestamps = []models.Timestamp{{Time: "00:05:00", Topic: "made up"}}

	fake := &fakeProvider{respond: replyWith(bundleJSON(t, invented))}
	assets := newTestAssetService(t, fake, "key")

	_, err := assets.Generate(context.Background(), "A plain paragraph without any timecodes.")
	if !apperrors.IsSchemaValidationError(err) {
		t.Fatalf("expected schema error for invented timestamps, got %v", err)
	}

	fake.respond = replyWith(bundleJSON(t, validBundle()))
	bundle, err := assets.Generate(context.Background(), "A plain paragraph without any timecodes.")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(bundle.Timestamps) != 0 {
		t.Fatalf("timestamps = %v, want empty", bundle.Timestamps)
	}
	if fake.calls() != 2 {
		t.Fatalf("rejected response must not be served from cache, calls = %d", fake.calls())
	}
}

func TestGenerateTimedTranscriptKeepsRealTimestamps(t *testing.T) {
	transcript := "[00:12:30] We start with sugar.\n[00:25:10] Then sleep."

	b := validBundle()
	b.Timestamps = []models.Timestamp{
		{Time: "00:12:30", Topic: "Sugar"},
		{Time: "00:25:10", Topic: "Sleep"},
	}
	fake := &fakeProvider{respond: replyWith(bundleJSON(t, b))}
	assets := newTestAssetService(t, fake, "key")

	bundle, err := assets.Generate(context.Background(), transcript)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	for _, ts := range bundle.Timestamps {
		if !strings.Contains(transcript, ts.Time) {
			t.Fatalf("timestamp %q not in transcript", ts.Time)
		}
	}

	b.Timestamps = append(b.Timestamps, models.Timestamp{Time: "00:40:00", Topic: "Invented"})
	fake.respond = replyWith(bundleJSON(t, b))
	if _, err := NewAssetService(assets.LLMService, time.Second, nil).Generate(context.Background(), transcript+" "); !apperrors.IsSchemaValidationError(err) {
		t.Fatalf("expected schema error for unmatched timestamp, got %v", err)
	}
}

func TestGenerateEmptyTranscript(t *testing.T) {
	fake := &fakeProvider{}
	assets := newTestAssetService(t, fake, "key")

	if _, err := assets.Generate(context.Background(), "   "); !apperrors.IsValidationError(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGenerateKeepsStructuredOutputLossless(t *testing.T) {
	b := validBundle()
	b.Hook = "Day four\u2028nearly broke her."
	b.BlogPost = "## Recipe\n```\nmix\n```\nDone"

	// json.Marshal 会把 U+2028 转义，这里还原成原始字符
	raw := strings.Replace(bundleJSON(t, b), `\u2028`, "\u2028", 1)
	if !strings.Contains(raw, "\u2028") {
		t.Fatal("测试数据应包含原始 U+2028")
	}

	for _, reply := range []string{raw, "```json\n" + raw + "\n```"} {
		fake := &fakeProvider{respond: replyWith(reply)}
		assets := newTestAssetService(t, fake, "key")

		bundle, err := assets.Generate(context.Background(), "transcript")
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if bundle.Hook != b.Hook {
			t.Fatalf("hook = %q, want %q", bundle.Hook, b.Hook)
		}
		if bundle.BlogPost != b.BlogPost {
			t.Fatalf("blogPost = %q, want %q", bundle.BlogPost, b.BlogPost)
		}
	}
}

func TestGenerateTimestampsMustKeepTranscriptSpelling(t *testing.T) {
	transcript := "[00:00:05] Host: Welcome. [00:01:10] Guest: Thanks for having me."

	reformatted := validBundle()
	reformatted.Timestamps = []models.Timestamp{
		{Time: "0:05", Topic: "Welcome"},
		{Time: "1:10", Topic: "Thanks"},
	}
	fake := &fakeProvider{respond: replyWith(bundleJSON(t, reformatted))}
	assets := newTestAssetService(t, fake, "key")

	if _, err := assets.Generate(context.Background(), transcript); !apperrors.IsSchemaValidationError(err) {
		t.Fatalf("改写过的时间码应被拒绝, got %v", err)
	}

	exact := validBundle()
	exact.Timestamps = []models.Timestamp{
		{Time: "00:00:05", Topic: "Welcome"},
		{Time: "00:01:10", Topic: "Thanks"},
	}
	fake.respond = replyWith(bundleJSON(t, exact))
	bundle, err := assets.Generate(context.Background(), transcript)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(bundle.Timestamps) != 2 || bundle.Timestamps[0].Time != "00:00:05" || bundle.Timestamps[1].Time != "00:01:10" {
		t.Fatalf("timestamps = %+v", bundle.Timestamps)
	}
}

func TestBannedPhraseWarnings(t *testing.T) {
	b := validBundle()
	if got := bannedPhraseWarnings(b); len(got) != 0 {
		t.Fatalf("干净的素材包不应有告警: %v", got)
	}

	b.ShowNotes = "In this episode we talk sugar."
	b.EpisodeTitles[1] = "The Sugar GAME-CHANGER"
	got := bannedPhraseWarnings(b)
	if len(got) != 2 {
		t.Fatalf("warnings = %v", got)
	}
	if !strings.HasPrefix(got[0], "showNotes") || !strings.HasPrefix(got[1], "episodeTitles[1]") {
		t.Fatalf("warnings = %v", got)
	}

	// 只告警，不拒绝
	fake := &fakeProvider{respond: replyWith(bundleJSON(t, b))}
	assets := newTestAssetService(t, fake, "key")
	if _, err := assets.Generate(context.Background(), "transcript"); err != nil {
		t.Fatalf("banned phrases should only warn: %v", err)
	}
}
