package models

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestCanTransition(t *testing.T) {
	valid := map[ProcessingStatus][]ProcessingStatus{
		StatusIdle:       {StatusAnalyzing},
		StatusAnalyzing:  {StatusGenerating, StatusError},
		StatusGenerating: {StatusComplete, StatusError},
		StatusComplete:   {StatusIdle},
		StatusError:      {StatusIdle},
	}

	for _, from := range AllStatuses() {
		for _, to := range AllStatuses() {
			want := false
			for _, allowed := range valid[from] {
				if allowed == to {
					want = true
				}
			}
			if got := CanTransition(from, to); got != want {
				t.Fatalf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}

	if CanTransition("PAUSED", StatusIdle) {
		t.Fatal("unknown status should not transition")
	}
}

func TestApplyHappyPath(t *testing.T) {
	state := NewProjectState()
	bundle := sampleBundle()

	steps := []struct {
		event Event
		want  ProcessingStatus
	}{
		{StartEvent("p1", "Host: hello"), StatusAnalyzing},
		{BeginGenerationEvent(), StatusGenerating},
		{SucceedEvent(bundle), StatusComplete},
		{ResetEvent(), StatusIdle},
	}

	var err error
	for _, step := range steps {
		prev := state
		state, err = Apply(state, step.event)
		if err != nil {
			t.Fatalf("Apply(%s): %v", step.event.Kind, err)
		}
		if state.Status != step.want {
			t.Fatalf("after %s status = %s, want %s", step.event.Kind, state.Status, step.want)
		}
		if step.event.Kind == EventSucceed {
			if state.Assets == nil || state.Assets == bundle {
				t.Fatal("succeed should store a copy of the bundle")
			}
			if prev.Assets != nil {
				t.Fatal("Apply must not mutate the previous state")
			}
		}
	}

	if state.Transcript != "" || state.Assets != nil || state.ID != "" {
		t.Fatalf("reset should clear the project, got %+v", state)
	}
}

func TestApplyFailureDropsBundle(t *testing.T) {
	state, _ := Apply(NewProjectState(), StartEvent("p1", "text"))
	state, err := Apply(state, FailEvent("boom"))
	if err != nil {
		t.Fatalf("fail from ANALYZING should be allowed: %v", err)
	}
	if state.Status != StatusError || state.Error != "boom" || state.Assets != nil {
		t.Fatalf("unexpected state %+v", state)
	}
}

func TestApplyRejectsInvalidTransitions(t *testing.T) {
	cases := []struct {
		name  string
		state ProjectState
		event Event
	}{
		{"idle succeed", NewProjectState(), SucceedEvent(sampleBundle())},
		{"idle reset", NewProjectState(), ResetEvent()},
		{"complete start", ProjectState{Status: StatusComplete}, StartEvent("p", "x")},
		{"generating reset", ProjectState{Status: StatusGenerating}, ResetEvent()},
		{"unknown event", NewProjectState(), Event{Kind: "pause"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			next, err := Apply(tc.state, tc.event)
			if !errors.Is(err, ErrInvalidTransition) {
				t.Fatalf("expected ErrInvalidTransition, got %v", err)
			}
			if next.Status != tc.state.Status {
				t.Fatalf("state should be unchanged on error")
			}
		})
	}
}

func TestApplyStartRequiresTranscript(t *testing.T) {
	if _, err := Apply(NewProjectState(), StartEvent("p", "   ")); err == nil {
		t.Fatal("expected error for blank transcript")
	}
}

func TestValidateBounds(t *testing.T) {
	if err := sampleBundle().Validate(); err != nil {
		t.Fatalf("sample bundle should be valid: %v", err)
	}

	cases := map[string]func(b *AssetBundle){
		"too few titles":    func(b *AssetBundle) { b.EpisodeTitles = b.EpisodeTitles[:2] },
		"too many titles":   func(b *AssetBundle) { b.EpisodeTitles = append(b.EpisodeTitles, "a", "b", "c") },
		"blank title":       func(b *AssetBundle) { b.EpisodeTitles[1] = " " },
		"youtube titles":    func(b *AssetBundle) { b.YouTube.Titles = b.YouTube.Titles[:2] },
		"thumbnail text":    func(b *AssetBundle) { b.YouTube.ThumbnailText = append(b.YouTube.ThumbnailText, "X") },
		"shorts count":      func(b *AssetBundle) { b.YouTube.Shorts = b.YouTube.Shorts[:1] },
		"short score low":   func(b *AssetBundle) { b.YouTube.Shorts[0].Score = 0 },
		"short score high":  func(b *AssetBundle) { b.YouTube.Shorts[2].Score = 11 },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			b := sampleBundle()
			mutate(b)
			if err := b.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestWarningsAreSoft(t *testing.T) {
	b := sampleBundle()
	b.ViralQuotes = []string{"only one"}
	b.SocialHooks = nil

	if err := b.Validate(); err != nil {
		t.Fatalf("soft bounds must not fail validation: %v", err)
	}
	if got := len(b.Warnings()); got != 2 {
		t.Fatalf("expected 2 warnings, got %d: %v", got, b.Warnings())
	}
}

func TestNormalizeEmitsEmptyArrays(t *testing.T) {
	b := &AssetBundle{}
	b.Normalize()

	data, err := json.Marshal(b)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(data), "null") {
		t.Fatalf("normalized bundle should not contain null: %s", data)
	}
	if !strings.Contains(string(data), `"timestamps":[]`) {
		t.Fatalf("timestamps should serialize as []: %s", data)
	}
}

func TestBuildDossier(t *testing.T) {
	doc := BuildDossier(sampleBundle())

	if !strings.HasPrefix(doc, "# PROJECT DOSSIER: The Quiet Pivot\n\n## 1. TITLES\n- The Quiet Pivot\n") {
		t.Fatalf("unexpected header:\n%s", doc)
	}

	order := []string{
		"## 1. TITLES",
		"## 2. HOOK",
		"## 3. PLATFORM SHOW NOTES (Apple/Spotify)",
		"## 4. BLOG POST (SEO)",
		"## 5. TIMESTAMPS\n00:00:05 - Welcome\n00:01:10 - Guest intro",
		"## 6. YOUTUBE TITLES\n- I Stalled For A Year",
		"## 7. YOUTUBE DESCRIPTION",
		"## 8. YOUTUBE SHORTS\n[00:01:10] Nobody tells you this (Score: 9)",
		"## 9. NEWSLETTER",
		"## 10. LINKEDIN CAROUSEL\nSlide 1: Stalls - They are quiet.",
		"## 11. SOCIAL HOOKS\n[Twitter] Your company can stall without a single bad week.",
	}
	last := -1
	for _, want := range order {
		idx := strings.Index(doc, want)
		if idx < 0 {
			t.Fatalf("missing %q in dossier:\n%s", want, doc)
		}
		if idx <= last {
			t.Fatalf("section %q is out of order", want)
		}
		last = idx
	}

	if !strings.HasSuffix(doc, "[Instagram] Boring wins.") {
		t.Fatalf("dossier should be trimmed, tail = %q", doc[len(doc)-30:])
	}
	if BuildDossier(nil) != "" {
		t.Fatal("nil bundle should produce an empty dossier")
	}
}

func TestParseExportFormat(t *testing.T) {
	tests := []struct {
		in   string
		want ExportFormat
		ext  string
	}{
		{"", ExportMarkdown, ".md"},
		{"MD", ExportMarkdown, ".md"},
		{" txt ", ExportText, ".txt"},
		{"json", ExportJSON, ".json"},
	}
	for _, tt := range tests {
		got, err := ParseExportFormat(tt.in)
		if err != nil {
			t.Fatalf("ParseExportFormat(%q): %v", tt.in, err)
		}
		if got != tt.want || got.Extension() != tt.ext {
			t.Fatalf("ParseExportFormat(%q) = %q (%s), want %q (%s)", tt.in, got, got.Extension(), tt.want, tt.ext)
		}
	}

	if _, err := ParseExportFormat("pdf"); err == nil {
		t.Fatal("pdf 不应被接受")
	}
}
