// internal/models/dossier.go
package models

import (
	"fmt"
	"strings"
)

// BuildDossier 把整个素材包展开成一份纯文本文档，章节顺序固定
func BuildDossier(b *AssetBundle) string {
	if b == nil {
		return ""
	}

	firstTitle := ""
	if len(b.EpisodeTitles) > 0 {
		firstTitle = b.EpisodeTitles[0]
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# PROJECT DOSSIER: %s\n\n", firstTitle)

	section(&sb, "1. TITLES", bulletLines(b.EpisodeTitles))
	section(&sb, "2. HOOK", b.Hook)
	section(&sb, "3. PLATFORM SHOW NOTES (Apple/Spotify)", b.ShowNotes)
	section(&sb, "4. BLOG POST (SEO)", b.BlogPost)

	timestamps := make([]string, 0, len(b.Timestamps))
	for _, t := range b.Timestamps {
		timestamps = append(timestamps, fmt.Sprintf("%s - %s", t.Time, t.Topic))
	}
	section(&sb, "5. TIMESTAMPS", strings.Join(timestamps, "\n"))

	section(&sb, "6. YOUTUBE TITLES", bulletLines(b.YouTube.Titles))
	section(&sb, "7. YOUTUBE DESCRIPTION", b.YouTube.Description)

	shorts := make([]string, 0, len(b.YouTube.Shorts))
	for _, s := range b.YouTube.Shorts {
		shorts = append(shorts, fmt.Sprintf("[%s] %s (Score: %d)", s.Timestamp, s.Hook, s.Score))
	}
	section(&sb, "8. YOUTUBE SHORTS", strings.Join(shorts, "\n"))

	section(&sb, "9. NEWSLETTER", b.NewsletterDraft)

	slides := make([]string, 0, len(b.LinkedinCarousel))
	for _, s := range b.LinkedinCarousel {
		slides = append(slides, fmt.Sprintf("Slide %d: %s - %s", s.SlideNumber, s.Title, s.Content))
	}
	section(&sb, "10. LINKEDIN CAROUSEL", strings.Join(slides, "\n"))

	hooks := make([]string, 0, len(b.SocialHooks))
	for _, h := range b.SocialHooks {
		hooks = append(hooks, fmt.Sprintf("[%s] %s", h.Platform, h.Content))
	}
	section(&sb, "11. SOCIAL HOOKS", strings.Join(hooks, "\n"))

	return strings.TrimSpace(sb.String())
}

func section(sb *strings.Builder, heading, body string) {
	fmt.Fprintf(sb, "## %s\n%s\n\n", heading, body)
}

func bulletLines(items []string) string {
	lines := make([]string, 0, len(items))
	for _, item := range items {
		lines = append(lines, "- "+item)
	}
	return strings.Join(lines, "\n")
}
