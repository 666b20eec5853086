// internal/services/asset_schema.go
package services

import (
	"sync"

	"github.com/Corphon/PodcastContentFactory/internal/llm"
)

var (
	assetSchemaOnce sync.Once
	assetSchema     *llm.Schema
)

// AssetSchema 素材包的 responseSchema，构建一次后复用
func AssetSchema() *llm.Schema {
	assetSchemaOnce.Do(func() {
		assetSchema = buildAssetSchema()
	})
	return assetSchema
}

func buildAssetSchema() *llm.Schema {
	timestamp := llm.Object("",
		llm.Property{Name: "time", Schema: llm.String(""), Optional: true},
		llm.Property{Name: "topic", Schema: llm.String(""), Optional: true},
	)

	slide := llm.Object("",
		llm.Property{Name: "slideNumber", Schema: llm.Integer(""), Optional: true},
		llm.Property{Name: "title", Schema: llm.String("Big bold text for the slide"), Optional: true},
		llm.Property{Name: "content", Schema: llm.String("Supporting details for the slide"), Optional: true},
	)

	hook := llm.Object("",
		llm.Property{Name: "platform", Schema: llm.String(""), Optional: true},
		llm.Property{Name: "content", Schema: llm.String(""), Optional: true},
	)

	short := llm.Object("",
		llm.Property{Name: "timestamp", Schema: llm.String(""), Optional: true},
		llm.Property{Name: "hook", Schema: llm.String("Why this specific moment will stop the scroll."), Optional: true},
		llm.Property{Name: "score", Schema: llm.Integer("Viral potential score 1-10"), Optional: true},
	)

	youtube := llm.Object("Assets specifically for YouTube optimization.",
		llm.Property{Name: "titles", Schema: llm.ArrayOf(llm.String(""),
			"3 options for YouTube titles. Must be click-driven, under 60 chars. (e.g., 'I Quit Sugar (Here is what happened)')")},
		llm.Property{Name: "description", Schema: llm.String(
			"First 3 lines of the YouTube description. Must include keywords and a link hook.")},
		llm.Property{Name: "thumbnailText", Schema: llm.ArrayOf(llm.String(""),
			"3 options for text overlay on the thumbnail image. Short (2-4 words). e.g., 'STOP DOING THIS'.")},
		llm.Property{Name: "tags", Schema: llm.ArrayOf(llm.String(""), "")},
		llm.Property{Name: "shorts", Schema: llm.ArrayOf(short,
			"Identify 3 moments that would make viral 60-second shorts.")},
	)

	return llm.Object("",
		llm.Property{Name: "episodeTitles", Schema: llm.ArrayOf(llm.String(""),
			"A list of 3 to 5 viral, high-CTR titles. Only include titles that pass the 'curiosity gap' test. Provide at least 3. Do not exceed 5.")},
		llm.Property{Name: "hook", Schema: llm.String(
			"A 'Cold Open' paragraph for the show notes. Start with a story, a shocking stat, or a counter-intuitive statement from the episode. Do NOT start with 'In this episode'.")},
		llm.Property{Name: "showNotes", Schema: llm.String(
			"Optimized text for Apple Podcasts/Spotify/YouTube Audio. BEST PRACTICES: 1. First sentence must hook the listener immediately (no 'In this episode'). 2. Include a 'What You Will Learn' section with 3-5 bullet points. 3. Brief 'Resources' section placeholder. Total length under 300 words. Use basic formatting.")},
		llm.Property{Name: "blogPost", Schema: llm.String(
			"A comprehensive, SEO-optimized blog post for the podcaster's website (600-800 words). Use H2 headers (Markdown ##) to break up text. Use a storytelling tone. Optimize for readability with short paragraphs.")},
		llm.Property{Name: "timestamps", Schema: llm.ArrayOf(timestamp,
			"EXTREMELY IMPORTANT: Only extract timestamps if they explicitly exist in the source text (like an SRT file). If the source text has no timecodes, return an empty array. DO NOT INVENT TIMESTAMPS.")},
		llm.Property{Name: "newsletterDraft", Schema: llm.String(
			"A personal, 'friend-to-friend' email draft. Use a curiosity-based subject line. Use the 'Story-Lesson-Link' framework.")},
		llm.Property{Name: "guestSwipeEmail", Schema: llm.String(
			"An email written from the perspective of the GUEST to send to THEIR audience promoting this appearance. Flatter the host slightly.")},
		llm.Property{Name: "linkedinCarousel", Schema: llm.ArrayOf(slide,
			"Content for a 5-7 slide educational carousel (PDF style).")},
		llm.Property{Name: "viralQuotes", Schema: llm.ArrayOf(llm.String(""),
			"3-5 short, punchy, tweetable quotes from the transcript. Under 280 characters.")},
		llm.Property{Name: "socialHooks", Schema: llm.ArrayOf(hook,
			"3 distinct social media angles (e.g., Controversial, Story-driven, Data-driven).")},
		llm.Property{Name: "youtube", Schema: youtube},
	)
}
