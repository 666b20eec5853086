// internal/services/prompts.go
package services

import (
	"fmt"
	"strings"
)

// 生成参数
const (
	generationTemperature float32 = 0.4
	chatTemperature       float32 = 1.0
)

// assetSystemPrompt 风格指南，每次生成原样附带
const assetSystemPrompt = `You are 'The Content Factory', a world-class showrunner for top health and wellness influencers like Mel Robbins, Lewis Howes, and JJ Virgin.

**YOUR STYLE GUIDE (CRITICAL):**
1.  **NO AI FLUFF:** Banned words: "Delves into", "Comprehensive landscape", "Uncover", "Realm", "Tapestry", "Game-changer", "In this episode...".
2.  **TONE:** High-energy, empathetic, direct, and value-driven. Speak to the listener's pain points and desired identity.
3.  **FORMAT:** Use short paragraphs. Punchy sentences.
4.  **TITLES:** Provide 3-5 options.
5.  **TIMESTAMPS:** CRITICAL. Only return timestamps if the user provided an SRT or text with explicit timecodes (e.g., [00:12:30]). If it's a plain text block, return an empty array for timestamps. Do NOT hallucinate times.

**DELIVERABLES:**
1. **Platform Show Notes:** Optimized for Apple Podcasts. Short, punchy, bullet points.
2. **Blog Post:** Long-form, SEO optimized, H2 headers, detailed.
3. **Other Assets:** As per schema.`

// bannedPhrases 风格指南里列出的禁用词，生成后只做告警
var bannedPhrases = []string{
	"Delves into",
	"Comprehensive landscape",
	"Uncover",
	"Realm",
	"Tapestry",
	"Game-changer",
	"In this episode",
}

// 聊天会话的两条种子消息
const (
	chatSeedUserPrefix = "Here is the transcript for the podcast episode I am working on. Please use this context to answer my future questions. \n\n "
	chatSeedModelReply = "Understood. I have analyzed the transcript and am ready to help you refine content, write new posts, or answer specific questions about the episode."
)

// 聊天失败时追加的模型消息
const (
	ChatFallbackReply = "I couldn't generate a response."
	ChatErrorReply    = "Error sending message. Please try again."
)

// buildAssetPrompt 转录稿原样放在最后
func buildAssetPrompt(transcript string) string {
	var sb strings.Builder
	sb.Grow(len(transcript) + 256)
	sb.WriteString("Generate the full marketing asset package for the episode below.\n")
	if len(ScanTimecodes(transcript)) == 0 {
		sb.WriteString("This transcript contains no timecodes: the timestamps array MUST be empty and shorts[].timestamp should describe the moment instead of a time.\n")
	} else {
		sb.WriteString("This transcript contains explicit timecodes: only use times that appear verbatim in it.\n")
	}
	fmt.Fprintf(&sb, "\nTRANSCRIPT:\n%s", transcript)
	return sb.String()
}

// buildChatSeed 会话的第一条用户消息
func buildChatSeed(transcript string) string {
	return chatSeedUserPrefix + transcript
}
