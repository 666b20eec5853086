// internal/models/assets.go
package models

import (
	"fmt"
	"strings"
)

// AssetBundle 一次生成调用产出的全部营销素材
type AssetBundle struct {
	EpisodeTitles    []string        `json:"episodeTitles"`
	Hook             string          `json:"hook"`
	ShowNotes        string          `json:"showNotes"`
	BlogPost         string          `json:"blogPost"`
	Timestamps       []Timestamp     `json:"timestamps"`
	NewsletterDraft  string          `json:"newsletterDraft"`
	GuestSwipeEmail  string          `json:"guestSwipeEmail"`
	LinkedinCarousel []CarouselSlide `json:"linkedinCarousel"`
	ViralQuotes      []string        `json:"viralQuotes"`
	SocialHooks      []SocialHook    `json:"socialHooks"`
	YouTube          YouTubeAssets   `json:"youtube"`
}

// Timestamp 章节时间点
type Timestamp struct {
	Time  string `json:"time"`
	Topic string `json:"topic"`
}

// CarouselSlide LinkedIn 轮播中的一页
type CarouselSlide struct {
	SlideNumber int    `json:"slideNumber"`
	Title       string `json:"title"`
	Content     string `json:"content"`
}

// SocialHook 单个平台的社交文案
type SocialHook struct {
	Platform string `json:"platform"`
	Content  string `json:"content"`
}

// YouTubeAssets YouTube 相关素材
type YouTubeAssets struct {
	Titles        []string `json:"titles"`
	Description   string   `json:"description"`
	ThumbnailText []string `json:"thumbnailText"`
	Tags          []string `json:"tags"`
	Shorts        []Short  `json:"shorts"`
}

// Short 短视频切片建议
type Short struct {
	Timestamp string `json:"timestamp"`
	Hook      string `json:"hook"`
	Score     int    `json:"score"`
}

// 数量约束
const (
	MinEpisodeTitles = 3
	MaxEpisodeTitles = 5
	YouTubeTriple    = 3
	MinShortScore    = 1
	MaxShortScore    = 10

	MinViralQuotes   = 3
	MaxViralQuotes   = 5
	MinCarouselSlide = 5
	MaxCarouselSlide = 7
	ExpectedHooks    = 3
)

// RequiredFields 顶层必须出现的键
var RequiredFields = []string{
	"episodeTitles",
	"hook",
	"showNotes",
	"blogPost",
	"timestamps",
	"newsletterDraft",
	"guestSwipeEmail",
	"linkedinCarousel",
	"viralQuotes",
	"socialHooks",
	"youtube",
}

// YouTubeRequiredFields youtube 对象内必须出现的键
var YouTubeRequiredFields = []string{
	"titles",
	"description",
	"thumbnailText",
	"tags",
	"shorts",
}

// Validate 检查硬性数量约束，违反即视为结构错误
func (b *AssetBundle) Validate() error {
	if b == nil {
		return fmt.Errorf("asset bundle is nil")
	}

	if n := len(b.EpisodeTitles); n < MinEpisodeTitles || n > MaxEpisodeTitles {
		return fmt.Errorf("episodeTitles must contain %d-%d entries, got %d", MinEpisodeTitles, MaxEpisodeTitles, n)
	}
	for i, title := range b.EpisodeTitles {
		if strings.TrimSpace(title) == "" {
			return fmt.Errorf("episodeTitles[%d] is empty", i)
		}
	}

	if n := len(b.YouTube.Titles); n != YouTubeTriple {
		return fmt.Errorf("youtube.titles must contain exactly %d entries, got %d", YouTubeTriple, n)
	}
	if n := len(b.YouTube.ThumbnailText); n != YouTubeTriple {
		return fmt.Errorf("youtube.thumbnailText must contain exactly %d entries, got %d", YouTubeTriple, n)
	}
	if n := len(b.YouTube.Shorts); n != YouTubeTriple {
		return fmt.Errorf("youtube.shorts must contain exactly %d entries, got %d", YouTubeTriple, n)
	}
	for i, short := range b.YouTube.Shorts {
		if short.Score < MinShortScore || short.Score > MaxShortScore {
			return fmt.Errorf("youtube.shorts[%d].score must be within [%d,%d], got %d",
				i, MinShortScore, MaxShortScore, short.Score)
		}
	}

	return nil
}

// Warnings 返回软约束的偏差，只用于日志
func (b *AssetBundle) Warnings() []string {
	if b == nil {
		return nil
	}

	var warnings []string
	if n := len(b.ViralQuotes); n < MinViralQuotes || n > MaxViralQuotes {
		warnings = append(warnings, fmt.Sprintf("viralQuotes: expected %d-%d, got %d", MinViralQuotes, MaxViralQuotes, n))
	}
	if n := len(b.LinkedinCarousel); n < MinCarouselSlide || n > MaxCarouselSlide {
		warnings = append(warnings, fmt.Sprintf("linkedinCarousel: expected %d-%d, got %d", MinCarouselSlide, MaxCarouselSlide, n))
	}
	if n := len(b.SocialHooks); n != ExpectedHooks {
		warnings = append(warnings, fmt.Sprintf("socialHooks: expected %d, got %d", ExpectedHooks, n))
	}
	return warnings
}

// Normalize 把 nil 切片换成空切片，保证序列化结果里是 [] 而不是 null
func (b *AssetBundle) Normalize() {
	if b == nil {
		return
	}
	if b.EpisodeTitles == nil {
		b.EpisodeTitles = []string{}
	}
	if b.Timestamps == nil {
		b.Timestamps = []Timestamp{}
	}
	if b.LinkedinCarousel == nil {
		b.LinkedinCarousel = []CarouselSlide{}
	}
	if b.ViralQuotes == nil {
		b.ViralQuotes = []string{}
	}
	if b.SocialHooks == nil {
		b.SocialHooks = []SocialHook{}
	}
	if b.YouTube.Titles == nil {
		b.YouTube.Titles = []string{}
	}
	if b.YouTube.ThumbnailText == nil {
		b.YouTube.ThumbnailText = []string{}
	}
	if b.YouTube.Tags == nil {
		b.YouTube.Tags = []string{}
	}
	if b.YouTube.Shorts == nil {
		b.YouTube.Shorts = []Short{}
	}
}

// Clone 深拷贝，状态读取方拿到的是副本
func (b *AssetBundle) Clone() *AssetBundle {
	if b == nil {
		return nil
	}
	out := *b
	out.EpisodeTitles = append([]string(nil), b.EpisodeTitles...)
	out.Timestamps = append([]Timestamp(nil), b.Timestamps...)
	out.LinkedinCarousel = append([]CarouselSlide(nil), b.LinkedinCarousel...)
	out.ViralQuotes = append([]string(nil), b.ViralQuotes...)
	out.SocialHooks = append([]SocialHook(nil), b.SocialHooks...)
	out.YouTube.Titles = append([]string(nil), b.YouTube.Titles...)
	out.YouTube.ThumbnailText = append([]string(nil), b.YouTube.ThumbnailText...)
	out.YouTube.Tags = append([]string(nil), b.YouTube.Tags...)
	out.YouTube.Shorts = append([]Short(nil), b.YouTube.Shorts...)
	out.Normalize()
	return &out
}
