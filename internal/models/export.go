// internal/models/export.go
package models

import (
	"fmt"
	"strings"
	"time"
)

// ExportFormat 导出格式
type ExportFormat string

const (
	ExportMarkdown ExportFormat = "markdown"
	ExportText     ExportFormat = "text"
	ExportJSON     ExportFormat = "json"
)

// ParseExportFormat 空串视为 markdown
func ParseExportFormat(s string) (ExportFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "markdown", "md":
		return ExportMarkdown, nil
	case "text", "txt":
		return ExportText, nil
	case "json":
		return ExportJSON, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// Extension 文件扩展名
func (f ExportFormat) Extension() string {
	switch f {
	case ExportText:
		return ".txt"
	case ExportJSON:
		return ".json"
	default:
		return ".md"
	}
}

// ContentType HTTP 下载用的 MIME 类型
func (f ExportFormat) ContentType() string {
	switch f {
	case ExportText:
		return "text/plain; charset=utf-8"
	case ExportJSON:
		return "application/json; charset=utf-8"
	default:
		return "text/markdown; charset=utf-8"
	}
}

// ExportResult 导出结果
type ExportResult struct {
	ProjectID   string       `json:"project_id"`
	Title       string       `json:"title"`
	Format      ExportFormat `json:"format"`
	Content     string       `json:"content"`
	GeneratedAt time.Time    `json:"generated_at"`
	FilePath    string       `json:"file_path,omitempty"` // 保存到数据目录时才有
	FileSize    int64        `json:"file_size,omitempty"`
	Stats       *ExportStats `json:"stats,omitempty"`
}

// ExportStats 素材包概况
type ExportStats struct {
	Titles        int `json:"titles"`
	Timestamps    int `json:"timestamps"`
	CarouselSlide int `json:"carousel_slides"`
	ViralQuotes   int `json:"viral_quotes"`
	SocialHooks   int `json:"social_hooks"`
	Shorts        int `json:"shorts"`
	BlogWords     int `json:"blog_words"`
}

// BundleStats 统计素材包各部分的数量
func BundleStats(b *AssetBundle) *ExportStats {
	if b == nil {
		return &ExportStats{}
	}
	return &ExportStats{
		Titles:        len(b.EpisodeTitles),
		Timestamps:    len(b.Timestamps),
		CarouselSlide: len(b.LinkedinCarousel),
		ViralQuotes:   len(b.ViralQuotes),
		SocialHooks:   len(b.SocialHooks),
		Shorts:        len(b.YouTube.Shorts),
		BlogWords:     len(strings.Fields(b.BlogPost)),
	}
}
