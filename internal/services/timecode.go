// internal/services/timecode.go
package services

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Corphon/PodcastContentFactory/internal/models"
)

// [HH:MM:SS]、HH:MM:SS、MM:SS，以及 SRT/VTT 的 ,mmm / .mmm 毫秒后缀
var timecodePattern = regexp.MustCompile(`(?:^|[^0-9:])(\d{1,2}(?::\d{2}){1,2})(?:[.,]\d{1,3})?`)

// Timecode 转录稿中出现的一个时间码
type Timecode struct {
	Raw     string // 去掉毫秒后的原文
	Seconds int
}

// ScanTimecodes 按出现顺序返回转录稿中的时间码。
// HH:MM:SS 总是算；MM:SS 只有在行首、方括号/圆括号内或 SRT/VTT 箭头两侧时才算，
// 避免把正文里的 "we met at 10:30" 当成时间码。
func ScanTimecodes(transcript string) []Timecode {
	matches := timecodePattern.FindAllStringSubmatchIndex(transcript, -1)
	if len(matches) == 0 {
		return nil
	}

	codes := make([]Timecode, 0, len(matches))
	for _, m := range matches {
		raw := transcript[m[2]:m[3]]
		seconds, ok := timecodeSeconds(raw)
		if !ok {
			continue
		}
		if !isExplicitTimecode(transcript, m[2], m[1], raw) {
			continue
		}
		codes = append(codes, Timecode{Raw: raw, Seconds: seconds})
	}
	return codes
}

// isExplicitTimecode start 是时间码起点，end 是含毫秒后缀的终点
func isExplicitTimecode(text string, start, end int, raw string) bool {
	if strings.Count(raw, ":") == 2 {
		return true
	}

	before := strings.TrimRight(text[:start], " \t")
	after := strings.TrimLeft(text[end:], " \t")
	switch {
	case before == "" || strings.HasSuffix(before, "\n"):
		return true
	case strings.HasSuffix(before, "[") || strings.HasSuffix(before, "("):
		return true
	case strings.HasSuffix(before, "-->") || strings.HasPrefix(after, "-->"):
		return true
	}
	return false
}

// normalizeTimecode 去掉方括号、空白和毫秒后缀
func normalizeTimecode(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, ".,"); i >= 0 {
		s = s[:i]
	}
	return s
}

// timecodeSeconds 解析 H:MM:SS 或 M:SS，分秒必须小于 60
func timecodeSeconds(s string) (int, bool) {
	parts := strings.Split(normalizeTimecode(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, false
	}

	total := 0
	for i, part := range parts {
		if part == "" {
			return 0, false
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return 0, false
		}
		if i > 0 && n >= 60 {
			return 0, false
		}
		total = total*60 + n
	}
	return total, true
}

// CheckTimestampHonesty 时间码只能来自转录稿本身：
// 没有时间码时 timestamps 必须为空；有时间码时每个 time 都必须按原文写法出现过
// （只去掉方括号和毫秒后缀，"0:05" 不等于 "00:00:05"）。
func CheckTimestampHonesty(transcript string, bundle *models.AssetBundle) error {
	if bundle == nil || len(bundle.Timestamps) == 0 {
		return nil
	}

	codes := ScanTimecodes(transcript)
	if len(codes) == 0 {
		return fmt.Errorf("transcript has no timecodes but %d timestamps were returned", len(bundle.Timestamps))
	}

	known := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		known[normalizeTimecode(code.Raw)] = struct{}{}
	}

	for i, ts := range bundle.Timestamps {
		if _, ok := timecodeSeconds(ts.Time); !ok {
			return fmt.Errorf("timestamps[%d].time %q is not a timecode", i, ts.Time)
		}
		if _, exists := known[normalizeTimecode(ts.Time)]; !exists {
			return fmt.Errorf("timestamps[%d].time %q does not appear in the transcript", i, ts.Time)
		}
	}
	return nil
}
