// internal/services/json_clean.go
package services

import (
	"strings"
	"unicode"
)

// 字符串外的全角标点
var structuralPunctuationMap = map[rune]rune{
	'：': ':',
	'，': ',',
	'【': '[',
	'】': ']',
	'［': '[',
	'］': ']',
	'｛': '{',
	'｝': '}',
}

// 字符串外的弯引号当作字符串边界
var quotePairs = map[rune]rune{
	'“': '”',
	'”': '”',
	'„': '”',
	'「': '」',
	'『': '』',
}

// normalizeJSONStructure 只改写字符串字面量之外的字符，字符串内容原样保留
func normalizeJSONStructure(s string) string {
	if s == "" {
		return s
	}

	var builder strings.Builder
	builder.Grow(len(s))
	inString := false
	escaped := false
	currentClosing := '"'

	for _, r := range s {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == currentClosing || r == '"':
				inString = false
				currentClosing = '"'
				builder.WriteRune('"')
				continue
			}
			builder.WriteRune(r)
			continue
		}

		if replacement, ok := structuralPunctuationMap[r]; ok {
			r = replacement
		} else if closing, ok := quotePairs[r]; ok {
			inString = true
			currentClosing = closing
			builder.WriteRune('"')
			continue
		} else if r == '"' {
			inString = true
			currentClosing = '"'
		} else if r > unicode.MaxASCII {
			// JSON 只认 ASCII 空白；NBSP、U+2028 之类换成空格，其余丢弃（BOM、零宽字符）
			if unicode.IsSpace(r) {
				r = ' '
			} else {
				continue
			}
		} else if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			continue
		}

		builder.WriteRune(r)
	}

	return builder.String()
}

// cleanJSONString 截取第一个完整的 JSON 值。
// 值之前的内容（说明文字、```json 围栏）和配对括号之后的内容直接丢弃。
func cleanJSONString(s string) string {
	if s == "" {
		return s
	}

	start := strings.IndexAny(s, "[{")
	if start == -1 {
		return strings.TrimSpace(s)
	}
	s = normalizeJSONStructure(s[start:])

	opener, closer := byte('{'), byte('}')
	if s[0] == '[' {
		opener, closer = '[', ']'
	}

	balance := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case !inString && c == opener:
			balance++
		case !inString && c == closer:
			balance--
			if balance == 0 {
				return s[:i+1]
			}
		}
	}

	// 括号不配对时退回到最后一个结束符
	if end := strings.LastIndexByte(s, closer); end >= 0 {
		return strings.TrimSpace(s[:end+1])
	}
	return strings.TrimSpace(s)
}
