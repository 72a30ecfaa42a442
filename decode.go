package gotham

import (
	"strings"
	"unicode/utf8"
)

// PercentDecode 解码 `%XX` 转义序列，无法识别的转义原样保留，`+` 不做转换。
// 当解码结果不是合法的 UTF-8 时返回 false。
func PercentDecode(s string) (string, bool) {
	if strings.IndexByte(s, '%') < 0 {
		return s, utf8.ValidString(s)
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '%' && i+2 < len(s) {
			hi, ok1 := unhex(s[i+1])
			lo, ok2 := unhex(s[i+2])
			if ok1 && ok2 {
				b.WriteByte(hi<<4 | lo)
				i += 2
				continue
			}
		}
		b.WriteByte(c)
	}
	out := b.String()
	return out, utf8.ValidString(out)
}

// FormDecode 按 application/x-www-form-urlencoded 规则解码，先把 `+` 换成空格。
func FormDecode(s string) (string, bool) {
	return PercentDecode(strings.ReplaceAll(s, "+", " "))
}

func unhex(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// SplitPath 将请求路径拆分成解码后的路径段。空段和无法解码的段被丢弃。
func SplitPath(path string) []string {
	segments := make([]string, 0, strings.Count(path, "/")+1)
	for _, raw := range strings.Split(path, "/") {
		if raw == "" {
			continue
		}
		if seg, ok := PercentDecode(raw); ok {
			segments = append(segments, seg)
		}
	}
	return segments
}

// ParseQuery 解析查询字符串。没有 `=` 的片段被忽略，键无法解码时丢弃整对，
// 值无法解码时保留键但不追加值。
func ParseQuery(query string) SegmentMapping {
	m := make(SegmentMapping)
	if query == "" {
		return m
	}
	for _, pair := range strings.Split(query, "&") {
		parts := strings.Split(pair, "=")
		if len(parts) < 2 {
			continue
		}
		key, ok := FormDecode(parts[0])
		if !ok {
			continue
		}
		if value, ok := FormDecode(parts[1]); ok {
			m.Add(key, value)
		} else if _, exists := m[key]; !exists {
			m[key] = []string{}
		}
	}
	return m
}
