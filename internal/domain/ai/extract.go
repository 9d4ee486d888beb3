package ai

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	json5 "github.com/yosuke-furukawa/json5/encoding/json5"
)

// ErrNoJSON model text carried nothing decodable
var ErrNoJSON = errors.New("no JSON found in model output")

var fenceRx = regexp.MustCompile("(?s)^\\s*```[a-zA-Z0-9]*\\s*(.*?)\\s*```\\s*$")

// StripFences removes a surrounding ```lang ... ``` block
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if m := fenceRx.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return s
}

// ExtractJSONObject returns the outermost {...} span of s, or "".
func ExtractJSONObject(s string) string {
	return span(s, '{', '}')
}

// ExtractJSONArray returns the outermost [...] span of s, or "".
func ExtractJSONArray(s string) string {
	return span(s, '[', ']')
}

func span(s string, open, close byte) string {
	start := strings.IndexByte(s, open)
	end := strings.LastIndexByte(s, close)
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

// DecodeJSON decodes model text into v. It tries the whole text strictly first
// (lenient=false), then the embedded object/array with encoding/json and JSON5.
func DecodeJSON(raw string, v any) (lenient bool, err error) {
	text := StripFences(raw)
	if err := json.Unmarshal([]byte(text), v); err == nil {
		return false, nil
	}
	for _, block := range []string{ExtractJSONObject(text), ExtractJSONArray(text)} {
		if block == "" {
			continue
		}
		if err := json.Unmarshal([]byte(block), v); err == nil {
			return true, nil
		}
		if err := json5.Unmarshal([]byte(SingleToDoubleQuotes(block)), v); err == nil {
			return true, nil
		}
	}
	return false, ErrNoJSON
}

// SingleToDoubleQuotes rewrites 'single quoted' strings as "double quoted" ones.
// json5 only accepts double quotes; models often answer with Python/JS literals.
// Apostrophes inside double-quoted strings are left alone.
func SingleToDoubleQuotes(s string) string {
	if !strings.ContainsRune(s, '\'') {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	var quote rune // 0 outside a string, else the opening quote
	escaped := false
	for _, r := range s {
		switch {
		case quote == 0:
			if r == '\'' {
				quote = r
				b.WriteByte('"')
				continue
			}
			if r == '"' {
				quote = r
			}
			b.WriteRune(r)
		case escaped:
			escaped = false
			if quote == '\'' && r == '\'' {
				// \' needs no escape inside double quotes
				b.WriteRune(r)
				continue
			}
			b.WriteByte('\\')
			b.WriteRune(r)
		case r == '\\':
			escaped = true
		case r == quote:
			quote = 0
			b.WriteByte('"')
		case quote == '\'' && r == '"':
			b.WriteString(`\"`)
		default:
			b.WriteRune(r)
		}
	}
	if escaped {
		b.WriteByte('\\')
	}
	return b.String()
}
