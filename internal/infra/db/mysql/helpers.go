package mysql

import (
	"encoding/json"
	"strings"
)

// stringOrDash returns "-" when the input is empty/whitespace
func stringOrDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// jsonList encodes a list column; nil becomes "[]"
func jsonList(v []string) string {
	if len(v) == 0 {
		return "[]"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// parseList decodes a list column; bad or empty values become an empty list
func parseList(s string) []string {
	out := []string{}
	if strings.TrimSpace(s) == "" {
		return out
	}
	if err := json.Unmarshal([]byte(s), &out); err != nil || out == nil {
		return []string{}
	}
	return out
}

// validJSON keeps details_json a valid JSON document
func validJSON(s string) string {
	if strings.TrimSpace(s) == "" {
		return "{}"
	}
	var js any
	if json.Unmarshal([]byte(s), &js) != nil {
		b, _ := json.Marshal(map[string]string{"raw": s})
		return string(b)
	}
	return s
}
