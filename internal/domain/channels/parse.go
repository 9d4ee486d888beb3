package channels

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/bryanwahyu/hvac-owl/internal/domain/ai"
)

// Insights are the analysis fields produced by the model for a set of messages
type Insights struct {
	Summary     string
	Decisions   []string
	Progress    []string
	Questions   []string
	ActionItems []string
	Risks       []string
}

// ParseDailySummary decodes the per-day summary object; an error means the day is skipped.
func ParseDailySummary(raw string) (Insights, error) {
	var doc map[string]any
	if _, err := ai.DecodeJSON(raw, &doc); err != nil || doc == nil {
		return Insights{}, fmt.Errorf("parse daily summary: %w", ai.ErrNoJSON)
	}
	return insightsFromDoc(doc), nil
}

// wrapperKeys models commonly use when they wrap a list in an object
var wrapperKeys = []string{"items", "list", "results", "data"}

// ParseStringList reads a JSON array of strings (or of objects, or an object wrapping
// the array), falling back to bullet lines. It never fails.
// For a wrapping object the preferred keys win, then wrapperKeys, then the
// alphabetically first key holding an array.
func ParseStringList(raw string, preferred ...string) []string {
	var arr []any
	if _, err := ai.DecodeJSON(raw, &arr); err == nil {
		return toStrings(arr)
	}
	var doc map[string]any
	if _, err := ai.DecodeJSON(raw, &doc); err == nil {
		if list, ok := wrappedList(doc, preferred); ok {
			return toStrings(list)
		}
	}
	return bulletLines(ai.StripFences(raw))
}

func wrappedList(doc map[string]any, preferred []string) ([]any, bool) {
	for _, k := range append(append([]string{}, preferred...), wrapperKeys...) {
		if list, ok := doc[k].([]any); ok {
			return list, true
		}
	}
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if list, ok := doc[k].([]any); ok {
			return list, true
		}
	}
	return nil, false
}

// ParseInsights decodes the full channel analysis. Strict/lenient JSON first, then
// "Header:" sections, finally the raw text becomes the summary.
func ParseInsights(raw string) Insights {
	var doc map[string]any
	if _, err := ai.DecodeJSON(raw, &doc); err == nil && doc != nil {
		return insightsFromDoc(doc)
	}
	if in, ok := insightsFromSections(ai.StripFences(raw)); ok {
		return in
	}
	return Insights{
		Summary:     strings.TrimSpace(raw),
		Decisions:   []string{},
		Progress:    []string{},
		Questions:   []string{},
		ActionItems: []string{},
		Risks:       []string{},
	}
}

func insightsFromDoc(doc map[string]any) Insights {
	return Insights{
		Summary:     firstString(doc, "summary", "recap", "overview"),
		Decisions:   listField(doc, "decisions"),
		Progress:    listField(doc, "progress", "updates"),
		Questions:   listField(doc, "questions", "open_questions", "openQuestions"),
		ActionItems: listField(doc, "actionItems", "action_items", "tasks"),
		Risks:       listField(doc, "risks", "blockers"),
	}
}

func firstString(doc map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := doc[k].(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func listField(doc map[string]any, keys ...string) []string {
	for _, k := range keys {
		switch v := doc[k].(type) {
		case []any:
			return toStrings(v)
		case string:
			if strings.TrimSpace(v) != "" {
				return bulletLinesOrSelf(v)
			}
		}
	}
	return []string{}
}

func toStrings(list []any) []string {
	out := make([]string, 0, len(list))
	for _, it := range list {
		switch x := it.(type) {
		case string:
			if s := strings.TrimSpace(x); s != "" {
				out = append(out, s)
			}
		case map[string]any:
			if s := describeItem(x); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// describeItem flattens {description, assignee, dueDate, severity} style objects
func describeItem(m map[string]any) string {
	desc := firstString(m, "description", "text", "task", "title", "risk")
	if desc == "" {
		return ""
	}
	var extra []string
	if a := firstString(m, "assignee", "owner"); a != "" {
		if !strings.HasPrefix(a, "@") {
			a = "@" + a
		}
		extra = append(extra, a)
	}
	if d := firstString(m, "dueDate", "due_date", "due"); d != "" {
		extra = append(extra, "due: "+d)
	}
	if s := firstString(m, "severity", "priority"); s != "" {
		extra = append(extra, s)
	}
	if len(extra) == 0 {
		return desc
	}
	return fmt.Sprintf("%s (%s)", desc, strings.Join(extra, ", "))
}

var bulletRx = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+(.+)$`)

func bulletLines(text string) []string {
	out := []string{}
	for _, line := range strings.Split(text, "\n") {
		if m := bulletRx.FindStringSubmatch(line); m != nil {
			out = append(out, strings.TrimSpace(m[1]))
		}
	}
	return out
}

func bulletLinesOrSelf(text string) []string {
	if b := bulletLines(text); len(b) > 0 {
		return b
	}
	return []string{strings.TrimSpace(text)}
}

var sectionRx = regexp.MustCompile(`(?i)^\W*(recap|summary|decisions|progress|open questions|questions|action items|risks(?: & blockers| and blockers)?|blockers)\W*:\s*(.*)$`)

func insightsFromSections(text string) (Insights, bool) {
	in := Insights{
		Decisions:   []string{},
		Progress:    []string{},
		Questions:   []string{},
		ActionItems: []string{},
		Risks:       []string{},
	}
	found := false
	var current string
	var summary []string

	for _, line := range strings.Split(text, "\n") {
		if m := sectionRx.FindStringSubmatch(line); m != nil {
			current = strings.ToLower(m[1])
			found = true
			line = strings.Trim(m[2], "*_ ")
			if line == "" {
				continue
			}
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		item := line
		if b := bulletRx.FindStringSubmatch(line); b != nil {
			item = b[1]
		}
		item = strings.TrimSpace(item)

		switch {
		case current == "recap" || current == "summary":
			summary = append(summary, strings.TrimSpace(line))
		case current == "decisions":
			in.Decisions = append(in.Decisions, item)
		case current == "progress":
			in.Progress = append(in.Progress, item)
		case strings.Contains(current, "questions"):
			in.Questions = append(in.Questions, item)
		case current == "action items":
			in.ActionItems = append(in.ActionItems, item)
		case strings.HasPrefix(current, "risks") || current == "blockers":
			in.Risks = append(in.Risks, item)
		}
	}
	in.Summary = strings.Join(summary, "\n")
	return in, found
}
