package thermostat

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/bryanwahyu/hvac-owl/internal/domain/ai"
)

const (
	UnknownType = "Not specified"

	// SentinelRecommendation is returned when nothing could be recovered from the model text.
	SentinelRecommendation = "Unable to determine compatibility from the analysis. Please provide clearer photos or more details about your thermostat and HVAC system."
)

// SentinelVerdict fixed answer used when the model output is unusable
func SentinelVerdict() Verdict {
	return Verdict{
		ThermostatType:  UnknownType,
		Compatibility:   Uncertain,
		Confidence:      0,
		Recommendations: []string{SentinelRecommendation},
	}
}

// ParseVerdict never fails: strict JSON, then JSON5 on the embedded object, then
// pattern extraction, then the sentinel.
func ParseVerdict(raw string) (Verdict, ParseMode) {
	var doc map[string]any
	if lenient, err := ai.DecodeJSON(raw, &doc); err == nil && doc != nil {
		if v, ok := verdictFromDoc(doc); ok {
			if lenient {
				return v, ParseLenient
			}
			return v, ParseStrict
		}
	}

	if v, ok := verdictFromPatterns(ai.StripFences(raw)); ok {
		return v, ParsePattern
	}
	return SentinelVerdict(), ParseSentinel
}

// NormalizeConfidence maps percentages to fractions and clamps to [0,1]; NaN and Inf become 0.
func NormalizeConfidence(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	if x > 1 && x <= 100 {
		x = x / 100
	}
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// ParseCompatibility reads a free-text label
func ParseCompatibility(s string) Compatibility {
	l := strings.ToLower(strings.TrimSpace(s))
	switch strings.Trim(l, ".*_ ") {
	case "yes", "true":
		return Compatible
	case "no", "false":
		return NotCompatible
	}
	switch {
	case strings.Contains(l, "not compatible"), strings.Contains(l, "incompatible"),
		strings.Contains(l, "not_compatible"), strings.Contains(l, "not-compatible"):
		return NotCompatible
	case strings.Contains(l, "uncertain"), strings.Contains(l, "unknown"):
		return Uncertain
	case strings.Contains(l, "compatible"):
		return Compatible
	}
	return Uncertain
}

func verdictFromDoc(doc map[string]any) (Verdict, bool) {
	// some models nest the verdict under "compatibility" or "result"
	for _, key := range []string{"result", "analysis"} {
		if inner, ok := doc[key].(map[string]any); ok {
			if v, ok := verdictFromDoc(inner); ok {
				return v, true
			}
		}
	}
	if inner, ok := doc["compatibility"].(map[string]any); ok {
		if v, ok := verdictFromDoc(inner); ok {
			return v, true
		}
	}

	v := Verdict{ThermostatType: UnknownType, Compatibility: Uncertain, Recommendations: []string{}}
	found := false

	if t := firstString(doc, "thermostatType", "thermostat_type", "type", "thermostat"); t != "" {
		v.ThermostatType = t
		found = true
	}

	for _, key := range []string{"compatibility", "compatible", "status", "verdict"} {
		switch c := doc[key].(type) {
		case string:
			v.Compatibility = ParseCompatibility(c)
			found = true
		case bool:
			if c {
				v.Compatibility = Compatible
			} else {
				v.Compatibility = NotCompatible
			}
			found = true
		default:
			continue
		}
		break
	}

	switch c := doc["confidence"].(type) {
	case float64:
		v.Confidence = NormalizeConfidence(c)
	case string:
		if f, ok := leadingNumber(c); ok {
			v.Confidence = NormalizeConfidence(f)
		} else {
			v.Confidence = confidenceWord(c)
		}
	}

	for _, key := range []string{"recommendations", "recommendation", "next_steps", "nextSteps"} {
		if recs := toStrings(doc[key]); len(recs) > 0 {
			v.Recommendations = recs
			break
		}
	}

	return v, found
}

func firstString(doc map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := doc[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func toStrings(v any) []string {
	switch t := v.(type) {
	case string:
		if s := strings.TrimSpace(t); s != "" {
			return []string{s}
		}
	case []any:
		out := make([]string, 0, len(t))
		for _, it := range t {
			switch x := it.(type) {
			case string:
				if s := strings.TrimSpace(x); s != "" {
					out = append(out, s)
				}
			case map[string]any:
				if s := firstString(x, "text", "description", "recommendation", "title"); s != "" {
					out = append(out, s)
				}
			}
		}
		return out
	}
	return nil
}

var numberRx = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

func leadingNumber(s string) (float64, bool) {
	m := numberRx.FindString(s)
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	if strings.Contains(s, "%") && f <= 1 {
		f = f / 100
	}
	return f, true
}

func confidenceWord(s string) float64 {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high", "very high":
		return 0.9
	case "medium", "moderate":
		return 0.6
	case "low":
		return 0.3
	}
	return 0
}

var (
	typeRx          = regexp.MustCompile(`(?i)\btype\b\**\s*[:\-]?\s*\**\s*([^.\n]+)`)
	confidenceNumRx = regexp.MustCompile(`(?i)confidence[^0-9\n]{0,40}?(\d+(?:\.\d+)?)\s*(%)?`)
	confidenceWdRx  = regexp.MustCompile(`(?i)confidence[^a-z\n]{0,20}(?:level|score)?[^a-z\n]{0,10}(very high|high|medium|moderate|low)\b`)
	recHeaderRx     = regexp.MustCompile(`(?i)^\W*recommendations?\W*?[:\-]?\s*(.*)$`)
	bulletRx        = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+(.+)$`)
	compatWordRx    = regexp.MustCompile(`(?i)\b(not compatible|incompatible|compatible)\b`)
	compatLineRx    = regexp.MustCompile(`(?i)compatib(?:ility|le)(?:\s+status)?\**\s*[:\-]\s*\**\s*([^\n]+)`)
)

func verdictFromPatterns(text string) (Verdict, bool) {
	v := Verdict{ThermostatType: UnknownType, Compatibility: Uncertain, Recommendations: []string{}}
	found := false

	if m := typeRx.FindStringSubmatch(text); m != nil {
		if t := strings.Trim(strings.TrimSpace(m[1]), "*_ "); t != "" {
			v.ThermostatType = t
		}
	}

	if m := compatLineRx.FindStringSubmatch(text); m != nil {
		v.Compatibility = ParseCompatibility(m[1])
		found = true
	} else if m := compatWordRx.FindAllString(text, -1); len(m) > 0 {
		v.Compatibility = Compatible
		for _, w := range m {
			if !strings.EqualFold(w, "compatible") {
				v.Compatibility = NotCompatible
				break
			}
		}
		found = true
	}

	if m := confidenceNumRx.FindStringSubmatch(text); m != nil {
		if f, err := strconv.ParseFloat(m[1], 64); err == nil {
			if m[2] == "%" && f <= 1 {
				f = f / 100
			}
			v.Confidence = NormalizeConfidence(f)
			found = true
		}
	} else if m := confidenceWdRx.FindStringSubmatch(text); m != nil {
		v.Confidence = confidenceWord(m[1])
		found = true
	}

	if recs := recommendationLines(text); len(recs) > 0 {
		v.Recommendations = recs
		found = true
	}

	return v, found
}

// recommendationLines collects the text after "Recommendation(s):" and the bullet list under it.
func recommendationLines(text string) []string {
	var out []string
	lines := strings.Split(text, "\n")
	for i := 0; i < len(lines); i++ {
		m := recHeaderRx.FindStringSubmatch(lines[i])
		if m == nil {
			continue
		}
		if rest := strings.Trim(strings.TrimSpace(m[1]), "*_ "); rest != "" {
			out = append(out, rest)
		}
		for j := i + 1; j < len(lines); j++ {
			if strings.TrimSpace(lines[j]) == "" {
				if len(out) > 0 {
					break
				}
				continue
			}
			b := bulletRx.FindStringSubmatch(lines[j])
			if b == nil {
				break
			}
			out = append(out, strings.Trim(strings.TrimSpace(b[1]), "*_ "))
			i = j
		}
	}
	return out
}
