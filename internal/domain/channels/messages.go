package channels

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

var channelIDRx = regexp.MustCompile(`^[CGD][A-Z0-9]{6,20}$`)

// ValidateChannelID checks the chat platform's channel ID shape (C…, G…, D…)
func ValidateChannelID(id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrChannelRequired
	}
	if !channelIDRx.MatchString(id) {
		return ErrInvalidChannel
	}
	return nil
}

// ParseProjectChannels parses "name=ID,name2=ID2"; entries without an ID are skipped.
func ParseProjectChannels(s string) []ProjectChannel {
	var out []ProjectChannel
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, id, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		out = append(out, ProjectChannel{Name: strings.TrimSpace(name), ID: id})
	}
	return out
}

// ParseTS converts a message timestamp ("1712345678.000200") to time
func ParseTS(ts string) (time.Time, error) {
	sec, frac, _ := strings.Cut(ts, ".")
	s, err := strconv.ParseInt(sec, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid message ts %q: %w", ts, err)
	}
	var micros int64
	if frac != "" {
		if len(frac) > 6 {
			frac = frac[:6]
		}
		frac += strings.Repeat("0", 6-len(frac))
		micros, _ = strconv.ParseInt(frac, 10, 64)
	}
	return time.Unix(s, micros*int64(time.Microsecond)).UTC(), nil
}

// FormatTS is the inverse of ParseTS
func FormatTS(t time.Time) string {
	return fmt.Sprintf("%d.%06d", t.Unix(), t.Nanosecond()/int(time.Microsecond))
}

// DayGroup messages of a single UTC day
type DayGroup struct {
	Date     string
	Messages []Message
}

// GroupByDay buckets messages by UTC date, newest day first. Messages with a bad ts are dropped.
func GroupByDay(msgs []Message) []DayGroup {
	byDay := map[string][]Message{}
	for _, m := range msgs {
		t, err := ParseTS(m.TS)
		if err != nil {
			continue
		}
		d := t.Format("2006-01-02")
		byDay[d] = append(byDay[d], m)
	}
	dates := make([]string, 0, len(byDay))
	for d := range byDay {
		dates = append(dates, d)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))

	out := make([]DayGroup, 0, len(dates))
	for _, d := range dates {
		out = append(out, DayGroup{Date: d, Messages: byDay[d]})
	}
	return out
}

var mentionRx = regexp.MustCompile(`<@([A-Z0-9]+)(?:\|[^>]*)?>`)

// Preprocess drops empty messages, resolves <@U…> mentions to @username and
// keeps only what the model needs.
func Preprocess(msgs []Message, names map[string]string) []ProcessedMessage {
	out := make([]ProcessedMessage, 0, len(msgs))
	for _, m := range msgs {
		if strings.TrimSpace(m.Text) == "" {
			continue
		}
		text := mentionRx.ReplaceAllStringFunc(m.Text, func(s string) string {
			id := mentionRx.FindStringSubmatch(s)[1]
			if n, ok := names[id]; ok && n != "" {
				return "@" + n
			}
			return "@" + id
		})
		username := m.Username
		if username == "" {
			username = "unknown"
		}
		ts := ""
		if t, err := ParseTS(m.TS); err == nil {
			ts = t.Format(time.RFC3339)
		}
		out = append(out, ProcessedMessage{Text: text, Username: username, Timestamp: ts})
	}
	return out
}

// NameMap builds userID -> username from already-enriched messages
func NameMap(msgs []Message) map[string]string {
	names := make(map[string]string, len(msgs))
	for _, m := range msgs {
		if m.User != "" && m.Username != "" {
			names[m.User] = m.Username
		}
	}
	return names
}

// UserIDs authors and mentioned users, deduplicated, in first-seen order
func UserIDs(msgs []Message) []string {
	seen := map[string]bool{}
	var out []string
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, m := range msgs {
		add(m.User)
		for _, sm := range mentionRx.FindAllStringSubmatch(m.Text, -1) {
			add(sm[1])
		}
	}
	return out
}
