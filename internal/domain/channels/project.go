package channels

import (
	"errors"
	"regexp"
	"sort"
	"strings"
	"time"
)

var (
	ErrProjectNameRequired = errors.New("project name is required")
	ErrProjectExists       = errors.New("project already exists")
	ErrProjectNotFound     = errors.New("project not found")
)

const (
	TaskOpen = "open"
	TaskDone = "done"
)

// Project a registered channel; LastMessageTS is the sync cursor
type Project struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	ChannelID     string    `json:"channelId"`
	LastMessageTS string    `json:"lastMessageTs,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Task an action item extracted during sync
type Task struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"projectId"`
	Description string     `json:"description"`
	Assignee    string     `json:"assignee"`
	DueDate     *time.Time `json:"dueDate"`
	DueText     string     `json:"dueText,omitempty"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// ProjectOverview is one row of GET /api/projects
type ProjectOverview struct {
	*Project
	LatestInsight *ChannelAnalysis `json:"latestInsight"`
	OpenTasks     []*Task          `json:"openTasks"`
}

// NewProject validates the registration input
func NewProject(name, channelID string, now time.Time) (*Project, error) {
	name = strings.TrimSpace(name)
	channelID = strings.TrimSpace(channelID)
	if name == "" {
		return nil, ErrProjectNameRequired
	}
	if err := ValidateChannelID(channelID); err != nil {
		return nil, err
	}
	return &Project{Name: name, ChannelID: channelID, CreatedAt: now}, nil
}

// "- Fix login (@bo, due: 2025-03-07)"; the due part is optional
var taskRx = regexp.MustCompile(`^(?:[-*•]\s*)?(.+?)\s*\(@([\w.\-]+)(?:,\s*due:\s*(.+?))?\)\s*$`)

var dueLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2006/01/02",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2 January 2006",
}

// ParseTasks turns action items of the form "desc (@user, due: X)" into open tasks.
// Items without an @assignee are not tasks and are skipped.
func ParseTasks(items []string, now time.Time) []*Task {
	out := []*Task{}
	for _, item := range items {
		for _, line := range strings.Split(item, "\n") {
			m := taskRx.FindStringSubmatch(strings.TrimSpace(line))
			if m == nil {
				continue
			}
			t := &Task{
				Description: strings.TrimSpace(m[1]),
				Assignee:    m[2],
				DueText:     strings.TrimSpace(m[3]),
				Status:      TaskOpen,
				CreatedAt:   now,
			}
			t.DueDate = parseDue(t.DueText)
			out = append(out, t)
		}
	}
	return out
}

// parseDue nil when the model wrote something like "Friday"
func parseDue(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range dueLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			d = d.UTC()
			return &d
		}
	}
	return nil
}

// SortTasksByDue earliest due date first, undated tasks last, then oldest first
func SortTasksByDue(tasks []*Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		switch {
		case a.DueDate != nil && b.DueDate != nil && !a.DueDate.Equal(*b.DueDate):
			return a.DueDate.Before(*b.DueDate)
		case a.DueDate != nil && b.DueDate == nil:
			return true
		case a.DueDate == nil && b.DueDate != nil:
			return false
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}

// NewestTS the most recent message timestamp, "" when none parse
func NewestTS(msgs []Message) string {
	var best string
	var bestT time.Time
	for _, m := range msgs {
		t, err := ParseTS(m.TS)
		if err != nil {
			continue
		}
		if best == "" || t.After(bestT) {
			best, bestT = m.TS, t
		}
	}
	return best
}

// After drops messages at or before cursor; unparseable timestamps are kept
func After(msgs []Message, cursor time.Time) []Message {
	out := msgs[:0:0]
	for _, m := range msgs {
		if t, err := ParseTS(m.TS); err == nil && !t.After(cursor) {
			continue
		}
		out = append(out, m)
	}
	return out
}
