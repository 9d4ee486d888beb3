package channels

import (
	"errors"
	"time"
)

var (
	ErrChannelRequired = errors.New("channel ID is required")
	ErrNoMessages      = errors.New("no messages found")
	ErrChannelNotFound = errors.New("channel not found")
	ErrInvalidChannel  = errors.New("invalid channel ID format")
	ErrNotFound        = errors.New("analysis not found")
)

// Channel metadata from the chat platform
type Channel struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Purpose    string `json:"purpose"`
	NumMembers int    `json:"numMembers,omitempty"`
}

// User info used to resolve mentions and authors
type User struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	RealName    string `json:"real_name"`
	DisplayName string `json:"display_name,omitempty"`
}

// Handle is what people type after @: the profile display name, else the account name
func (u *User) Handle() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Name
}

// Message one chat message, enriched with the author's names
type Message struct {
	TS         string `json:"ts"`
	User       string `json:"user,omitempty"`
	Username   string `json:"username,omitempty"`
	RealName   string `json:"real_name,omitempty"`
	Text       string `json:"text"`
	ThreadTS   string `json:"thread_ts,omitempty"`
	ReplyCount int    `json:"reply_count,omitempty"`
}

// ProcessedMessage is what gets sent to the model
type ProcessedMessage struct {
	Text      string `json:"text"`
	Username  string `json:"username"`
	Timestamp string `json:"timestamp"`
}

// Aggregate Root: ChannelAnalysis, replaced wholesale on every refresh
type ChannelAnalysis struct {
	ChannelID   string    `json:"channelId"`
	ChannelName string    `json:"channelName"`
	Summary     string    `json:"summary"`
	Decisions   []string  `json:"decisions"`
	Progress    []string  `json:"progress"`
	Questions   []string  `json:"questions"`
	ActionItems []string  `json:"actionItems"`
	Risks       []string  `json:"risks"`
	CreatedAt   time.Time `json:"createdAt"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// DailyHighlight recap of one UTC day
type DailyHighlight struct {
	Date        string   `json:"date"`
	Summary     string   `json:"summary"`
	Decisions   []string `json:"decisions"`
	Progress    []string `json:"progress"`
	Questions   []string `json:"questions"`
	ActionItems []string `json:"actionItems"`
	Risks       []string `json:"risks"`
}

type ChannelRecap struct {
	Highlights []DailyHighlight `json:"highlights"`
	Error      string           `json:"error,omitempty"`
}

// ChannelSummary last-24h view of a configured channel
type ChannelSummary struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Purpose  string    `json:"purpose"`
	Messages []Message `json:"messages"`
	Error    string    `json:"error,omitempty"`
}

// RefreshError persisted when a refresh fails
type RefreshError struct {
	ID          string    `json:"id"`
	ChannelID   string    `json:"channel_id"`
	Phase       string    `json:"phase,omitempty"` // fetch | analyze | store | post
	Message     string    `json:"message"`
	DetailsJSON string    `json:"details_json,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ProjectChannel entry of the configured channel list
type ProjectChannel struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}
