package channels

import (
	"context"
	"time"
)

// HistoryQuery parameters for fetching channel history
type HistoryQuery struct {
	ChannelID string
	Limit     int
	Oldest    time.Time // zero = no lower bound
	Inclusive bool
}

// ChatPlatform port (interface to the messaging service)
type ChatPlatform interface {
	ChannelInfo(ctx context.Context, channelID string) (*Channel, error)
	History(ctx context.Context, q HistoryQuery) ([]Message, error)
	UserInfo(ctx context.Context, userID string) (*User, error)
	ListChannels(ctx context.Context) ([]Channel, error)
	PostMessage(ctx context.Context, channelID, text string) error
	Join(ctx context.Context, channelID string) (*Channel, error)
}

// Repository port for persisting channel analyses
type Repository interface {
	UpsertChannel(ctx context.Context, c *Channel) error
	Upsert(ctx context.Context, a *ChannelAnalysis) (*ChannelAnalysis, error)
	Get(ctx context.Context, channelID string) (*ChannelAnalysis, error)
	List(ctx context.Context, limit int) ([]*ChannelAnalysis, error)
}

// ErrorLog port for refresh failures
type ErrorLog interface {
	Save(ctx context.Context, e *RefreshError) error
	ListByChannel(ctx context.Context, channelID string, limit int) ([]*RefreshError, error)
}

// ProjectRepository project registry plus the tasks extracted for each project
type ProjectRepository interface {
	CreateProject(ctx context.Context, p *Project) (*Project, error)
	ListProjects(ctx context.Context) ([]*Project, error)
	ProjectByChannel(ctx context.Context, channelID string) (*Project, error)
	SetCursor(ctx context.Context, projectID, lastMessageTS string) error
	AddTasks(ctx context.Context, tasks []*Task) error
	OpenTasks(ctx context.Context, projectID string) ([]*Task, error)
}
