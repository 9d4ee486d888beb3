package channels

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/hvac-owl/internal/domain/ai"
	domain "github.com/bryanwahyu/hvac-owl/internal/domain/channels"
	"github.com/bryanwahyu/hvac-owl/internal/infra/ai/prompt"
	"github.com/bryanwahyu/hvac-owl/internal/infra/db/memory"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type fakeChat struct {
	mu       sync.Mutex
	info     map[string]*domain.Channel
	history  map[string][]domain.Message
	users    map[string]*domain.User
	posted   map[string][]string
	queries  []domain.HistoryQuery
	failInfo error
}

func newFakeChat() *fakeChat {
	return &fakeChat{
		info:    map[string]*domain.Channel{},
		history: map[string][]domain.Message{},
		users:   map[string]*domain.User{},
		posted:  map[string][]string{},
	}
}

func (f *fakeChat) ChannelInfo(_ context.Context, id string) (*domain.Channel, error) {
	if f.failInfo != nil {
		return nil, f.failInfo
	}
	if c, ok := f.info[id]; ok {
		return c, nil
	}
	return nil, domain.ErrChannelNotFound
}

func (f *fakeChat) History(_ context.Context, q domain.HistoryQuery) ([]domain.Message, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()
	return f.history[q.ChannelID], nil
}

func (f *fakeChat) UserInfo(_ context.Context, id string) (*domain.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, errors.New("user_not_found")
}

func (f *fakeChat) ListChannels(context.Context) ([]domain.Channel, error) {
	return []domain.Channel{{ID: "C0123456", Name: "install"}}, nil
}

func (f *fakeChat) PostMessage(_ context.Context, id, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posted[id] = append(f.posted[id], text)
	return nil
}

func (f *fakeChat) Join(_ context.Context, id string) (*domain.Channel, error) {
	return &domain.Channel{ID: id}, nil
}

// scriptedAI routes on the system prompt
type scriptedAI struct {
	mu      sync.Mutex
	calls   []ai.CompletionRequest
	daily   func(user string) (string, error)
	actions string
	risks   string
	channel string
	fail    error
}

func (s *scriptedAI) Complete(_ context.Context, req ai.CompletionRequest) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	s.mu.Unlock()
	if s.fail != nil {
		return "", s.fail
	}
	sys := req.Messages[0].Text
	switch {
	case strings.Contains(sys, "project dashboard"):
		return s.channel, nil
	case strings.Contains(sys, "daily summaries"):
		return s.daily(req.Messages[1].Text)
	case strings.Contains(sys, "action items"):
		return s.actions, nil
	default:
		return s.risks, nil
	}
}

var now = time.Date(2024, 4, 6, 12, 0, 0, 0, time.UTC)

func fixture() (*Service, *fakeChat, *scriptedAI, *memory.ChannelRepository, *memory.RefreshErrorRepository) {
	chat := newFakeChat()
	chat.info["C0123456"] = &domain.Channel{ID: "C0123456", Name: "install-crew", Purpose: "installs"}
	chat.users["U01"] = &domain.User{ID: "U01", Name: "ana", RealName: "Ana Lima"}
	chat.users["U02"] = &domain.User{ID: "U02", Name: "ben", RealName: "Ben Ko"}
	chat.history["C0123456"] = []domain.Message{
		{TS: "1712404800.000100", User: "U01", Text: "Shipping the thermostat batch tomorrow, <@U02> please confirm"}, // 2024-04-06
		{TS: "1712318400.000100", User: "U02", Text: "Supplier delayed the C-wire adapters"},                          // 2024-04-05
		{TS: "1712318500.000100", User: "U01", Text: "   "},
	}
	fai := &scriptedAI{
		daily: func(string) (string, error) {
			return `{"summary":"Busy day","decisions":["ship"],"progress":[],"questions":[]}`, nil
		},
		actions: `["@ben confirm shipment"]`,
		risks:   `["Adapter delay"]`,
		channel: `{"summary":"Install crew update","decisions":["ship batch"],"progress":["batch ready"],"questions":[],"actionItems":["@ben confirm"],"risks":["adapter delay"]}`,
	}
	repo := memory.NewChannelRepository()
	errs := memory.NewRefreshErrorRepository()
	svc := &Service{
		Chat:     chat,
		AI:       fai,
		Prompts:  prompt.ChannelPrompts{Model: "o3-mini"},
		Repo:     repo,
		Errors:   errs,
		Clock:    fixedClock{now},
		Projects: []domain.ProjectChannel{{Name: "install", ID: "C0123456"}, {Name: "ghost", ID: "C0999999"}},
		Registry: memory.NewProjectRepository(),
	}
	return svc, chat, fai, repo, errs
}

func TestDailyRecap_PerDayNewestFirst(t *testing.T) {
	svc, chat, fai, _, _ := fixture()

	recap, err := svc.DailyRecap(context.Background(), "C0123456")
	require.NoError(t, err)
	assert.Empty(t, recap.Error)
	require.Len(t, recap.Highlights, 2)
	assert.Equal(t, "2024-04-06", recap.Highlights[0].Date)
	assert.Equal(t, "2024-04-05", recap.Highlights[1].Date)
	assert.Equal(t, []string{"@ben confirm shipment"}, recap.Highlights[0].ActionItems)
	assert.Equal(t, []string{"Adapter delay"}, recap.Highlights[0].Risks)
	assert.Equal(t, []string{}, recap.Highlights[0].Progress)

	require.Len(t, chat.queries, 1)
	assert.Equal(t, 200, chat.queries[0].Limit)
	assert.Equal(t, now.AddDate(0, 0, -14), chat.queries[0].Oldest)

	// mention resolved to the mentioned user, not the author
	var sawMention bool
	for _, c := range fai.calls {
		if strings.Contains(c.Messages[1].Text, "@ben please confirm") {
			sawMention = true
		}
	}
	assert.True(t, sawMention)
}

func TestDailyRecap_SkipsUnparseableDay(t *testing.T) {
	svc, _, fai, _, _ := fixture()
	fai.daily = func(user string) (string, error) {
		if strings.Contains(user, "2024-04-05") {
			return "sorry, no JSON today", nil
		}
		return `{"summary":"ok"}`, nil
	}

	recap, err := svc.DailyRecap(context.Background(), "C0123456")
	require.NoError(t, err)
	require.Len(t, recap.Highlights, 1)
	assert.Equal(t, "2024-04-06", recap.Highlights[0].Date)
}

func TestDailyRecap_TotalFailure(t *testing.T) {
	svc, _, fai, _, _ := fixture()
	fai.fail = ai.ErrUnavailable

	recap, err := svc.DailyRecap(context.Background(), "C0123456")
	require.NoError(t, err)
	assert.Equal(t, RecapFailed, recap.Error)
	assert.NotNil(t, recap.Highlights)
	assert.Empty(t, recap.Highlights)
}

func TestDailyRecap_RequiresChannel(t *testing.T) {
	svc, _, _, _, _ := fixture()
	_, err := svc.DailyRecap(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrChannelRequired)
}

func TestRefresh_UpsertsAnalysis(t *testing.T) {
	svc, chat, _, repo, _ := fixture()

	a, err := svc.Refresh(context.Background(), "C0123456")
	require.NoError(t, err)
	assert.Equal(t, "install-crew", a.ChannelName)
	assert.Equal(t, "Install crew update", a.Summary)
	assert.Equal(t, []string{"adapter delay"}, a.Risks)
	assert.Equal(t, 100, chat.queries[0].Limit)

	ch, ok := repo.Channel("C0123456")
	require.True(t, ok)
	assert.Equal(t, "install-crew", ch.Name)

	stored, err := svc.Stored(context.Background(), "C0123456")
	require.NoError(t, err)
	assert.Equal(t, a.Summary, stored.Summary)
}

func TestRefresh_NoMessages(t *testing.T) {
	svc, chat, _, _, _ := fixture()
	chat.history["C0123456"] = nil

	_, err := svc.Refresh(context.Background(), "C0123456")
	assert.ErrorIs(t, err, domain.ErrNoMessages)
}

func TestRefresh_RecordsFailure(t *testing.T) {
	svc, _, fai, _, errs := fixture()
	fai.fail = ai.ErrRateLimited

	_, err := svc.Refresh(context.Background(), "C0123456")
	require.ErrorIs(t, err, ai.ErrRateLimited)

	logged, err := errs.ListByChannel(context.Background(), "C0123456", 10)
	require.NoError(t, err)
	require.Len(t, logged, 1)
	assert.Equal(t, "analyze", logged[0].Phase)
	assert.JSONEq(t, `{"messages":2}`, logged[0].DetailsJSON)
}

func TestSummaries_PerChannelErrors(t *testing.T) {
	svc, chat, _, _, _ := fixture()

	out, err := svc.Summaries(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, "install-crew", out[0].Name)
	assert.Empty(t, out[0].Error)
	require.Len(t, out[0].Messages, 3)
	assert.Equal(t, "ana", out[0].Messages[0].Username)
	assert.Equal(t, "Ana Lima", out[0].Messages[0].RealName)

	assert.Equal(t, "C0999999", out[1].ID)
	assert.Equal(t, "unknown", out[1].Name)
	assert.NotEmpty(t, out[1].Error)
	assert.NotNil(t, out[1].Messages)

	for _, q := range chat.queries {
		assert.True(t, q.Inclusive)
		assert.Equal(t, now.Add(-24*time.Hour), q.Oldest)
	}
}

func TestSummaries_PrefersDisplayName(t *testing.T) {
	svc, chat, _, _, _ := fixture()
	chat.users["U01"] = &domain.User{ID: "U01", Name: "ana", RealName: "Ana Lima", DisplayName: "ana.l"}

	out, err := svc.Summaries(context.Background())
	require.NoError(t, err)
	msgs := out[0].Messages
	assert.Equal(t, "ana.l", msgs[0].Username)
	assert.Equal(t, "Ana Lima", msgs[0].RealName)
	assert.Equal(t, "ben", msgs[1].Username)
}

func TestPostOwl(t *testing.T) {
	svc, chat, _, _, _ := fixture()
	require.NoError(t, svc.PostOwl(context.Background(), "C0123456"))
	assert.Equal(t, []string{":owl:"}, chat.posted["C0123456"])

	assert.ErrorIs(t, svc.PostOwl(context.Background(), ""), domain.ErrChannelRequired)
}

func TestSyncAll_PostsDigestAndJoinsErrors(t *testing.T) {
	svc, chat, _, _, _ := fixture()

	err := svc.SyncAll(context.Background(), true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")

	require.Len(t, chat.posted["C0123456"], 1)
	assert.True(t, strings.HasPrefix(chat.posted["C0123456"][0], "*Daily Project Update*\nInstall crew update"))
}

func TestSyncAll_IncrementalCursorAndTasks(t *testing.T) {
	ctx := context.Background()
	svc, chat, fai, _, _ := fixture()
	fai.channel = `{"summary":"Install crew update","actionItems":["Confirm shipment (@ben, due: 2024-04-08)","@ana follow up"],"risks":[]}`

	err := svc.SyncAll(ctx, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")

	projects, err := svc.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 2)
	byChannel := map[string]domain.ProjectOverview{}
	for _, p := range projects {
		byChannel[p.ChannelID] = p
	}
	install, ghost := byChannel["C0123456"], byChannel["C0999999"]
	assert.Equal(t, "install", install.Name)
	assert.Equal(t, "1712404800.000100", install.LastMessageTS)
	require.NotNil(t, install.LatestInsight)
	assert.Equal(t, "Install crew update", install.LatestInsight.Summary)
	require.Len(t, install.OpenTasks, 1)
	assert.Equal(t, "ben", install.OpenTasks[0].Assignee)
	assert.Equal(t, "Confirm shipment", install.OpenTasks[0].Description)
	assert.Equal(t, "ghost", ghost.Name)
	assert.Nil(t, ghost.LatestInsight)
	assert.Empty(t, ghost.OpenTasks)

	// nothing new since the cursor: no model call, no new tasks
	channelCalls := func() (n int, last string) {
		fai.mu.Lock()
		defer fai.mu.Unlock()
		for _, c := range fai.calls {
			if strings.Contains(c.Messages[0].Text, "project dashboard") {
				n++
				last = c.Messages[1].Text
			}
		}
		return n, last
	}
	before, _ := channelCalls()
	require.Error(t, svc.SyncAll(ctx, false))
	after, _ := channelCalls()
	assert.Equal(t, before, after)

	cursor, err := domain.ParseTS("1712404800.000100")
	require.NoError(t, err)
	chat.mu.Lock()
	last := chat.queries[len(chat.queries)-1]
	chat.mu.Unlock()
	assert.Equal(t, "C0123456", last.ChannelID)
	assert.Equal(t, cursor, last.Oldest)
	assert.False(t, last.Inclusive)

	chat.history["C0123456"] = append([]domain.Message{
		{TS: "1712491200.000100", User: "U02", Text: "Adapters arrived at the depot"},
	}, chat.history["C0123456"]...)
	require.Error(t, svc.SyncAll(ctx, true))

	n, sent := channelCalls()
	assert.Equal(t, after+1, n)
	assert.Contains(t, sent, "Adapters arrived")
	assert.NotContains(t, sent, "Shipping the thermostat batch")
	require.Len(t, chat.posted["C0123456"], 1)

	p, err := svc.Registry.ProjectByChannel(ctx, "C0123456")
	require.NoError(t, err)
	assert.Equal(t, "1712491200.000100", p.LastMessageTS)
	open, err := svc.Registry.OpenTasks(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, open, 2)
}

func TestSyncAll_WithoutRegistryRereadsLatest(t *testing.T) {
	svc, chat, _, _, _ := fixture()
	svc.Registry = nil

	require.Error(t, svc.SyncAll(context.Background(), false))
	require.Error(t, svc.SyncAll(context.Background(), false))
	for _, q := range chat.queries {
		assert.True(t, q.Oldest.IsZero())
	}
	_, err := svc.ListProjects(context.Background())
	assert.Error(t, err)
}

func TestCreateProject(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _, _ := fixture()

	p, err := svc.CreateProject(ctx, "install", "C0123456")
	require.NoError(t, err)
	assert.Equal(t, now, p.CreatedAt)

	_, err = svc.CreateProject(ctx, "again", "C0123456")
	assert.ErrorIs(t, err, domain.ErrProjectExists)
	_, err = svc.CreateProject(ctx, " ", "C0123457")
	assert.ErrorIs(t, err, domain.ErrProjectNameRequired)
	_, err = svc.CreateProject(ctx, "bad", "general")
	assert.ErrorIs(t, err, domain.ErrInvalidChannel)
}

func TestScheduler_RegistersJob(t *testing.T) {
	svc, _, _, _, _ := fixture()
	s, err := NewScheduler(svc, "0 8 * * 1-5", true, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Entries())

	_, err = NewScheduler(svc, "not a cron spec", false, 0)
	assert.Error(t, err)
}
