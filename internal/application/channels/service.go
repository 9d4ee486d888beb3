package channels

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/bryanwahyu/hvac-owl/internal/application"
	"github.com/bryanwahyu/hvac-owl/internal/domain/ai"
	domain "github.com/bryanwahyu/hvac-owl/internal/domain/channels"
)

const (
	// RecapFailed is returned inside the recap body, not as an HTTP error
	RecapFailed = "Failed to generate daily recap"

	OwlEmoji = ":owl:"

	defaultRecapDays    = 14
	defaultRecapLimit   = 200
	defaultHistoryLimit = 100
	userLookupLimit     = 5
	unknownName         = "Unknown"
)

// Prompts builds the Project Owl completion requests
type Prompts interface {
	DailySummary(date string, msgs []domain.ProcessedMessage) ai.CompletionRequest
	ActionItems(msgs []domain.ProcessedMessage) ai.CompletionRequest
	Risks(msgs []domain.ProcessedMessage) ai.CompletionRequest
	ChannelAnalysis(channelName string, msgs []domain.ProcessedMessage) ai.CompletionRequest
	Digest(a *domain.ChannelAnalysis) string
}

// Service implements the Project Owl use-cases
type Service struct {
	Chat     domain.ChatPlatform
	AI       ai.Client
	Prompts  Prompts
	Repo     domain.Repository
	Errors   domain.ErrorLog // optional
	Clock    application.Clock
	Projects []domain.ProjectChannel // seeded into Registry on sync

	// Registry enables project overviews, task extraction and incremental sync.
	// Without it SyncAll re-reads the latest HistoryLimit messages of Projects.
	Registry domain.ProjectRepository

	RecapDays    int
	RecapLimit   int
	HistoryLimit int
}

//
// ==== DAILY RECAP ====
//

// DailyRecap summarizes the last RecapDays of a channel, one highlight per UTC day.
// Model failures end up in recap.Error; only input and chat-platform errors are returned.
func (s *Service) DailyRecap(ctx context.Context, channelID string) (*domain.ChannelRecap, error) {
	if err := domain.ValidateChannelID(channelID); err != nil {
		return nil, err
	}
	days := orDefault(s.RecapDays, defaultRecapDays)
	msgs, err := s.Chat.History(ctx, domain.HistoryQuery{
		ChannelID: channelID,
		Limit:     orDefault(s.RecapLimit, defaultRecapLimit),
		Oldest:    s.now().AddDate(0, 0, -days),
	})
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	msgs, names := s.enrich(ctx, msgs)

	recap := &domain.ChannelRecap{Highlights: []domain.DailyHighlight{}}
	for _, day := range domain.GroupByDay(msgs) {
		processed := domain.Preprocess(day.Messages, names)
		if len(processed) == 0 {
			continue
		}

		raw, err := s.AI.Complete(ctx, s.Prompts.DailySummary(day.Date, processed))
		if err != nil {
			log.Error().Err(err).Str("channel", channelID).Str("date", day.Date).Msg("daily summary failed")
			return &domain.ChannelRecap{Highlights: []domain.DailyHighlight{}, Error: RecapFailed}, nil
		}
		in, err := domain.ParseDailySummary(raw)
		if err != nil {
			log.Warn().Err(err).Str("channel", channelID).Str("date", day.Date).Msg("skipping day, summary not parseable")
			continue
		}

		var actions, risks []string
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			actions = s.stringList(gctx, s.Prompts.ActionItems(processed), "actionItems", "action_items", "tasks")
			return nil
		})
		g.Go(func() error {
			risks = s.stringList(gctx, s.Prompts.Risks(processed), "risks", "blockers")
			return nil
		})
		_ = g.Wait()

		recap.Highlights = append(recap.Highlights, domain.DailyHighlight{
			Date:        day.Date,
			Summary:     in.Summary,
			Decisions:   nonNil(in.Decisions),
			Progress:    nonNil(in.Progress),
			Questions:   nonNil(in.Questions),
			ActionItems: actions,
			Risks:       risks,
		})
	}
	return recap, nil
}

// stringList never fails; errors become an empty list.
// keys[0] names the stage in logs and, with the rest, the preferred wrapper keys.
func (s *Service) stringList(ctx context.Context, req ai.CompletionRequest, keys ...string) []string {
	raw, err := s.AI.Complete(ctx, req)
	if err != nil {
		log.Warn().Err(err).Str("stage", keys[0]).Msg("completion failed, using empty list")
		return []string{}
	}
	return nonNil(domain.ParseStringList(raw, keys...))
}

//
// ==== REFRESH ====
//

// Refresh analyzes the latest messages and replaces the stored analysis
func (s *Service) Refresh(ctx context.Context, channelID string) (*domain.ChannelAnalysis, error) {
	if err := domain.ValidateChannelID(channelID); err != nil {
		return nil, err
	}
	a, _, err := s.analyze(ctx, channelID, "")
	return a, err
}

// analyze fetches messages newer than since ("" = latest HistoryLimit), runs the
// channel analysis and stores it. The newest message ts is returned as the next cursor.
func (s *Service) analyze(ctx context.Context, channelID, since string) (*domain.ChannelAnalysis, string, error) {
	info, err := s.Chat.ChannelInfo(ctx, channelID)
	if err != nil {
		s.recordError(channelID, "fetch", err, nil)
		return nil, "", fmt.Errorf("fetch channel info: %w", err)
	}
	q := domain.HistoryQuery{
		ChannelID: channelID,
		Limit:     orDefault(s.HistoryLimit, defaultHistoryLimit),
	}
	var cursor time.Time
	if since != "" {
		if cursor, err = domain.ParseTS(since); err == nil {
			q.Oldest = cursor
		}
	}
	msgs, err := s.Chat.History(ctx, q)
	if err != nil {
		s.recordError(channelID, "fetch", err, nil)
		return nil, "", fmt.Errorf("fetch history: %w", err)
	}
	if !q.Oldest.IsZero() {
		msgs = domain.After(msgs, cursor)
	}
	newest := domain.NewestTS(msgs)
	msgs, names := s.enrich(ctx, msgs)
	processed := domain.Preprocess(msgs, names)
	if len(processed) == 0 {
		return nil, "", domain.ErrNoMessages
	}

	name := info.Name
	if name == "" {
		name = "Unknown Channel"
	}
	raw, err := s.AI.Complete(ctx, s.Prompts.ChannelAnalysis(name, processed))
	if err != nil {
		s.recordError(channelID, "analyze", err, map[string]any{"messages": len(processed)})
		return nil, "", fmt.Errorf("analyze channel: %w", err)
	}
	in := domain.ParseInsights(raw)

	now := s.now().UTC()
	if err := s.Repo.UpsertChannel(ctx, &domain.Channel{ID: channelID, Name: name, Purpose: info.Purpose, NumMembers: info.NumMembers}); err != nil {
		s.recordError(channelID, "store", err, nil)
		return nil, "", fmt.Errorf("store channel: %w", err)
	}
	stored, err := s.Repo.Upsert(ctx, &domain.ChannelAnalysis{
		ChannelID:   channelID,
		ChannelName: name,
		Summary:     in.Summary,
		Decisions:   nonNil(in.Decisions),
		Progress:    nonNil(in.Progress),
		Questions:   nonNil(in.Questions),
		ActionItems: nonNil(in.ActionItems),
		Risks:       nonNil(in.Risks),
		CreatedAt:   now,
		LastUpdated: now,
	})
	if err != nil {
		s.recordError(channelID, "store", err, nil)
		return nil, "", fmt.Errorf("store analysis: %w", err)
	}

	log.Info().Str("channel", channelID).Int("messages", len(processed)).Bool("incremental", since != "").Msg("channel analysis refreshed")
	return stored, newest, nil
}

func (s *Service) recordError(channelID, phase string, cause error, details map[string]any) {
	log.Error().Err(cause).Str("channel", channelID).Str("phase", phase).Msg("refresh failed")
	if s.Errors == nil {
		return
	}
	var detailsJSON string
	if len(details) > 0 {
		if b, err := json.Marshal(details); err == nil {
			detailsJSON = string(b)
		}
	}
	// request context may be cancelled already; the failure is still worth keeping
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Errors.Save(ctx, &domain.RefreshError{
		ID:          uuid.NewString(),
		ChannelID:   channelID,
		Phase:       phase,
		Message:     cause.Error(),
		DetailsJSON: detailsJSON,
		CreatedAt:   s.now().UTC(),
	}); err != nil {
		log.Warn().Err(err).Str("channel", channelID).Msg("save refresh error failed")
	}
}

//
// ==== READ MODELS ====
//

// Stored ambil analysis terakhir untuk channel
func (s *Service) Stored(ctx context.Context, channelID string) (*domain.ChannelAnalysis, error) {
	if err := domain.ValidateChannelID(channelID); err != nil {
		return nil, err
	}
	return s.Repo.Get(ctx, channelID)
}

// ListStored analyses terbaru, most recently updated first
func (s *Service) ListStored(ctx context.Context, limit int) ([]*domain.ChannelAnalysis, error) {
	return s.Repo.List(ctx, orDefault(limit, 50))
}

// RefreshErrors recent refresh failures of a channel
func (s *Service) RefreshErrors(ctx context.Context, channelID string, limit int) ([]*domain.RefreshError, error) {
	if err := domain.ValidateChannelID(channelID); err != nil {
		return nil, err
	}
	if s.Errors == nil {
		return []*domain.RefreshError{}, nil
	}
	return s.Errors.ListByChannel(ctx, channelID, orDefault(limit, 20))
}

// Summaries last-24h messages of every configured project channel.
// A failing channel becomes an entry with Error set.
func (s *Service) Summaries(ctx context.Context) ([]domain.ChannelSummary, error) {
	out := make([]domain.ChannelSummary, len(s.Projects))
	var g errgroup.Group
	for i, p := range s.Projects {
		g.Go(func() error {
			out[i] = s.summary(ctx, p.ID)
			return nil
		})
	}
	_ = g.Wait()
	return out, nil
}

func (s *Service) summary(ctx context.Context, channelID string) domain.ChannelSummary {
	fail := func(err error) domain.ChannelSummary {
		log.Warn().Err(err).Str("channel", channelID).Msg("channel summary failed")
		return domain.ChannelSummary{ID: channelID, Name: "unknown", Messages: []domain.Message{}, Error: err.Error()}
	}
	info, err := s.Chat.ChannelInfo(ctx, channelID)
	if err != nil {
		return fail(err)
	}
	msgs, err := s.Chat.History(ctx, domain.HistoryQuery{
		ChannelID: channelID,
		Oldest:    s.now().Add(-24 * time.Hour),
		Inclusive: true,
	})
	if err != nil {
		return fail(err)
	}
	msgs, _ = s.enrich(ctx, msgs)
	if msgs == nil {
		msgs = []domain.Message{}
	}
	name := info.Name
	if name == "" {
		name = "unknown"
	}
	return domain.ChannelSummary{ID: channelID, Name: name, Purpose: info.Purpose, Messages: msgs}
}

// AllChannels channels visible to the bot
func (s *Service) AllChannels(ctx context.Context) ([]domain.Channel, error) {
	chans, err := s.Chat.ListChannels(ctx)
	if err != nil {
		return nil, err
	}
	if chans == nil {
		chans = []domain.Channel{}
	}
	return chans, nil
}

//
// ==== POSTING ====
//

// PostOwl posts the owl emoji to a channel
func (s *Service) PostOwl(ctx context.Context, channelID string) error {
	if channelID == "" {
		return domain.ErrChannelRequired
	}
	return s.Chat.PostMessage(ctx, channelID, OwlEmoji)
}

// Digest refresh lalu kirim ringkasan ke channel
func (s *Service) Digest(ctx context.Context, channelID string) (*domain.ChannelAnalysis, error) {
	a, err := s.Refresh(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if err := s.Chat.PostMessage(ctx, channelID, s.Prompts.Digest(a)); err != nil {
		s.recordError(channelID, "post", err, nil)
		return a, fmt.Errorf("post digest: %w", err)
	}
	return a, nil
}

// SyncAll refreshes every project channel (and posts a digest when post is set).
// Channels without new messages are skipped; other failures are joined.
func (s *Service) SyncAll(ctx context.Context, post bool) error {
	if s.Registry != nil {
		return s.syncRegistry(ctx, post)
	}
	var errs []error
	for _, p := range s.Projects {
		var err error
		if post {
			_, err = s.Digest(ctx, p.ID)
		} else {
			_, err = s.Refresh(ctx, p.ID)
		}
		if err = s.logSync(p.Name, p.ID, post, err); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Service) syncRegistry(ctx context.Context, post bool) error {
	for _, p := range s.Projects {
		if _, err := s.CreateProject(ctx, p.Name, p.ID); err != nil && !errors.Is(err, domain.ErrProjectExists) {
			log.Warn().Err(err).Str("project", p.Name).Msg("seed project failed")
		}
	}
	projects, err := s.Registry.ListProjects(ctx)
	if err != nil {
		return fmt.Errorf("list projects: %w", err)
	}
	var errs []error
	for _, p := range projects {
		_, err := s.SyncProject(ctx, p, post)
		if err = s.logSync(p.Name, p.ChannelID, post, err); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Service) logSync(name, channelID string, post bool, err error) error {
	switch {
	case errors.Is(err, domain.ErrNoMessages):
		log.Info().Str("channel", channelID).Str("project", name).Msg("no new messages to process")
		return nil
	case err != nil:
		return fmt.Errorf("%s (%s): %w", name, channelID, err)
	}
	log.Info().Str("channel", channelID).Str("project", name).Bool("posted", post).Msg("project synced")
	return nil
}

// SyncProject analyzes only the messages after the project's cursor, stores the
// action items that name an assignee as open tasks, advances the cursor and
// optionally posts the digest.
func (s *Service) SyncProject(ctx context.Context, p *domain.Project, post bool) (*domain.ChannelAnalysis, error) {
	a, newest, err := s.analyze(ctx, p.ChannelID, p.LastMessageTS)
	if err != nil {
		return nil, err
	}

	tasks := domain.ParseTasks(a.ActionItems, s.now().UTC())
	for _, t := range tasks {
		t.ProjectID = p.ID
	}
	if err := s.Registry.AddTasks(ctx, tasks); err != nil {
		s.recordError(p.ChannelID, "store", err, map[string]any{"tasks": len(tasks)})
		return a, fmt.Errorf("store tasks: %w", err)
	}
	if newest != "" {
		if err := s.Registry.SetCursor(ctx, p.ID, newest); err != nil {
			s.recordError(p.ChannelID, "store", err, nil)
			return a, fmt.Errorf("advance cursor: %w", err)
		}
		p.LastMessageTS = newest
	}

	if post {
		if err := s.Chat.PostMessage(ctx, p.ChannelID, s.Prompts.Digest(a)); err != nil {
			s.recordError(p.ChannelID, "post", err, nil)
			return a, fmt.Errorf("post digest: %w", err)
		}
	}
	log.Debug().Str("project", p.Name).Int("tasks", len(tasks)).Str("cursor", newest).Msg("project cursor advanced")
	return a, nil
}

//
// ==== PROJECTS ====
//

var errNoRegistry = errors.New("project registry not configured")

// CreateProject registers a channel as a project
func (s *Service) CreateProject(ctx context.Context, name, channelID string) (*domain.Project, error) {
	if s.Registry == nil {
		return nil, errNoRegistry
	}
	p, err := domain.NewProject(name, channelID, s.now().UTC())
	if err != nil {
		return nil, err
	}
	return s.Registry.CreateProject(ctx, p)
}

// ListProjects every project with its latest analysis and open tasks (earliest due first)
func (s *Service) ListProjects(ctx context.Context) ([]domain.ProjectOverview, error) {
	if s.Registry == nil {
		return nil, errNoRegistry
	}
	projects, err := s.Registry.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.ProjectOverview, len(projects))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range projects {
		g.Go(func() error {
			latest, err := s.Repo.Get(gctx, p.ChannelID)
			if err != nil && !errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("latest analysis of %s: %w", p.ChannelID, err)
			}
			tasks, err := s.Registry.OpenTasks(gctx, p.ID)
			if err != nil {
				return fmt.Errorf("open tasks of %s: %w", p.ChannelID, err)
			}
			out[i] = domain.ProjectOverview{Project: p, LatestInsight: latest, OpenTasks: tasks}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Join adds the bot to a channel
func (s *Service) Join(ctx context.Context, channelID string) (*domain.Channel, error) {
	if err := domain.ValidateChannelID(channelID); err != nil {
		return nil, err
	}
	return s.Chat.Join(ctx, channelID)
}

//
// ==== HELPERS ====
//

// enrich resolves authors and mentioned users; lookup failures fall back to "Unknown"
func (s *Service) enrich(ctx context.Context, msgs []domain.Message) ([]domain.Message, map[string]string) {
	ids := domain.UserIDs(msgs)
	users := make(map[string]*domain.User, len(ids))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(userLookupLimit)
	for _, id := range ids {
		g.Go(func() error {
			u, err := s.Chat.UserInfo(gctx, id)
			if err != nil {
				log.Debug().Err(err).Str("user", id).Msg("user lookup failed")
				return nil
			}
			mu.Lock()
			users[id] = u
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	names := make(map[string]string, len(users))
	for id, u := range users {
		names[id] = u.Handle()
	}
	out := make([]domain.Message, len(msgs))
	for i, m := range msgs {
		if m.User != "" {
			if u, ok := users[m.User]; ok {
				m.Username, m.RealName = u.Handle(), u.RealName
			} else if m.Username == "" {
				m.Username, m.RealName = unknownName, unknownName
			}
		}
		out[i] = m
	}
	return out, names
}

func (s *Service) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock.Now()
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
