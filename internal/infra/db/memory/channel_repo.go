package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	domain "github.com/bryanwahyu/hvac-owl/internal/domain/channels"
)

// ChannelRepository in-process store for development and tests
type ChannelRepository struct {
	mu       sync.RWMutex
	channels map[string]domain.Channel
	analyses map[string]domain.ChannelAnalysis
}

func NewChannelRepository() *ChannelRepository {
	return &ChannelRepository{
		channels: map[string]domain.Channel{},
		analyses: map[string]domain.ChannelAnalysis{},
	}
}

func (r *ChannelRepository) UpsertChannel(_ context.Context, c *domain.Channel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels[c.ID] = *c
	return nil
}

// Upsert replaces every field except CreatedAt of an existing analysis
func (r *ChannelRepository) Upsert(_ context.Context, a *domain.ChannelAnalysis) (*domain.ChannelAnalysis, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := clone(*a)
	if next.LastUpdated.IsZero() {
		next.LastUpdated = time.Now().UTC()
	}
	if prev, ok := r.analyses[a.ChannelID]; ok {
		next.CreatedAt = prev.CreatedAt
	} else if next.CreatedAt.IsZero() {
		next.CreatedAt = next.LastUpdated
	}
	r.analyses[a.ChannelID] = next
	out := clone(next)
	return &out, nil
}

func (r *ChannelRepository) Get(_ context.Context, channelID string) (*domain.ChannelAnalysis, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.analyses[channelID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, channelID)
	}
	out := clone(a)
	return &out, nil
}

// List most recently updated first
func (r *ChannelRepository) List(_ context.Context, limit int) ([]*domain.ChannelAnalysis, error) {
	r.mu.RLock()
	out := make([]*domain.ChannelAnalysis, 0, len(r.analyses))
	for _, a := range r.analyses {
		c := clone(a)
		out = append(out, &c)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].LastUpdated.Equal(out[j].LastUpdated) {
			return out[i].ChannelID < out[j].ChannelID
		}
		return out[i].LastUpdated.After(out[j].LastUpdated)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Channel returns a stored channel row
func (r *ChannelRepository) Channel(channelID string) (domain.Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.channels[channelID]
	return c, ok
}

func clone(a domain.ChannelAnalysis) domain.ChannelAnalysis {
	a.Decisions = append([]string{}, a.Decisions...)
	a.Progress = append([]string{}, a.Progress...)
	a.Questions = append([]string{}, a.Questions...)
	a.ActionItems = append([]string{}, a.ActionItems...)
	a.Risks = append([]string{}, a.Risks...)
	return a
}
