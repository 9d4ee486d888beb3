package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	domain "github.com/bryanwahyu/hvac-owl/internal/domain/channels"
)

type RefreshErrorRepository struct {
	mu   sync.Mutex
	rows []domain.RefreshError
}

func NewRefreshErrorRepository() *RefreshErrorRepository { return &RefreshErrorRepository{} }

func (r *RefreshErrorRepository) Save(_ context.Context, e *domain.RefreshError) error {
	row := *e
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	r.mu.Lock()
	r.rows = append(r.rows, row)
	r.mu.Unlock()
	return nil
}

// ListByChannel newest first
func (r *RefreshErrorRepository) ListByChannel(_ context.Context, channelID string, limit int) ([]*domain.RefreshError, error) {
	if limit <= 0 {
		limit = 20
	}
	r.mu.Lock()
	out := []*domain.RefreshError{}
	for i := range r.rows {
		if r.rows[i].ChannelID == channelID {
			e := r.rows[i]
			out = append(out, &e)
		}
	}
	r.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
