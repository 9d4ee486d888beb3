package mysql

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	domain "github.com/bryanwahyu/hvac-owl/internal/domain/channels"
)

type RefreshErrorRepository struct {
	db *sql.DB
}

func NewRefreshErrorRepository(db *sql.DB) *RefreshErrorRepository {
	return &RefreshErrorRepository{db: db}
}

func (r *RefreshErrorRepository) Save(ctx context.Context, e *domain.RefreshError) error {
	const q = `
INSERT INTO owl_refresh_errors
  (id, channel_id, phase, message, details_json, created_at)
VALUES (?,?,?,?,?,?)
`
	id := e.ID
	if id == "" {
		id = uuid.NewString()
	}
	msg := e.Message
	if strings.TrimSpace(msg) == "" {
		msg = "-"
	}
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, q, id, stringOrDash(e.ChannelID), stringOrDash(e.Phase), msg, validJSON(e.DetailsJSON), created)
	return err
}

func (r *RefreshErrorRepository) ListByChannel(ctx context.Context, channelID string, limit int) ([]*domain.RefreshError, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, channel_id, phase, message, details_json, created_at
FROM owl_refresh_errors
WHERE channel_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?;`
	rows, err := r.db.QueryContext(ctx, q, channelID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*domain.RefreshError{}
	for rows.Next() {
		var e domain.RefreshError
		if err := rows.Scan(&e.ID, &e.ChannelID, &e.Phase, &e.Message, &e.DetailsJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
