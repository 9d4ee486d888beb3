package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	domain "github.com/bryanwahyu/hvac-owl/internal/domain/channels"
)

type ChannelRepository struct {
	db *sql.DB
}

func NewChannelRepository(db *sql.DB) *ChannelRepository {
	return &ChannelRepository{db: db}
}

// UpsertChannel insert or rename a channel row
func (r *ChannelRepository) UpsertChannel(ctx context.Context, c *domain.Channel) error {
	const q = `
INSERT INTO owl_channels (id, name, purpose, num_members, created_at, last_updated)
VALUES (?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE
  name=VALUES(name), purpose=VALUES(purpose), num_members=VALUES(num_members), last_updated=VALUES(last_updated);
`
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, q, c.ID, stringOrDash(c.Name), c.Purpose, c.NumMembers, now, now)
	return err
}

// Upsert replaces the analysis of a channel; created_at is kept from the first insert
func (r *ChannelRepository) Upsert(ctx context.Context, a *domain.ChannelAnalysis) (*domain.ChannelAnalysis, error) {
	const q = `
INSERT INTO owl_channel_analyses
  (channel_id, channel_name, summary, decisions, progress, questions, action_items, risks, created_at, last_updated)
VALUES (?,?,?,?,?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE
  channel_name=VALUES(channel_name),
  summary=VALUES(summary),
  decisions=VALUES(decisions),
  progress=VALUES(progress),
  questions=VALUES(questions),
  action_items=VALUES(action_items),
  risks=VALUES(risks),
  last_updated=VALUES(last_updated);
`
	updated := a.LastUpdated
	if updated.IsZero() {
		updated = time.Now().UTC()
	}
	created := a.CreatedAt
	if created.IsZero() {
		created = updated
	}
	_, err := r.db.ExecContext(ctx, q,
		a.ChannelID, stringOrDash(a.ChannelName), a.Summary,
		jsonList(a.Decisions), jsonList(a.Progress), jsonList(a.Questions),
		jsonList(a.ActionItems), jsonList(a.Risks),
		created, updated,
	)
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, a.ChannelID)
}

const selectAnalysis = `
SELECT channel_id, channel_name, summary, decisions, progress, questions, action_items, risks, created_at, last_updated
FROM owl_channel_analyses`

func (r *ChannelRepository) Get(ctx context.Context, channelID string) (*domain.ChannelAnalysis, error) {
	row := r.db.QueryRowContext(ctx, selectAnalysis+` WHERE channel_id=?`, channelID)
	a, err := scanAnalysis(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, channelID)
	}
	return a, err
}

// List most recently updated first
func (r *ChannelRepository) List(ctx context.Context, limit int) ([]*domain.ChannelAnalysis, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, selectAnalysis+` ORDER BY last_updated DESC, channel_id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*domain.ChannelAnalysis{}
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(s scanner) (*domain.ChannelAnalysis, error) {
	var (
		a                                                  domain.ChannelAnalysis
		decisions, progress, questions, actionItems, risks string
	)
	if err := s.Scan(&a.ChannelID, &a.ChannelName, &a.Summary,
		&decisions, &progress, &questions, &actionItems, &risks,
		&a.CreatedAt, &a.LastUpdated); err != nil {
		return nil, err
	}
	a.Decisions = parseList(decisions)
	a.Progress = parseList(progress)
	a.Questions = parseList(questions)
	a.ActionItems = parseList(actionItems)
	a.Risks = parseList(risks)
	return &a, nil
}
