package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	domain "github.com/bryanwahyu/hvac-owl/internal/domain/channels"
)

const uniqueViolation = pq.ErrorCode("23505")

type ProjectRepository struct{ db *sql.DB }

func NewProjectRepository(db *sql.DB) *ProjectRepository { return &ProjectRepository{db: db} }

func (r *ProjectRepository) CreateProject(ctx context.Context, p *domain.Project) (*domain.Project, error) {
	const q = `
INSERT INTO owl_projects (id, name, channel_id, last_message_ts, created_at)
VALUES ($1,$2,$3,$4,$5)`
	row := *p
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if _, err := r.db.ExecContext(ctx, q, row.ID, row.Name, row.ChannelID, row.LastMessageTS, row.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrProjectExists
		}
		return nil, err
	}
	return &row, nil
}

func (r *ProjectRepository) ListProjects(ctx context.Context) ([]*domain.Project, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, name, channel_id, last_message_ts, created_at
FROM owl_projects
ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*domain.Project{}
	for rows.Next() {
		var p domain.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.ChannelID, &p.LastMessageTS, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

func (r *ProjectRepository) ProjectByChannel(ctx context.Context, channelID string) (*domain.Project, error) {
	var p domain.Project
	err := r.db.QueryRowContext(ctx, `
SELECT id, name, channel_id, last_message_ts, created_at
FROM owl_projects WHERE channel_id = $1`, channelID).
		Scan(&p.ID, &p.Name, &p.ChannelID, &p.LastMessageTS, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrProjectNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProjectRepository) SetCursor(ctx context.Context, projectID, ts string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE owl_projects SET last_message_ts = $2 WHERE id = $1`, projectID, ts)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrProjectNotFound
	}
	return nil
}

func (r *ProjectRepository) AddTasks(ctx context.Context, tasks []*domain.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO owl_tasks (id, project_id, description, assignee, due_date, due_text, status, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, t := range tasks {
		id := t.ID
		if id == "" {
			id = uuid.NewString()
		}
		status := t.Status
		if status == "" {
			status = domain.TaskOpen
		}
		var due sql.NullTime
		if t.DueDate != nil {
			due = sql.NullTime{Time: *t.DueDate, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, id, t.ProjectID, t.Description, t.Assignee, due, t.DueText, status, t.CreatedAt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *ProjectRepository) OpenTasks(ctx context.Context, projectID string) ([]*domain.Task, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, project_id, description, assignee, due_date, due_text, status, created_at
FROM owl_tasks
WHERE project_id = $1 AND status = $2
ORDER BY due_date ASC NULLS LAST, created_at ASC`, projectID, domain.TaskOpen)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*domain.Task{}
	for rows.Next() {
		var t domain.Task
		var due sql.NullTime
		if err := rows.Scan(&t.ID, &t.ProjectID, &t.Description, &t.Assignee, &due, &t.DueText, &t.Status, &t.CreatedAt); err != nil {
			return nil, err
		}
		if due.Valid {
			d := due.Time.UTC()
			t.DueDate = &d
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pe *pq.Error
	return errors.As(err, &pe) && pe.Code == uniqueViolation
}
