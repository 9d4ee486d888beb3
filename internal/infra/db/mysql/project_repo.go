package mysql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	mysqldrv "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	domain "github.com/bryanwahyu/hvac-owl/internal/domain/channels"
)

// 1062 = ER_DUP_ENTRY
const errDupEntry = 1062

type ProjectRepository struct {
	db *sql.DB
}

func NewProjectRepository(db *sql.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

func (r *ProjectRepository) CreateProject(ctx context.Context, p *domain.Project) (*domain.Project, error) {
	const q = `
INSERT INTO owl_projects (id, name, channel_id, last_message_ts, created_at)
VALUES (?,?,?,?,?)
`
	row := *p
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if _, err := r.db.ExecContext(ctx, q, row.ID, row.Name, row.ChannelID, row.LastMessageTS, row.CreatedAt); err != nil {
		if isDuplicate(err) {
			return nil, domain.ErrProjectExists
		}
		return nil, err
	}
	return &row, nil
}

func (r *ProjectRepository) ListProjects(ctx context.Context) ([]*domain.Project, error) {
	const q = `
SELECT id, name, channel_id, last_message_ts, created_at
FROM owl_projects
ORDER BY created_at ASC, id ASC;`
	rows, err := r.db.QueryContext(ctx, q)
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
	const q = `
SELECT id, name, channel_id, last_message_ts, created_at
FROM owl_projects WHERE channel_id = ? LIMIT 1;`
	var p domain.Project
	err := r.db.QueryRowContext(ctx, q, channelID).Scan(&p.ID, &p.Name, &p.ChannelID, &p.LastMessageTS, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrProjectNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProjectRepository) SetCursor(ctx context.Context, projectID, ts string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE owl_projects SET last_message_ts = ? WHERE id = ?`, ts, projectID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// mysql reports 0 when the value is unchanged, so only a missing row is an error
		var one int
		if err := r.db.QueryRowContext(ctx, `SELECT 1 FROM owl_projects WHERE id = ?`, projectID).Scan(&one); errors.Is(err, sql.ErrNoRows) {
			return domain.ErrProjectNotFound
		}
	}
	return nil
}

// AddTasks inserts all tasks in one transaction
func (r *ProjectRepository) AddTasks(ctx context.Context, tasks []*domain.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const q = `
INSERT INTO owl_tasks (id, project_id, description, assignee, due_date, due_text, status, created_at)
VALUES (?,?,?,?,?,?,?,?)
`
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
		if _, err := tx.ExecContext(ctx, q, id, t.ProjectID, t.Description, t.Assignee, due, t.DueText, status, t.CreatedAt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// OpenTasks earliest due first, undated last
func (r *ProjectRepository) OpenTasks(ctx context.Context, projectID string) ([]*domain.Task, error) {
	const q = `
SELECT id, project_id, description, assignee, due_date, due_text, status, created_at
FROM owl_tasks
WHERE project_id = ? AND status = ?
ORDER BY due_date IS NULL, due_date ASC, created_at ASC;`
	rows, err := r.db.QueryContext(ctx, q, projectID, domain.TaskOpen)
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

func isDuplicate(err error) bool {
	var me *mysqldrv.MySQLError
	return errors.As(err, &me) && me.Number == errDupEntry
}
