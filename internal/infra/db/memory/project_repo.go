package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	domain "github.com/bryanwahyu/hvac-owl/internal/domain/channels"
)

// ProjectRepository registry and tasks kept in process
type ProjectRepository struct {
	mu       sync.RWMutex
	projects map[string]domain.Project // by ID
	tasks    []domain.Task
}

func NewProjectRepository() *ProjectRepository {
	return &ProjectRepository{projects: map[string]domain.Project{}}
}

func (r *ProjectRepository) CreateProject(_ context.Context, p *domain.Project) (*domain.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.projects {
		if existing.ChannelID == p.ChannelID {
			return nil, domain.ErrProjectExists
		}
	}
	row := *p
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	r.projects[row.ID] = row
	out := row
	return &out, nil
}

// ListProjects oldest registration first
func (r *ProjectRepository) ListProjects(context.Context) ([]*domain.Project, error) {
	r.mu.RLock()
	out := make([]*domain.Project, 0, len(r.projects))
	for _, p := range r.projects {
		p := p
		out = append(out, &p)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *ProjectRepository) ProjectByChannel(_ context.Context, channelID string) (*domain.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.projects {
		if p.ChannelID == channelID {
			return &p, nil
		}
	}
	return nil, domain.ErrProjectNotFound
}

func (r *ProjectRepository) SetCursor(_ context.Context, projectID, ts string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.projects[projectID]
	if !ok {
		return domain.ErrProjectNotFound
	}
	p.LastMessageTS = ts
	r.projects[projectID] = p
	return nil
}

func (r *ProjectRepository) AddTasks(_ context.Context, tasks []*domain.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range tasks {
		row := *t
		if row.ID == "" {
			row.ID = uuid.NewString()
		}
		if row.Status == "" {
			row.Status = domain.TaskOpen
		}
		r.tasks = append(r.tasks, row)
	}
	return nil
}

// OpenTasks earliest due first
func (r *ProjectRepository) OpenTasks(_ context.Context, projectID string) ([]*domain.Task, error) {
	r.mu.RLock()
	out := []*domain.Task{}
	for i := range r.tasks {
		if r.tasks[i].ProjectID == projectID && r.tasks[i].Status == domain.TaskOpen {
			t := r.tasks[i]
			out = append(out, &t)
		}
	}
	r.mu.RUnlock()
	domain.SortTasksByDue(out)
	return out, nil
}
