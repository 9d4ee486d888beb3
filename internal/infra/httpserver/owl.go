package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	domth "github.com/bryanwahyu/hvac-owl/internal/domain/thermostat"
	"github.com/bryanwahyu/hvac-owl/internal/middleware"
)

type channelBody struct {
	ChannelID string `json:"channelId"`
}

// channelID from ?channelId= or a JSON body {"channelId": "..."}
func channelID(req *http.Request) (string, error) {
	if id := strings.TrimSpace(req.URL.Query().Get("channelId")); id != "" {
		return id, nil
	}
	if req.Body == nil || req.Method == http.MethodGet {
		return "", nil
	}
	var body channelBody
	if err := json.NewDecoder(io.LimitReader(req.Body, 1<<20)).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		return "", &domth.ValidationError{Message: "Invalid request body", Details: err.Error()}
	}
	return strings.TrimSpace(body.ChannelID), nil
}

// GET /api/analysis?channelId=C123 → daily recap.
// Without channelId the stored analyses are listed.
func (r *Router) handleRecap(w http.ResponseWriter, req *http.Request) error {
	id, _ := channelID(req)
	if id == "" {
		return r.handleListStored(w, req)
	}
	recap, err := r.owl.DailyRecap(req.Context(), id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, recap)
}

// POST /api/analysis, POST /api/analysis/refresh
// Body: {"channelId": "C123"}
func (r *Router) handleRefresh(w http.ResponseWriter, req *http.Request) (err error) {
	defer func() { middleware.RecordRefresh(err != nil) }()

	id, err := channelID(req)
	if err != nil {
		return err
	}
	a, err := r.owl.Refresh(req.Context(), id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, a)
}

// GET /api/analysis/{channelID}
func (r *Router) handleStored(w http.ResponseWriter, req *http.Request) error {
	a, err := r.owl.Stored(req.Context(), chi.URLParam(req, "channelID"))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, a)
}

// GET /api/analysis/{channelID}/errors?limit=20
func (r *Router) handleRefreshErrors(w http.ResponseWriter, req *http.Request) error {
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	list, err := r.owl.RefreshErrors(req.Context(), chi.URLParam(req, "channelID"), middleware.ValidateLimit(limit))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, list)
}

// GET /api/analyses?limit=50
func (r *Router) handleListStored(w http.ResponseWriter, req *http.Request) error {
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 50
	}
	list, err := r.owl.ListStored(req.Context(), middleware.ValidateLimit(limit))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, list)
}

// GET /api/channels
func (r *Router) handleChannels(w http.ResponseWriter, req *http.Request) error {
	list, err := r.owl.Summaries(req.Context())
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, list)
}

// GET /api/slack/channels
func (r *Router) handleAllChannels(w http.ResponseWriter, req *http.Request) error {
	list, err := r.owl.AllChannels(req.Context())
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, list)
}

// POST /api/post-owl
// Body: {"channelId": "C123"}
func (r *Router) handlePostOwl(w http.ResponseWriter, req *http.Request) error {
	id, err := channelID(req)
	if err != nil {
		return err
	}
	if err := r.owl.PostOwl(req.Context(), id); err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// GET /api/projects → projects with their latest analysis and open tasks
func (r *Router) handleProjects(w http.ResponseWriter, req *http.Request) error {
	list, err := r.owl.ListProjects(req.Context())
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, list)
}

// POST /api/projects
// Body: {"name": "install", "channelId": "C123"}
func (r *Router) handleCreateProject(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Name      string `json:"name"`
		ChannelID string `json:"channelId"`
	}
	if err := json.NewDecoder(io.LimitReader(req.Body, 1<<20)).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		return &domth.ValidationError{Message: "Invalid request body", Details: err.Error()}
	}
	p, err := r.owl.CreateProject(req.Context(), middleware.SanitizeString(body.Name), body.ChannelID)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, p)
}
