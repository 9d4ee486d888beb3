package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	domai "github.com/bryanwahyu/hvac-owl/internal/domain/ai"
	domch "github.com/bryanwahyu/hvac-owl/internal/domain/channels"
	domth "github.com/bryanwahyu/hvac-owl/internal/domain/thermostat"
	"github.com/bryanwahyu/hvac-owl/internal/middleware"
)

// Analyzer runs one thermostat compatibility check
type Analyzer interface {
	Analyze(ctx context.Context, req domth.AnalysisRequest) (*domth.Response, error)
}

// Owl is the Project Owl use-case surface
type Owl interface {
	DailyRecap(ctx context.Context, channelID string) (*domch.ChannelRecap, error)
	Refresh(ctx context.Context, channelID string) (*domch.ChannelAnalysis, error)
	Stored(ctx context.Context, channelID string) (*domch.ChannelAnalysis, error)
	ListStored(ctx context.Context, limit int) ([]*domch.ChannelAnalysis, error)
	RefreshErrors(ctx context.Context, channelID string, limit int) ([]*domch.RefreshError, error)
	Summaries(ctx context.Context) ([]domch.ChannelSummary, error)
	AllChannels(ctx context.Context) ([]domch.Channel, error)
	PostOwl(ctx context.Context, channelID string) error
	ListProjects(ctx context.Context) ([]domch.ProjectOverview, error)
	CreateProject(ctx context.Context, name, channelID string) (*domch.Project, error)
}

// Options knobs of the HTTP surface
type Options struct {
	Production  bool
	Limits      domth.Limits
	UploadDir   string
	VersionFile string
	CORSOrigins []string
	APIKeys     map[string]string
	RateLimiter *middleware.RateLimiter // nil = no limit on /api/analyze
	Checkers    map[string]middleware.HealthChecker
}

type Router struct {
	analyzer Analyzer
	owl      Owl
	opts     Options
}

func NewRouter(analyzer Analyzer, owl Owl, opts Options) http.Handler {
	if opts.UploadDir == "" {
		opts.UploadDir = os.TempDir()
	}
	r := &Router{analyzer: analyzer, owl: owl, opts: opts}
	mux := chi.NewRouter()

	mux.Use(chimw.RequestID)
	mux.Use(chimw.RealIP)
	mux.Use(middleware.LoggingMiddleware)
	mux.Use(middleware.Recoverer(opts.Production))
	mux.Use(middleware.MetricsMiddleware)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins(opts.CORSOrigins),
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-Id"},
		MaxAge:         300,
	}))

	mux.Route("/api", func(rt chi.Router) {
		rt.Get("/health", middleware.HealthHandler(opts.Checkers))
		rt.Get("/live", middleware.LivenessHandler)
		rt.Get("/version", r.handleVersion)
		rt.Get("/metrics", middleware.MetricsHandler)

		rt.Group(func(g chi.Router) {
			if opts.RateLimiter != nil {
				g.Use(middleware.RateLimitMiddleware(opts.RateLimiter))
			}
			g.Post("/analyze", r.wrap("Error analyzing thermostat", r.handleAnalyze))
		})

		if owl == nil {
			return
		}
		rt.Group(func(g chi.Router) {
			g.Use(middleware.APIKeyAuth(opts.APIKeys))

			g.Get("/analysis", r.wrap("Failed to generate analysis", r.handleRecap))
			g.Post("/analysis", r.wrap("Failed to refresh analysis", r.handleRefresh))
			g.Post("/analysis/refresh", r.wrap("Failed to refresh analysis", r.handleRefresh))
			g.Get("/analysis/{channelID}", r.wrap("Failed to load analysis", r.handleStored))
			g.Get("/analysis/{channelID}/errors", r.wrap("Failed to load refresh errors", r.handleRefreshErrors))
			g.Get("/analyses", r.wrap("Failed to list analyses", r.handleListStored))
			g.Get("/channels", r.wrap("Failed to fetch channels", r.handleChannels))
			g.Get("/slack/channels", r.wrap("Failed to fetch channels", r.handleAllChannels))
			g.Post("/post-owl", r.wrap("Failed to post owl emoji", r.handlePostOwl))
			g.Get("/projects", r.wrap("Failed to fetch projects", r.handleProjects))
			g.Post("/projects", r.wrap("Failed to create project", r.handleCreateProject))
		})
	})

	return mux
}

func corsOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// errorBody is the payload of every non-2xx JSON response
type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// wrap maps handler errors to status codes; failure is the `error` text of 500s
func (r *Router) wrap(failure string, h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}

		var verr *domth.ValidationError
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &verr):
			writeJSON(w, http.StatusBadRequest, errorBody{Error: verr.Message, Details: verr.Details})
		case errors.As(err, &maxErr):
			writeJSON(w, http.StatusBadRequest, errorBody{Error: domth.MsgTooLarge, Details: "Request body too large."})
		case errors.Is(err, domch.ErrChannelRequired):
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "Channel ID is required"})
		case errors.Is(err, domch.ErrInvalidChannel):
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid channel ID format"})
		case errors.Is(err, domch.ErrNoMessages):
			writeJSON(w, http.StatusNotFound, errorBody{Error: "No messages found"})
		case errors.Is(err, domch.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorBody{Error: "Analysis not found"})
		case errors.Is(err, domch.ErrChannelNotFound):
			writeJSON(w, http.StatusNotFound, errorBody{Error: "Channel not found"})
		case errors.Is(err, domch.ErrProjectNameRequired):
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "Project name is required"})
		case errors.Is(err, domch.ErrProjectExists):
			writeJSON(w, http.StatusConflict, errorBody{Error: "Project already exists"})
		case errors.Is(err, domch.ErrProjectNotFound):
			writeJSON(w, http.StatusNotFound, errorBody{Error: "Project not found"})
		case errors.Is(err, context.Canceled):
			// client went away, nobody reads the body
			log.Debug().Str("path", req.URL.Path).Msg("request cancelled")
		default:
			ev := log.Error().Err(err).Str("path", req.URL.Path)
			if domai.IsTransient(err) {
				// status stays 500, clients only learn when to retry
				middleware.RecordAITransient()
				ev = ev.Bool("ai_transient", true).Bool("ai_rate_limited", errors.Is(err, domai.ErrRateLimited))
				w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(err)))
			}
			ev.Msg(failure)
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: failure, Details: r.details(err)})
		}
	}
}

// provider quota windows are a minute; plain outages get a shorter hint
func retryAfterSeconds(err error) int {
	if errors.Is(err, domai.ErrRateLimited) {
		return 60
	}
	return 10
}

// details hides internals in production
func (r *Router) details(err error) string {
	if r.opts.Production {
		return middleware.GenericErrorDetails
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "request timed out: " + err.Error()
	}
	return err.Error()
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// GET /api/version
func (r *Router) handleVersion(w http.ResponseWriter, req *http.Request) {
	data, err := os.ReadFile(r.opts.VersionFile)
	if err != nil || !json.Valid(data) {
		log.Error().Err(err).Str("file", r.opts.VersionFile).Msg("read version file")
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Could not read version info"})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
