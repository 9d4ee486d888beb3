// Package bootstrap wires config into concrete adapters for the binaries under cmd/.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bryanwahyu/hvac-owl/internal/application"
	appch "github.com/bryanwahyu/hvac-owl/internal/application/channels"
	"github.com/bryanwahyu/hvac-owl/internal/config"
	"github.com/bryanwahyu/hvac-owl/internal/domain/ai"
	domch "github.com/bryanwahyu/hvac-owl/internal/domain/channels"
	"github.com/bryanwahyu/hvac-owl/internal/infra/ai/openai"
	"github.com/bryanwahyu/hvac-owl/internal/infra/ai/prompt"
	"github.com/bryanwahyu/hvac-owl/internal/infra/chat/slack"
	"github.com/bryanwahyu/hvac-owl/internal/infra/db/memory"
	mysqlp "github.com/bryanwahyu/hvac-owl/internal/infra/db/mysql"
	pgp "github.com/bryanwahyu/hvac-owl/internal/infra/db/postgres"
)

// LoadConfig reads CONFIG_PATH (default config.yaml)
func LoadConfig() (*config.Config, error) {
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}
	return config.Load(path)
}

// Logger console output in development, JSON in production
func Logger(cfg *config.Config) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if cfg.IsProduction() {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Str("env", cfg.App.Env).Logger()
		return
	}
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}

// Store repositories for the configured driver; DB is nil for the memory driver
type Store struct {
	Repo     domch.Repository
	Errors   domch.ErrorLog
	Projects domch.ProjectRepository
	DB       *sql.DB
}

func (s *Store) Close() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// OpenStore connects to mysql, postgres or keeps everything in memory
func OpenStore(ctx context.Context, cfg *config.Config) (*Store, error) {
	switch cfg.Database.Driver {
	case "mysql":
		db, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			return nil, fmt.Errorf("mysql connect: %w", err)
		}
		return &Store{
			Repo:     mysqlp.NewChannelRepository(db),
			Errors:   mysqlp.NewRefreshErrorRepository(db),
			Projects: mysqlp.NewProjectRepository(db),
			DB:       db,
		}, nil
	case "postgres", "postgresql":
		db, err := pgp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, fmt.Errorf("postgres connect: %w", err)
		}
		return &Store{
			Repo:     pgp.NewChannelRepository(db),
			Errors:   pgp.NewRefreshErrorRepository(db),
			Projects: pgp.NewProjectRepository(db),
			DB:       db,
		}, nil
	case "memory", "":
		log.Warn().Msg("database driver is memory, analyses are lost on restart")
		return &Store{
			Repo:     memory.NewChannelRepository(),
			Errors:   memory.NewRefreshErrorRepository(),
			Projects: memory.NewProjectRepository(),
		}, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

// AI completion client for the configured provider
func AI(cfg *config.Config) ai.Client {
	return openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Model)
}

// Slack chat-platform client with rate-limit retries
func Slack(cfg *config.Config) *slack.Client {
	opts := []slack.Option{slack.WithRetry(cfg.Slack.MaxRetries, time.Second)}
	if cfg.Slack.APIURL != "" {
		opts = append(opts, slack.WithAPIURL(strings.TrimRight(cfg.Slack.APIURL, "/")+"/"))
	}
	return slack.NewClient(cfg.Slack.BotToken, opts...)
}

// ChannelService Project Owl use-cases backed by the given store
func ChannelService(cfg *config.Config, client ai.Client, chat domch.ChatPlatform, store *Store) *appch.Service {
	return &appch.Service{
		Chat:         chat,
		AI:           client,
		Prompts:      prompt.ChannelPrompts{Model: cfg.OpenAI.OwlModel, MaxTokens: cfg.OpenAI.MaxTokens},
		Repo:         store.Repo,
		Errors:       store.Errors,
		Clock:        application.SystemClock{},
		Projects:     cfg.ProjectChannels(),
		Registry:     store.Projects,
		RecapDays:    cfg.Slack.RecapDays,
		HistoryLimit: cfg.Slack.HistoryLimit,
	}
}
