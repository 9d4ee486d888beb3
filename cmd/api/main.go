package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/bryanwahyu/hvac-owl/internal/application"
	appch "github.com/bryanwahyu/hvac-owl/internal/application/channels"
	appth "github.com/bryanwahyu/hvac-owl/internal/application/thermostat"
	"github.com/bryanwahyu/hvac-owl/internal/bootstrap"
	domth "github.com/bryanwahyu/hvac-owl/internal/domain/thermostat"
	"github.com/bryanwahyu/hvac-owl/internal/infra/ai/prompt"
	"github.com/bryanwahyu/hvac-owl/internal/infra/httpserver"
	"github.com/bryanwahyu/hvac-owl/internal/infra/storage"
	"github.com/bryanwahyu/hvac-owl/internal/middleware"
)

func main() {
	// load config
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}
	bootstrap.Logger(cfg)

	ctx := context.Background()

	if cfg.OpenAI.APIKey == "" {
		log.Warn().Msg("OPENAI_API_KEY is not set, completion calls will fail")
	}
	aiClient := bootstrap.AI(cfg)

	prompts, err := prompt.LoadThermostat(cfg.Analysis.PromptsFile, cfg.OpenAI.Model)
	if err != nil {
		log.Fatal().Err(err).Str("file", cfg.Analysis.PromptsFile).Msg("load prompts")
	}

	if err := os.MkdirAll(cfg.Analysis.UploadDir, 0o700); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.Analysis.UploadDir).Msg("create upload dir")
	}

	limits := domth.DefaultLimits()
	if cfg.Analysis.MaxFiles > 0 {
		limits.MaxFiles = cfg.Analysis.MaxFiles
	}
	if cfg.Analysis.MaxFileSize > 0 {
		limits.MaxFileSize = cfg.Analysis.MaxFileSize
	}
	if len(cfg.Analysis.AllowedTypes) > 0 {
		limits.AllowedTypes = cfg.Analysis.AllowedTypes
	}

	thermostat := &appth.Service{
		AI:          aiClient,
		Prompts:     prompts,
		Clock:       application.SystemClock{},
		Limits:      limits,
		Timeout:     cfg.Analysis.Timeout.Std(),
		Concurrency: cfg.Analysis.Concurrency,
	}

	// init minio (optional photo archive)
	if cfg.Minio.Enabled {
		store, err := storage.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			log.Fatal().Err(err).Msg("minio init")
		}
		thermostat.Archive = store
	}

	checkers := map[string]middleware.HealthChecker{}

	// Project Owl needs a bot token; without it only the thermostat checker runs
	var (
		owl       httpserver.Owl
		scheduler *appch.Scheduler
	)
	if cfg.Slack.BotToken != "" {
		store, err := bootstrap.OpenStore(ctx, cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("open store")
		}
		defer store.Close()
		if store.DB != nil {
			checkers["database"] = &middleware.DatabaseHealthChecker{DB: store.DB}
		}

		svc := bootstrap.ChannelService(cfg, aiClient, bootstrap.Slack(cfg), store)
		owl = svc

		if cfg.Owl.Schedule != "" {
			scheduler, err = appch.NewScheduler(svc, cfg.Owl.Schedule, cfg.Owl.PostDigest, 0)
			if err != nil {
				log.Fatal().Err(err).Str("schedule", cfg.Owl.Schedule).Msg("invalid owl schedule")
			}
			scheduler.Start()
			log.Info().Str("schedule", cfg.Owl.Schedule).Int("projects", len(svc.Projects)).Msg("owl sync scheduled")
		}
	} else {
		log.Warn().Msg("SLACK_BOT_TOKEN is not set, Project Owl endpoints disabled")
	}

	limiter := middleware.NewRateLimiter(cfg.Server.RateLimit.Requests, cfg.Server.RateLimit.Window.Std())
	go func() {
		t := time.NewTicker(5 * time.Minute)
		defer t.Stop()
		for range t.C {
			limiter.Cleanup(10 * time.Minute)
		}
	}()

	// init router
	mux := chi.NewRouter()
	mux.Mount("/", httpserver.NewRouter(thermostat, owl, httpserver.Options{
		Production:  cfg.IsProduction(),
		Limits:      limits,
		UploadDir:   cfg.Analysis.UploadDir,
		VersionFile: cfg.App.VersionFile,
		CORSOrigins: cfg.Server.CORSOrigins,
		APIKeys:     middleware.KeysFromList(cfg.Server.APIKeys),
		RateLimiter: limiter,
		Checkers:    checkers,
	}))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout.Std(),
		WriteTimeout: cfg.Server.WriteTimeout.Std(),
		IdleTimeout:  60 * time.Second,
	}

	// run server
	go func() {
		log.Info().Str("addr", addr).Str("env", cfg.App.Env).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Info().Msg("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
	defer cancel()
	if scheduler != nil {
		select {
		case <-scheduler.Stop().Done():
		case <-ctx2.Done():
			log.Warn().Msg("owl sync still running at shutdown")
		}
	}
	if err := srv.Shutdown(ctx2); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
}
