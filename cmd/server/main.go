package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/paperpress/paperpress/internal/ai"
	"github.com/paperpress/paperpress/internal/api/handlers"
	"github.com/paperpress/paperpress/internal/api/middleware"
	"github.com/paperpress/paperpress/internal/assets"
	"github.com/paperpress/paperpress/internal/config"
	"github.com/paperpress/paperpress/internal/core"
	"github.com/paperpress/paperpress/internal/db"
)

func main() {
	configPath := pflag.StringP("config", "c", "config.yaml", "path to the configuration file")
	pflag.Parse()

	// A missing .env is fine; explicit env vars still apply.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	log := newLogger(cfg.Logging)

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var out = os.Stderr
	logger := zerolog.New(out)
	if cfg.Format == "text" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: out})
	}
	return logger.Level(level).With().Timestamp().Logger()
}

func run(cfg *config.Config, log zerolog.Logger) error {
	if err := os.MkdirAll(cfg.Storage.WorkRoot, 0o755); err != nil {
		return fmt.Errorf("failed to create work root: %w", err)
	}

	database, err := db.Open(cfg.Storage.DatabasePath)
	if err != nil {
		return err
	}
	defer database.Close()

	history := core.NewHistoryStore(database, log)
	if err := history.Load(); err != nil {
		return fmt.Errorf("failed to load job history: %w", err)
	}
	defer history.Close()

	filters, err := core.NewFilterStore(database, cfg.Storage.FiltersDir, log)
	if err != nil {
		return err
	}
	defer filters.Close()

	// The embedded default filter is materialized so pandoc can read it.
	defaultFilterPath := filepath.Join(cfg.Storage.WorkRoot, "linebreaks.lua")
	if err := os.WriteFile(defaultFilterPath, []byte(assets.DefaultFilter), 0o644); err != nil {
		return fmt.Errorf("failed to write default filter: %w", err)
	}

	converter := core.NewConverter(cfg.Convert.PandocPath, defaultFilterPath)
	watermarks := &core.WatermarkProvisioner{OverridePath: cfg.Storage.WatermarkOverride}
	retention := cfg.RetentionWindow()

	orch := core.NewOrchestrator(cfg.Storage.WorkRoot, converter, filters, history, watermarks, retention, log)

	if retention > 0 {
		sweeper := core.NewSweeper(history, cfg.Retention.SweepInterval, log)
		sweeper.Start()
		defer sweeper.Stop()
		log.Info().Dur("window", retention).Msg("retention sweeper started")
	} else {
		log.Info().Msg("retention disabled, jobs are kept indefinitely")
	}

	minutes := ai.NewMinutesClient(cfg.Minutes.APIBase, cfg.Minutes.APIKey, cfg.Minutes.Model)

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(log))

	convertHandler := handlers.NewConvertHandler(orch, cfg.Convert.MaxFiles, cfg.Convert.MaxFileSize, log)
	historyHandler := handlers.NewHistoryHandler(history, log)
	filterHandler := handlers.NewFilterHandler(filters, log)
	minutesHandler := handlers.NewMinutesHandler(minutes, cfg.Minutes.Enabled, log)
	previewHandler := handlers.NewPreviewHandler(log)

	api := router.Group("/api")
	convertHandler.RegisterRoutes(api)
	historyHandler.RegisterRoutes(api)
	filterHandler.RegisterRoutes(api)
	minutesHandler.RegisterRoutes(api, middleware.RateLimit(5, time.Minute))
	previewHandler.RegisterRoutes(api)

	historyHandler.RegisterDownloadRoutes(router)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
