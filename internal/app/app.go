package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/edumorph/core/internal/config"
	"github.com/edumorph/core/internal/database"
	"github.com/edumorph/core/internal/middleware"
	"github.com/edumorph/core/internal/modules/pipeline"
	"github.com/edumorph/core/internal/modules/pipeline/artifact"
	"github.com/edumorph/core/internal/modules/pipeline/extract"
	"github.com/edumorph/core/internal/modules/pipeline/provider"
	pkgcron "github.com/edumorph/core/internal/pkg/cron"
	pkgredis "github.com/edumorph/core/internal/pkg/redis"
	"github.com/edumorph/core/internal/pkg/taskqueue"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App holds all application dependencies.
type App struct {
	cfg    *config.AppConfig
	router *gin.Engine
	db     *gorm.DB
	logger *zap.Logger
	cancel context.CancelFunc
	sched  *pkgcron.Scheduler
	pipe   *pipeline.Pipeline
}

// New initializes the application: config → DB → Redis → pipeline → routes.
func New(logger *zap.Logger, cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if err := applyRuntimeSettings(cfg); err != nil {
		return nil, err
	}

	db, err := database.Connect(cfg, true)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	rc, err := pkgredis.Connect(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}

	pipe, err := buildPipeline(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	if cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))

	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "x-edu-cache"},
		AllowCredentials: true,
	}
	if len(cfg.AllowedOrigins) > 0 && !cfg.IsDev() {
		patterns := cfg.AllowedOrigins
		corsConfig.AllowOriginFunc = func(origin string) bool {
			host := extractOriginHost(origin)
			for _, pattern := range patterns {
				if matchOriginPattern(pattern, host) {
					return true
				}
			}
			return false
		}
	} else {
		corsConfig.AllowOriginFunc = func(origin string) bool { return true }
	}
	router.Use(cors.New(corsConfig))

	ctx, cancel := context.WithCancel(context.Background())

	taskSvc := taskqueue.NewService(rc)

	sched := pkgcron.New()
	registerCronJobs(sched, db, taskSvc, logger)
	go sched.Start(ctx)

	app := &App{cfg: cfg, router: router, db: db, logger: logger, cancel: cancel, sched: sched, pipe: pipe}
	app.registerRoutes(rc, taskSvc)

	return app, nil
}

// buildPipeline assembles the generation pipeline from configured providers.
// A config with no usable provider still yields a working pipeline backed by
// the deterministic fallback.
func buildPipeline(cfg *config.AppConfig, logger *zap.Logger) (*pipeline.Pipeline, error) {
	adapters := make([]provider.Adapter, 0, len(cfg.AI.Providers))
	for _, p := range cfg.AI.Providers {
		settings := provider.Settings{
			ID:       p.ID,
			Name:     p.Name,
			Type:     p.Type,
			APIKey:   p.APIKey,
			Endpoint: p.Endpoint,
			Model:    p.DefaultModel,
			Enabled:  p.Enabled,
		}
		// A provider without a credential is treated as disabled, not as a
		// misconfiguration. Generation falls through to the next one in order.
		if !settings.Usable() {
			if p.Enabled {
				logger.Info("ai provider has no api key, skipping", zap.String("provider", p.ID))
			}
			continue
		}
		adapter, err := provider.New(settings)
		if err != nil {
			return nil, fmt.Errorf("provider %q: %w", p.ID, err)
		}
		adapters = append(adapters, adapter)
	}
	logger.Info("ai providers configured",
		zap.Int("enabled", len(adapters)),
		zap.Int("total", len(cfg.AI.Providers)),
	)

	extractOpts := []extract.Option{
		extract.WithMaxTextRunes(cfg.Pipeline.MaxTextRunes),
	}
	if key := cfg.AI.Transcription.APIKey; key != "" {
		extractOpts = append(extractOpts, extract.WithTranscriber(
			extract.NewWhisperTranscriber(key, cfg.AI.Transcription.Endpoint, cfg.AI.Transcription.Model),
		))
	}

	policy := pipeline.Policy{
		AttemptsPerProvider: cfg.Pipeline.AttemptsPerProvider,
		InitialBackoff:      time.Duration(cfg.Pipeline.InitialBackoffMs) * time.Millisecond,
		CallTimeout:         time.Duration(cfg.Pipeline.CallTimeoutSeconds) * time.Second,
	}

	return pipeline.New(
		extract.New(extractOpts...),
		adapters,
		pipeline.WithPolicy(policy),
		pipeline.WithLogger(logger),
	), nil
}

// defaultArtifactOptions translates the configured shaping knobs into
// per-request defaults.
func defaultArtifactOptions(cfg *config.AppConfig) artifact.Options {
	return artifact.Options{
		MaxSummarySentences: cfg.Pipeline.SummarySentences,
		MaxKeyPoints:        cfg.Pipeline.KeyPoints,
		FlashcardCount:      cfg.Pipeline.FlashcardCount,
		QuestionCount:       cfg.Pipeline.QuestionCount,
		OverallTimeoutMs:    cfg.Pipeline.OverallTimeoutSeconds * 1000,
	}.Normalize()
}

// Addr returns the listen address.
func (a *App) Addr() string { return fmt.Sprintf(":%d", a.cfg.Port) }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }

// Shutdown cleans up background goroutines.
func (a *App) Shutdown() { a.cancel() }

func (a *App) startTime() time.Time {
	return processStart
}

var processStart = time.Now()
