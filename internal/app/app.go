package app

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/perfinsight-backend/internal/data/db"
	"github.com/yungbote/perfinsight-backend/internal/data/repos"
	httpserver "github.com/yungbote/perfinsight-backend/internal/http"
	httpH "github.com/yungbote/perfinsight-backend/internal/http/handlers"
	httpMW "github.com/yungbote/perfinsight-backend/internal/http/middleware"
	"github.com/yungbote/perfinsight-backend/internal/jobs/pipeline/evidence_index"
	"github.com/yungbote/perfinsight-backend/internal/jobs/pipeline/sentiment_summarize"
	"github.com/yungbote/perfinsight-backend/internal/jobs/runtime"
	"github.com/yungbote/perfinsight-backend/internal/jobs/scheduler"
	"github.com/yungbote/perfinsight-backend/internal/observability"
	"github.com/yungbote/perfinsight-backend/internal/platform/logger"
)

type App struct {
	Log       *logger.Logger
	DB        *gorm.DB
	Cfg       Config
	Repos     repos.Set
	Clients   Clients
	Services  Services
	Server    *httpserver.Server
	Jobs      *runtime.Registry
	Scheduler *scheduler.Scheduler
	Metrics   *observability.Metrics

	pg           *db.PostgresService
	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

func New() (*App, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	tuning, err := LoadTuning(cfg.PipelineConfigPath)
	if err != nil {
		log.Sync()
		return nil, err
	}

	otelShutdown := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		Version:     cfg.Version,
	})
	metrics := observability.Init(log)

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	theDB := pg.DB()
	if cfg.RunMigrations {
		if err := db.AutoMigrateAll(theDB); err != nil {
			_ = pg.Close()
			log.Sync()
			return nil, fmt.Errorf("postgres automigrate: %w", err)
		}
	}

	clients, err := wireClients(log, cfg)
	if err != nil {
		_ = pg.Close()
		log.Sync()
		return nil, err
	}

	reposet := wireRepos(theDB, log)
	serviceset := wireServices(theDB, log, cfg, tuning, reposet, clients)

	registry, err := wireJobs(log, cfg, reposet, serviceset)
	if err != nil {
		clients.Close()
		_ = pg.Close()
		log.Sync()
		return nil, err
	}

	sqlDB, err := theDB.DB()
	if err != nil {
		clients.Close()
		_ = pg.Close()
		log.Sync()
		return nil, fmt.Errorf("postgres pool: %w", err)
	}

	server := httpserver.NewServer(httpserver.RouterConfig{
		Log:            log,
		ServiceName:    cfg.ServiceName,
		AllowedOrigins: cfg.AllowedOrigins,
		AuthMiddleware: httpMW.NewAuthMiddleware(log, httpMW.AuthConfig{
			Secret:   cfg.JWTSecret,
			Issuer:   cfg.JWTIssuer,
			Audience: cfg.JWTAudience,
		}),
		Metrics:          metrics,
		HealthHandler:    httpH.NewHealthHandler(sqlDB),
		ReviewHandler:    httpH.NewReviewHandler(log, serviceset.Reviews),
		SentimentHandler: httpH.NewSentimentHandler(log, serviceset.Sentiment),
	})

	return &App{
		Log:          log,
		DB:           theDB,
		Cfg:          cfg,
		Repos:        reposet,
		Clients:      clients,
		Services:     serviceset,
		Server:       server,
		Jobs:         registry,
		Scheduler:    scheduler.New(log, registry),
		Metrics:      metrics,
		pg:           pg,
		otelShutdown: otelShutdown,
	}, nil
}

func wireJobs(log *logger.Logger, cfg Config, rs repos.Set, svc Services) (*runtime.Registry, error) {
	log.Info("Wiring jobs...")
	registry := runtime.NewRegistry()
	if err := registry.Register(&sentiment_summarize.Job{
		Log:      log.With("job", sentiment_summarize.JobType),
		Svc:      svc.Sentiment,
		Lookback: cfg.Scheduler.SummarizeLookback,
		Period:   cfg.Scheduler.SummarizePeriod,
	}); err != nil {
		return nil, err
	}
	if err := registry.Register(&evidence_index.Job{
		Log:      log.With("job", evidence_index.JobType),
		Feedback: rs.Feedback,
		Indexer:  svc.ReviewPipeline,
		Lookback: cfg.Scheduler.IndexLookback,
		Workers:  cfg.Scheduler.IndexWorkers,
	}); err != nil {
		return nil, err
	}
	return registry, nil
}

// Start launches the background loops: metrics collectors and the job scheduler.
func (a *App) Start() error {
	if a == nil || a.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if a.Metrics != nil {
		a.Metrics.StartPostgresCollector(ctx, a.Log, a.DB)
	}

	if !a.Cfg.Scheduler.Enabled {
		a.Log.Info("scheduler disabled")
		return nil
	}
	entries := []scheduler.Entry{
		{JobType: sentiment_summarize.JobType, Spec: a.Cfg.Scheduler.SummarizeSpec, Timeout: a.Cfg.Scheduler.SummarizeTimeout},
	}
	if a.Clients.Vector != nil {
		entries = append(entries, scheduler.Entry{JobType: evidence_index.JobType, Spec: a.Cfg.Scheduler.IndexSpec, Timeout: a.Cfg.Scheduler.IndexTimeout})
	}
	for _, e := range entries {
		if err := a.Scheduler.Add(e); err != nil {
			return err
		}
	}
	a.Scheduler.Start(ctx)
	return nil
}

// RunJob runs one registered job to completion, outside the schedule.
func (a *App) RunJob(ctx context.Context, jobType string, timeout time.Duration) error {
	if a == nil || a.Scheduler == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.Scheduler.RunOnce(ctx, jobType, timeout)
}

func (a *App) Run(addr string) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.Server.Run(addr)
}

func (a *App) Shutdown(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return nil
	}
	return a.Server.Shutdown(ctx)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.Clients.Close()
	a.Clients = Clients{}
	if a.pg != nil {
		_ = a.pg.Close()
		a.pg = nil
	}
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = a.otelShutdown(ctx)
		cancel()
		a.otelShutdown = nil
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
