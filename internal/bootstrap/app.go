package bootstrap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"foerderscout/internal/ai"
	appsvc "foerderscout/internal/app"
	"foerderscout/internal/cache"
	"foerderscout/internal/config"
	"foerderscout/internal/logger"
	"foerderscout/internal/model"
	postgresClient "foerderscout/internal/platform/postgres"
	qdrantClient "foerderscout/internal/platform/qdrant"
	rabbitmqClient "foerderscout/internal/platform/rabbitmq"
	redisClient "foerderscout/internal/platform/redis"
	"foerderscout/internal/repository"
	"foerderscout/internal/worker"
)

type App struct {
	Config     *config.Config
	Logger     *zap.Logger
	Postgres   *gorm.DB
	Redis      *redis.Client
	MQConn     *amqp.Connection
	GrantIndex *qdrantClient.GrantIndex
	Services   *Services
	JobWorker  *worker.JobWorker
	Scheduler  *worker.Scheduler

	StartedAt time.Time
}

// Deps are the infrastructure clients the services are built from.
type Deps struct {
	DB       *gorm.DB
	Cache    appsvc.SearchCache
	Jobs     appsvc.JobQueue
	Index    appsvc.GrantIndex
	LLM      appsvc.LLM
	Embedder appsvc.Embedder
}

type Services struct {
	Auth         *appsvc.AuthService
	Grants       *appsvc.GrantService
	Applications *appsvc.ApplicationService
	Documents    *appsvc.DocumentService
	Importer     *appsvc.ImportService
	Indexer      *appsvc.GrantIndexer
}

func NewServices(cfg *config.Config, deps Deps, log *zap.Logger) (*Services, error) {
	userRepo := repository.NewUserRepository(deps.DB)
	grantRepo := repository.NewGrantRepository(deps.DB)
	appRepo := repository.NewApplicationRepository(deps.DB)
	sectionRepo := repository.NewSectionRepository(deps.DB)
	docRepo := repository.NewDocumentRepository(deps.DB)

	importer, err := appsvc.NewImportService(grantRepo, deps.Jobs, deps.Cache, log.Named("import"))
	if err != nil {
		return nil, err
	}

	return &Services{
		Auth:   appsvc.NewAuthService(userRepo, appRepo, cfg.Auth.JWTSecret, cfg.JWTExpiry(), log.Named("auth")),
		Grants: appsvc.NewGrantService(grantRepo, deps.Index, deps.Embedder, deps.Cache, log.Named("grants")),
		Applications: appsvc.NewApplicationService(
			appRepo,
			sectionRepo,
			grantRepo,
			userRepo,
			appsvc.NewApplicationWriter(deps.LLM),
			deps.Jobs,
			cfg.Storage.DocumentsDir,
			log.Named("applications"),
		),
		Documents: appsvc.NewDocumentService(appRepo, docRepo, deps.Jobs, cfg.Storage.DocumentsDir, cfg.Storage.MaxUploadBytes, log.Named("documents")),
		Importer:  importer,
		Indexer:   appsvc.NewGrantIndexer(grantRepo, deps.Index, deps.Embedder, deps.Cache, log.Named("indexer")),
	}, nil
}

// Option adjusts how New wires the application.
type Option func(*config.Config)

// WithoutWorker skips the job consumer and scheduler, for one-shot commands.
func WithoutWorker() Option {
	return func(cfg *config.Config) {
		cfg.Worker.Enabled = false
	}
}

func New(ctx context.Context, opts ...Option) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	for _, opt := range opts {
		opt(cfg)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	a := &App{Config: cfg, Logger: log, StartedAt: time.Now()}
	if err := a.init(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.Config

	db, err := postgresClient.New(ctx, cfg.PostgresDSN(), postgresClient.PoolConfig{
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		ConnMaxLifetime: time.Hour,
	}, cfg.App.Env == "dev")
	if err != nil {
		return err
	}
	a.Postgres = db
	if cfg.Postgres.AutoMigrate {
		if err := db.AutoMigrate(
			&model.User{},
			&model.Grant{},
			&model.Application{},
			&model.ApplicationSection{},
			&model.Document{},
		); err != nil {
			return fmt.Errorf("auto migrate tables failed: %w", err)
		}
	}

	a.Redis, err = redisClient.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}

	a.MQConn, err = rabbitmqClient.New(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.JobsQueue)
	if err != nil {
		return err
	}

	a.GrantIndex, err = qdrantClient.New(ctx, cfg.Qdrant, cfg.LLM.EmbeddingDimensions)
	if err != nil {
		return err
	}

	llm, err := ai.NewOpenAICompatibleClient(ai.Config{
		BaseURL:        cfg.LLM.BaseURL,
		APIKey:         cfg.LLM.APIKey,
		Model:          cfg.LLM.Model,
		EmbeddingModel: cfg.LLM.EmbeddingModel,
		Temperature:    cfg.LLM.Temperature,
		MaxTokens:      cfg.LLM.MaxTokens,
		Referer:        cfg.App.BaseURL,
		Title:          "FörderScout AI",
		Timeout:        time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
		MaxRetry:       time.Duration(cfg.LLM.MaxRetrySeconds) * time.Second,
		EmbedCacheSize: cfg.LLM.EmbedCacheSize,
	})
	if err != nil {
		return err
	}

	jobs := rabbitmqClient.NewJobPublisher(a.MQConn, cfg.RabbitMQ.JobsQueue)
	a.Services, err = NewServices(cfg, Deps{
		DB:       db,
		Cache:    cache.NewSearchCache(a.Redis, cfg.SearchTTL()),
		Jobs:     jobs,
		Index:    a.GrantIndex,
		LLM:      llm,
		Embedder: llm,
	}, a.Logger)
	if err != nil {
		return err
	}

	if !cfg.Worker.Enabled {
		a.Logger.Info("background worker disabled")
		return nil
	}

	a.JobWorker = worker.NewJobWorker(a.MQConn, cfg.RabbitMQ.JobsQueue, a.Logger.Named("worker"))
	RegisterJobHandlers(a.JobWorker, a.Services)
	if err := a.JobWorker.Start(ctx); err != nil {
		return fmt.Errorf("start job worker failed: %w", err)
	}

	a.Scheduler = worker.NewScheduler(jobs, model.JobCleanupExpired,
		time.Duration(cfg.Worker.CleanupIntervalHour)*time.Hour, a.Logger.Named("scheduler"))
	a.Scheduler.Start(ctx)
	return nil
}

// RegisterJobHandlers binds every job type to its service.
func RegisterJobHandlers(w *worker.JobWorker, s *Services) {
	w.Handle(model.JobGenerateApplication, worker.Decode(s.Applications.RunGeneration))
	w.Handle(model.JobEmbedGrants, worker.Decode(func(ctx context.Context, p model.EmbedGrantsPayload) error {
		_, err := s.Indexer.EmbedGrants(ctx, p.GrantIDs)
		return err
	}))
	w.Handle(model.JobExportDocument, worker.Decode(func(ctx context.Context, p model.ExportDocumentPayload) error {
		_, err := s.Documents.RunExport(ctx, p)
		return err
	}))
	w.Handle(model.JobCleanupExpired, func(ctx context.Context, _ json.RawMessage) error {
		_, err := s.Indexer.CleanupExpired(ctx)
		return err
	})
}

func (a *App) Close() error {
	var errs []error
	if a.Scheduler != nil {
		a.Scheduler.Close()
	}
	if a.JobWorker != nil {
		a.JobWorker.Close()
	}
	if a.GrantIndex != nil {
		if err := a.GrantIndex.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.MQConn != nil && !a.MQConn.IsClosed() {
		if err := a.MQConn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.Postgres != nil {
		sqlDB, err := a.Postgres.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
	return errors.Join(errs...)
}
