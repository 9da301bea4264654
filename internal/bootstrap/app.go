package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"cvadapt-backend/internal/credits"
	"cvadapt-backend/internal/events"
	"cvadapt-backend/internal/generation"
	"cvadapt-backend/internal/jobpostings"
	"cvadapt-backend/internal/llm"
	openai "cvadapt-backend/internal/llm/openai"
	"cvadapt-backend/internal/queue"
	"cvadapt-backend/internal/resumes"
	"cvadapt-backend/internal/shared/config"
	"cvadapt-backend/internal/shared/server"
	"cvadapt-backend/internal/shared/storage/db"
	"cvadapt-backend/internal/shared/storage/object"
	localstore "cvadapt-backend/internal/shared/storage/object/local"
	s3store "cvadapt-backend/internal/shared/storage/object/s3"
	"cvadapt-backend/internal/shared/telemetry"
	"cvadapt-backend/internal/slots"
)

// Role selects the database pool profile for the process.
type Role string

const (
	RoleAPI    Role = "api"
	RoleWorker Role = "worker"
)

// App holds the wired dependencies of one process. The API uses Router and
// the services, the worker uses the Orchestrator.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB
	Store  object.Store
	Queue  queue.Client
	Events events.Publisher
	Ledger credits.Ledger
	LLM    llm.Client
	Slots  *slots.Registry

	ResumesRepo    resumes.Repo
	GeneratedRepo  resumes.GeneratedRepo
	PostingsRepo   jobpostings.Repo
	GenerationRepo generation.Repo

	ResumesService    *resumes.Service
	PostingsService   *jobpostings.Service
	GenerationService *generation.Service
	Orchestrator      *generation.Orchestrator
	Refunder          *generation.Refunder

	ResumeHandler     *resumes.Handler
	GenerationHandler *generation.Handler

	redisEvents *events.RedisPublisher
}

// Build prepares all dependencies for the given role.
func Build(cfg config.Config, role Role) (*App, error) {
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg, role)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  store,
		Slots:  slots.NewRegistry(),
	}

	if err := buildClients(ctx, app); err != nil {
		return nil, err
	}
	buildServices(app)

	if role == RoleAPI {
		app.Router = server.NewRouter(server.RouterDeps{
			Config:            cfg,
			ResumeHandler:     app.ResumeHandler,
			GenerationHandler: app.GenerationHandler,
		})
	}
	return app, nil
}

// Close releases held connections.
func (a *App) Close() {
	if a.redisEvents != nil {
		if err := a.redisEvents.Close(); err != nil {
			telemetry.Warn("bootstrap.redis_close_failed", map[string]any{"error": err.Error()})
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			telemetry.Warn("bootstrap.db_close_failed", map[string]any{"error": err.Error()})
		}
	}
}

func buildDB(ctx context.Context, cfg config.Config, role Role) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.no_database", map[string]any{"detail": "DATABASE_URL empty, using in-memory repositories"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	defaults := db.DefaultServerOptions()
	if role == RoleWorker {
		defaults = db.DefaultWorkerOptions()
	}
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(defaults))
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.database_unavailable", map[string]any{"error": err.Error()})
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.Store, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildClients(ctx context.Context, app *App) error {
	cfg := app.Config

	app.Events = events.NoopPublisher{}
	if strings.TrimSpace(cfg.RedisURL) != "" {
		publisher, err := events.NewRedisPublisher(ctx, cfg.RedisURL)
		if err != nil {
			if !isDevLike(cfg.Env) {
				return err
			}
			telemetry.Warn("bootstrap.redis_unavailable", map[string]any{"error": err.Error()})
		} else {
			app.Events = publisher
			app.redisEvents = publisher
		}
	}

	if strings.TrimSpace(cfg.LedgerBaseURL) != "" {
		ledger, err := credits.NewHTTPLedger(cfg.LedgerBaseURL, cfg.LedgerAPIKey)
		if err != nil {
			return err
		}
		app.Ledger = ledger
	} else {
		if !isDevLike(cfg.Env) {
			return fmt.Errorf("CREDIT_LEDGER_URL is required")
		}
		telemetry.Warn("bootstrap.no_ledger", map[string]any{"detail": "using in-memory credit ledger"})
		app.Ledger = credits.NewMemoryLedger(nil)
	}

	app.LLM = llm.PlaceholderClient{}
	if cfg.LLMProvider == "openai" {
		client, err := openai.NewClient(os.Getenv("OPENAI_API_KEY"), cfg.LLMModel)
		if err != nil {
			return err
		}
		app.LLM = client
	}

	if strings.TrimSpace(os.Getenv("GEN_SQS_QUEUE_URL")) != "" {
		sqsClient, err := queue.NewSQSClient(ctx)
		if err != nil {
			return err
		}
		app.Queue = sqsClient
	}
	return nil
}

func buildServices(app *App) {
	cfg := app.Config

	if app.DB != nil {
		app.ResumesRepo = &resumes.PGRepo{DB: app.DB}
		app.GeneratedRepo = &resumes.PGGeneratedRepo{DB: app.DB}
		app.PostingsRepo = &jobpostings.PGRepo{DB: app.DB}
		app.GenerationRepo = &generation.PGRepo{DB: app.DB}
	} else {
		app.ResumesRepo = resumes.NewMemoryRepo()
		app.GeneratedRepo = resumes.NewMemoryGeneratedRepo()
		app.PostingsRepo = jobpostings.NewMemoryRepo()
		app.GenerationRepo = generation.NewMemoryRepo()
	}

	app.ResumesService = &resumes.Service{Repo: app.ResumesRepo, Generated: app.GeneratedRepo}
	app.PostingsService = &jobpostings.Service{
		Repo:    app.PostingsRepo,
		Fetcher: jobpostings.NewHTTPFetcher(),
	}

	app.Refunder = &generation.Refunder{Repo: app.GenerationRepo, Ledger: app.Ledger}

	var transcripts *generation.Recorder
	if cfg.TranscriptsOn {
		transcripts = &generation.Recorder{Store: app.Store}
	}
	app.Orchestrator = &generation.Orchestrator{
		Repo:        app.GenerationRepo,
		Resumes:     app.ResumesRepo,
		Generated:   app.GeneratedRepo,
		Postings:    app.PostingsService,
		LLM:         app.LLM,
		Events:      app.Events,
		Transcripts: transcripts,
		Refunder:    app.Refunder,
		Slots:       app.Slots,
		Models: generation.Models{
			Classify: cfg.LLMClassifyModel,
			Batch:    cfg.LLMBatchModel,
			Summary:  cfg.LLMModel,
		},
	}

	if app.Queue == nil {
		// No SQS configured: run tasks in-process. Dev only, Build rejects
		// this in production through the ledger and database checks.
		app.Queue = &loopbackQueue{orchestrator: app.Orchestrator}
	}

	app.GenerationService = &generation.Service{
		Repo:       app.GenerationRepo,
		Resumes:    app.ResumesRepo,
		Postings:   app.PostingsService,
		Ledger:     app.Ledger,
		Queue:      app.Queue,
		Slots:      app.Slots,
		Refunder:   app.Refunder,
		CreditCost: cfg.CreditCost,
	}

	app.ResumeHandler = resumes.NewHandler(app.ResumesService)
	app.GenerationHandler = generation.NewHandler(app.GenerationService)
}

// loopbackQueue executes messages in-process instead of going through SQS.
type loopbackQueue struct {
	orchestrator *generation.Orchestrator
}

func (q *loopbackQueue) Send(_ context.Context, msg queue.Message) error {
	go func() {
		if err := q.orchestrator.Run(context.Background(), msg.TaskID, msg.OfferID); err != nil {
			telemetry.Error("bootstrap.loopback_run_failed", map[string]any{"task": msg.TaskID, "error": err.Error()})
		}
	}()
	return nil
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
