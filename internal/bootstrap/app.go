package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"credit-backend/internal/analyses"
	"credit-backend/internal/extract"
	"credit-backend/internal/jobs"
	"credit-backend/internal/letters"
	"credit-backend/internal/llm"
	openai "credit-backend/internal/llm/openai"
	"credit-backend/internal/reports"
	"credit-backend/internal/services/health"
	"credit-backend/internal/shared/config"
	"credit-backend/internal/shared/server"
	"credit-backend/internal/shared/storage/db"
	"credit-backend/internal/shared/storage/object"
	localstore "credit-backend/internal/shared/storage/object/local"
	s3store "credit-backend/internal/shared/storage/object/s3"
	"credit-backend/internal/shared/telemetry"
	"credit-backend/internal/uploads"
	"credit-backend/internal/workerproc"
)

// Role selects the connection pool profile.
type Role string

const (
	RoleAPI    Role = "api"
	RoleWorker Role = "worker"
)

// App holds shared dependencies for the API and the worker.
type App struct {
	Config         config.Config
	Router         *gin.Engine
	DB             *sql.DB
	Store          object.Store
	Queue          jobs.Queue
	Reports        reports.Repo
	Results        analyses.Repo
	Letters        letters.Repo
	ReportsService *reports.Service
	Generator      *letters.Generator
	Processor      *workerproc.Processor
}

// InMemory reports whether the app runs without Postgres. The API process
// then hosts the worker loop itself since the queue is not shared.
func (a *App) InMemory() bool {
	return a.DB == nil
}

// Close releases the database pool.
func (a *App) Close() error {
	if a.DB == nil {
		return nil
	}
	return a.DB.Close()
}

// Build prepares every dependency and the HTTP router.
func Build(ctx context.Context, cfg config.Config, role Role) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}

	sqlDB, err := buildDB(ctx, cfg, role)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	engine, err := buildLLM(cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  store,
	}
	buildRepos(app)

	app.ReportsService = &reports.Service{
		Repo:       app.Reports,
		Jobs:       app.Queue,
		Results:    app.Results,
		LetterRepo: app.Letters,
	}
	app.Generator = &letters.Generator{
		Drafter:  engine,
		Renderer: letters.PDFRenderer{},
		Store:    store,
		Repo:     app.Letters,
	}
	app.Processor = &workerproc.Processor{
		Jobs:             app.Queue,
		Reports:          app.Reports,
		Store:            store,
		Extractor:        extract.Service{},
		Analyzer:         engine,
		Results:          app.Results,
		Letters:          app.Generator,
		MaxAnalysisChars: cfg.Worker.MaxAnalysisChars,
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:  cfg,
		Reports: reports.NewHandler(app.ReportsService, store, cfg.PresignTTL),
		Uploads: uploads.NewHandler(store, cfg.PresignTTL),
		Health:  health.NewService(pingerOrNil(sqlDB)),
	})

	return app, nil
}

// Loop returns a worker loop over the app's queue and processor.
func (a *App) Loop() *workerproc.Loop {
	return &workerproc.Loop{
		Queue:        a.Queue,
		Processor:    a.Processor,
		PollInterval: a.Config.Worker.PollInterval,
		ErrorBackoff: a.Config.Worker.ErrorBackoff,
	}
}

// Sweeper returns the stale job sweeper for the app's queue.
func (a *App) Sweeper() *workerproc.Sweeper {
	return &workerproc.Sweeper{
		Queue:      a.Queue,
		StaleAfter: a.Config.Worker.StaleAfter,
		Interval:   a.Config.Worker.SweepInterval,
	}
}

// RunWorker runs the claim loop and the stale sweeper until ctx is done. The
// loop returns only after its in-flight job reaches an end state.
func (a *App) RunWorker(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.Loop().Run(gctx) })
	g.Go(func() error { return a.Sweeper().Run(gctx) })
	return g.Wait()
}

// pingerOrNil keeps a nil *sql.DB from becoming a non-nil interface.
func pingerOrNil(sqlDB *sql.DB) health.Pinger {
	if sqlDB == nil {
		return nil
	}
	return sqlDB
}

func buildRepos(app *App) {
	if app.DB != nil {
		app.Queue = &jobs.PGQueue{DB: app.DB}
		app.Reports = &reports.PGRepo{DB: app.DB}
		app.Results = &analyses.PGRepo{DB: app.DB}
		app.Letters = &letters.PGRepo{DB: app.DB}
		return
	}

	queue := jobs.NewMemoryQueue()
	results := analyses.NewMemoryRepo(queue.IsProcessing)
	letterRepo := letters.NewMemoryRepo(queue.IsProcessing)
	app.Queue = queue
	app.Results = results
	app.Letters = letterRepo
	app.Reports = reports.NewMemoryRepo(queue, results, letterRepo)
}

func buildDB(ctx context.Context, cfg config.Config, role Role) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.db.memory", map[string]any{"reason": "DATABASE_URL empty"})
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
		return nil, err
	}
	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.Store, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, s3store.Options{
			Region:          cfg.AWSRegion,
			Bucket:          cfg.S3Bucket,
			Prefix:          cfg.S3Prefix,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			KMSKeyID:        cfg.SSEKMSKeyID,
		})
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildLLM(cfg config.Config) (llm.Engine, error) {
	if cfg.LLMProvider != "openai" {
		return llm.PlaceholderClient{}, nil
	}
	client, err := openai.NewClient(os.Getenv("OPENAI_API_KEY"), cfg.LLMModel)
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.llm.placeholder", map[string]any{"error": err})
			return llm.PlaceholderClient{}, nil
		}
		return nil, err
	}
	return llm.NewRetrying(client), nil
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local", "test":
		return true
	default:
		return false
	}
}
