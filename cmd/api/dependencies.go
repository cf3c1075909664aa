package main

import (
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/fintrail/statement-ingest/internal/domain/categorization"
	"github.com/fintrail/statement-ingest/internal/domain/ledger"
	"github.com/fintrail/statement-ingest/internal/domain/statement"
	statementhandler "github.com/fintrail/statement-ingest/internal/domain/statement/handler"

	"github.com/fintrail/statement-ingest/internal/domain/statement/bankcfg"
	"github.com/fintrail/statement-ingest/internal/domain/statement/pipeline"
	"github.com/fintrail/statement-ingest/internal/domain/statement/style"

	"github.com/fintrail/statement-ingest/pkg/config"
	"github.com/fintrail/statement-ingest/pkg/cron"
	"github.com/fintrail/statement-ingest/pkg/db"
	"github.com/fintrail/statement-ingest/pkg/metrics"
	"github.com/fintrail/statement-ingest/pkg/storage"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config  *config.Config
	DB      *db.DB
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// Repositories
	BankConfigRepo     *bankcfg.PostgresRepository
	LedgerRepo         *ledger.PostgresRepository
	CategorizationRepo *categorization.Repository

	// Services
	BankConfigStore       *bankcfg.Store
	StyleRegistry         *style.Registry
	Pipeline              *pipeline.Pipeline
	StatementService      *statement.Service
	LedgerService         *ledger.Service
	CategorizationService *categorization.Service
	NarrationIndex        *categorization.NarrationIndex
	Worker                *categorization.Worker
	Scheduler             *cron.Scheduler
	UploadArchive         storage.Archive

	// Handlers
	StatementHandler *statementhandler.StatementHandler
	AdminHandler     *statementhandler.AdminHandler
}

// InitDependencies initializes all application dependencies
func InitDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.New(),
	}

	if err := deps.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}

	if err := deps.initRepositories(); err != nil {
		return nil, fmt.Errorf("failed to init repositories: %w", err)
	}

	if err := deps.initServices(); err != nil {
		return nil, fmt.Errorf("failed to init services: %w", err)
	}

	if err := deps.initHandlers(); err != nil {
		return nil, fmt.Errorf("failed to init handlers: %w", err)
	}

	logger.Info("all dependencies initialized successfully")

	return deps, nil
}

// initDatabase initializes the database connection and runs migrations
func (d *Dependencies) initDatabase() error {
	database, err := db.New(db.Config{
		DSN:             d.Config.Database.DSN(),
		MaxConns:        25,
		MinConns:        5,
		MaxConnLifetime: 5 * time.Minute,
		MaxConnIdleTime: 10 * time.Minute,
	}, d.Logger)
	if err != nil {
		return err
	}

	d.DB = database

	if err := d.DB.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.Logger.Info("database connected and migrations completed successfully")
	return nil
}

// initRepositories initializes all repository layer dependencies
func (d *Dependencies) initRepositories() error {
	d.BankConfigRepo = bankcfg.NewPostgresRepository(d.DB.Pool)
	d.LedgerRepo = ledger.NewPostgresRepository(d.DB.Pool)
	d.CategorizationRepo = categorization.NewRepository(d.DB.Pool)

	d.Logger.Info("repositories initialized")
	return nil
}

// initServices initializes all service layer dependencies
func (d *Dependencies) initServices() error {
	// Parser config snapshot: built-in seed plus admin overrides
	store, err := bankcfg.NewStore(d.BankConfigRepo, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to build bank config store: %w", err)
	}
	d.BankConfigStore = store

	// Narration search index for keyword tuning diagnostics
	index, err := categorization.NewNarrationIndex()
	if err != nil {
		return fmt.Errorf("failed to build narration index: %w", err)
	}
	d.NarrationIndex = index

	d.CategorizationService = categorization.NewService(d.CategorizationRepo, index, d.Logger)

	// Bank styles share the keyword engine for normalization-time categories
	d.StyleRegistry = style.NewRegistry(d.CategorizationService.Engine())

	tracer := otel.GetTracerProvider().Tracer("statement-ingest")
	d.Pipeline = pipeline.New(d.BankConfigStore, d.StyleRegistry, d.Logger, tracer)
	d.StatementService = statement.NewService(d.Pipeline, d.Metrics)

	d.LedgerService = ledger.NewService(d.LedgerRepo, d.CategorizationService, d.Metrics, d.Logger)

	d.Worker = categorization.NewWorker(
		d.CategorizationRepo,
		d.CategorizationService.Engine(),
		float64(d.Config.Ingest.WorkerJobsPerSecond),
		d.Logger,
	)

	d.Scheduler = cron.NewScheduler(
		d.CategorizationRepo,
		d.BankConfigStore,
		d.CategorizationService,
		d.Config.Ingest.JobStaleAfter,
		d.Config.Ingest.ConfigRefreshInterval,
		d.Logger,
	)

	if d.Config.Ingest.ArchiveUploads {
		archive, err := storage.NewLocalArchive(d.Config.Ingest.ArchivePath)
		if err != nil {
			return fmt.Errorf("failed to init upload archive: %w", err)
		}
		d.UploadArchive = archive
	}

	d.Logger.Info("services initialized")
	return nil
}

// initHandlers initializes all handler dependencies
func (d *Dependencies) initHandlers() error {
	d.StatementHandler = statementhandler.NewStatementHandler(
		d.StatementService,
		d.LedgerService,
		d.UploadArchive,
		d.Config.Ingest.MaxUploadBytes,
		d.Logger,
	)
	d.AdminHandler = statementhandler.NewAdminHandler(
		d.BankConfigRepo,
		d.BankConfigStore,
		d.CategorizationService,
		d.Logger,
	)

	d.Logger.Info("handlers initialized")
	return nil
}

// Cleanup closes all resources
func (d *Dependencies) Cleanup() {
	if d.DB != nil {
		d.DB.Close()
	}
	d.Logger.Info("cleanup completed")
}
