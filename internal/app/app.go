// Package app wires configuration into the catalog, its services and the
// export pipeline. Both binaries build on it.
package app

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/filemgr/internal/catalog"
	"github.com/noah-isme/filemgr/internal/repository"
	"github.com/noah-isme/filemgr/internal/service"
	"github.com/noah-isme/filemgr/internal/validation"
	"github.com/noah-isme/filemgr/pkg/cache"
	"github.com/noah-isme/filemgr/pkg/config"
	"github.com/noah-isme/filemgr/pkg/database"
	appErrors "github.com/noah-isme/filemgr/pkg/errors"
	"github.com/noah-isme/filemgr/pkg/export"
	"github.com/noah-isme/filemgr/pkg/jobs"
	"github.com/noah-isme/filemgr/pkg/storage"
)

// App holds the long lived components of a catalog process.
type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	DB      *sqlx.DB
	Redis   *redis.Client
	Layer   validation.Layer
	Types   *repository.ProductTypeRepository
	Catalog *catalog.Catalog
	Metrics *service.MetricsService

	CatalogService *service.CatalogService
	SchemaService  *service.SchemaService

	// Exports and ExportQueue are nil when exports are disabled.
	Exports     *service.ExportJobService
	ExportQueue *jobs.Queue
}

// New opens the database and builds every service. The catalog schema is
// migrated before New returns.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg, Logger: logger, DB: db}
	if err := a.build(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg := a.Config
	layer, err := newLayer(a.DB, cfg.Validation, a.Logger)
	if err != nil {
		return err
	}
	a.Layer = layer
	a.Types = repository.NewProductTypeRepository(a.DB)

	a.Catalog, err = catalog.FromConfig(a.DB, layer, cfg.Catalog,
		catalog.WithTypeLookup(a.Types),
		catalog.WithLogger(a.Logger.Named("catalog")),
	)
	if err != nil {
		return err
	}
	if err := a.Catalog.Migrate(ctx); err != nil {
		return err
	}

	a.Redis, err = cache.NewRedis(cfg.Redis)
	if err != nil {
		return err
	}
	a.Metrics = service.NewMetricsService()
	cacheRepo := repository.NewCacheRepository(a.Redis, cache.KeyPrefix, a.Logger)
	cacheSvc := service.NewCacheService(cacheRepo, a.Metrics, cfg.Catalog.CacheTTL(), a.Logger,
		cfg.Catalog.CacheEnabled && a.Redis != nil)

	validate := validator.New()
	a.CatalogService = service.NewCatalogService(a.Catalog, a.Types, cacheSvc, a.Metrics, validate, cfg.Catalog.CacheTTL(), a.Logger)
	a.SchemaService = service.NewSchemaService(a.Types, layer, a.Catalog, cacheSvc, validate, a.Logger)

	if cfg.Exports.Enabled {
		if err := a.buildExports(validate); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) buildExports(validate *validator.Validate) error {
	cfg := a.Config.Exports
	store, err := storage.NewLocalStorage(cfg.StorageDir)
	if err != nil {
		return err
	}
	signer := storage.NewSignedURLSigner(cfg.SignedURLSecret, cfg.SignedURLTTL)
	exporter := service.NewExportService(a.Catalog, a.Types, store, signer, service.ExportConfig{
		APIPrefix: a.Config.APIPrefix,
		ResultTTL: cfg.SignedURLTTL,
	}, a.Logger, export.NewCSVExporter(), export.NewPDFExporter())

	jobRepo := repository.NewExportJobRepository(a.DB)
	worker := service.NewExportWorker(jobRepo, exporter, cfg.WorkerRetries, a.Logger)
	a.ExportQueue = jobs.NewQueue("exports", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.WorkerConcurrency,
		MaxRetries: cfg.WorkerRetries,
		RetryDelay: 2 * time.Second,
		Logger:     a.Logger,
	})
	if err := a.Metrics.WatchQueue(a.ExportQueue); err != nil {
		return err
	}
	a.Exports = service.NewExportJobService(jobRepo, a.Types, a.ExportQueue, exporter, validate, a.Logger, service.ExportJobConfig{
		ResultTTL:       cfg.SignedURLTTL,
		CleanupInterval: cfg.CleanupInterval,
	})
	return nil
}

// StartBackground starts the export workers, requeues jobs left over from a
// previous run and schedules cleanup. It is a no-op when exports are off.
func (a *App) StartBackground(ctx context.Context) {
	if a.Exports == nil {
		return
	}
	a.ExportQueue.Start(ctx)
	a.Exports.RecoverPendingJobs(ctx)
	a.Exports.StartCleanup(ctx)
}

// Close releases every resource held by a.
func (a *App) Close() {
	if a.ExportQueue != nil {
		a.ExportQueue.Stop()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Warn("failed to close redis", zap.Error(err))
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Warn("failed to close database", zap.Error(err))
		}
	}
}

func newLayer(db *sqlx.DB, cfg config.ValidationConfig, logger *zap.Logger) (validation.Layer, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", config.ValidationBackendSQL:
		return validation.NewSQLLayer(db, logger.Named("validation")), nil
	case config.ValidationBackendXML:
		return validation.NewXMLLayer(cfg.XMLDir, logger.Named("validation"))
	default:
		return nil, appErrors.Clonef(appErrors.ErrValidation, "unknown validation backend %q", cfg.Backend)
	}
}
