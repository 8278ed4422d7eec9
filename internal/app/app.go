// Package app wires configuration, stores, caches, external clients and the
// ingest pipeline into one object shared by the CLI, HTTP and MCP surfaces.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/clinvar-query/internal/cache"
	"github.com/clinvar-query/internal/config"
	"github.com/clinvar-query/internal/database"
	"github.com/clinvar-query/internal/domain"
	"github.com/clinvar-query/internal/intake"
	"github.com/clinvar-query/internal/repository"
	"github.com/clinvar-query/internal/service"
	"github.com/clinvar-query/pkg/external"
)

// App holds the wired components
type App struct {
	Config    *domain.Config
	Logger    *logrus.Logger
	Store     domain.AnnotationStore
	Cache     domain.AnnotationCache
	Resolver  *service.CachedTranscriptResolver
	Clinical  domain.ClinicalLookup
	Annotator *service.Annotator
	Intake    *intake.Processor
	Pipeline  *service.Pipeline

	closers []func() error
}

// Deps are the replaceable collaborators of an App
type Deps struct {
	Fs       afero.Fs
	Store    domain.AnnotationStore
	Cache    domain.AnnotationCache
	Resolver domain.TranscriptResolver
	Clinical domain.ClinicalLookup
}

// New builds the application from configuration, opening the configured
// store and cache and the real external clients.
func New(ctx context.Context, cm domain.ConfigManager, logger *logrus.Logger) (*App, error) {
	cfg := cm.GetConfig()
	fs := afero.NewOsFs()

	if err := config.EnsureDataDirs(fs, cfg); err != nil {
		return nil, err
	}

	var closers []func() error
	fail := func(err error) (*App, error) {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
		return nil, err
	}

	store, closeStore, err := OpenStore(ctx, cm, logger)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, closeStore)

	annotationCache, err := cache.New(ctx, cfg.Cache)
	if err != nil {
		return fail(fmt.Errorf("failed to create annotation cache: %w", err))
	}
	if c, ok := annotationCache.(io.Closer); ok {
		closers = append(closers, c.Close)
	}

	deps := Deps{
		Fs:       fs,
		Store:    store,
		Cache:    annotationCache,
		Resolver: external.NewVariantValidatorClient(cfg.ExternalAPI.VariantValidator, cfg.CircuitBreaker, logger),
		Clinical: external.NewClinVarClient(cfg.ExternalAPI.ClinVar, cfg.CircuitBreaker, logger),
	}

	a, err := NewWithDeps(cfg, logger, deps)
	if err != nil {
		return fail(err)
	}
	a.closers = closers

	logger.WithFields(logrus.Fields{
		"store":   cfg.Database.Driver,
		"cache":   cfg.Cache.Backend,
		"workers": cfg.Pipeline.Workers,
	}).Info("Application initialized")
	return a, nil
}

// NewWithDeps wires the pipeline around explicit collaborators. The caller
// keeps ownership of deps; Close does not release them.
func NewWithDeps(cfg *domain.Config, logger *logrus.Logger, deps Deps) (*App, error) {
	if deps.Fs == nil {
		deps.Fs = afero.NewOsFs()
	}
	if deps.Cache == nil {
		deps.Cache = cache.NewMemoryCache()
	}

	resolver, err := service.NewCachedTranscriptResolver(service.TranscriptResolverConfig{
		MemoryCacheTTL: cfg.ExternalAPI.VariantValidator.MemoTTL,
		MaxMemorySize:  cfg.ExternalAPI.VariantValidator.MemoSize,
	}, deps.Resolver, logger)
	if err != nil {
		return nil, err
	}

	annotator := service.NewAnnotator(resolver, deps.Clinical, deps.Cache, cfg.Pipeline.Workers, logger)
	processor := intake.NewProcessor(deps.Fs, cfg.Pipeline.ProcessedDir, cfg.Pipeline.ErrorDir, logger)
	recorder := service.NewRecorder(deps.Store, logger)

	return &App{
		Config:    cfg,
		Logger:    logger,
		Store:     deps.Store,
		Cache:     deps.Cache,
		Resolver:  resolver,
		Clinical:  deps.Clinical,
		Annotator: annotator,
		Intake:    processor,
		Pipeline:  service.NewPipeline(processor, annotator, recorder, logger),
	}, nil
}

// OpenStore opens the configured annotation store. For postgres it applies
// pending migrations first when auto_migrate is set.
func OpenStore(ctx context.Context, cm domain.ConfigManager, logger *logrus.Logger) (domain.AnnotationStore, func() error, error) {
	dbCfg := cm.GetDatabaseConfig()

	switch strings.ToLower(dbCfg.Driver) {
	case "", "sqlite":
		store, err := repository.NewSQLiteStore(dbCfg.SQLitePath, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return store, store.Close, nil

	case "postgres":
		if dbCfg.AutoMigrate {
			if err := Migrate(ctx, cm, logger, "up"); err != nil {
				return nil, nil, err
			}
		}
		db, err := database.NewConnection(ctx, *dbCfg, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		return repository.NewPostgresStore(db.Pool, logger), func() error { db.Close(); return nil }, nil

	default:
		return nil, nil, domain.NewValidationError("database.driver", "must be sqlite or postgres", dbCfg.Driver)
	}
}

// Migrate runs a migration direction ("up" or "down") against postgres
func Migrate(ctx context.Context, cm domain.ConfigManager, logger *logrus.Logger, direction string) error {
	runner, err := database.NewMigrationRunner(cm.GetDatabaseConnectionString(), logger)
	if err != nil {
		return fmt.Errorf("failed to create migration runner: %w", err)
	}
	defer runner.Close()

	switch direction {
	case "up":
		return runner.Up(ctx)
	case "down":
		return runner.Down(ctx)
	default:
		return fmt.Errorf("unknown migration direction %q", direction)
	}
}

// Close releases the store, cache and database pool
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
