package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"sheets/internal/config"
	"sheets/internal/domain"
	"sheets/internal/editor"
	"sheets/internal/logger"
	"sheets/internal/metrics"
	"sheets/internal/service"
	"sheets/internal/storage"
)

// App wires storage, services and editors together. The CLI, the watcher
// and the MCP server all go through it.
type App struct {
	cfg     config.Config
	log     zerolog.Logger
	metrics *metrics.Metrics
	emitter service.EventEmitter
	ids     *domain.IDSource

	kv       domain.KVStore
	store    *storage.SheetStore
	catalog  *service.CatalogService
	seeder   *service.SeedService
	repairer *service.IndexRepairer
}

// New creates an App. Nothing is opened until Startup.
func New(cfg config.Config, log zerolog.Logger) *App {
	return &App{
		cfg:     cfg,
		log:     log,
		metrics: metrics.New(),
		emitter: service.LogEmitter{Log: logger.Component(log, "events")},
		ids:     domain.DefaultIDs(),
	}
}

// Startup opens the storage backend and builds the services. When a seed
// manifest is configured it is applied; seeding problems are logged only.
func (a *App) Startup(ctx context.Context) error {
	kv, err := storage.OpenKV(ctx, a.cfg.StorageOptions())
	if err != nil {
		return fmt.Errorf("open %s storage: %w", a.cfg.Backend, err)
	}
	a.kv = kv

	a.store = storage.NewSheetStore(kv, storage.SheetStoreConfig{
		Prefix:  a.cfg.KeyPrefix,
		Logger:  logger.Component(a.log, "store"),
		Metrics: a.metrics,
		IDs:     a.ids,
	})
	a.catalog = service.NewCatalogService(a.store, a.emitter, logger.Component(a.log, "catalog"))
	a.seeder = service.NewSeedService(a.store, logger.Component(a.log, "seed"), a.metrics)
	a.repairer = service.NewIndexRepairer(a.store, a.emitter, logger.Component(a.log, "repair"), a.metrics)

	a.log.Debug().Str("backend", string(a.cfg.Backend)).Str("prefix", a.cfg.KeyPrefix).Msg("storage opened")

	if a.cfg.Manifest != "" {
		if _, err := a.Seed(ctx, a.cfg.Manifest); err != nil {
			a.log.Warn().Err(err).Str("manifest", a.cfg.Manifest).Msg("seeding skipped")
		}
	}
	return nil
}

// Shutdown stops background work and closes the backend.
func (a *App) Shutdown(ctx context.Context) error {
	if a.repairer != nil {
		a.repairer.Stop(ctx)
	}
	if a.kv != nil {
		return a.kv.Close()
	}
	return nil
}

func (a *App) Config() config.Config { return a.cfg }

func (a *App) Catalog() *service.CatalogService { return a.catalog }

func (a *App) Metrics() *metrics.Metrics { return a.metrics }

// editorOptions builds editor options from the config.
func (a *App) editorOptions(confirm editor.Confirmer) editor.Options {
	return editor.Options{
		AutoSaveInterval: a.cfg.AutoSaveInterval,
		SavedDelay:       a.cfg.SavedDelay,
		HistoryDepth:     a.cfg.HistoryDepth,
		Confirmer:        confirm,
		Emitter:          a.emitter,
		Logger:           logger.Component(a.log, "editor"),
		Metrics:          a.metrics,
		IDs:              a.ids,
	}
}
