// Package app builds the long-lived services of a crawl from configuration
// and hands them to the CLI commands.
package app

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/JakeFAU/realtime-nav-crawler/internal/api"
	"github.com/JakeFAU/realtime-nav-crawler/internal/catalog"
	"github.com/JakeFAU/realtime-nav-crawler/internal/clock/system"
	"github.com/JakeFAU/realtime-nav-crawler/internal/config"
	"github.com/JakeFAU/realtime-nav-crawler/internal/crawler"
	collyfetcher "github.com/JakeFAU/realtime-nav-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/realtime-nav-crawler/internal/parser/eastmoney"
	"github.com/JakeFAU/realtime-nav-crawler/internal/storage/postgres"
	"github.com/JakeFAU/realtime-nav-crawler/internal/storage/sqlite"
)

// Store is what both storage backends provide.
type Store interface {
	crawler.ObservationStore
	crawler.ProgressTracker
	Ping(ctx context.Context) error
	Close() error
}

// Runner executes one crawl.
type Runner interface {
	Run(ctx context.Context) (crawler.RunSummary, error)
}

// App holds the shared services for one process.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	entities []crawler.Entity
	store    Store
	clock    *system.Clock
}

// New loads the catalog and opens the configured store. It fails fast if
// either is unusable.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	entities, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	store, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("application services initialized",
		zap.String("store_driver", cfg.Store.Driver),
		zap.Int("entities", len(entities)),
	)
	return &App{
		cfg:      cfg,
		logger:   logger,
		entities: entities,
		store:    store,
		clock:    system.New(),
	}, nil
}

func openStore(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (Store, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		s, err := sqlite.Open(ctx, cfg.SQLitePath, logger.Named("sqlite"))
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return s, nil
	case config.DriverPostgres:
		s, err := postgres.Open(ctx, postgresConfig(cfg), logger.Named("postgres"))
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store driver: %s", cfg.Driver)
	}
}

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Config returns the loaded configuration.
func (a *App) Config() config.Config { return a.cfg }

// Entities returns the catalog in crawl order.
func (a *App) Entities() []crawler.Entity { return a.entities }

// Store returns the observation store, which is also the progress tracker.
func (a *App) Store() Store { return a.store }

// Engine assembles the fetch, parse and persist pipeline.
func (a *App) Engine() Runner {
	fc := a.cfg.Fetch
	var headers http.Header
	if fc.Referer != "" {
		headers = http.Header{"Referer": {fc.Referer}}
	}
	fetcher := collyfetcher.New(collyfetcher.Config{
		URLTemplate: fc.URLTemplate,
		UserAgent:   fc.UserAgent,
		Timeout:     fc.Timeout,
		MaxRPS:      fc.MaxRPS,
		Headers:     headers,
	})
	pages := crawler.NewRetryingPageFetcher(
		fetcher,
		eastmoney.New(),
		retryPolicy(fc),
		a.clock,
		a.cfg.Crawl.PageSize,
		a.logger.Named("fetch"),
	)
	return crawler.NewEngine(
		crawler.EngineConfig{
			PageSize:        a.cfg.Crawl.PageSize,
			PageDelay:       a.cfg.Crawl.PageDelay,
			EntityDelay:     a.cfg.Crawl.EntityDelay,
			TransientPolicy: crawler.TransientPolicy(a.cfg.Crawl.OnTransientFailure),
		},
		a.entities,
		pages,
		a.store,
		a.store,
		a.clock,
		a.logger.Named("engine"),
	)
}

// StatusServer builds the HTTP status server over the store.
func (a *App) StatusServer() *api.Server {
	handler := api.NewProgressHandler(a.store, a.store, a.entities, a.logger.Named("api"))
	return api.NewServer(handler, a.store, a.logger.Named("api"))
}

// Close releases the store and flushes the logger.
func (a *App) Close() {
	a.logger.Info("shutting down application services")
	if err := a.store.Close(); err != nil {
		a.logger.Warn("error closing store", zap.Error(err))
	}
	// stderr sync fails on some platforms; nothing useful to do about it
	_ = a.logger.Sync()
}

func postgresConfig(cfg config.StoreConfig) postgres.Config {
	return postgres.Config{
		DSN:             cfg.PostgresDSN,
		MaxConns:        cfg.MaxConns,
		MinConns:        cfg.MinConns,
		MaxConnLifetime: cfg.MaxConnLifetime,
	}
}

func retryPolicy(fc config.FetchConfig) crawler.RetryPolicy {
	if fc.Backoff == "exponential" {
		return crawler.NewExponentialRetryPolicy(fc.MaxRetries, fc.RetryDelay, fc.MaxBackoff)
	}
	return crawler.NewFixedRetryPolicy(fc.MaxRetries, fc.RetryDelay)
}
