// Package bootstrap wires all dependencies and starts the application.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	apihttp "github.com/artpar/datalayer/adapters/http"
	"github.com/artpar/datalayer/adapters/idgen"
	"github.com/artpar/datalayer/adapters/memory"
	"github.com/artpar/datalayer/adapters/metrics"
	redisdriver "github.com/artpar/datalayer/adapters/redis"
	"github.com/artpar/datalayer/adapters/schemasource"
	"github.com/artpar/datalayer/adapters/sqlite"
	"github.com/artpar/datalayer/config"
	"github.com/artpar/datalayer/core/object"
	"github.com/artpar/datalayer/core/registry"
	"github.com/artpar/datalayer/core/storage"
	"github.com/artpar/datalayer/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// App represents the running application.
type App struct {
	Logger     zerolog.Logger
	Config     *config.Config
	Schemas    *schemasource.Source
	Registry   *registry.Registry
	Driver     ports.Driver
	Storage    *storage.Layer
	HTTPServer *http.Server
	Metrics    *metrics.Collector

	// Backends (for cleanup)
	DB    *sqlite.DB
	Redis *redis.Client

	metricsRegistry *prometheus.Registry
}

// Options provides optional settings for application initialization.
type Options struct {
	// LogOutput receives log lines. Defaults to stderr.
	LogOutput io.Writer

	// Models binds schema names to model constructors.
	Models *object.Models

	// Version is reported by the version endpoint.
	Version string
}

// New creates and initializes the application from cfg.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	if opts.LogOutput == nil {
		opts.LogOutput = os.Stderr
	}

	logger := NewLogger(cfg.Logging, opts.LogOutput)
	logger.Info().
		Str("schemas", cfg.Schemas.URI).
		Str("version", cfg.Schemas.Version).
		Str("driver", cfg.Database.Driver).
		Msg("initializing datalayer")

	a := &App{
		Logger: logger,
		Config: cfg,
	}

	src, err := schemasource.New(cfg.Schemas.URI, cfg.Schemas.Version)
	if err != nil {
		return nil, fmt.Errorf("schema source: %w", err)
	}
	a.Schemas = src
	a.Registry = registry.New(src)

	if cfg.Metrics.Enabled {
		a.metricsRegistry = prometheus.NewRegistry()
		a.metricsRegistry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		a.Metrics = metrics.NewWithRegistry(a.metricsRegistry)
		logger.Info().Str("path", cfg.Metrics.Path).Msg("prometheus metrics enabled")
	}

	if err := a.initDriver(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("init driver: %w", err)
	}

	storageCfg := storage.Config{
		IDs:      idgen.UUID{},
		Models:   opts.Models,
		MaxDepth: cfg.Storage.MaxDepth,
		Logger:   logger.With().Str("component", "storage").Logger(),
	}
	if a.Metrics != nil {
		storageCfg.Metrics = a.Metrics
	}
	a.Storage = storage.New(a.Registry, a.Driver, storageCfg)

	a.initHTTPServer(opts.Version)

	return a, nil
}

func (a *App) initDriver(ctx context.Context) error {
	cfg := a.Config

	switch cfg.Database.Driver {
	case config.DriverMemory:
		a.Driver = memory.NewDriver()

	case config.DriverSQLite:
		db, err := sqlite.Open(cfg.Database.DSN)
		if err != nil {
			return err
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return fmt.Errorf("migrate: %w", err)
		}
		a.DB = db
		a.Driver = sqlite.NewDriver(db)

	case config.DriverRedis:
		client, err := redisdriver.Connect(ctx, redisdriver.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		a.Redis = client
		a.Driver = redisdriver.NewDriver(client)

	default:
		return fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}

	a.Logger.Info().Str("driver", cfg.Database.Driver).Msg("storage driver initialized")
	return nil
}

func (a *App) initHTTPServer(version string) {
	cfg := a.Config

	routerCfg := apihttp.RouterConfig{
		Version:     version,
		MetricsPath: cfg.Metrics.Path,
		Timeout:     cfg.Server.WriteTimeout,
		OpenAPI:     cfg.Server.OpenAPI,
		Schemas:     a.Schemas,
	}
	if a.Metrics != nil {
		routerCfg.Metrics = a.Metrics
		routerCfg.MetricsHandler = promhttp.HandlerFor(a.metricsRegistry, promhttp.HandlerOpts{})
	}

	logger := a.Logger.With().Str("component", "http").Logger()
	router := apihttp.NewRouterWithConfig(apihttp.NewHandler(a.Storage, logger), logger, routerCfg)

	a.HTTPServer = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}

// Watch applies reloaded configuration from h. Only the log level is
// applied at runtime; other changes are logged by the holder.
func (a *App) Watch(h *config.Holder) {
	h.OnChange(func(cfg *config.Config) {
		if err := SetLogLevel(cfg.Logging.Level); err != nil {
			a.Logger.Warn().Err(err).Msg("ignoring log level from reloaded config")
		}
	})
	if a.Metrics != nil {
		h.OnReload(a.Metrics.ConfigReloaded)
	}
}

// Run starts the HTTP server and blocks until ctx is done, a shutdown
// signal arrives or the server fails.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().
			Str("addr", a.HTTPServer.Addr).
			Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		a.Close()
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case <-ctx.Done():
		a.Logger.Info().Msg("context done, shutting down")
	}

	return a.Shutdown()
}

// Shutdown gracefully stops the HTTP server and closes the backends.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
		}
	}

	err := a.Close()
	a.Logger.Info().Msg("shutdown complete")
	return err
}

// Close releases the storage backends without touching the HTTP server.
func (a *App) Close() error {
	var errs []error

	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("database close error")
			errs = append(errs, err)
		}
		a.DB = nil
	}

	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("redis close error")
			errs = append(errs, err)
		}
		a.Redis = nil
	}

	return errors.Join(errs...)
}
