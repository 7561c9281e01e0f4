// Package app implements the application layer for locus.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.trai.ch/locus/internal/adapters/daemon"    //nolint:depguard // Wired in app layer
	"go.trai.ch/locus/internal/adapters/telemetry" //nolint:depguard // Wired in app layer
	"go.trai.ch/locus/internal/core/domain"
	"go.trai.ch/locus/internal/core/ports"
	"go.trai.ch/locus/internal/engine/processor"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

const metricsShutdownTimeout = 5 * time.Second

// Engine is the query engine built for one configuration.
type Engine interface {
	Query(ctx context.Context, request string) (*processor.Response, error)
	Rebuild(ctx context.Context) (domain.WalkResult, error)
	Invalidate(ctx context.Context) error
}

// EngineFactory builds the engine for a loaded configuration.
type EngineFactory interface {
	New(cfg *domain.Config) (Engine, error)
}

// EngineFactoryFunc adapts a function to EngineFactory.
type EngineFactoryFunc func(cfg *domain.Config) (Engine, error)

// New implements EngineFactory.
func (f EngineFactoryFunc) New(cfg *domain.Config) (Engine, error) {
	return f(cfg)
}

// LogControl is implemented by loggers whose output format can change at runtime.
type LogControl interface {
	SetJSON(enabled bool)
	SetQuiet(enabled bool)
}

// App represents the main application logic.
type App struct {
	configLoader ports.ConfigLoader
	engines      EngineFactory
	connector    ports.DaemonConnector
	logger       ports.Logger
	metrics      http.Handler
	configPath   string
}

// New creates a new App instance. metrics may be nil when no metrics
// endpoint can be served.
func New(
	loader ports.ConfigLoader,
	engines EngineFactory,
	connector ports.DaemonConnector,
	log ports.Logger,
	metrics http.Handler,
) *App {
	return &App{
		configLoader: loader,
		engines:      engines,
		connector:    connector,
		logger:       log,
		metrics:      metrics,
	}
}

// GlobalOptions are the settings shared by every command.
type GlobalOptions struct {
	ConfigPath string
	LogJSON    bool
	Quiet      bool
	Trace      bool
}

// Configure applies opts before a command runs.
func (a *App) Configure(opts GlobalOptions) {
	a.configPath = opts.ConfigPath
	if lc, ok := a.logger.(LogControl); ok {
		lc.SetJSON(opts.LogJSON)
		lc.SetQuiet(opts.Quiet)
	}
	if opts.Trace {
		// The processor tracer delegates to the global provider, so spans
		// started from now on are reported through the logger.
		otel.SetTracerProvider(telemetry.NewProvider(a.logger))
	}
}

// QueryOptions configures Query.
type QueryOptions struct {
	// Daemon routes the query through the background daemon, starting it if needed.
	Daemon bool
}

// Query answers request and logs every diagnostic as a warning.
func (a *App) Query(ctx context.Context, request string, opts QueryOptions) (*ports.QueryResult, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}

	var result *ports.QueryResult
	if opts.Daemon {
		result, err = a.queryDaemon(ctx, cfg, request)
	} else {
		result, err = a.queryLocal(ctx, cfg, request)
	}
	if err != nil {
		return nil, err
	}

	for _, d := range result.Diagnostics {
		a.logger.Warn(d)
	}
	return result, nil
}

func (a *App) queryLocal(ctx context.Context, cfg *domain.Config, request string) (*ports.QueryResult, error) {
	engine, err := a.engines.New(cfg)
	if err != nil {
		return nil, err
	}

	resp, err := engine.Query(ctx, request)
	if err != nil {
		return nil, err
	}

	result := &ports.QueryResult{Payload: resp.Payload}
	for _, d := range resp.Diagnostics {
		result.Diagnostics = append(result.Diagnostics, d.Error())
	}
	return result, nil
}

func (a *App) queryDaemon(ctx context.Context, cfg *domain.Config, request string) (*ports.QueryResult, error) {
	client, err := a.connector.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Close() }()

	return client.Query(ctx, request)
}

// WarmCache walks the cached roots and replaces the cache snapshot.
func (a *App) WarmCache(ctx context.Context) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	if len(cfg.CachedRoots) == 0 {
		a.logger.Info("no cached roots configured, nothing to warm")
		return nil
	}

	engine, err := a.engines.New(cfg)
	if err != nil {
		return err
	}

	result, err := engine.Rebuild(ctx)
	if err != nil {
		return zerr.Wrap(err, "failed to warm cache")
	}
	for _, d := range result.Diagnostics {
		a.logger.Warn(d.Error())
	}
	a.logger.Info(fmt.Sprintf("cached %d paths in %s", len(result.Paths), cfg.CachePath))
	return nil
}

// ClearCache empties the cache snapshot of the loaded configuration.
func (a *App) ClearCache(ctx context.Context) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	if len(cfg.CachedRoots) == 0 {
		a.logger.Info("no cached roots configured, nothing to clear")
		return nil
	}

	engine, err := a.engines.New(cfg)
	if err != nil {
		return err
	}
	if err := engine.Invalidate(ctx); err != nil {
		return err
	}
	a.logger.Info("cleared " + cfg.CachePath)
	return nil
}

// ServeOptions configures ServeDaemon.
type ServeOptions struct {
	// IdleTimeout stops the daemon after this long without requests. Zero never stops.
	IdleTimeout time.Duration
	// MetricsAddr, when set, serves Prometheus metrics over HTTP on this address.
	MetricsAddr string
}

// ServeDaemon runs the daemon for the loaded configuration in the foreground.
func (a *App) ServeDaemon(ctx context.Context, opts ServeOptions) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	engine, err := a.engines.New(cfg)
	if err != nil {
		return err
	}

	socketPath := a.connector.SocketPath(cfg)
	server := daemon.NewServer(daemon.NewLifecycle(opts.IdleTimeout), engine)

	g, gctx := errgroup.WithContext(ctx)
	serveCtx, stopMetrics := context.WithCancel(gctx)
	defer stopMetrics()

	g.Go(func() error {
		defer stopMetrics()
		return server.Serve(gctx, socketPath)
	})

	if opts.MetricsAddr != "" && a.metrics != nil {
		g.Go(func() error {
			return a.serveMetrics(serveCtx, opts.MetricsAddr)
		})
	}

	a.logger.Info("daemon listening on " + socketPath)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	a.logger.Info("daemon stopped")
	return nil
}

func (a *App) serveMetrics(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.metrics,
		ReadHeaderTimeout: time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), metricsShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return zerr.With(zerr.Wrap(err, "failed to serve metrics"), "addr", addr)
	}
}

// DaemonStatus reports the daemon serving the loaded configuration.
// A daemon that cannot be reached is reported as not running.
func (a *App) DaemonStatus(ctx context.Context) (*ports.DaemonStatus, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}

	client, err := a.connector.Dial(ctx, cfg)
	if err != nil {
		return &ports.DaemonStatus{Running: false}, nil //nolint:nilerr // an unreachable daemon is a status
	}
	defer func() { _ = client.Close() }()

	return client.Status(ctx)
}

// StopDaemon asks the daemon serving the loaded configuration to exit.
func (a *App) StopDaemon(ctx context.Context) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	client, err := a.connector.Dial(ctx, cfg)
	if err != nil {
		a.logger.Info("daemon is not running")
		return nil //nolint:nilerr // stopping a stopped daemon succeeds
	}
	defer func() { _ = client.Close() }()

	if err := client.Shutdown(ctx); err != nil {
		return err
	}
	a.logger.Info("daemon stopped")
	return nil
}

func (a *App) loadConfig() (*domain.Config, error) {
	cfg, err := a.configLoader.Load(a.configPath)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to load configuration")
	}
	return cfg, nil
}
