// Package app wires the bag browser services together and manages their lifecycle.
package app

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	httpapi "github.com/bagbrowser/bagbrowser/internal/api/http"
	"github.com/bagbrowser/bagbrowser/internal/catalog"
	"github.com/bagbrowser/bagbrowser/internal/config"
	"github.com/bagbrowser/bagbrowser/internal/ingest"
	"github.com/bagbrowser/bagbrowser/internal/manifest"
	"github.com/bagbrowser/bagbrowser/internal/server"
	"github.com/bagbrowser/bagbrowser/internal/storage"
	"github.com/bagbrowser/bagbrowser/pkg/logging"
)

// App manages the HTTP API and the ingest daemon over one cache database.
type App struct {
	cfg *config.Config

	catalog  *catalog.Catalog
	shutdown *server.ShutdownManager

	source     *manifest.StorageSource
	httpServer *http.Server
	listener   net.Listener
	daemon     *ingest.Daemon

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New validates cfg and prepares its directories.
func New(cfg *config.Config) (*App, error) {
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	return &App{
		cfg:      cfg,
		shutdown: server.NewShutdownManager(server.DefaultShutdownConfig()),
	}, nil
}

// OpenCatalog opens the cache database named by cfg.
func OpenCatalog(ctx context.Context, cfg *config.Config) (*catalog.Catalog, error) {
	return catalog.Open(ctx, cfg.DatabasePath, catalog.Options{
		PrefixMatch: cfg.PrefixMatch(),
		CacheSize:   cfg.Query.CacheSize,
	})
}

// NewSource builds the manifest source configured in cfg.Ingest.Source.
func NewSource(ctx context.Context, cfg *config.Config) (*manifest.StorageSource, error) {
	src := cfg.Ingest.Source

	var (
		store storage.ObjectStorage
		err   error
	)
	switch src.Type {
	case config.SourceLocal:
		store, err = storage.NewLocalStorage(src.Path)
	case config.SourceS3:
		s3Cfg := storage.DefaultS3Config()
		if src.Region != "" {
			s3Cfg.Region = src.Region
		}
		s3Cfg.Endpoint = src.Endpoint
		s3Cfg.UsePathStyle = src.UsePathStyle
		store, err = storage.NewS3Storage(ctx, src.Bucket, s3Cfg)
	default:
		return nil, fmt.Errorf("unsupported source type: %s", src.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize manifest storage: %w", err)
	}

	log := logging.WithComponent("app")
	log.Info().
		Str("type", src.Type).
		Str("path", src.Path).
		Str("bucket", src.Bucket).
		Str("prefix", src.Prefix).
		Msg("manifest source initialized")

	return manifest.NewStorageSource(store, src.Prefix, cfg.Ingest.FetchBatch), nil
}

// NewFreshener builds a Freshener writing into cat from the configured source.
func NewFreshener(ctx context.Context, cfg *config.Config, cat *catalog.Catalog) (*ingest.Freshener, error) {
	source, err := NewSource(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return newFreshener(cfg, cat, source), nil
}

func newFreshener(cfg *config.Config, cat *catalog.Catalog, source manifest.Source) *ingest.Freshener {
	icfg := ingest.DefaultConfig()
	icfg.BatchSize = cfg.Ingest.BatchSize
	icfg.FetchBatch = cfg.Ingest.FetchBatch
	return ingest.NewFreshener(cat, source, icfg)
}

// Start opens the catalog and the manifest source, then starts the services
// selected by the mode.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("app is already running")
	}
	a.running = true
	a.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	var err error
	a.catalog, err = OpenCatalog(ctx, a.cfg)
	if err != nil {
		a.abort()
		return fmt.Errorf("failed to open catalog: %w", err)
	}
	a.shutdown.RegisterCloser("catalog", a.catalog)

	log := logging.WithComponent("app")
	log.Info().
		Str("path", a.cfg.DatabasePath).
		Str("prefix_match", string(a.catalog.PrefixMatch())).
		Int("cache_size", a.cfg.Query.CacheSize).
		Msg("catalog opened")

	a.source, err = NewSource(ctx, a.cfg)
	if err != nil {
		a.abort()
		return err
	}

	if a.cfg.ShouldRunIngest() {
		if err := a.startIngest(ctx); err != nil {
			a.abort()
			return fmt.Errorf("failed to start ingest daemon: %w", err)
		}
	}

	if a.cfg.ShouldRunServe() {
		if err := a.startHTTP(); err != nil {
			a.abort()
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
	}

	log.Info().Str("mode", string(a.cfg.Mode)).Msg("bagbrowser started")
	return nil
}

func (a *App) startIngest(ctx context.Context) error {
	a.daemon = ingest.NewDaemon(newFreshener(a.cfg, a.catalog, a.source), a.cfg.Ingest.Interval)
	if err := a.daemon.Start(ctx); err != nil {
		return err
	}
	a.shutdown.RegisterCloser("ingest daemon", server.CloserFunc(a.daemon.Stop))

	log := logging.WithComponent("app")
	log.Info().Dur("interval", a.cfg.Ingest.Interval).Msg("ingest daemon started")
	return nil
}

func (a *App) startHTTP() error {
	handler := httpapi.NewHandler(a.catalog, a.source, a.cfg.Query.PageSize)
	router := httpapi.NewRouter(handler, string(a.cfg.Mode), a.shutdown.Middleware)

	ln, err := net.Listen("tcp", a.cfg.HTTP.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.cfg.HTTP.Addr, err)
	}
	a.listener = ln

	a.httpServer = &http.Server{
		Handler:      router,
		ReadTimeout:  a.cfg.HTTP.ReadTimeout,
		WriteTimeout: a.cfg.HTTP.WriteTimeout,
		IdleTimeout:  a.cfg.HTTP.IdleTimeout,
	}
	a.shutdown.RegisterCloser("http server", server.HTTPServerCloser(a.httpServer, 10*time.Second))

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		log := logging.WithComponent("http")
		log.Info().Str("addr", ln.Addr().String()).Msg("HTTP server listening")
		if err := a.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()
	return nil
}

// Addr returns the address the HTTP server listens on, or "" if it is not running.
func (a *App) Addr() string {
	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}

// Catalog returns the open catalog, or nil before Start.
func (a *App) Catalog() *catalog.Catalog {
	return a.catalog
}

// Daemon returns the ingest daemon, or nil when the mode does not run one.
func (a *App) Daemon() *ingest.Daemon {
	return a.daemon
}

// Stop drains in-flight requests and closes the HTTP server, the ingest
// daemon and the catalog, in that order.
func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return nil
	}
	a.running = false
	a.mu.Unlock()

	if a.cancel != nil {
		a.cancel()
	}

	err := a.shutdown.Shutdown(ctx, "stop requested")
	a.wg.Wait()
	return err
}

// abort releases whatever Start managed to open before failing.
func (a *App) abort() {
	if a.cancel != nil {
		a.cancel()
	}
	a.shutdown.Shutdown(context.Background(), "start failed")
	a.wg.Wait()
	a.mu.Lock()
	a.running = false
	a.mu.Unlock()
}

// WaitForShutdown blocks until a signal arrives or ctx is cancelled, then stops the app.
func (a *App) WaitForShutdown(ctx context.Context) error {
	a.shutdown.ListenForSignals(ctx)
	return a.Stop(context.Background())
}
