package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/okian/chartrank/internal/adapters/http/api"
	"github.com/okian/chartrank/internal/adapters/http/swagger"
	repository "github.com/okian/chartrank/internal/adapters/repository"
	service "github.com/okian/chartrank/internal/app"
	"github.com/okian/chartrank/internal/config"
	"github.com/okian/chartrank/pkg/logger"
	"github.com/okian/chartrank/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	writeTimeout           = 35 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	serviceMetricsInterval = 5 * time.Second
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// Use stderr for initialization errors since logger isn't available yet
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "chartrank exited", logger.Error(err))
		os.Exit(1)
	}
}

// application holds the wired components of one process.
type application struct {
	store  *repository.GormStore
	svc    *service.Service
	api    *api.Server
	server *http.Server
}

// build opens the store and wires the service and HTTP server. The caller
// owns the returned application and must close it.
func build(ctx context.Context, cfg *config.Config) (*application, error) {
	store, err := repository.Open(ctx, cfg.DBDriver, cfg.DBDSN, repository.WithLogLevel(gormLevel(cfg.LogLevel)))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	svc, err := newService(cfg, store)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	apiServer := api.NewServer(svc,
		api.WithMaxLimit(cfg.MaxLeaderboardLimit),
		api.WithMount(func(r chi.Router) { swagger.Register(ctx, r) }),
	)
	return &application{
		store: store,
		svc:   svc,
		api:   apiServer,
		server: &http.Server{
			Addr:              cfg.Addr,
			Handler:           apiServer.Handler(),
			ReadTimeout:       readTimeout,
			WriteTimeout:      writeTimeout,
			IdleTimeout:       idleTimeout,
			ReadHeaderTimeout: readHeaderTimeout,
		},
	}, nil
}

// newService builds the ranking service from cfg.
func newService(cfg *config.Config, store repository.Store) (*service.Service, error) {
	opts, err := service.OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	opts = append(opts, service.WithLogger(logger.Get().Named("service")))
	return service.New(store, opts...), nil
}

// close releases the store.
func (a *application) close() error {
	return a.store.Close()
}

// run serves until ctx is done, then shuts the server and the workers down.
func run(ctx context.Context, cfg *config.Config) error {
	log := logger.Get()

	a, err := build(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.close(); err != nil {
			log.Error(ctx, "store close failed", logger.Error(err))
		}
	}()

	if err := a.svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info(gctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return a.svc.RunReconciler(gctx, cfg.ReconcileInterval())
	})
	g.Go(func() error {
		startServiceMetricsUpdater(gctx, a.svc)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info(context.Background(), "shutting down server...")

		// Graceful shutdown with timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		if err := a.svc.Stop(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("service stop: %w", err))
		}
		return errors.Join(errs...)
	})

	err = g.Wait()
	log.Info(context.Background(), "server stopped")
	return err
}

// startServiceMetricsUpdater refreshes service gauges until ctx is done.
func startServiceMetricsUpdater(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

// updateServiceMetrics updates service-level metrics.
func updateServiceMetrics(svc *service.Service) {
	// GetStats refreshes the queue, pending and ranked gauges itself.
	stats := svc.GetStats()
	if workerCount, ok := stats["workerCount"].(int); ok {
		metrics.UpdateWorkerCount(workerCount)
	}
	if queueSize, ok := stats["queueSize"].(int); ok {
		metrics.UpdateQueueCapacity(queueSize)
	}
}

// gormLevel maps the process log level onto the GORM logger.
func gormLevel(level string) string {
	switch level {
	case "debug":
		return "info"
	case "warn", "warning":
		return "warn"
	case "error":
		return "error"
	default:
		return "silent"
	}
}
