package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/bosswatch/bosswatch/internal/catalog"
	"github.com/bosswatch/bosswatch/internal/config"
	"github.com/bosswatch/bosswatch/internal/httpapi"
	"github.com/bosswatch/bosswatch/internal/notify"
	"github.com/bosswatch/bosswatch/internal/syncengine"
	"github.com/bosswatch/bosswatch/internal/tracker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the tracking server",
	Long: `Start the HTTP server: REST API, live websocket feed, dashboard,
webhook fan-out workers, and the periodic sync engine.

Configuration comes from bosswatch.yaml (or BOSSWATCH_CONFIG) plus
BOSSWATCH_* environment variables.`,
	Example: `  # Durable local state under ./.bosswatch (the default profile)
  bosswatch serve

  # In-memory state, debug logging
  BOSSWATCH_BACKEND_PROFILE=memory BOSSWATCH_LOG_LEVEL=debug bosswatch serve`,
	RunE: runServe,
}

func init() {
	RootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}

	dsn, err := cfg.StateBackendDSN()
	if err != nil {
		return err
	}
	backend, err := tracker.BuildStateBackendFromDSN(dsn)
	if err != nil {
		return fmt.Errorf("state backend: %w", err)
	}

	cat := catalog.Default()
	if cfg.Catalog.Path != "" {
		cat, err = catalog.LoadFile(cfg.Catalog.Path)
		if err != nil {
			return fmt.Errorf("catalog: %w", err)
		}
	}
	var currentCatalog atomic.Pointer[catalog.Catalog]
	currentCatalog.Store(cat)

	// The store and the HTTP layer share one provider so a catalog reload
	// reaches kill validation and GET /v1/bosses together.
	store, err := tracker.NewStore(tracker.StoreOptions{
		CatalogProvider: currentCatalog.Load,
		StateBackend:    backend,
		Logger:          logger,
		PatrolRetention: cfg.Storage.PatrolRetention,
	})
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}

	// Seed the sync endpoint on first start; a persisted config wins.
	if cfg.Sync.Endpoint != "" && store.SyncConfig().Endpoint == "" {
		syncCfg := store.SyncConfig()
		syncCfg.Endpoint = cfg.Sync.Endpoint
		store.SetSyncConfig(syncCfg)
	}

	dispatcher := notify.NewDispatcher(store, notify.DispatcherOptions{
		Workers:   cfg.Notify.Workers,
		QueueSize: cfg.Notify.QueueSize,
		Logger:    logger,
	})
	defer dispatcher.Close()

	syncer := syncengine.New(store, syncengine.Options{Logger: logger})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go syncer.Run(ctx)
	go runMidnightRollover(ctx, store, logger)

	if cfg.Catalog.Watch && cfg.Catalog.Path != "" {
		go func() {
			err := catalog.Watch(ctx, cfg.Catalog.Path, logger, func(next *catalog.Catalog) {
				currentCatalog.Store(next)
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("catalog watcher stopped")
			}
		}()
	}

	apiServer := httpapi.NewServer(store, httpapi.ServerOptions{
		Catalog:      currentCatalog.Load,
		Notifier:     dispatcher,
		Syncer:       syncer,
		Logger:       logger,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	})
	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      apiServer,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Server.Addr).Msg("bosswatch listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// runMidnightRollover forces the lazy daily statistics rollover at each
// local midnight so the dashboard flips without waiting for the next kill.
func runMidnightRollover(ctx context.Context, store *tracker.Store, logger zerolog.Logger) {
	for {
		now := time.Now()
		next := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			store.RefreshDay()
			logger.Info().Msg("daily statistics rolled over")
		}
	}
}

func newLogger(cfg config.LogConfig) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("log level %q: %w", cfg.Level, err)
	}
	var out = os.Stderr
	logger := zerolog.New(out).Level(level).With().Timestamp().Logger()
	if cfg.Pretty {
		logger = logger.Output(zerolog.ConsoleWriter{Out: out})
	}
	return logger, nil
}
