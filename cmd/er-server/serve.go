package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MRamiBalles/FantasyEROperations/server/internal/engine"
	"github.com/MRamiBalles/FantasyEROperations/server/internal/events"
	"github.com/MRamiBalles/FantasyEROperations/server/internal/infra/storage"
	"github.com/MRamiBalles/FantasyEROperations/server/internal/network"
	"github.com/MRamiBalles/FantasyEROperations/server/internal/platform/config"
	"github.com/MRamiBalles/FantasyEROperations/server/internal/platform/logger"
	"github.com/MRamiBalles/FantasyEROperations/server/internal/platform/metrics"
)

// statePeriod is how often connected clients get a state frame when nothing happens.
const statePeriod = time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the game server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.HTTP.Addr = addr
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides http.addr)")
	return cmd
}

// openStores opens the journal database and picks the session store for the
// configured backend. The journal always lives in SQLite.
func openStores(cfg *config.Config) (*sql.DB, storage.SessionStore, error) {
	db, err := storage.InitSQLite(cfg.Storage.SQLitePath)
	if err != nil {
		return nil, nil, fmt.Errorf("init sqlite: %w", err)
	}
	switch cfg.Storage.Backend {
	case config.BackendFile:
		return db, storage.NewFileStore(cfg.Storage.SaveDir), nil
	default:
		return db, storage.NewSQLiteSessionRepository(db), nil
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	appLogger := logger.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	appLogger.Info("Initializing Fantasy ER Operations server...")

	db, sessions, err := openStores(cfg)
	if err != nil {
		appLogger.Error("Failed to open storage", err)
		return err
	}
	defer db.Close()
	appLogger.Info("Session saves go to the " + cfg.Storage.Backend + " backend")

	appLogger.Info("Bootstrapping EventLog...")
	eventLog := events.NewEventLog(storage.NewJournalSink(storage.NewSQLiteEventRepository(db)))
	eventLog.OnPersistError(func(e events.GameEvent, err error) {
		appLogger.Error("Journal write failed for "+string(e.Type), err)
	})

	appLogger.Info("Bootstrapping Engine...")
	collector := metrics.Get()
	engineOpts := engine.DefaultOptions()
	engineOpts.TimerJoinTimeout = cfg.Game.TimerJoinTimeout
	engineOpts.Metrics = collector
	gameEngine := engine.NewEngine(eventLog, sessions, appLogger, engineOpts)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gameEngine.Start(ctx)
	defer gameEngine.Shutdown()

	appLogger.Info("Bootstrapping WebSocket Hub...")
	hub := network.NewHub(gameEngine, appLogger, collector)
	go hub.Run(ctx)
	hub.StartEventPoller(ctx, eventLog, statePeriod)

	server := network.NewServer(gameEngine, hub, eventLog, collector, appLogger)
	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(cfg.HTTP.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		appLogger.Error("Server failed", err)
		return err
	case <-ctx.Done():
	}

	appLogger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if gameEngine.IsRunning() {
		if _, err := gameEngine.EndSession(shutdownCtx, true); err != nil {
			appLogger.Warn("Final save failed: " + err.Error())
		}
	}
	return server.Shutdown(shutdownCtx)
}
