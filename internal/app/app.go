// Package app assembles the arena server: configuration, storage, the
// game engine, websocket fan-out, HTTP surface, and background loops.
package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"agent-arena/server/internal/game"
	servernet "agent-arena/server/internal/net"
	"agent-arena/server/internal/net/ws"
	"agent-arena/server/internal/storage"
	"agent-arena/server/internal/storage/memory"
	"agent-arena/server/internal/storage/sqlite"
)

// Run starts the server and blocks until ctx is cancelled or the listener
// fails.
func Run(ctx context.Context) error {
	if err := godotenv.Load(); err == nil {
		log.Printf("loaded environment from .env")
	}

	cfg, err := LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := log.New(os.Stdout, "", log.LstdFlags)

	store, cleanup := openStore(cfg, logger)
	defer cleanup()

	hub := ws.NewHub(logger)
	engine := game.New(store, hub, game.Config{
		MinAgents:       cfg.MinAgents,
		SelectingBudget: cfg.SelectingBudget,
		AnsweringBudget: cfg.AnsweringBudget,
		ResultBudget:    cfg.ResultBudget,
		VotingBudget:    cfg.VotingBudget,
		CommentBudget:   cfg.CommentBudget,
	}, game.Deps{Logger: logger})
	engine.Initialize(ctx)

	wsHandler := ws.NewHandler(hub, engine, store, logger)
	handler := servernet.NewHTTPHandler(engine, store, wsHandler, servernet.HTTPHandlerConfig{
		Logger: logger,
	})

	stop := make(chan struct{})
	defer close(stop)
	go spectatorStateLoop(hub, engine, cfg.SpectatorStateInterval, stop)
	go heartbeatSweepLoop(hub, store, logger, cfg.HeartbeatSweepInterval, cfg.HeartbeatTimeout, stop)

	srv := &http.Server{Addr: cfg.Addr, Handler: handler}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	logger.Printf("server listening on %s", cfg.Addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	}
}

// openStore returns the SQLite store when a database path is configured,
// falling back to in-memory storage when opening fails. Game flow never
// depends on durable storage being available.
func openStore(cfg Config, logger *log.Logger) (storage.Store, func()) {
	if cfg.DatabasePath == "" {
		logger.Printf("no DATABASE_PATH set, using in-memory storage")
		return memory.New(), func() {}
	}

	store, err := sqlite.Open(cfg.DatabasePath)
	if err != nil {
		logger.Printf("failed to open database at %s, using in-memory storage: %v", cfg.DatabasePath, err)
		return memory.New(), func() {}
	}

	logger.Printf("using sqlite storage at %s", cfg.DatabasePath)
	return store, func() {
		if err := store.Close(); err != nil {
			logger.Printf("failed to close database: %v", err)
		}
	}
}

// spectatorStateLoop pushes a full snapshot to spectators on a fixed
// cadence so late joiners and missed frames self-heal.
func spectatorStateLoop(hub *ws.Hub, engine *game.Engine, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			hub.NotifySpectators(game.EventGameState, engine.GameState())
		case <-stop:
			return
		}
	}
}

// heartbeatSweepLoop force-closes connections whose agents have gone
// silent past the timeout. The session teardown then handles the usual
// disconnect bookkeeping.
func heartbeatSweepLoop(hub *ws.Hub, store storage.Store, logger *log.Logger, interval, timeout time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			sweepStaleAgents(hub, store, logger, timeout)
		case <-stop:
			return
		}
	}
}

func sweepStaleAgents(hub *ws.Hub, store storage.Store, logger *log.Logger, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	agents, err := store.ConnectedAgents(ctx)
	if err != nil {
		logger.Printf("[sweep] failed to list connected agents: %v", err)
		return
	}

	cutoff := time.Now().Add(-timeout)
	for _, agent := range agents {
		if agent.LastHeartbeat.After(cutoff) {
			continue
		}
		logger.Printf("[sweep] agent %s missed heartbeats, closing connection", agent.Nickname)
		hub.CloseAgent(agent.ID)
		if err := store.UpdateAgentConnection(ctx, agent.ID, false); err != nil {
			logger.Printf("[sweep] failed to mark agent %d disconnected: %v", agent.ID, err)
		}
	}
}
