// Trading Simulator — a multi-user equity trading simulation with a central
// limit order book, GBM reference prices, and a macro news engine.
//
// Architecture:
//
//	main.go              — entry point: loads config, starts engine + API, waits for SIGINT/SIGTERM
//	engine/engine.go     — orchestrator: news → drift → GBM, bot refreshes, generator, broadcasts
//	book/book.go         — central limit order book: price-time matching, clamp, snapshots
//	ledger/ledger.go     — per-user cash, FIFO lots, realized/unrealized P&L
//	risk/gate.go         — pre-trade checks: size, volume, reversal guard, position cap
//	news/engine.go       — scheduled macro shocks with bucketed activation and decay
//	sim/gbm.go           — geometric Brownian motion reference price per instrument
//	bots/                — per-symbol market makers laying passive quote ladders
//	generator/           — paired reference orders that pull the book toward fair value
//	seed/                — world loading: embedded, YAML, SQLite, or HTTP
//	api/                 — HTTP endpoints and the WebSocket price feed
//	leaderboard/         — participant rankings by total P&L
//
// Every participant starts with the same cash balance and trades against a
// market that moves on simulated news. The final standings print on shutdown.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"tradesim/internal/api"
	"tradesim/internal/config"
	"tradesim/internal/engine"
	"tradesim/internal/leaderboard"
	"tradesim/internal/seed"
	"tradesim/internal/store"
)

func main() {
	// Optional .env for TRADESIM_* overrides
	_ = godotenv.Load()

	cfgPath := "configs/config.yaml"
	if p := os.Getenv("TRADESIM_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// Set up logger
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	snap, err := loadSeed(cfg.Seed)
	if err != nil {
		logger.Error("failed to load seed", "error", err)
		os.Exit(1)
	}
	logger.Info("seed loaded",
		"source", cfg.Seed.Source,
		"instruments", len(snap.Instruments),
		"news_events", len(snap.News),
	)

	eng := engine.New(cfg.Engine, snap, logger)

	// Restore persisted user ledgers, if a store is configured.
	var st *store.Store
	if cfg.Store.DataDir != "" {
		st, err = store.Open(cfg.Store.DataDir)
		if err != nil {
			logger.Error("failed to open store", "error", err)
			os.Exit(1)
		}
		users, err := st.LoadAll()
		if err != nil {
			logger.Error("failed to load persisted users", "error", err)
			os.Exit(1)
		}
		for _, u := range users {
			eng.Ledger().Restore(u)
		}
		if len(users) > 0 {
			logger.Info("restored persisted users", "count", len(users))
		}
	}

	apiServer := api.NewServer(cfg.Server, eng, logger)
	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("api server failed", "error", err)
			os.Exit(1)
		}
	}()

	eng.Start()

	logger.Info("trading simulator started",
		"url", fmt.Sprintf("http://localhost:%d", cfg.Server.Port),
		"instruments", len(snap.Instruments),
	)

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	if err := apiServer.Stop(); err != nil {
		logger.Error("failed to stop api server", "error", err)
	}

	if st != nil {
		for _, u := range eng.Ledger().SnapshotAll() {
			if err := st.SaveUser(u); err != nil {
				logger.Error("failed to persist user", "user", u.UserID, "error", err)
			}
		}
	}

	// Final standings before the engine (and its marks) go away.
	board := leaderboard.New(eng.Ledger())
	if entries := board.Compute(eng.Marks()); len(entries) > 0 {
		fmt.Println("\nFinal standings:")
		if err := leaderboard.Render(os.Stdout, entries); err != nil {
			logger.Error("failed to render leaderboard", "error", err)
		}
	}

	eng.Stop()
}

func loadSeed(cfg config.SeedConfig) (*seed.Snapshot, error) {
	switch cfg.Source {
	case "yaml":
		return seed.LoadYAML(cfg.Path)
	case "sqlite":
		return seed.LoadSQLite(cfg.Path)
	case "http":
		return seed.FetchHTTP(context.Background(), cfg.URL)
	default:
		return seed.Default()
	}
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
