package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/time/rate"

	"tradesim/internal/config"
	"tradesim/internal/engine"
)

// Server runs the simulator's HTTP/WebSocket API
type Server struct {
	cfg      config.ServerConfig
	hub      *Hub
	handlers *Handlers
	server   *http.Server
	logger   *slog.Logger
}

// NewServer creates the API server and wires it to the engine. The hub it
// creates is registered as the engine's price broadcaster.
func NewServer(cfg config.ServerConfig, eng *engine.Engine, logger *slog.Logger) *Server {
	hub := NewHub(logger)
	eng.SetBroadcaster(hub)

	limiters := newLimiterPool(rate.Limit(cfg.SubmitRatePerSec), cfg.SubmitBurst)
	handlers := NewHandlers(eng, hub, limiters, cfg.AllowedOrigins, logger)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      newMux(handlers),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return &Server{
		cfg:      cfg,
		hub:      hub,
		handlers: handlers,
		server:   server,
		logger:   logger.With("component", "api-server"),
	}
}

// newMux binds every route to its handler.
func newMux(handlers *Handlers) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", handlers.HandleHealth)
	mux.HandleFunc("GET /version", handlers.HandleVersion)
	mux.HandleFunc("GET /instruments", handlers.HandleInstruments)
	mux.HandleFunc("POST /orders", handlers.HandleSubmitOrder)
	mux.HandleFunc("GET /orders", handlers.HandleListOrders)
	mux.HandleFunc("DELETE /orders/{id}", handlers.HandleCancelOrder)
	mux.HandleFunc("GET /orderbook/{symbol}", handlers.HandleOrderbook)
	mux.HandleFunc("GET /portfolio", handlers.HandlePortfolio)
	mux.HandleFunc("GET /news/status", handlers.HandleNewsStatus)
	mux.HandleFunc("GET /news/all", handlers.HandleNewsAll)
	mux.HandleFunc("GET /news/candidates", handlers.HandleNewsCandidates)
	mux.HandleFunc("GET /news/active", handlers.HandleNewsActive)
	mux.HandleFunc("POST /admin/news", handlers.HandleAdminNews)
	mux.HandleFunc("GET /leaderboard", handlers.HandleLeaderboard)
	mux.HandleFunc("GET /ws/market", handlers.HandleWebSocket)
	return mux
}

// Start starts the WebSocket hub and the HTTP listener. Blocks until the
// server stops.
func (s *Server) Start() error {
	go s.hub.Run()

	s.logger.Info("api server starting", "addr", s.server.Addr)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Stop gracefully stops the server
func (s *Server) Stop() error {
	s.logger.Info("stopping api server")

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	return s.server.Shutdown(ctx)
}
