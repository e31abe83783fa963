// Package server assembles the relay service: one registry, router, and hub
// per Server, created at startup and torn down on shutdown.
package server

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/roomrelay/internal/metrics"
	"github.com/Tyrowin/roomrelay/internal/relay"
)

// Server owns every piece of process-wide relay state.
type Server struct {
	cfg      Config
	logger   *slog.Logger
	metrics  *metrics.Metrics
	rooms    *relay.Registry
	router   *relay.Router
	hub      *Hub
	origins  originPolicy
	upgrader websocket.Upgrader
}

// New builds a Server from cfg. cfg is sanitized but not validated; callers
// loading user input should go through LoadConfig. logger may be nil.
func New(cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.Sanitize()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	rooms := relay.NewRegistry(logger.With("component", "registry"), m)
	limiter := relay.NewRateLimiter(cfg.RateLimit.Window, cfg.RateLimit.MaxMessages)
	router := relay.NewRouter(rooms, limiter, logger.With("component", "router"), m)

	s := &Server{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		rooms:   rooms,
		router:  router,
		hub:     NewHub(router, logger.With("component", "hub")),
		origins: newOriginPolicy(cfg.AllowedOrigins, logger),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.origins.checkOrigin,
	}
	return s
}

// Config returns the sanitized configuration the server runs with.
func (s *Server) Config() Config { return s.cfg }

// Hub returns the server's hub.
func (s *Server) Hub() *Hub { return s.hub }

// Router returns the relay router fed by the server's clients.
func (s *Server) Router() *relay.Router { return s.router }

// Rooms returns the server's room registry.
func (s *Server) Rooms() *relay.Registry { return s.rooms }

// StartHub starts the hub's event loop in a separate goroutine. It must be
// called before the HTTP server accepts WebSocket connections.
func (s *Server) StartHub() {
	go s.hub.Run()
	s.logger.Info("hub started and ready to manage WebSocket connections")
}

// Shutdown stops the hub, closing every client and waiting up to timeout for
// their pumps to exit.
func (s *Server) Shutdown(timeout time.Duration) error {
	return s.hub.Shutdown(timeout)
}
