// Package server provides the status HTTP server of the poller.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/docpoller/internal/documents"
	"github.com/aristath/docpoller/internal/events"
	"github.com/aristath/docpoller/internal/poller"
)

// PollerStatus reports the poller state
type PollerStatus interface {
	Snapshot() poller.Status
}

// Trigger requests an immediate poll cycle
type Trigger interface {
	Trigger() bool
}

// SessionStatus reports the remote session
type SessionStatus interface {
	Info() documents.SessionInfo
}

// EventSource provides recent and live events
type EventSource interface {
	Recent(limit int) []events.Event
	Subscribe(buffer int) (<-chan events.Event, func())
}

// Config holds server configuration
type Config struct {
	Log      zerolog.Logger
	Port     int
	Mode     string                 // "interval" or "cron"
	Settings map[string]interface{} // redacted application config
	Poller   PollerStatus
	Trigger  Trigger
	Session  SessionStatus
	Events   EventSource
}

// Server represents the HTTP server
type Server struct {
	router  *chi.Mux
	server  *http.Server
	log     zerolog.Logger
	cfg     Config
	started time.Time

	// streams holds the base context of every request; cancelling it ends
	// open event streams so Shutdown does not wait on them.
	streams      context.Context
	closeStreams context.CancelFunc
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	streams, closeStreams := context.WithCancel(context.Background())
	s := &Server{
		router:       chi.NewRouter(),
		log:          cfg.Log.With().Str("component", "server").Logger(),
		cfg:          cfg,
		started:      time.Now(),
		streams:      streams,
		closeStreams: closeStreams,
	}

	s.setupMiddleware()
	s.setupRoutes()

	// No write timeout: event streams stay open. Plain routes are bounded
	// by the timeout middleware.
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return s.streams },
	}

	return s
}

func (s *Server) setupMiddleware() {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))

			r.Get("/status", s.handleStatus)
			r.Post("/poll/run", s.handleRunPoll)
			r.Get("/events", s.handleEvents)
			r.Get("/system", s.handleSystem)
		})

		stream := NewEventsStreamHandler(s.cfg.Events, s.log)
		r.Get("/events/stream", stream.ServeSSE)
		r.Get("/events/ws", stream.ServeWebSocket)
	})
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	s.closeStreams()
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

func requestID(r *http.Request) string {
	return middleware.GetReqID(r.Context())
}
