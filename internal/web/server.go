// Package web provides the status server that runs alongside a pipeline run.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/hapi-pipelines/internal/config"
	"github.com/JonMunkholm/hapi-pipelines/internal/pipeline"
	mw "github.com/JonMunkholm/hapi-pipelines/internal/web/middleware"
)

// StatusSource reports the progress of the current run.
type StatusSource interface {
	Progress() pipeline.Progress
}

// Server is the HTTP status server.
type Server struct {
	cfg      config.ServerConfig
	status   StatusSource
	gatherer prometheus.Gatherer
	router   *chi.Mux
	server   *http.Server
}

// NewServer creates a new Server. A nil gatherer disables /metrics.
func NewServer(cfg config.ServerConfig, status StatusSource, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		cfg:      cfg,
		status:   status,
		gatherer: gatherer,
		router:   chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	s.server = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)

	// Security hardening
	s.router.Use(securityHeaders)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	// Liveness stays open so orchestrators need no key.
	s.router.Get("/healthz", s.handleHealth)

	s.router.Group(func(r chi.Router) {
		r.Use(mw.APIKeyAuth(s.cfg.APIKeys))

		r.Get("/status", s.handleStatus)
		r.Get("/status/themes/{theme}", s.handleThemeStatus)
		if s.gatherer != nil {
			r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
		}
	})
}

// Start begins listening for HTTP requests. It returns http.ErrServerClosed
// after Shutdown, including a Shutdown that happened before Start.
func (s *Server) Start() error {
	slog.Info("starting status server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// statusResponse is a run snapshot with derived totals.
type statusResponse struct {
	pipeline.Progress
	Percent int `json:"percent"`
	Rows    int `json:"rows"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	p := s.status.Progress()
	writeJSON(w, statusResponse{Progress: p, Percent: p.Percent(), Rows: p.Rows()})
}

func (s *Server) handleThemeStatus(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "theme")
	for _, t := range s.status.Progress().Themes {
		if t.Name == name {
			writeJSON(w, t)
			return
		}
	}
	s.respondError(w, r, fmt.Errorf("%w: %s", ErrThemeNotSelected, name), http.StatusNotFound)
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Prevent MIME type sniffing
		w.Header().Set("X-Content-Type-Options", "nosniff")

		// Prevent clickjacking
		w.Header().Set("X-Frame-Options", "DENY")

		// Nothing here is ever rendered by a browser
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

		// Snapshots change while the run is in progress
		w.Header().Set("Cache-Control", "no-store")

		w.Header().Set("Referrer-Policy", "no-referrer")

		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON and writes it to w.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
