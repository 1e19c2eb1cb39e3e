package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"folio/internal/application/service"
)

// HealthStatus reports which collaborators are configured, without leaking
// any secret values.
type HealthStatus struct {
	HasStore       bool `json:"hasStore"`
	HasQuoteKey    bool `json:"hasQuoteKey"`
	HasQuoteSecret bool `json:"hasQuoteSecret"`
	HasAdminToken  bool `json:"hasAdminToken"`
}

// Config holds server configuration.
type Config struct {
	Port       int
	AdminToken string
	Health     HealthStatus
	Log        zerolog.Logger
	Portfolio  *service.PortfolioService
}

// Server is the HTTP front of the portfolio service: one public status
// surface plus the authenticated admin API.
type Server struct {
	router     *chi.Mux
	server     *http.Server
	log        zerolog.Logger
	portfolio  *service.PortfolioService
	adminToken string
	health     HealthStatus
}

func New(cfg Config) *Server {
	s := &Server{
		router:     chi.NewRouter(),
		log:        cfg.Log.With().Str("component", "server").Logger(),
		portfolio:  cfg.Portfolio,
		adminToken: cfg.AdminToken,
		health:     cfg.Health,
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Admin-Token"},
		MaxAge:         300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/api/status", s.handleStatus)
	s.router.Get("/api/health", s.handleHealth)

	s.router.Route("/api/admin", func(r chi.Router) {
		r.Use(s.requireAdmin)
		r.Get("/positions", s.handleGetPositions)
		r.Post("/positions", s.handleSavePositions)
		r.Get("/positions.csv", s.handleExportPositions)
		r.Get("/snapshot", s.handleGetSnapshot)
		r.Get("/meta", s.handleGetMeta)
		r.Post("/refresh-prices", s.handleRefreshPrices)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("starting http server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error().Err(err).Msg("failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
