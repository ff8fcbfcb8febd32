package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/qorlgns1/binbang-sub001/internal/config"
	"github.com/qorlgns1/binbang-sub001/internal/handler"
	appmw "github.com/qorlgns1/binbang-sub001/internal/middleware"
)

// Server runs the worker's monitoring and admin API.
type Server struct {
	cfg    *config.Config
	log    *zap.Logger
	router chi.Router
	http   *http.Server
}

// New creates a new server.
func New(cfg *config.Config, log *zap.Logger, deps *Deps) *Server {
	r := chi.NewRouter()

	r.Use(appmw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(appmw.Metrics)
	r.Use(appmw.Logging(log))

	r.Get("/health", handler.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(appmw.AdminAuth(cfg.AdminTokens))
		r.Route("/admin", func(r chi.Router) {
			r.Post("/rules/reload", deps.Admin.ReloadRules)
			r.Post("/settings/reload", deps.Admin.ReloadSettings)
			r.Get("/heartbeat", deps.Heartbeat.Get)
		})
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	return &Server{
		cfg:    cfg,
		log:    log,
		router: r,
		http: &http.Server{
			Addr:    addr,
			Handler: r,
		},
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.log.Info("starting admin server", zap.String("addr", s.http.Addr))
	return s.http.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
