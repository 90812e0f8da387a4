package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"campusrun/internal/config"
	"campusrun/internal/domain"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Dependencies are the collaborators shared by the HTTP and gRPC transports.
type Dependencies struct {
	Missions domain.MissionLifecycle
	Identity domain.IdentityProvider
	Limiter  domain.RateLimiter
	Storage  domain.ObjectStorage
	// FilesDir is served under /files when uploads are kept on local disk.
	FilesDir       string
	MaxUploadBytes int64
	// Health reports readiness of the backing store.
	Health func(ctx context.Context) error
}

// HTTPServer exposes the mission lifecycle as a JSON API.
type HTTPServer struct {
	cfg    config.APIConfig
	deps   Dependencies
	server *http.Server
	logger zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, deps Dependencies, logger *zerolog.Logger) *HTTPServer {
	base := zerolog.Nop()
	if logger != nil {
		base = logger.With().Str("component", "http").Logger()
	}
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = 10 << 20
	}

	srv := &HTTPServer{cfg: cfg, deps: deps, logger: base}
	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return srv
}

// Handler returns the root router.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(loggingMiddleware(&s.logger))

	r.Get("/healthz", s.handleHealth)
	if s.deps.FilesDir != "" {
		r.Handle("/files/*", http.StripPrefix("/files/", http.FileServer(http.Dir(s.deps.FilesDir))))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(authMiddleware(s.deps.Identity))
		r.Use(rateLimitMiddleware(s.deps.Limiter, s.cfg.RateLimit.PerMinute, &s.logger))

		r.Post("/missions", s.handleCreateMission)
		r.Get("/missions/open", s.handleListOpen)
		r.Get("/me/missions", s.handleMyMissions)
		r.Post("/uploads", s.handleUpload)

		r.Route("/missions/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetMission)
			r.Get("/history", s.handleHistory)
			r.Get("/applicants", s.handleApplicants)
			r.Post("/apply", s.handleApply)
			r.Post("/confirm", s.handleConfirmRunner)
			r.Post("/payment", s.handleSubmitPayment)
			r.Post("/payment/verify", s.handleVerifyPayment)
			r.Post("/proof", s.handleSubmitProof)
			r.Post("/delivery/confirm", s.handleConfirmDelivery)
			r.Post("/dispute", s.handleDispute)
			r.Post("/rating", s.handleRate)
			r.Post("/cancel", s.handleCancel)
		})
	})

	return r
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health != nil {
		if err := s.deps.Health(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
