// =============================================================================
// Card Export Formatter - Web Server
// =============================================================================
//
// This module serves the upload form and the format endpoints. Every upload
// is staged under a fresh UUID, cleaned by the converter, streamed back as an
// attachment and then deleted.
//
// ROUTES:
//   GET  /             upload form
//   POST /             form upload, returns the cleaned file
//   POST /api/format   same as POST / with JSON errors
//   GET  /healthz      liveness probe
//   GET  /metrics      Prometheus metrics
//
// =============================================================================

package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/ginjaninja78/card-export-formatter/internal/config"
	"github.com/ginjaninja78/card-export-formatter/internal/converter"
	"github.com/ginjaninja78/card-export-formatter/internal/metrics"
	"github.com/ginjaninja78/card-export-formatter/internal/web/middleware"
	"github.com/ginjaninja78/card-export-formatter/pkg/utils"
)

// Server is the HTTP front end of the formatter.
type Server struct {
	cfg        *config.MainConfig
	conv       *converter.Converter
	files      *utils.FileManager
	metrics    *metrics.Recorder
	log        zerolog.Logger
	router     chi.Router
	httpServer *http.Server
}

// NewServer creates a server with all routes and middleware configured.
//
// PARAMETERS:
//   - cfg: Server limits and timeouts, staging TTL and the default format.
//   - conv: Shared converter; it is safe for concurrent requests.
//   - files: Stages uploads into the staging directory.
//   - rec: Metrics exposed on /metrics. May be nil.
//   - log: Base logger; each request gets a child logger with its id.
func NewServer(cfg *config.MainConfig, conv *converter.Converter, files *utils.FileManager, rec *metrics.Recorder, log zerolog.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		conv:    conv,
		files:   files,
		metrics: rec,
		log:     log,
		router:  chi.NewRouter(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout.Std(),
		WriteTimeout: cfg.Server.WriteTimeout.Std(),
		IdleTimeout:  cfg.Server.IdleTimeout.Std(),
	}

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(chimw.RealIP)
	s.router.Use(middleware.Logger(s.log))
	s.router.Use(middleware.Recovery(s.log))
	s.router.Use(middleware.SecurityHeaders)
	if timeout := s.cfg.Server.WriteTimeout.Std(); timeout > 0 {
		s.router.Use(chimw.Timeout(timeout))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/", s.handleIndex)
	s.router.Post("/", s.handleFormat)
	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", s.metrics.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/format", s.handleFormat)
	})
}

// Start runs the staging janitor and serves HTTP until Shutdown is called.
// The janitor stops when ctx is done.
func (s *Server) Start(ctx context.Context) error {
	go s.runJanitor(ctx)

	s.log.Info().Str("addr", s.httpServer.Addr).Msg("Starting HTTP server")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server, waiting for in-flight uploads.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// Router returns the configured router, for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// runJanitor removes staging files that outlived staging_ttl. Files normally
// go away when their request ends; this catches crashes and aborted writes.
func (s *Server) runJanitor(ctx context.Context) {
	ttl := s.cfg.Processing.StagingTTL.Std()
	interval := ttl / 4
	if interval < time.Second {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepStaging()
		}
	}
}

func (s *Server) sweepStaging() int {
	removed, err := utils.CleanOldFiles(s.files.StagingDir, s.cfg.Processing.StagingTTL.Std())
	if err != nil {
		s.log.Warn().Err(err).Str("dir", s.files.StagingDir).Msg("staging sweep failed")
	}
	if removed > 0 {
		s.log.Info().Int("removed", removed).Msg("removed stale staging files")
	}
	return removed
}
