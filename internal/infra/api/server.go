// File: internal/infra/api/server.go
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"ai-generation-queue/internal/usecase"
)

// Server exposes the job queue over HTTP: submission, status, retry,
// cancel, account endpoints and a per-job websocket status stream.
type Server struct {
	admission usecase.AdmissionController
	jobs      usecase.JobService
	ledger    usecase.TokenLedger
	auth      *AuthManager

	artifactsDir string
	httpSrv      *http.Server
	log          *zerolog.Logger
}

func NewServer(
	port int,
	admission usecase.AdmissionController,
	jobs usecase.JobService,
	ledger usecase.TokenLedger,
	auth *AuthManager,
	artifactsDir string,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "APIServer").Logger()
	s := &Server{
		admission:    admission,
		jobs:         jobs,
		ledger:       ledger,
		auth:         auth,
		artifactsDir: artifactsDir,
		log:          &l,
	}
	s.httpSrv = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	if s.artifactsDir != "" {
		r.Handle("/artifacts/*", http.StripPrefix("/artifacts/",
			http.FileServer(http.Dir(s.artifactsDir))))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.auth.Middleware)

		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", s.handleSubmit)
			r.Get("/{id}", s.handleGetJob)
			r.Post("/{id}/retry", s.handleRetry)
			r.Post("/{id}/cancel", s.handleCancel)
			r.Get("/{id}/stream", s.handleStream)
		})

		r.Route("/account", func(r chi.Router) {
			r.Get("/balance", s.handleBalance)
			r.Get("/transactions", s.handleTransactions)
		})
	})

	return r
}

// Handler exposes the routed handler for tests.
func (s *Server) Handler() http.Handler { return s.httpSrv.Handler }

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpSrv.Addr).Msg("http server listening")
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}
