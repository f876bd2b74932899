// Package api provides HTTP handlers and the main API server logic for LeadPipe.
//
// It exposes RESTful endpoints for sessions, conversation turns, PRD
// documents, welcome templates, and recommendations. The API integrates
// with the flow, prd, and store modules.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/BrightDesk/LeadPipe/internal/flow"
	"github.com/BrightDesk/LeadPipe/internal/prd"
	"github.com/BrightDesk/LeadPipe/internal/store"
)

// Server timeout constants
const (
	// DefaultAddr is the address the API listens on when none is configured.
	DefaultAddr = ":8080"
	// DefaultReadTimeout limits how long reading a request may take.
	DefaultReadTimeout = 30 * time.Second
	// DefaultWriteTimeout limits how long writing a response may take.
	DefaultWriteTimeout = 60 * time.Second
	// DefaultIdleTimeout closes idle keep-alive connections.
	DefaultIdleTimeout = 120 * time.Second
	// DefaultShutdownTimeout bounds graceful shutdown on exit.
	DefaultShutdownTimeout = 10 * time.Second
)

// Server wires the session manager, PRD generator, and store into the
// HTTP surface.
type Server struct {
	manager   *flow.Manager
	generator *prd.Generator
	st        store.Store
}

// NewServer creates an API server over the given collaborators.
func NewServer(manager *flow.Manager, generator *prd.Generator, st store.Store) *Server {
	return &Server{manager: manager, generator: generator, st: st}
}

// Handler builds the router for the full API surface.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.createSessionHandler)
		r.Get("/", s.listSessionsHandler)
		r.Post("/resume", s.resumeByBodyHandler)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", s.getSessionHandler)
			r.Post("/messages", s.turnHandler)
			r.Post("/resume", s.resumeHandler)
			r.Get("/recommendations", s.recommendationsHandler)
			r.Get("/prd", s.sessionPRDLineageHandler)
		})
	})

	r.Route("/prd", func(r chi.Router) {
		r.Post("/generate", s.generatePRDHandler)
		r.Route("/{prdID}", func(r chi.Router) {
			r.Post("/regenerate", s.regeneratePRDHandler)
			r.Get("/preview", s.previewPRDHandler)
			r.Get("/download", s.downloadPRDHandler)
		})
	})

	r.Route("/templates", func(r chi.Router) {
		r.Post("/", s.createTemplateHandler)
		r.Get("/", s.listTemplatesHandler)
		r.Put("/{templateID}", s.updateTemplateHandler)
		r.Post("/{templateID}/default", s.setDefaultTemplateHandler)
	})

	return r
}

// Run starts the HTTP server on addr and blocks until ctx is canceled or
// the listener fails, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
		IdleTimeout:  DefaultIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: API listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Server.Run: shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server.Run: forced shutdown", "error", err)
		return err
	}
	slog.Info("Server.Run: server stopped")
	return nil
}
