// Package server exposes the coaching orchestrator and the reference-data
// store over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/growcoach/coachd/internal/coach"
	"github.com/growcoach/coachd/internal/config"
	"github.com/growcoach/coachd/internal/httputil"
	"github.com/growcoach/coachd/internal/logging"
	"github.com/growcoach/coachd/internal/middleware"
	"github.com/growcoach/coachd/internal/store"
)

// Server wires the HTTP transport to the orchestrator and the store.
type Server struct {
	cfg   *config.Config
	store *store.Store
	coach *coach.Coach
}

// New creates a server.
func New(cfg *config.Config, st *store.Store, c *coach.Coach) *Server {
	return &Server{cfg: cfg, store: st, coach: c}
}

// Router builds the chi router with all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		httputil.OkJSON(w, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", s.handleLogin)

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.JWT(s.cfg.JWTSecret))

			r.Post("/chat", s.handleChat)
			r.Get("/chats", s.handleListChats)
			r.Get("/chats/{chat_id}", s.handleGetChat)
			r.Delete("/chats/{chat_id}", s.handleDeleteChat)

			r.Get("/goal", s.handleGetGoal)
			r.Post("/goal", s.handleCreateGoal)
			r.Get("/performance", s.handleListPerformance)
			r.Post("/performance", s.handleCreatePerformance)
			r.Get("/calls", s.handleListCalls)
			r.Post("/calls", s.handleCreateCall)

			r.Get("/categories", s.handleListCategories)
			r.Put("/categories", s.handleUpsertCategory)
			r.Get("/categories/{category}/levels", s.handleListLevels)
			r.Put("/categories/{category}/levels", s.handleUpsertLevel)

			r.Get("/prompts/{stage}", s.handleGetPrompt)
			r.Put("/prompts/{stage}", s.handleSetPrompt)
		})
	})

	return r
}

// Run serves HTTP until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Infof("[Server] Listening on %s", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
