// Package server wires handlers, middleware and routes into one HTTP server.
//
// This is the composition root for the HTTP side: main opens the store and
// builds the services, and New turns them into a router. Nothing below this
// package knows which storage backend is active.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/reportnavi/internal/auth"
	"github.com/sakif/reportnavi/internal/handler"
	"github.com/sakif/reportnavi/internal/ledger"
	"github.com/sakif/reportnavi/internal/metrics"
	"github.com/sakif/reportnavi/internal/middleware"
	"github.com/sakif/reportnavi/internal/repository"
	"github.com/sakif/reportnavi/internal/service"
)

const shutdownTimeout = 30 * time.Second

type Config struct {
	Port int
}

// Deps are the long-lived collaborators the routes need. The server takes
// ownership of Store and closes it on shutdown.
type Deps struct {
	Store    repository.Store
	Tokens   *auth.TokenService
	Accounts *service.AccountService
	Reports  *service.ReportService
	Stats    *service.StatsService
	Ledger   *ledger.Ledger
	Metrics  *metrics.Metrics
}

type Server struct {
	router chi.Router
	config Config
	logger *slog.Logger
	store  repository.Store
}

func New(cfg Config, deps Deps, logger *slog.Logger) *Server {
	return &Server{
		router: NewRouter(deps, logger),
		config: cfg,
		logger: logger,
		store:  deps.Store,
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// NewRouter builds the full route table.
//
//	GET    /api/health              backend mode
//	POST   /api/auth/register       register
//	POST   /api/auth/login          log in
//	POST   /api/auth/logout         clear cookie
//	GET    /api/users/leaderboard   users by points
//	GET    /api/reports             all reports
//	GET    /api/reports/{id}        one report
//	GET    /api/me                  (auth) current user
//	PUT    /api/me/avatar           (auth) profile picture
//	GET    /api/me/activities       (auth) activity ledger
//	GET    /api/reports/mine        (auth) own reports
//	GET    /api/reports/stats       (auth) dashboard counts
//	POST   /api/reports             (auth) submit
//	POST   /api/reports/{id}/status (auth) transition
//	DELETE /api/reports/{id}        (auth) remove
//	GET    /metrics                 prometheus exposition
func NewRouter(deps Deps, logger *slog.Logger) chi.Router {
	accountHandler := handler.NewAccountHandler(deps.Accounts, deps.Tokens, logger)
	reportHandler := handler.NewReportHandler(deps.Reports, deps.Stats, logger)
	activityHandler := handler.NewActivityHandler(deps.Ledger)
	healthHandler := handler.NewHealthHandler(deps.Store)

	r := chi.NewRouter()

	// Order matters: the request ID must exist before the logger reads it.
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics(deps.Metrics))

	r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())

	requireAuth := auth.RequireAuth(deps.Tokens)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", healthHandler.HandleHealth)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", accountHandler.HandleRegister)
			r.Post("/login", accountHandler.HandleLogin)
			r.Post("/logout", accountHandler.HandleLogout)
		})

		r.Get("/users/leaderboard", accountHandler.HandleLeaderboard)

		r.Route("/me", func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/", accountHandler.HandleMe)
			r.Put("/avatar", accountHandler.HandleUpdateAvatar)
			r.Get("/activities", activityHandler.HandleMine)
		})

		r.Route("/reports", func(r chi.Router) {
			r.Get("/", reportHandler.HandleList)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Get("/mine", reportHandler.HandleListMine)
				r.Get("/stats", reportHandler.HandleStats)
				r.Post("/", reportHandler.HandleSubmit)
				r.Post("/{id}/status", reportHandler.HandleTransition)
				r.Delete("/{id}", reportHandler.HandleDelete)
			})

			r.Get("/{id}", reportHandler.HandleGet)
		})
	})

	return r
}

// Start serves until SIGINT or SIGTERM, then drains in-flight requests and
// closes the store.
func (s *Server) Start() error {
	defer func() {
		if err := s.store.Close(); err != nil {
			s.logger.Error("closing store", slog.String("error", err.Error()))
		}
	}()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		backend := "local"
		if s.store.IsRemote() {
			backend = "remote"
		}
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("backend", backend),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
