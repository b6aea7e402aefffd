// Package server wires the router, middleware, services and storage into
// one runnable HTTP server. All dependency construction happens here so
// main stays minimal and the pieces stay individually testable.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/listmirror/internal/auth"
	"github.com/sakif/listmirror/internal/config"
	"github.com/sakif/listmirror/internal/handler"
	"github.com/sakif/listmirror/internal/mailchimp"
	"github.com/sakif/listmirror/internal/middleware"
	sqliteRepo "github.com/sakif/listmirror/internal/repository/sqlite"
	"github.com/sakif/listmirror/internal/service"
)

// Server owns the router and the database connection. The connection is
// closed during graceful shutdown so the WAL is flushed before exit.
type Server struct {
	router *chi.Mux
	cfg    *config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New assembles the full dependency chain: storage, the provider client,
// the OAuth flow, the services and the handlers, then mounts the routes.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		cfg:    cfg,
		logger: logger,
		db:     db,
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	client := mailchimp.New(s.cfg.APIURLTemplate)
	provider := auth.NewMailchimpProvider(s.cfg)

	sessions := service.NewSessionService(provider, s.db, s.logger)
	syncer := service.NewSyncService(s.db, client, s.cfg, s.logger)
	populator := service.NewPopulateService(s.db, client, s.cfg, s.logger)
	webhooks := service.NewWebhookService(s.db, client, s.logger)

	authHandler := handler.NewAuthHandler(provider, sessions, s.logger)
	apiHandler := handler.NewAPIHandler(s.db, client, syncer, populator, s.logger)
	webhookHandler := handler.NewWebhookHandler(webhooks, s.logger)

	s.router.Get("/", authHandler.HandleIndex)
	s.router.Get(config.AuthCallbackPath, authHandler.HandleCallback)
	s.router.Get("/validate_session", authHandler.HandleValidate)

	s.router.Get("/lists", apiHandler.HandleLists)
	s.router.Get("/campaigns", apiHandler.HandleCampaigns)
	s.router.Get("/get_members/{listID}", apiHandler.HandleMembers)
	s.router.Post("/sync", apiHandler.HandleSync)
	s.router.Post("/populate_merge_fields/{campaignID}", apiHandler.HandlePopulate)

	s.router.Post(config.WebhookCallbackPath, webhookHandler.HandleEvent)
	// Mailchimp probes webhook URLs with a GET before accepting them.
	s.router.Get(config.WebhookCallbackPath, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// Start runs the server until SIGINT/SIGTERM, then drains in-flight
// requests for up to 30 seconds and closes the database.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.cfg.Port),
			slog.String("database", s.cfg.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
