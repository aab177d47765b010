// Command api starts the jetmonitor HTTP API server.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/DNABoe/jetmonitor/internal/classifier"
	"github.com/DNABoe/jetmonitor/internal/config"
	"github.com/DNABoe/jetmonitor/internal/db"
	"github.com/DNABoe/jetmonitor/internal/fetch"
	"github.com/DNABoe/jetmonitor/internal/handlers"
	"github.com/DNABoe/jetmonitor/internal/middleware"
	"github.com/DNABoe/jetmonitor/internal/models"
	"github.com/DNABoe/jetmonitor/internal/notify"
	"github.com/DNABoe/jetmonitor/internal/pipeline"
	"github.com/DNABoe/jetmonitor/internal/registry"
	"github.com/DNABoe/jetmonitor/internal/storage"
)

func main() {
	// Structured logging.
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Database connection.
	pool, err := db.Connect(ctx, cfg.DB)
	if err != nil {
		slog.Error("failed to connect to database", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Data stores.
	sourceStore := models.NewSourceStore(pool)
	itemStore := models.NewItemStore(pool)
	socialStore := models.NewSocialPostStore(pool)
	baselineStore := models.NewBaselineStore(pool)
	settingsStore := models.NewSettingsStore(pool)
	userSettingsStore := models.NewUserSettingsStore(pool)
	userStore := models.NewUserStore(pool)
	sessionStore := models.NewSessionStore(pool)
	roleStore := models.NewRoleStore(pool)

	// External collaborators.
	classifierClient := classifier.NewClient(cfg.Classifier)
	notifier := notify.New(cfg.Redis, logger)

	archiveClient, archiveErr := storage.NewClient(ctx, cfg.S3)
	if archiveErr != nil {
		slog.Warn("snapshot archive unavailable", "err", archiveErr)
		archiveClient = nil
	}

	orchestrator := pipeline.New(
		sourceStore,
		itemStore,
		socialStore,
		baselineStore,
		settingsStore,
		fetch.NewFeedClient(),
		fetch.NewSearchClient(cfg.Search),
		classifierClient,
		notifier,
		logger,
		pipeline.Options{
			Pages:   fetch.NewPageScraper(),
			Archive: archiveClient,
		},
	)

	// Handlers.
	authHandler := &handlers.AuthHandler{
		Users:    userStore,
		Sessions: sessionStore,
		Roles:    roleStore,
	}
	collectHandler := &handlers.CollectHandler{
		Pipeline: orchestrator,
	}
	discoveryHandler := &handlers.DiscoveryHandler{
		Discovery:    registry.NewDiscovery(classifierClient, logger),
		UserSettings: userSettingsStore,
	}
	sourcesHandler := &handlers.SourcesHandler{
		Sources: sourceStore,
	}
	baselineHandler := &handlers.BaselineHandler{
		Baselines: baselineStore,
	}
	itemsHandler := &handlers.ItemsHandler{
		Items:     itemStore,
		Baselines: baselineStore,
	}
	settingsHandler := &handlers.SettingsHandler{
		Settings:     settingsStore,
		UserSettings: userSettingsStore,
	}

	// Router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(5 * time.Minute))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Public routes.
	r.Get("/api/health", handlers.Health)
	r.Post("/api/login", authHandler.Login)

	// Authenticated routes.
	r.Group(func(r chi.Router) {
		r.Use(middleware.SessionAuth(sessionStore, userStore))

		r.Post("/api/logout", authHandler.Logout)
		r.Get("/api/me", authHandler.Me)

		// Collection triggers.
		r.Post("/api/collect", collectHandler.Collect)
		r.Post("/api/scrape-feeds", collectHandler.ScrapeFeeds)
		r.Post("/api/process-pending", collectHandler.ProcessPending)

		// Items (read-only observer surface).
		r.Get("/api/items", itemsHandler.List)

		// Baseline.
		r.Get("/api/baseline", baselineHandler.Current)
		r.Post("/api/baseline", baselineHandler.Set)

		// Sources (read).
		r.Get("/api/sources", sourcesHandler.List)

		// Settings.
		r.Get("/api/settings", settingsHandler.GetGlobal)
		r.Get("/api/settings/me", settingsHandler.GetUser)
		r.Put("/api/settings/me", settingsHandler.UpdateUser)

		// Admin operations.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(roleStore, models.RoleAdmin))

			r.Post("/api/clean-recollect", collectHandler.CleanAndRecollect)
			r.Post("/api/discover-outlets", discoveryHandler.DiscoverOutlets)

			r.Post("/api/sources", sourcesHandler.Create)
			r.Put("/api/sources/{id}", sourcesHandler.Update)
			r.Patch("/api/sources/{id}/enabled", sourcesHandler.SetEnabled)

			r.Put("/api/settings", settingsHandler.UpdateGlobal)
		})
	})

	// Start server.
	addr := cfg.Server.Addr()
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	<-done
	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
	}

	slog.Info("server stopped")
}
