// Command worker runs the jetmonitor background collection pipeline. It
// periodically scrapes configured feeds, searches social platforms for
// tracked competitors, classifies pending items, and prunes expired sessions.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/DNABoe/jetmonitor/internal/classifier"
	"github.com/DNABoe/jetmonitor/internal/config"
	"github.com/DNABoe/jetmonitor/internal/db"
	"github.com/DNABoe/jetmonitor/internal/fetch"
	"github.com/DNABoe/jetmonitor/internal/models"
	"github.com/DNABoe/jetmonitor/internal/notify"
	"github.com/DNABoe/jetmonitor/internal/pipeline"
	"github.com/DNABoe/jetmonitor/internal/storage"
)

func main() {
	// Structured JSON logging.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	slog.Info("worker: starting jetmonitor worker")

	// Load configuration.
	cfg := config.Load()

	// Create a root context that is cancelled on shutdown.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to the database.
	pool, err := db.Connect(ctx, cfg.DB)
	if err != nil {
		slog.Error("worker: database connection failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Create stores.
	sourceStore := models.NewSourceStore(pool)
	itemStore := models.NewItemStore(pool)
	socialStore := models.NewSocialPostStore(pool)
	baselineStore := models.NewBaselineStore(pool)
	settingsStore := models.NewSettingsStore(pool)
	sessionStore := models.NewSessionStore(pool)

	// External collaborators.
	classifierClient := classifier.NewClient(cfg.Classifier)
	notifier := notify.New(cfg.Redis, logger)

	archiveClient, err := storage.NewClient(ctx, cfg.S3)
	if err != nil {
		slog.Error("worker: storage client creation failed", "err", err)
		os.Exit(1)
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

	// Track in-flight jobs for graceful shutdown.
	var wg sync.WaitGroup

	// Set up cron scheduler (standard 5-field cron expressions).
	c := cron.New()

	// Feed scrape: every 4 hours.
	_, err = c.AddFunc("0 */4 * * *", func() {
		wg.Add(1)
		defer wg.Done()

		jobCtx, jobCancel := context.WithTimeout(ctx, time.Hour)
		defer jobCancel()

		slog.Info("cron: feed scrape triggered")
		if _, err := orchestrator.ScrapeFeeds(jobCtx); err != nil {
			slog.Error("cron: feed scrape failed", "err", err)
		}
	})
	if err != nil {
		slog.Error("worker: add feed scrape cron", "err", err)
		os.Exit(1)
	}

	// Social search: every 6 hours. Unlike feed scraping this shares the
	// collection preconditions, so the job is skipped until a completed
	// baseline and classifier credentials exist.
	_, err = c.AddFunc("15 */6 * * *", func() {
		wg.Add(1)
		defer wg.Done()

		jobCtx, jobCancel := context.WithTimeout(ctx, time.Hour)
		defer jobCancel()

		slog.Info("cron: social collection triggered")
		summary, err := orchestrator.CollectSocial(jobCtx)
		if err != nil {
			if errors.Is(err, pipeline.ErrNoBaseline) || errors.Is(err, pipeline.ErrClassifierNotConfigured) {
				slog.Info("cron: social collection skipped", "reason", err.Error())
			} else {
				slog.Error("cron: social collection failed", "err", err)
			}
			return
		}
		slog.Info("cron: social collection done",
			"found", summary.ItemsFound,
			"stored", summary.ItemsStored,
		)
	})
	if err != nil {
		slog.Error("worker: add social collection cron", "err", err)
		os.Exit(1)
	}

	// Pending classification: every hour, picks up items stored while the
	// classifier was unavailable.
	_, err = c.AddFunc("30 * * * *", func() {
		wg.Add(1)
		defer wg.Done()

		jobCtx, jobCancel := context.WithTimeout(ctx, 30*time.Minute)
		defer jobCancel()

		slog.Info("cron: pending classification triggered")
		processed, err := orchestrator.ProcessPending(jobCtx)
		if err != nil {
			slog.Error("cron: pending classification failed", "err", err)
			return
		}
		slog.Info("cron: pending classification done", "processed", processed)
	})
	if err != nil {
		slog.Error("worker: add pending classification cron", "err", err)
		os.Exit(1)
	}

	// Session cleanup: daily at 4am.
	_, err = c.AddFunc("0 4 * * *", func() {
		wg.Add(1)
		defer wg.Done()

		jobCtx, jobCancel := context.WithTimeout(ctx, 5*time.Minute)
		defer jobCancel()

		slog.Info("cron: session cleanup triggered")
		removed, err := sessionStore.DeleteExpired(jobCtx)
		if err != nil {
			slog.Error("cron: session cleanup failed", "err", err)
			return
		}
		slog.Info("cron: session cleanup done", "removed", removed)
	})
	if err != nil {
		slog.Error("worker: add session cleanup cron", "err", err)
		os.Exit(1)
	}

	// Start the cron scheduler.
	c.Start()
	slog.Info("worker: cron scheduler started",
		"jobs", len(c.Entries()),
	)

	// Run an initial scrape on startup so the first data does not wait 4
	// hours.
	wg.Add(1)
	go func() {
		defer wg.Done()

		// Small delay to let everything settle.
		select {
		case <-time.After(5 * time.Second):
		case <-ctx.Done():
			return
		}

		jobCtx, jobCancel := context.WithTimeout(ctx, time.Hour)
		defer jobCancel()

		slog.Info("worker: running initial feed scrape on startup")
		if _, err := orchestrator.ScrapeFeeds(jobCtx); err != nil {
			slog.Error("worker: initial feed scrape failed", "err", err)
		}
	}()

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	slog.Info("worker: received shutdown signal", "signal", sig.String())

	// Stop accepting new cron jobs.
	slog.Info("worker: stopping cron scheduler")
	cronCtx := c.Stop()

	// Cancel the root context to signal all in-flight jobs to stop.
	cancel()

	// Wait for the cron scheduler to finish its currently running jobs.
	select {
	case <-cronCtx.Done():
		slog.Info("worker: cron scheduler stopped")
	case <-time.After(30 * time.Second):
		slog.Warn("worker: cron scheduler stop timed out")
	}

	// Wait for all in-flight goroutines.
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("worker: all in-flight jobs complete")
	case <-time.After(60 * time.Second):
		slog.Warn("worker: timed out waiting for in-flight jobs")
	}

	// Close the database pool.
	pool.Close()
	slog.Info("worker: shutdown complete")
}
