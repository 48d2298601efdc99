package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/captionflow/captionflow/internal/archive"
	"github.com/captionflow/captionflow/internal/config"
	"github.com/captionflow/captionflow/internal/database"
	"github.com/captionflow/captionflow/internal/logging"
	"github.com/captionflow/captionflow/internal/queue"
	"github.com/captionflow/captionflow/internal/signals"
	"github.com/captionflow/captionflow/internal/webhook"
)

// The worker drains the subtitle event queue. It mirrors published tips to
// archive storage and keeps retrying failed webhook deliveries, so the API
// process never blocks on either.
func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	repo := database.NewRepository(db)

	var store *archive.Store
	if cfg.Archive.Endpoint != "" {
		store, err = archive.New(cfg.Archive)
		if err != nil {
			logger.Fatalf("Failed to initialize archive storage: %v", err)
		}
	}

	q, err := queue.New(cfg.Queue)
	if err != nil {
		logger.Fatalf("Failed to connect to queue: %v", err)
	}
	defer q.Close()

	if err := q.SetupDeadLetterQueue(); err != nil {
		logger.Fatalf("Failed to set up dead letter queue: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutting down worker gracefully")
		cancel()
	}()

	// Failed deliveries persist with a next-retry timestamp; this loop
	// picks them back up.
	webhooks := webhook.NewService(repo)
	go webhooks.RetryWorker(ctx)

	handler := func(event *queue.SignalEvent) error {
		return handleSignalEvent(ctx, event, repo, store, logger)
	}

	logger.Info("Worker started, consuming subtitle events")
	if err := q.ConsumeSignals(ctx, handler); err != nil {
		logger.Fatalf("Failed to consume subtitle events: %v", err)
	}

	<-ctx.Done()
	logger.Info("Worker stopped")
}

// handleSignalEvent mirrors the public tip to archive storage whenever it
// changes. Other signals are consumed for the ack only.
func handleSignalEvent(ctx context.Context, event *queue.SignalEvent, repo *database.Repository, store *archive.Store, logger *logging.Logger) error {
	l := logger.WithVideoID(event.VideoID).WithLanguage(event.LanguageCode)

	switch event.Signal {
	case signals.SignalSubtitlesChanged:
		if event.VersionID == "" {
			// Public tip removed; nothing to mirror.
			l.Info("Public subtitles removed")
			return nil
		}
		if store == nil {
			return nil
		}

		language, err := repo.GetLanguageByID(ctx, event.LanguageID)
		if err != nil {
			return fmt.Errorf("failed to load language %s: %w", event.LanguageID, err)
		}
		version, err := repo.GetVersionByID(ctx, event.VersionID)
		if err != nil {
			return fmt.Errorf("failed to load version %s: %w", event.VersionID, err)
		}

		key, err := store.ExportVersion(ctx, language, version)
		if err != nil {
			return fmt.Errorf("failed to mirror version %d: %w", version.VersionNumber, err)
		}
		l.WithVersionNumber(version.VersionNumber).WithField("key", key).Info("Mirrored public tip to archive")
		return nil

	case signals.SignalPublicTipChanged:
		l.WithVersionNumber(event.VersionNumber).Info("Public tip changed")
		return nil

	case signals.SignalLanguageDeleted:
		l.Info("Language deleted")
		return nil

	default:
		l.WithField("signal", event.Signal).Warn("Unknown signal, dropping")
		return nil
	}
}
