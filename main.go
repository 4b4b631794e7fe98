package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/cryarchy/fiverr-tools/apperrors"
	"github.com/cryarchy/fiverr-tools/browser"
	"github.com/cryarchy/fiverr-tools/config"
	"github.com/cryarchy/fiverr-tools/metrics"
	"github.com/cryarchy/fiverr-tools/scraper/fiverr"
	"github.com/cryarchy/fiverr-tools/storage"
	"github.com/cryarchy/fiverr-tools/utils"
)

func main() {
	cfg := config.Load()
	logger := utils.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("Scraper stopped: %v", err)
		logger.Sync()
		os.Exit(1)
	}
	logger.Info("=== Fiverr scraper stopped ===")
}

func run(cfg *config.Config, logger *utils.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("=== Fiverr scraper starting ===")
	logger.Info("Config: store: %s | min ratings: %d | review prefix: %d | rate: %dms",
		cfg.StoreBackend, cfg.MinRatings, cfg.ReviewPrefix, cfg.RateLimitMs)

	retry := &utils.RetryConfig{
		MaxAttempts: cfg.MaxRetries,
		BaseDelay:   time.Second,
		Logger:      logger,
		Retryable:   func(err error) bool { return !apperrors.IsFatal(err) },
	}

	store, err := storage.Open(ctx, cfg.StoreBackend, cfg.DSN(), retry, logger.Named("storage"))
	if err != nil {
		return err
	}
	defer store.Close()

	session, err := browser.Connect(ctx, cfg.BrowserWSURL, browser.SessionOptions{
		TabMatch:          cfg.TabMatch,
		HomeURL:           cfg.BaseURL,
		CallTimeout:       cfg.ElementTimeout,
		WaitTimeout:       cfg.ElementTimeout,
		NavigationTimeout: cfg.PageLoadTimeout,
	}, logger)
	if err != nil {
		return err
	}
	defer session.Close()

	heartbeat := utils.NewHeartbeat(cfg.HeartbeatInterval, session.Ping, logger.Named("heartbeat"))
	heartbeat.Start(ctx)
	defer heartbeat.Stop()

	m := metrics.New()
	if cfg.MetricsAddr != "" {
		srv := metrics.NewServer(cfg.MetricsAddr, m, heartbeat.Healthy, logger.Named("metrics"))
		srv.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Metrics server shutdown: %v", err)
			}
		}()
	}

	opts := []fiverr.Option{fiverr.WithMetrics(m), fiverr.WithReconnector(session)}
	if cfg.JournalPath != "" {
		journal, err := storage.NewCSVJournal(cfg.JournalPath)
		if err != nil {
			return err
		}
		defer journal.Close()
		opts = append(opts, fiverr.WithJournal(journal))
		logger.Info("Journal: %s", cfg.JournalPath)
	}
	if cfg.DownloadDir != "" {
		media, err := storage.NewMediaDownloader(cfg.DownloadDir, resty.New(), retry, logger.Named("media"))
		if err != nil {
			return err
		}
		opts = append(opts, fiverr.WithMedia(media))
		logger.Info("Media downloads: %s", cfg.DownloadDir)
	}

	engine, err := fiverr.New(cfg, session.Tab(), store, logger.Named("engine"), opts...)
	if err != nil {
		return err
	}
	if err := engine.Scrape(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
