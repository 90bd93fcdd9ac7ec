package main

import (
	"errors"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"tally/internal/amqp"
	"tally/internal/cache"
	"tally/internal/cli"
	"tally/internal/config"
	apphttp "tally/internal/http"
	"tally/internal/log"
	"tally/internal/metrics"
	"tally/internal/services"
	"tally/internal/storage"
)

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentApp, (*config.Config).Validate)
	cli.Exit(logger, "Server exited with error", run(cfg, logger))
	logger.Info("Server stopped gracefully")
}

func run(cfg *config.Config, logger *log.Logger) error {
	ctx, stop := cli.SignalContext()
	defer stop()

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		return err
	}
	defer repo.Close()

	m := metrics.New()
	summaryCache := cache.NewLRUCache[any](cfg.SummaryCacheSize, cfg.SummaryCacheTTL)
	summaries := services.NewSummaryService(repo, summaryCache, m)

	var exports services.ExportPublisher
	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPReminderQueue, cfg.AMQPExportQueue)
		if err != nil {
			// Sheet exports answer 503 until the broker is reachable on restart.
			logger.Warn("AMQP unavailable, summary exports disabled", log.FieldError, err)
		} else {
			exports = client
			logger.Info("AMQP publisher ready", "exchange", cfg.AMQPExchange)
		}
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	finance := services.NewFinanceService(repo, summaries, exports, m)
	defer finance.Close()

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Dependencies{
		Finance:            finance,
		Summaries:          summaries,
		Metrics:            m,
		Logger:             logger,
		Store:              repo,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})

	g, gctx := errgroup.WithContext(ctx)

	janitor := cache.NewJanitor(summaryCache)
	g.Go(func() error {
		janitor.Run(gctx, time.Minute)
		return nil
	})

	g.Go(func() error {
		logger.Info("Starting tally server", "port", cfg.Port, "db", cfg.SQLiteDBPath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received")

		shutdownCtx, cancel := cli.ShutdownContext()
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
