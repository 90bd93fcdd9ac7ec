package main

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"tally/internal/amqp"
	"tally/internal/cache"
	"tally/internal/cli"
	"tally/internal/config"
	"tally/internal/log"
	"tally/internal/metrics"
	"tally/internal/notify"
	"tally/internal/services"
	"tally/internal/sheets"
	"tally/internal/storage"
	"tally/internal/worker"
)

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentWorker, (*config.Config).ValidateWorker)
	cli.Exit(logger, "Worker exited with error", run(cfg, logger))
	logger.Info("Worker shutdown complete")
}

func run(cfg *config.Config, logger *log.Logger) error {
	ctx, stop := cli.SignalContext()
	defer stop()

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		return err
	}
	defer repo.Close()

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPReminderQueue, cfg.AMQPExportQueue)
	if err != nil {
		return err
	}
	defer client.Close()

	m := metrics.New()

	// Reminders are keyed per day, so two days of memory covers restarts
	// around midnight.
	sent := cache.NewLRUCache[struct{}](10000, 48*time.Hour)
	processor := services.NewReminderProcessor(repo, client, sent, m)
	scheduler := worker.NewScheduler(processor, cfg.ReminderInterval)

	mailer := notify.NewMailer(notify.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	})
	if !mailer.Enabled() {
		logger.Info("SMTP disabled - reminders are acknowledged without mail")
	}
	reminders := worker.NewReminderWorker(repo, mailer, m)

	var exports *worker.ExportWorker
	if cfg.SheetsEnabled() {
		exporter, err := sheets.New(ctx, sheets.Options{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSummarySheetName,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
		})
		if err != nil {
			return err
		}
		exports = worker.NewStoreExportWorker(repo, exporter, m)
	} else {
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	if err := scheduler.Start(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	janitor := cache.NewJanitor(sent)
	g.Go(func() error {
		janitor.Run(gctx, 5*time.Minute)
		return nil
	})

	g.Go(func() error {
		return ignoreCanceled(client.ConsumeBillReminders(gctx, reminders.HandleBillReminder))
	})

	if exports != nil {
		g.Go(func() error {
			return ignoreCanceled(client.ConsumeSummaryExports(gctx, exports.HandleSummaryExport))
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received")

		shutdownCtx, cancel := cli.ShutdownContext()
		defer cancel()
		return scheduler.Stop(shutdownCtx)
	})

	logger.Info("Starting tally-worker",
		"reminder_interval", cfg.ReminderInterval,
		"reminder_queue", cfg.AMQPReminderQueue,
		"export_queue", cfg.AMQPExportQueue)
	return g.Wait()
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
