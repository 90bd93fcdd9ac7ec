// Package cli holds the start-up steps shared by cmd/tally and
// cmd/tally-worker.
package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"tally/internal/config"
	"tally/internal/log"
)

// ShutdownTimeout bounds how long a process waits for in-flight work.
const ShutdownTimeout = 30 * time.Second

// Bootstrap loads the .env file and the configuration, installs the logger
// for component and runs validate. It exits the process on failure.
func Bootstrap(component string, validate func(*config.Config) error) (*config.Config, *log.Logger) {
	// Errors are ignored: .env is only used for local development.
	_ = godotenv.Load()

	cfg := config.Load()
	logger, err := log.Setup(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		slog.Error("Invalid logging configuration", log.FieldError, err)
		os.Exit(1)
	}
	logger = logger.WithComponent(component)

	if validate != nil {
		if err := validate(cfg); err != nil {
			logger.Error("Configuration validation failed", log.FieldError, err)
			os.Exit(1)
		}
	}
	return cfg, logger
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// ShutdownContext returns a fresh context bounded by ShutdownTimeout, for
// cleanup that must outlive the cancelled run context.
func ShutdownContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), ShutdownTimeout)
}

// Exit logs err and terminates when err is non-nil.
func Exit(logger *log.Logger, msg string, err error) {
	if err == nil {
		return
	}
	logger.Error(msg, log.FieldError, err)
	os.Exit(1)
}
