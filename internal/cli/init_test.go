package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tally/internal/config"
	"tally/internal/log"
)

func TestBootstrap(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")

	var validated *config.Config
	cfg, logger := Bootstrap(log.ComponentWorker, func(c *config.Config) error {
		validated = c
		return nil
	})

	require.NotNil(t, logger)
	assert.Equal(t, "9090", cfg.Port)
	assert.Same(t, cfg, validated)
	assert.Equal(t, log.ComponentWorker, logger.Component())
}

func TestShutdownContext(t *testing.T) {
	ctx, cancel := ShutdownContext()
	defer cancel()

	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(ShutdownTimeout), deadline, time.Second)
}

func TestExitIgnoresNil(t *testing.T) {
	logger := log.New(log.DefaultConfig())
	assert.NotPanics(t, func() { Exit(logger, "unused", nil) })
}
