package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

type DueBillProcessor interface {
	ProcessDueBills(ctx context.Context, now time.Time) (int, error)
}

// Scheduler runs the due-bill scan immediately on start and then on every
// tick until stopped.
type Scheduler struct {
	processor DueBillProcessor
	interval  time.Duration
	now       func() time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewScheduler(processor DueBillProcessor, interval time.Duration) *Scheduler {
	return &Scheduler{processor: processor, interval: interval, now: time.Now}
}

// Start begins the scan loop. Returns an error if already running.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("reminder scheduler is already running")
	}
	if s.interval <= 0 {
		return errors.New("reminder interval must be positive")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	go s.runLoop(ctx)

	slog.InfoContext(ctx, "Reminder scheduler started", "interval", s.interval)
	return nil
}

// Stop signals the loop and waits for the current scan to finish.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Reminder scheduler stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Reminder scheduler stop timed out")
		return ctx.Err()
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	return nil
}

func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) runLoop(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.scan(ctx)
	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.scan(ctx)
		}
	}
}

func (s *Scheduler) scan(ctx context.Context) {
	n, err := s.processor.ProcessDueBills(ctx, s.now())
	if err != nil {
		slog.ErrorContext(ctx, "Reminder scan failed", "error", err)
		return
	}
	if n > 0 {
		slog.InfoContext(ctx, "Reminder scan completed", "published", n)
	}
}
