package eviction

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler triggers clearing cycles on a cron schedule.
//
// Schedules accept standard cron syntax and descriptors such as
// "@every 1m" or "@hourly". An empty schedule disables the scheduler.
type Scheduler struct {
	manager  *Manager
	schedule string
	cron     *cron.Cron
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	stopped chan struct{}
}

// NewScheduler creates a Scheduler for manager.
func NewScheduler(manager *Manager, schedule string, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		manager:  manager,
		schedule: schedule,
		cron:     cron.New(),
		logger:   logger.With("component", "eviction.scheduler"),
	}
}

// Start registers the clearing job and starts the cron loop. The scheduler
// stops when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" {
		s.logger.Info("Clear schedule not configured, skipping scheduler")
		return nil
	}
	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid clear schedule %q: %w", s.schedule, err)
	}

	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.schedule, func() {
		s.RunNow(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule clearing: %w", err)
	}

	s.cron.Start()
	s.running = true
	stopped := make(chan struct{})
	s.stopped = stopped
	s.logger.Info("Clear scheduler started", "schedule", s.schedule)

	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-stopped:
		}
	}()

	return nil
}

// RunNow triggers a cycle immediately. It reports false when a cycle was
// already running and the trigger was dropped.
func (s *Scheduler) RunNow(ctx context.Context) bool {
	started := s.manager.ClearIfNeeded(ctx, func(pagesCleared int, result ClearResult) {
		switch result {
		case Success, Unnecessary:
			s.logger.Debug("Scheduled clear completed", "result", result.String(), "pages_cleared", pagesCleared)
		default:
			s.logger.Warn("Scheduled clear failed", "result", result.String(), "pages_cleared", pagesCleared)
		}
	})
	if !started {
		s.logger.Debug("Clear skipped, previous cycle still running")
	}
	return started
}

// Stop stops the cron loop and waits for a running cycle to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	close(s.stopped)
	s.running = false
	s.logger.Info("Clear scheduler stopped")
}

// IsRunning reports whether the cron loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled trigger, or nil if none is scheduled.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
