package scheduler

import (
	"context"
	"log/slog"
	"time"

	"readlater/internal/domain"
)

// Refresher re-extracts articles whose content has gone stale.
type Refresher interface {
	RefreshStale(ctx context.Context) (*domain.RefreshStats, error)
}

// Scheduler runs one refresh pass immediately and then one per interval
// until the context is cancelled.
type Scheduler struct {
	refresher Refresher
	interval  time.Duration
	logger    *slog.Logger
}

func New(refresher Refresher, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		refresher: refresher,
		interval:  interval,
		logger:    logger.With("component", "scheduler"),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval)

	s.runPass(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runPass(ctx)
		}
	}
}

func (s *Scheduler) runPass(ctx context.Context) {
	passCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	if _, err := s.refresher.RefreshStale(passCtx); err != nil {
		s.logger.Error("refresh pass failed", "error", err)
	}
}
