package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/deploybuilder/internal/logfields"
)

// retentionInterval derives how often the sweep runs from the retention window.
func retentionInterval(retention time.Duration) time.Duration {
	interval := retention / 24
	switch {
	case interval < time.Minute:
		return time.Minute
	case interval > time.Hour:
		return time.Hour
	}
	return interval
}

// startRetention schedules the periodic sweep and returns its stop function.
// A non-positive retention disables the sweep.
func (s *Server) startRetention(ctx context.Context) (func(), error) {
	if s.cfg.Retention <= 0 {
		return func() {}, nil
	}
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	interval := retentionInterval(s.cfg.Retention)
	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() { _, _ = s.Prune(ctx, time.Now()) }),
		gocron.WithName("retention"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("failed to create retention job: %w", err)
	}
	slog.Info("Starting retention sweep", slog.Duration("retention", s.cfg.Retention), slog.Duration("interval", interval))
	sched.Start()
	return func() {
		if err := sched.Shutdown(); err != nil {
			slog.Warn("Failed to stop retention scheduler", logfields.Error(err))
		}
	}, nil
}

// Prune deletes stored events and job workspaces older than the retention
// window measured from now.
func (s *Server) Prune(ctx context.Context, now time.Time) (prunedEvents int64, prunedWorkspaces int) {
	cutoff := now.Add(-s.cfg.Retention)
	if s.store != nil {
		n, err := s.store.PruneBefore(ctx, cutoff)
		if err != nil {
			slog.Warn("Failed to prune event history", logfields.Error(err))
		}
		prunedEvents = n
	}
	n, err := s.workspaces.PruneOlderThan(cutoff)
	if err != nil {
		slog.Warn("Failed to prune workspaces", logfields.Error(err))
	}
	prunedWorkspaces = n
	if prunedEvents > 0 || prunedWorkspaces > 0 {
		slog.Info("Retention sweep finished", slog.Int64("events", prunedEvents), slog.Int("workspaces", prunedWorkspaces))
	}
	return prunedEvents, prunedWorkspaces
}
