// Package eventstore persists pipeline events so past runs can be inspected.
package eventstore

import (
	"context"
	"time"
)

// Store defines the interface for persisting and retrieving run events.
type Store interface {
	// Append adds a new event to the store.
	Append(ctx context.Context, runID, eventType string, payload []byte, metadata map[string]string) error

	// GetByRunID retrieves all events for a specific run in insertion order.
	GetByRunID(ctx context.Context, runID string) ([]Event, error)

	// ListRuns summarizes the most recent runs, newest first.
	ListRuns(ctx context.Context, limit int) ([]RunSummary, error)

	// PruneBefore deletes events recorded before cutoff and returns how many were removed.
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Close closes the store and releases resources.
	Close() error
}

// RunSummary is a per-run projection over stored events.
type RunSummary struct {
	RunID    string
	Started  time.Time
	Finished time.Time
	Events   int
	// Metadata of the terminal run_completed/run_failed event, if recorded.
	Outcome map[string]string
}
