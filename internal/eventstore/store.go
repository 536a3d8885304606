// Package eventstore records the history of publishing runs as events in
// SQLite and projects them into run summaries.
package eventstore

import (
	"context"
	"time"
)

// Store persists run events.
type Store interface {
	Append(ctx context.Context, e Event) error
	// ForRun returns the events of one run, oldest first.
	ForRun(ctx context.Context, runID string) ([]Event, error)
	// Between returns events recorded in [start, end], oldest first.
	Between(ctx context.Context, start, end time.Time) ([]Event, error)
	// Prune deletes the events of all but the keep most recently started
	// runs and reports how many events were removed.
	Prune(ctx context.Context, keep int) (int64, error)
	Close() error
}
