package store

import (
	"context"
	"log/slog"
	"time"
)

// DefaultSweepInterval is how often the sweeper runs when unset.
const DefaultSweepInterval = 5 * time.Minute

// SweepCallback observes each sweep: the ids that were removed and how
// many sessions remain.
type SweepCallback func(expired []string, remaining int)

// StartSweeper runs a background goroutine that periodically removes
// expired sessions until ctx is cancelled.
func StartSweeper(ctx context.Context, st Store, interval time.Duration, onSweep SweepCallback) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Session sweeper started", "interval", interval)

		for {
			select {
			case <-ticker.C:
				Sweep(ctx, st, onSweep)
			case <-ctx.Done():
				slog.Info("Session sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

// Sweep runs one cleanup pass.
func Sweep(ctx context.Context, st Store, onSweep SweepCallback) {
	expired, err := st.DeleteExpired(ctx)
	if err != nil {
		slog.Error("Session sweeper failed to delete expired sessions", "error", err)
		return
	}
	if len(expired) > 0 {
		slog.Info("Session sweeper removed expired sessions", "count", len(expired))
	}
	if onSweep == nil {
		return
	}
	remaining, err := st.Count(ctx)
	if err != nil {
		slog.Warn("Session sweeper failed to count sessions", "error", err)
		remaining = -1
	}
	onSweep(expired, remaining)
}
