package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/JonMunkholm/itp-portal/internal/metrics"
)

// Janitor periodically purges values untouched for longer than MaxAge.
type Janitor struct {
	Store    Store
	MaxAge   time.Duration
	Interval time.Duration
	Metrics  *metrics.Metrics // optional
	Now      func() time.Time // optional
}

// Run purges once immediately, then every Interval until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	slog.Info("session janitor started",
		"max_age", j.MaxAge.String(),
		"interval", j.Interval.String(),
	)

	j.runJob(ctx)

	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("session janitor stopped")
			return
		case <-ticker.C:
			j.runJob(ctx)
		}
	}
}

func (j *Janitor) runJob(ctx context.Context) {
	start := time.Now()
	n, err := j.RunOnce(ctx)
	if err != nil {
		slog.Error("session purge failed", "error", err)
		return
	}
	slog.Debug("session purge completed",
		"values_purged", n,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// RunOnce performs a single purge.
func (j *Janitor) RunOnce(ctx context.Context) (int64, error) {
	now := time.Now
	if j.Now != nil {
		now = j.Now
	}
	n, err := j.Store.Purge(ctx, now().Add(-j.MaxAge))
	if err != nil {
		return 0, err
	}
	if j.Metrics != nil && n > 0 {
		j.Metrics.SessionsPurged.Add(float64(n))
	}
	return n, nil
}
