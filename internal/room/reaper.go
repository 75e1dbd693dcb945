package room

import (
	"context"
	"log/slog"
	"time"

	"github.com/khunphaen/syncserver/internal/metrics"
)

// reapInterval is the fixed wake period; the Room Idle Reaper in the
// source ticks once a minute regardless of the configured threshold.
const reapInterval = 60 * time.Second

// Reaper periodically removes rooms that have been empty for longer than
// threshold. A threshold of zero disables reaping entirely; the reaper
// still runs but never finds a room eligible.
type Reaper struct {
	registry  *Registry
	threshold time.Duration
	logger    *slog.Logger
}

// NewReaper creates an idle reaper bound to registry.
func NewReaper(registry *Registry, threshold time.Duration, logger *slog.Logger) *Reaper {
	return &Reaper{registry: registry, threshold: threshold, logger: logger}
}

// Run blocks until ctx is cancelled, sweeping the registry every
// reapInterval.
func (r *Reaper) Run(ctx context.Context) {
	if r.threshold <= 0 {
		r.logger.Info("idle reaper disabled", "reason", "ROOM_IDLE_TIMEOUT_SECONDS=0")
	}

	ticker := time.NewTicker(reapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

func (r *Reaper) sweep() {
	if r.threshold <= 0 {
		return
	}

	now := time.Now()
	for _, rm := range r.registry.Snapshot() {
		if !rm.ReapIfIdle(r.threshold, now) {
			continue
		}
		r.registry.Remove(rm.Code)
		metrics.RoomsReapedTotal.Inc()
		r.logger.Info("room removed after idle timeout", "room_code", rm.Code)
	}
}
