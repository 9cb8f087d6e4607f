package relay

import (
	"context"
	"time"

	"github.com/voxvid/voxvid/pkg/logger"
	"github.com/voxvid/voxvid/pkg/store"
)

// Sweeper purges pending jobs whose TTS webhook never arrived, so abandoned
// submissions do not accumulate without bound.
type Sweeper struct {
	store    store.JobStore
	ttl      time.Duration
	interval time.Duration
}

func NewSweeper(jobs store.JobStore, ttl, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{store: jobs, ttl: ttl, interval: interval}
}

// Run sweeps until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	n, err := s.store.PurgeOlderThan(ctx, time.Now().Add(-s.ttl))
	if err != nil {
		logger.ErrorCF("sweeper", "orphan purge failed", map[string]any{"error": err.Error()})
		return
	}
	if n > 0 {
		logger.InfoCF("sweeper", "purged orphaned jobs", map[string]any{"count": n})
	}
}
