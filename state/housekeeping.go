package state

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// RunHousekeeping expires stale events and prunes old timing buckets on
// every tick until ctx is cancelled. Mirrors the periodic sweep the
// detection core's Rust prototype ran on a fixed sleep, rebuilt here as a
// ticker-driven goroutine in the style this codebase uses for its other
// background loops.
func (s *Store) RunHousekeeping(ctx context.Context, tick time.Duration, log zerolog.Logger) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			before := s.NAccounts()
			s.ExpireOld(now)
			s.PruneTimingBuckets(now)
			log.Debug().
				Int64("accounts_before", before).
				Int64("accounts_after", s.NAccounts()).
				Int("clusters", s.NClusters()).
				Msg("housekeeping sweep complete")
		}
	}
}
