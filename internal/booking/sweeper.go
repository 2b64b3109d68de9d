package booking

import (
	"context"
	"log"
	"time"
)

// sweepBatchSize bounds how many due reservations one sweep pass loads
// at a time; the pass loops until the backlog is drained.
const sweepBatchSize = 500

// SweepExpired scans for RESERVED reservations whose deadline has
// passed at the given instant and transitions each to EXPIRED,
// releasing its seat locks.  It is idempotent: a reservation that left
// RESERVED between the scan and the transition (e.g. paid a moment
// earlier) is skipped as a no-op, not an error.  Per-row failures are
// logged and do not block the rest of the batch.  Returns the number
// of reservations transitioned.
//
// Sweeping is a system operation with no caller identity; it never
// touches snapshots.
func (s *Service) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	now = now.UTC()
	swept := 0
	for {
		ids, err := s.store.DueForExpiry(ctx, now, sweepBatchSize)
		if err != nil {
			return swept, err
		}
		if len(ids) == 0 {
			return swept, nil
		}
		progressed := false
		for _, id := range ids {
			ok, err := s.store.Expire(ctx, id, now)
			if err != nil {
				log.Printf("sweeper: expire reservation %d failed: %v", id, err)
				continue
			}
			if ok {
				swept++
				progressed = true
			}
		}
		// A full batch with zero progress means every row failed or
		// was raced away; bail out instead of spinning on it.
		if !progressed {
			return swept, nil
		}
		if len(ids) < sweepBatchSize {
			return swept, nil
		}
	}
}
