// internal/syncer/scheduler.go
package syncer

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	custom_errors "devfolio/internal/errors"
)

// Start begins the continuous background synchronization of owners that
// opted into auto-sync. Runs until ctx is cancelled.
func (s *Syncer) Start(ctx context.Context, interval time.Duration, concurrency int) {
	s.logger.Info("Starting auto-sync scheduler", "interval", interval.String(), "concurrency", concurrency)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.runSyncCycle(ctx, concurrency) // Initial sync

	for {
		select {
		case <-ticker.C:
			s.runSyncCycle(ctx, concurrency)
		case <-ctx.Done():
			s.logger.Info("Auto-sync scheduler shutting down", "reason", ctx.Err())
			return
		}
	}
}

// runSyncCycle performs one synchronization pass over all auto-sync owners
// concurrently. Per-owner failures are logged and never abort the cycle.
func (s *Syncer) runSyncCycle(ctx context.Context, concurrency int) {
	s.logger.Info("Starting new auto-sync cycle")

	owners, err := s.db.ListAutoSyncOwners(ctx)
	if err != nil {
		s.logger.Error("Failed to list auto-sync owners", "error", err)
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, owner := range owners {
		owner := owner
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			result, err := s.SyncOwnerProjects(gctx, owner.ID)
			switch {
			case errors.Is(err, custom_errors.ErrNotConnected),
				errors.Is(err, custom_errors.ErrSyncInProgress):
				s.logger.Info("Skipping auto-sync for owner", "owner", owner.ID, "reason", err)
			case err != nil && !errors.Is(err, context.Canceled):
				s.logger.Error("Auto-sync failed for owner", "owner", owner.ID, "error", err)
			case err == nil:
				s.logger.Info("Auto-sync finished for owner",
					"owner", owner.ID, "synced", len(result.Projects), "skipped", len(result.Skipped))
			}
			return nil
		})
	}

	_ = g.Wait()
	s.logger.Info("Auto-sync cycle finished")
}
