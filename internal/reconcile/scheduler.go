package reconcile

import (
	"context"
	"errors"
	"time"
)

// StartScheduler runs a sync every interval until ctx is cancelled. A tick
// that arrives while another run is in progress is skipped.
func (s *Service) StartScheduler(ctx context.Context, interval time.Duration) {
	s.logger.Info("sync scheduler started", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sync scheduler stopping")
			return
		case <-ticker.C:
			s.scheduledRun(ctx)
		}
	}
}

func (s *Service) scheduledRun(ctx context.Context) {
	result, err := s.TryRun(ctx)
	switch {
	case errors.Is(err, ErrRunInProgress):
		s.logger.Info("previous sync still running, skipping tick")
	case err != nil:
		s.logger.Error("scheduled sync failed", "error", err)
	default:
		s.logger.Info("scheduled sync completed",
			"run_id", result.RunID,
			"updated", result.Updated)
	}
}
