package occupancy

import (
	"context"
	"fmt"
	"time"
)

// RunSweeper sweeps every interval until ctx is done. A non-positive
// interval disables it.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		s.log.Info("SWEEP", "Background sweep disabled")
		return
	}
	s.log.Info("SWEEP", fmt.Sprintf("Background sweep every %s", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Info("SWEEP", "Background sweep stopped")
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
				s.log.Error("SWEEP", fmt.Sprintf("Sweep failed: %v", err))
			}
		}
	}
}
