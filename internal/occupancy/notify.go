package occupancy

import (
	"context"
	"errors"

	"ms-seating/internal/models"
)

// Publishers fans one event out to every publisher in order. All are
// attempted; their errors are joined.
type Publishers []EventPublisher

func (ps Publishers) PublishSeatEvent(ctx context.Context, e models.SeatStatusEvent) error {
	var errs []error
	for _, p := range ps {
		if p == nil {
			continue
		}
		if err := p.PublishSeatEvent(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type noopPublisher struct{}

func (noopPublisher) PublishSeatEvent(context.Context, models.SeatStatusEvent) error { return nil }
