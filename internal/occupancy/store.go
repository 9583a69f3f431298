package occupancy

import (
	"context"
	"time"

	"ms-seating/internal/models"
)

type PassStore interface {
	GetDefinition(ctx context.Context, id int64) (*models.PassDefinition, error)
	ListDefinitions(ctx context.Context) ([]models.PassDefinition, error)
	CreatePass(ctx context.Context, p models.PassInstance) error
	GetPass(ctx context.Context, id string) (*models.PassInstance, error)
	ListPassesByOwner(ctx context.Context, ownerID string) ([]models.PassInstance, error)
	MarkActive(ctx context.Context, id string, seatID int64) error
	UpdatePass(ctx context.Context, p models.PassInstance) error
	DeletePass(ctx context.Context, id string) error
	ListPurchases(ctx context.Context, ownerID string) ([]models.PurchaseLog, error)
}

type SeatStore interface {
	GetSeat(ctx context.Context, id int64) (*models.Seat, error)
	ListSeats(ctx context.Context) ([]models.Seat, error)
	ListOccupied(ctx context.Context) ([]models.Seat, error)
	TryOccupy(ctx context.Context, id int64, passID string, now time.Time) error
	Vacate(ctx context.Context, id int64, passID string, since time.Time) error
	Free(ctx context.Context, id int64) error
	ProvisionSeats(ctx context.Context, labels ...string) ([]models.Seat, error)
}

// Store gives the coordinator both registries and a way to mutate them
// together. fn runs inside one transaction: returning an error rolls back
// every write made through the stores it receives.
type Store interface {
	Passes() PassStore
	Seats() SeatStore
	RunInTx(ctx context.Context, fn func(ctx context.Context, passes PassStore, seats SeatStore) error) error
}

// EventPublisher receives a seat status event after the change it
// describes has committed.
type EventPublisher interface {
	PublishSeatEvent(ctx context.Context, e models.SeatStatusEvent) error
}

// PurchaseRecorder books a purchase log row. Failures never undo the
// issued pass.
type PurchaseRecorder interface {
	RecordPurchase(ctx context.Context, l models.PurchaseLog) error
}
