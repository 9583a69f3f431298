// Package passes holds the entitlement arithmetic for issued passes: how a
// pass is created from a catalog entry, how much time it has left, and what
// happens to it when its seat is released. Everything here is pure; the
// structural writes live in passes/db.
package passes

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"ms-seating/internal/models"
)

// Outcome is the result of releasing a seated pass.
type Outcome struct {
	// Destroy means the pass is exhausted and must be deleted.
	Destroy bool
	// Pass is the state to persist when Destroy is false.
	Pass      models.PassInstance
	Remaining time.Duration
}

// Issue creates an unseated pass for ownerID from def.
func Issue(ownerID string, def models.PassDefinition, now time.Time) (models.PassInstance, error) {
	now = now.UTC()
	length := def.Unit.Duration(def.Amount, def.Kind)
	if length <= 0 {
		return models.PassInstance{}, fmt.Errorf("%w: definition %d has non-positive amount", models.ErrInvalidPassKind, def.ID)
	}

	var e Entitlement
	switch def.Kind {
	case models.PassKindDuration:
		minutes := int64(length / time.Minute)
		if minutes <= 0 {
			return models.PassInstance{}, fmt.Errorf("%w: definition %d is shorter than a minute", models.ErrInvalidPassKind, def.ID)
		}
		e = RemainingMinutes{Minutes: minutes}
	case models.PassKindDeadline:
		e = Deadline{At: now.Add(length)}
	default:
		return models.PassInstance{}, fmt.Errorf("%w: %q", models.ErrInvalidPassKind, def.Kind)
	}

	p := models.PassInstance{
		ID:           uuid.NewString(),
		OwnerID:      ownerID,
		DefinitionID: def.ID,
		PurchasedAt:  now,
	}
	e.store(&p)
	return p, nil
}

// Remaining is the live entitlement left on p at now. occupiedSince is the
// start of the current occupancy, nil when p is not seated. A pass with no
// entitlement columns reads as exhausted.
func Remaining(p models.PassInstance, now time.Time, occupiedSince *time.Time) time.Duration {
	e, ok := EntitlementOf(p)
	if !ok {
		return 0
	}
	return e.remaining(now, occupiedSince)
}

func IsExhausted(p models.PassInstance, now time.Time, occupiedSince *time.Time) bool {
	return Remaining(p, now, occupiedSince) <= 0
}

// DebitOnRelease charges the occupancy that started at occupiedSince and
// returns the state p must be left in once its seat is freed.
func DebitOnRelease(p models.PassInstance, now time.Time, occupiedSince *time.Time) Outcome {
	e, ok := EntitlementOf(p)
	if !ok {
		return Outcome{Destroy: true}
	}
	left := e.remaining(now, occupiedSince)
	if left <= 0 {
		return Outcome{Destroy: true}
	}

	next := p
	e.debit(now, occupiedSince).store(&next)
	next.IsActive = false
	next.SeatID = nil
	return Outcome{Pass: next, Remaining: left}
}
