package passes

import (
	"time"

	"ms-seating/internal/models"
)

// Entitlement is the closed set of ways a pass grants seat time. The
// unexported methods keep the set sealed to this package.
type Entitlement interface {
	remaining(now time.Time, occupiedSince *time.Time) time.Duration
	debit(now time.Time, occupiedSince *time.Time) Entitlement
	store(p *models.PassInstance)
}

// RemainingMinutes is metered time that only runs while the pass is seated.
type RemainingMinutes struct {
	Minutes int64
}

func (m RemainingMinutes) remaining(now time.Time, occupiedSince *time.Time) time.Duration {
	left := m.Minutes
	if occupiedSince != nil {
		left -= ElapsedMinutes(*occupiedSince, now)
	}
	if left <= 0 {
		return 0
	}
	return time.Duration(left) * time.Minute
}

func (m RemainingMinutes) debit(now time.Time, occupiedSince *time.Time) Entitlement {
	return RemainingMinutes{Minutes: int64(m.remaining(now, occupiedSince) / time.Minute)}
}

func (m RemainingMinutes) store(p *models.PassInstance) {
	minutes := m.Minutes
	p.RemainingMinutes = &minutes
	p.ExpireAt = nil
}

// Deadline is wall-clock validity: it runs from purchase whether or not
// the pass is seated.
type Deadline struct {
	At time.Time
}

func (d Deadline) remaining(now time.Time, _ *time.Time) time.Duration {
	left := d.At.Sub(now)
	if left <= 0 {
		return 0
	}
	return left
}

// debit never moves the stored deadline.
func (d Deadline) debit(time.Time, *time.Time) Entitlement {
	return d
}

func (d Deadline) store(p *models.PassInstance) {
	at := d.At.UTC()
	p.ExpireAt = &at
	p.RemainingMinutes = nil
}

// EntitlementOf reads the entitlement columns of p. ok is false when
// neither column is set.
func EntitlementOf(p models.PassInstance) (e Entitlement, ok bool) {
	switch {
	case p.RemainingMinutes != nil:
		return RemainingMinutes{Minutes: *p.RemainingMinutes}, true
	case p.ExpireAt != nil:
		return Deadline{At: p.ExpireAt.UTC()}, true
	}
	return nil, false
}

// ElapsedMinutes counts whole minutes between since and now. Partial
// minutes are not charged and a since in the future counts as zero.
func ElapsedMinutes(since, now time.Time) int64 {
	d := now.Sub(since)
	if d <= 0 {
		return 0
	}
	return int64(d / time.Minute)
}
