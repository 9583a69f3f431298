package models

import "time"

type SeatEventReason string

const (
	SeatEventOccupied SeatEventReason = "occupied"
	SeatEventReleased SeatEventReason = "released"
	SeatEventExpired  SeatEventReason = "expired"
	// SeatEventRepaired marks a seat freed because its pass no longer exists.
	SeatEventRepaired SeatEventReason = "repaired"
)

// SeatStatusEvent is published to Kafka, SSE subscribers and the Redis
// expiry scheduler whenever an occupancy starts or ends.
type SeatStatusEvent struct {
	SeatID           int64           `json:"seat_id"`
	Occupied         bool            `json:"occupied"`
	UserPassID       string          `json:"user_pass_id,omitempty"`
	Reason           SeatEventReason `json:"reason"`
	RemainingSeconds int64           `json:"remaining_seconds"`
	OccurredAt       time.Time       `json:"occurred_at"`
}

// Remaining returns RemainingSeconds as a duration.
func (e SeatStatusEvent) Remaining() time.Duration {
	return time.Duration(e.RemainingSeconds) * time.Second
}

// NewSeatStatusEvent builds an event, truncating remaining to whole seconds.
func NewSeatStatusEvent(seatID int64, passID string, reason SeatEventReason, remaining time.Duration, at time.Time) SeatStatusEvent {
	return SeatStatusEvent{
		SeatID:           seatID,
		Occupied:         reason == SeatEventOccupied,
		UserPassID:       passID,
		Reason:           reason,
		RemainingSeconds: int64(remaining / time.Second),
		OccurredAt:       at.UTC(),
	}
}
