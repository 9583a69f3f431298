package models

import (
	"time"

	"github.com/uptrace/bun"
)

type PassKind string

const (
	// PassKindDuration passes carry metered minutes consumed only while seated.
	PassKindDuration PassKind = "duration"
	// PassKindDeadline passes are valid until a fixed instant, seated or not.
	PassKindDeadline PassKind = "deadline"
)

type TimeUnit string

const (
	UnitMinute TimeUnit = "minute"
	UnitHour   TimeUnit = "hour"
	UnitDay    TimeUnit = "day"
)

// Duration converts amount units into a time.Duration. An empty unit is
// read as the default for kind.
func (u TimeUnit) Duration(amount int64, kind PassKind) time.Duration {
	switch u {
	case UnitMinute:
		return time.Duration(amount) * time.Minute
	case UnitHour:
		return time.Duration(amount) * time.Hour
	case UnitDay:
		return time.Duration(amount) * 24 * time.Hour
	}
	if kind == PassKindDeadline {
		return time.Duration(amount) * 24 * time.Hour
	}
	return time.Duration(amount) * time.Minute
}

// PassDefinition is a read-only catalog entry.
type PassDefinition struct {
	bun.BaseModel `bun:"table:passes"`

	ID     int64    `bun:"id,pk,autoincrement" json:"id"`
	Name   string   `bun:"name,notnull" json:"name"`
	Kind   PassKind `bun:"pass_type,notnull" json:"pass_type"`
	Amount int64    `bun:"duration,notnull" json:"duration"`
	Unit   TimeUnit `bun:"unit,notnull" json:"unit"`
	Price  int64    `bun:"price,notnull" json:"price"`
}

// PassInstance is one issued pass owned by a user. Exactly one of
// RemainingMinutes and ExpireAt is set.
type PassInstance struct {
	bun.BaseModel `bun:"table:user_passes"`

	ID               string     `bun:"id,pk" json:"id"`
	OwnerID          string     `bun:"owner_id,notnull" json:"owner_id"`
	DefinitionID     int64      `bun:"pass_id,notnull" json:"pass_id"`
	RemainingMinutes *int64     `bun:"remaining_minutes" json:"remaining_minutes,omitempty"`
	ExpireAt         *time.Time `bun:"expire_at" json:"expire_at,omitempty"`
	IsActive         bool       `bun:"is_active,notnull" json:"is_active"`
	SeatID           *int64     `bun:"seat_id" json:"seat_id,omitempty"`
	PurchasedAt      time.Time  `bun:"purchased_at,notnull" json:"purchased_at"`
}
