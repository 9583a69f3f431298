package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Seat is a physical seat. Occupied, UserPassID and StartAt are set and
// cleared together.
type Seat struct {
	bun.BaseModel `bun:"table:seats"`

	ID         int64      `bun:"id,pk,autoincrement" json:"id"`
	Label      string     `bun:"label,notnull,unique" json:"label"`
	Occupied   bool       `bun:"is_occupied,notnull" json:"is_occupied"`
	UserPassID *string    `bun:"user_pass_id,unique" json:"user_pass_id,omitempty"`
	StartAt    *time.Time `bun:"start_at" json:"start_at,omitempty"`
}
