package models

import (
	"time"

	"github.com/uptrace/bun"
)

// PurchaseLog records that a pass was bought. It is bookkeeping only.
type PurchaseLog struct {
	bun.BaseModel `bun:"table:purchase_logs"`

	ID           int64     `bun:"id,pk,autoincrement" json:"id"`
	OwnerID      string    `bun:"owner_id,notnull" json:"owner_id"`
	DefinitionID int64     `bun:"pass_id,notnull" json:"pass_id"`
	UserPassID   string    `bun:"user_pass_id,notnull" json:"user_pass_id"`
	Price        int64     `bun:"price,notnull" json:"price"`
	PurchasedAt  time.Time `bun:"purchased_at,notnull" json:"purchased_at"`
}
