package database

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"ms-seating/internal/models"
)

// DefaultCatalog mirrors the rows seeded by migration 000002.
var DefaultCatalog = []models.PassDefinition{
	{Name: "2 hours", Kind: models.PassKindDuration, Amount: 2, Unit: models.UnitHour, Price: 4000},
	{Name: "4 hours", Kind: models.PassKindDuration, Amount: 4, Unit: models.UnitHour, Price: 7000},
	{Name: "50 hours", Kind: models.PassKindDuration, Amount: 50, Unit: models.UnitHour, Price: 70000},
	{Name: "1 week", Kind: models.PassKindDeadline, Amount: 7, Unit: models.UnitDay, Price: 50000},
	{Name: "4 weeks", Kind: models.PassKindDeadline, Amount: 28, Unit: models.UnitDay, Price: 150000},
}

// Row constraints shared with migration 000001.
const (
	checkOneEntitlement  = "CONSTRAINT user_passes_one_entitlement CHECK ((remaining_minutes IS NULL) <> (expire_at IS NULL))"
	checkActiveHasSeat   = "CONSTRAINT user_passes_active_has_seat CHECK (is_active = (seat_id IS NOT NULL))"
	checkOccupancyFields = "CONSTRAINT seats_occupancy_consistent CHECK (is_occupied = (user_pass_id IS NOT NULL) AND is_occupied = (start_at IS NOT NULL))"
)

// CreateSchema creates every table from the bun models. It is used for
// SQLite and tests; Postgres deployments run the SQL migrations instead.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	tables := []struct {
		model  interface{}
		checks []string
	}{
		{model: (*models.PassDefinition)(nil)},
		{model: (*models.PassInstance)(nil), checks: []string{checkOneEntitlement, checkActiveHasSeat}},
		{model: (*models.Seat)(nil), checks: []string{checkOccupancyFields}},
		{model: (*models.PurchaseLog)(nil)},
	}
	for _, t := range tables {
		q := db.NewCreateTable().Model(t.model).IfNotExists()
		for _, c := range t.checks {
			q = q.ColumnExpr(c)
		}
		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("create table %T: %w", t.model, err)
		}
	}

	_, err := db.NewCreateIndex().
		Model((*models.PassInstance)(nil)).
		Index("idx_user_passes_owner").
		Column("owner_id").
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create owner index: %w", err)
	}
	return nil
}

// SeedCatalog inserts DefaultCatalog when the catalog is empty.
func SeedCatalog(ctx context.Context, db bun.IDB) error {
	n, err := db.NewSelect().Model((*models.PassDefinition)(nil)).Count(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	defs := make([]models.PassDefinition, len(DefaultCatalog))
	copy(defs, DefaultCatalog)
	_, err = db.NewInsert().Model(&defs).Exec(ctx)
	return err
}
