package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"ms-seating/internal/models"
)

// DB binds pass storage to a bun handle. Bun may be a *bun.DB or a bun.Tx.
type DB struct {
	Bun bun.IDB
}

// ---------------- CATALOG ----------------

// GetDefinition → fetch one catalog entry
func (d *DB) GetDefinition(ctx context.Context, id int64) (*models.PassDefinition, error) {
	var def models.PassDefinition
	err := d.Bun.NewSelect().
		Model(&def).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", models.ErrDefinitionNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &def, nil
}

// ListDefinitions → the full catalog ordered by price
func (d *DB) ListDefinitions(ctx context.Context) ([]models.PassDefinition, error) {
	defs := []models.PassDefinition{}
	err := d.Bun.NewSelect().
		Model(&defs).
		Order("price ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return defs, nil
}

// ---------------- PASS INSTANCES ----------------

// CreatePass → insert a freshly issued pass
func (d *DB) CreatePass(ctx context.Context, p models.PassInstance) error {
	_, err := d.Bun.NewInsert().Model(&p).Exec(ctx)
	return err
}

// GetPass → fetch one pass by id
func (d *DB) GetPass(ctx context.Context, id string) (*models.PassInstance, error) {
	var p models.PassInstance
	err := d.Bun.NewSelect().
		Model(&p).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", models.ErrPassNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPassesByOwner → every pass held by ownerID, newest first
func (d *DB) ListPassesByOwner(ctx context.Context, ownerID string) ([]models.PassInstance, error) {
	ps := []models.PassInstance{}
	err := d.Bun.NewSelect().
		Model(&ps).
		Where("owner_id = ?", ownerID).
		Order("purchased_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return ps, nil
}

// MarkActive flips an unseated pass to seated on seatID. Only one caller
// can win: the update is conditional on is_active still being false.
func (d *DB) MarkActive(ctx context.Context, id string, seatID int64) error {
	res, err := d.Bun.NewUpdate().
		Model((*models.PassInstance)(nil)).
		Set("is_active = ?", true).
		Set("seat_id = ?", seatID).
		Where("id = ?", id).
		Where("is_active = ?", false).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 1 {
		return nil
	}

	exists, err := d.Bun.NewSelect().
		Model((*models.PassInstance)(nil)).
		Where("id = ?", id).
		Exists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", models.ErrPassNotFound, id)
	}
	return fmt.Errorf("%w: %s", models.ErrPassAlreadySeated, id)
}

// UpdatePass → persist entitlement and seating fields
func (d *DB) UpdatePass(ctx context.Context, p models.PassInstance) error {
	res, err := d.Bun.NewUpdate().
		Model(&p).
		Column("remaining_minutes", "expire_at", "is_active", "seat_id").
		Where("id = ?", p.ID).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return fmt.Errorf("%w: %s", models.ErrPassNotFound, p.ID)
	}
	return nil
}

// DeletePass → remove a pass; deleting a missing pass is not an error
func (d *DB) DeletePass(ctx context.Context, id string) error {
	_, err := d.Bun.NewDelete().
		Model((*models.PassInstance)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// ---------------- PURCHASES ----------------

// RecordPurchase → append a purchase log row
func (d *DB) RecordPurchase(ctx context.Context, l models.PurchaseLog) error {
	_, err := d.Bun.NewInsert().Model(&l).Exec(ctx)
	return err
}

// ListPurchases → purchase history of ownerID, newest first
func (d *DB) ListPurchases(ctx context.Context, ownerID string) ([]models.PurchaseLog, error) {
	logs := []models.PurchaseLog{}
	err := d.Bun.NewSelect().
		Model(&logs).
		Where("owner_id = ?", ownerID).
		Order("purchased_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return logs, nil
}
