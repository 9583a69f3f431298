package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"ms-seating/internal/models"
)

// DB binds seat storage to a bun handle. Bun may be a *bun.DB or a bun.Tx.
type DB struct {
	Bun bun.IDB
}

// GetSeat → snapshot of one seat
func (d *DB) GetSeat(ctx context.Context, id int64) (*models.Seat, error) {
	var s models.Seat
	err := d.Bun.NewSelect().
		Model(&s).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", models.ErrSeatNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListSeats → every seat ordered by id
func (d *DB) ListSeats(ctx context.Context) ([]models.Seat, error) {
	seats := []models.Seat{}
	err := d.Bun.NewSelect().
		Model(&seats).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return seats, nil
}

// ListOccupied → occupied seats ordered by id
func (d *DB) ListOccupied(ctx context.Context) ([]models.Seat, error) {
	seats := []models.Seat{}
	err := d.Bun.NewSelect().
		Model(&seats).
		Where("is_occupied = ?", true).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return seats, nil
}

// TryOccupy claims seat id for passID. The claim is a single conditional
// update, so of several concurrent callers exactly one wins.
func (d *DB) TryOccupy(ctx context.Context, id int64, passID string, now time.Time) error {
	start := now.UTC()
	res, err := d.Bun.NewUpdate().
		Model((*models.Seat)(nil)).
		Set("is_occupied = ?", true).
		Set("user_pass_id = ?", passID).
		Set("start_at = ?", start).
		Where("id = ?", id).
		Where("is_occupied = ?", false).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 1 {
		return nil
	}
	if err := d.exists(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("%w: %d", models.ErrSeatUnavailable, id)
}

// Vacate frees seat id only if passID still holds it from since. Of two
// racing releases for the same occupancy one gets ErrNotOccupied, and a
// release working from an older occupancy of the same pass gets it too.
func (d *DB) Vacate(ctx context.Context, id int64, passID string, since time.Time) error {
	res, err := d.vacate(id).
		Where("is_occupied = ?", true).
		Where("user_pass_id = ?", passID).
		Where("start_at = ?", since.UTC()).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return fmt.Errorf("%w: %d", models.ErrNotOccupied, id)
	}
	return nil
}

// Free vacates seat id unconditionally. Freeing a vacant or missing seat
// is a no-op.
func (d *DB) Free(ctx context.Context, id int64) error {
	_, err := d.vacate(id).Exec(ctx)
	return err
}

// ProvisionSeats inserts a vacant seat per label, skipping labels that
// already exist, and returns the full seat list.
func (d *DB) ProvisionSeats(ctx context.Context, labels ...string) ([]models.Seat, error) {
	if len(labels) > 0 {
		seats := make([]models.Seat, 0, len(labels))
		for _, l := range labels {
			seats = append(seats, models.Seat{Label: l})
		}
		_, err := d.Bun.NewInsert().
			Model(&seats).
			On("CONFLICT (label) DO NOTHING").
			Returning("NULL").
			Exec(ctx)
		if err != nil {
			return nil, fmt.Errorf("provision seats: %w", err)
		}
	}
	return d.ListSeats(ctx)
}

func (d *DB) vacate(id int64) *bun.UpdateQuery {
	return d.Bun.NewUpdate().
		Model((*models.Seat)(nil)).
		Set("is_occupied = ?", false).
		Set("user_pass_id = NULL").
		Set("start_at = NULL").
		Where("id = ?", id)
}

func (d *DB) exists(ctx context.Context, id int64) error {
	ok, err := d.Bun.NewSelect().
		Model((*models.Seat)(nil)).
		Where("id = ?", id).
		Exists(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %d", models.ErrSeatNotFound, id)
	}
	return nil
}
