// Package db backs the occupancy coordinator with the bun pass and seat
// stores.
package db

import (
	"context"

	"github.com/uptrace/bun"

	"ms-seating/internal/occupancy"
	passdb "ms-seating/internal/passes/db"
	seatdb "ms-seating/internal/seats/db"
)

type Store struct {
	Bun *bun.DB
}

func New(db *bun.DB) *Store {
	return &Store{Bun: db}
}

func (s *Store) Passes() occupancy.PassStore {
	return &passdb.DB{Bun: s.Bun}
}

func (s *Store) Seats() occupancy.SeatStore {
	return &seatdb.DB{Bun: s.Bun}
}

// RunInTx runs fn with both stores bound to one transaction. It commits
// when fn returns nil and rolls back otherwise.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, passes occupancy.PassStore, seats occupancy.SeatStore) error) error {
	return s.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &passdb.DB{Bun: tx}, &seatdb.DB{Bun: tx})
	})
}

// PurchaseRecorder writes purchase logs straight to the database.
func (s *Store) PurchaseRecorder() occupancy.PurchaseRecorder {
	return &passdb.DB{Bun: s.Bun}
}
