// Package testutil holds shared fixtures for storage-backed tests.
package testutil

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"ms-seating/internal/database"
	"ms-seating/internal/models"
)

// NewTestDB returns a fresh in-memory SQLite database with the schema
// created. It is closed when the test ends.
func NewTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	// Every pooled connection to :memory: would be a separate database.
	sqldb.SetMaxOpenConns(1)
	sqldb.SetMaxIdleConns(1)
	sqldb.SetConnMaxLifetime(0)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.CreateSchema(context.Background(), db))
	return db
}

// SeedDefinitions inserts defs and returns them with ids assigned.
func SeedDefinitions(t *testing.T, db bun.IDB, defs ...models.PassDefinition) []models.PassDefinition {
	t.Helper()
	for i := range defs {
		_, err := db.NewInsert().Model(&defs[i]).Exec(context.Background())
		require.NoError(t, err)
	}
	return defs
}

// SeedSeats inserts one vacant seat per label and returns them with ids
// assigned.
func SeedSeats(t *testing.T, db bun.IDB, labels ...string) []models.Seat {
	t.Helper()
	seats := make([]models.Seat, len(labels))
	for i, l := range labels {
		seats[i] = models.Seat{Label: l}
		_, err := db.NewInsert().Model(&seats[i]).Exec(context.Background())
		require.NoError(t, err)
	}
	return seats
}

// InsertPass stores p as-is.
func InsertPass(t *testing.T, db bun.IDB, p models.PassInstance) models.PassInstance {
	t.Helper()
	_, err := db.NewInsert().Model(&p).Exec(context.Background())
	require.NoError(t, err)
	return p
}

// Int64 and String return pointers for optional model fields.
func Int64(v int64) *int64    { return &v }
func String(v string) *string { return &v }
