package db_test

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"

	"ms-seating/internal/clock"
	"ms-seating/internal/config"
	"ms-seating/internal/database"
	"ms-seating/internal/database/migrations"
	"ms-seating/internal/logger"
	"ms-seating/internal/models"
	"ms-seating/internal/occupancy"
	occdb "ms-seating/internal/occupancy/db"
)

// startPostgres runs a migrated and seeded Postgres in a container.
func startPostgres(t *testing.T) *bun.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "seating",
				"POSTGRES_PASSWORD": "seating",
				"POSTGRES_DB":       "seating",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	log := logger.New(io.Discard)
	bunDB, err := database.Open(ctx, config.DatabaseConfig{
		Driver:          database.DriverPostgres,
		DSN:             fmt.Sprintf("postgres://seating:seating@%s:%s/seating?sslmode=disable", host, port.Port()),
		MaxOpenConns:    16,
		MaxIdleConns:    4,
		MaxLifetime:     time.Minute,
		ConnectRetries:  10,
		ConnectInterval: time.Second,
	}, log)
	require.NoError(t, err)
	t.Cleanup(func() { bunDB.Close() })

	dir, err := filepath.Abs("../../../migrations")
	require.NoError(t, err)
	runner := migrations.NewRunner(bunDB, migrations.MigrateOptions{MigrationsDir: dir, SeedData: true}, log)
	t.Cleanup(func() { runner.Close() })
	require.NoError(t, runner.RunMigrations())

	return bunDB
}

func TestPostgresOccupancy(t *testing.T) {
	bunDB := startPostgres(t)
	ctx := context.Background()
	clk := clock.NewManual(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	store := occdb.New(bunDB)
	svc := occupancy.NewService(store, clk, logger.New(io.Discard),
		occupancy.WithPurchaseRecorder(store.PurchaseRecorder()),
	)

	catalog, err := svc.ListCatalog(ctx)
	require.NoError(t, err)
	require.Len(t, catalog, 5)
	twoHours := catalog[0]
	assert.Equal(t, "2 hours", twoHours.Name)

	seats, err := svc.ProvisionSeats(ctx, "S01", "S41")
	require.NoError(t, err)
	assert.Len(t, seats, 41, "S01 already seeded, S41 added")

	t.Run("one winner per seat", func(t *testing.T) {
		seatID := seats[0].ID
		const n = 8
		passes := make([]*models.PassInstance, n)
		for i := range passes {
			passes[i], err = svc.IssuePass(ctx, fmt.Sprintf("pg-user-%d", i), twoHours.ID)
			require.NoError(t, err)
		}

		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins []string
		)
		for _, p := range passes {
			wg.Add(1)
			go func(p *models.PassInstance) {
				defer wg.Done()
				occ, err := svc.Occupy(ctx, p.OwnerID, seatID, p.ID)
				if err != nil {
					assert.ErrorIs(t, err, models.ErrSeatUnavailable)
					return
				}
				mu.Lock()
				wins = append(wins, occ.PassID)
				mu.Unlock()
			}(p)
		}
		wg.Wait()
		require.Len(t, wins, 1)

		clk.Advance(25 * time.Minute)
		res, err := svc.Release(ctx, seatID)
		require.NoError(t, err)
		assert.Equal(t, wins[0], res.PassID)
		assert.False(t, res.Destroyed)
		assert.Equal(t, 95*time.Minute, res.Remaining)
	})

	t.Run("failed seat claim leaves pass idle", func(t *testing.T) {
		seatID := seats[1].ID
		holder, err := svc.IssuePass(ctx, "pg-holder", twoHours.ID)
		require.NoError(t, err)
		loser, err := svc.IssuePass(ctx, "pg-loser", twoHours.ID)
		require.NoError(t, err)

		_, err = svc.Occupy(ctx, holder.OwnerID, seatID, holder.ID)
		require.NoError(t, err)
		_, err = svc.Occupy(ctx, loser.OwnerID, seatID, loser.ID)
		require.ErrorIs(t, err, models.ErrSeatUnavailable)

		got, err := svc.GetOwnedPass(ctx, loser.OwnerID, loser.ID)
		require.NoError(t, err)
		assert.False(t, got.IsActive)
		assert.Nil(t, got.SeatID)
	})
}
