package db_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-seating/internal/models"
	"ms-seating/internal/seats/db"
	"ms-seating/internal/testutil"
)

var now = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*db.DB, []models.Seat) {
	t.Helper()
	bunDB := testutil.NewTestDB(t)
	seats := testutil.SeedSeats(t, bunDB, "A1", "A2")
	return &db.DB{Bun: bunDB}, seats
}

func TestTryOccupy(t *testing.T) {
	ctx := context.Background()
	store, seats := setup(t)
	id := seats[0].ID

	require.NoError(t, store.TryOccupy(ctx, id, "pass-1", now))

	s, err := store.GetSeat(ctx, id)
	require.NoError(t, err)
	assert.True(t, s.Occupied)
	require.NotNil(t, s.UserPassID)
	assert.Equal(t, "pass-1", *s.UserPassID)
	require.NotNil(t, s.StartAt)
	assert.True(t, s.StartAt.Equal(now))

	err = store.TryOccupy(ctx, id, "pass-2", now.Add(time.Minute))
	assert.ErrorIs(t, err, models.ErrSeatUnavailable)

	s, err = store.GetSeat(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "pass-1", *s.UserPassID, "failed claim must not mutate the seat")
	assert.True(t, s.StartAt.Equal(now))

	err = store.TryOccupy(ctx, 999, "pass-3", now)
	assert.ErrorIs(t, err, models.ErrSeatNotFound)
}

func TestTryOccupyConcurrent(t *testing.T) {
	ctx := context.Background()
	store, seats := setup(t)
	id := seats[1].ID

	const n = 16
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := store.TryOccupy(ctx, id, "pass-"+string(rune('a'+i)), now)
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, models.ErrSeatUnavailable)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestVacate(t *testing.T) {
	ctx := context.Background()
	store, seats := setup(t)
	id := seats[0].ID
	require.NoError(t, store.TryOccupy(ctx, id, "pass-1", now))

	err := store.Vacate(ctx, id, "someone-else", now)
	assert.ErrorIs(t, err, models.ErrNotOccupied)

	require.NoError(t, store.Vacate(ctx, id, "pass-1", now))
	s, err := store.GetSeat(ctx, id)
	require.NoError(t, err)
	assert.False(t, s.Occupied)
	assert.Nil(t, s.UserPassID)
	assert.Nil(t, s.StartAt)

	err = store.Vacate(ctx, id, "pass-1", now)
	assert.ErrorIs(t, err, models.ErrNotOccupied)
}

func TestVacateRequiresSameOccupancy(t *testing.T) {
	ctx := context.Background()
	store, seats := setup(t)
	id := seats[0].ID
	require.NoError(t, store.TryOccupy(ctx, id, "pass-1", now))
	require.NoError(t, store.Vacate(ctx, id, "pass-1", now))
	later := now.Add(30 * time.Minute)
	require.NoError(t, store.TryOccupy(ctx, id, "pass-1", later))

	err := store.Vacate(ctx, id, "pass-1", now)
	assert.ErrorIs(t, err, models.ErrNotOccupied)
	s, err := store.GetSeat(ctx, id)
	require.NoError(t, err)
	require.True(t, s.Occupied)
	assert.True(t, s.StartAt.Equal(later))

	require.NoError(t, store.Vacate(ctx, id, "pass-1", *s.StartAt))
}

func TestFreeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store, seats := setup(t)
	id := seats[0].ID
	require.NoError(t, store.TryOccupy(ctx, id, "pass-1", now))

	require.NoError(t, store.Free(ctx, id))
	require.NoError(t, store.Free(ctx, id))
	require.NoError(t, store.Free(ctx, 999))

	s, err := store.GetSeat(ctx, id)
	require.NoError(t, err)
	assert.False(t, s.Occupied)
}

func TestListAndProvision(t *testing.T) {
	ctx := context.Background()
	store, seats := setup(t)
	require.NoError(t, store.TryOccupy(ctx, seats[1].ID, "pass-1", now))

	all, err := store.ListSeats(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "A1", all[0].Label)

	occupied, err := store.ListOccupied(ctx)
	require.NoError(t, err)
	require.Len(t, occupied, 1)
	assert.Equal(t, seats[1].ID, occupied[0].ID)

	all, err = store.ProvisionSeats(ctx, "A2", "B1", "B2")
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "B2", all[3].Label)
	assert.True(t, all[1].Occupied, "existing seats are left alone")

	_, err = store.GetSeat(ctx, 999)
	assert.ErrorIs(t, err, models.ErrSeatNotFound)
}
