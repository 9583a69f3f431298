package db_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-seating/internal/models"
	"ms-seating/internal/passes/db"
	"ms-seating/internal/testutil"
)

var now = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*db.DB, models.PassDefinition) {
	t.Helper()
	bunDB := testutil.NewTestDB(t)
	defs := testutil.SeedDefinitions(t, bunDB,
		models.PassDefinition{Name: "4 hours", Kind: models.PassKindDuration, Amount: 4, Unit: models.UnitHour, Price: 7000},
		models.PassDefinition{Name: "2 hours", Kind: models.PassKindDuration, Amount: 2, Unit: models.UnitHour, Price: 4000},
	)
	return &db.DB{Bun: bunDB}, defs[0]
}

func newPass(defID int64) models.PassInstance {
	return models.PassInstance{
		ID:               "pass-1",
		OwnerID:          "user-1",
		DefinitionID:     defID,
		RemainingMinutes: testutil.Int64(240),
		PurchasedAt:      now,
	}
}

func TestDefinitions(t *testing.T) {
	ctx := context.Background()
	store, def := setup(t)

	got, err := store.GetDefinition(ctx, def.ID)
	require.NoError(t, err)
	assert.Equal(t, "4 hours", got.Name)
	assert.Equal(t, models.UnitHour, got.Unit)

	_, err = store.GetDefinition(ctx, 999)
	assert.ErrorIs(t, err, models.ErrDefinitionNotFound)

	all, err := store.ListDefinitions(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "2 hours", all[0].Name, "catalog is ordered by price")
}

func TestCreateGetAndList(t *testing.T) {
	ctx := context.Background()
	store, def := setup(t)

	p := newPass(def.ID)
	require.NoError(t, store.CreatePass(ctx, p))

	got, err := store.GetPass(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.OwnerID)
	require.NotNil(t, got.RemainingMinutes)
	assert.Equal(t, int64(240), *got.RemainingMinutes)
	assert.Nil(t, got.ExpireAt)
	assert.False(t, got.IsActive)
	assert.Nil(t, got.SeatID)

	_, err = store.GetPass(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrPassNotFound)

	second := newPass(def.ID)
	second.ID = "pass-2"
	second.RemainingMinutes = nil
	second.ExpireAt = &now
	second.PurchasedAt = now.Add(time.Hour)
	require.NoError(t, store.CreatePass(ctx, second))

	list, err := store.ListPassesByOwner(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "pass-2", list[0].ID)
	require.NotNil(t, list[0].ExpireAt)
	assert.True(t, list[0].ExpireAt.Equal(now))

	none, err := store.ListPassesByOwner(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMarkActive(t *testing.T) {
	ctx := context.Background()
	store, def := setup(t)
	p := newPass(def.ID)
	require.NoError(t, store.CreatePass(ctx, p))

	require.NoError(t, store.MarkActive(ctx, p.ID, 4))

	got, err := store.GetPass(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)
	require.NotNil(t, got.SeatID)
	assert.Equal(t, int64(4), *got.SeatID)

	err = store.MarkActive(ctx, p.ID, 5)
	assert.ErrorIs(t, err, models.ErrPassAlreadySeated)

	got, err = store.GetPass(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), *got.SeatID, "losing call leaves the pass untouched")

	err = store.MarkActive(ctx, "missing", 4)
	assert.ErrorIs(t, err, models.ErrPassNotFound)
}

func TestUpdateAndDeletePass(t *testing.T) {
	ctx := context.Background()
	store, def := setup(t)
	p := newPass(def.ID)
	require.NoError(t, store.CreatePass(ctx, p))
	require.NoError(t, store.MarkActive(ctx, p.ID, 4))

	p.RemainingMinutes = testutil.Int64(215)
	p.IsActive = false
	p.SeatID = nil
	require.NoError(t, store.UpdatePass(ctx, p))

	got, err := store.GetPass(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(215), *got.RemainingMinutes)
	assert.False(t, got.IsActive)
	assert.Nil(t, got.SeatID)

	missing := p
	missing.ID = "missing"
	assert.ErrorIs(t, store.UpdatePass(ctx, missing), models.ErrPassNotFound)

	require.NoError(t, store.DeletePass(ctx, p.ID))
	require.NoError(t, store.DeletePass(ctx, p.ID), "delete is idempotent")
	_, err = store.GetPass(ctx, p.ID)
	assert.ErrorIs(t, err, models.ErrPassNotFound)
}

func TestPurchases(t *testing.T) {
	ctx := context.Background()
	store, def := setup(t)

	require.NoError(t, store.RecordPurchase(ctx, models.PurchaseLog{
		OwnerID: "user-1", DefinitionID: def.ID, UserPassID: "pass-1", Price: def.Price, PurchasedAt: now,
	}))
	require.NoError(t, store.RecordPurchase(ctx, models.PurchaseLog{
		OwnerID: "user-1", DefinitionID: def.ID, UserPassID: "pass-2", Price: def.Price, PurchasedAt: now.Add(time.Minute),
	}))

	logs, err := store.ListPurchases(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "pass-2", logs[0].UserPassID)
	assert.Equal(t, int64(7000), logs[0].Price)
}
