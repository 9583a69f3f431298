package passes

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-seating/internal/models"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func meteredPass(minutes int64) models.PassInstance {
	return models.PassInstance{ID: "p-1", OwnerID: "u-1", DefinitionID: 1, RemainingMinutes: ptr(minutes), PurchasedAt: t0}
}

func deadlinePass(at time.Time) models.PassInstance {
	return models.PassInstance{ID: "p-2", OwnerID: "u-1", DefinitionID: 2, ExpireAt: ptr(at), PurchasedAt: t0}
}

func TestIssue(t *testing.T) {
	t.Run("duration definition issues metered minutes", func(t *testing.T) {
		def := models.PassDefinition{ID: 1, Name: "2 hours", Kind: models.PassKindDuration, Amount: 2, Unit: models.UnitHour}
		p, err := Issue("u-1", def, t0)
		require.NoError(t, err)

		require.NotNil(t, p.RemainingMinutes)
		assert.Equal(t, int64(120), *p.RemainingMinutes)
		assert.Nil(t, p.ExpireAt)
		assert.False(t, p.IsActive)
		assert.Nil(t, p.SeatID)
		assert.NotEmpty(t, p.ID)
		assert.Equal(t, "u-1", p.OwnerID)
		assert.Equal(t, int64(1), p.DefinitionID)
	})

	t.Run("deadline definition defaults to days", func(t *testing.T) {
		def := models.PassDefinition{ID: 2, Kind: models.PassKindDeadline, Amount: 7}
		p, err := Issue("u-1", def, t0)
		require.NoError(t, err)

		require.NotNil(t, p.ExpireAt)
		assert.True(t, p.ExpireAt.Equal(t0.Add(7*24*time.Hour)))
		assert.Nil(t, p.RemainingMinutes)
		assert.False(t, p.IsActive)
	})

	t.Run("deadline definition in minutes", func(t *testing.T) {
		def := models.PassDefinition{ID: 3, Kind: models.PassKindDeadline, Amount: 120, Unit: models.UnitMinute}
		p, err := Issue("u-1", def, t0)
		require.NoError(t, err)
		assert.True(t, p.ExpireAt.Equal(t0.Add(120*time.Minute)))
	})

	t.Run("unknown kind", func(t *testing.T) {
		def := models.PassDefinition{ID: 4, Kind: "season", Amount: 1}
		_, err := Issue("u-1", def, t0)
		assert.ErrorIs(t, err, models.ErrInvalidPassKind)
	})

	t.Run("zero amount", func(t *testing.T) {
		def := models.PassDefinition{ID: 5, Kind: models.PassKindDuration, Amount: 0}
		_, err := Issue("u-1", def, t0)
		assert.ErrorIs(t, err, models.ErrInvalidPassKind)
	})

	t.Run("ids are unique", func(t *testing.T) {
		def := models.PassDefinition{ID: 1, Kind: models.PassKindDuration, Amount: 60}
		a, _ := Issue("u-1", def, t0)
		b, _ := Issue("u-1", def, t0)
		assert.NotEqual(t, a.ID, b.ID)
	})
}

func TestRemaining(t *testing.T) {
	t.Run("metered pass unseated keeps its balance", func(t *testing.T) {
		assert.Equal(t, 60*time.Minute, Remaining(meteredPass(60), t0.Add(5*time.Hour), nil))
	})

	t.Run("metered pass seated counts whole minutes", func(t *testing.T) {
		since := t0
		assert.Equal(t, 35*time.Minute, Remaining(meteredPass(60), t0.Add(25*time.Minute), &since))
		assert.Equal(t, 35*time.Minute, Remaining(meteredPass(60), t0.Add(25*time.Minute+59*time.Second), &since))
	})

	t.Run("metered pass clamps at zero", func(t *testing.T) {
		since := t0
		assert.Equal(t, time.Duration(0), Remaining(meteredPass(10), t0.Add(15*time.Minute), &since))
	})

	t.Run("deadline pass ignores seating", func(t *testing.T) {
		since := t0
		p := deadlinePass(t0.Add(2 * time.Hour))
		assert.Equal(t, 90*time.Minute, Remaining(p, t0.Add(30*time.Minute), nil))
		assert.Equal(t, 90*time.Minute, Remaining(p, t0.Add(30*time.Minute), &since))
		assert.Equal(t, time.Duration(0), Remaining(p, t0.Add(3*time.Hour), nil))
	})

	t.Run("pass without entitlement reads as exhausted", func(t *testing.T) {
		assert.True(t, IsExhausted(models.PassInstance{ID: "broken"}, t0, nil))
	})

	t.Run("clock skew does not add time", func(t *testing.T) {
		since := t0.Add(time.Minute)
		assert.Equal(t, 60*time.Minute, Remaining(meteredPass(60), t0, &since))
	})
}

func TestIsExhausted(t *testing.T) {
	since := t0
	assert.False(t, IsExhausted(meteredPass(10), t0.Add(9*time.Minute+59*time.Second), &since))
	assert.True(t, IsExhausted(meteredPass(10), t0.Add(10*time.Minute), &since))
	assert.True(t, IsExhausted(deadlinePass(t0), t0, nil))
	assert.False(t, IsExhausted(deadlinePass(t0.Add(time.Second)), t0, nil))
}

func TestDebitOnRelease(t *testing.T) {
	t.Run("metered debit", func(t *testing.T) {
		since := t0
		p := meteredPass(60)
		p.IsActive = true
		p.SeatID = ptr(int64(3))

		out := DebitOnRelease(p, t0.Add(25*time.Minute), &since)
		require.False(t, out.Destroy)
		require.NotNil(t, out.Pass.RemainingMinutes)
		assert.Equal(t, int64(35), *out.Pass.RemainingMinutes)
		assert.False(t, out.Pass.IsActive)
		assert.Nil(t, out.Pass.SeatID)
		assert.Equal(t, 35*time.Minute, out.Remaining)
		assert.Equal(t, int64(60), *p.RemainingMinutes, "input pass must not be mutated")
	})

	t.Run("deadline keeps its instant", func(t *testing.T) {
		since := t0
		deadline := t0.Add(120 * time.Minute)
		p := deadlinePass(deadline)
		p.IsActive = true
		p.SeatID = ptr(int64(3))

		out := DebitOnRelease(p, t0.Add(10*time.Minute), &since)
		require.False(t, out.Destroy)
		require.NotNil(t, out.Pass.ExpireAt)
		assert.True(t, out.Pass.ExpireAt.Equal(deadline))
		assert.Nil(t, out.Pass.RemainingMinutes)
		assert.False(t, out.Pass.IsActive)
		assert.Nil(t, out.Pass.SeatID)
	})

	t.Run("exhausted metered pass is destroyed", func(t *testing.T) {
		since := t0
		out := DebitOnRelease(meteredPass(10), t0.Add(15*time.Minute), &since)
		assert.True(t, out.Destroy)
	})

	t.Run("expired deadline pass is destroyed", func(t *testing.T) {
		since := t0
		out := DebitOnRelease(deadlinePass(t0.Add(5*time.Minute)), t0.Add(5*time.Minute), &since)
		assert.True(t, out.Destroy)
	})

	t.Run("zero elapsed round trip", func(t *testing.T) {
		since := t0
		out := DebitOnRelease(meteredPass(60), t0, &since)
		require.False(t, out.Destroy)
		assert.Equal(t, int64(60), *out.Pass.RemainingMinutes)

		deadline := t0.Add(time.Hour)
		out = DebitOnRelease(deadlinePass(deadline), t0, &since)
		require.False(t, out.Destroy)
		assert.True(t, out.Pass.ExpireAt.Equal(deadline))
	})
}
