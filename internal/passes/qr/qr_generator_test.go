package qr

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-seating/internal/models"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func TestSealAndOpen(t *testing.T) {
	q, err := NewQRGenerator("kiosk-secret", time.Minute)
	require.NoError(t, err)

	p := models.PassInstance{ID: "pass-1", OwnerID: "alice"}
	code, err := q.Seal(p, t0)
	require.NoError(t, err)

	ec, err := q.Open(code, t0)
	require.NoError(t, err)
	assert.Equal(t, "pass-1", ec.PassID)
	assert.Equal(t, "alice", ec.OwnerID)
	assert.True(t, ec.IssuedAt.Equal(t0))

	again, err := q.Seal(p, t0)
	require.NoError(t, err)
	assert.NotEqual(t, code, again, "every code uses a fresh nonce")
}

func TestOpenRejectsForeignAndTamperedCodes(t *testing.T) {
	q, err := NewQRGenerator("kiosk-secret", time.Minute)
	require.NoError(t, err)
	other, err := NewQRGenerator("someone-else", time.Minute)
	require.NoError(t, err)

	code, err := other.Seal(models.PassInstance{ID: "pass-1", OwnerID: "alice"}, t0)
	require.NoError(t, err)

	_, err = q.Open(code, t0)
	assert.ErrorIs(t, err, ErrInvalidCode)

	mine, err := q.Seal(models.PassInstance{ID: "pass-1", OwnerID: "alice"}, t0)
	require.NoError(t, err)
	flipped := []byte(mine)
	mid := len(flipped) / 2
	if flipped[mid] == 'A' {
		flipped[mid] = 'B'
	} else {
		flipped[mid] = 'A'
	}
	_, err = q.Open(string(flipped), t0)
	assert.ErrorIs(t, err, ErrInvalidCode)

	for _, bad := range []string{"", "%%%", "c2hvcnQ"} {
		_, err = q.Open(bad, t0)
		assert.ErrorIs(t, err, ErrInvalidCode, bad)
	}
}

func TestGenerateEncryptedQR(t *testing.T) {
	q, err := NewQRGenerator("kiosk-secret", time.Minute)
	require.NoError(t, err)

	png, err := q.GenerateEncryptedQR(models.PassInstance{ID: "pass-1", OwnerID: "alice"}, t0)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
}

func TestEmptySecret(t *testing.T) {
	_, err := NewQRGenerator("", time.Minute)
	assert.Error(t, err)
}

func TestOpenRejectsExpiredCodes(t *testing.T) {
	q, err := NewQRGenerator("kiosk-secret", 2*time.Minute)
	require.NoError(t, err)

	code, err := q.Seal(models.PassInstance{ID: "pass-1", OwnerID: "alice"}, t0)
	require.NoError(t, err)

	_, err = q.Open(code, t0.Add(2*time.Minute))
	require.NoError(t, err, "a code is valid for its whole TTL")

	_, err = q.Open(code, t0.Add(2*time.Minute+time.Second))
	assert.ErrorIs(t, err, ErrExpiredCode)
	assert.NotErrorIs(t, err, ErrInvalidCode)

	_, err = q.Open(code, t0.Add(24*time.Hour))
	assert.ErrorIs(t, err, ErrExpiredCode, "a screenshot from yesterday does not seat anyone")
}

func TestDefaultTTL(t *testing.T) {
	q, err := NewQRGenerator("kiosk-secret", 0)
	require.NoError(t, err)

	code, err := q.Seal(models.PassInstance{ID: "pass-1", OwnerID: "alice"}, t0)
	require.NoError(t, err)

	_, err = q.Open(code, t0.Add(DefaultTTL))
	require.NoError(t, err)
	_, err = q.Open(code, t0.Add(DefaultTTL+time.Second))
	assert.ErrorIs(t, err, ErrExpiredCode)
}
