// Package qr turns a pass into a sealed entry code and back. The kiosk
// scans the code and the service opens it to learn which pass to seat.
package qr

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/skip2/go-qrcode"

	"ms-seating/internal/models"
)

var (
	ErrInvalidCode = errors.New("invalid entry code")
	ErrExpiredCode = errors.New("entry code expired")
)

// DefaultTTL is how long a code stays valid when no TTL is configured.
const DefaultTTL = 5 * time.Minute

// EntryCode is what an encrypted QR code carries.
type EntryCode struct {
	PassID   string    `json:"pass_id"`
	OwnerID  string    `json:"owner_id"`
	IssuedAt time.Time `json:"issued_at"`
}

type QRGenerator struct {
	aead cipher.AEAD
	size int
	ttl  time.Duration
}

// NewQRGenerator seals codes with secret. Open refuses codes older than
// ttl; a non-positive ttl means DefaultTTL.
func NewQRGenerator(secret string, ttl time.Duration) (*QRGenerator, error) {
	if secret == "" {
		return nil, errors.New("qr secret is empty")
	}
	hashed := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	block, err := aes.NewCipher(hashed[:])
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &QRGenerator{aead: aead, size: 256, ttl: ttl}, nil
}

// Seal encrypts the entry code of p into a URL-safe string.
func (q *QRGenerator) Seal(p models.PassInstance, now time.Time) (string, error) {
	data, err := json.Marshal(EntryCode{PassID: p.ID, OwnerID: p.OwnerID, IssuedAt: now.UTC()})
	if err != nil {
		return "", err
	}

	nonce := make([]byte, q.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := q.aead.Seal(nonce, nonce, data, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open decrypts a sealed entry code as of now. Tampered or foreign codes
// fail with ErrInvalidCode, codes issued more than the TTL before now with
// ErrExpiredCode.
func (q *QRGenerator) Open(code string, now time.Time) (*EntryCode, error) {
	raw, err := base64.RawURLEncoding.DecodeString(code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCode, err)
	}
	n := q.aead.NonceSize()
	if len(raw) < n {
		return nil, fmt.Errorf("%w: too short", ErrInvalidCode)
	}
	data, err := q.aead.Open(nil, raw[:n], raw[n:], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCode, err)
	}

	var ec EntryCode
	if err := json.Unmarshal(data, &ec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCode, err)
	}
	if ec.PassID == "" || ec.OwnerID == "" {
		return nil, fmt.Errorf("%w: incomplete", ErrInvalidCode)
	}
	if age := now.Sub(ec.IssuedAt); age > q.ttl {
		return nil, fmt.Errorf("%w: issued %s ago", ErrExpiredCode, age.Truncate(time.Second))
	}
	return &ec, nil
}

// GenerateEncryptedQR renders the sealed entry code of p as a PNG.
func (q *QRGenerator) GenerateEncryptedQR(p models.PassInstance, now time.Time) ([]byte, error) {
	sealed, err := q.Seal(p, now)
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(sealed, qrcode.Medium, q.size)
}
