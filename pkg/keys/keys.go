// Package keys derives purpose-bound keys from the configured master secret.
package keys

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Key purposes.
const (
	PurposeToken   = "timelock-token-v1"
	PurposeWebhook = "timelock-webhook-v1"
)

// KeyLength is the size of every derived key.
const KeyLength = 32

// ErrEmptySecret is returned when no master secret is configured.
var ErrEmptySecret = errors.New("keys: master secret is empty")

// Derive returns a KeyLength-byte key bound to purpose using HKDF-SHA256.
func Derive(master []byte, purpose string) ([]byte, error) {
	if len(master) == 0 {
		return nil, ErrEmptySecret
	}
	r := hkdf.New(sha256.New, master, nil, []byte(purpose))
	key := make([]byte, KeyLength)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("keys: derive %s: %w", purpose, err)
	}
	return key, nil
}
