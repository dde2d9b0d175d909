// Package crypto implements field-level authenticated encryption for card
// data using AES-256-GCM. Each call draws a fresh random 96-bit IV; the
// ciphertext and IV are returned base64-encoded for storage in separate
// database columns.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"fuelpay/internal/errors"
)

const (
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32
	// ivSize is the GCM nonce length in bytes.
	ivSize = 12
)

// NewDataKey generates a random 256-bit key, used both for data-encryption
// keys and for single-use ephemeral session keys.
func NewDataKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return key, nil
}

// EncryptField encrypts a single plaintext field under key with a fresh
// random IV. Returns base64 ciphertext (including the GCM tag) and base64 IV.
func EncryptField(key []byte, plaintext string) (ciphertext, iv string, err error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", "", err
	}

	rawIV := make([]byte, ivSize)
	if _, err := io.ReadFull(rand.Reader, rawIV); err != nil {
		return "", "", fmt.Errorf("generate iv: %w", err)
	}

	sealed := gcm.Seal(nil, rawIV, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), base64.StdEncoding.EncodeToString(rawIV), nil
}

// DecryptField decrypts a field produced by EncryptField. An authentication
// failure (tampered ciphertext, wrong key, mismatched IV) returns
// ErrDecryptionFailed; it never degrades to a default value.
func DecryptField(key []byte, ciphertext, iv string) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	sealed, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", errors.ErrDecryptionFailed
	}
	rawIV, err := base64.StdEncoding.DecodeString(iv)
	if err != nil || len(rawIV) != ivSize {
		return "", errors.ErrDecryptionFailed
	}

	plaintext, err := gcm.Open(nil, rawIV, sealed, nil)
	if err != nil {
		return "", errors.ErrDecryptionFailed
	}
	return string(plaintext), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}
	return gcm, nil
}
