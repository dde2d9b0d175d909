package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"

	"fuelpay/internal/cache"
	"fuelpay/internal/errors"
)

// sessionKeyTTL bounds how long an unclaimed ephemeral key survives. The NFC
// hop happens within seconds; anything older is abandoned.
const sessionKeyTTL = 90 * time.Second

// SessionKeyStore holds ephemeral payload keys between payment preparation
// and the point-of-sale device's one-time fetch. Keys expire quickly and can
// be taken exactly once; nothing here is durable storage.
//
// This is the second channel of the key split: the driver app receives only
// the ciphertext, the POS device fetches the key here over its own
// authenticated connection.
type SessionKeyStore interface {
	Put(ctx context.Context, transactionID uuid.UUID, key []byte) error
	// Take returns the key and removes it atomically. A second Take for the
	// same transaction fails with ErrSessionKeyNotFound.
	Take(ctx context.Context, transactionID uuid.UUID) ([]byte, error)
}

type redisSessionKeyStore struct {
	cache *cache.Client
}

// NewSessionKeyStore creates a Redis-backed session key store.
func NewSessionKeyStore(cache *cache.Client) SessionKeyStore {
	return &redisSessionKeyStore{cache: cache}
}

func sessionKeyCacheKey(transactionID uuid.UUID) string {
	return "nfc:session_key:" + transactionID.String()
}

// Put stores the ephemeral key with a short TTL. Errors are not swallowed: a
// key that cannot be stored means the POS device could never decrypt, so the
// preparation must fail instead.
func (s *redisSessionKeyStore) Put(ctx context.Context, transactionID uuid.UUID, key []byte) error {
	encoded := base64.StdEncoding.EncodeToString(key)
	if err := s.cache.SetStrict(ctx, sessionKeyCacheKey(transactionID), []byte(encoded), sessionKeyTTL); err != nil {
		return fmt.Errorf("store session key: %w", err)
	}
	return nil
}

// Take consumes the ephemeral key.
func (s *redisSessionKeyStore) Take(ctx context.Context, transactionID uuid.UUID) ([]byte, error) {
	data, err := s.cache.GetDelStrict(ctx, sessionKeyCacheKey(transactionID))
	if err != nil {
		if err == cache.ErrNotFound {
			return nil, errors.ErrSessionKeyNotFound
		}
		return nil, fmt.Errorf("take session key: %w", err)
	}
	key, err := base64.StdEncoding.DecodeString(string(data))
	if err != nil {
		return nil, errors.ErrSessionKeyNotFound
	}
	return key, nil
}
