package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"fuelpay/internal/crypto"
	"fuelpay/internal/errors"
	"fuelpay/internal/model"
	"fuelpay/internal/repository"
)

const keyAlgorithm = "AES-256-GCM"

// KeyVault manages versioned data-encryption keys. DEKs are generated on
// demand, wrapped under the master key, and stored only in wrapped form. The
// master key is injected once at construction; it is never persisted.
type KeyVault interface {
	// GetOrCreateActiveKey returns the active key row and its plaintext DEK,
	// creating version max+1 if no active key exists.
	GetOrCreateActiveKey(ctx context.Context) (*model.EncryptionKey, []byte, error)
	// Unwrap decrypts the stored DEK for any key version, active or not.
	Unwrap(ctx context.Context, keyID uuid.UUID) ([]byte, error)
	// Ready reports whether the master key is configured. Handlers use it to
	// fail encryption endpoints before any database work.
	Ready() error
}

type keyVault struct {
	masterKey []byte
	keyRepo   repository.EncryptionKeyRepository
}

// NewKeyVault creates a key vault around the injected master key. A missing
// or wrongly sized master key is not fatal at construction; every operation
// returns ErrKeyUnavailable until the process is restarted with a valid key,
// so nothing partially encrypted can ever be written.
func NewKeyVault(masterKey []byte, keyRepo repository.EncryptionKeyRepository) KeyVault {
	if len(masterKey) != crypto.KeySize {
		masterKey = nil
	}
	return &keyVault{masterKey: masterKey, keyRepo: keyRepo}
}

// Ready reports whether the master key is configured.
func (v *keyVault) Ready() error {
	if v.masterKey == nil {
		return errors.ErrKeyUnavailable
	}
	return nil
}

// GetOrCreateActiveKey returns the active DEK, creating one when none exists.
func (v *keyVault) GetOrCreateActiveKey(ctx context.Context) (*model.EncryptionKey, []byte, error) {
	if err := v.Ready(); err != nil {
		return nil, nil, err
	}

	key, err := v.keyRepo.FindActive(ctx)
	if err == nil {
		dek, err := v.unwrapRow(key)
		if err != nil {
			return nil, nil, err
		}
		return key, dek, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, nil, fmt.Errorf("find active key: %w", err)
	}

	// Lazy creation on first use. The transaction re-checks the active row so
	// two concurrent first registrations agree on a single version.
	var (
		created *model.EncryptionKey
		dek     []byte
	)
	err = v.keyRepo.WithTransaction(ctx, func(ctx context.Context, repo repository.EncryptionKeyRepository) error {
		existing, err := repo.FindActive(ctx)
		if err == nil {
			created = existing
			dek, err = v.unwrapRow(existing)
			return err
		}
		if err != gorm.ErrRecordNotFound {
			return fmt.Errorf("recheck active key: %w", err)
		}

		plaintext, err := crypto.NewDataKey()
		if err != nil {
			return err
		}
		wrapped, iv, err := crypto.EncryptField(v.masterKey, string(plaintext))
		if err != nil {
			return fmt.Errorf("wrap dek: %w", err)
		}

		maxVersion, err := repo.MaxVersion(ctx)
		if err != nil {
			return fmt.Errorf("max key version: %w", err)
		}

		key := &model.EncryptionKey{
			Ciphertext: wrapped,
			IV:         iv,
			Algorithm:  keyAlgorithm,
			Version:    maxVersion + 1,
			Active:     true,
		}
		if err := repo.Create(ctx, key); err != nil {
			return fmt.Errorf("create key: %w", err)
		}
		created = key
		dek = plaintext
		return nil
	})
	if err != nil {
		// Two first uses can race past the not-found check before either
		// commits; the unique version index rejects the loser. Adopt the
		// winner's key instead of surfacing the conflict.
		if winner, ferr := v.keyRepo.FindActive(ctx); ferr == nil {
			winnerDek, derr := v.unwrapRow(winner)
			if derr != nil {
				return nil, nil, derr
			}
			return winner, winnerDek, nil
		}
		return nil, nil, err
	}
	return created, dek, nil
}

// Unwrap decrypts the stored DEK ciphertext for the given key version.
func (v *keyVault) Unwrap(ctx context.Context, keyID uuid.UUID) ([]byte, error) {
	if err := v.Ready(); err != nil {
		return nil, err
	}

	key, err := v.keyRepo.FindByID(ctx, keyID)
	if err != nil {
		return nil, fmt.Errorf("find key %s: %w", keyID, err)
	}
	return v.unwrapRow(key)
}

func (v *keyVault) unwrapRow(key *model.EncryptionKey) ([]byte, error) {
	plaintext, err := crypto.DecryptField(v.masterKey, key.Ciphertext, key.IV)
	if err != nil {
		// Authentication failure here means the stored key material does not
		// match the master key: corruption or a swapped master key.
		return nil, errors.ErrKeyCorrupt
	}
	dek := []byte(plaintext)
	if len(dek) != crypto.KeySize {
		return nil, errors.ErrKeyCorrupt
	}
	return dek, nil
}
