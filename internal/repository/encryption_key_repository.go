package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"fuelpay/internal/model"
)

// EncryptionKeyRepository defines persistence for wrapped data-encryption keys.
type EncryptionKeyRepository interface {
	Create(ctx context.Context, key *model.EncryptionKey) error
	FindActive(ctx context.Context) (*model.EncryptionKey, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.EncryptionKey, error)
	MaxVersion(ctx context.Context) (int, error)
	WithTransaction(ctx context.Context, fn func(ctx context.Context, repo EncryptionKeyRepository) error) error
}

type encryptionKeyRepository struct {
	db *gorm.DB
}

// NewEncryptionKeyRepository creates a new encryption key repository.
func NewEncryptionKeyRepository(db *gorm.DB) EncryptionKeyRepository {
	return &encryptionKeyRepository{db: db}
}

// Create persists a new wrapped key version.
func (r *encryptionKeyRepository) Create(ctx context.Context, key *model.EncryptionKey) error {
	return r.db.WithContext(ctx).Create(key).Error
}

// FindActive returns the single active key version.
func (r *encryptionKeyRepository) FindActive(ctx context.Context) (*model.EncryptionKey, error) {
	var key model.EncryptionKey
	if err := r.db.WithContext(ctx).Where("active = ?", true).First(&key).Error; err != nil {
		return nil, err
	}
	return &key, nil
}

// FindByID finds a key version by ID. Inactive versions remain resolvable so
// cards encrypted under them can still be decrypted.
func (r *encryptionKeyRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.EncryptionKey, error) {
	var key model.EncryptionKey
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&key).Error; err != nil {
		return nil, err
	}
	return &key, nil
}

// MaxVersion returns the highest key version, 0 when no keys exist.
func (r *encryptionKeyRepository) MaxVersion(ctx context.Context) (int, error) {
	var version *int
	err := r.db.WithContext(ctx).Model(&model.EncryptionKey{}).
		Select("MAX(version)").Scan(&version).Error
	if err != nil {
		return 0, err
	}
	if version == nil {
		return 0, nil
	}
	return *version, nil
}

// WithTransaction executes a function within a database transaction.
func (r *encryptionKeyRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context, repo EncryptionKeyRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := &encryptionKeyRepository{db: tx}
		return fn(ctx, txRepo)
	})
}
