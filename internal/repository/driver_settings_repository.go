package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fuelpay/internal/model"
)

// DriverSettingsRepository defines persistence for per-driver payment
// settings (PIN hash, lockout accounting, spend limits).
type DriverSettingsRepository interface {
	FindByDriverID(ctx context.Context, driverID uuid.UUID) (*model.DriverPaymentSettings, error)
	// FindByDriverIDForUpdate takes a row-level lock. Every PIN verification
	// runs through this inside a transaction so concurrent attempts serialize
	// their counter increment and lockout decision.
	FindByDriverIDForUpdate(ctx context.Context, driverID uuid.UUID) (*model.DriverPaymentSettings, error)
	Save(ctx context.Context, settings *model.DriverPaymentSettings) error
	Upsert(ctx context.Context, settings *model.DriverPaymentSettings) error
	WithTransaction(ctx context.Context, fn func(ctx context.Context, repo DriverSettingsRepository) error) error
}

type driverSettingsRepository struct {
	db *gorm.DB
}

// NewDriverSettingsRepository creates a new driver settings repository.
func NewDriverSettingsRepository(db *gorm.DB) DriverSettingsRepository {
	return &driverSettingsRepository{db: db}
}

// FindByDriverID finds settings for a driver.
func (r *driverSettingsRepository) FindByDriverID(ctx context.Context, driverID uuid.UUID) (*model.DriverPaymentSettings, error) {
	var settings model.DriverPaymentSettings
	if err := r.db.WithContext(ctx).Where("driver_id = ?", driverID).First(&settings).Error; err != nil {
		return nil, err
	}
	return &settings, nil
}

// FindByDriverIDForUpdate finds settings with a row-level lock for update.
func (r *driverSettingsRepository) FindByDriverIDForUpdate(ctx context.Context, driverID uuid.UUID) (*model.DriverPaymentSettings, error) {
	var settings model.DriverPaymentSettings
	err := r.db.WithContext(ctx).Set("gorm:query_option", "FOR UPDATE").
		Where("driver_id = ?", driverID).First(&settings).Error
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

// Save persists changes to an existing settings row.
func (r *driverSettingsRepository) Save(ctx context.Context, settings *model.DriverPaymentSettings) error {
	return r.db.WithContext(ctx).Save(settings).Error
}

// Upsert inserts or updates the settings row keyed by driver.
func (r *driverSettingsRepository) Upsert(ctx context.Context, settings *model.DriverPaymentSettings) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "driver_id"}},
		UpdateAll: true,
	}).Create(settings).Error
}

// WithTransaction executes a function within a database transaction.
func (r *driverSettingsRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context, repo DriverSettingsRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := &driverSettingsRepository{db: tx}
		return fn(ctx, txRepo)
	})
}
