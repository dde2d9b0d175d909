package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"fuelpay/internal/model"
)

// NfcTransactionRepository defines persistence for NFC payment attempts.
// Rows are append-only apart from status transitions.
type NfcTransactionRepository interface {
	Create(ctx context.Context, tx *model.NfcPaymentTransaction) error
	Save(ctx context.Context, tx *model.NfcPaymentTransaction) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.NfcPaymentTransaction, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.NfcPaymentTransaction, error)
	ListByDriver(ctx context.Context, driverID uuid.UUID, limit int) ([]model.NfcPaymentTransaction, error)
	RecordSettlement(ctx context.Context, settlement *model.FuelTransaction) error
	WithTransaction(ctx context.Context, fn func(ctx context.Context, repo NfcTransactionRepository) error) error
}

type nfcTransactionRepository struct {
	db *gorm.DB
}

// NewNfcTransactionRepository creates a new NFC transaction repository.
func NewNfcTransactionRepository(db *gorm.DB) NfcTransactionRepository {
	return &nfcTransactionRepository{db: db}
}

// Create inserts a new transaction row.
func (r *nfcTransactionRepository) Create(ctx context.Context, tx *model.NfcPaymentTransaction) error {
	return r.db.WithContext(ctx).Create(tx).Error
}

// Save persists a status transition.
func (r *nfcTransactionRepository) Save(ctx context.Context, tx *model.NfcPaymentTransaction) error {
	return r.db.WithContext(ctx).Save(tx).Error
}

// FindByID finds a transaction by ID.
func (r *nfcTransactionRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.NfcPaymentTransaction, error) {
	var tx model.NfcPaymentTransaction
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&tx).Error; err != nil {
		return nil, err
	}
	return &tx, nil
}

// FindByIDForUpdate finds a transaction by ID with a row lock.
func (r *nfcTransactionRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.NfcPaymentTransaction, error) {
	var tx model.NfcPaymentTransaction
	err := r.db.WithContext(ctx).
		Set("gorm:query_option", "FOR UPDATE").
		Where("id = ?", id).
		First(&tx).Error
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// ListByDriver returns a driver's most recent payment attempts.
func (r *nfcTransactionRepository) ListByDriver(ctx context.Context, driverID uuid.UUID, limit int) ([]model.NfcPaymentTransaction, error) {
	var txs []model.NfcPaymentTransaction
	err := r.db.WithContext(ctx).
		Where("driver_id = ?", driverID).
		Order("created_at DESC").
		Limit(limit).
		Find(&txs).Error
	if err != nil {
		return nil, err
	}
	return txs, nil
}

// RecordSettlement inserts the fuel ledger row produced by a settlement callback.
func (r *nfcTransactionRepository) RecordSettlement(ctx context.Context, settlement *model.FuelTransaction) error {
	return r.db.WithContext(ctx).Create(settlement).Error
}

// WithTransaction executes fn within a database transaction.
func (r *nfcTransactionRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context, repo NfcTransactionRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := &nfcTransactionRepository{db: tx}
		return fn(ctx, txRepo)
	})
}
