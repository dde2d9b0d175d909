package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"fuelpay/internal/model"
)

// CardRepository defines payment card persistence operations.
type CardRepository interface {
	Create(ctx context.Context, card *model.PaymentCard) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.PaymentCard, error)
	FindDefaultActive(ctx context.Context, orgID uuid.UUID) (*model.PaymentCard, error)
	ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]model.PaymentCard, error)
	ClearDefault(ctx context.Context, orgID uuid.UUID) error
	Deactivate(ctx context.Context, id uuid.UUID) error
	WithTransaction(ctx context.Context, fn func(ctx context.Context, repo CardRepository) error) error
}

type cardRepository struct {
	db *gorm.DB
}

// NewCardRepository creates a new card repository.
func NewCardRepository(db *gorm.DB) CardRepository {
	return &cardRepository{db: db}
}

// Create inserts a new card row.
func (r *cardRepository) Create(ctx context.Context, card *model.PaymentCard) error {
	return r.db.WithContext(ctx).Create(card).Error
}

// FindByID finds a card by ID.
func (r *cardRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.PaymentCard, error) {
	var card model.PaymentCard
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&card).Error; err != nil {
		return nil, err
	}
	return &card, nil
}

// FindDefaultActive returns the organization's default active card.
func (r *cardRepository) FindDefaultActive(ctx context.Context, orgID uuid.UUID) (*model.PaymentCard, error) {
	var card model.PaymentCard
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND is_default = ? AND active = ?", orgID, true, true).
		First(&card).Error
	if err != nil {
		return nil, err
	}
	return &card, nil
}

// ListByOrganization returns all cards for an organization, newest first.
func (r *cardRepository) ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]model.PaymentCard, error) {
	var cards []model.PaymentCard
	err := r.db.WithContext(ctx).
		Where("organization_id = ?", orgID).
		Order("created_at DESC").
		Find(&cards).Error
	if err != nil {
		return nil, err
	}
	return cards, nil
}

// ClearDefault clears the default flag on every card of the organization.
// Run inside the same transaction that inserts the replacement default so a
// concurrent reader never observes two defaults.
func (r *cardRepository) ClearDefault(ctx context.Context, orgID uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&model.PaymentCard{}).
		Where("organization_id = ? AND is_default = ?", orgID, true).
		Update("is_default", false).Error
}

// Deactivate logically deactivates a card. Cards are never physically deleted.
func (r *cardRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&model.PaymentCard{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"active": false, "is_default": false}).Error
}

// WithTransaction executes a function within a database transaction.
func (r *cardRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context, repo CardRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := &cardRepository{db: tx}
		return fn(ctx, txRepo)
	})
}
