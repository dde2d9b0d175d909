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

// CardInput is the raw card data supplied at registration. It only ever
// lives in memory; every sensitive field is encrypted before persistence.
type CardInput struct {
	Number      string
	HolderName  string
	ExpiryMonth string
	ExpiryYear  string
	CVV         string
	CardType    string
	Nickname    string
}

// CardSummary is the non-sensitive view returned from registration.
type CardSummary struct {
	ID        uuid.UUID `json:"id"`
	Brand     string    `json:"brand"`
	CardType  string    `json:"card_type"`
	LastFour  string    `json:"last_four"`
	Nickname  string    `json:"nickname"`
	IsDefault bool      `json:"is_default"`
}

// DecryptedCard is a card with its five sensitive fields decrypted, built
// only inside a payment preparation and never serialized to storage.
type DecryptedCard struct {
	ID          uuid.UUID
	Number      string
	HolderName  string
	ExpiryMonth string
	ExpiryYear  string
	CVV         string
	Brand       string
	LastFour    string
}

// CardVault owns encrypted payment card rows. Registration encrypts each
// sensitive field independently under the active DEK and keeps the
// one-default-per-organization invariant; raw card data never leaves it
// except to the NFC preparer for payload building.
type CardVault interface {
	RegisterCard(ctx context.Context, orgID uuid.UUID, input CardInput, createdBy uuid.UUID) (*CardSummary, error)
	// GetDefaultActiveCard returns (nil, nil) when the organization has no
	// active default card: "no card on file" is a state, not an error.
	GetDefaultActiveCard(ctx context.Context, orgID uuid.UUID) (*model.PaymentCard, error)
	// Decrypt resolves the card's DEK version and decrypts all five fields.
	Decrypt(ctx context.Context, card *model.PaymentCard) (*DecryptedCard, error)
	// DeactivateCard logically deactivates a card; rows are never deleted.
	DeactivateCard(ctx context.Context, orgID, cardID uuid.UUID) error
}

type cardVault struct {
	cardRepo  repository.CardRepository
	keyVault  KeyVault
	validator *CardValidator
}

// NewCardVault creates a new card vault.
func NewCardVault(cardRepo repository.CardRepository, keyVault KeyVault) CardVault {
	return &cardVault{
		cardRepo:  cardRepo,
		keyVault:  keyVault,
		validator: NewCardValidator(),
	}
}

// RegisterCard validates, encrypts, and stores a new default card.
func (s *cardVault) RegisterCard(ctx context.Context, orgID uuid.UUID, input CardInput, createdBy uuid.UUID) (*CardSummary, error) {
	// The master-key precondition runs before validation touches anything
	// persistent, so a misconfigured process can never write a partial row.
	if err := s.keyVault.Ready(); err != nil {
		return nil, err
	}

	if err := s.validator.ValidateCard(input.Number, input.ExpiryMonth, input.ExpiryYear, input.CVV); err != nil {
		return nil, err
	}
	number := s.validator.NormalizeNumber(input.Number)

	key, dek, err := s.keyVault.GetOrCreateActiveKey(ctx)
	if err != nil {
		return nil, err
	}

	card := &model.PaymentCard{
		OrganizationID:  orgID,
		EncryptionKeyID: key.ID,
		Brand:           s.validator.DetectBrand(number),
		CardType:        input.CardType,
		LastFour:        s.validator.LastFour(number),
		Nickname:        input.Nickname,
		Active:          true,
		IsDefault:       true,
		CreatedBy:       createdBy,
	}
	if card.CardType == "" {
		card.CardType = "credit"
	}

	// Five independent encryptions, five independent IVs.
	fields := []struct {
		plaintext  string
		ciphertext *string
		iv         *string
	}{
		{number, &card.NumberCiphertext, &card.NumberIV},
		{input.HolderName, &card.HolderNameCiphertext, &card.HolderNameIV},
		{input.ExpiryMonth, &card.ExpiryMonthCiphertext, &card.ExpiryMonthIV},
		{input.ExpiryYear, &card.ExpiryYearCiphertext, &card.ExpiryYearIV},
		{input.CVV, &card.CVVCiphertext, &card.CVVIV},
	}
	for _, f := range fields {
		ciphertext, iv, err := crypto.EncryptField(dek, f.plaintext)
		if err != nil {
			return nil, fmt.Errorf("encrypt card field: %w", err)
		}
		*f.ciphertext = ciphertext
		*f.iv = iv
	}

	// Clearing the old default and inserting the new one share a transaction
	// so no reader observes two defaults or none.
	err = s.cardRepo.WithTransaction(ctx, func(ctx context.Context, repo repository.CardRepository) error {
		if err := repo.ClearDefault(ctx, orgID); err != nil {
			return fmt.Errorf("clear previous default: %w", err)
		}
		if err := repo.Create(ctx, card); err != nil {
			return fmt.Errorf("create card: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &CardSummary{
		ID:        card.ID,
		Brand:     card.Brand,
		CardType:  card.CardType,
		LastFour:  card.LastFour,
		Nickname:  card.Nickname,
		IsDefault: card.IsDefault,
	}, nil
}

// GetDefaultActiveCard returns the organization's default active card or nil.
func (s *cardVault) GetDefaultActiveCard(ctx context.Context, orgID uuid.UUID) (*model.PaymentCard, error) {
	card, err := s.cardRepo.FindDefaultActive(ctx, orgID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("find default card: %w", err)
	}
	return card, nil
}

// Decrypt unwraps the card's DEK and decrypts its five fields.
func (s *cardVault) Decrypt(ctx context.Context, card *model.PaymentCard) (*DecryptedCard, error) {
	dek, err := s.keyVault.Unwrap(ctx, card.EncryptionKeyID)
	if err != nil {
		return nil, err
	}

	decrypted := &DecryptedCard{
		ID:       card.ID,
		Brand:    card.Brand,
		LastFour: card.LastFour,
	}
	fields := []struct {
		ciphertext string
		iv         string
		out        *string
	}{
		{card.NumberCiphertext, card.NumberIV, &decrypted.Number},
		{card.HolderNameCiphertext, card.HolderNameIV, &decrypted.HolderName},
		{card.ExpiryMonthCiphertext, card.ExpiryMonthIV, &decrypted.ExpiryMonth},
		{card.ExpiryYearCiphertext, card.ExpiryYearIV, &decrypted.ExpiryYear},
		{card.CVVCiphertext, card.CVVIV, &decrypted.CVV},
	}
	for _, f := range fields {
		plaintext, err := crypto.DecryptField(dek, f.ciphertext, f.iv)
		if err != nil {
			return nil, err
		}
		*f.out = plaintext
	}
	return decrypted, nil
}

// DeactivateCard logically deactivates an organization's card.
func (s *cardVault) DeactivateCard(ctx context.Context, orgID, cardID uuid.UUID) error {
	card, err := s.cardRepo.FindByID(ctx, cardID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return errors.ErrNoCardOnFile
		}
		return fmt.Errorf("find card: %w", err)
	}
	if card.OrganizationID != orgID {
		return errors.ErrForbidden
	}
	return s.cardRepo.Deactivate(ctx, cardID)
}
