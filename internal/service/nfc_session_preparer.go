package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"fuelpay/internal/crypto"
	"fuelpay/internal/errors"
	"fuelpay/internal/model"
	"fuelpay/internal/repository"
)

// PrepareRequest carries one payment preparation attempt.
type PrepareRequest struct {
	DriverID          uuid.UUID
	OrganizationID    uuid.UUID
	Pin               string
	Amount            decimal.Decimal
	VehicleID         *uuid.UUID
	FuelTransactionID *uuid.UUID
	DeviceInfo        string
	Location          string
}

// PrepareResult is the outcome of a successful preparation. EphemeralKey is
// handed to the session key store for the POS channel and returned here for
// the caller to route; it is never persisted.
type PrepareResult struct {
	TransactionID uuid.UUID
	Ciphertext    string
	IV            string
	EphemeralKey  []byte
	PaymentType   model.PaymentType
	DisplayInfo   string
}

// nfcPayload is the plaintext payment payload encrypted under the ephemeral
// key for the NFC hop.
type nfcPayload struct {
	TransactionID string `json:"transaction_id"`
	PaymentType   string `json:"payment_type"`
	Amount        string `json:"amount"`

	CardNumber     string `json:"card_number,omitempty"`
	CardHolderName string `json:"card_holder_name,omitempty"`
	CardExpiry     string `json:"card_expiry,omitempty"`
	CardCVV        string `json:"card_cvv,omitempty"`

	FuelAccountNumber string `json:"fuel_account_number,omitempty"`
}

// NfcSessionPreparer turns a verified PIN into a short-lived encrypted
// payment payload. It orchestrates PIN verification, spend limits, payment
// method resolution, card decryption, and the transaction state machine.
type NfcSessionPreparer interface {
	PreparePayment(ctx context.Context, req PrepareRequest) (*PrepareResult, error)
	// LinkSettlement records a settled purchase against an nfc_ready attempt
	// and advances it to linked.
	LinkSettlement(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (*model.NfcPaymentTransaction, error)
	// GetTransaction returns a payment attempt for auditing, including
	// terminal failed rows.
	GetTransaction(ctx context.Context, id uuid.UUID) (*model.NfcPaymentTransaction, error)
}

type nfcSessionPreparer struct {
	pinAuth     PinAuthenticator
	limitGuard  SpendLimitGuard
	cardVault   CardVault
	orgRepo     repository.OrganizationRepository
	nfcRepo     repository.NfcTransactionRepository
	sessionKeys SessionKeyStore
	now         func() time.Time
}

// NewNfcSessionPreparer creates a new NFC session preparer.
func NewNfcSessionPreparer(
	pinAuth PinAuthenticator,
	limitGuard SpendLimitGuard,
	cardVault CardVault,
	orgRepo repository.OrganizationRepository,
	nfcRepo repository.NfcTransactionRepository,
	sessionKeys SessionKeyStore,
) NfcSessionPreparer {
	return &nfcSessionPreparer{
		pinAuth:     pinAuth,
		limitGuard:  limitGuard,
		cardVault:   cardVault,
		orgRepo:     orgRepo,
		nfcRepo:     nfcRepo,
		sessionKeys: sessionKeys,
		now:         time.Now,
	}
}

// PreparePayment runs the full preparation pipeline. Any failure after the
// transaction row is inserted marks the row failed so every attempt stays
// auditable.
func (s *nfcSessionPreparer) PreparePayment(ctx context.Context, req PrepareRequest) (*PrepareResult, error) {
	pinEnteredAt := s.now()

	if req.DriverID == uuid.Nil || req.OrganizationID == uuid.Nil || req.Pin == "" || !req.Amount.IsPositive() {
		return nil, errors.ErrBadRequest
	}

	if err := s.pinAuth.VerifyPin(ctx, req.DriverID, req.Pin); err != nil {
		return nil, err
	}
	pinVerifiedAt := s.now()

	if err := s.limitGuard.CheckLimits(ctx, req.DriverID, req.Amount); err != nil {
		return nil, err
	}

	org, err := s.orgRepo.FindByID(ctx, req.OrganizationID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("find organization: %w", err)
	}
	if !org.Active {
		return nil, errors.ErrOrganizationNotFound
	}

	tx := &model.NfcPaymentTransaction{
		DriverID:          req.DriverID,
		OrganizationID:    req.OrganizationID,
		VehicleID:         req.VehicleID,
		Amount:            req.Amount,
		Status:            model.NfcStatusPinVerified,
		PinEnteredAt:      pinEnteredAt,
		PinVerifiedAt:     &pinVerifiedAt,
		DeviceInfo:        req.DeviceInfo,
		Location:          req.Location,
		FuelTransactionID: req.FuelTransactionID,
	}

	payload := nfcPayload{Amount: req.Amount.StringFixed(2)}
	var displayInfo string

	switch org.PaymentOption {
	case model.PaymentOptionFuelAccount:
		if req.VehicleID == nil {
			return nil, errors.ErrBadRequest
		}
		vehicle, err := s.orgRepo.FindVehicle(ctx, req.OrganizationID, *req.VehicleID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil, errors.ErrVehicleNotFound
			}
			return nil, fmt.Errorf("find vehicle: %w", err)
		}
		tx.PaymentType = model.PaymentTypeFuelAccount
		payload.PaymentType = string(model.PaymentTypeFuelAccount)
		payload.FuelAccountNumber = vehicle.FuelAccountNumber
		displayInfo = "Fuel account, vehicle " + vehicle.PlateNumber

	default:
		card, err := s.cardVault.GetDefaultActiveCard(ctx, req.OrganizationID)
		if err != nil {
			return nil, err
		}
		if card == nil {
			return nil, errors.ErrNoCardOnFile
		}
		decrypted, err := s.cardVault.Decrypt(ctx, card)
		if err != nil {
			return nil, err
		}
		tx.PaymentType = model.PaymentTypeCard
		tx.CardID = &card.ID
		payload.PaymentType = string(model.PaymentTypeCard)
		payload.CardNumber = decrypted.Number
		payload.CardHolderName = decrypted.HolderName
		payload.CardExpiry = decrypted.ExpiryMonth + "/" + decrypted.ExpiryYear
		payload.CardCVV = decrypted.CVV
		displayInfo = fmt.Sprintf("%s ****%s", card.Brand, card.LastFour)
	}

	// From here on the attempt is on record; failures transition it to a
	// terminal failed state instead of vanishing.
	if err := s.nfcRepo.Create(ctx, tx); err != nil {
		return nil, fmt.Errorf("create nfc transaction: %w", err)
	}
	payload.TransactionID = tx.ID.String()

	result, err := s.sealPayload(ctx, tx, payload)
	if err != nil {
		s.failTransaction(ctx, tx, err)
		return nil, err
	}
	result.PaymentType = tx.PaymentType
	result.DisplayInfo = displayInfo

	nfcActivatedAt := s.now()
	tx.Status = model.NfcStatusNfcReady
	tx.NfcActivatedAt = &nfcActivatedAt
	if err := s.nfcRepo.Save(ctx, tx); err != nil {
		s.failTransaction(ctx, tx, err)
		return nil, fmt.Errorf("mark nfc ready: %w", err)
	}

	return result, nil
}

// sealPayload encrypts the payload under a fresh single-use key and hands the
// key to the session key store for the POS channel.
func (s *nfcSessionPreparer) sealPayload(ctx context.Context, tx *model.NfcPaymentTransaction, payload nfcPayload) (*PrepareResult, error) {
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	ephemeralKey, err := crypto.NewDataKey()
	if err != nil {
		return nil, err
	}
	ciphertext, iv, err := crypto.EncryptField(ephemeralKey, string(plaintext))
	if err != nil {
		return nil, fmt.Errorf("encrypt payload: %w", err)
	}

	if err := s.sessionKeys.Put(ctx, tx.ID, ephemeralKey); err != nil {
		return nil, err
	}

	return &PrepareResult{
		TransactionID: tx.ID,
		Ciphertext:    ciphertext,
		IV:            iv,
		EphemeralKey:  ephemeralKey,
	}, nil
}

// failTransaction moves a row to its terminal failed state. A failure to
// record the failure is logged; the original error still propagates.
func (s *nfcSessionPreparer) failTransaction(ctx context.Context, tx *model.NfcPaymentTransaction, cause error) {
	tx.Status = model.NfcStatusFailed
	tx.FailureReason = cause.Error()
	if err := s.nfcRepo.Save(ctx, tx); err != nil {
		log.Printf("nfc transaction %s: record failure: %v (cause: %v)", tx.ID, err, cause)
	}
}

// LinkSettlement writes the settled amount into the fuel ledger and moves the
// attempt from nfc_ready to linked. Only nfc_ready attempts can settle. The
// settled amount may differ from the prepared one (partial fills at the pump).
// The status check and both writes run in one transaction with the attempt
// row locked, so a retried callback cannot record the purchase twice.
func (s *nfcSessionPreparer) LinkSettlement(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (*model.NfcPaymentTransaction, error) {
	if !amount.IsPositive() {
		return nil, errors.ErrBadRequest
	}

	var linked *model.NfcPaymentTransaction
	err := s.nfcRepo.WithTransaction(ctx, func(ctx context.Context, repo repository.NfcTransactionRepository) error {
		tx, err := repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if tx.Status != model.NfcStatusNfcReady {
			return errors.ErrBadRequest
		}

		fuelTx := &model.FuelTransaction{
			DriverID:                tx.DriverID,
			OrganizationID:          tx.OrganizationID,
			Amount:                  amount,
			SettledAt:               s.now(),
			NfcPaymentTransactionID: &tx.ID,
		}
		if err := repo.RecordSettlement(ctx, fuelTx); err != nil {
			return fmt.Errorf("record settlement: %w", err)
		}

		tx.Status = model.NfcStatusLinked
		tx.FuelTransactionID = &fuelTx.ID
		if err := repo.Save(ctx, tx); err != nil {
			return fmt.Errorf("link settlement: %w", err)
		}
		linked = tx
		return nil
	})
	if err != nil {
		return nil, err
	}
	return linked, nil
}

// GetTransaction returns a payment attempt by ID.
func (s *nfcSessionPreparer) GetTransaction(ctx context.Context, id uuid.UUID) (*model.NfcPaymentTransaction, error) {
	return s.nfcRepo.FindByID(ctx, id)
}
