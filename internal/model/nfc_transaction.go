package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// NfcTransactionStatus is the state of an NFC payment attempt.
type NfcTransactionStatus string

const (
	NfcStatusPinEntered  NfcTransactionStatus = "pin_entered"
	NfcStatusPinVerified NfcTransactionStatus = "pin_verified"
	NfcStatusNfcReady    NfcTransactionStatus = "nfc_ready"
	NfcStatusFailed      NfcTransactionStatus = "failed"
	NfcStatusLinked      NfcTransactionStatus = "linked"
)

// PaymentType distinguishes how an NFC payment is funded.
type PaymentType string

const (
	PaymentTypeCard        PaymentType = "card"
	PaymentTypeFuelAccount PaymentType = "fuel_account"
)

// NfcPaymentTransaction records one NFC payment attempt. A row is inserted
// the moment a PIN verification succeeds and is never deleted; only its
// status advances (pin_verified -> nfc_ready or failed, and nfc_ready ->
// linked once a settled fuel transaction references it). Failed attempts
// stay queryable with a failure reason.
type NfcPaymentTransaction struct {
	ID             uuid.UUID       `json:"id" gorm:"type:char(36);primaryKey"`
	DriverID       uuid.UUID       `json:"driver_id" gorm:"type:char(36);not null;index"`
	OrganizationID uuid.UUID       `json:"organization_id" gorm:"type:char(36);not null;index"`
	CardID         *uuid.UUID      `json:"card_id,omitempty" gorm:"type:char(36);index"`
	VehicleID      *uuid.UUID      `json:"vehicle_id,omitempty" gorm:"type:char(36);index"`
	Amount         decimal.Decimal `json:"amount" gorm:"type:decimal(20,2);not null"`
	PaymentType    PaymentType     `json:"payment_type" gorm:"size:20;not null"`

	Status         NfcTransactionStatus `json:"status" gorm:"type:varchar(20);not null;default:'pin_entered';index"`
	PinEnteredAt   time.Time            `json:"pin_entered_at"`
	PinVerifiedAt  *time.Time           `json:"pin_verified_at,omitempty"`
	NfcActivatedAt *time.Time           `json:"nfc_activated_at,omitempty"`
	FailureReason  string               `json:"failure_reason,omitempty" gorm:"type:text"`

	DeviceInfo string `json:"device_info,omitempty" gorm:"size:255"`
	Location   string `json:"location,omitempty" gorm:"size:255"`

	FuelTransactionID *uuid.UUID `json:"fuel_transaction_id,omitempty" gorm:"type:char(36);index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Card *PaymentCard `json:"-" gorm:"foreignKey:CardID"`
}

// BeforeCreate sets UUID before creating the record.
func (t *NfcPaymentTransaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
