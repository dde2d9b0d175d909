package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// FuelTransaction is a settled fuel purchase in the ledger. The spend-limit
// guard sums these rows per driver; settlement itself happens outside this
// service. NfcPaymentTransactionID back-references the NFC attempt that
// initiated the purchase, if any.
type FuelTransaction struct {
	ID                      uuid.UUID       `json:"id" gorm:"type:char(36);primaryKey"`
	DriverID                uuid.UUID       `json:"driver_id" gorm:"type:char(36);not null;index"`
	OrganizationID          uuid.UUID       `json:"organization_id" gorm:"type:char(36);not null;index"`
	Amount                  decimal.Decimal `json:"amount" gorm:"type:decimal(20,2);not null"`
	SettledAt               time.Time       `json:"settled_at" gorm:"not null;index"`
	NfcPaymentTransactionID *uuid.UUID      `json:"nfc_payment_transaction_id,omitempty" gorm:"type:char(36);index"`
	CreatedAt               time.Time       `json:"created_at"`
}

// BeforeCreate sets UUID before creating the record.
func (t *FuelTransaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
