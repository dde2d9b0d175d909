package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PaymentOption is how an organization funds driver fuel purchases.
type PaymentOption string

const (
	// PaymentOptionCard charges the organization's stored default card.
	PaymentOptionCard PaymentOption = "card"
	// PaymentOptionFuelAccount charges a vehicle-linked fuel account directly.
	PaymentOptionFuelAccount PaymentOption = "fuel_account"
)

// Organization is a fleet customer. Its payment option decides whether NFC
// payments resolve to the stored default card or to a vehicle fuel account.
type Organization struct {
	ID            uuid.UUID     `json:"id" gorm:"type:char(36);primaryKey"`
	Name          string        `json:"name" gorm:"size:255;not null;index"`
	PaymentOption PaymentOption `json:"payment_option" gorm:"size:20;not null;default:'card'"`
	Active        bool          `json:"active" gorm:"default:true;index"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// BeforeCreate sets UUID before creating the record.
func (o *Organization) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// Vehicle is a fleet vehicle. FuelAccountNumber is the direct-debit account
// used when the owning organization pays by fuel account instead of card.
type Vehicle struct {
	ID                uuid.UUID `json:"id" gorm:"type:char(36);primaryKey"`
	OrganizationID    uuid.UUID `json:"organization_id" gorm:"type:char(36);not null;index"`
	PlateNumber       string    `json:"plate_number" gorm:"size:20;not null"`
	FuelAccountNumber string    `json:"fuel_account_number" gorm:"size:64"`
	Active            bool      `json:"active" gorm:"default:true"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`

	// Relations
	Organization Organization `json:"-" gorm:"foreignKey:OrganizationID"`
}

// BeforeCreate sets UUID before creating the record.
func (v *Vehicle) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}
