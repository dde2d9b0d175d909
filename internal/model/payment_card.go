package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Card brands recognized during registration.
const (
	CardBrandVisa       = "visa"
	CardBrandMastercard = "mastercard"
	CardBrandAmex       = "amex"
	CardBrandDiscover   = "discover"
	CardBrandUnknown    = "unknown"
)

// PaymentCard is an organization's stored payment card. Every sensitive field
// is independently encrypted under the DEK version referenced by
// EncryptionKeyID, each with its own IV. Only LastFour is stored in plaintext,
// for display.
//
// At most one card per organization is default+active at the same time;
// registration clears the previous default in the same transaction that
// inserts the new row. Cards are deactivated on replacement, never deleted.
type PaymentCard struct {
	ID             uuid.UUID `json:"id" gorm:"type:char(36);primaryKey"`
	OrganizationID uuid.UUID `json:"organization_id" gorm:"type:char(36);not null;index"`

	NumberCiphertext      string `json:"-" gorm:"type:text;not null"`
	NumberIV              string `json:"-" gorm:"size:64;not null"`
	HolderNameCiphertext  string `json:"-" gorm:"type:text;not null"`
	HolderNameIV          string `json:"-" gorm:"size:64;not null"`
	ExpiryMonthCiphertext string `json:"-" gorm:"type:text;not null"`
	ExpiryMonthIV         string `json:"-" gorm:"size:64;not null"`
	ExpiryYearCiphertext  string `json:"-" gorm:"type:text;not null"`
	ExpiryYearIV          string `json:"-" gorm:"size:64;not null"`
	CVVCiphertext         string `json:"-" gorm:"type:text;not null"`
	CVVIV                 string `json:"-" gorm:"size:64;not null"`

	EncryptionKeyID uuid.UUID `json:"-" gorm:"type:char(36);not null;index"`

	Brand     string    `json:"brand" gorm:"size:20;not null"`
	CardType  string    `json:"card_type" gorm:"size:20;not null;default:'credit'"`
	LastFour  string    `json:"last_four" gorm:"size:4;not null"`
	Nickname  string    `json:"nickname" gorm:"size:100"`
	Active    bool      `json:"active" gorm:"default:true;index"`
	IsDefault bool      `json:"is_default" gorm:"default:false;index"`
	CreatedBy uuid.UUID `json:"created_by" gorm:"type:char(36)"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Organization  Organization  `json:"-" gorm:"foreignKey:OrganizationID"`
	EncryptionKey EncryptionKey `json:"-" gorm:"foreignKey:EncryptionKeyID"`
}

// BeforeCreate sets UUID before creating the record.
func (c *PaymentCard) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
