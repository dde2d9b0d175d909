package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EncryptionKey is one version of the data-encryption key (DEK) used for
// card-field encryption. The DEK is stored wrapped (encrypted) under the
// process master key; the plaintext key only ever exists in memory.
//
// Exactly one row is active at a time. Rotation clears the active flag on the
// old row and inserts a new one with version+1; old rows are never deleted
// because cards encrypted under them still reference their version.
type EncryptionKey struct {
	ID         uuid.UUID `json:"id" gorm:"type:char(36);primaryKey"`
	Ciphertext string    `json:"-" gorm:"type:text;not null"` // wrapped DEK, base64
	IV         string    `json:"-" gorm:"size:64;not null"`   // wrap IV, base64
	Algorithm  string    `json:"algorithm" gorm:"size:32;not null;default:'AES-256-GCM'"`
	Version    int       `json:"version" gorm:"not null;uniqueIndex"`
	Active     bool      `json:"active" gorm:"default:false;index"`
	CreatedAt  time.Time `json:"created_at"`
}

// BeforeCreate sets UUID before creating the record.
func (k *EncryptionKey) BeforeCreate(tx *gorm.DB) error {
	if k.ID == uuid.Nil {
		k.ID = uuid.New()
	}
	return nil
}
