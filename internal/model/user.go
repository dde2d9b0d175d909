package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User roles.
const (
	RoleDriver     = "driver"
	RoleManager    = "manager"
	RoleSuperAdmin = "super_admin"
)

// User is an authenticated user: a driver, an organization manager, or a
// platform super-admin. Drivers and managers belong to an organization.
type User struct {
	ID             uuid.UUID  `json:"id" gorm:"type:char(36);primaryKey"`
	Name           string     `json:"name" gorm:"size:255;not null"`
	Email          string     `json:"email" gorm:"uniqueIndex;size:255;not null"`
	PasswordHash   string     `json:"-" gorm:"size:255;not null"` // Never expose in JSON
	Role           string     `json:"role" gorm:"size:50;not null;default:'driver';index"`
	OrganizationID *uuid.UUID `json:"organization_id,omitempty" gorm:"type:char(36);index"`
	Active         bool       `json:"active" gorm:"default:true;index"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// BeforeCreate sets UUID before creating the record.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
