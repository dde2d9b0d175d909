package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DriverPaymentSettings holds one row per driver: the bcrypt hash of the
// payment PIN, lockout accounting, and configured spend limits. Created on
// first PIN set (upsert keyed by driver), updated on every verification
// attempt.
//
// FailedAttempts is always 0..3 and resets to 0 on a successful verification
// or when a lockout window is created or expires.
type DriverPaymentSettings struct {
	DriverID         uuid.UUID       `json:"driver_id" gorm:"type:char(36);primaryKey"`
	PinHash          string          `json:"-" gorm:"size:255"`
	PinActive        bool            `json:"pin_active" gorm:"default:false"`
	FailedAttempts   int             `json:"-" gorm:"not null;default:0"`
	LockedUntil      *time.Time      `json:"locked_until,omitempty"`
	DailyLimit       decimal.Decimal `json:"daily_limit" gorm:"type:decimal(20,2);not null;default:0"`
	MonthlyLimit     decimal.Decimal `json:"monthly_limit" gorm:"type:decimal(20,2);not null;default:0"`
	RequirePinChange bool            `json:"require_pin_change" gorm:"default:false"`
	PinChangedAt     *time.Time      `json:"pin_changed_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Locked reports whether the driver is inside an active lockout window.
func (s *DriverPaymentSettings) Locked(now time.Time) bool {
	return s.LockedUntil != nil && s.LockedUntil.After(now)
}
