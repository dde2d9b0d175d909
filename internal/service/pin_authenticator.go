package service

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"fuelpay/internal/errors"
	"fuelpay/internal/model"
	"fuelpay/internal/repository"
)

const (
	bcryptCost = 10

	// MaxFailedAttempts locks the driver after this many consecutive
	// mismatches.
	MaxFailedAttempts = 3
	// LockoutDuration is how long verification is refused after lockout.
	LockoutDuration = 30 * time.Minute
)

var pinFormatRegex = regexp.MustCompile(`^\d{4}$`)

// PinAuthenticator stores and verifies driver payment PINs with lockout
// accounting. All counter updates run inside a per-driver row lock so two
// concurrent wrong guesses cannot race past the attempt threshold.
type PinAuthenticator interface {
	// SetPin sets or changes a driver's PIN. When a PIN is already active the
	// old PIN must verify first.
	SetPin(ctx context.Context, driverID uuid.UUID, newPin, oldPin string) error
	// VerifyPin checks a PIN attempt, advancing the failed-attempt counter
	// and lockout state as a side effect.
	VerifyPin(ctx context.Context, driverID uuid.UUID, pin string) error
}

type pinAuthenticator struct {
	settingsRepo repository.DriverSettingsRepository
	now          func() time.Time
}

// NewPinAuthenticator creates a new PIN authenticator.
func NewPinAuthenticator(settingsRepo repository.DriverSettingsRepository) PinAuthenticator {
	return &pinAuthenticator{
		settingsRepo: settingsRepo,
		now:          time.Now,
	}
}

// ValidatePinStrength rejects weak PINs: wrong length or non-digits, all
// identical digits (1111), strictly ascending or descending runs (1234,
// 4321), and two-digit repeats (1212).
func ValidatePinStrength(pin string) error {
	if !pinFormatRegex.MatchString(pin) {
		return errors.ErrWeakPin
	}

	allSame := true
	ascending := true
	descending := true
	for i := 1; i < len(pin); i++ {
		if pin[i] != pin[0] {
			allSame = false
		}
		if pin[i] != pin[i-1]+1 {
			ascending = false
		}
		if pin[i] != pin[i-1]-1 {
			descending = false
		}
	}
	if allSame || ascending || descending {
		return errors.ErrWeakPin
	}

	// abab pattern
	if pin[0] == pin[2] && pin[1] == pin[3] {
		return errors.ErrWeakPin
	}

	return nil
}

// SetPin sets or changes a driver's PIN.
func (s *pinAuthenticator) SetPin(ctx context.Context, driverID uuid.UUID, newPin, oldPin string) error {
	if err := ValidatePinStrength(newPin); err != nil {
		return err
	}

	return s.settingsRepo.WithTransaction(ctx, func(ctx context.Context, repo repository.DriverSettingsRepository) error {
		now := s.now()

		settings, err := repo.FindByDriverIDForUpdate(ctx, driverID)
		if err != nil {
			if err != gorm.ErrRecordNotFound {
				return fmt.Errorf("find driver settings: %w", err)
			}
			settings = &model.DriverPaymentSettings{DriverID: driverID}
		}

		if settings.PinActive && oldPin != "" {
			if bcrypt.CompareHashAndPassword([]byte(settings.PinHash), []byte(oldPin)) != nil {
				return errors.ErrIncorrectOldPin
			}
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(newPin), bcryptCost)
		if err != nil {
			return fmt.Errorf("hash pin: %w", err)
		}

		settings.PinHash = string(hash)
		settings.PinActive = true
		settings.FailedAttempts = 0
		settings.LockedUntil = nil
		settings.RequirePinChange = false
		settings.PinChangedAt = &now

		return repo.Upsert(ctx, settings)
	})
}

// VerifyPin checks a PIN attempt.
func (s *pinAuthenticator) VerifyPin(ctx context.Context, driverID uuid.UUID, pin string) error {
	return s.settingsRepo.WithTransaction(ctx, func(ctx context.Context, repo repository.DriverSettingsRepository) error {
		now := s.now()

		settings, err := repo.FindByDriverIDForUpdate(ctx, driverID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return errors.ErrNoPinConfigured
			}
			return fmt.Errorf("find driver settings: %w", err)
		}
		if !settings.PinActive || settings.PinHash == "" {
			return errors.ErrNoPinConfigured
		}

		// Locked fast path: no hash comparison happens while locked, so a
		// locked attempt costs nothing and does not consume an attempt.
		if settings.Locked(now) {
			return &errors.PinLockedError{Until: *settings.LockedUntil}
		}

		// An elapsed window grants a fresh counter.
		if settings.LockedUntil != nil {
			settings.LockedUntil = nil
			settings.FailedAttempts = 0
		}

		if bcrypt.CompareHashAndPassword([]byte(settings.PinHash), []byte(pin)) != nil {
			settings.FailedAttempts++
			remaining := MaxFailedAttempts - settings.FailedAttempts
			if settings.FailedAttempts >= MaxFailedAttempts {
				// Creating the lockout window resets the counter; the
				// locking attempt itself still reports as an incorrect PIN
				// with zero attempts remaining.
				until := now.Add(LockoutDuration)
				settings.LockedUntil = &until
				settings.FailedAttempts = 0
				remaining = 0
			}
			if err := repo.Save(ctx, settings); err != nil {
				return fmt.Errorf("save attempt counter: %w", err)
			}
			return &errors.IncorrectPinError{AttemptsRemaining: remaining}
		}

		settings.FailedAttempts = 0
		settings.LockedUntil = nil
		return repo.Save(ctx, settings)
	})
}
