package service

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"fuelpay/internal/errors"
	"fuelpay/internal/model"
)

// CardValidator validates card information prior to encryption.
type CardValidator struct{}

// NewCardValidator creates a new card validator.
func NewCardValidator() *CardValidator {
	return &CardValidator{}
}

var (
	nonDigitRegex = regexp.MustCompile(`\D`)
	cvvRegex      = regexp.MustCompile(`^\d{3,4}$`)
)

// NormalizeNumber strips spaces and dashes from a card number.
func (v *CardValidator) NormalizeNumber(cardNumber string) string {
	return strings.ReplaceAll(strings.ReplaceAll(cardNumber, " ", ""), "-", "")
}

// ValidateCard validates card number, expiry, and CVV. The number must pass
// the Luhn checksum; anything else is rejected before a single field is
// encrypted or stored.
func (v *CardValidator) ValidateCard(cardNumber, expiryMonth, expiryYear, cvv string) error {
	cardNumber = v.NormalizeNumber(cardNumber)

	if !v.ValidateLuhn(cardNumber) {
		return errors.ErrInvalidCardNumber
	}

	if !v.validateExpiry(expiryMonth, expiryYear) {
		return errors.ErrInvalidCardNumber
	}

	if !cvvRegex.MatchString(cvv) {
		return errors.ErrInvalidCardNumber
	}

	return nil
}

// ValidateLuhn validates a card number using the Luhn algorithm.
func (v *CardValidator) ValidateLuhn(cardNumber string) bool {
	cardNumber = nonDigitRegex.ReplaceAllString(cardNumber, "")

	if len(cardNumber) < 13 || len(cardNumber) > 19 {
		return false
	}

	sum := 0
	isEven := false

	// Process from right to left
	for i := len(cardNumber) - 1; i >= 0; i-- {
		digit, err := strconv.Atoi(string(cardNumber[i]))
		if err != nil {
			return false
		}

		if isEven {
			digit *= 2
			if digit > 9 {
				digit -= 9
			}
		}

		sum += digit
		isEven = !isEven
	}

	return sum%10 == 0
}

// validateExpiry validates that month/year form a date at or after the
// current month.
func (v *CardValidator) validateExpiry(expiryMonth, expiryYear string) bool {
	month, err := strconv.Atoi(expiryMonth)
	if err != nil || month < 1 || month > 12 {
		return false
	}

	year, err := strconv.Atoi(expiryYear)
	if err != nil {
		return false
	}
	if year < 100 {
		year += 2000
	}

	now := time.Now()
	expiryDate := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return expiryDate.After(now.AddDate(0, -1, 0))
}

// DetectBrand identifies the card brand from its leading digits.
func (v *CardValidator) DetectBrand(cardNumber string) string {
	cardNumber = v.NormalizeNumber(cardNumber)
	switch {
	case strings.HasPrefix(cardNumber, "4"):
		return model.CardBrandVisa
	case hasPrefixInRange(cardNumber, 51, 55) || hasPrefixInRange(cardNumber, 2221, 2720):
		return model.CardBrandMastercard
	case strings.HasPrefix(cardNumber, "34") || strings.HasPrefix(cardNumber, "37"):
		return model.CardBrandAmex
	case strings.HasPrefix(cardNumber, "6011") || strings.HasPrefix(cardNumber, "65"):
		return model.CardBrandDiscover
	default:
		return model.CardBrandUnknown
	}
}

func hasPrefixInRange(cardNumber string, lo, hi int) bool {
	width := len(strconv.Itoa(lo))
	if len(cardNumber) < width {
		return false
	}
	prefix, err := strconv.Atoi(cardNumber[:width])
	if err != nil {
		return false
	}
	return prefix >= lo && prefix <= hi
}

// LastFour returns the last four digits of a card number.
func (v *CardValidator) LastFour(cardNumber string) string {
	cardNumber = v.NormalizeNumber(cardNumber)
	if len(cardNumber) < 4 {
		return cardNumber
	}
	return cardNumber[len(cardNumber)-4:]
}

// MaskCardNumber masks a card number, showing only last 4 digits.
func (v *CardValidator) MaskCardNumber(cardNumber string) string {
	last := v.LastFour(cardNumber)
	if len(last) < 4 {
		return "****"
	}
	return "****" + last
}
