package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrKeyUnavailable is returned when the master encryption key is not
	// configured. Checked once at startup; every vault operation short-circuits
	// on it before touching the database.
	ErrKeyUnavailable = errors.New("master encryption key unavailable")
	// ErrKeyCorrupt is returned when a stored data-encryption key fails to
	// unwrap under the master key.
	ErrKeyCorrupt = errors.New("encryption key corrupt")
	// ErrDecryptionFailed is returned when authenticated decryption of a field
	// fails (tampered ciphertext, wrong key, or mismatched IV).
	ErrDecryptionFailed = errors.New("decryption failed")
	// ErrInvalidCardNumber is returned when a card number fails the Luhn check
	// or basic format validation.
	ErrInvalidCardNumber = errors.New("invalid card number")
	// ErrWeakPin is returned when a new PIN fails the strength rules.
	ErrWeakPin = errors.New("pin is too weak")
	// ErrIncorrectOldPin is returned when changing a PIN and the supplied old
	// PIN does not match.
	ErrIncorrectOldPin = errors.New("incorrect old pin")
	// ErrNoPinConfigured is returned when verifying a PIN for a driver without
	// an active PIN.
	ErrNoPinConfigured = errors.New("no pin configured")
	// ErrNoCardOnFile is returned when an organization pays by card but has no
	// active default card.
	ErrNoCardOnFile = errors.New("no card on file")
	// ErrForbidden is returned when the caller may not manage payment data for
	// the organization.
	ErrForbidden = errors.New("forbidden")
	// ErrBadRequest is returned when required request fields are missing.
	ErrBadRequest = errors.New("bad request")
	// ErrOrganizationNotFound is returned when the organization does not exist
	// or is inactive.
	ErrOrganizationNotFound = errors.New("organization not found")
	// ErrVehicleNotFound is returned when direct-account payment requires a
	// vehicle that does not exist for the organization.
	ErrVehicleNotFound = errors.New("vehicle not found")
	// ErrSessionKeyNotFound is returned when an ephemeral session key has
	// already been fetched or expired.
	ErrSessionKeyNotFound = errors.New("session key not found")
)

// PinLockedError is returned while a driver is inside a lockout window. No
// hash comparison happens in this state.
type PinLockedError struct {
	Until time.Time
}

func (e *PinLockedError) Error() string {
	return fmt.Sprintf("pin locked until %s", e.Until.Format(time.RFC3339))
}

// IncorrectPinError is returned on a failed PIN comparison, carrying how many
// attempts remain before lockout.
type IncorrectPinError struct {
	AttemptsRemaining int
}

func (e *IncorrectPinError) Error() string {
	return fmt.Sprintf("incorrect pin, %d attempts remaining", e.AttemptsRemaining)
}

// Spend-limit scopes.
const (
	LimitScopeDaily   = "daily"
	LimitScopeMonthly = "monthly"
)

// LimitExceededError is returned when a proposed amount exceeds the remaining
// headroom for a spend-limit scope.
type LimitExceededError struct {
	Scope     string
	Remaining decimal.Decimal
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("%s spend limit exceeded, %s remaining", e.Scope, e.Remaining.StringFixed(2))
}

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
	Details    map[string]interface{}
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, message, code string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Code:       code,
	}
}

// ToErrorResponse converts an HTTPError to ErrorResponse.
func (e *HTTPError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Error:   e.Message,
		Code:    e.Code,
		Details: e.Details,
	}
}

// MapErrorToHTTP maps domain errors to HTTP errors. Configuration and
// integrity errors deliberately map away from 4xx so they are never mistaken
// for caller mistakes.
func MapErrorToHTTP(err error) *HTTPError {
	var locked *PinLockedError
	if errors.As(err, &locked) {
		httpErr := NewHTTPError(http.StatusLocked, err.Error(), "PIN_LOCKED")
		httpErr.Details = map[string]interface{}{"locked_until": locked.Until.Format(time.RFC3339)}
		return httpErr
	}

	var incorrect *IncorrectPinError
	if errors.As(err, &incorrect) {
		httpErr := NewHTTPError(http.StatusUnauthorized, err.Error(), "INCORRECT_PIN")
		httpErr.Details = map[string]interface{}{"attempts_remaining": incorrect.AttemptsRemaining}
		return httpErr
	}

	var limit *LimitExceededError
	if errors.As(err, &limit) {
		httpErr := NewHTTPError(http.StatusUnprocessableEntity, err.Error(), "LIMIT_EXCEEDED")
		httpErr.Details = map[string]interface{}{
			"scope":     limit.Scope,
			"remaining": limit.Remaining.StringFixed(2),
		}
		return httpErr
	}

	switch {
	case errors.Is(err, ErrKeyUnavailable):
		return NewHTTPError(http.StatusServiceUnavailable, err.Error(), "ENCRYPTION_UNAVAILABLE")
	case errors.Is(err, ErrKeyCorrupt):
		return NewHTTPError(http.StatusInternalServerError, err.Error(), "KEY_CORRUPT")
	case errors.Is(err, ErrDecryptionFailed):
		return NewHTTPError(http.StatusInternalServerError, err.Error(), "DECRYPTION_FAILED")
	case errors.Is(err, ErrInvalidCardNumber):
		return NewHTTPError(http.StatusBadRequest, err.Error(), "INVALID_CARD_NUMBER")
	case errors.Is(err, ErrWeakPin):
		return NewHTTPError(http.StatusBadRequest, err.Error(), "WEAK_PIN")
	case errors.Is(err, ErrIncorrectOldPin):
		return NewHTTPError(http.StatusUnauthorized, err.Error(), "INCORRECT_OLD_PIN")
	case errors.Is(err, ErrNoPinConfigured):
		return NewHTTPError(http.StatusBadRequest, err.Error(), "NO_PIN_CONFIGURED")
	case errors.Is(err, ErrNoCardOnFile):
		return NewHTTPError(http.StatusNotFound, err.Error(), "NO_CARD_ON_FILE")
	case errors.Is(err, ErrForbidden):
		return NewHTTPError(http.StatusForbidden, err.Error(), "FORBIDDEN")
	case errors.Is(err, ErrBadRequest):
		return NewHTTPError(http.StatusBadRequest, err.Error(), "BAD_REQUEST")
	case errors.Is(err, ErrOrganizationNotFound):
		return NewHTTPError(http.StatusNotFound, err.Error(), "ORGANIZATION_NOT_FOUND")
	case errors.Is(err, ErrVehicleNotFound):
		return NewHTTPError(http.StatusNotFound, err.Error(), "VEHICLE_NOT_FOUND")
	case errors.Is(err, ErrSessionKeyNotFound):
		return NewHTTPError(http.StatusNotFound, err.Error(), "SESSION_KEY_NOT_FOUND")
	default:
		return NewHTTPError(http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
}
