package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"fuelpay/internal/errors"
	"fuelpay/internal/service"
)

// PinHandler handles driver PIN endpoints.
type PinHandler struct {
	pinAuth service.PinAuthenticator
}

// NewPinHandler creates a new PIN handler.
func NewPinHandler(pinAuth service.PinAuthenticator) *PinHandler {
	return &PinHandler{pinAuth: pinAuth}
}

// SetPinRequest represents a PIN set/change request.
type SetPinRequest struct {
	DriverID string `json:"driver_id" validate:"required,uuid"`
	NewPin   string `json:"new_pin" validate:"required,len=4,numeric"`
	OldPin   string `json:"old_pin,omitempty"`
}

// VerifyPinRequest represents a PIN verification request.
type VerifyPinRequest struct {
	DriverID string `json:"driver_id" validate:"required,uuid"`
	Pin      string `json:"pin" validate:"required,len=4,numeric"`
}

// PinResponse represents the outcome of a PIN operation.
type PinResponse struct {
	Success bool `json:"success"`
}

// SetPin godoc
// @Summary Set or change a driver's payment PIN
// @Tags driver-pin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body SetPinRequest true "PIN data"
// @Success 200 {object} PinResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /driver-pin [post]
func (h *PinHandler) SetPin(c echo.Context) error {
	var req SetPinRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "invalid request body",
			Code:  "INVALID_REQUEST",
		})
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: err.Error(),
			Code:  "VALIDATION_ERROR",
		})
	}

	driverID, err := uuid.Parse(req.DriverID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "invalid driver_id",
			Code:  "INVALID_UUID",
		})
	}

	if err := h.pinAuth.SetPin(c.Request().Context(), driverID, req.NewPin, req.OldPin); err != nil {
		httpErr := errors.MapErrorToHTTP(err)
		return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	}

	return c.JSON(http.StatusOK, PinResponse{Success: true})
}

// VerifyPin godoc
// @Summary Verify a driver's payment PIN
// @Tags driver-pin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body VerifyPinRequest true "PIN data"
// @Success 200 {object} PinResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 423 {object} errors.ErrorResponse
// @Router /driver-pin/verify [post]
func (h *PinHandler) VerifyPin(c echo.Context) error {
	var req VerifyPinRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "invalid request body",
			Code:  "INVALID_REQUEST",
		})
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: err.Error(),
			Code:  "VALIDATION_ERROR",
		})
	}

	driverID, err := uuid.Parse(req.DriverID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "invalid driver_id",
			Code:  "INVALID_UUID",
		})
	}

	if err := h.pinAuth.VerifyPin(c.Request().Context(), driverID, req.Pin); err != nil {
		httpErr := errors.MapErrorToHTTP(err)
		return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	}

	return c.JSON(http.StatusOK, PinResponse{Success: true})
}
