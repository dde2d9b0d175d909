package handler

import (
	"encoding/base64"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"fuelpay/internal/errors"
	"fuelpay/internal/model"
	"fuelpay/internal/service"
)

// NfcHandler handles NFC payment preparation endpoints.
type NfcHandler struct {
	preparer    service.NfcSessionPreparer
	sessionKeys service.SessionKeyStore
}

// NewNfcHandler creates a new NFC handler.
func NewNfcHandler(preparer service.NfcSessionPreparer, sessionKeys service.SessionKeyStore) *NfcHandler {
	return &NfcHandler{preparer: preparer, sessionKeys: sessionKeys}
}

// PrepareRequest represents an NFC payment preparation request.
type PrepareRequest struct {
	DriverID          string `json:"driver_id" validate:"required,uuid"`
	OrganizationID    string `json:"organization_id" validate:"required,uuid"`
	Pin               string `json:"pin" validate:"required,len=4,numeric"`
	Amount            string `json:"amount" validate:"required"`
	VehicleID         string `json:"vehicle_id,omitempty"`
	FuelTransactionID string `json:"fuel_transaction_id,omitempty"`
	DeviceInfo        string `json:"device_info,omitempty"`
	Location          string `json:"location,omitempty"`
}

// PrepareResponse is returned to the driver app. It carries the encrypted
// payload only; the ephemeral key travels to the point-of-sale device through
// the session-key endpoint, never alongside its ciphertext.
type PrepareResponse struct {
	TransactionID string `json:"transaction_id"`
	Ciphertext    string `json:"ciphertext"`
	IV            string `json:"iv"`
	PaymentType   string `json:"payment_type"`
	DisplayInfo   string `json:"display_info"`
}

// SessionKeyResponse carries the one-time ephemeral key to the POS device.
type SessionKeyResponse struct {
	TransactionID string `json:"transaction_id"`
	Key           string `json:"key"` // base64
}

// LinkSettlementRequest reports a settled purchase back to the service.
type LinkSettlementRequest struct {
	Amount string `json:"amount" validate:"required"`
}

// TransactionResponse is the audit view of a payment attempt.
type TransactionResponse struct {
	Transaction *model.NfcPaymentTransaction `json:"transaction"`
}

// Prepare godoc
// @Summary Prepare an NFC payment
// @Description Verifies the PIN, checks spend limits, resolves the payment method, and returns an encrypted payload for the NFC hop.
// @Tags nfc
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body PrepareRequest true "Payment data"
// @Success 200 {object} PrepareResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 422 {object} errors.ErrorResponse
// @Failure 423 {object} errors.ErrorResponse
// @Router /nfc/prepare [post]
func (h *NfcHandler) Prepare(c echo.Context) error {
	var req PrepareRequest
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
	orgID, err := uuid.Parse(req.OrganizationID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "invalid organization_id",
			Code:  "INVALID_UUID",
		})
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "invalid amount",
			Code:  "INVALID_AMOUNT",
		})
	}

	prepareReq := service.PrepareRequest{
		DriverID:       driverID,
		OrganizationID: orgID,
		Pin:            req.Pin,
		Amount:         amount,
		DeviceInfo:     req.DeviceInfo,
		Location:       req.Location,
	}
	if req.VehicleID != "" {
		vehicleID, err := uuid.Parse(req.VehicleID)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
				Error: "invalid vehicle_id",
				Code:  "INVALID_UUID",
			})
		}
		prepareReq.VehicleID = &vehicleID
	}
	if req.FuelTransactionID != "" {
		fuelTxID, err := uuid.Parse(req.FuelTransactionID)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
				Error: "invalid fuel_transaction_id",
				Code:  "INVALID_UUID",
			})
		}
		prepareReq.FuelTransactionID = &fuelTxID
	}

	result, err := h.preparer.PreparePayment(c.Request().Context(), prepareReq)
	if err != nil {
		httpErr := errors.MapErrorToHTTP(err)
		return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	}

	return c.JSON(http.StatusOK, PrepareResponse{
		TransactionID: result.TransactionID.String(),
		Ciphertext:    result.Ciphertext,
		IV:            result.IV,
		PaymentType:   string(result.PaymentType),
		DisplayInfo:   result.DisplayInfo,
	})
}

// TakeSessionKey godoc
// @Summary Fetch the one-time ephemeral key for a prepared payment
// @Description POS-side half of the key split. The key can be fetched exactly once; a second fetch returns 404.
// @Tags nfc
// @Produce json
// @Security BearerAuth
// @Param id path string true "Transaction ID"
// @Success 200 {object} SessionKeyResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /nfc/{id}/key [post]
func (h *NfcHandler) TakeSessionKey(c echo.Context) error {
	transactionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "invalid transaction id",
			Code:  "INVALID_UUID",
		})
	}

	key, err := h.sessionKeys.Take(c.Request().Context(), transactionID)
	if err != nil {
		httpErr := errors.MapErrorToHTTP(err)
		return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	}

	return c.JSON(http.StatusOK, SessionKeyResponse{
		TransactionID: transactionID.String(),
		Key:           base64.StdEncoding.EncodeToString(key),
	})
}

// LinkSettlement godoc
// @Summary Link a settled fuel purchase to a prepared payment
// @Description Records the settled amount in the fuel ledger and advances the attempt to linked.
// @Tags nfc
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Transaction ID"
// @Param request body LinkSettlementRequest true "Settlement data"
// @Success 200 {object} TransactionResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /nfc/{id}/link [post]
func (h *NfcHandler) LinkSettlement(c echo.Context) error {
	transactionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "invalid transaction id",
			Code:  "INVALID_UUID",
		})
	}

	var req LinkSettlementRequest
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
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "invalid amount",
			Code:  "INVALID_AMOUNT",
		})
	}

	tx, err := h.preparer.LinkSettlement(c.Request().Context(), transactionID, amount)
	if err != nil {
		httpErr := errors.MapErrorToHTTP(err)
		return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	}

	return c.JSON(http.StatusOK, TransactionResponse{Transaction: tx})
}

// GetTransaction godoc
// @Summary Get an NFC payment attempt
// @Tags nfc
// @Produce json
// @Security BearerAuth
// @Param id path string true "Transaction ID"
// @Success 200 {object} TransactionResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /nfc/{id} [get]
func (h *NfcHandler) GetTransaction(c echo.Context) error {
	transactionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "invalid transaction id",
			Code:  "INVALID_UUID",
		})
	}

	tx, err := h.preparer.GetTransaction(c.Request().Context(), transactionID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, errors.ErrorResponse{
			Error: "transaction not found",
			Code:  "TRANSACTION_NOT_FOUND",
		})
	}

	return c.JSON(http.StatusOK, TransactionResponse{Transaction: tx})
}
