package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"fuelpay/internal/auth"
	"fuelpay/internal/errors"
	"fuelpay/internal/service"
)

// CardHandler handles payment card endpoints.
type CardHandler struct {
	cardVault  service.CardVault
	capability auth.CapabilityChecker
}

// NewCardHandler creates a new card handler.
func NewCardHandler(cardVault service.CardVault, capability auth.CapabilityChecker) *CardHandler {
	return &CardHandler{cardVault: cardVault, capability: capability}
}

// RegisterCardRequest represents a card registration request.
type RegisterCardRequest struct {
	OrganizationID string `json:"organization_id" validate:"required,uuid"`
	CardNumber     string `json:"card_number" validate:"required"`
	HolderName     string `json:"holder_name" validate:"required"`
	ExpiryMonth    string `json:"expiry_month" validate:"required,len=2"`
	ExpiryYear     string `json:"expiry_year" validate:"required"`
	CVV            string `json:"cvv" validate:"required"`
	CardType       string `json:"card_type,omitempty"`
	Nickname       string `json:"nickname,omitempty"`
}

// RegisterCard godoc
// @Summary Register an organization payment card
// @Description Validates and encrypts the card, replacing the previous default. The response never contains raw card data.
// @Tags cards
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body RegisterCardRequest true "Card data"
// @Success 201 {object} service.CardSummary
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 503 {object} errors.ErrorResponse
// @Router /cards [post]
func (h *CardHandler) RegisterCard(c echo.Context) error {
	var req RegisterCardRequest
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

	orgID, err := uuid.Parse(req.OrganizationID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "invalid organization_id",
			Code:  "INVALID_UUID",
		})
	}

	actor, ok := actorFromContext(c)
	if !ok {
		httpErr := errors.MapErrorToHTTP(errors.ErrForbidden)
		return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	}
	allowed, err := h.capability.CanManagePaymentData(c.Request().Context(), actor.ID, orgID)
	if err != nil {
		httpErr := errors.MapErrorToHTTP(err)
		return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	}
	if !allowed {
		httpErr := errors.MapErrorToHTTP(errors.ErrForbidden)
		return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	}

	summary, err := h.cardVault.RegisterCard(c.Request().Context(), orgID, service.CardInput{
		Number:      req.CardNumber,
		HolderName:  req.HolderName,
		ExpiryMonth: req.ExpiryMonth,
		ExpiryYear:  req.ExpiryYear,
		CVV:         req.CVV,
		CardType:    req.CardType,
		Nickname:    req.Nickname,
	}, actor.ID)
	if err != nil {
		httpErr := errors.MapErrorToHTTP(err)
		return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	}

	return c.JSON(http.StatusCreated, summary)
}

// DeactivateCard godoc
// @Summary Deactivate an organization payment card
// @Tags cards
// @Produce json
// @Security BearerAuth
// @Param org_id path string true "Organization ID"
// @Param id path string true "Card ID"
// @Success 204
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /organizations/{org_id}/cards/{id} [delete]
func (h *CardHandler) DeactivateCard(c echo.Context) error {
	orgID, err := uuid.Parse(c.Param("org_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "invalid org_id",
			Code:  "INVALID_UUID",
		})
	}
	cardID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "invalid card id",
			Code:  "INVALID_UUID",
		})
	}

	actor, ok := actorFromContext(c)
	if !ok {
		httpErr := errors.MapErrorToHTTP(errors.ErrForbidden)
		return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	}
	allowed, err := h.capability.CanManagePaymentData(c.Request().Context(), actor.ID, orgID)
	if err != nil {
		httpErr := errors.MapErrorToHTTP(err)
		return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	}
	if !allowed {
		httpErr := errors.MapErrorToHTTP(errors.ErrForbidden)
		return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	}

	if err := h.cardVault.DeactivateCard(c.Request().Context(), orgID, cardID); err != nil {
		httpErr := errors.MapErrorToHTTP(err)
		return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	}
	return c.NoContent(http.StatusNoContent)
}
