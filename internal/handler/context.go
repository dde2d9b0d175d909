package handler

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"fuelpay/internal/auth"
	"fuelpay/internal/model"
)

// actorFromContext reconstructs the acting user from validated JWT claims.
// Claims only carry identity; authorization checks that need live account
// state load the user row themselves.
func actorFromContext(c echo.Context) (*model.User, bool) {
	token, ok := c.Get("user").(*jwt.Token)
	if !ok {
		return nil, false
	}
	claims, ok := token.Claims.(*auth.Claims)
	if !ok {
		return nil, false
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, false
	}

	actor := &model.User{
		ID:    userID,
		Email: claims.Email,
		Role:  claims.Role,
	}
	if claims.OrganizationID != "" {
		if orgID, err := uuid.Parse(claims.OrganizationID); err == nil {
			actor.OrganizationID = &orgID
		}
	}
	return actor, true
}
