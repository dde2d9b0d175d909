package router

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"

	"fuelpay/internal/auth"
	"fuelpay/internal/config"
	"fuelpay/internal/handler"
)

// Register wires routes and middleware.
func Register(
	e *echo.Echo,
	cfg *config.Config,
	authHandler *handler.AuthHandler,
	cardHandler *handler.CardHandler,
	pinHandler *handler.PinHandler,
	nfcHandler *handler.NfcHandler,
) {
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// Add validator
	e.Validator = &CustomValidator{validator: validator.New()}

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	api := e.Group("/api")

	// Public routes
	api.POST("/auth/register", authHandler.Register)
	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/refresh", authHandler.Refresh)
	api.POST("/auth/logout", authHandler.Logout)

	// Secured routes (require JWT authentication)
	secured := api.Group("", echojwt.WithConfig(echojwt.Config{
		SigningKey:  []byte(cfg.JWTSecret),
		TokenLookup: "header:" + echo.HeaderAuthorization,
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return new(auth.Claims)
		},
	}))

	// Card routes
	secured.POST("/cards", cardHandler.RegisterCard)
	secured.DELETE("/organizations/:org_id/cards/:id", cardHandler.DeactivateCard)

	// Driver PIN routes
	secured.POST("/driver-pin", pinHandler.SetPin)
	secured.POST("/driver-pin/verify", pinHandler.VerifyPin)

	// NFC payment routes
	secured.POST("/nfc/prepare", nfcHandler.Prepare)
	secured.POST("/nfc/:id/key", nfcHandler.TakeSessionKey)
	secured.POST("/nfc/:id/link", nfcHandler.LinkSettlement)
	secured.GET("/nfc/:id", nfcHandler.GetTransaction)
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}
