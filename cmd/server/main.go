package main

import (
	"log"
	"net/http"

	_ "fuelpay/docs" // swagger docs

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"fuelpay/internal/auth"
	"fuelpay/internal/cache"
	"fuelpay/internal/config"
	"fuelpay/internal/db"
	"fuelpay/internal/handler"
	"fuelpay/internal/model"
	"fuelpay/internal/repository"
	"fuelpay/internal/router"
	"fuelpay/internal/service"
)

// @title Fleet Fuel Payments API
// @version 1.0
// @description Encrypted payment-card vault and PIN-gated NFC payment preparation for fleet fuel purchases.
// @host localhost:8080
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	cfg := config.Load()
	if cfg.MasterKey == nil {
		// Endpoints touching the vault fail with ENCRYPTION_UNAVAILABLE until
		// the process restarts with a valid key; everything else stays up.
		log.Println("WARNING: master encryption key not configured, card vault disabled")
	}

	e := echo.New()
	e.Use(middleware.RequestID())

	gormDB, err := db.NewMySQL(cfg.MySQLDSN)
	if err != nil {
		log.Fatalf("database init: %v", err)
	}

	// Run migrations for all models
	if err := gormDB.AutoMigrate(
		&model.Organization{},
		&model.Vehicle{},
		&model.User{},
		&model.EncryptionKey{},
		&model.PaymentCard{},
		&model.DriverPaymentSettings{},
		&model.NfcPaymentTransaction{},
		&model.FuelTransaction{},
	); err != nil {
		log.Fatalf("auto-migrate: %v", err)
	}

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)

	// Initialize repositories
	keyRepo := repository.NewEncryptionKeyRepository(gormDB)
	cardRepo := repository.NewCardRepository(gormDB)
	settingsRepo := repository.NewDriverSettingsRepository(gormDB)
	nfcRepo := repository.NewNfcTransactionRepository(gormDB)
	orgRepo := repository.NewOrganizationRepository(gormDB)
	userRepo := repository.NewUserRepository(gormDB)
	spendLedger := repository.NewSpendLedger(gormDB)

	// Initialize auth components
	jwtService := auth.NewJWTService(cfg.JWTSecret)
	tokenStore := auth.NewTokenStore(cacheClient)
	capability := auth.NewRoleCapabilityChecker(userRepo)

	// Initialize services
	authService := service.NewAuthService(userRepo, jwtService, tokenStore)
	keyVault := service.NewKeyVault(cfg.MasterKey, keyRepo)
	cardVault := service.NewCardVault(cardRepo, keyVault)
	pinAuth := service.NewPinAuthenticator(settingsRepo)
	limitGuard := service.NewSpendLimitGuard(settingsRepo, spendLedger, cacheClient)
	sessionKeys := service.NewSessionKeyStore(cacheClient)
	preparer := service.NewNfcSessionPreparer(pinAuth, limitGuard, cardVault, orgRepo, nfcRepo, sessionKeys)

	// Initialize handlers
	authHandler := handler.NewAuthHandler(authService)
	cardHandler := handler.NewCardHandler(cardVault, capability)
	pinHandler := handler.NewPinHandler(pinAuth)
	nfcHandler := handler.NewNfcHandler(preparer, sessionKeys)

	// Register routes
	router.Register(e, cfg, authHandler, cardHandler, pinHandler, nfcHandler)

	addr := ":" + cfg.ServerPort
	if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server start: %v", err)
	}
}
