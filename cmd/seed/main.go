package main

import (
	"context"
	"log"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"fuelpay/internal/config"
	"fuelpay/internal/db"
	"fuelpay/internal/model"
	"fuelpay/internal/repository"
)

// Seeds a development database with one organization per payment option,
// a vehicle, a manager, and a driver with spend limits configured.
func main() {
	log.Println("Starting seed script...")

	cfg := config.Load()

	gormDB, err := db.NewMySQL(cfg.MySQLDSN)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Println("Connected to database")

	if err := gormDB.AutoMigrate(
		&model.Organization{},
		&model.Vehicle{},
		&model.User{},
		&model.DriverPaymentSettings{},
	); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations completed")

	ctx := context.Background()
	orgRepo := repository.NewOrganizationRepository(gormDB)
	userRepo := repository.NewUserRepository(gormDB)
	settingsRepo := repository.NewDriverSettingsRepository(gormDB)

	cardOrg := &model.Organization{
		ID:            uuid.New(),
		Name:          "Acme Logistics",
		PaymentOption: model.PaymentOptionCard,
		Active:        true,
	}
	accountOrg := &model.Organization{
		ID:            uuid.New(),
		Name:          "Northern Haulage",
		PaymentOption: model.PaymentOptionFuelAccount,
		Active:        true,
	}
	for _, org := range []*model.Organization{cardOrg, accountOrg} {
		if err := orgRepo.Create(ctx, org); err != nil {
			log.Fatalf("Failed to create organization %s: %v", org.Name, err)
		}
		log.Printf("Created organization %s (%s)", org.Name, org.ID)
	}

	vehicle := &model.Vehicle{
		OrganizationID:    accountOrg.ID,
		PlateNumber:       "NH-4821",
		FuelAccountNumber: "FA-00017395",
		Active:            true,
	}
	if err := orgRepo.CreateVehicle(ctx, vehicle); err != nil {
		log.Fatalf("Failed to create vehicle: %v", err)
	}
	log.Printf("Created vehicle %s (%s)", vehicle.PlateNumber, vehicle.ID)

	passwordHash, err := bcrypt.GenerateFromPassword([]byte("password123"), 10)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	manager := &model.User{
		Name:           "Morgan Reyes",
		Email:          "manager@acme.test",
		PasswordHash:   string(passwordHash),
		Role:           model.RoleManager,
		OrganizationID: &cardOrg.ID,
		Active:         true,
	}
	driver := &model.User{
		Name:           "Sam Okafor",
		Email:          "driver@acme.test",
		PasswordHash:   string(passwordHash),
		Role:           model.RoleDriver,
		OrganizationID: &cardOrg.ID,
		Active:         true,
	}
	for _, user := range []*model.User{manager, driver} {
		if err := userRepo.Create(ctx, user); err != nil {
			log.Fatalf("Failed to create user %s: %v", user.Email, err)
		}
		log.Printf("Created user %s (%s)", user.Email, user.Role)
	}

	settings := &model.DriverPaymentSettings{
		DriverID:     driver.ID,
		DailyLimit:   decimal.NewFromInt(300),
		MonthlyLimit: decimal.NewFromInt(4000),
	}
	if err := settingsRepo.Upsert(ctx, settings); err != nil {
		log.Fatalf("Failed to create driver settings: %v", err)
	}
	log.Printf("Created spend limits for driver %s", driver.ID)

	log.Println("Seed completed")
}
