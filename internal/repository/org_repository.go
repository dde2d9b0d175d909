package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"fuelpay/internal/model"
)

// OrganizationRepository defines organization and vehicle lookups.
type OrganizationRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Organization, error)
	FindVehicle(ctx context.Context, orgID, vehicleID uuid.UUID) (*model.Vehicle, error)
	Create(ctx context.Context, org *model.Organization) error
	CreateVehicle(ctx context.Context, vehicle *model.Vehicle) error
}

type organizationRepository struct {
	db *gorm.DB
}

// NewOrganizationRepository creates a new organization repository.
func NewOrganizationRepository(db *gorm.DB) OrganizationRepository {
	return &organizationRepository{db: db}
}

// FindByID finds an organization by ID.
func (r *organizationRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Organization, error) {
	var org model.Organization
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&org).Error; err != nil {
		return nil, err
	}
	return &org, nil
}

// FindVehicle finds a vehicle scoped to its organization.
func (r *organizationRepository) FindVehicle(ctx context.Context, orgID, vehicleID uuid.UUID) (*model.Vehicle, error) {
	var vehicle model.Vehicle
	err := r.db.WithContext(ctx).
		Where("id = ? AND organization_id = ?", vehicleID, orgID).
		First(&vehicle).Error
	if err != nil {
		return nil, err
	}
	return &vehicle, nil
}

// Create inserts a new organization.
func (r *organizationRepository) Create(ctx context.Context, org *model.Organization) error {
	return r.db.WithContext(ctx).Create(org).Error
}

// CreateVehicle inserts a new vehicle.
func (r *organizationRepository) CreateVehicle(ctx context.Context, vehicle *model.Vehicle) error {
	return r.db.WithContext(ctx).Create(vehicle).Error
}
