// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/telany/faxrelay/internal/model"
)

// TenantRepository provides access to provisioned client accounts.
type TenantRepository interface {
	// Create inserts a new tenant.
	Create(ctx context.Context, t *model.Tenant) error
	// GetByAuth loads an active tenant matching auth token and fax user.
	GetByAuth(ctx context.Context, authToken, faxUser string) (*model.Tenant, error)
	// GetByUUID loads an active tenant by domain UUID.
	GetByUUID(ctx context.Context, domainUUID uuid.UUID) (*model.Tenant, error)
	// List returns all tenants, active or not.
	List(ctx context.Context) ([]model.Tenant, error)
	// RegisterDevice appends a device id to the tenant's directory if absent.
	RegisterDevice(ctx context.Context, domainUUID uuid.UUID, deviceID string) error
	// SetActive flips the administrative active flag.
	SetActive(ctx context.Context, domainUUID uuid.UUID, active bool) error
	// Delete removes the tenant.
	Delete(ctx context.Context, domainUUID uuid.UUID) error
}
