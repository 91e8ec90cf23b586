package postgres

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/telany/faxrelay/internal/errs"
	"github.com/telany/faxrelay/internal/model"
)

// TenantRepo implements TenantRepository using PostgreSQL.
type TenantRepo struct{ db *DB }

// NewTenantRepo constructs a tenant repository.
func NewTenantRepo(db *DB) *TenantRepo { return &TenantRepo{db: db} }

const tenantColumns = `domain_uuid, fax_user, auth_token, active, all_fax_numbers, known_devices, created_at`

// Create inserts a new tenant row.
func (r *TenantRepo) Create(ctx context.Context, t *model.Tenant) error {
	const q = `
INSERT INTO tenants (domain_uuid, fax_user, auth_token, active, all_fax_numbers, known_devices)
VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.Pool.Exec(ctx, q, t.DomainUUID, t.FaxUser, t.AuthToken, t.Active, t.AllFaxNumbers, t.KnownDevices)
	return err
}

// GetByAuth selects an active tenant by shared secret and fax user.
func (r *TenantRepo) GetByAuth(ctx context.Context, authToken, faxUser string) (*model.Tenant, error) {
	const q = `
SELECT ` + tenantColumns + `
FROM tenants WHERE auth_token=$1 AND fax_user=$2 AND active`
	return r.scanOne(r.db.Pool.QueryRow(ctx, q, authToken, faxUser))
}

// GetByUUID selects an active tenant by domain UUID.
func (r *TenantRepo) GetByUUID(ctx context.Context, domainUUID uuid.UUID) (*model.Tenant, error) {
	const q = `
SELECT ` + tenantColumns + `
FROM tenants WHERE domain_uuid=$1 AND active`
	return r.scanOne(r.db.Pool.QueryRow(ctx, q, domainUUID))
}

// List returns all tenants regardless of the active flag. The refresher
// filters inactive tenants itself.
func (r *TenantRepo) List(ctx context.Context) ([]model.Tenant, error) {
	const q = `
SELECT ` + tenantColumns + `
FROM tenants ORDER BY fax_user`
	rows, err := r.db.Pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Tenant
	for rows.Next() {
		var t model.Tenant
		if err := rows.Scan(&t.DomainUUID, &t.FaxUser, &t.AuthToken, &t.Active, &t.AllFaxNumbers, &t.KnownDevices, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// RegisterDevice appends deviceID to the device directory if not present.
func (r *TenantRepo) RegisterDevice(ctx context.Context, domainUUID uuid.UUID, deviceID string) error {
	const q = `
UPDATE tenants
SET known_devices = array_append(known_devices, $2)
WHERE domain_uuid = $1 AND NOT ($2 = ANY(known_devices))`
	_, err := r.db.Pool.Exec(ctx, q, domainUUID, deviceID)
	return err
}

// SetActive flips the administrative active flag.
func (r *TenantRepo) SetActive(ctx context.Context, domainUUID uuid.UUID, active bool) error {
	const q = `UPDATE tenants SET active=$2 WHERE domain_uuid=$1`
	tag, err := r.db.Pool.Exec(ctx, q, domainUUID, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Delete removes the tenant row.
func (r *TenantRepo) Delete(ctx context.Context, domainUUID uuid.UUID) error {
	const q = `DELETE FROM tenants WHERE domain_uuid=$1`
	tag, err := r.db.Pool.Exec(ctx, q, domainUUID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (r *TenantRepo) scanOne(row pgx.Row) (*model.Tenant, error) {
	var t model.Tenant
	if err := row.Scan(&t.DomainUUID, &t.FaxUser, &t.AuthToken, &t.Active, &t.AllFaxNumbers, &t.KnownDevices, &t.CreatedAt); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, errs.ErrNotFound
	}
	return &t, nil
}
