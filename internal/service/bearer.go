package service

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/telany/faxrelay/internal/audit"
	"github.com/telany/faxrelay/internal/model"
	"github.com/telany/faxrelay/internal/repository"
)

// BearerService serves upstream bearer tokens to authenticated devices,
// refreshing through the Refresher when the cache misses or nears expiry.
type BearerService struct {
	tenants   repository.TenantRepository
	bearers   repository.BearerRepository
	refresher *Refresher
	rec       *audit.Recorder
	now       func() time.Time
}

// NewBearerService constructs a BearerService.
func NewBearerService(tenants repository.TenantRepository, bearers repository.BearerRepository, refresher *Refresher, rec *audit.Recorder) *BearerService {
	if rec == nil {
		rec = audit.NewRecorder(nil)
	}
	return &BearerService{tenants: tenants, bearers: bearers, refresher: refresher, rec: rec, now: time.Now}
}

// Token returns a valid upstream bearer record for the tenant. A cached
// record is reused only while outside the refresh window, so clients never
// receive a token about to expire under them.
func (s *BearerService) Token(ctx context.Context, domainUUID uuid.UUID) (*model.BearerRecord, error) {
	tenant, err := s.tenants.GetByUUID(ctx, domainUUID)
	if err != nil {
		return nil, err
	}

	if cached, err := s.bearers.Get(ctx, tenant.FaxUser); err == nil &&
		cached.BearerToken != "" && !Due(s.now().UTC(), cached.ExpiresAt) {
		return cached, nil
	}

	rec, err := s.refresher.RefreshTenant(ctx, tenant)
	if err != nil {
		s.rec.Event(audit.BearerException,
			audit.Tenant(domainUUID),
			audit.Op("bearer_token", "serve"),
			zap.String("error", err.Error()),
		)
		return nil, err
	}
	return rec, nil
}
