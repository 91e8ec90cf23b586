// Package service contains application services for client initialization,
// bearer refresh and history synchronization.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/telany/faxrelay/internal/audit"
	"github.com/telany/faxrelay/internal/errs"
	"github.com/telany/faxrelay/internal/faxuser"
	"github.com/telany/faxrelay/internal/limiter"
	"github.com/telany/faxrelay/internal/repository"
	"github.com/telany/faxrelay/internal/token"
)

// Scopes granted to device tokens on successful initialization.
const (
	ScopeBearerRequest = "bearer.request"
	ScopeHistorySync   = "history.sync"
)

// InitResult is the payload returned to a freshly authenticated device.
type InitResult struct {
	Token         string
	DomainUUID    uuid.UUID
	AllFaxNumbers []string
	ExpiresIn     int // seconds
}

// InitService authenticates client installations and issues device-scoped
// access tokens.
type InitService struct {
	tenants repository.TenantRepository
	issuer  *token.Issuer
	lim     limiter.Limiter
	rec     *audit.Recorder
	now     func() time.Time
}

// NewInitService constructs InitService with required dependencies.
func NewInitService(tenants repository.TenantRepository, issuer *token.Issuer, lim limiter.Limiter, rec *audit.Recorder) *InitService {
	if rec == nil {
		rec = audit.NewRecorder(nil)
	}
	return &InitService{tenants: tenants, issuer: issuer, lim: lim, rec: rec, now: time.Now}
}

// Initialize verifies the shared secret for an active tenant, registers
// the device, and issues a device-scoped token. The client may send the
// full fax user ("100@sample.acme.service"); only the domain portion is
// used for lookup.
func (s *InitService) Initialize(ctx context.Context, authToken, faxUser, deviceID, ip string) (*InitResult, error) {
	domain := faxuser.Domain(faxUser)
	ipHash := limiter.HashIP(ip)

	s.rec.Event(audit.InitReceived,
		zap.String("fax_user", domain),
		audit.Device(deviceID),
		audit.Op("client_init", "received"),
	)

	allowed, _, err := s.lim.Allow(ctx, domain, ipHash)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, errs.ErrRateLimited
	}

	tenant, err := s.tenants.GetByAuth(ctx, authToken, domain)
	if err != nil {
		if blocked, _, ferr := s.lim.Failure(ctx, domain, ipHash); ferr == nil && blocked {
			return nil, errs.ErrRateLimited
		}
		s.rec.Event(audit.InitDenied,
			zap.String("fax_user", domain),
			audit.Device(deviceID),
			audit.Op("client_init", "deny"),
		)
		if errors.Is(err, errs.ErrNotFound) {
			return nil, errs.ErrUnauthorized
		}
		// lookup error masked as unauthorized
		return nil, errs.ErrUnauthorized
	}

	_ = s.lim.Success(ctx, domain, ipHash)

	if err := s.tenants.RegisterDevice(ctx, tenant.DomainUUID, deviceID); err != nil {
		return nil, err
	}

	signed, exp, err := s.issuer.Issue(tenant.DomainUUID, deviceID, []string{ScopeBearerRequest, ScopeHistorySync}, 0)
	if err != nil {
		return nil, err
	}

	s.rec.Event(audit.InitSuccess,
		audit.Tenant(tenant.DomainUUID),
		audit.Device(deviceID),
		audit.Op("client_init", "issue_jwt"),
		zap.Time("expires_at", exp),
		zap.Int("all_fax_numbers_count", len(tenant.AllFaxNumbers)),
	)

	return &InitResult{
		Token:         signed,
		DomainUUID:    tenant.DomainUUID,
		AllFaxNumbers: tenant.AllFaxNumbers,
		ExpiresIn:     int(exp.Sub(s.now().UTC()) / time.Second),
	}, nil
}
