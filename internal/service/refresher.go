package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/telany/faxrelay/internal/audit"
	"github.com/telany/faxrelay/internal/errs"
	"github.com/telany/faxrelay/internal/faxuser"
	"github.com/telany/faxrelay/internal/model"
	"github.com/telany/faxrelay/internal/repository"
	"github.com/telany/faxrelay/internal/upstream"
	"github.com/telany/faxrelay/internal/vault"
)

// RefreshWindow is the lead time before upstream expiry during which a
// bearer token is proactively renewed.
const RefreshWindow = time.Hour

// Outcome classifies the result of one tenant's refresh step.
type Outcome string

// Per-tenant refresh outcomes.
const (
	OutcomeSkip           Outcome = "skip"
	OutcomeSuccess        Outcome = "success"
	OutcomeNoSecret       Outcome = "skipped_no_secret"
	OutcomeDecryptFailure Outcome = "skipped_decrypt_failure"
	OutcomeFailedUpstream Outcome = "failed_upstream"
	OutcomeParseError     Outcome = "parse_error"
)

// Due reports whether a refresh is needed for the given upstream expiry.
func Due(now, expiresAt time.Time) bool {
	return !now.Before(expiresAt.Add(-RefreshWindow))
}

// Refresher keeps each active tenant's upstream bearer token valid,
// refreshing ahead of expiry. One cycle walks all tenants sequentially;
// a failing tenant never blocks the rest.
type Refresher struct {
	tenants   repository.TenantRepository
	resellers repository.ResellerRepository
	bearers   repository.BearerRepository
	vault     *vault.Vault
	upstream  *upstream.TokenClient
	rec       *audit.Recorder
	now       func() time.Time
}

// NewRefresher constructs a Refresher.
func NewRefresher(
	tenants repository.TenantRepository,
	resellers repository.ResellerRepository,
	bearers repository.BearerRepository,
	vlt *vault.Vault,
	up *upstream.TokenClient,
	rec *audit.Recorder,
) *Refresher {
	if rec == nil {
		rec = audit.NewRecorder(nil)
	}
	return &Refresher{
		tenants:   tenants,
		resellers: resellers,
		bearers:   bearers,
		vault:     vlt,
		upstream:  up,
		rec:       rec,
		now:       time.Now,
	}
}

// WithClock overrides the time source. Intended for tests.
func (r *Refresher) WithClock(now func() time.Time) *Refresher {
	r.now = now
	return r
}

// RunCycle processes every active tenant once and returns the outcome per
// fax user. Listing failures are the only error that aborts a cycle.
func (r *Refresher) RunCycle(ctx context.Context) (map[string]Outcome, error) {
	tenants, err := r.tenants.List(ctx)
	if err != nil {
		return nil, err
	}

	outcomes := make(map[string]Outcome, len(tenants))
	for i := range tenants {
		t := &tenants[i]
		if !t.Active {
			continue
		}

		if cached, err := r.bearers.Get(ctx, t.FaxUser); err == nil &&
			cached.BearerToken != "" && !Due(r.now().UTC(), cached.ExpiresAt) {
			outcomes[t.FaxUser] = OutcomeSkip
			continue
		}

		outcomes[t.FaxUser] = r.refreshOne(ctx, t)
	}
	return outcomes, nil
}

// RefreshTenant refreshes a single tenant on demand and returns the new
// record. Used by the bearer endpoint on cache miss.
func (r *Refresher) RefreshTenant(ctx context.Context, t *model.Tenant) (*model.BearerRecord, error) {
	resellerID, err := faxuser.ResellerID(t.FaxUser)
	if err != nil {
		r.skip(t, "parse_error", zap.String("fax_user", t.FaxUser))
		return nil, err
	}

	env, err := r.resellers.Get(ctx, resellerID)
	if err != nil {
		r.skip(t, "read", zap.String("reseller_id", resellerID))
		return nil, err
	}

	var creds model.ResellerCredentials
	if err := r.vault.Decrypt(resellerID, *env, &creds); err != nil {
		r.skip(t, "decrypt", zap.String("reseller_id", resellerID))
		return nil, err
	}

	tok, err := r.upstream.Fetch(ctx, creds)
	if err != nil {
		r.rec.Event(audit.UpstreamError,
			audit.Tenant(t.DomainUUID),
			audit.Op("bearer_token", "fetch"),
			zap.String("error", err.Error()),
		)
		r.rec.Event(audit.RefreshFailed,
			audit.Tenant(t.DomainUUID),
			audit.Op("bearer_token", "refresh"),
		)
		return nil, err
	}

	rec := &model.BearerRecord{
		FaxUser:       t.FaxUser,
		BearerToken:   tok.AccessToken,
		ExpiresAt:     tok.ExpiresAt,
		RetrievedAt:   r.now().UTC(),
		AllFaxNumbers: t.AllFaxNumbers,
	}
	if err := r.bearers.Save(ctx, rec); err != nil {
		return nil, err
	}

	r.rec.Event(audit.RefreshSuccess,
		audit.Tenant(t.DomainUUID),
		audit.Op("bearer_token", "refresh"),
		zap.Time("expires_at", rec.ExpiresAt),
	)
	return rec, nil
}

// refreshOne maps RefreshTenant errors onto cycle outcomes. Failures are
// isolated: the previous cached token stays untouched.
func (r *Refresher) refreshOne(ctx context.Context, t *model.Tenant) Outcome {
	_, err := r.RefreshTenant(ctx, t)
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, errs.ErrParse):
		return OutcomeParseError
	case errors.Is(err, errs.ErrNotFound):
		return OutcomeNoSecret
	case errors.Is(err, errs.ErrCrypto):
		return OutcomeDecryptFailure
	default:
		return OutcomeFailedUpstream
	}
}

func (r *Refresher) skip(t *model.Tenant, op string, fields ...zap.Field) {
	fields = append(fields, audit.Tenant(t.DomainUUID), audit.Op("bearer_token", op))
	r.rec.Event(audit.RefreshSkipped, fields...)
}
