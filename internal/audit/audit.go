// Package audit emits the structured security event taxonomy of the core.
//
// Every credential, token and sync operation records an event with enough
// context to diagnose (tenant, device, kid, scope, operation) but never a
// raw token, secret or decrypted payload.
package audit

import (
	"go.uber.org/zap"

	"github.com/gofrs/uuid/v5"
)

// Event types emitted by the core.
const (
	JWTIssued    = "jwt_issued"
	JWTValidated = "jwt_validated"
	JWTExpired   = "jwt_expired"
	JWTInvalid   = "jwt_invalid"

	CryptoError       = "crypto_error"
	EnvelopeEncrypted = "reseller_blob_encrypted"
	EnvelopeSaved     = "reseller_blob_saved"
	EnvelopeDeleted   = "reseller_blob_deleted"

	RefreshSkipped = "refresh_skipped"
	RefreshFailed  = "refresh_failed"
	RefreshSuccess = "refresh_success"

	InitReceived = "init_received"
	InitDenied   = "init_denied"
	InitSuccess  = "init_success"

	BearerException = "bearer_exception"
	UpstreamError   = "upstream_error"

	HistoryPost = "history_post"
	HistoryList = "history_list"

	TenantCreated = "tenant_created"
	TenantToggled = "tenant_toggled"
	TenantDeleted = "tenant_deleted"
)

// Recorder writes audit events through a zap logger.
type Recorder struct {
	log *zap.Logger
}

// NewRecorder constructs a Recorder. A nil logger yields a no-op recorder.
func NewRecorder(log *zap.Logger) *Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{log: log.Named("audit")}
}

// Event records a single audit event with structured fields.
func (r *Recorder) Event(eventType string, fields ...zap.Field) {
	r.log.Info(eventType, fields...)
}

// Tenant tags an event with the owning tenant.
func Tenant(domainUUID uuid.UUID) zap.Field {
	return zap.String("domain_uuid", domainUUID.String())
}

// Device tags an event with the originating device.
func Device(deviceID string) zap.Field {
	return zap.String("device_id", deviceID)
}

// Op tags an event with the object operation that produced it.
func Op(objectType, operation string) zap.Field {
	return zap.Dict("object",
		zap.String("type", objectType),
		zap.String("operation", operation),
	)
}
