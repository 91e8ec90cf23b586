package repository

import (
	"context"

	"github.com/telany/faxrelay/internal/model"
)

// ResellerRepository stores encrypted reseller credential envelopes.
// Plaintext never crosses this interface.
type ResellerRepository interface {
	// Save upserts the envelope for a reseller.
	Save(ctx context.Context, resellerID string, env model.Envelope) error
	// Get loads the envelope for a reseller.
	Get(ctx context.Context, resellerID string) (*model.Envelope, error)
	// Delete removes the envelope.
	Delete(ctx context.Context, resellerID string) error
}

// BearerRepository caches upstream bearer tokens per fax user.
type BearerRepository interface {
	// Get loads the cached record, if any.
	Get(ctx context.Context, faxUser string) (*model.BearerRecord, error)
	// Save upserts the record.
	Save(ctx context.Context, rec *model.BearerRecord) error
}
