package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"
)

// HistoryRepository holds the authoritative processed-item set per tenant.
// Membership only grows in normal operation.
type HistoryRepository interface {
	// Add upserts membership for the given ids. Re-adding a known id is a
	// no-op; the returned inserted count covers new ids only.
	Add(ctx context.Context, domainUUID uuid.UUID, ids []string) (inserted int, total int, err error)
	// List returns a stable-ordered page of ids.
	List(ctx context.Context, domainUUID uuid.UUID, offset, limit int) ([]string, error)
	// Count returns the set size.
	Count(ctx context.Context, domainUUID uuid.UUID) (int, error)
}
