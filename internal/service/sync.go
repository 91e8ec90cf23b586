package service

import (
	"context"
	"strings"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/telany/faxrelay/internal/audit"
	"github.com/telany/faxrelay/internal/model"
	"github.com/telany/faxrelay/internal/repository"
)

// MaxPageSize caps sync listing and posting batches.
const MaxPageSize = 500

// PostResult reports the effect of a history post.
type PostResult struct {
	Inserted int
	Total    int
}

// SyncService maintains the authoritative processed-item set per tenant.
type SyncService struct {
	history repository.HistoryRepository
	rec     *audit.Recorder
}

// NewSyncService constructs a SyncService.
func NewSyncService(history repository.HistoryRepository, rec *audit.Recorder) *SyncService {
	if rec == nil {
		rec = audit.NewRecorder(nil)
	}
	return &SyncService{history: history, rec: rec}
}

// Post upserts membership for ids. Input is deduplicated and blank entries
// dropped; an empty result is a no-op. Posting an already-known id never
// errors, which makes client retries safe.
func (s *SyncService) Post(ctx context.Context, domainUUID uuid.UUID, deviceID string, ids []string) (PostResult, error) {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return PostResult{}, nil
	}

	inserted, total, err := s.history.Add(ctx, domainUUID, ids)
	if err != nil {
		return PostResult{}, err
	}

	s.rec.Event(audit.HistoryPost,
		audit.Tenant(domainUUID),
		audit.Device(deviceID),
		audit.Op("download_history", "upsert"),
		zap.Int("count", len(ids)),
		zap.Int("inserted", inserted),
	)
	return PostResult{Inserted: inserted, Total: total}, nil
}

// List returns one page of the tenant's set. Offset is clamped to zero and
// limit to 1..MaxPageSize (default MaxPageSize). NextOffset is nil once the
// page reaches the end.
func (s *SyncService) List(ctx context.Context, domainUUID uuid.UUID, deviceID string, offset, limit int) (model.HistoryPage, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > MaxPageSize {
		limit = MaxPageSize
	}

	total, err := s.history.Count(ctx, domainUUID)
	if err != nil {
		return model.HistoryPage{}, err
	}
	ids, err := s.history.List(ctx, domainUUID, offset, limit)
	if err != nil {
		return model.HistoryPage{}, err
	}

	page := model.HistoryPage{IDs: ids, Offset: offset, Limit: limit, Total: total}
	if next := offset + len(ids); next < total {
		page.NextOffset = &next
	}

	s.rec.Event(audit.HistoryList,
		audit.Tenant(domainUUID),
		audit.Device(deviceID),
		audit.Op("download_history", "list"),
		zap.Int("offset", offset),
		zap.Int("returned", len(ids)),
		zap.Int("total", total),
	)
	return page, nil
}

// dedupe trims and deduplicates ids preserving first-seen order.
func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
