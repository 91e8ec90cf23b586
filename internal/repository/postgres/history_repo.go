package postgres

import (
	"context"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// HistoryRepo implements HistoryRepository using PostgreSQL. The primary
// key on (domain_uuid, fax_id) makes Add idempotent.
type HistoryRepo struct{ db *DB }

// NewHistoryRepo constructs a download-history repository.
func NewHistoryRepo(db *DB) *HistoryRepo { return &HistoryRepo{db: db} }

// Add upserts membership for ids inside one transaction and reports how
// many were actually new, plus the resulting set size.
func (r *HistoryRepo) Add(ctx context.Context, domainUUID uuid.UUID, ids []string) (int, int, error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const ins = `
INSERT INTO download_history (domain_uuid, fax_id)
VALUES ($1, $2)
ON CONFLICT (domain_uuid, fax_id) DO NOTHING`
	inserted := 0
	for _, id := range ids {
		tag, err := tx.Exec(ctx, ins, domainUUID, id)
		if err != nil {
			return 0, 0, err
		}
		inserted += int(tag.RowsAffected())
	}

	const cnt = `SELECT count(*) FROM download_history WHERE domain_uuid=$1`
	var total int
	if err := tx.QueryRow(ctx, cnt, domainUUID).Scan(&total); err != nil {
		return 0, 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, err
	}
	return inserted, total, nil
}

// List returns one page of ids in insertion order, which keeps offsets
// stable while the set only grows.
func (r *HistoryRepo) List(ctx context.Context, domainUUID uuid.UUID, offset, limit int) ([]string, error) {
	const q = `
SELECT fax_id FROM download_history
WHERE domain_uuid=$1
ORDER BY created_at, fax_id
OFFSET $2 LIMIT $3`
	rows, err := r.db.Pool.Query(ctx, q, domainUUID, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Count returns the set size for a tenant.
func (r *HistoryRepo) Count(ctx context.Context, domainUUID uuid.UUID) (int, error) {
	const q = `SELECT count(*) FROM download_history WHERE domain_uuid=$1`
	var total int
	if err := r.db.Pool.QueryRow(ctx, q, domainUUID).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}
