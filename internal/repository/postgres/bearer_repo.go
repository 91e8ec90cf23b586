package postgres

import (
	"context"
	"errors"

	"github.com/telany/faxrelay/internal/errs"
	"github.com/telany/faxrelay/internal/model"
)

// BearerRepo implements BearerRepository using PostgreSQL.
type BearerRepo struct{ db *DB }

// NewBearerRepo constructs a bearer token cache repository.
func NewBearerRepo(db *DB) *BearerRepo { return &BearerRepo{db: db} }

// Get loads the cached bearer record for a fax user.
func (r *BearerRepo) Get(ctx context.Context, faxUser string) (*model.BearerRecord, error) {
	const q = `
SELECT fax_user, bearer_token, expires_at, retrieved_at, all_fax_numbers
FROM bearer_tokens WHERE fax_user=$1`
	var rec model.BearerRecord
	err := r.db.Pool.QueryRow(ctx, q, faxUser).
		Scan(&rec.FaxUser, &rec.BearerToken, &rec.ExpiresAt, &rec.RetrievedAt, &rec.AllFaxNumbers)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, errs.ErrNotFound
	}
	return &rec, nil
}

// Save upserts the bearer record.
func (r *BearerRepo) Save(ctx context.Context, rec *model.BearerRecord) error {
	const q = `
INSERT INTO bearer_tokens (fax_user, bearer_token, expires_at, retrieved_at, all_fax_numbers)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (fax_user)
DO UPDATE SET bearer_token=$2, expires_at=$3, retrieved_at=$4, all_fax_numbers=$5`
	_, err := r.db.Pool.Exec(ctx, q, rec.FaxUser, rec.BearerToken, rec.ExpiresAt, rec.RetrievedAt, rec.AllFaxNumbers)
	return err
}
