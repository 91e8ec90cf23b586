package postgres

import (
	"context"
	"errors"

	"github.com/telany/faxrelay/internal/errs"
	"github.com/telany/faxrelay/internal/model"
)

// ResellerRepo implements ResellerRepository using PostgreSQL. Rows hold
// only the sealed envelope fields; plaintext credentials never reach the
// database.
type ResellerRepo struct{ db *DB }

// NewResellerRepo constructs a reseller envelope repository.
func NewResellerRepo(db *DB) *ResellerRepo { return &ResellerRepo{db: db} }

// Save upserts the envelope for a reseller.
func (r *ResellerRepo) Save(ctx context.Context, resellerID string, env model.Envelope) error {
	const q = `
INSERT INTO resellers (reseller_id, ciphertext, nonce, salt)
VALUES ($1, $2, $3, $4)
ON CONFLICT (reseller_id)
DO UPDATE SET ciphertext=$2, nonce=$3, salt=$4, updated_at=now()`
	_, err := r.db.Pool.Exec(ctx, q, resellerID, env.Ciphertext, env.Nonce, env.Salt)
	return err
}

// Get loads the envelope for a reseller.
func (r *ResellerRepo) Get(ctx context.Context, resellerID string) (*model.Envelope, error) {
	const q = `SELECT ciphertext, nonce, salt FROM resellers WHERE reseller_id=$1`
	var env model.Envelope
	if err := r.db.Pool.QueryRow(ctx, q, resellerID).Scan(&env.Ciphertext, &env.Nonce, &env.Salt); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, errs.ErrNotFound
	}
	return &env, nil
}

// Delete removes the envelope.
func (r *ResellerRepo) Delete(ctx context.Context, resellerID string) error {
	const q = `DELETE FROM resellers WHERE reseller_id=$1`
	tag, err := r.db.Pool.Exec(ctx, q, resellerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}
