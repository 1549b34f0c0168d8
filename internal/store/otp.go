package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/classvault/apiserver/types"
)

// OTPRepository handles persistence for one-time codes. The table keys on
// account_id, so at most one code is live per account and a re-issue
// replaces the prior row (last write wins).
type OTPRepository struct {
	db *sql.DB
}

func NewOTPRepository(db *sql.DB) *OTPRepository {
	return &OTPRepository{db: db}
}

// Upsert stores a freshly issued code, invalidating any outstanding one.
func (r *OTPRepository) Upsert(ctx context.Context, code types.OneTimeCode) error {
	const query = `
		INSERT INTO otp_codes (account_id, code_hash, attempts, expires_at, created_at)
		VALUES ($1, $2, 0, $3, $4)
		ON CONFLICT (account_id) DO UPDATE
		SET code_hash = EXCLUDED.code_hash,
			attempts = 0,
			expires_at = EXCLUDED.expires_at,
			created_at = EXCLUDED.created_at`
	_, err := r.db.ExecContext(ctx, query, code.AccountID, code.CodeHash, code.ExpiresAt, code.CreatedAt)
	return err
}

func (r *OTPRepository) Get(ctx context.Context, accountID string) (types.OneTimeCode, error) {
	const query = `
		SELECT account_id, code_hash, attempts, expires_at, created_at
		FROM otp_codes
		WHERE account_id = $1`
	var code types.OneTimeCode
	err := r.db.QueryRowContext(ctx, query, accountID).Scan(
		&code.AccountID,
		&code.CodeHash,
		&code.Attempts,
		&code.ExpiresAt,
		&code.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.OneTimeCode{}, ErrNotFound
		}
		return types.OneTimeCode{}, err
	}
	return code, nil
}

// IncrementAttempts bumps the failed-attempt counter atomically and returns
// the new value, so concurrent verifications cannot undercount.
func (r *OTPRepository) IncrementAttempts(ctx context.Context, accountID string) (int, error) {
	const query = `
		UPDATE otp_codes
		SET attempts = attempts + 1
		WHERE account_id = $1
		RETURNING attempts`
	var attempts int
	err := r.db.QueryRowContext(ctx, query, accountID).Scan(&attempts)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return attempts, nil
}

func (r *OTPRepository) Delete(ctx context.Context, accountID string) error {
	const query = `DELETE FROM otp_codes WHERE account_id = $1`
	_, err := r.db.ExecContext(ctx, query, accountID)
	return err
}

// DeleteExpired clears stale rows; callers may run it opportunistically.
func (r *OTPRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	const query = `DELETE FROM otp_codes WHERE expires_at < $1`
	result, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
