package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/classvault/apiserver/types"
)

// SessionRepository handles persistence for sessions.
type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, session types.Session) (types.Session, error) {
	const query = `
		INSERT INTO sessions (token, account_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4)`
	_, err := r.db.ExecContext(ctx, query, session.Token, session.AccountID, session.CreatedAt, session.ExpiresAt)
	if err != nil {
		return types.Session{}, err
	}
	return session, nil
}

func (r *SessionRepository) GetByToken(ctx context.Context, token string) (types.Session, error) {
	const query = `
		SELECT token, account_id, created_at, expires_at
		FROM sessions
		WHERE token = $1`
	var session types.Session
	err := r.db.QueryRowContext(ctx, query, token).Scan(
		&session.Token,
		&session.AccountID,
		&session.CreatedAt,
		&session.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Session{}, ErrNotFound
		}
		return types.Session{}, err
	}
	return session, nil
}

func (r *SessionRepository) Delete(ctx context.Context, token string) error {
	const query = `DELETE FROM sessions WHERE token = $1`
	result, err := r.db.ExecContext(ctx, query, token)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByAccount tears down every session for an account. Used by the
// administrator delete saga.
func (r *SessionRepository) DeleteByAccount(ctx context.Context, accountID string) error {
	const query = `DELETE FROM sessions WHERE account_id = $1`
	_, err := r.db.ExecContext(ctx, query, accountID)
	return err
}

// DeleteExpired clears sessions past their expiry.
func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	const query = `DELETE FROM sessions WHERE expires_at < $1`
	result, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
