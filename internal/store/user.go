package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/classvault/apiserver/types"
)

// UserRepository handles persistence for accounts.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, account_id, full_name, email, avatar, is_student, dashboard_access, file_access_keyword, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (types.User, error) {
	var user types.User
	var keyword sql.NullString
	err := row.Scan(
		&user.ID,
		&user.AccountID,
		&user.FullName,
		&user.Email,
		&user.Avatar,
		&user.IsStudent,
		&user.DashboardAccess,
		&keyword,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return types.User{}, err
	}
	if keyword.Valid {
		user.FileAccessKeyword = &keyword.String
	}
	return user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (types.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

func (r *UserRepository) GetByAccountID(ctx context.Context, accountID string) (types.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE account_id = $1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, accountID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	var keyword sql.NullString
	if user.FileAccessKeyword != nil {
		keyword = sql.NullString{String: *user.FileAccessKeyword, Valid: true}
	}

	const query = `
		INSERT INTO users (id, account_id, full_name, email, avatar, is_student, dashboard_access, file_access_keyword, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.db.ExecContext(
		ctx,
		query,
		user.ID,
		user.AccountID,
		user.FullName,
		user.Email,
		user.Avatar,
		user.IsStudent,
		user.DashboardAccess,
		keyword,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return types.User{}, err
	}
	return user, nil
}

// SetDashboardAccess writes the approval flag for a profile row.
func (r *UserRepository) SetDashboardAccess(ctx context.Context, id string, granted bool) error {
	const query = `
		UPDATE users
		SET dashboard_access = $1,
			updated_at = $2
		WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, granted, time.Now(), id)
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

// SetFileAccessKeyword writes the keyword restriction; nil clears it.
func (r *UserRepository) SetFileAccessKeyword(ctx context.Context, id string, keyword *string) error {
	var value sql.NullString
	if keyword != nil {
		value = sql.NullString{String: *keyword, Valid: true}
	}

	const query = `
		UPDATE users
		SET file_access_keyword = $1,
			updated_at = $2
		WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, value, time.Now(), id)
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

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM users WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
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

// ListNonStudents returns the administrable user list, newest first.
func (r *UserRepository) ListNonStudents(ctx context.Context) ([]types.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE is_student = FALSE
		ORDER BY created_at DESC, id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]types.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}
