package types

import "time"

// Session binds an opaque client-held token to an account. Tokens are
// minted on successful OTP verification and destroyed on sign-out; expiry
// is enforced at resolution time.
type Session struct {
	Token     string    `json:"-" db:"token"`
	AccountID string    `json:"accountId" db:"account_id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	ExpiresAt time.Time `json:"expiresAt" db:"expires_at"`
}

// OneTimeCode is the stored form of an issued OTP. Only the bcrypt hash of
// the code is persisted; at most one row exists per account, so issuing a
// new code replaces (and invalidates) the prior one.
type OneTimeCode struct {
	AccountID string    `db:"account_id"`
	CodeHash  string    `db:"code_hash"`
	Attempts  int       `db:"attempts"`
	ExpiresAt time.Time `db:"expires_at"`
	CreatedAt time.Time `db:"created_at"`
}
