package types

import "time"

// User represents an account in the system.
// The profile row (ID) and the authentication identity (AccountID) are
// distinct identifiers: sessions and one-time codes hang off AccountID,
// administrator actions address the profile row by ID.
type User struct {
	// ID is the unique identifier of the profile record.
	ID string `json:"id" db:"id"`

	// AccountID is the authentication-layer identity the user signs in as.
	AccountID string `json:"accountId" db:"account_id"`

	// FullName is the user's display name.
	FullName string `json:"fullName" db:"full_name"`

	// Email is the user's email address, unique per account. It doubles
	// as the natural lookup key at sign-in.
	Email string `json:"email" db:"email"`

	// Avatar is a cosmetic placeholder URL, never security-relevant.
	Avatar string `json:"avatar" db:"avatar"`

	// IsStudent is fixed at registration. Students are auto-approved;
	// staff and faculty wait for an administrator.
	IsStudent bool `json:"isStudent" db:"is_student"`

	// DashboardAccess is the administrator-controlled approval flag for
	// non-student accounts. Students ignore it; see policy.EffectiveDashboardAccess.
	DashboardAccess bool `json:"dashboardAccess" db:"dashboard_access"`

	// FileAccessKeyword optionally narrows which files the user can list.
	// Nil means no restriction beyond the ordinary query filters.
	FileAccessKeyword *string `json:"fileAccessKeyword" db:"file_access_keyword"`

	// CreatedAt is the timestamp when the account was created.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the account.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// AvatarPlaceholderURL is assigned to every new account at registration.
const AvatarPlaceholderURL = "https://img.freepik.com/free-psd/3d-illustration-person-with-sunglasses_23-2149436188.jpg"
