package services

import (
	"errors"
	"fmt"
	"strings"
)

// Failure taxonomy surfaced across the service boundary. Handlers map
// these to HTTP statuses; nothing below this layer is masked as success.
var (
	// ErrInvalidCode covers an OTP mismatch, including a code that was
	// replaced by a later issue. It deliberately also covers "no code
	// outstanding" so callers cannot probe which accounts are mid-sign-in.
	ErrInvalidCode = errors.New("invalid verification code")

	// ErrCodeExpired means the code existed but its validity window passed.
	ErrCodeExpired = errors.New("verification code expired")

	// ErrTooManyAttempts means the live code burned through its attempt
	// budget; the user must request a fresh one.
	ErrTooManyAttempts = errors.New("too many verification attempts")

	// ErrUnauthenticated means no resolvable session where one is required.
	ErrUnauthenticated = errors.New("no authenticated user")

	// ErrDispatchFailed means the OTP could not be handed to the mail
	// transport. The stored code is discarded when this is returned.
	ErrDispatchFailed = errors.New("failed to dispatch verification code")

	// ErrDuplicateName rejects an upload whose name collides with another
	// file of the same owner.
	ErrDuplicateName = errors.New("a file with the same name already exists")

	// ErrStudentImmutable rejects administrator mutations on student rows.
	ErrStudentImmutable = errors.New("student accounts cannot be modified")
)

// PartialDeleteError reports a multi-store account deletion that completed
// some steps but not all. No rollback is attempted; the completed steps
// stand and the caller decides how to retry.
type PartialDeleteError struct {
	UserID    string
	Completed []string
	Failed    string
	Err       error
}

func (e *PartialDeleteError) Error() string {
	return fmt.Sprintf("partial delete of user %s: completed [%s], failed at %s: %v",
		e.UserID, strings.Join(e.Completed, ", "), e.Failed, e.Err)
}

func (e *PartialDeleteError) Unwrap() error {
	return e.Err
}
