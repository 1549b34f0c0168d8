package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/classvault/apiserver/internal/policy"
	"github.com/classvault/apiserver/internal/store"
	"github.com/classvault/apiserver/types"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// UserRepository defines persistence operations for accounts.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (types.User, error)
	GetByAccountID(ctx context.Context, accountID string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	SetDashboardAccess(ctx context.Context, id string, granted bool) error
	SetFileAccessKeyword(ctx context.Context, id string, keyword *string) error
	Delete(ctx context.Context, id string) error
	ListNonStudents(ctx context.Context) ([]types.User, error)
}

// SessionRepository defines persistence operations for sessions.
type SessionRepository interface {
	Create(ctx context.Context, session types.Session) (types.Session, error)
	GetByToken(ctx context.Context, token string) (types.Session, error)
	Delete(ctx context.Context, token string) error
	DeleteByAccount(ctx context.Context, accountID string) error
}

// AuthService implements the registration, sign-in, verification, session
// resolution, and sign-out use-cases. Every operation takes explicit inputs
// (notably the session token) so the engine carries no ambient state.
type AuthService struct {
	users       UserRepository
	sessions    SessionRepository
	otpRepo     OTPRepository
	issuer      *OTPIssuer
	sessionTTL  time.Duration
	maxAttempts int
	logger      *slog.Logger
}

func NewAuthService(
	users UserRepository,
	sessions SessionRepository,
	otpRepo OTPRepository,
	issuer *OTPIssuer,
	sessionTTL time.Duration,
	maxAttempts int,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:       users,
		sessions:    sessions,
		otpRepo:     otpRepo,
		issuer:      issuer,
		sessionTTL:  sessionTTL,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// SignInResult is returned by Register and SignIn. The access flags are
// informational for the presentation layer; the authoritative decision is
// recomputed at every session resolution.
type SignInResult struct {
	AccountID       string `json:"accountId"`
	IsStudent       bool   `json:"isStudent"`
	DashboardAccess bool   `json:"dashboardAccess"`
}

// VerifyResult is returned on successful OTP verification. The token
// travels back to the client as an HTTP-only cookie, never in the body.
type VerifyResult struct {
	SessionToken    string `json:"-"`
	IsStudent       bool   `json:"isStudent"`
	DashboardAccess bool   `json:"dashboardAccess"`
}

// Register creates an account for a new email, or re-issues a code for an
// existing one, and dispatches the OTP. The profile row is only written
// after the code was successfully handed to the transport, so a dispatch
// failure never leaves a half-registered account behind.
func (s *AuthService) Register(ctx context.Context, fullName, email string, isStudent bool) (SignInResult, error) {
	fullName = strings.TrimSpace(fullName)
	email = strings.ToLower(strings.TrimSpace(email))

	existing, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if issueErr := s.issuer.Issue(ctx, existing.AccountID, existing.Email); issueErr != nil {
			return SignInResult{}, issueErr
		}
		return SignInResult{
			AccountID:       existing.AccountID,
			IsStudent:       existing.IsStudent,
			DashboardAccess: policy.EffectiveDashboardAccess(existing),
		}, nil
	case errors.Is(err, store.ErrNotFound):
		// fall through to creation
	default:
		return SignInResult{}, err
	}

	accountID := uuid.NewString()
	if err := s.issuer.Issue(ctx, accountID, email); err != nil {
		return SignInResult{}, err
	}

	user, err := s.users.Create(ctx, types.User{
		ID:              uuid.NewString(),
		AccountID:       accountID,
		FullName:        fullName,
		Email:           email,
		Avatar:          types.AvatarPlaceholderURL,
		IsStudent:       isStudent,
		DashboardAccess: false,
	})
	if err != nil {
		return SignInResult{}, err
	}

	s.logger.Info("account registered", "accountId", accountID, "isStudent", isStudent)
	return SignInResult{
		AccountID:       user.AccountID,
		IsStudent:       user.IsStudent,
		DashboardAccess: policy.EffectiveDashboardAccess(user),
	}, nil
}

// SignIn issues a fresh OTP for an existing account. Unknown emails get
// store.ErrNotFound.
func (s *AuthService) SignIn(ctx context.Context, email string) (SignInResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return SignInResult{}, err
	}

	if err := s.issuer.Issue(ctx, user.AccountID, user.Email); err != nil {
		return SignInResult{}, err
	}

	return SignInResult{
		AccountID:       user.AccountID,
		IsStudent:       user.IsStudent,
		DashboardAccess: policy.EffectiveDashboardAccess(user),
	}, nil
}

// VerifyCode validates the submitted code against the live one for the
// account and, on success, mints a session. A replaced code fails the hash
// comparison, so last-issue-wins holds without extra bookkeeping.
func (s *AuthService) VerifyCode(ctx context.Context, accountID, code string) (VerifyResult, error) {
	stored, err := s.otpRepo.Get(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return VerifyResult{}, ErrInvalidCode
		}
		return VerifyResult{}, err
	}

	if time.Now().After(stored.ExpiresAt) {
		return VerifyResult{}, ErrCodeExpired
	}

	attempts, err := s.otpRepo.IncrementAttempts(ctx, accountID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return VerifyResult{}, err
	}
	if attempts > s.maxAttempts {
		return VerifyResult{}, ErrTooManyAttempts
	}

	if bcrypt.CompareHashAndPassword([]byte(stored.CodeHash), []byte(code)) != nil {
		return VerifyResult{}, ErrInvalidCode
	}

	if err := s.otpRepo.Delete(ctx, accountID); err != nil {
		return VerifyResult{}, err
	}

	user, err := s.users.GetByAccountID(ctx, accountID)
	if err != nil {
		return VerifyResult{}, err
	}

	token, err := newSessionToken()
	if err != nil {
		return VerifyResult{}, err
	}

	now := time.Now()
	session, err := s.sessions.Create(ctx, types.Session{
		Token:     token,
		AccountID: accountID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionTTL),
	})
	if err != nil {
		return VerifyResult{}, err
	}

	s.logger.Info("session established", "accountId", accountID)
	return VerifyResult{
		SessionToken:    session.Token,
		IsStudent:       user.IsStudent,
		DashboardAccess: policy.EffectiveDashboardAccess(user),
	}, nil
}

// ResolveSession maps a client-held token back to its account. Every call
// re-reads the store: access flags are never trusted from a prior read.
// A missing, unknown, or expired token yields ErrUnauthenticated, which
// callers for whom "no session" is ordinary treat as an empty result.
func (s *AuthService) ResolveSession(ctx context.Context, token string) (types.User, error) {
	if strings.TrimSpace(token) == "" {
		return types.User{}, ErrUnauthenticated
	}

	session, err := s.sessions.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrUnauthenticated
		}
		return types.User{}, err
	}

	if time.Now().After(session.ExpiresAt) {
		_ = s.sessions.Delete(ctx, session.Token)
		return types.User{}, ErrUnauthenticated
	}

	user, err := s.users.GetByAccountID(ctx, session.AccountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrUnauthenticated
		}
		return types.User{}, err
	}
	return user, nil
}

// SignOut tears the session down server-side. Teardown is best effort: the
// caller always ends up signed out, and invalidation failures are only
// logged.
func (s *AuthService) SignOut(ctx context.Context, token string) {
	if strings.TrimSpace(token) == "" {
		return
	}
	if err := s.sessions.Delete(ctx, token); err != nil && !errors.Is(err, store.ErrNotFound) {
		s.logger.Error("session invalidation failed", "error", err)
	}
}

func newSessionToken() (string, error) {
	var buf [32]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf[:]), nil
}
