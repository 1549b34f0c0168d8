package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/classvault/apiserver/internal/policy"
	"github.com/classvault/apiserver/types"
	gocache "github.com/patrickmn/go-cache"
)

const (
	userListCacheKey = "non-student-users"
	userListCacheTTL = 30 * time.Second
)

// AdminService implements the administrator control surface: approval
// flags, keyword restrictions, and account deletion. Mutations only apply
// to non-student rows; that rule is enforced here rather than assumed of
// the console UI.
type AdminService struct {
	users    UserRepository
	sessions SessionRepository
	otpRepo  OTPRepository
	cache    *gocache.Cache
	logger   *slog.Logger
}

func NewAdminService(users UserRepository, sessions SessionRepository, otpRepo OTPRepository, logger *slog.Logger) *AdminService {
	return &AdminService{
		users:    users,
		sessions: sessions,
		otpRepo:  otpRepo,
		cache:    gocache.New(userListCacheTTL, 2*userListCacheTTL),
		logger:   logger,
	}
}

// ListNonStudentUsers returns the administrable user list. The list is a
// read-side convenience, not an authorization input, so a short cache is
// fine; any mutation flushes it.
func (s *AdminService) ListNonStudentUsers(ctx context.Context) ([]types.User, error) {
	if cached, found := s.cache.Get(userListCacheKey); found {
		return cached.([]types.User), nil
	}

	users, err := s.users.ListNonStudents(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.Set(userListCacheKey, users, gocache.DefaultExpiration)
	return users, nil
}

// SetDashboardAccess writes the approval flag for a non-student account.
func (s *AdminService) SetDashboardAccess(ctx context.Context, userID string, granted bool) error {
	if err := s.requireNonStudent(ctx, userID); err != nil {
		return err
	}

	if err := s.users.SetDashboardAccess(ctx, userID, granted); err != nil {
		return err
	}
	s.cache.Flush()
	s.logger.Info("dashboard access updated", "userId", userID, "granted", granted)
	return nil
}

// SetFileAccessKeyword writes the keyword restriction for a non-student
// account. The value is normalized once, here at the write boundary:
// surrounding whitespace is trimmed and an empty result clears the
// restriction entirely.
func (s *AdminService) SetFileAccessKeyword(ctx context.Context, userID, keyword string) error {
	if err := s.requireNonStudent(ctx, userID); err != nil {
		return err
	}

	if err := s.users.SetFileAccessKeyword(ctx, userID, policy.NormalizeKeyword(keyword)); err != nil {
		return err
	}
	s.cache.Flush()
	s.logger.Info("file access keyword updated", "userId", userID)
	return nil
}

// DeleteAccount removes the identity from the authentication layer
// (sessions and any outstanding code) and then the profile row. The steps
// span two stores and are not transactional: a partial failure is reported
// as such, with no rollback of the steps that succeeded.
func (s *AdminService) DeleteAccount(ctx context.Context, userID string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.IsStudent {
		return ErrStudentImmutable
	}

	var completed []string

	if err := s.sessions.DeleteByAccount(ctx, user.AccountID); err != nil {
		return &PartialDeleteError{UserID: userID, Completed: completed, Failed: "sessions", Err: err}
	}
	completed = append(completed, "sessions")

	if err := s.otpRepo.Delete(ctx, user.AccountID); err != nil {
		return &PartialDeleteError{UserID: userID, Completed: completed, Failed: "otp", Err: err}
	}
	completed = append(completed, "otp")

	if err := s.users.Delete(ctx, userID); err != nil {
		return &PartialDeleteError{UserID: userID, Completed: completed, Failed: "profile", Err: err}
	}

	s.cache.Flush()
	s.logger.Info("account deleted", "userId", userID, "accountId", user.AccountID)
	return nil
}

func (s *AdminService) requireNonStudent(ctx context.Context, userID string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.IsStudent {
		return ErrStudentImmutable
	}
	return nil
}
