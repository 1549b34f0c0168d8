package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/classvault/apiserver/internal/mailer"
	"github.com/classvault/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

const otpDigits = 6

// OTPRepository defines persistence operations for one-time codes.
type OTPRepository interface {
	Upsert(ctx context.Context, code types.OneTimeCode) error
	Get(ctx context.Context, accountID string) (types.OneTimeCode, error)
	IncrementAttempts(ctx context.Context, accountID string) (int, error)
	Delete(ctx context.Context, accountID string) error
}

// OTPIssuer generates, stores, and dispatches one-time codes. Exactly one
// code is live per account: a re-issue replaces the previous one, so stale
// codes fail verification deterministically.
type OTPIssuer struct {
	repo       OTPRepository
	dispatcher mailer.Dispatcher
	ttl        time.Duration
	logger     *slog.Logger
}

func NewOTPIssuer(repo OTPRepository, dispatcher mailer.Dispatcher, ttl time.Duration, logger *slog.Logger) *OTPIssuer {
	return &OTPIssuer{
		repo:       repo,
		dispatcher: dispatcher,
		ttl:        ttl,
		logger:     logger,
	}
}

// Issue mints a fresh code for the account and hands it to the mail
// transport. If dispatch fails the stored code is discarded before the
// error is returned, so no valid code can exist that the user never saw.
func (i *OTPIssuer) Issue(ctx context.Context, accountID, email string) error {
	code, err := generateCode()
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	now := time.Now()
	if err := i.repo.Upsert(ctx, types.OneTimeCode{
		AccountID: accountID,
		CodeHash:  string(hash),
		ExpiresAt: now.Add(i.ttl),
		CreatedAt: now,
	}); err != nil {
		return err
	}

	if err := i.dispatcher.DispatchOTP(ctx, email, code); err != nil {
		if delErr := i.repo.Delete(ctx, accountID); delErr != nil {
			i.logger.Error("failed to discard undelivered code", "accountId", accountID, "error", delErr)
		}
		return fmt.Errorf("%w: %v", ErrDispatchFailed, err)
	}

	i.logger.Info("otp issued", "accountId", accountID)
	return nil
}

func generateCode() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < otpDigits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpDigits, n), nil
}
