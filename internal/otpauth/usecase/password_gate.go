package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/classifyhq/classify-auth/internal/pkg/goerror"
)

type PasswordGateInput struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

type PasswordGateOutput struct {
	AccountID int64
}

// PasswordGate checks a password ahead of an OTP challenge and feeds the
// account lockout counter. Repeated failures lock the account for a window,
// which also gates OTP issuance for the same destination.
func (s *Usecase) PasswordGate(ctx context.Context, in PasswordGateInput) (*PasswordGateOutput, error) {
	ctx, span := s.startSpan(ctx, "PasswordGate")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	acc, err := s.repoDB.GetAccountByDestination(ctx, in.Email)
	if errors.Is(err, goerror.ErrNotFound) {
		slog.WarnContext(ctx, "account not found for password gate")
		return nil, goerror.NewBusiness("invalid email or password", goerror.CodeUnauthorized)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get account by destination", "error", err)
		return nil, goerror.NewServer(err)
	}

	now := s.clock.Now()

	if acc.LockedUntil != nil && now.Before(*acc.LockedUntil) {
		return nil, goerror.NewBusiness("account is temporarily locked", goerror.CodeForbidden)
	}

	if !s.bcrypt.Verify(acc.Password, in.Password) {
		threshold := s.cfg.GetInt32("modules.otpauth.lockout_threshold")
		lockUntil := now.Add(s.cfg.GetMinute("modules.otpauth.lockout_minutes"))

		if err := s.repoDB.RecordFailedLogin(ctx, acc.ID, threshold, lockUntil); err != nil {
			slog.ErrorContext(ctx, "failed to repo record failed login", "account_id", acc.ID, "error", err)
			return nil, goerror.NewServer(err)
		}

		slog.WarnContext(ctx, "password mismatch", "account_id", acc.ID)

		return nil, goerror.NewBusiness("invalid email or password", goerror.CodeUnauthorized)
	}

	return &PasswordGateOutput{AccountID: acc.ID}, nil
}
