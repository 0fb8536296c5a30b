package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/classifyhq/classify-auth/internal/otpauth/entity"
	"github.com/classifyhq/classify-auth/internal/pkg/goerror"
)

type RequestOtpInput struct {
	Destination       string `validate:"required,max=255"`
	Purpose           string `validate:"required"`
	Method            string `validate:"required"`
	DeviceFingerprint string `validate:"max=255"`
	IPAddress         string `validate:"required,max=45"`
}

type RequestOtpOutput struct {
	OtpID     int64
	ExpiresAt time.Time
}

// RequestOtp issues a fresh passcode for (destination, purpose). The code is
// delivered before anything is persisted, so a failed send never strands a
// pending record the caller cannot act on.
func (s *Usecase) RequestOtp(ctx context.Context, in RequestOtpInput) (*RequestOtpOutput, error) {
	ctx, span := s.startSpan(ctx, "RequestOtp")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	purpose := entity.PurposeFromString(in.Purpose)
	if purpose.IsUnknown() {
		return nil, goerror.NewInvalidFormat("purpose is not recognized")
	}

	method := entity.DeliveryMethodFromString(in.Method)
	if method.IsUnknown() {
		return nil, goerror.NewInvalidFormat("delivery method is not recognized")
	}

	dest := entity.NormalizeDestination(in.Destination)
	now := s.clock.Now()

	acc, err := s.repoDB.GetAccountByDestination(ctx, dest)
	if err != nil && !errors.Is(err, goerror.ErrNotFound) {
		slog.ErrorContext(ctx, "failed to repo get account by destination", "error", err)
		return nil, goerror.NewServer(err)
	}

	var ownerID *int64
	if acc != nil {
		// the lockout gates logins only; a locked user must still be able
		// to request a reset code to recover the account
		if purpose == entity.PurposeLogin && acc.LockedUntil != nil && now.Before(*acc.LockedUntil) {
			slog.WarnContext(ctx, "login otp requested for locked account", "account_id", acc.ID)
			return nil, goerror.NewBusiness("account is temporarily locked", goerror.CodeForbidden)
		}

		ownerID = &acc.ID
	}

	cooldown := s.cfg.GetSecond("modules.otpauth.cooldown_seconds")
	lastAt, err := s.repoDB.GetNewestOtpCreatedAt(ctx, dest, purpose)
	if err != nil && !errors.Is(err, goerror.ErrNotFound) {
		slog.ErrorContext(ctx, "failed to repo get newest otp", "error", err)
		return nil, goerror.NewServer(err)
	}
	if err == nil {
		if remaining := cooldown - now.Sub(lastAt); remaining > 0 {
			return nil, goerror.NewRateLimited("a code was sent recently, try again later", remaining)
		}
	}

	window := s.cfg.GetMinute("modules.otpauth.quota_window_minutes")
	count, err := s.repoDB.CountRequests(ctx, dest, in.IPAddress, now.Add(-window))
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo count otp requests", "error", err)
		return nil, goerror.NewServer(err)
	}
	if count >= s.cfg.GetInt64("modules.otpauth.quota_limit") {
		slog.WarnContext(ctx, "otp request quota exceeded", "ip", in.IPAddress)
		return nil, goerror.NewRateLimited("too many codes requested, try again later", window)
	}

	code, err := s.codeGen.Generate()
	if err != nil {
		slog.ErrorContext(ctx, "failed to generate otp code", "error", err)
		return nil, goerror.NewServer(err)
	}

	codeHash, err := s.bcrypt.Hash(code)
	if err != nil {
		slog.ErrorContext(ctx, "failed to hash otp code", "error", err)
		return nil, goerror.NewServer(err)
	}

	ttl := s.cfg.GetMinute("modules.otpauth.otp_ttl_minutes")

	provider, err := s.deliverer.Deliver(ctx, method, dest, code, ttl)
	if err != nil {
		slog.ErrorContext(ctx, "failed to deliver otp code", "method", method.String(), "error", err)
		return nil, err
	}

	rec := entity.OtpRecord{
		ID:                s.uid.Generate(),
		OwnerID:           ownerID,
		Purpose:           purpose,
		Destination:       dest,
		DeliveryMethod:    method,
		CodeHash:          string(codeHash),
		Status:            entity.OtpStatusPending,
		ExpiresAt:         now.Add(ttl),
		CreatedAt:         now,
		DeviceFingerprint: in.DeviceFingerprint,
		IPAddress:         in.IPAddress,
	}

	if err := s.repoDB.IssueOtp(ctx, entity.IssueOtp{
		Record: rec,
		Log: entity.RequestLogEntry{
			Destination: dest,
			IPAddress:   in.IPAddress,
			CreatedAt:   now,
		},
	}); err != nil {
		slog.ErrorContext(ctx, "failed to repo issue otp", "error", err)
		return nil, goerror.NewServer(err)
	}

	s.goroutine.Go(ctx, func(ctx context.Context) error {
		return s.repoMessaging.PublishOtpIssued(ctx, OtpIssuedEvent{
			OtpID:       rec.ID,
			Purpose:     purpose.String(),
			Method:      method.String(),
			Destination: dest,
			Provider:    provider,
			IssuedAt:    now,
		})
	})

	return &RequestOtpOutput{OtpID: rec.ID, ExpiresAt: rec.ExpiresAt}, nil
}
