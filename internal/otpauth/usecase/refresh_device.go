package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/classifyhq/classify-auth/internal/otpauth/entity"
	"github.com/classifyhq/classify-auth/internal/pkg/goerror"
)

var errDeviceTrustInvalid = goerror.NewBusiness("device trust is invalid or expired", goerror.CodeUnauthorized)

type RefreshTrustedDeviceInput struct {
	DeviceID     string `validate:"required,max=255"`
	RefreshToken string `validate:"required"`
}

type RefreshTrustedDeviceOutput struct {
	SessionToken string
	AccessToken  string
	RefreshToken string
}

// RefreshTrustedDevice exchanges a device refresh token for a fresh session.
// The stored hash rotates on every use; replaying a spent token loses the
// conditional update and gets rejected.
func (s *Usecase) RefreshTrustedDevice(ctx context.Context, in RefreshTrustedDeviceInput) (*RefreshTrustedDeviceOutput, error) {
	ctx, span := s.startSpan(ctx, "RefreshTrustedDevice")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	deviceIDHash, err := s.hmac.Hash(in.DeviceID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to hash device id", "error", err)
		return nil, goerror.NewServer(err)
	}

	dev, err := s.repoDB.GetTrustedDeviceByHash(ctx, string(deviceIDHash))
	if errors.Is(err, goerror.ErrNotFound) {
		return nil, errDeviceTrustInvalid
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get trusted device", "error", err)
		return nil, goerror.NewServer(err)
	}

	now := s.clock.Now()

	if dev.RevokedAt != nil || now.After(dev.ExpiresAt) {
		return nil, errDeviceTrustInvalid
	}

	if !s.argon2id.Verify(dev.RefreshTokenHash, in.RefreshToken) {
		slog.WarnContext(ctx, "device refresh token mismatch", "account_id", dev.OwnerID)
		return nil, errDeviceTrustInvalid
	}

	newRaw := s.oid.Generate()
	newHash, err := s.argon2id.Hash(newRaw)
	if err != nil {
		slog.ErrorContext(ctx, "failed to hash rotated refresh token", "error", err)
		return nil, goerror.NewServer(err)
	}

	ok, err := s.repoDB.RotateDeviceToken(ctx, entity.RotateDeviceToken{
		DeviceRowID:  dev.ID,
		OwnerID:      dev.OwnerID,
		OldTokenHash: dev.RefreshTokenHash,
		NewTokenHash: string(newHash),
		NewExpiresAt: now.Add(s.cfg.GetDay("modules.otpauth.device_trust_ttl_days")),
		LastUsedAt:   now,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo rotate device token", "account_id", dev.OwnerID, "error", err)
		return nil, goerror.NewServer(err)
	}
	if !ok {
		slog.WarnContext(ctx, "device token rotation lost, possible replay", "account_id", dev.OwnerID)
		return nil, errDeviceTrustInvalid
	}

	sessToken := s.oid.Generate()
	sessHash, err := s.hmac.Hash(sessToken)
	if err != nil {
		slog.ErrorContext(ctx, "failed to hash session token", "error", err)
		return nil, goerror.NewServer(err)
	}

	if err := s.repoDB.UpsertSession(ctx, entity.Session{
		ID:           s.uid.Generate(),
		OwnerID:      dev.OwnerID,
		DeviceIDHash: string(deviceIDHash),
		TokenHash:    string(sessHash),
		ExpiresAt:    now.Add(s.cfg.GetHour("modules.otpauth.session_ttl_hours")),
		CreatedAt:    now,
	}); err != nil {
		slog.ErrorContext(ctx, "failed to repo upsert session", "account_id", dev.OwnerID, "error", err)
		return nil, goerror.NewServer(err)
	}

	acc, err := s.repoDB.GetAccountByID(ctx, dev.OwnerID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get account", "account_id", dev.OwnerID, "error", err)
		return nil, goerror.NewServer(err)
	}

	acToken, err := s.jwt.Generate(acc.ID, acc.Email)
	if err != nil {
		slog.ErrorContext(ctx, "failed to generate access jwt token", "account_id", acc.ID, "error", err)
		return nil, goerror.NewServer(err)
	}

	return &RefreshTrustedDeviceOutput{
		SessionToken: sessToken,
		AccessToken:  acToken,
		RefreshToken: newRaw,
	}, nil
}
