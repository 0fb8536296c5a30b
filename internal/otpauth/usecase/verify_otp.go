package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/classifyhq/classify-auth/internal/otpauth/entity"
	"github.com/classifyhq/classify-auth/internal/pkg/goerror"
)

// Verification failure reasons. Shared vars so callers and tests can match
// with errors.Is instead of string comparison.
var (
	ErrOtpNotFound    = goerror.NewBusiness("verification code not found", goerror.CodeNotFound)
	ErrOtpExpired     = goerror.NewBusiness("verification code expired", goerror.CodeUnauthorized)
	ErrOtpInvalid     = goerror.NewBusiness("verification code invalid", goerror.CodeUnauthorized)
	ErrOtpAlreadyUsed = goerror.NewBusiness("verification code already used", goerror.CodeConflict)
	ErrOtpBlocked     = goerror.NewBusiness("verification code blocked", goerror.CodeForbidden)
)

type VerifyOtpInput struct {
	OtpID          int64  // optional: pins verification to the exact issued record
	Destination    string `validate:"required,max=255"`
	Purpose        string `validate:"required"`
	Code           string `validate:"required,min=4,max=10"`
	DeviceID       string `validate:"required,max=255"`
	DeviceLabel    string `validate:"max=255"`
	RememberDevice bool
	IPAddress      string `validate:"required,max=45"`
}

type VerifyOtpOutput struct {
	SessionToken string
	AccessToken  string
	// DeviceRefreshToken is set only when RememberDevice was requested; it is
	// returned exactly once and never stored in the clear.
	DeviceRefreshToken string
	DeviceExpiresAt    int64
}

// VerifyOtp runs the verification engine and, on success, issues the session
// credentials. All record transitions are conditional updates; losing a race
// maps to ErrOtpAlreadyUsed, never a false success or a wasted attempt.
func (s *Usecase) VerifyOtp(ctx context.Context, in VerifyOtpInput) (*VerifyOtpOutput, error) {
	ctx, span := s.startSpan(ctx, "VerifyOtp")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	purpose := entity.PurposeFromString(in.Purpose)
	if purpose.IsUnknown() {
		return nil, goerror.NewInvalidFormat("purpose is not recognized")
	}

	dest := entity.NormalizeDestination(in.Destination)

	allowed, retryAfter, err := s.verifyLimiter.Allow(ctx, in.IPAddress+":"+dest)
	if err != nil {
		slog.ErrorContext(ctx, "failed to check verify rate limit", "error", err)
		return nil, goerror.NewServer(err)
	}
	if !allowed {
		return nil, goerror.NewRateLimited("too many verification attempts", retryAfter)
	}

	rec, err := s.resolveRecord(ctx, in.OtpID, dest, purpose)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()

	if now.After(rec.ExpiresAt) {
		if err := s.repoDB.MarkOtpExpired(ctx, rec.ID); err != nil {
			slog.ErrorContext(ctx, "failed to repo mark otp expired", "otp_id", rec.ID, "error", err)
		}

		return nil, ErrOtpExpired
	}

	if !s.bcrypt.Verify(rec.CodeHash, in.Code) {
		return nil, s.handleMismatch(ctx, rec)
	}

	ok, err := s.repoDB.MarkOtpVerified(ctx, rec.ID, now)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo mark otp verified", "otp_id", rec.ID, "error", err)
		return nil, goerror.NewServer(err)
	}
	if !ok {
		return nil, ErrOtpAlreadyUsed
	}

	return s.issueCredentials(ctx, rec, in)
}

// resolveRecord implements the dual lookup mode: pinned by id when the caller
// echoes one back, newest pending for the key otherwise. A pinned lookup sees
// terminal records and reports what happened to them.
func (s *Usecase) resolveRecord(ctx context.Context, otpID int64, dest string, purpose entity.Purpose) (*entity.OtpRecord, error) {
	var (
		rec *entity.OtpRecord
		err error
	)

	if otpID != 0 {
		rec, err = s.repoDB.GetOtpByID(ctx, otpID, dest, purpose)
	} else {
		rec, err = s.repoDB.GetLatestPendingOtp(ctx, dest, purpose)
	}

	if errors.Is(err, goerror.ErrNotFound) {
		return nil, ErrOtpNotFound
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo resolve otp record", "error", err)
		return nil, goerror.NewServer(err)
	}

	switch rec.Status {
	case entity.OtpStatusPending:
		return rec, nil
	case entity.OtpStatusBlocked:
		return nil, ErrOtpBlocked
	case entity.OtpStatusExpired:
		return nil, ErrOtpExpired
	case entity.OtpStatusVerified, entity.OtpStatusSuperseded:
		return nil, ErrOtpAlreadyUsed
	default:
		return nil, ErrOtpNotFound
	}
}

// handleMismatch charges the attempt budget for a confirmed wrong guess.
// A zero-row increment means the record left pending first, so the guess was
// never actually tested against a live code.
func (s *Usecase) handleMismatch(ctx context.Context, rec *entity.OtpRecord) error {
	attempts, ok, err := s.repoDB.IncrementOtpAttempts(ctx, rec.ID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo increment otp attempts", "otp_id", rec.ID, "error", err)
		return goerror.NewServer(err)
	}
	if !ok {
		return ErrOtpAlreadyUsed
	}

	if attempts >= s.cfg.GetInt32("modules.otpauth.max_attempts") {
		if err := s.repoDB.BlockOtp(ctx, rec.ID); err != nil {
			slog.ErrorContext(ctx, "failed to repo block otp", "otp_id", rec.ID, "error", err)
			return goerror.NewServer(err)
		}

		slog.WarnContext(ctx, "otp blocked after too many attempts", "otp_id", rec.ID)

		return ErrOtpBlocked
	}

	return ErrOtpInvalid
}

func (s *Usecase) issueCredentials(ctx context.Context, rec *entity.OtpRecord, in VerifyOtpInput) (*VerifyOtpOutput, error) {
	now := s.clock.Now()

	var ownerID int64
	var email string
	if rec.OwnerID != nil {
		ownerID = *rec.OwnerID

		if err := s.repoDB.ResetFailedLogins(ctx, ownerID); err != nil {
			slog.ErrorContext(ctx, "failed to repo reset failed logins", "account_id", ownerID, "error", err)
		}

		acc, err := s.repoDB.GetAccountByID(ctx, ownerID)
		if err != nil {
			slog.WarnContext(ctx, "failed to repo get account after verify", "account_id", ownerID, "error", err)
		} else {
			email = acc.Email
		}
	}

	deviceIDHash, err := s.hmac.Hash(in.DeviceID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to hash device id", "error", err)
		return nil, goerror.NewServer(err)
	}

	sessToken := s.oid.Generate()
	sessHash, err := s.hmac.Hash(sessToken)
	if err != nil {
		slog.ErrorContext(ctx, "failed to hash session token", "error", err)
		return nil, goerror.NewServer(err)
	}

	if err := s.repoDB.UpsertSession(ctx, entity.Session{
		ID:           s.uid.Generate(),
		OwnerID:      ownerID,
		DeviceIDHash: string(deviceIDHash),
		TokenHash:    string(sessHash),
		ExpiresAt:    now.Add(s.cfg.GetHour("modules.otpauth.session_ttl_hours")),
		CreatedAt:    now,
	}); err != nil {
		slog.ErrorContext(ctx, "failed to repo upsert session", "account_id", ownerID, "error", err)
		return nil, goerror.NewServer(err)
	}

	acToken, err := s.jwt.Generate(ownerID, rec.Destination)
	if err != nil {
		slog.ErrorContext(ctx, "failed to generate access jwt token", "account_id", ownerID, "error", err)
		return nil, goerror.NewServer(err)
	}

	out := &VerifyOtpOutput{SessionToken: sessToken, AccessToken: acToken}

	if in.RememberDevice && rec.OwnerID != nil {
		grant, err := s.trustDevice(ctx, ownerID, in.DeviceID, in.DeviceLabel)
		if err != nil {
			return nil, err
		}

		out.DeviceRefreshToken = grant.RawRefreshToken
		out.DeviceExpiresAt = grant.ExpiresAt.Unix()

		s.goroutine.Go(ctx, func(ctx context.Context) error {
			return s.repoMessaging.PublishDeviceTrusted(ctx, DeviceTrustedEvent{
				OwnerID:   ownerID,
				Email:     email,
				DeviceID:  in.DeviceID,
				Label:     in.DeviceLabel,
				TrustedAt: now,
			})
		})
	}

	return out, nil
}

// trustDevice grants a device-trust record, evicting the least recently used
// device when the owner is at the cap. The eviction read-then-revoke can
// transiently overshoot under concurrent grants; the next grant re-balances.
func (s *Usecase) trustDevice(ctx context.Context, ownerID int64, deviceID, label string) (*entity.DeviceTrustGrant, error) {
	now := s.clock.Now()

	devices, err := s.repoDB.ListActiveTrustedDevices(ctx, ownerID, now)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo list trusted devices", "account_id", ownerID, "error", err)
		return nil, goerror.NewServer(err)
	}

	if limit := s.cfg.GetInt("modules.otpauth.max_trusted_devices"); len(devices) >= limit {
		// devices arrive oldest-use first
		oldest := devices[0]
		evictedHash, ok, err := s.repoDB.RevokeTrustedDevice(ctx, ownerID, oldest.ID, now)
		if err != nil {
			slog.ErrorContext(ctx, "failed to repo evict trusted device", "account_id", ownerID, "error", err)
			return nil, goerror.NewServer(err)
		}
		if ok {
			if err := s.repoDB.DeleteSessionsByDevice(ctx, ownerID, evictedHash); err != nil {
				slog.ErrorContext(ctx, "failed to repo delete sessions for evicted device", "account_id", ownerID, "error", err)
				return nil, goerror.NewServer(err)
			}
		}
	}

	deviceIDHash, err := s.hmac.Hash(deviceID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to hash device id", "error", err)
		return nil, goerror.NewServer(err)
	}

	rawToken := s.oid.Generate()
	tokenHash, err := s.argon2id.Hash(rawToken)
	if err != nil {
		slog.ErrorContext(ctx, "failed to hash device refresh token", "error", err)
		return nil, goerror.NewServer(err)
	}

	expiresAt := now.Add(s.cfg.GetDay("modules.otpauth.device_trust_ttl_days"))

	if err := s.repoDB.CreateTrustedDevice(ctx, entity.TrustedDevice{
		ID:               s.uid.Generate(),
		OwnerID:          ownerID,
		DeviceIDHash:     string(deviceIDHash),
		RefreshTokenHash: string(tokenHash),
		Label:            label,
		LastUsedAt:       now,
		ExpiresAt:        expiresAt,
		CreatedAt:        now,
	}); err != nil {
		slog.ErrorContext(ctx, "failed to repo create trusted device", "account_id", ownerID, "error", err)
		return nil, goerror.NewServer(err)
	}

	return &entity.DeviceTrustGrant{
		DeviceID:        deviceID,
		RawRefreshToken: rawToken,
		ExpiresAt:       expiresAt,
	}, nil
}
