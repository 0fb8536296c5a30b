package usecase

import (
	"context"
	"log/slog"
	"strconv"
	"time"
)

type ConsumeOtpIssuedInput struct {
	OtpID       int64  `validate:"required,gt=0"`
	Purpose     string `validate:"required"`
	Method      string `validate:"required"`
	Destination string `validate:"required"`
	Provider    string
	IssuedAt    time.Time
}

// ConsumeOtpIssued writes the issuance audit entry. The idempotency guard
// keys on the otp id so broker redeliveries do not duplicate the trail.
func (s *Usecase) ConsumeOtpIssued(ctx context.Context, in ConsumeOtpIssuedInput) error {
	ctx, span := s.startSpan(ctx, "ConsumeOtpIssued")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		slog.ErrorContext(ctx, "Validation failed", "error", err)
		return nil
	}

	key := "notifier:otp_issued_audit:" + strconv.FormatInt(in.OtpID, 10)

	return s.idemp.Exec(ctx, key, func(ctx context.Context) error {
		slog.InfoContext(ctx, "audit: otp issued",
			"otp_id", in.OtpID,
			"purpose", in.Purpose,
			"method", in.Method,
			"destination", in.Destination,
			"provider", in.Provider,
			"issued_at", in.IssuedAt.Format(time.RFC3339),
		)

		return nil
	})
}
