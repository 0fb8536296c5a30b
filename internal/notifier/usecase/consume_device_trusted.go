package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/classifyhq/classify-auth/internal/pkg/mail"
)

type ConsumeDeviceTrustedInput struct {
	OwnerID   int64  `validate:"required,gt=0"`
	Email     string `validate:"required,email"`
	DeviceID  string `validate:"required"`
	Label     string
	TrustedAt time.Time
}

// ConsumeDeviceTrusted sends a best-effort "new device trusted" alert. The
// idempotency guard keys on owner+device+timestamp so broker redeliveries do
// not mail the account twice.
func (s *Usecase) ConsumeDeviceTrusted(ctx context.Context, in ConsumeDeviceTrustedInput) error {
	ctx, span := s.startSpan(ctx, "ConsumeDeviceTrusted")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		slog.ErrorContext(ctx, "Validation failed", "error", err)
		return nil
	}

	key := "notifier:device_trusted:" + strconv.FormatInt(in.OwnerID, 10) +
		":" + in.DeviceID + ":" + strconv.FormatInt(in.TrustedAt.Unix(), 10)

	return s.idemp.Exec(ctx, key, func(ctx context.Context) error {
		label := in.Label
		if label == "" {
			label = "an unnamed device"
		}

		msg := mail.Message{
			To:      []string{in.Email},
			Subject: fmt.Sprintf("New trusted device on your %s account", s.cfg.GetString("app.name")),
			TextBody: fmt.Sprintf(
				"A new device (%s) was remembered on your account on %s.\n\n"+
					"If this was you, no action is needed. If you do not recognize this device, "+
					"revoke it from your account settings and request a new verification code.",
				label, in.TrustedAt.Format(time.RFC1123),
			),
		}

		if err := s.repoMail.Send(ctx, msg); err != nil {
			slog.ErrorContext(ctx, "failed to send device trusted alert", "account_id", in.OwnerID, "error", err)
			return err
		}

		return nil
	})
}
