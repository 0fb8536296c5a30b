package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/classifyhq/classify-auth/internal/otpauth/entity"
	"github.com/classifyhq/classify-auth/internal/pkg/mail"
)

// Email delivers passcodes over a mail.Mail sender (SMTP in production).
type Email struct {
	sender  mail.Mail
	appName string
}

// NewEmail constructs the email provider.
func NewEmail(sender mail.Mail, appName string) *Email {
	return &Email{sender: sender, appName: appName}
}

func (e *Email) Name() string { return "smtp" }

func (e *Email) Method() entity.DeliveryMethod { return entity.DeliveryMethodEmail }

// Send mails the passcode. The code never appears in the subject line so it
// stays out of notification previews.
func (e *Email) Send(ctx context.Context, destination, code string, ttl time.Duration) error {
	minutes := int(ttl.Minutes())

	return e.sender.Send(ctx, mail.Message{
		To:      []string{destination},
		Subject: fmt.Sprintf("Your %s verification code", e.appName),
		TextBody: fmt.Sprintf(
			"Your verification code is %s. It expires in %d minutes.\n\n"+
				"If you did not request this code, you can ignore this email.",
			code, minutes,
		),
	})
}
