// Package delivery sends one-time passcodes out of band. Concrete providers
// (SMTP email, Pinpoint SMS) sit behind a small interface; the Registry keeps
// the operator-controlled active set and handles priority fallback.
package delivery

import (
	"context"
	"time"

	"github.com/classifyhq/classify-auth/internal/otpauth/entity"
)

// Provider pushes a single passcode to a destination. Implementations must be
// safe for concurrent use.
type Provider interface {
	// Name is the stable identifier matched against delivery_providers rows.
	Name() string

	// Method reports which kind of destination the provider serves.
	Method() entity.DeliveryMethod

	// Send delivers the code. ttl is surfaced in the message body so the
	// recipient knows how long the code stays valid.
	Send(ctx context.Context, destination, code string, ttl time.Duration) error
}
