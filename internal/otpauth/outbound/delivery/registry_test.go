package delivery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/classifyhq/classify-auth/internal/otpauth/entity"
)

type stubProvider struct {
	name   string
	method entity.DeliveryMethod
	err    error
	sends  int
}

func (p *stubProvider) Name() string                  { return p.name }
func (p *stubProvider) Method() entity.DeliveryMethod { return p.method }

func (p *stubProvider) Send(context.Context, string, string, time.Duration) error {
	p.sends++

	return p.err
}

func TestRegistry(t *testing.T) {
	ctx := context.Background()

	t.Run("AllProvidersActiveBeforeFirstReload", func(t *testing.T) {
		// Arrange
		smtp := &stubProvider{name: "smtp", method: entity.DeliveryMethodEmail}
		sms := &stubProvider{name: "pinpoint", method: entity.DeliveryMethodSMS}
		reg := NewRegistry(smtp, sms)

		// Act
		name, err := reg.Deliver(ctx, entity.DeliveryMethodEmail, "parent@example.com", "123456", time.Minute)

		// Assert
		if err != nil {
			t.Fatalf("deliver failed: %v", err)
		}
		if name != "smtp" || smtp.sends != 1 {
			t.Fatalf("expected smtp to carry the send, got %q (%d sends)", name, smtp.sends)
		}
	})

	t.Run("ReloadRespectsEnabledAndOrder", func(t *testing.T) {
		// Arrange
		first := &stubProvider{name: "first", method: entity.DeliveryMethodSMS}
		second := &stubProvider{name: "second", method: entity.DeliveryMethodSMS}
		reg := NewRegistry(first, second)

		// settings arrive highest priority first
		reg.Reload(ctx, []entity.ProviderSetting{
			{Name: "second", Enabled: true, Priority: 10},
			{Name: "first", Enabled: false, Priority: 5},
			{Name: "never-built", Enabled: true, Priority: 1},
		})

		// Act
		active := reg.Active(entity.DeliveryMethodSMS)

		// Assert
		if len(active) != 1 || active[0] != "second" {
			t.Fatalf("expected only second active, got %v", active)
		}

		name, err := reg.Deliver(ctx, entity.DeliveryMethodSMS, "+12025550175", "123456", time.Minute)
		if err != nil {
			t.Fatalf("deliver failed: %v", err)
		}
		if name != "second" || first.sends != 0 {
			t.Fatalf("disabled provider must not be used, got %q", name)
		}
	})

	t.Run("FallsBackWhenHighestPriorityFails", func(t *testing.T) {
		// Arrange
		broken := &stubProvider{name: "broken", method: entity.DeliveryMethodSMS, err: errors.New("throttled")}
		backup := &stubProvider{name: "backup", method: entity.DeliveryMethodSMS}
		reg := NewRegistry(broken, backup)

		// Act
		name, err := reg.Deliver(ctx, entity.DeliveryMethodSMS, "+12025550175", "123456", time.Minute)

		// Assert
		if err != nil {
			t.Fatalf("deliver failed: %v", err)
		}
		if name != "backup" {
			t.Fatalf("expected fallback to backup, got %q", name)
		}
		if broken.sends < 2 {
			t.Fatalf("expected the broken provider retried before falling back, got %d sends", broken.sends)
		}
	})

	t.Run("NoActiveProviderFailsFast", func(t *testing.T) {
		// Arrange
		smtp := &stubProvider{name: "smtp", method: entity.DeliveryMethodEmail}
		reg := NewRegistry(smtp)

		// Act
		_, err := reg.Deliver(ctx, entity.DeliveryMethodSMS, "+12025550175", "123456", time.Minute)

		// Assert
		if err == nil {
			t.Fatalf("expected error with no sms provider")
		}
		if smtp.sends != 0 {
			t.Fatalf("email provider must not receive an sms send")
		}
	})

	t.Run("AllProvidersFailing", func(t *testing.T) {
		// Arrange
		a := &stubProvider{name: "a", method: entity.DeliveryMethodEmail, err: errors.New("down")}
		b := &stubProvider{name: "b", method: entity.DeliveryMethodEmail, err: errors.New("also down")}
		reg := NewRegistry(a, b)

		// Act
		_, err := reg.Deliver(ctx, entity.DeliveryMethodEmail, "parent@example.com", "123456", time.Minute)

		// Assert
		if err == nil {
			t.Fatalf("expected error when every provider fails")
		}
		if a.sends == 0 || b.sends == 0 {
			t.Fatalf("expected every provider attempted, got a=%d b=%d", a.sends, b.sends)
		}
	})
}
