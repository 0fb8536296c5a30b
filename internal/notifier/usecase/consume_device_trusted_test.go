package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/classifyhq/classify-auth/internal/pkg/clock"
	"github.com/classifyhq/classify-auth/internal/pkg/config"
	"github.com/classifyhq/classify-auth/internal/pkg/idempotency"
	"github.com/classifyhq/classify-auth/internal/pkg/instrument"
	"github.com/classifyhq/classify-auth/internal/pkg/mail"
	"github.com/classifyhq/classify-auth/internal/pkg/validator"
)

type fakeIdempotency struct {
	mu    sync.Mutex
	done  map[string]bool
	execs int
}

func (f *fakeIdempotency) Acquire(context.Context, string, time.Duration) (idempotency.State, error) {
	return idempotency.StateNone, nil
}

func (f *fakeIdempotency) MarkCompleted(context.Context, string, time.Duration) error { return nil }
func (f *fakeIdempotency) MarkFailed(context.Context, string, time.Duration) error    { return nil }

func (f *fakeIdempotency) Exec(ctx context.Context, key string, fn func(context.Context) error, _ ...idempotency.Option) error {
	f.mu.Lock()
	if f.done == nil {
		f.done = map[string]bool{}
	}
	if f.done[key] {
		f.mu.Unlock()
		return nil
	}
	f.done[key] = true
	f.execs++
	f.mu.Unlock()

	return fn(ctx)
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []mail.Message
}

func (m *fakeMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sent = append(m.sent, msg)

	return nil
}

func newNotifierFixture(t *testing.T) (*Usecase, *fakeMailer, *fakeIdempotency) {
	t.Helper()

	cfg, err := config.NewViperFromBytes("yaml", []byte("app:\n  name: classify-auth\n"))
	if err != nil {
		t.Fatalf("failed to load test config: %v", err)
	}

	vld, err := validator.NewV10Validator()
	if err != nil {
		t.Fatalf("failed to build validator: %v", err)
	}

	mailer := &fakeMailer{}
	idemp := &fakeIdempotency{}

	uc := NewNotifier(Dependency{
		Config:      cfg,
		Clock:       clock.New(),
		Validator:   vld,
		Idempotency: idemp,
		RepoMail:    mailer,
		Instrument:  instrument.NewNoop(),
	})

	return uc, mailer, idemp
}

func TestConsumeDeviceTrusted(t *testing.T) {
	ctx := context.Background()

	input := ConsumeDeviceTrustedInput{
		OwnerID:   7,
		Email:     "parent@example.com",
		DeviceID:  "tablet-01",
		Label:     "kid tablet",
		TrustedAt: time.Date(2026, 1, 2, 9, 30, 0, 0, time.UTC),
	}

	t.Run("SendsAlert", func(t *testing.T) {
		// Arrange
		uc, mailer, _ := newNotifierFixture(t)

		// Act
		if err := uc.ConsumeDeviceTrusted(ctx, input); err != nil {
			t.Fatalf("consume failed: %v", err)
		}

		// Assert
		if len(mailer.sent) != 1 {
			t.Fatalf("expected one alert mail, got %d", len(mailer.sent))
		}
		if got := mailer.sent[0].To; len(got) != 1 || got[0] != "parent@example.com" {
			t.Fatalf("alert addressed wrong, got %v", got)
		}
	})

	t.Run("RedeliveryMailsOnce", func(t *testing.T) {
		// Arrange
		uc, mailer, _ := newNotifierFixture(t)

		// Act: broker redelivers the same event
		for i := 0; i < 3; i++ {
			if err := uc.ConsumeDeviceTrusted(ctx, input); err != nil {
				t.Fatalf("consume %d failed: %v", i, err)
			}
		}

		// Assert
		if len(mailer.sent) != 1 {
			t.Fatalf("expected a single alert across redeliveries, got %d", len(mailer.sent))
		}
	})

	t.Run("InvalidPayloadDropped", func(t *testing.T) {
		// Arrange
		uc, mailer, _ := newNotifierFixture(t)

		bad := input
		bad.Email = "not-an-email"

		// Act: malformed events are dropped, not requeued forever
		if err := uc.ConsumeDeviceTrusted(ctx, bad); err != nil {
			t.Fatalf("expected nil for malformed payload, got %v", err)
		}

		// Assert
		if len(mailer.sent) != 0 {
			t.Fatalf("expected no mail for malformed payload")
		}
	})
}
