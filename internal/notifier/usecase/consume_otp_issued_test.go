package usecase

import (
	"context"
	"testing"
	"time"
)

func TestConsumeOtpIssued(t *testing.T) {
	ctx := context.Background()

	input := ConsumeOtpIssuedInput{
		OtpID:       101,
		Purpose:     "login",
		Method:      "email",
		Destination: "parent@example.com",
		Provider:    "smtp",
		IssuedAt:    time.Date(2026, 1, 2, 9, 30, 0, 0, time.UTC),
	}

	t.Run("RecordsAuditEntry", func(t *testing.T) {
		// Arrange
		uc, _, idemp := newNotifierFixture(t)

		// Act
		if err := uc.ConsumeOtpIssued(ctx, input); err != nil {
			t.Fatalf("consume failed: %v", err)
		}

		// Assert
		if idemp.execs != 1 {
			t.Fatalf("expected one audit write, got %d", idemp.execs)
		}
	})

	t.Run("RedeliveryAuditsOnce", func(t *testing.T) {
		// Arrange
		uc, _, idemp := newNotifierFixture(t)

		// Act: broker redelivers the same event
		for i := 0; i < 3; i++ {
			if err := uc.ConsumeOtpIssued(ctx, input); err != nil {
				t.Fatalf("consume %d failed: %v", i, err)
			}
		}

		// Assert
		if idemp.execs != 1 {
			t.Fatalf("expected a single audit write across redeliveries, got %d", idemp.execs)
		}
	})

	t.Run("InvalidPayloadDropped", func(t *testing.T) {
		// Arrange
		uc, _, idemp := newNotifierFixture(t)

		bad := input
		bad.OtpID = 0

		// Act: malformed events are dropped, not requeued forever
		if err := uc.ConsumeOtpIssued(ctx, bad); err != nil {
			t.Fatalf("expected nil for malformed payload, got %v", err)
		}

		// Assert
		if idemp.execs != 0 {
			t.Fatalf("expected no audit write for malformed payload, got %d", idemp.execs)
		}
	})
}
