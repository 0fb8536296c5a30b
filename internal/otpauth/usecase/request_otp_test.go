package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/classifyhq/classify-auth/internal/otpauth/entity"
	"github.com/classifyhq/classify-auth/internal/pkg/goerror"
)

const (
	testIP   = "203.0.113.7"
	testDest = "parent@example.com"
)

func requestInput() RequestOtpInput {
	return RequestOtpInput{
		Destination: testDest,
		Purpose:     "login",
		Method:      "email",
		IPAddress:   testIP,
	}
}

func TestRequestOtp(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		// Arrange
		f := newFixture(t)
		now := f.clock.Now()

		// Act
		out, err := f.uc.RequestOtp(ctx, requestInput())
		if err != nil {
			t.Fatalf("request otp failed: %v", err)
		}

		// Assert
		if out.OtpID == 0 {
			t.Fatalf("expected a record id")
		}
		if want := now.Add(5 * time.Minute); !out.ExpiresAt.Equal(want) {
			t.Fatalf("expected expiry %v, got %v", want, out.ExpiresAt)
		}

		rec := f.repo.otps[out.OtpID]
		if rec == nil || rec.Status != entity.OtpStatusPending {
			t.Fatalf("expected a pending record persisted")
		}
		if code := f.deliverer.lastCode(); len(code) != 6 {
			t.Fatalf("expected a 6-digit code delivered, got %q", code)
		}
		if rec.CodeHash == f.deliverer.lastCode() {
			t.Fatalf("code must not be stored in the clear")
		}
		if !f.bcrypt.Verify(rec.CodeHash, f.deliverer.lastCode()) {
			t.Fatalf("stored hash does not match delivered code")
		}
		if len(f.repo.log) != 1 {
			t.Fatalf("expected one request log entry, got %d", len(f.repo.log))
		}
	})

	t.Run("NormalizesDestination", func(t *testing.T) {
		// Arrange
		f := newFixture(t)

		in := requestInput()
		in.Destination = "  Parent@Example.COM "

		// Act
		out, err := f.uc.RequestOtp(ctx, in)
		if err != nil {
			t.Fatalf("request otp failed: %v", err)
		}

		// Assert
		if got := f.repo.otps[out.OtpID].Destination; got != testDest {
			t.Fatalf("expected normalized destination %q, got %q", testDest, got)
		}
	})

	t.Run("CooldownReturnsRetryAfter", func(t *testing.T) {
		// Arrange
		f := newFixture(t)

		if _, err := f.uc.RequestOtp(ctx, requestInput()); err != nil {
			t.Fatalf("first request failed: %v", err)
		}

		f.clock.Advance(10 * time.Second)

		// Act
		_, err := f.uc.RequestOtp(ctx, requestInput())

		// Assert
		gerr := asGoError(t, err)
		if gerr.Code() != goerror.CodeTooManyRequest {
			t.Fatalf("expected too-many-requests, got %v", gerr.Code())
		}
		if got := gerr.RetryAfter(); got != 50*time.Second {
			t.Fatalf("expected retry-after 50s, got %v", got)
		}
	})

	t.Run("CooldownElapsedAllowsReissue", func(t *testing.T) {
		// Arrange
		f := newFixture(t)

		first, err := f.uc.RequestOtp(ctx, requestInput())
		if err != nil {
			t.Fatalf("first request failed: %v", err)
		}

		f.clock.Advance(61 * time.Second)

		// Act
		second, err := f.uc.RequestOtp(ctx, requestInput())
		if err != nil {
			t.Fatalf("second request failed: %v", err)
		}

		// Assert
		if f.repo.otps[first.OtpID].Status != entity.OtpStatusSuperseded {
			t.Fatalf("expected first record superseded")
		}
		if f.repo.otps[second.OtpID].Status != entity.OtpStatusPending {
			t.Fatalf("expected second record pending")
		}
	})

	t.Run("QuotaExceeded", func(t *testing.T) {
		// Arrange
		f := newFixture(t)

		for i := 0; i < 3; i++ {
			if _, err := f.uc.RequestOtp(ctx, requestInput()); err != nil {
				t.Fatalf("request %d failed: %v", i, err)
			}
			f.clock.Advance(61 * time.Second)
		}

		// Act
		_, err := f.uc.RequestOtp(ctx, requestInput())

		// Assert
		gerr := asGoError(t, err)
		if gerr.Code() != goerror.CodeTooManyRequest {
			t.Fatalf("expected too-many-requests, got %v", gerr.Code())
		}
		if gerr.RetryAfter() <= 0 {
			t.Fatalf("expected a positive retry-after")
		}
	})

	t.Run("SupersededRecordsStillCountTowardQuota", func(t *testing.T) {
		// Arrange
		f := newFixture(t)

		for i := 0; i < 3; i++ {
			if _, err := f.uc.RequestOtp(ctx, requestInput()); err != nil {
				t.Fatalf("request %d failed: %v", i, err)
			}
			f.clock.Advance(61 * time.Second)
		}

		// quota counts request-log rows, not live records
		pending := 0
		for _, rec := range f.repo.otps {
			if rec.Status == entity.OtpStatusPending {
				pending++
			}
		}
		if pending != 1 {
			t.Fatalf("expected a single pending record, got %d", pending)
		}

		// Act
		_, err := f.uc.RequestOtp(ctx, requestInput())

		// Assert
		if asGoError(t, err).Code() != goerror.CodeTooManyRequest {
			t.Fatalf("expected quota rejection")
		}
	})

	t.Run("DeliveryFailureLeavesNoRecord", func(t *testing.T) {
		// Arrange
		f := newFixture(t)
		f.deliverer.err = errors.New("smtp connection refused")

		// Act
		_, err := f.uc.RequestOtp(ctx, requestInput())

		// Assert
		if err == nil {
			t.Fatalf("expected delivery error")
		}
		if len(f.repo.otps) != 0 {
			t.Fatalf("expected no record persisted on delivery failure")
		}
		if len(f.repo.log) != 0 {
			t.Fatalf("expected no request log entry on delivery failure")
		}
	})

	t.Run("LockedAccountRejected", func(t *testing.T) {
		// Arrange
		f := newFixture(t)
		id := f.addAccount(t, testDest, "S3cret!pass")

		until := f.clock.Now().Add(10 * time.Minute)
		f.repo.accounts[id].LockedUntil = &until

		// Act
		_, err := f.uc.RequestOtp(ctx, requestInput())

		// Assert
		if asGoError(t, err).Code() != goerror.CodeForbidden {
			t.Fatalf("expected forbidden for locked account, got %v", err)
		}
	})

	t.Run("LockedAccountCanRequestReset", func(t *testing.T) {
		// Arrange
		f := newFixture(t)
		id := f.addAccount(t, testDest, "S3cret!pass")

		until := f.clock.Now().Add(10 * time.Minute)
		f.repo.accounts[id].LockedUntil = &until

		in := requestInput()
		in.Purpose = "reset"

		// Act
		out, err := f.uc.RequestOtp(ctx, in)
		if err != nil {
			t.Fatalf("reset request failed for locked account: %v", err)
		}

		// Assert
		rec := f.repo.otps[out.OtpID]
		if rec == nil || rec.Status != entity.OtpStatusPending {
			t.Fatalf("expected a pending reset code despite the lock")
		}
	})

	t.Run("KnownAccountLinksOwner", func(t *testing.T) {
		// Arrange
		f := newFixture(t)
		id := f.addAccount(t, testDest, "S3cret!pass")

		// Act
		out, err := f.uc.RequestOtp(ctx, requestInput())
		if err != nil {
			t.Fatalf("request otp failed: %v", err)
		}

		// Assert
		rec := f.repo.otps[out.OtpID]
		if rec.OwnerID == nil || *rec.OwnerID != id {
			t.Fatalf("expected record linked to account %d", id)
		}
	})

	t.Run("UnknownDestinationStillIssues", func(t *testing.T) {
		// Arrange
		f := newFixture(t)

		// Act
		out, err := f.uc.RequestOtp(ctx, requestInput())
		if err != nil {
			t.Fatalf("request otp failed: %v", err)
		}

		// Assert
		if f.repo.otps[out.OtpID].OwnerID != nil {
			t.Fatalf("expected ownerless record for unknown destination")
		}
	})

	t.Run("UnknownPurposeRejected", func(t *testing.T) {
		// Arrange
		f := newFixture(t)

		in := requestInput()
		in.Purpose = "teleport"

		// Act
		_, err := f.uc.RequestOtp(ctx, in)

		// Assert
		if err == nil {
			t.Fatalf("expected rejection for unknown purpose")
		}
	})

	t.Run("UnknownMethodRejected", func(t *testing.T) {
		// Arrange
		f := newFixture(t)

		in := requestInput()
		in.Method = "carrier-pigeon"

		// Act
		_, err := f.uc.RequestOtp(ctx, in)

		// Assert
		if err == nil {
			t.Fatalf("expected rejection for unknown method")
		}
	})

	t.Run("PublishesIssuedEvent", func(t *testing.T) {
		// Arrange
		f := newFixture(t)

		// Act
		out, err := f.uc.RequestOtp(ctx, requestInput())
		if err != nil {
			t.Fatalf("request otp failed: %v", err)
		}

		if err := f.gm.Wait(); err != nil {
			t.Fatalf("background publish failed: %v", err)
		}

		// Assert
		f.msg.mu.Lock()
		defer f.msg.mu.Unlock()

		if len(f.msg.issued) != 1 {
			t.Fatalf("expected one issued event, got %d", len(f.msg.issued))
		}
		if f.msg.issued[0].OtpID != out.OtpID {
			t.Fatalf("event carries wrong record id")
		}
	})
}
