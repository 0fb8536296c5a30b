package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/classifyhq/classify-auth/internal/otpauth/entity"
	"github.com/classifyhq/classify-auth/internal/pkg/goerror"
)

func verifyInput(otpID int64, code string) VerifyOtpInput {
	return VerifyOtpInput{
		OtpID:       otpID,
		Destination: testDest,
		Purpose:     "login",
		Code:        code,
		DeviceID:    "tablet-01",
		IPAddress:   testIP,
	}
}

// issueCode requests a fresh code and captures the plaintext the deliverer saw.
func issueCode(t *testing.T, f *fixture) (int64, string) {
	t.Helper()

	out, err := f.uc.RequestOtp(context.Background(), requestInput())
	if err != nil {
		t.Fatalf("request otp failed: %v", err)
	}

	return out.OtpID, f.deliverer.lastCode()
}

func TestVerifyOtp(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		// Arrange
		f := newFixture(t)
		accID := f.addAccount(t, testDest, "S3cret!pass")
		id, code := issueCode(t, f)

		// Act
		out, err := f.uc.VerifyOtp(ctx, verifyInput(id, code))
		if err != nil {
			t.Fatalf("verify failed: %v", err)
		}

		// Assert
		if out.SessionToken == "" || out.AccessToken == "" {
			t.Fatalf("expected session and access tokens")
		}
		if out.DeviceRefreshToken != "" {
			t.Fatalf("expected no device token without remember-device")
		}

		rec := f.repo.otps[id]
		if rec.Status != entity.OtpStatusVerified || rec.VerifiedAt == nil {
			t.Fatalf("expected record verified")
		}

		sess, ok := f.repo.sessions[f.deviceHash(t, "tablet-01")]
		if !ok || sess.OwnerID != accID {
			t.Fatalf("expected session stored for device")
		}
		if sess.TokenHash == out.SessionToken {
			t.Fatalf("session token must be stored hashed")
		}
	})

	t.Run("WrongCodeChargesAttempt", func(t *testing.T) {
		// Arrange
		f := newFixture(t)
		id, _ := issueCode(t, f)

		// Act
		_, err := f.uc.VerifyOtp(ctx, verifyInput(id, "000000"))

		// Assert
		if !errors.Is(err, ErrOtpInvalid) {
			t.Fatalf("expected invalid, got %v", err)
		}
		if got := f.repo.otps[id].Attempts; got != 1 {
			t.Fatalf("expected 1 attempt recorded, got %d", got)
		}
	})

	t.Run("BlockedAfterMaxAttempts", func(t *testing.T) {
		// Arrange
		f := newFixture(t)
		id, code := issueCode(t, f)

		// Act
		var last error
		for i := 0; i < 5; i++ {
			_, last = f.uc.VerifyOtp(ctx, verifyInput(id, "000000"))
		}

		// Assert
		if !errors.Is(last, ErrOtpBlocked) {
			t.Fatalf("expected blocked on attempt 5, got %v", last)
		}
		if f.repo.otps[id].Status != entity.OtpStatusBlocked {
			t.Fatalf("expected record blocked")
		}

		// even the correct code is dead now
		if _, err := f.uc.VerifyOtp(ctx, verifyInput(id, code)); !errors.Is(err, ErrOtpBlocked) {
			t.Fatalf("expected blocked for correct code after exhaustion, got %v", err)
		}
	})

	t.Run("WrongTwiceRightThenReplay", func(t *testing.T) {
		// Arrange
		f := newFixture(t)
		id, code := issueCode(t, f)

		// Act
		for i := 0; i < 2; i++ {
			if _, err := f.uc.VerifyOtp(ctx, verifyInput(id, "000000")); !errors.Is(err, ErrOtpInvalid) {
				t.Fatalf("expected invalid on wrong guess %d, got %v", i, err)
			}
		}

		if _, err := f.uc.VerifyOtp(ctx, verifyInput(id, code)); err != nil {
			t.Fatalf("expected success on correct code, got %v", err)
		}

		// Assert: replaying the consumed record reports what happened to it
		if _, err := f.uc.VerifyOtp(ctx, verifyInput(id, code)); !errors.Is(err, ErrOtpAlreadyUsed) {
			t.Fatalf("expected already-used on replay, got %v", err)
		}
	})

	t.Run("Expired", func(t *testing.T) {
		// Arrange
		f := newFixture(t)
		id, code := issueCode(t, f)

		f.clock.Advance(5*time.Minute + time.Second)

		// Act
		_, err := f.uc.VerifyOtp(ctx, verifyInput(id, code))

		// Assert
		if !errors.Is(err, ErrOtpExpired) {
			t.Fatalf("expected expired, got %v", err)
		}
		if f.repo.otps[id].Status != entity.OtpStatusExpired {
			t.Fatalf("expected lazy transition to expired")
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		// Arrange
		f := newFixture(t)

		// Act
		_, err := f.uc.VerifyOtp(ctx, verifyInput(0, "123456"))

		// Assert
		if !errors.Is(err, ErrOtpNotFound) {
			t.Fatalf("expected not-found, got %v", err)
		}
	})

	t.Run("SupersededCode", func(t *testing.T) {
		// Arrange
		f := newFixture(t)
		firstID, firstCode := issueCode(t, f)

		f.clock.Advance(61 * time.Second)
		secondID, secondCode := issueCode(t, f)

		// Act & Assert: pinned lookup names the terminal state
		if _, err := f.uc.VerifyOtp(ctx, verifyInput(firstID, firstCode)); !errors.Is(err, ErrOtpAlreadyUsed) {
			t.Fatalf("expected already-used for superseded record, got %v", err)
		}

		// unpinned lookup resolves the live record
		out, err := f.uc.VerifyOtp(ctx, verifyInput(0, secondCode))
		if err != nil {
			t.Fatalf("expected success for newest code, got %v", err)
		}
		if out.SessionToken == "" {
			t.Fatalf("expected session token")
		}
		if f.repo.otps[secondID].Status != entity.OtpStatusVerified {
			t.Fatalf("expected newest record verified")
		}
	})

	t.Run("VerifyRateLimited", func(t *testing.T) {
		// Arrange
		f := newFixture(t)
		id, code := issueCode(t, f)

		f.limiter.denied = true
		f.limiter.retryAfter = 42 * time.Second

		// Act
		_, err := f.uc.VerifyOtp(ctx, verifyInput(id, code))

		// Assert
		gerr := asGoError(t, err)
		if gerr.Code() != goerror.CodeTooManyRequest {
			t.Fatalf("expected too-many-requests, got %v", gerr.Code())
		}
		if gerr.RetryAfter() != 42*time.Second {
			t.Fatalf("expected retry-after 42s, got %v", gerr.RetryAfter())
		}
	})

	t.Run("ConcurrentVerifiesExactlyOneWins", func(t *testing.T) {
		// Arrange
		f := newFixture(t)
		f.addAccount(t, testDest, "S3cret!pass")
		id, code := issueCode(t, f)

		const workers = 8

		var wg sync.WaitGroup
		results := make([]error, workers)

		// Act
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, results[i] = f.uc.VerifyOtp(ctx, verifyInput(id, code))
			}(i)
		}
		wg.Wait()

		// Assert
		wins := 0
		for _, err := range results {
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrOtpAlreadyUsed):
			default:
				t.Fatalf("unexpected loser outcome: %v", err)
			}
		}

		if wins != 1 {
			t.Fatalf("expected exactly one winner, got %d", wins)
		}
	})

	t.Run("SuccessResetsAccountLockout", func(t *testing.T) {
		// Arrange
		f := newFixture(t)
		accID := f.addAccount(t, testDest, "S3cret!pass")
		f.repo.accounts[accID].FailedLoginAttempts = 4

		id, code := issueCode(t, f)

		// Act
		if _, err := f.uc.VerifyOtp(ctx, verifyInput(id, code)); err != nil {
			t.Fatalf("verify failed: %v", err)
		}

		// Assert
		if got := f.repo.accounts[accID].FailedLoginAttempts; got != 0 {
			t.Fatalf("expected failed logins reset, got %d", got)
		}
	})

	t.Run("RememberDeviceGrantsTrust", func(t *testing.T) {
		// Arrange
		f := newFixture(t)
		accID := f.addAccount(t, testDest, "S3cret!pass")
		id, code := issueCode(t, f)

		in := verifyInput(id, code)
		in.RememberDevice = true
		in.DeviceLabel = "kid tablet"

		// Act
		out, err := f.uc.VerifyOtp(ctx, in)
		if err != nil {
			t.Fatalf("verify failed: %v", err)
		}

		// Assert
		if out.DeviceRefreshToken == "" {
			t.Fatalf("expected a device refresh token")
		}

		wantExpiry := f.clock.Now().Add(30 * 24 * time.Hour).Unix()
		if out.DeviceExpiresAt != wantExpiry {
			t.Fatalf("expected device expiry %d, got %d", wantExpiry, out.DeviceExpiresAt)
		}

		if len(f.repo.devices) != 1 {
			t.Fatalf("expected one trusted device, got %d", len(f.repo.devices))
		}
		for _, dev := range f.repo.devices {
			if dev.OwnerID != accID {
				t.Fatalf("device bound to wrong owner")
			}
			if dev.RefreshTokenHash == out.DeviceRefreshToken {
				t.Fatalf("refresh token must be stored hashed")
			}
			if !f.argon2id.Verify(dev.RefreshTokenHash, out.DeviceRefreshToken) {
				t.Fatalf("stored hash does not match issued token")
			}
		}

		if err := f.gm.Wait(); err != nil {
			t.Fatalf("background publish failed: %v", err)
		}

		f.msg.mu.Lock()
		defer f.msg.mu.Unlock()

		if len(f.msg.trusted) != 1 {
			t.Fatalf("expected one device-trusted event, got %d", len(f.msg.trusted))
		}
	})

	t.Run("RememberDeviceIgnoredForUnknownDestination", func(t *testing.T) {
		// Arrange: no account seeded
		f := newFixture(t)
		id, code := issueCode(t, f)

		in := verifyInput(id, code)
		in.RememberDevice = true

		// Act
		out, err := f.uc.VerifyOtp(ctx, in)
		if err != nil {
			t.Fatalf("verify failed: %v", err)
		}

		// Assert
		if out.DeviceRefreshToken != "" {
			t.Fatalf("expected no device trust without an account")
		}
	})

	t.Run("DeviceCapEvictsLeastRecentlyUsed", func(t *testing.T) {
		// Arrange
		f := newFixture(t)
		accID := f.addAccount(t, testDest, "S3cret!pass")

		now := f.clock.Now()
		var oldestID int64
		for i := 0; i < 5; i++ {
			dev := entity.TrustedDevice{
				ID:               f.uid.Generate(),
				OwnerID:          accID,
				DeviceIDHash:     "hash-" + string(rune('a'+i)),
				RefreshTokenHash: "opaque",
				LastUsedAt:       now.Add(time.Duration(i) * time.Hour),
				ExpiresAt:        now.Add(30 * 24 * time.Hour),
				CreatedAt:        now,
			}
			if i == 0 {
				oldestID = dev.ID
			}
			if err := f.repo.CreateTrustedDevice(ctx, dev); err != nil {
				t.Fatalf("seed device failed: %v", err)
			}
		}

		id, code := issueCode(t, f)

		in := verifyInput(id, code)
		in.RememberDevice = true

		// Act
		if _, err := f.uc.VerifyOtp(ctx, in); err != nil {
			t.Fatalf("verify failed: %v", err)
		}

		// Assert
		if f.repo.devices[oldestID].RevokedAt == nil {
			t.Fatalf("expected least-recently-used device revoked")
		}

		active, err := f.repo.ListActiveTrustedDevices(ctx, accID, f.clock.Now())
		if err != nil {
			t.Fatalf("list devices failed: %v", err)
		}
		if len(active) != 5 {
			t.Fatalf("expected cap held at 5 active devices, got %d", len(active))
		}
	})
}
