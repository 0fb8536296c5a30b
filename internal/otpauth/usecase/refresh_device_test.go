package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/classifyhq/classify-auth/internal/pkg/goerror"
)

// trustTestDevice seeds a trusted device the way VerifyOtp would and returns
// the raw refresh token.
func trustTestDevice(t *testing.T, f *fixture, deviceID string) (int64, string) {
	t.Helper()

	id, code := issueCode(t, f)

	in := verifyInput(id, code)
	in.DeviceID = deviceID
	in.RememberDevice = true

	out, err := f.uc.VerifyOtp(context.Background(), in)
	if err != nil {
		t.Fatalf("verify with remember-device failed: %v", err)
	}
	if out.DeviceRefreshToken == "" {
		t.Fatalf("expected a device refresh token")
	}

	var rowID int64
	for _, dev := range f.repo.devices {
		rowID = dev.ID
	}

	return rowID, out.DeviceRefreshToken
}

func TestRefreshTrustedDevice(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		// Arrange
		f := newFixture(t)
		f.addAccount(t, testDest, "S3cret!pass")
		rowID, raw := trustTestDevice(t, f, "tablet-01")

		// Act
		out, err := f.uc.RefreshTrustedDevice(ctx, RefreshTrustedDeviceInput{
			DeviceID:     "tablet-01",
			RefreshToken: raw,
		})
		if err != nil {
			t.Fatalf("refresh failed: %v", err)
		}

		// Assert
		if out.SessionToken == "" || out.AccessToken == "" {
			t.Fatalf("expected fresh credentials")
		}
		if out.RefreshToken == "" || out.RefreshToken == raw {
			t.Fatalf("expected a rotated refresh token")
		}

		dev := f.repo.devices[rowID]
		if f.argon2id.Verify(dev.RefreshTokenHash, raw) {
			t.Fatalf("old token must no longer match after rotation")
		}
		if !f.argon2id.Verify(dev.RefreshTokenHash, out.RefreshToken) {
			t.Fatalf("stored hash does not match rotated token")
		}
	})

	t.Run("ReplayedTokenRejected", func(t *testing.T) {
		// Arrange
		f := newFixture(t)
		f.addAccount(t, testDest, "S3cret!pass")
		_, raw := trustTestDevice(t, f, "tablet-01")

		if _, err := f.uc.RefreshTrustedDevice(ctx, RefreshTrustedDeviceInput{
			DeviceID:     "tablet-01",
			RefreshToken: raw,
		}); err != nil {
			t.Fatalf("first refresh failed: %v", err)
		}

		// Act: replay the spent token
		_, err := f.uc.RefreshTrustedDevice(ctx, RefreshTrustedDeviceInput{
			DeviceID:     "tablet-01",
			RefreshToken: raw,
		})

		// Assert
		if asGoError(t, err).Code() != goerror.CodeUnauthorized {
			t.Fatalf("expected unauthorized for replayed token, got %v", err)
		}
	})

	t.Run("ExpiredTrustRejected", func(t *testing.T) {
		// Arrange
		f := newFixture(t)
		f.addAccount(t, testDest, "S3cret!pass")
		_, raw := trustTestDevice(t, f, "tablet-01")

		f.clock.Advance(30*24*time.Hour + time.Second)

		// Act
		_, err := f.uc.RefreshTrustedDevice(ctx, RefreshTrustedDeviceInput{
			DeviceID:     "tablet-01",
			RefreshToken: raw,
		})

		// Assert
		if asGoError(t, err).Code() != goerror.CodeUnauthorized {
			t.Fatalf("expected unauthorized for expired trust, got %v", err)
		}
	})

	t.Run("RevokedTrustRejected", func(t *testing.T) {
		// Arrange
		f := newFixture(t)
		accID := f.addAccount(t, testDest, "S3cret!pass")
		rowID, raw := trustTestDevice(t, f, "tablet-01")

		if _, _, err := f.repo.RevokeTrustedDevice(ctx, accID, rowID, f.clock.Now()); err != nil {
			t.Fatalf("seed revoke failed: %v", err)
		}

		// Act
		_, err := f.uc.RefreshTrustedDevice(ctx, RefreshTrustedDeviceInput{
			DeviceID:     "tablet-01",
			RefreshToken: raw,
		})

		// Assert
		if asGoError(t, err).Code() != goerror.CodeUnauthorized {
			t.Fatalf("expected unauthorized for revoked trust, got %v", err)
		}
	})

	t.Run("WrongTokenRejected", func(t *testing.T) {
		// Arrange
		f := newFixture(t)
		f.addAccount(t, testDest, "S3cret!pass")
		trustTestDevice(t, f, "tablet-01")

		// Act
		_, err := f.uc.RefreshTrustedDevice(ctx, RefreshTrustedDeviceInput{
			DeviceID:     "tablet-01",
			RefreshToken: "not-the-token",
		})

		// Assert
		if asGoError(t, err).Code() != goerror.CodeUnauthorized {
			t.Fatalf("expected unauthorized for wrong token, got %v", err)
		}
	})

	t.Run("UnknownDeviceRejected", func(t *testing.T) {
		// Arrange
		f := newFixture(t)

		// Act
		_, err := f.uc.RefreshTrustedDevice(ctx, RefreshTrustedDeviceInput{
			DeviceID:     "never-seen",
			RefreshToken: "whatever",
		})

		// Assert
		if asGoError(t, err).Code() != goerror.CodeUnauthorized {
			t.Fatalf("expected unauthorized for unknown device, got %v", err)
		}
	})
}
