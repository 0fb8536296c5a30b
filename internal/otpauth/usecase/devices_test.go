package usecase

import (
	"context"
	"testing"

	"github.com/classifyhq/classify-auth/internal/pkg/goerror"
	"github.com/classifyhq/classify-auth/internal/pkg/jwt"
)

func TestListTrustedDevices(t *testing.T) {
	t.Run("RequiresAuthentication", func(t *testing.T) {
		// Arrange
		f := newFixture(t)

		// Act
		_, err := f.uc.ListTrustedDevices(context.Background())

		// Assert
		if asGoError(t, err).Code() != goerror.CodeUnauthorized {
			t.Fatalf("expected unauthorized without claims, got %v", err)
		}
	})

	t.Run("ListsOnlyActiveDevices", func(t *testing.T) {
		// Arrange
		f := newFixture(t)
		accID := f.addAccount(t, testDest, "S3cret!pass")
		rowID, _ := trustTestDevice(t, f, "tablet-01")

		ctx := jwt.SetAuth(context.Background(), jwt.Claims{UserID: accID})

		// Act
		out, err := f.uc.ListTrustedDevices(ctx)
		if err != nil {
			t.Fatalf("list devices failed: %v", err)
		}

		// Assert
		if len(out.Devices) != 1 || out.Devices[0].ID != rowID {
			t.Fatalf("expected the single trusted device, got %+v", out.Devices)
		}

		// revoked devices drop out
		if _, _, err := f.repo.RevokeTrustedDevice(ctx, accID, rowID, f.clock.Now()); err != nil {
			t.Fatalf("seed revoke failed: %v", err)
		}

		out, err = f.uc.ListTrustedDevices(ctx)
		if err != nil {
			t.Fatalf("list devices failed: %v", err)
		}
		if len(out.Devices) != 0 {
			t.Fatalf("expected no active devices after revoke, got %d", len(out.Devices))
		}
	})
}

func TestRevokeTrustedDevice(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		// Arrange
		f := newFixture(t)
		accID := f.addAccount(t, testDest, "S3cret!pass")
		rowID, _ := trustTestDevice(t, f, "tablet-01")

		ctx := jwt.SetAuth(context.Background(), jwt.Claims{UserID: accID})

		// Act
		if err := f.uc.RevokeTrustedDevice(ctx, RevokeTrustedDeviceInput{DeviceRowID: rowID}); err != nil {
			t.Fatalf("revoke failed: %v", err)
		}

		// Assert
		if f.repo.devices[rowID].RevokedAt == nil {
			t.Fatalf("expected device marked revoked")
		}
	})

	t.Run("DropsSessionForRevokedDevice", func(t *testing.T) {
		// Arrange
		f := newFixture(t)
		accID := f.addAccount(t, testDest, "S3cret!pass")
		rowID, _ := trustTestDevice(t, f, "tablet-01")

		key := f.deviceHash(t, "tablet-01")
		if _, ok := f.repo.sessions[key]; !ok {
			t.Fatalf("expected a session for the trusted device")
		}

		ctx := jwt.SetAuth(context.Background(), jwt.Claims{UserID: accID})

		// Act
		if err := f.uc.RevokeTrustedDevice(ctx, RevokeTrustedDeviceInput{DeviceRowID: rowID}); err != nil {
			t.Fatalf("revoke failed: %v", err)
		}

		// Assert
		if _, ok := f.repo.sessions[key]; ok {
			t.Fatalf("expected session dropped with the device trust")
		}
	})

	t.Run("UnknownDeviceNotFound", func(t *testing.T) {
		// Arrange
		f := newFixture(t)
		accID := f.addAccount(t, testDest, "S3cret!pass")

		ctx := jwt.SetAuth(context.Background(), jwt.Claims{UserID: accID})

		// Act
		err := f.uc.RevokeTrustedDevice(ctx, RevokeTrustedDeviceInput{DeviceRowID: 42})

		// Assert
		if asGoError(t, err).Code() != goerror.CodeNotFound {
			t.Fatalf("expected not-found, got %v", err)
		}
	})

	t.Run("CannotRevokeAnotherOwnersDevice", func(t *testing.T) {
		// Arrange
		f := newFixture(t)
		f.addAccount(t, testDest, "S3cret!pass")
		rowID, _ := trustTestDevice(t, f, "tablet-01")

		intruder := f.addAccount(t, "other@example.com", "S3cret!pass")
		ctx := jwt.SetAuth(context.Background(), jwt.Claims{UserID: intruder})

		// Act
		err := f.uc.RevokeTrustedDevice(ctx, RevokeTrustedDeviceInput{DeviceRowID: rowID})

		// Assert
		if asGoError(t, err).Code() != goerror.CodeNotFound {
			t.Fatalf("expected not-found for foreign device, got %v", err)
		}
		if f.repo.devices[rowID].RevokedAt != nil {
			t.Fatalf("device must remain active")
		}
	})
}
