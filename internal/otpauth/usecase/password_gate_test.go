package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/classifyhq/classify-auth/internal/pkg/goerror"
)

func TestPasswordGate(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		// Arrange
		f := newFixture(t)
		accID := f.addAccount(t, testDest, "S3cret!pass")

		// Act
		out, err := f.uc.PasswordGate(ctx, PasswordGateInput{Email: testDest, Password: "S3cret!pass"})
		if err != nil {
			t.Fatalf("password gate failed: %v", err)
		}

		// Assert
		if out.AccountID != accID {
			t.Fatalf("expected account %d, got %d", accID, out.AccountID)
		}
	})

	t.Run("WrongPasswordIsGeneric", func(t *testing.T) {
		// Arrange
		f := newFixture(t)
		accID := f.addAccount(t, testDest, "S3cret!pass")

		// Act
		_, err := f.uc.PasswordGate(ctx, PasswordGateInput{Email: testDest, Password: "wrong"})

		// Assert
		gerr := asGoError(t, err)
		if gerr.Code() != goerror.CodeUnauthorized {
			t.Fatalf("expected unauthorized, got %v", gerr.Code())
		}
		if got := f.repo.accounts[accID].FailedLoginAttempts; got != 1 {
			t.Fatalf("expected failed attempt recorded, got %d", got)
		}
	})

	t.Run("UnknownEmailLooksTheSame", func(t *testing.T) {
		// Arrange
		f := newFixture(t)
		f.addAccount(t, testDest, "S3cret!pass")

		// Act
		_, errUnknown := f.uc.PasswordGate(ctx, PasswordGateInput{Email: "ghost@example.com", Password: "x"})
		_, errWrong := f.uc.PasswordGate(ctx, PasswordGateInput{Email: testDest, Password: "wrong"})

		// Assert: no oracle for whether a destination has an account
		gu, gw := asGoError(t, errUnknown), asGoError(t, errWrong)
		if gu.Code() != gw.Code() || gu.Msg() != gw.Msg() {
			t.Fatalf("expected indistinguishable failures, got %v vs %v", errUnknown, errWrong)
		}
	})

	t.Run("LockoutAfterThreshold", func(t *testing.T) {
		// Arrange
		f := newFixture(t)
		accID := f.addAccount(t, testDest, "S3cret!pass")

		// Act
		for i := 0; i < 5; i++ {
			if _, err := f.uc.PasswordGate(ctx, PasswordGateInput{Email: testDest, Password: "wrong"}); err == nil {
				t.Fatalf("expected failure on attempt %d", i)
			}
		}

		// Assert
		if f.repo.accounts[accID].LockedUntil == nil {
			t.Fatalf("expected account locked after threshold")
		}

		// even the correct password is refused while locked
		_, err := f.uc.PasswordGate(ctx, PasswordGateInput{Email: testDest, Password: "S3cret!pass"})
		if asGoError(t, err).Code() != goerror.CodeForbidden {
			t.Fatalf("expected forbidden while locked, got %v", err)
		}
	})

	t.Run("LockExpiresAfterWindow", func(t *testing.T) {
		// Arrange
		f := newFixture(t)
		accID := f.addAccount(t, testDest, "S3cret!pass")

		until := f.clock.Now().Add(15 * time.Minute)
		f.repo.accounts[accID].LockedUntil = &until

		f.clock.Advance(15*time.Minute + time.Second)

		// Act
		out, err := f.uc.PasswordGate(ctx, PasswordGateInput{Email: testDest, Password: "S3cret!pass"})

		// Assert
		if err != nil {
			t.Fatalf("expected success after lock expiry, got %v", err)
		}
		if out.AccountID != accID {
			t.Fatalf("expected account %d", accID)
		}
	})
}
