package db

import (
	"context"
	"time"

	"github.com/classifyhq/classify-auth/internal/otpauth/entity"
)

// GetAccountByDestination resolves the owning account for an email or phone
// destination. For register-purpose codes there is no account yet, callers
// treat ErrNotFound as a valid outcome.
func (s *DB) GetAccountByDestination(ctx context.Context, destination string) (_ *entity.Account, err error) {
	ctx, span := s.startSpan(ctx, "GetAccountByDestination")
	defer func() { s.endSpan(span, err) }()

	var acc entity.Account
	err = s.conn.QueryRow(ctx, `
		SELECT id, email, phone, password, failed_login_attempts, locked_until
		FROM accounts
		WHERE email = $1 OR phone = $1`,
		destination,
	).Scan(&acc.ID, &acc.Email, &acc.Phone, &acc.Password, &acc.FailedLoginAttempts, &acc.LockedUntil)
	if err != nil {
		return nil, s.mapError(err)
	}

	return &acc, nil
}

// GetAccountByID loads an account by primary key.
func (s *DB) GetAccountByID(ctx context.Context, id int64) (_ *entity.Account, err error) {
	ctx, span := s.startSpan(ctx, "GetAccountByID")
	defer func() { s.endSpan(span, err) }()

	var acc entity.Account
	err = s.conn.QueryRow(ctx, `
		SELECT id, email, phone, password, failed_login_attempts, locked_until
		FROM accounts
		WHERE id = $1`,
		id,
	).Scan(&acc.ID, &acc.Email, &acc.Phone, &acc.Password, &acc.FailedLoginAttempts, &acc.LockedUntil)
	if err != nil {
		return nil, s.mapError(err)
	}

	return &acc, nil
}

// RecordFailedLogin increments the failure counter and, when the counter
// reaches the threshold, stamps locked_until in the same statement so two
// concurrent failures cannot both read-then-write a stale count.
func (s *DB) RecordFailedLogin(ctx context.Context, accountID int64, threshold int32, lockUntil time.Time) (err error) {
	ctx, span := s.startSpan(ctx, "RecordFailedLogin")
	defer func() { s.endSpan(span, err) }()

	_, err = s.conn.Exec(ctx, `
		UPDATE accounts
		SET failed_login_attempts = failed_login_attempts + 1,
			locked_until = CASE
				WHEN failed_login_attempts + 1 >= $2 THEN $3
				ELSE locked_until
			END
		WHERE id = $1`,
		accountID, threshold, lockUntil,
	)

	return s.mapError(err)
}

// ResetFailedLogins clears the failure counter and any pending lock after a
// successful verification.
func (s *DB) ResetFailedLogins(ctx context.Context, accountID int64) (err error) {
	ctx, span := s.startSpan(ctx, "ResetFailedLogins")
	defer func() { s.endSpan(span, err) }()

	_, err = s.conn.Exec(ctx, `
		UPDATE accounts
		SET failed_login_attempts = 0, locked_until = NULL
		WHERE id = $1`,
		accountID,
	)

	return s.mapError(err)
}
