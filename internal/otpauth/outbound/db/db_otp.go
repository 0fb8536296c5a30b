package db

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/classifyhq/classify-auth/internal/otpauth/entity"
	"github.com/jackc/pgx/v5"
)

const otpColumns = `id, owner_id, purpose, destination, delivery_method, code_hash,
	status, attempts, expires_at, created_at, verified_at, device_fingerprint, ip_address`

func scanOtp(row pgx.Row) (*entity.OtpRecord, error) {
	var rec entity.OtpRecord
	err := row.Scan(
		&rec.ID,
		&rec.OwnerID,
		&rec.Purpose,
		&rec.Destination,
		&rec.DeliveryMethod,
		&rec.CodeHash,
		&rec.Status,
		&rec.Attempts,
		&rec.ExpiresAt,
		&rec.CreatedAt,
		&rec.VerifiedAt,
		&rec.DeviceFingerprint,
		&rec.IPAddress,
	)
	if err != nil {
		return nil, err
	}

	return &rec, nil
}

// GetOtpByID resolves a record pinned by id, scoped to its lookup key so a
// caller cannot verify a code issued for a different destination or purpose.
func (s *DB) GetOtpByID(ctx context.Context, id int64, destination string, purpose entity.Purpose) (_ *entity.OtpRecord, err error) {
	ctx, span := s.startSpan(ctx, "GetOtpByID")
	defer func() { s.endSpan(span, err) }()

	row := s.conn.QueryRow(ctx, `
		SELECT `+otpColumns+`
		FROM otp_codes
		WHERE id = $1 AND destination = $2 AND purpose = $3`,
		id, destination, purpose,
	)

	rec, err := scanOtp(row)
	if err != nil {
		return nil, s.mapError(err)
	}

	return rec, nil
}

// GetLatestPendingOtp resolves the newest pending record for the lookup key.
// Legacy clients that do not echo the record id land here.
func (s *DB) GetLatestPendingOtp(ctx context.Context, destination string, purpose entity.Purpose) (_ *entity.OtpRecord, err error) {
	ctx, span := s.startSpan(ctx, "GetLatestPendingOtp")
	defer func() { s.endSpan(span, err) }()

	row := s.conn.QueryRow(ctx, `
		SELECT `+otpColumns+`
		FROM otp_codes
		WHERE destination = $1 AND purpose = $2 AND status = $3
		ORDER BY created_at DESC
		LIMIT 1`,
		destination, purpose, entity.OtpStatusPending,
	)

	rec, err := scanOtp(row)
	if err != nil {
		return nil, s.mapError(err)
	}

	return rec, nil
}

// GetNewestOtpCreatedAt returns when the most recent code (any status) was
// issued for the key. Cooldown math runs on this, so superseded and expired
// codes still count.
func (s *DB) GetNewestOtpCreatedAt(ctx context.Context, destination string, purpose entity.Purpose) (_ time.Time, err error) {
	ctx, span := s.startSpan(ctx, "GetNewestOtpCreatedAt")
	defer func() { s.endSpan(span, err) }()

	var createdAt time.Time
	err = s.conn.QueryRow(ctx, `
		SELECT created_at
		FROM otp_codes
		WHERE destination = $1 AND purpose = $2
		ORDER BY created_at DESC
		LIMIT 1`,
		destination, purpose,
	).Scan(&createdAt)
	if err != nil {
		return time.Time{}, s.mapError(err)
	}

	return createdAt, nil
}

// IssueOtp inserts the new pending record, supersedes any prior pending rows
// for the same (destination, purpose), and appends the request-log row — all
// in one transaction so a lookup never observes two live codes for one key.
func (s *DB) IssueOtp(ctx context.Context, in entity.IssueOtp) (err error) {
	ctx, span := s.startSpan(ctx, "IssueOtp")
	defer func() { s.endSpan(span, err) }()

	tx, err := s.conn.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if rErr := tx.Rollback(ctx); rErr != nil && !errors.Is(rErr, pgx.ErrTxClosed) {
			slog.ErrorContext(ctx, "failed to rollback", "error", rErr)
		}
	}()

	if _, err = tx.Exec(ctx, `
		UPDATE otp_codes
		SET status = $1
		WHERE destination = $2 AND purpose = $3 AND status = $4`,
		entity.OtpStatusSuperseded, in.Record.Destination, in.Record.Purpose, entity.OtpStatusPending,
	); err != nil {
		return s.mapError(err)
	}

	if _, err = tx.Exec(ctx, `
		INSERT INTO otp_codes (`+otpColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		in.Record.ID,
		in.Record.OwnerID,
		in.Record.Purpose,
		in.Record.Destination,
		in.Record.DeliveryMethod,
		in.Record.CodeHash,
		in.Record.Status,
		in.Record.Attempts,
		in.Record.ExpiresAt,
		in.Record.CreatedAt,
		in.Record.VerifiedAt,
		in.Record.DeviceFingerprint,
		in.Record.IPAddress,
	); err != nil {
		return s.mapError(err)
	}

	if _, err = tx.Exec(ctx, `
		INSERT INTO otp_request_log (destination, ip_address, created_at)
		VALUES ($1, $2, $3)`,
		in.Log.Destination, in.Log.IPAddress, in.Log.CreatedAt,
	); err != nil {
		return s.mapError(err)
	}

	if err = tx.Commit(ctx); err != nil {
		return s.mapError(err)
	}

	return nil
}

// MarkOtpExpired durably records lazy expiry. Only a still-pending row moves;
// losing the race to another transition is fine, the row is dead either way.
func (s *DB) MarkOtpExpired(ctx context.Context, id int64) (err error) {
	ctx, span := s.startSpan(ctx, "MarkOtpExpired")
	defer func() { s.endSpan(span, err) }()

	_, err = s.conn.Exec(ctx, `
		UPDATE otp_codes
		SET status = $1
		WHERE id = $2 AND status = $3`,
		entity.OtpStatusExpired, id, entity.OtpStatusPending,
	)

	return s.mapError(err)
}

// IncrementOtpAttempts bumps the attempt counter of a still-pending record and
// returns the new count. ok=false means the record left pending between the
// caller's read and this write; the guess was never tested.
func (s *DB) IncrementOtpAttempts(ctx context.Context, id int64) (attempts int32, ok bool, err error) {
	ctx, span := s.startSpan(ctx, "IncrementOtpAttempts")
	defer func() { s.endSpan(span, err) }()

	err = s.conn.QueryRow(ctx, `
		UPDATE otp_codes
		SET attempts = attempts + 1
		WHERE id = $1 AND status = $2
		RETURNING attempts`,
		id, entity.OtpStatusPending,
	).Scan(&attempts)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, s.mapError(err)
	}

	return attempts, true, nil
}

// BlockOtp moves pending → blocked once the attempt budget is exhausted.
func (s *DB) BlockOtp(ctx context.Context, id int64) (err error) {
	ctx, span := s.startSpan(ctx, "BlockOtp")
	defer func() { s.endSpan(span, err) }()

	_, err = s.conn.Exec(ctx, `
		UPDATE otp_codes
		SET status = $1
		WHERE id = $2 AND status = $3`,
		entity.OtpStatusBlocked, id, entity.OtpStatusPending,
	)

	return s.mapError(err)
}

// MarkOtpVerified performs the single atomic pending → verified transition.
// ok=false means another caller consumed the record first.
func (s *DB) MarkOtpVerified(ctx context.Context, id int64, at time.Time) (ok bool, err error) {
	ctx, span := s.startSpan(ctx, "MarkOtpVerified")
	defer func() { s.endSpan(span, err) }()

	tag, err := s.conn.Exec(ctx, `
		UPDATE otp_codes
		SET status = $1, verified_at = $2
		WHERE id = $3 AND status = $4`,
		entity.OtpStatusVerified, at, id, entity.OtpStatusPending,
	)
	if err != nil {
		return false, s.mapError(err)
	}

	return tag.RowsAffected() == 1, nil
}

// CountRequests returns how many codes were requested for the
// (destination, ip) pair since the window start. Reads the append-only
// request log, not otp_codes, so dead codes still count toward abuse.
func (s *DB) CountRequests(ctx context.Context, destination, ip string, since time.Time) (count int64, err error) {
	ctx, span := s.startSpan(ctx, "CountRequests")
	defer func() { s.endSpan(span, err) }()

	err = s.conn.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM otp_request_log
		WHERE destination = $1 AND ip_address = $2 AND created_at >= $3`,
		destination, ip, since,
	).Scan(&count)
	if err != nil {
		return 0, s.mapError(err)
	}

	return count, nil
}
