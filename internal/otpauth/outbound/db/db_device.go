package db

import (
	"context"
	"errors"
	"time"

	"github.com/classifyhq/classify-auth/internal/otpauth/entity"
	"github.com/jackc/pgx/v5"
)

const deviceColumns = `id, owner_id, device_id_hash, refresh_token_hash, label,
	last_used_at, expires_at, revoked_at, created_at`

// CreateTrustedDevice persists a new device-trust row.
func (s *DB) CreateTrustedDevice(ctx context.Context, dev entity.TrustedDevice) (err error) {
	ctx, span := s.startSpan(ctx, "CreateTrustedDevice")
	defer func() { s.endSpan(span, err) }()

	_, err = s.conn.Exec(ctx, `
		INSERT INTO trusted_devices (`+deviceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		dev.ID,
		dev.OwnerID,
		dev.DeviceIDHash,
		dev.RefreshTokenHash,
		dev.Label,
		dev.LastUsedAt,
		dev.ExpiresAt,
		dev.RevokedAt,
		dev.CreatedAt,
	)

	return s.mapError(err)
}

// ListActiveTrustedDevices returns the owner's unrevoked, unexpired devices
// ordered oldest-use first so the caller can evict from the head.
func (s *DB) ListActiveTrustedDevices(ctx context.Context, ownerID int64, now time.Time) (_ []entity.TrustedDevice, err error) {
	ctx, span := s.startSpan(ctx, "ListActiveTrustedDevices")
	defer func() { s.endSpan(span, err) }()

	rows, err := s.conn.Query(ctx, `
		SELECT `+deviceColumns+`
		FROM trusted_devices
		WHERE owner_id = $1 AND revoked_at IS NULL AND expires_at > $2
		ORDER BY last_used_at ASC`,
		ownerID, now,
	)
	if err != nil {
		return nil, s.mapError(err)
	}
	defer rows.Close()

	var devs []entity.TrustedDevice
	for rows.Next() {
		var dev entity.TrustedDevice
		if err = rows.Scan(
			&dev.ID,
			&dev.OwnerID,
			&dev.DeviceIDHash,
			&dev.RefreshTokenHash,
			&dev.Label,
			&dev.LastUsedAt,
			&dev.ExpiresAt,
			&dev.RevokedAt,
			&dev.CreatedAt,
		); err != nil {
			return nil, s.mapError(err)
		}
		devs = append(devs, dev)
	}
	if err = rows.Err(); err != nil {
		return nil, s.mapError(err)
	}

	return devs, nil
}

// GetTrustedDeviceByHash resolves a device-trust row by its hashed device id.
func (s *DB) GetTrustedDeviceByHash(ctx context.Context, deviceIDHash string) (_ *entity.TrustedDevice, err error) {
	ctx, span := s.startSpan(ctx, "GetTrustedDeviceByHash")
	defer func() { s.endSpan(span, err) }()

	var dev entity.TrustedDevice
	err = s.conn.QueryRow(ctx, `
		SELECT `+deviceColumns+`
		FROM trusted_devices
		WHERE device_id_hash = $1`,
		deviceIDHash,
	).Scan(
		&dev.ID,
		&dev.OwnerID,
		&dev.DeviceIDHash,
		&dev.RefreshTokenHash,
		&dev.Label,
		&dev.LastUsedAt,
		&dev.ExpiresAt,
		&dev.RevokedAt,
		&dev.CreatedAt,
	)
	if err != nil {
		return nil, s.mapError(err)
	}

	return &dev, nil
}

// RotateDeviceToken swaps the stored refresh-token hash, conditional on the
// old hash still being current. ok=false means a concurrent rotation (or a
// replay of a spent token) won the row first.
func (s *DB) RotateDeviceToken(ctx context.Context, in entity.RotateDeviceToken) (ok bool, err error) {
	ctx, span := s.startSpan(ctx, "RotateDeviceToken")
	defer func() { s.endSpan(span, err) }()

	tag, err := s.conn.Exec(ctx, `
		UPDATE trusted_devices
		SET refresh_token_hash = $1, expires_at = $2, last_used_at = $3
		WHERE id = $4 AND owner_id = $5 AND refresh_token_hash = $6 AND revoked_at IS NULL`,
		in.NewTokenHash, in.NewExpiresAt, in.LastUsedAt, in.DeviceRowID, in.OwnerID, in.OldTokenHash,
	)
	if err != nil {
		return false, s.mapError(err)
	}

	return tag.RowsAffected() == 1, nil
}

// RevokeTrustedDevice stamps revoked_at on a still-active device belonging to
// the owner and returns the row's device hash so the caller can drop the
// sessions keyed by it. ok=false when the row is missing, revoked, or not
// theirs.
func (s *DB) RevokeTrustedDevice(ctx context.Context, ownerID, deviceRowID int64, at time.Time) (deviceIDHash string, ok bool, err error) {
	ctx, span := s.startSpan(ctx, "RevokeTrustedDevice")
	defer func() { s.endSpan(span, err) }()

	err = s.conn.QueryRow(ctx, `
		UPDATE trusted_devices
		SET revoked_at = $1
		WHERE id = $2 AND owner_id = $3 AND revoked_at IS NULL
		RETURNING device_id_hash`,
		at, deviceRowID, ownerID,
	).Scan(&deviceIDHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, s.mapError(err)
	}

	return deviceIDHash, true, nil
}
