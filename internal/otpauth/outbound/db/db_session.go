package db

import (
	"context"

	"github.com/classifyhq/classify-auth/internal/otpauth/entity"
)

// UpsertSession writes the session row for (owner, device). A re-login from
// the same device replaces the previous session instead of stacking a new one.
func (s *DB) UpsertSession(ctx context.Context, sess entity.Session) (err error) {
	ctx, span := s.startSpan(ctx, "UpsertSession")
	defer func() { s.endSpan(span, err) }()

	_, err = s.conn.Exec(ctx, `
		INSERT INTO sessions (id, owner_id, device_id_hash, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (owner_id, device_id_hash) DO UPDATE
		SET token_hash = EXCLUDED.token_hash,
			expires_at = EXCLUDED.expires_at,
			created_at = EXCLUDED.created_at`,
		sess.ID, sess.OwnerID, sess.DeviceIDHash, sess.TokenHash, sess.ExpiresAt, sess.CreatedAt,
	)

	return s.mapError(err)
}

// DeleteSessionsByDevice drops any session bound to a revoked device.
func (s *DB) DeleteSessionsByDevice(ctx context.Context, ownerID int64, deviceIDHash string) (err error) {
	ctx, span := s.startSpan(ctx, "DeleteSessionsByDevice")
	defer func() { s.endSpan(span, err) }()

	_, err = s.conn.Exec(ctx, `
		DELETE FROM sessions
		WHERE owner_id = $1 AND device_id_hash = $2`,
		ownerID, deviceIDHash,
	)

	return s.mapError(err)
}
