package db

import (
	"context"

	"github.com/classifyhq/classify-auth/internal/otpauth/entity"
)

// ListProviderSettings loads the operator-managed delivery provider table,
// highest priority first. An empty result is valid, the registry decides what
// that means.
func (s *DB) ListProviderSettings(ctx context.Context) (_ []entity.ProviderSetting, err error) {
	ctx, span := s.startSpan(ctx, "ListProviderSettings")
	defer func() { s.endSpan(span, err) }()

	rows, err := s.conn.Query(ctx, `
		SELECT name, enabled, priority
		FROM delivery_providers
		ORDER BY priority DESC, name ASC`,
	)
	if err != nil {
		return nil, s.mapError(err)
	}
	defer rows.Close()

	var settings []entity.ProviderSetting
	for rows.Next() {
		var ps entity.ProviderSetting
		if err = rows.Scan(&ps.Name, &ps.Enabled, &ps.Priority); err != nil {
			return nil, s.mapError(err)
		}
		settings = append(settings, ps)
	}
	if err = rows.Err(); err != nil {
		return nil, s.mapError(err)
	}

	return settings, nil
}
