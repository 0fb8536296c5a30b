package usecase

import (
	"context"
	"log/slog"

	"github.com/classifyhq/classify-auth/internal/pkg/goerror"
)

// ReloadProviders refreshes the delivery registry from the operator-managed
// provider table. Called at startup and from the admin endpoint; in-flight
// sends keep the snapshot they started with.
func (s *Usecase) ReloadProviders(ctx context.Context) error {
	ctx, span := s.startSpan(ctx, "ReloadProviders")
	defer span.End()

	settings, err := s.repoDB.ListProviderSettings(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo list provider settings", "error", err)
		return goerror.NewServer(err)
	}

	s.deliverer.Reload(ctx, settings)

	slog.InfoContext(ctx, "delivery providers reloaded", "count", len(settings))

	return nil
}
