package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/classifyhq/classify-auth/internal/otpauth/entity"
	"github.com/classifyhq/classify-auth/internal/pkg/goerror"
	"github.com/samber/lo"
)

type TrustedDeviceItem struct {
	ID         int64
	Label      string
	LastUsedAt time.Time
	ExpiresAt  time.Time
}

type ListTrustedDevicesOutput struct {
	Devices []TrustedDeviceItem
}

// ListTrustedDevices returns the caller's active device trusts. Hashes never
// leave this layer.
func (s *Usecase) ListTrustedDevices(ctx context.Context) (*ListTrustedDevicesOutput, error) {
	ctx, span := s.startSpan(ctx, "ListTrustedDevices")
	defer span.End()

	clm, err := s.authenticated(ctx)
	if err != nil {
		return nil, err
	}

	devices, err := s.repoDB.ListActiveTrustedDevices(ctx, clm.UserID, s.clock.Now())
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo list trusted devices", "account_id", clm.UserID, "error", err)
		return nil, goerror.NewServer(err)
	}

	items := lo.Map(devices, func(d entity.TrustedDevice, _ int) TrustedDeviceItem {
		return TrustedDeviceItem{
			ID:         d.ID,
			Label:      d.Label,
			LastUsedAt: d.LastUsedAt,
			ExpiresAt:  d.ExpiresAt,
		}
	})

	return &ListTrustedDevicesOutput{Devices: items}, nil
}

type RevokeTrustedDeviceInput struct {
	DeviceRowID int64 `validate:"required"`
}

// RevokeTrustedDevice revokes one of the caller's device trusts and drops any
// session bound to it.
func (s *Usecase) RevokeTrustedDevice(ctx context.Context, in RevokeTrustedDeviceInput) error {
	ctx, span := s.startSpan(ctx, "RevokeTrustedDevice")
	defer span.End()

	clm, err := s.authenticated(ctx)
	if err != nil {
		return err
	}

	if err := s.validator.Validate(in); err != nil {
		return goerror.NewInvalidInput(err)
	}

	deviceIDHash, ok, err := s.repoDB.RevokeTrustedDevice(ctx, clm.UserID, in.DeviceRowID, s.clock.Now())
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo revoke trusted device", "account_id", clm.UserID, "error", err)
		return goerror.NewServer(err)
	}
	if !ok {
		return goerror.NewBusiness("trusted device not found", goerror.CodeNotFound)
	}

	if err := s.repoDB.DeleteSessionsByDevice(ctx, clm.UserID, deviceIDHash); err != nil {
		slog.ErrorContext(ctx, "failed to repo delete sessions for revoked device", "account_id", clm.UserID, "error", err)
		return goerror.NewServer(err)
	}

	return nil
}
