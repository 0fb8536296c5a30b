package inbound

import (
	"context"

	"github.com/classifyhq/classify-auth/internal/otpauth/usecase"
	"github.com/classifyhq/classify-auth/internal/pkg/router"
)

type uc interface {
	RequestOtp(ctx context.Context, in usecase.RequestOtpInput) (*usecase.RequestOtpOutput, error)
	VerifyOtp(ctx context.Context, in usecase.VerifyOtpInput) (*usecase.VerifyOtpOutput, error)
	PasswordGate(ctx context.Context, in usecase.PasswordGateInput) (*usecase.PasswordGateOutput, error)

	RefreshTrustedDevice(ctx context.Context, in usecase.RefreshTrustedDeviceInput) (*usecase.RefreshTrustedDeviceOutput, error)
	ListTrustedDevices(ctx context.Context) (*usecase.ListTrustedDevicesOutput, error)
	RevokeTrustedDevice(ctx context.Context, in usecase.RevokeTrustedDeviceInput) error

	ReloadProviders(ctx context.Context) error
}

func RegisterHTTPEndpoint(r *router.Router, uc uc) {
	end := &HTTPEndpoint{uc: uc}

	// OTP challenge
	r.POST("/api/v1/auth/otp/request", end.RequestOtp)
	r.POST("/api/v1/auth/otp/verify", end.VerifyOtp)
	r.POST("/api/v1/auth/password/gate", end.PasswordGate)

	// Trusted devices
	r.POST("/api/v1/auth/device/refresh", end.RefreshTrustedDevice)
	r.GET("/api/v1/auth/devices", end.ListTrustedDevices)         // need authenticated
	r.DELETE("/api/v1/auth/devices/:id", end.RevokeTrustedDevice) // need authenticated

	// Operations
	r.POST("/api/v1/auth/providers/reload", end.ReloadProviders) // need authenticated
}
