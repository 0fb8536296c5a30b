package inbound

import (
	"github.com/classifyhq/classify-auth/internal/otpauth/usecase"
	"github.com/classifyhq/classify-auth/internal/pkg/router"
)

// HTTPEndpoint exposes HTTP handlers for the OTP challenge and trusted-device
// workflows.
type HTTPEndpoint struct {
	uc uc
}

// RequestOtp issues a one-time passcode to an email address or phone number.
// @Summary Request a one-time passcode
// @Description Sends a fresh passcode for the given destination and purpose. Re-requests inside the cooldown window are rejected with a retry hint.
// @Tags Auth, OTP
// @Accept json
// @Produce json
// @Param request body RequestOtpRequest true "OTP request payload"
// @Success 200 {object} router.successResponse{data=RequestOtpResponse} "Issued passcode metadata"
// @Failure 400 {object} router.errorResponse "Invalid request body"
// @Failure 403 {object} router.errorResponse "Account locked"
// @Failure 422 {object} router.errorResponse "Validation error"
// @Failure 429 {object} router.errorResponse "Cooldown or quota exceeded"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/auth/otp/request [post]
func (h *HTTPEndpoint) RequestOtp(r *router.Request) (any, error) {
	var req RequestOtpRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.RequestOtp(r.Context(), usecase.RequestOtpInput{
		Destination:       req.Destination,
		Purpose:           req.Purpose,
		Method:            req.Method,
		DeviceFingerprint: req.DeviceFingerprint,
		IPAddress:         r.RemoteAddr,
	})
	if err != nil {
		return nil, err
	}

	return RequestOtpResponse{
		OtpID:     resp.OtpID,
		ExpiresAt: resp.ExpiresAt.Unix(),
	}, nil
}

// VerifyOtp checks a submitted passcode and issues session credentials.
// @Summary Verify a one-time passcode
// @Description Consumes the pending passcode and returns session and access tokens. Optionally grants device trust.
// @Tags Auth, OTP
// @Accept json
// @Produce json
// @Param request body VerifyOtpRequest true "OTP verification payload"
// @Success 200 {object} router.successResponse{data=VerifyOtpResponse} "Session credentials"
// @Failure 400 {object} router.errorResponse "Invalid request body"
// @Failure 401 {object} router.errorResponse "Code invalid or expired"
// @Failure 403 {object} router.errorResponse "Code blocked"
// @Failure 404 {object} router.errorResponse "Code not found"
// @Failure 409 {object} router.errorResponse "Code already used"
// @Failure 429 {object} router.errorResponse "Too many verification attempts"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/auth/otp/verify [post]
func (h *HTTPEndpoint) VerifyOtp(r *router.Request) (any, error) {
	var req VerifyOtpRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.VerifyOtp(r.Context(), usecase.VerifyOtpInput{
		OtpID:          req.OtpID,
		Destination:    req.Destination,
		Purpose:        req.Purpose,
		Code:           req.Code,
		DeviceID:       req.DeviceID,
		DeviceLabel:    req.DeviceLabel,
		RememberDevice: req.RememberDevice,
		IPAddress:      r.RemoteAddr,
	})
	if err != nil {
		return nil, err
	}

	return VerifyOtpResponse{
		SessionToken:       resp.SessionToken,
		AccessToken:        resp.AccessToken,
		DeviceRefreshToken: resp.DeviceRefreshToken,
		DeviceExpiresAt:    resp.DeviceExpiresAt,
	}, nil
}

// PasswordGate validates a password before starting an OTP challenge.
// @Summary Validate password
// @Description Checks the account password and feeds the lockout counter on failure.
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body PasswordGateRequest true "Password payload"
// @Success 200 {object} router.successResponse{data=PasswordGateResponse} "Password accepted"
// @Failure 401 {object} router.errorResponse "Invalid credentials"
// @Failure 403 {object} router.errorResponse "Account locked"
// @Failure 422 {object} router.errorResponse "Validation error"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/auth/password/gate [post]
func (h *HTTPEndpoint) PasswordGate(r *router.Request) (any, error) {
	var req PasswordGateRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.PasswordGate(r.Context(), usecase.PasswordGateInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return nil, err
	}

	return PasswordGateResponse{AccountID: resp.AccountID}, nil
}

// RefreshTrustedDevice exchanges a device refresh token for a new session.
// @Summary Refresh a trusted device session
// @Description Rotates the device refresh token and returns fresh session and access tokens.
// @Tags Auth, Devices
// @Accept json
// @Produce json
// @Param request body RefreshTrustedDeviceRequest true "Device refresh payload"
// @Success 200 {object} router.successResponse{data=RefreshTrustedDeviceResponse} "Fresh credentials"
// @Failure 401 {object} router.errorResponse "Trust invalid or expired"
// @Failure 422 {object} router.errorResponse "Validation error"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/auth/device/refresh [post]
func (h *HTTPEndpoint) RefreshTrustedDevice(r *router.Request) (any, error) {
	var req RefreshTrustedDeviceRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.RefreshTrustedDevice(r.Context(), usecase.RefreshTrustedDeviceInput{
		DeviceID:     req.DeviceID,
		RefreshToken: req.RefreshToken,
	})
	if err != nil {
		return nil, err
	}

	return RefreshTrustedDeviceResponse{
		SessionToken: resp.SessionToken,
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
	}, nil
}

// ListTrustedDevices lists the caller's active trusted devices.
// @Summary List trusted devices
// @Tags Auth, Devices
// @Produce json
// @Security BearerAuth
// @Success 200 {object} router.successResponse{data=[]TrustedDeviceResponse} "Active devices"
// @Failure 401 {object} router.errorResponse "Authentication required"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/auth/devices [get]
func (h *HTTPEndpoint) ListTrustedDevices(r *router.Request) (any, error) {
	resp, err := h.uc.ListTrustedDevices(r.Context())
	if err != nil {
		return nil, err
	}

	out := make([]TrustedDeviceResponse, 0, len(resp.Devices))
	for _, d := range resp.Devices {
		out = append(out, TrustedDeviceResponse{
			ID:         d.ID,
			Label:      d.Label,
			LastUsedAt: d.LastUsedAt.Unix(),
			ExpiresAt:  d.ExpiresAt.Unix(),
		})
	}

	return out, nil
}

// RevokeTrustedDevice revokes one trusted device.
// @Summary Revoke a trusted device
// @Tags Auth, Devices
// @Produce json
// @Security BearerAuth
// @Param id path int true "Device id"
// @Success 200 {object} router.successResponse{data=RevokeTrustedDeviceResponse} "Device revoked"
// @Failure 401 {object} router.errorResponse "Authentication required"
// @Failure 404 {object} router.errorResponse "Device not found"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/auth/devices/{id} [delete]
func (h *HTTPEndpoint) RevokeTrustedDevice(r *router.Request) (any, error) {
	id, err := r.GetParamInt64("id")
	if err != nil {
		return nil, err
	}

	if err := h.uc.RevokeTrustedDevice(r.Context(), usecase.RevokeTrustedDeviceInput{DeviceRowID: id}); err != nil {
		return nil, err
	}

	return RevokeTrustedDeviceResponse{}, nil
}

// ReloadProviders refreshes the delivery provider registry.
// @Summary Reload delivery providers
// @Tags Auth, Operations
// @Produce json
// @Security BearerAuth
// @Success 200 {object} router.successResponse{data=ReloadProvidersResponse} "Registry reloaded"
// @Failure 401 {object} router.errorResponse "Authentication required"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/auth/providers/reload [post]
func (h *HTTPEndpoint) ReloadProviders(r *router.Request) (any, error) {
	if err := h.uc.ReloadProviders(r.Context()); err != nil {
		return nil, err
	}

	return ReloadProvidersResponse{}, nil
}
