package inbound

type RequestOtpRequest struct {
	Destination       string `json:"destination"`
	Purpose           string `json:"purpose"`
	Method            string `json:"method"`
	DeviceFingerprint string `json:"device_fingerprint"`
}

type RequestOtpResponse struct {
	OtpID     int64 `json:"otp_id,string"`
	ExpiresAt int64 `json:"expires_at"`
}

func (RequestOtpResponse) Message() string {
	return "If the destination is valid, a verification code has been sent."
}

type VerifyOtpRequest struct {
	OtpID          int64  `json:"otp_id,string"`
	Destination    string `json:"destination"`
	Purpose        string `json:"purpose"`
	Code           string `json:"code"`
	DeviceID       string `json:"device_id"`
	DeviceLabel    string `json:"device_label"`
	RememberDevice bool   `json:"remember_device"`
}

type VerifyOtpResponse struct {
	SessionToken       string `json:"session_token"`
	AccessToken        string `json:"access_token"`
	DeviceRefreshToken string `json:"device_refresh_token,omitempty"`
	DeviceExpiresAt    int64  `json:"device_expires_at,omitempty"`
}

type PasswordGateRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type PasswordGateResponse struct {
	AccountID int64 `json:"account_id,string"`
}

type RefreshTrustedDeviceRequest struct {
	DeviceID     string `json:"device_id"`
	RefreshToken string `json:"refresh_token"`
}

type RefreshTrustedDeviceResponse struct {
	SessionToken string `json:"session_token"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type TrustedDeviceResponse struct {
	ID         int64  `json:"id,string"`
	Label      string `json:"label"`
	LastUsedAt int64  `json:"last_used_at"`
	ExpiresAt  int64  `json:"expires_at"`
}

type RevokeTrustedDeviceResponse struct{}

func (RevokeTrustedDeviceResponse) Message() string {
	return "Trusted device revoked."
}

type ReloadProvidersResponse struct{}

func (ReloadProvidersResponse) Message() string {
	return "Delivery providers reloaded."
}
