package entity

import (
	"time"
)

type OtpRecord struct {
	ID                int64
	OwnerID           *int64 // nil for pre-account flows (register)
	Purpose           Purpose
	Destination       string
	DeliveryMethod    DeliveryMethod
	CodeHash          string // immutable after creation
	Status            OtpStatus
	Attempts          int32
	ExpiresAt         time.Time
	CreatedAt         time.Time
	VerifiedAt        *time.Time
	DeviceFingerprint string
	IPAddress         string
}

type RequestLogEntry struct {
	Destination string
	IPAddress   string
	CreatedAt   time.Time
}

type TrustedDevice struct {
	ID               int64
	OwnerID          int64
	DeviceIDHash     string
	RefreshTokenHash string
	Label            string
	LastUsedAt       time.Time
	ExpiresAt        time.Time
	RevokedAt        *time.Time
	CreatedAt        time.Time
}

// Session keys the device by the same HMAC hash trusted_devices uses, so a
// trust revocation can drop the session without knowing the raw device id.
type Session struct {
	ID           int64
	OwnerID      int64
	DeviceIDHash string
	TokenHash    string
	ExpiresAt    time.Time
	CreatedAt    time.Time
}

type Account struct {
	ID                  int64
	Email               string
	Phone               string
	Password            string // hashed
	FailedLoginAttempts int32
	LockedUntil         *time.Time
}

type ProviderSetting struct {
	Name     string
	Enabled  bool
	Priority int32
}

// ---- //

// IssueOtp groups everything the issuance transaction writes: the new pending
// record plus the request-log row backing the abuse quota. Superseding prior
// pending rows for the same (destination, purpose) happens in the same tx.
type IssueOtp struct {
	Record OtpRecord
	Log    RequestLogEntry
}

// RotateDeviceToken carries the conditional refresh-token rotation: the update
// succeeds only when the stored hash still matches OldTokenHash.
type RotateDeviceToken struct {
	DeviceRowID  int64
	OwnerID      int64
	OldTokenHash string
	NewTokenHash string
	NewExpiresAt time.Time
	LastUsedAt   time.Time
}

// DeviceTrustGrant is the one-time response to "remember this device": the raw
// refresh token is returned exactly once and only its hash is persisted.
type DeviceTrustGrant struct {
	DeviceID        string
	RawRefreshToken string
	ExpiresAt       time.Time
}
