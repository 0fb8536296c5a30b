package entity

import "strings"

type Purpose int16

const (
	// PurposeUnknown is mean purpose is not known / not set.
	PurposeUnknown Purpose = 0

	// PurposeLogin scopes codes proving a login attempt.
	PurposeLogin Purpose = 1

	// PurposeRegister scopes codes sent during account registration.
	PurposeRegister Purpose = 2

	// PurposeReset scopes codes sent for password reset.
	PurposeReset Purpose = 3

	// PurposeChangePassword scopes codes confirming a password change.
	PurposeChangePassword Purpose = 4
)

func PurposeFromString(str string) Purpose {
	switch strings.ToLower(strings.TrimSpace(str)) {
	case "login":
		return PurposeLogin
	case "register":
		return PurposeRegister
	case "reset":
		return PurposeReset
	case "change_password":
		return PurposeChangePassword
	default:
		return PurposeUnknown
	}
}

func (p Purpose) String() string {
	switch p {
	case PurposeLogin:
		return "login"
	case PurposeRegister:
		return "register"
	case PurposeReset:
		return "reset"
	case PurposeChangePassword:
		return "change_password"
	default:
		return "unknown"
	}
}

func (p Purpose) IsUnknown() bool {
	switch p {
	case PurposeLogin, PurposeRegister, PurposeReset, PurposeChangePassword:
		return false
	default:
		return true
	}
}

// OtpStatus is the OTP record state machine. Pending is the only live state;
// every other value is terminal.
type OtpStatus int16

const (
	OtpStatusUnknown OtpStatus = 0

	// OtpStatusPending mean the code was issued and can still be verified.
	OtpStatusPending OtpStatus = 1

	// OtpStatusVerified mean the code was consumed by a successful verification.
	OtpStatusVerified OtpStatus = 2

	// OtpStatusExpired mean the deadline passed before the code was consumed.
	OtpStatusExpired OtpStatus = 3

	// OtpStatusBlocked mean the attempt budget was exhausted.
	OtpStatusBlocked OtpStatus = 4

	// OtpStatusSuperseded mean a newer code was issued for the same key.
	OtpStatusSuperseded OtpStatus = 5
)

func (s OtpStatus) String() string {
	switch s {
	case OtpStatusPending:
		return "pending"
	case OtpStatusVerified:
		return "verified"
	case OtpStatusExpired:
		return "expired"
	case OtpStatusBlocked:
		return "blocked"
	case OtpStatusSuperseded:
		return "superseded"
	default:
		return "unknown"
	}
}

func (s OtpStatus) IsTerminal() bool {
	switch s {
	case OtpStatusVerified, OtpStatusExpired, OtpStatusBlocked, OtpStatusSuperseded:
		return true
	default:
		return false
	}
}

type DeliveryMethod int16

const (
	DeliveryMethodUnknown DeliveryMethod = 0
	DeliveryMethodEmail   DeliveryMethod = 1
	DeliveryMethodSMS     DeliveryMethod = 2
)

func DeliveryMethodFromString(str string) DeliveryMethod {
	switch strings.ToLower(strings.TrimSpace(str)) {
	case "email":
		return DeliveryMethodEmail
	case "sms":
		return DeliveryMethodSMS
	default:
		return DeliveryMethodUnknown
	}
}

func (m DeliveryMethod) String() string {
	switch m {
	case DeliveryMethodEmail:
		return "email"
	case DeliveryMethodSMS:
		return "sms"
	default:
		return "unknown"
	}
}

func (m DeliveryMethod) IsUnknown() bool {
	switch m {
	case DeliveryMethodEmail, DeliveryMethodSMS:
		return false
	default:
		return true
	}
}

// NormalizeDestination canonicalizes the lookup key: e-mail addresses are
// lower-cased, phone numbers keep digits and a leading plus only.
func NormalizeDestination(dest string) string {
	dest = strings.TrimSpace(dest)
	if strings.Contains(dest, "@") {
		return strings.ToLower(dest)
	}

	var b strings.Builder
	b.Grow(len(dest))
	for i, r := range dest {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
			continue
		}
		if r == '+' && i == 0 {
			b.WriteRune(r)
		}
	}

	return b.String()
}
