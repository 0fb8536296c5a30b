package entity

import "testing"

func TestNormalizeDestination(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "EmailLowercased", in: "  Parent@Example.COM ", want: "parent@example.com"},
		{name: "PhoneKeepsLeadingPlus", in: "+1 (202) 555-0175", want: "+12025550175"},
		{name: "PhoneDropsInnerPlus", in: "628+123456", want: "628123456"},
		{name: "PhoneStripsPunctuation", in: "0812-3456-7890", want: "081234567890"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeDestination(tc.in); got != tc.want {
				t.Fatalf("NormalizeDestination(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestPurposeFromString(t *testing.T) {
	cases := map[string]Purpose{
		"login":           PurposeLogin,
		" Register ":      PurposeRegister,
		"RESET":           PurposeReset,
		"change_password": PurposeChangePassword,
		"teleport":        PurposeUnknown,
		"":                PurposeUnknown,
	}

	for in, want := range cases {
		if got := PurposeFromString(in); got != want {
			t.Fatalf("PurposeFromString(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestDeliveryMethodIsUnknown(t *testing.T) {
	for _, m := range []DeliveryMethod{DeliveryMethodEmail, DeliveryMethodSMS} {
		if m.IsUnknown() {
			t.Fatalf("expected %v known", m)
		}
	}

	if !DeliveryMethodUnknown.IsUnknown() {
		t.Fatalf("zero value must be unknown")
	}
	if !DeliveryMethod(99).IsUnknown() {
		t.Fatalf("out-of-range value must be unknown")
	}
}

func TestOtpStatusIsTerminal(t *testing.T) {
	if OtpStatusPending.IsTerminal() {
		t.Fatalf("pending must not be terminal")
	}

	for _, st := range []OtpStatus{OtpStatusVerified, OtpStatusExpired, OtpStatusBlocked, OtpStatusSuperseded} {
		if !st.IsTerminal() {
			t.Fatalf("expected %v terminal", st)
		}
	}
}
