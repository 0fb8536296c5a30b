// Package otp generates one-time passcodes: short-lived numeric credentials
// delivered out-of-band (e-mail or SMS) to prove control of a destination.
//
// Codes are random, not time-derived; the caller is responsible for hashing
// them before storage and for enforcing expiry and attempt budgets.
package otp
