package validator

import "testing"

// V10Validator must satisfy the Validator abstraction consumed by the modules.
var _ Validator = (*V10Validator)(nil)

func TestV10ValidatorValidate(t *testing.T) {
	v, err := NewV10Validator()
	if err != nil {
		t.Fatalf("NewV10Validator: %v", err)
	}

	type payload struct {
		Email string `validate:"required,email"`
	}

	t.Run("ValidInput", func(t *testing.T) {
		if err := v.Validate(payload{Email: "parent@example.com"}); err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
	})

	t.Run("InvalidInputReturnsFieldMap", func(t *testing.T) {
		// Act
		err := v.Validate(payload{Email: "not-an-email"})

		// Assert
		if err == nil {
			t.Fatalf("expected validation error")
		}
		verr, ok := err.(V10ValidationError)
		if !ok {
			t.Fatalf("expected V10ValidationError, got %T", err)
		}
		if _, found := verr.Values()["email"]; !found {
			t.Fatalf("expected email field error, got %v", verr.Values())
		}
	})
}
