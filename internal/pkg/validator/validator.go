package validator

// Validator validates request and domain structs against their declared rules.
type Validator interface {
	Validate(in any) error
}
