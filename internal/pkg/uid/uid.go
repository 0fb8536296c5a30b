package uid

// NumberID generates int64 identifiers safe for use as primary keys.
type NumberID interface {
	Generate() int64
}

// StringID generates opaque string identifiers.
type StringID interface {
	Generate() string
}
