package hash

// Hash abstracts a one-way hash over secrets.
//
// Implementations must make Verify resistant to timing attacks: comparison
// goes through the hash primitive itself, never a raw string compare.
type Hash interface {
	// Hash returns the hashed representation of plaintext.
	Hash(plaintext string) ([]byte, error)
	// Verify reports whether plaintext matches the hashed value.
	Verify(hashed, plaintext string) bool
}
