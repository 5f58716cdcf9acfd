package auth

import "github.com/alexedwards/argon2id"

// PasswordHasher hashes and verifies passwords with argon2id.
type PasswordHasher struct {
	params *argon2id.Params
}

// NewPasswordHasher returns a hasher with the library defaults.
func NewPasswordHasher() *PasswordHasher {
	return &PasswordHasher{params: argon2id.DefaultParams}
}

// Hash returns the encoded $argon2id$... string to store.
func (h *PasswordHasher) Hash(plain string) (string, error) {
	return argon2id.CreateHash(plain, h.params)
}

// Verify compares a password against a stored encoded hash.
func (h *PasswordHasher) Verify(plain, encoded string) (bool, error) {
	return argon2id.ComparePasswordAndHash(plain, encoded)
}
