// Package auth hashes account passwords.
package auth

import (
	"fmt"

	"github.com/alexedwards/argon2id"
)

// Argon2idHasher hashes passwords with argon2id.
type Argon2idHasher struct {
	params *argon2id.Params
}

// NewArgon2idHasher creates a hasher with the given difficulty parameters.
//
// memory must be provided in Kilobytes (KB).
func NewArgon2idHasher(time, memory, keyLength, saltLength uint32, parallelism uint8) *Argon2idHasher {
	return &Argon2idHasher{
		params: &argon2id.Params{
			Memory:      memory,
			Iterations:  time,
			Parallelism: parallelism,
			SaltLength:  saltLength,
			KeyLength:   keyLength,
		},
	}
}

// NewDefaultHasher returns a hasher using the library's recommended parameters.
func NewDefaultHasher() *Argon2idHasher {
	p := *argon2id.DefaultParams
	return &Argon2idHasher{params: &p}
}

// Hash returns the encoded argon2id hash of password.
func (h *Argon2idHasher) Hash(password string) (string, error) {
	hash, err := argon2id.CreateHash(password, h.params)
	if err != nil {
		return "", fmt.Errorf("creating argon2id hash: %w", err)
	}
	return hash, nil
}

// Compare reports whether password matches hash. A malformed hash never matches.
func (h *Argon2idHasher) Compare(hash, password string) bool {
	match, err := argon2id.ComparePasswordAndHash(password, hash)
	return err == nil && match
}
