// Package cryptox implements the password verifier scheme used by the
// credential store: a per-user random salt plus an argon2id-derived verifier.
// The plaintext password never touches persistent storage.
package cryptox

import (
	"crypto/subtle"

	"github.com/dmitrijs2005/aurachat/internal/common"
	"golang.org/x/crypto/argon2"
)

const (
	SaltSize     = 32
	verifierSize = 32
)

// MakeSalt returns a fresh random salt for a new user record.
func MakeSalt() []byte {
	return common.GenerateRandByteArray(SaltSize)
}

// DeriveVerifier derives the stored verifier from a password and salt.
func DeriveVerifier(password []byte, salt []byte) []byte {
	return argon2.IDKey(password, salt, 1, 64*1024, 4, verifierSize)
}

// VerifierMatches reports whether the candidate password produces the stored
// verifier. The comparison is constant-time.
func VerifierMatches(verifier []byte, password []byte, salt []byte) bool {
	candidate := DeriveVerifier(password, salt)
	return subtle.ConstantTimeCompare(verifier, candidate) == 1
}
