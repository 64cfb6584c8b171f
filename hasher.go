package readers

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/crypto/pbkdf2"
)

const (
	saltBytes      = 16
	digestBytes    = 32
	hashIterations = 4096
)

// HashSecret derives a fixed-length digest from a secret and a per-credential
// salt. The derivation is deterministic and one-way; two readers sharing a
// secret but not a salt produce different digests.
func HashSecret(secret, salt string) string {
	key := pbkdf2.Key([]byte(secret), []byte(salt), hashIterations, digestBytes, sha256.New)
	return hex.EncodeToString(key)
}

// NewSalt generates a random salt. A salt is minted once per credential
// generation and only replaced when the credential actually changes.
func NewSalt() (string, error) {
	b := make([]byte, saltBytes)
	if _, err := rand.Read(b); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate credential salt")
	}
	return hex.EncodeToString(b), nil
}

// VerifySecret reports whether the secret hashes to the stored digest under
// the stored salt. The comparison is constant time.
func VerifySecret(secret, salt, digest string) bool {
	computed := HashSecret(secret, salt)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(digest)) == 1
}
