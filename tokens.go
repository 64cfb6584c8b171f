package readers

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const tokenBytes = 20

// provisionalAlphabet avoids characters readers confuse when transcribing
// from an email (0/O, 1/l/i).
const provisionalAlphabet = "abcdefghjkmnpqrstuvwxyz23456789"

const (
	provisionalGroups    = 3
	provisionalGroupSize = 4
)

// GenerateToken mints an opaque single-use token for activation and password
// reset confirmation. Tokens carry no meaning; only presence and equality
// matter.
func GenerateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate token")
	}
	return hex.EncodeToString(b), nil
}

// GenerateProvisionalSecret mints a random human-transcribable secret that a
// collaborator communicates to the reader out-of-band during a password
// reset. The plaintext is never persisted.
func GenerateProvisionalSecret() (string, error) {
	raw := make([]byte, provisionalGroups*provisionalGroupSize)
	if _, err := rand.Read(raw); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate provisional secret")
	}

	var sb strings.Builder
	for i, b := range raw {
		if i > 0 && i%provisionalGroupSize == 0 {
			sb.WriteByte('-')
		}
		sb.WriteByte(provisionalAlphabet[int(b)%len(provisionalAlphabet)])
	}

	return sb.String(), nil
}

// TokensEqual compares two tokens in constant time.
func TokensEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
