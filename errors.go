package readers

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	// TextCodeInvalidCreds is surfaced on every authentication failure.
	TextCodeInvalidCreds = "INVALID_CREDENTIALS"
	// TextCodeTokenMismatch is surfaced when an activation or reset token fails to match.
	TextCodeTokenMismatch = "TOKEN_MISMATCH"
	// TextCodeEmptySecret is surfaced when a secret is required but missing.
	TextCodeEmptySecret = "EMPTY_SECRET"
	// TextCodeNotActivated is surfaced when an operation requires an activated reader.
	TextCodeNotActivated = "READER_NOT_ACTIVATED"
	// TextCodeDuplicateIdentity is surfaced when login or email uniqueness is violated.
	TextCodeDuplicateIdentity = "DUPLICATE_IDENTITY"
)

// ErrAuthenticationFailed is the single undifferentiated authentication
// failure. Unknown login, pending activation, and digest mismatch all map
// here so callers cannot probe for account existence or state.
var ErrAuthenticationFailed = goerrors.New("the credentials provided are invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds)

// ErrTokenMismatch is returned when an activation or reset confirmation token
// does not match the pending one. A consumed or absent token reports the same
// error as a wrong one.
var ErrTokenMismatch = goerrors.New("the supplied token does not match", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMismatch)

// ErrNoEmptyString rejects empty secrets where one is required.
var ErrNoEmptyString = goerrors.New("secret must not be empty", goerrors.CategoryValidation).
	WithTextCode(TextCodeEmptySecret)

// ErrReaderNotActivated is returned when a password reset is requested for a
// reader that has not completed activation.
var ErrReaderNotActivated = goerrors.New("reader account is not activated", goerrors.CategoryConflict).
	WithTextCode(TextCodeNotActivated)

// ErrReaderNotFound is the error we return for readers we cannot locate.
var ErrReaderNotFound = goerrors.New("reader not found", goerrors.CategoryNotFound).
	WithCode(goerrors.CodeNotFound)

// IsDuplicateIdentityError checks whether the persistence layer rejected a
// record because of login/email uniqueness.
func IsDuplicateIdentityError(err error) bool {
	if err == nil {
		return false
	}

	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich.TextCode == TextCodeDuplicateIdentity {
		return true
	}

	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
