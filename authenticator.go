package readers

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

// Authenticator verifies login/secret pairs against stored reader state. It
// is read-only: no attempt counters, no timestamps, no event emission.
type Authenticator struct {
	store  ReaderStore
	logger Logger
}

// NewAuthenticator returns a new Authenticator backed by the given store.
func NewAuthenticator(store ReaderStore) *Authenticator {
	return &Authenticator{
		store:  store,
		logger: defLogger{},
	}
}

func (a *Authenticator) WithLogger(logger Logger) *Authenticator {
	if logger != nil {
		a.logger = logger
	}
	return a
}

// Authenticate resolves the login and checks the secret. Unknown login,
// pending activation, and digest mismatch all return the same
// ErrAuthenticationFailed so the caller learns nothing about why.
func (a *Authenticator) Authenticate(ctx context.Context, login, secret string) (*Reader, error) {
	reader, err := a.store.FindByLogin(ctx, login)
	if err != nil {
		if repository.IsRecordNotFound(err) || goerrors.IsNotFound(err) {
			return nil, ErrAuthenticationFailed
		}
		a.logger.Error("authenticate lookup error: %v", err)
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve reader during authentication")
	}

	if reader == nil || !reader.Activated() {
		return nil, ErrAuthenticationFailed
	}

	if !reader.VerifyCredential(secret) {
		return nil, ErrAuthenticationFailed
	}

	return reader, nil
}
