package readers

import (
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Reader is the account model. A reader is created pending, with a single-use
// activation token and no activation timestamp. The same token field later
// guards password reset confirmation: it is non-empty exactly while an
// activation or a reset is pending.
type Reader struct {
	bun.BaseModel `bun:"table:readers,alias:rdr"`

	ID                      uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name                    string     `bun:"name,notnull" json:"name,omitempty"`
	Login                   string     `bun:"login,notnull,unique" json:"login,omitempty"`
	Email                   string     `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash            string     `bun:"password_hash,notnull" json:"-"`
	Salt                    string     `bun:"salt,notnull" json:"-"`
	ActivationToken         string     `bun:"activation_token,nullzero" json:"-"`
	ActivatedAt             *time.Time `bun:"activated_at,nullzero" json:"activated_at,omitempty"`
	ProvisionalPasswordHash string     `bun:"provisional_password_hash,nullzero" json:"-"`
	Trusted                 bool       `bun:"trusted,notnull" json:"trusted,omitempty"`
	CreatedAt               *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt               *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt               *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// NewReader builds a pending reader with creation defaults: a fresh id, a
// fresh activation token, and trusted status.
func NewReader(name, login, email string) (*Reader, error) {
	token, err := GenerateToken()
	if err != nil {
		return nil, err
	}

	return &Reader{
		ID:              uuid.New(),
		Name:            name,
		Login:           login,
		Email:           email,
		Trusted:         true,
		ActivationToken: token,
	}, nil
}

// SetCredential hashes and stores a new secret under a fresh salt.
//
// An empty secret is an idempotent no-op so profile updates can be saved
// without touching the password. When confirmNow is false the caller has not
// confirmed the change yet and is expected to route the secret through the
// reset workflow instead; the live credential is left alone.
func (r *Reader) SetCredential(secret string, confirmNow bool) error {
	if secret == "" || !confirmNow {
		return nil
	}

	salt, err := NewSalt()
	if err != nil {
		return err
	}

	r.Salt = salt
	r.PasswordHash = HashSecret(secret, salt)
	return nil
}

// VerifyCredential reports whether the secret matches the live credential.
func (r *Reader) VerifyCredential(secret string) bool {
	if r.PasswordHash == "" {
		return false
	}
	return VerifySecret(secret, r.Salt, r.PasswordHash)
}

// Activated reports whether the reader has completed activation.
func (r *Reader) Activated() bool {
	return r.ActivatedAt != nil
}

// PendingActivation reports whether the reader still awaits activation.
func (r *Reader) PendingActivation() bool {
	return r.ActivatedAt == nil
}

// PendingReset reports whether a password reset awaits confirmation.
func (r *Reader) PendingReset() bool {
	return r.ProvisionalPasswordHash != ""
}

// Activate consumes the activation token. Already-activated readers succeed
// with no state change. On a match the activation timestamp is set and the
// token cleared; on a mismatch nothing changes and the caller learns only
// that activation failed.
func (r *Reader) Activate(supplied string, at time.Time) bool {
	if r.Activated() {
		return true
	}

	if r.ActivationToken == "" || !TokensEqual(supplied, r.ActivationToken) {
		return false
	}

	r.ActivatedAt = &at
	r.ActivationToken = ""
	return true
}

// StageReset stores the candidate credential for a password reset. The live
// hash is untouched until ConfirmReset; staging again overwrites the previous
// pending reset, so only one is ever in flight.
func (r *Reader) StageReset(provisionalSecret, token string) error {
	if provisionalSecret == "" {
		return ErrNoEmptyString
	}

	if r.Salt == "" {
		salt, err := NewSalt()
		if err != nil {
			return err
		}
		r.Salt = salt
	}

	r.ProvisionalPasswordHash = HashSecret(provisionalSecret, r.Salt)
	r.ActivationToken = token
	return nil
}

// ConfirmReset promotes the provisional credential to live when the supplied
// token matches the pending reset token. On a mismatch nothing changes and
// the pending reset stays valid for further attempts.
func (r *Reader) ConfirmReset(supplied string) bool {
	if r.ProvisionalPasswordHash == "" || r.ActivationToken == "" {
		return false
	}

	if !TokensEqual(supplied, r.ActivationToken) {
		return false
	}

	r.PasswordHash = r.ProvisionalPasswordHash
	r.ProvisionalPasswordHash = ""
	r.ActivationToken = ""
	return true
}

// Validate reports every violated field rule at once rather than stopping at
// the first failure. Login/email uniqueness is enforced at the persistence
// boundary.
func (r Reader) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required),
		validation.Field(&r.Login, validation.Required),
		validation.Field(&r.Email, validation.Required, is.Email, validation.By(emailHostHasDot)),
	)
}

// emailHostHasDot requires a fully qualified host (local@domain with a dot in
// the domain); bare hosts like user@localhost are rejected.
func emailHostHasDot(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}

	at := strings.LastIndex(s, "@")
	if at < 0 || !strings.Contains(s[at+1:], ".") {
		return errors.New("must use a fully qualified host")
	}
	return nil
}
