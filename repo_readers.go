package readers

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// NOTE: updates that clear columns go through raw SQL; the ORM update path
// skips zero values and would leave consumed tokens behind.

var ActivateReaderSQL = `UPDATE "readers" AS "rdr"
SET
	"activated_at" = ?,
	"activation_token" = NULL
WHERE
	"rdr"."deleted_at" IS NULL
AND (
	"rdr"."id" = ?
) RETURNING *;`

var StageResetSQL = `UPDATE "readers" AS "rdr"
SET
	"salt" = ?,
	"provisional_password_hash" = ?,
	"activation_token" = ?
WHERE
	"rdr"."deleted_at" IS NULL
AND (
	"rdr"."id" = ?
) RETURNING *;`

var PromotePasswordSQL = `UPDATE "readers" AS "rdr"
SET
	"password_hash" = ?,
	"provisional_password_hash" = NULL,
	"activation_token" = NULL
WHERE
	"rdr"."deleted_at" IS NULL
AND (
	"rdr"."id" = ?
) RETURNING *;`

var SetTrustedSQL = `UPDATE "readers" AS "rdr"
SET
	"trusted" = ?
WHERE
	"rdr"."deleted_at" IS NULL
AND (
	"rdr"."id" = ?
) RETURNING *;`

// Readers is the persistence surface the workflows consume. Login and email
// uniqueness live here, at the storage boundary; violations surface as
// conflict errors.
type Readers interface {
	FindByLogin(ctx context.Context, login string) (*Reader, error)
	FindByLoginTx(ctx context.Context, tx bun.IDB, login string) (*Reader, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Reader, error)
	FindByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Reader, error)
	GetByIdentifier(ctx context.Context, identifier string) (*Reader, error)
	GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string) (*Reader, error)

	Register(ctx context.Context, record *Reader) (*Reader, error)
	RegisterTx(ctx context.Context, tx bun.IDB, record *Reader) (*Reader, error)

	Activate(ctx context.Context, id uuid.UUID, at time.Time) error
	ActivateTx(ctx context.Context, tx bun.IDB, id uuid.UUID, at time.Time) error
	StageReset(ctx context.Context, id uuid.UUID, salt, provisionalHash, token string) error
	StageResetTx(ctx context.Context, tx bun.IDB, id uuid.UUID, salt, provisionalHash, token string) error
	PromotePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	PromotePasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error
	SetTrusted(ctx context.Context, id uuid.UUID, trusted bool) error
	SetTrustedTx(ctx context.Context, tx bun.IDB, id uuid.UUID, trusted bool) error
}

type readersRepo struct {
	repository.Repository[*Reader]
	db *bun.DB
}

var (
	_ Readers     = (*readersRepo)(nil)
	_ ReaderStore = (*readersRepo)(nil)
)

func NewReadersRepository(db *bun.DB) Readers {
	repo := repository.NewRepository[*Reader](db, repository.ModelHandlers[*Reader]{
		NewRecord: func() *Reader { return &Reader{} },
		GetID: func(r *Reader) uuid.UUID {
			if r == nil {
				return uuid.Nil
			}
			return r.ID
		},
		SetID: func(r *Reader, id uuid.UUID) {
			if r != nil {
				r.ID = id
			}
		},
		GetIdentifier: func() string {
			return "login"
		},
	})

	return &readersRepo{
		Repository: repo,
		db:         db,
	}
}

func (a *readersRepo) FindByLogin(ctx context.Context, login string) (*Reader, error) {
	return a.FindByLoginTx(ctx, a.db, login)
}

func (a *readersRepo) FindByLoginTx(ctx context.Context, tx bun.IDB, login string) (*Reader, error) {
	return a.findOneTx(ctx, tx, "login", login)
}

func (a *readersRepo) FindByID(ctx context.Context, id uuid.UUID) (*Reader, error) {
	return a.FindByIDTx(ctx, a.db, id)
}

func (a *readersRepo) FindByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Reader, error) {
	return a.findOneTx(ctx, tx, "id", id.String())
}

// GetByIdentifier resolves a reader by id, email, or login, in that order.
func (a *readersRepo) GetByIdentifier(ctx context.Context, identifier string) (*Reader, error) {
	return a.GetByIdentifierTx(ctx, a.db, identifier)
}

func (a *readersRepo) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string) (*Reader, error) {
	options := resolveReaderIdentifier(identifier)

	for _, opt := range options {
		record, err := a.findOneTx(ctx, tx, opt.column, opt.value)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				continue
			}
			return nil, err
		}
		return record, nil
	}

	return nil, repository.NewRecordNotFound().
		WithMetadata(map[string]any{
			"identifier": identifier,
		})
}

func (a *readersRepo) Register(ctx context.Context, record *Reader) (*Reader, error) {
	return a.RegisterTx(ctx, a.db, record)
}

func (a *readersRepo) RegisterTx(ctx context.Context, tx bun.IDB, record *Reader) (*Reader, error) {
	prepareReaderDefaults(record)

	created, err := a.Repository.CreateTx(ctx, tx, record)
	if err != nil {
		if IsDuplicateIdentityError(err) {
			return nil, goerrors.Wrap(err, goerrors.CategoryConflict, "login or email already registered")
		}
		return nil, err
	}

	return created, nil
}

func (a *readersRepo) Activate(ctx context.Context, id uuid.UUID, at time.Time) error {
	return a.ActivateTx(ctx, a.db, id, at)
}

func (a *readersRepo) ActivateTx(ctx context.Context, tx bun.IDB, id uuid.UUID, at time.Time) error {
	return a.rawUpdateTx(ctx, tx, id, ActivateReaderSQL, at, id.String())
}

func (a *readersRepo) StageReset(ctx context.Context, id uuid.UUID, salt, provisionalHash, token string) error {
	return a.StageResetTx(ctx, a.db, id, salt, provisionalHash, token)
}

func (a *readersRepo) StageResetTx(ctx context.Context, tx bun.IDB, id uuid.UUID, salt, provisionalHash, token string) error {
	return a.rawUpdateTx(ctx, tx, id, StageResetSQL, salt, provisionalHash, token, id.String())
}

func (a *readersRepo) PromotePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return a.PromotePasswordTx(ctx, a.db, id, passwordHash)
}

func (a *readersRepo) PromotePasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	return a.rawUpdateTx(ctx, tx, id, PromotePasswordSQL, passwordHash, id.String())
}

func (a *readersRepo) SetTrusted(ctx context.Context, id uuid.UUID, trusted bool) error {
	return a.SetTrustedTx(ctx, a.db, id, trusted)
}

func (a *readersRepo) SetTrustedTx(ctx context.Context, tx bun.IDB, id uuid.UUID, trusted bool) error {
	return a.rawUpdateTx(ctx, tx, id, SetTrustedSQL, trusted, id.String())
}

func (a *readersRepo) rawUpdateTx(ctx context.Context, tx bun.IDB, id uuid.UUID, query string, args ...any) error {
	res, err := a.Repository.RawTx(ctx, tx, query, args...)
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}

	return nil
}

func (a *readersRepo) findOneTx(ctx context.Context, tx bun.IDB, column, value string) (*Reader, error) {
	record := &Reader{}

	err := tx.NewSelect().
		Model(record).
		Where(fmt.Sprintf("?TableAlias.%s = ?", column), value).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					column: value,
				})
		}
		return nil, err
	}

	return record, nil
}

func prepareReaderDefaults(record *Reader) {
	if record == nil {
		return
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}

type identifierOption struct {
	column string
	value  string
}

func resolveReaderIdentifier(identifier string) []identifierOption {
	trimmed := strings.TrimSpace(identifier)
	if trimmed == "" {
		return nil
	}

	options := make([]identifierOption, 0, 3)

	if isUUID(trimmed) {
		options = append(options, identifierOption{
			column: "id",
			value:  trimmed,
		})
	}

	if isEmail(trimmed) {
		options = append(options, identifierOption{
			column: "email",
			value:  trimmed,
		})
	}

	options = append(options, identifierOption{
		column: "login",
		value:  trimmed,
	})

	return options
}

func isEmail(email string) bool {
	_, err := mail.ParseAddress(email)
	return err == nil
}

func isUUID(identifier string) bool {
	_, err := uuid.Parse(identifier)
	return err == nil
}
