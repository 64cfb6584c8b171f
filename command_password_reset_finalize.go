package readers

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type FinalizePasswordResetMessage struct {
	Identifier string `json:"identifier" example:"pepe.rone@example.com" doc:"Reader id, email, or login."`
	Token      string `json:"token" example:"7c51e0ad7e4e9fc11efb..." doc:"Reset confirmation token."`
}

func (e FinalizePasswordResetMessage) Type() string { return "reader.password_reset_finalize" }

// FinalizePasswordResetHandler promotes the staged provisional credential to
// live when the reset token matches. A mismatch changes nothing; the pending
// reset stays valid for further attempts, and the caller is told only that
// the token did not match.
type FinalizePasswordResetHandler struct {
	repo     RepositoryManager
	activity ActivitySink
	logger   Logger
}

// NewFinalizePasswordResetHandler creates a handler with sane defaults.
func NewFinalizePasswordResetHandler(repo RepositoryManager) *FinalizePasswordResetHandler {
	return &FinalizePasswordResetHandler{
		repo:     repo,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithActivitySink sets the sink used to emit password reset events.
func (h *FinalizePasswordResetHandler) WithActivitySink(sink ActivitySink) *FinalizePasswordResetHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *FinalizePasswordResetHandler) WithLogger(logger Logger) *FinalizePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *FinalizePasswordResetHandler) Execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset finalization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *FinalizePasswordResetHandler) execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var reader *Reader

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error

		reader, err = h.repo.Readers().GetByIdentifierTx(ctx, tx, event.Identifier)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrTokenMismatch
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve reader for reset confirmation")
		}

		if !reader.ConfirmReset(event.Token) {
			return ErrTokenMismatch
		}

		if err := h.repo.Readers().PromotePasswordTx(ctx, tx, reader.ID, reader.PasswordHash); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist confirmed credential")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to finalize password reset")
	}

	h.recordActivity(ctx, reader)

	return nil
}

func (h *FinalizePasswordResetHandler) recordActivity(ctx context.Context, reader *Reader) {
	if reader == nil {
		return
	}

	event := ActivityEvent{
		EventType: ActivityEventPasswordResetSuccess,
		Actor: ActorRef{
			ID:   reader.ID.String(),
			Type: "reader",
		},
		ReaderID:   reader.ID.String(),
		OccurredAt: time.Now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink error during password reset: %v", err)
	}
}
