package readers

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type InitializePasswordResetMessage struct {
	Identifier string `json:"identifier" example:"pepe.rone@example.com" doc:"Reader id, email, or login."`
	OnResponse func(resp *InitializePasswordResetResponse)
}

func (e InitializePasswordResetMessage) Type() string { return "reader.password_reset" }

type InitializePasswordResetResponse struct {
	Reader  *Reader
	Found   bool
	Success bool
}

// InitializePasswordResetHandler stages a password reset for an activated
// reader: a random provisional secret is hashed next to the live credential
// and a fresh reset token is issued. The live password keeps working until
// the reset is confirmed. Requesting again before confirming overwrites the
// pending reset, so only one is ever in flight.
type InitializePasswordResetHandler struct {
	repo     RepositoryManager
	notifier Notifier
	activity ActivitySink
	logger   Logger
}

// NewInitializePasswordResetHandler creates a handler with sane defaults.
func NewInitializePasswordResetHandler(repo RepositoryManager) *InitializePasswordResetHandler {
	return &InitializePasswordResetHandler{
		repo:     repo,
		notifier: noopNotifier{},
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithNotifier sets the collaborator that delivers the reset message.
func (h *InitializePasswordResetHandler) WithNotifier(n Notifier) *InitializePasswordResetHandler {
	h.notifier = normalizeNotifier(n)
	return h
}

// WithActivitySink sets the sink used to emit password reset events.
func (h *InitializePasswordResetHandler) WithActivitySink(sink ActivitySink) *InitializePasswordResetHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *InitializePasswordResetHandler) WithLogger(logger Logger) *InitializePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	resp := &InitializePasswordResetResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var reader *Reader
	var provisional, token string

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error

		reader, err = h.repo.Readers().GetByIdentifierTx(ctx, tx, event.Identifier)
		if err != nil {
			// an unknown identifier is part of the expected flow, not an
			// application error; we also do not reveal it to the caller
			if repository.IsRecordNotFound(err) {
				return nil
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve reader for password reset")
		}

		resp.Found = true

		if !reader.Activated() {
			return ErrReaderNotActivated
		}

		if provisional, err = GenerateProvisionalSecret(); err != nil {
			return err
		}

		if token, err = GenerateToken(); err != nil {
			return err
		}

		if err := reader.StageReset(provisional, token); err != nil {
			return err
		}

		if err := h.repo.Readers().StageResetTx(ctx, tx, reader.ID, reader.Salt, reader.ProvisionalPasswordHash, reader.ActivationToken); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist staged password reset")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to initialize password reset")
	}

	if resp.Found {
		if err := normalizeNotifier(h.notifier).Deliver(ctx, Notification{
			Reader:            reader,
			Kind:              NotificationPasswordReset,
			Token:             token,
			ProvisionalSecret: provisional,
		}); err != nil {
			h.logger.Warn("password reset notification error: %v", err)
		}

		h.recordActivity(ctx, reader)

		resp.Reader = reader
		resp.Success = true
	}

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

func (h *InitializePasswordResetHandler) recordActivity(ctx context.Context, reader *Reader) {
	if reader == nil {
		return
	}

	event := ActivityEvent{
		EventType: ActivityEventPasswordResetRequested,
		Actor: ActorRef{
			ID:   reader.ID.String(),
			Type: "reader",
		},
		ReaderID:   reader.ID.String(),
		OccurredAt: time.Now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink error during password reset request: %v", err)
	}
}
