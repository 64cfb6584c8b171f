package readers

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

type RegisterReaderMessage struct {
	Name      string `json:"name" example:"Pepe Rone" doc:"Reader display name."`
	Login     string `json:"login" example:"pepe.rone" doc:"Unique login."`
	Email     string `json:"email" example:"pepe.rone@example.com" doc:"Reader email."`
	Password  string `json:"password" example:"some_secret_word" doc:"Password"`
	UseHashid bool
}

func (e RegisterReaderMessage) Type() string { return "reader.register" }

// RegisterReaderHandler creates a pending reader: salted credential, fresh
// activation token, no activation timestamp. The activation notification is
// handed to the Notifier after the record is committed.
type RegisterReaderHandler struct {
	repo     RepositoryManager
	notifier Notifier
	activity ActivitySink
	logger   Logger
}

// NewRegisterReaderHandler creates a handler with sane defaults.
func NewRegisterReaderHandler(repo RepositoryManager) *RegisterReaderHandler {
	return &RegisterReaderHandler{
		repo:     repo,
		notifier: noopNotifier{},
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithNotifier sets the collaborator that delivers the activation message.
func (h *RegisterReaderHandler) WithNotifier(n Notifier) *RegisterReaderHandler {
	h.notifier = normalizeNotifier(n)
	return h
}

// WithActivitySink sets the sink used to emit registration events.
func (h *RegisterReaderHandler) WithActivitySink(sink ActivitySink) *RegisterReaderHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *RegisterReaderHandler) WithLogger(logger Logger) *RegisterReaderHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *RegisterReaderHandler) Execute(ctx context.Context, event RegisterReaderMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during reader registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterReaderHandler) execute(ctx context.Context, event RegisterReaderMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if event.Password == "" {
		return ErrNoEmptyString
	}

	reader, err := NewReader(event.Name, event.Login, event.Email)
	if err != nil {
		return err
	}

	if err := reader.SetCredential(event.Password, true); err != nil {
		return err
	}

	if event.UseHashid {
		if id, err := hashid.NewUUID(event.Email); err == nil {
			reader.ID = id
		}
	}

	if err := reader.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "reader failed validation")
	}

	// keep the token around; the record clears it on activation
	token := reader.ActivationToken

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		created, err := h.repo.Readers().RegisterTx(ctx, tx, reader)
		if err != nil {
			return err
		}

		reader = created
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "reader registration transaction failed")
	}

	if err := normalizeNotifier(h.notifier).Deliver(ctx, Notification{
		Reader: reader,
		Kind:   NotificationActivation,
		Token:  token,
	}); err != nil {
		h.logger.Warn("activation notification error: %v", err)
	}

	h.recordActivity(ctx, reader)

	return nil
}

func (h *RegisterReaderHandler) recordActivity(ctx context.Context, reader *Reader) {
	if reader == nil {
		return
	}

	event := ActivityEvent{
		EventType: ActivityEventReaderRegistered,
		Actor: ActorRef{
			ID:   reader.ID.String(),
			Type: "reader",
		},
		ReaderID: reader.ID.String(),
		Metadata: map[string]any{
			"login": reader.Login,
		},
		OccurredAt: time.Now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink error during registration: %v", err)
	}
}
