package readers

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type ActivateReaderMessage struct {
	ID    string `json:"id" example:"350399bc-c095-4bdc-a59c-3352d44848e4" doc:"Reader id, email, or login."`
	Token string `json:"token" example:"7c51e0ad7e4e9fc11efb..." doc:"Activation token."`
}

func (e ActivateReaderMessage) Type() string { return "reader.activate" }

// ActivateReaderHandler consumes an activation token. Already-activated
// readers succeed with no state change; a missing reader and a wrong token
// report the same ErrTokenMismatch.
type ActivateReaderHandler struct {
	repo     RepositoryManager
	activity ActivitySink
	logger   Logger
	now      func() time.Time
}

// NewActivateReaderHandler creates a handler with sane defaults.
func NewActivateReaderHandler(repo RepositoryManager) *ActivateReaderHandler {
	return &ActivateReaderHandler{
		repo:     repo,
		activity: noopActivitySink{},
		logger:   defLogger{},
		now:      time.Now,
	}
}

// WithActivitySink sets the sink used to emit activation events.
func (h *ActivateReaderHandler) WithActivitySink(sink ActivitySink) *ActivateReaderHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *ActivateReaderHandler) WithLogger(logger Logger) *ActivateReaderHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithClock injects a custom clock (useful for tests).
func (h *ActivateReaderHandler) WithClock(clock func() time.Time) *ActivateReaderHandler {
	if clock != nil {
		h.now = clock
	}
	return h
}

func (h *ActivateReaderHandler) Execute(ctx context.Context, event ActivateReaderMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during reader activation")
	default:
		return h.execute(ctx, event)
	}
}

func (h *ActivateReaderHandler) execute(ctx context.Context, event ActivateReaderMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var reader *Reader
	var activated bool

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error

		reader, err = h.repo.Readers().GetByIdentifierTx(ctx, tx, event.ID)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrTokenMismatch
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve reader for activation")
		}

		// safe to retry once activated
		if reader.Activated() {
			return nil
		}

		if !reader.Activate(event.Token, h.now()) {
			return ErrTokenMismatch
		}

		if err := h.repo.Readers().ActivateTx(ctx, tx, reader.ID, *reader.ActivatedAt); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist activation")
		}

		activated = true
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to activate reader")
	}

	if activated {
		h.recordActivity(ctx, reader)
	}

	return nil
}

func (h *ActivateReaderHandler) recordActivity(ctx context.Context, reader *Reader) {
	if reader == nil {
		return
	}

	event := ActivityEvent{
		EventType: ActivityEventReaderActivated,
		Actor: ActorRef{
			ID:   reader.ID.String(),
			Type: "reader",
		},
		ReaderID:   reader.ID.String(),
		OccurredAt: time.Now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink error during activation: %v", err)
	}
}
