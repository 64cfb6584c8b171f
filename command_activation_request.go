package readers

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

type RequestActivationMessage struct {
	Identifier string `json:"identifier" example:"pepe.rone" doc:"Reader id, email, or login."`
	OnResponse func(resp *RequestActivationResponse)
}

func (e RequestActivationMessage) Type() string { return "reader.activation_request" }

type RequestActivationResponse struct {
	Found         bool
	AlreadyActive bool
	Success       bool
}

// RequestActivationHandler re-sends the activation message for a pending
// reader. The existing token is reused: tokens stay valid until consumed, so
// every copy of the message keeps working. Activated readers get an
// AlreadyActive response and no message.
type RequestActivationHandler struct {
	repo     RepositoryManager
	notifier Notifier
	activity ActivitySink
	logger   Logger
}

// NewRequestActivationHandler creates a handler with sane defaults.
func NewRequestActivationHandler(repo RepositoryManager) *RequestActivationHandler {
	return &RequestActivationHandler{
		repo:     repo,
		notifier: noopNotifier{},
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithNotifier sets the collaborator that delivers the activation message.
func (h *RequestActivationHandler) WithNotifier(n Notifier) *RequestActivationHandler {
	h.notifier = normalizeNotifier(n)
	return h
}

// WithActivitySink sets the sink used to emit activation events.
func (h *RequestActivationHandler) WithActivitySink(sink ActivitySink) *RequestActivationHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *RequestActivationHandler) WithLogger(logger Logger) *RequestActivationHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *RequestActivationHandler) Execute(ctx context.Context, event RequestActivationMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during activation request")
	default:
		return h.execute(ctx, event)
	}
}

func (h *RequestActivationHandler) execute(ctx context.Context, event RequestActivationMessage) error {
	resp := &RequestActivationResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	reader, err := h.repo.Readers().GetByIdentifier(ctx, event.Identifier)
	if err != nil {
		// unknown identifiers are part of the expected flow
		if repository.IsRecordNotFound(err) {
			if event.OnResponse != nil {
				event.OnResponse(resp)
			}
			return nil
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve reader for activation request")
	}

	resp.Found = true

	if reader.Activated() {
		resp.AlreadyActive = true
		if event.OnResponse != nil {
			event.OnResponse(resp)
		}
		return nil
	}

	if err := normalizeNotifier(h.notifier).Deliver(ctx, Notification{
		Reader: reader,
		Kind:   NotificationActivation,
		Token:  reader.ActivationToken,
	}); err != nil {
		h.logger.Warn("activation notification error: %v", err)
	}

	h.recordActivity(ctx, reader)

	resp.Success = true
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

func (h *RequestActivationHandler) recordActivity(ctx context.Context, reader *Reader) {
	if reader == nil {
		return
	}

	event := ActivityEvent{
		EventType: ActivityEventActivationResent,
		Actor: ActorRef{
			ID:   reader.ID.String(),
			Type: "reader",
		},
		ReaderID:   reader.ID.String(),
		OccurredAt: time.Now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink error during activation request: %v", err)
	}
}
