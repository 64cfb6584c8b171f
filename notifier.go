package readers

import (
	"context"
	"fmt"

	"github.com/goliatone/go-print"
)

// NotificationKind tells the collaborator which message to compose.
type NotificationKind string

const (
	NotificationActivation    NotificationKind = "activation"
	NotificationPasswordReset NotificationKind = "password_reset"
)

// Notification carries everything a delivery collaborator needs to compose an
// out-of-band message: the recipient, the kind, and either the single-use
// token or the plaintext provisional secret. The core produces this data and
// nothing else; it never owns the transport.
type Notification struct {
	Reader            *Reader
	Kind              NotificationKind
	Token             string
	ProvisionalSecret string
}

// Notifier delivers notifications to readers.
type Notifier interface {
	Deliver(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, n Notification) error

// Deliver implements Notifier.
func (f NotifierFunc) Deliver(ctx context.Context, n Notification) error {
	if f == nil {
		return nil
	}
	return f(ctx, n)
}

type noopNotifier struct{}

func (noopNotifier) Deliver(context.Context, Notification) error {
	return nil
}

func normalizeNotifier(n Notifier) Notifier {
	if n == nil {
		return noopNotifier{}
	}
	return n
}

// ConsoleNotifier writes notifications to stdout. It stands in for a real
// mail transport during development.
type ConsoleNotifier struct {
	Debug bool
}

func (c ConsoleNotifier) Deliver(_ context.Context, n Notification) error {
	if n.Reader == nil {
		return nil
	}

	fmt.Println("====== SENDING", string(n.Kind), "NOTIFICATION =======")
	fmt.Printf("to: %s <%s>\n", n.Reader.Name, n.Reader.Email)
	fmt.Printf("login: %s\n", n.Reader.Login)

	switch n.Kind {
	case NotificationActivation:
		fmt.Printf("link: /activate/%s?activation_code=%s\n", n.Reader.ID, n.Token)
	case NotificationPasswordReset:
		fmt.Printf("provisional password: %s\n", n.ProvisionalSecret)
		fmt.Printf("link: /password-reset/%s?token=%s\n", n.Reader.ID, n.Token)
	}

	if c.Debug {
		fmt.Println(print.MaybePrettyJSON(n))
	}

	return nil
}
