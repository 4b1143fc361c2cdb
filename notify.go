package lendguard

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Fallback texts, used only when the backend supplied no message.
const (
	TooManyRequestsTitle   = "Too many requests"
	TooManyRequestsMessage = "Please wait a moment and try again"
	NetworkErrorTitle      = "Network Error"
	NetworkErrorMessage    = "Unable to connect to the server. Please check your internet connection."
	ServerErrorTitle       = "Server Error"
	ServerErrorMessage     = "The server is experiencing issues. Please try again later."
	DatabaseErrorTitle     = "Database Connection Error"
)

type (
	// Notification is one transient user-visible message.
	Notification struct {
		Title     string
		Message   string
		RequestID string
		Duration  time.Duration
		Class     Classification
	}

	// Notifier surfaces notifications to the user. Implementations must be
	// safe for concurrent use; no deduplication is expected.
	Notifier interface {
		Notify(n Notification)
	}

	// NotifierFunc adapts an ordinary function into a [Notifier].
	NotifierFunc func(n Notification)
)

// Notify calls the underlying function.
func (f NotifierFunc) Notify(n Notification) { f(n) }

// notificationFor builds the notification for a terminal failure. It
// reports false for classes that never notify. The backend message always
// wins over the fallback text.
func notificationFor(class Classification, message string) (Notification, bool) {
	n := Notification{Class: class, Duration: 5 * time.Second}

	switch class {
	case RateLimited:
		n.Title = TooManyRequestsTitle
		n.Message = orDefault(message, TooManyRequestsMessage)
		n.Duration = 3 * time.Second
	case DatabaseConnectivity:
		n.Title = DatabaseErrorTitle
		n.Message = message
	case ValidationOrServerMessage:
		n.Title = ServerErrorTitle
		n.Message = message
	case NetworkUnreachable:
		n.Title = NetworkErrorTitle
		n.Message = orDefault(message, NetworkErrorMessage)
	case ServerFault5xx:
		n.Title = ServerErrorTitle
		n.Message = orDefault(message, ServerErrorMessage)
	default:
		return Notification{}, false
	}

	return n, true
}

func orDefault(s, fallback string) string {
	if s != "" {
		return s
	}

	return fallback
}

// Describe returns a user-facing sentence for err: the backend message when
// there is one, otherwise a fallback chosen by status code. Call sites that
// handle [Unclassified] failures themselves use it to render inline errors.
func Describe(err error) string {
	if err == nil {
		return ""
	}

	if msg, ok := BackendMessage(err); ok {
		return msg
	}

	var re *RequestError
	if !errors.As(err, &re) {
		return "An unexpected error occurred"
	}

	if re.StatusCode == 0 {
		return "Network Error: Unable to connect to the server"
	}

	switch re.StatusCode {
	case http.StatusBadRequest:
		return "Invalid request. Please check your input and try again."
	case http.StatusUnauthorized:
		return "Your session has expired. Please login again."
	case http.StatusForbidden:
		return "You don't have permission to perform this action."
	case http.StatusNotFound:
		return "The requested resource was not found."
	case http.StatusConflict:
		return "A conflict occurred. The resource may already exist."
	case http.StatusUnprocessableEntity:
		return "Please check your input and try again."
	case http.StatusTooManyRequests:
		return "Too many requests. Please wait a moment before trying again."
	case http.StatusInternalServerError:
		return "A server error occurred. Please try again later."
	default:
		return "An unexpected error occurred. Please try again."
	}
}

// ---------------------------------------------------------------------------
// Notifier implementations
// ---------------------------------------------------------------------------

// LogNotifier writes notifications to logger at warn level. It is the
// default sink of headless consumers.
func LogNotifier(logger *zap.Logger) Notifier {
	return NotifierFunc(func(n Notification) {
		logger.Warn(n.Title,
			zap.String("message", n.Message),
			zap.Stringer("class", n.Class),
			zap.String("request_id", n.RequestID),
		)
	})
}

// Inbox is a [Notifier] that queues notifications until a front end drains
// them.
type Inbox struct {
	items []Notification
	mu    sync.Mutex
}

// Notify implements [Notifier].
func (b *Inbox) Notify(n Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items = append(b.items, n)
}

// Drain returns and removes all queued notifications, oldest first.
func (b *Inbox) Drain() []Notification {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := b.items
	b.items = nil

	return out
}

// Len returns the number of queued notifications.
func (b *Inbox) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.items)
}

type multiNotifier []Notifier

func (m multiNotifier) Notify(n Notification) {
	for _, nf := range m {
		nf.Notify(n)
	}
}

// MultiNotifier fans every notification out to each of ns.
func MultiNotifier(ns ...Notifier) Notifier {
	return multiNotifier(ns)
}
