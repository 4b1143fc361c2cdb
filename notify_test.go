package lendguard

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNotificationForPrefersBackendMessage(t *testing.T) {
	tests := []struct {
		class   Classification
		message string
		title   string
		want    string
	}{
		{RateLimited, "", TooManyRequestsTitle, TooManyRequestsMessage},
		{RateLimited, "Slow down", TooManyRequestsTitle, "Slow down"},
		{NetworkUnreachable, "", NetworkErrorTitle, NetworkErrorMessage},
		{ServerFault5xx, "", ServerErrorTitle, ServerErrorMessage},
		{DatabaseConnectivity, "Connection terminated unexpectedly", DatabaseErrorTitle, "Connection terminated unexpectedly"},
		{ValidationOrServerMessage, "Union not found", ServerErrorTitle, "Union not found"},
	}

	for _, tt := range tests {
		n, ok := notificationFor(tt.class, tt.message)
		if !ok || n.Title != tt.title || n.Message != tt.want || n.Class != tt.class {
			t.Fatalf("notificationFor(%v, %q) = %+v, %v", tt.class, tt.message, n, ok)
		}
	}

	if n, _ := notificationFor(RateLimited, ""); n.Duration != 3*time.Second {
		t.Fatalf("rate limit toast duration = %v, want 3s", n.Duration)
	}
}

func TestNotificationForSilentClasses(t *testing.T) {
	for _, c := range []Classification{AuthFailure, Unclassified} {
		if _, ok := notificationFor(c, "anything"); ok {
			t.Fatalf("notificationFor(%v) reported a notification", c)
		}
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{errors.New("x"), "An unexpected error occurred"},
		{&RequestError{Message: "Loan already approved", StatusCode: 409}, "Loan already approved"},
		{&RequestError{}, "Network Error: Unable to connect to the server"},
		{&RequestError{StatusCode: 403}, "You don't have permission to perform this action."},
		{&RequestError{StatusCode: 422}, "Please check your input and try again."},
		{&RequestError{StatusCode: 418}, "An unexpected error occurred. Please try again."},
	}

	for _, tt := range tests {
		if got := Describe(tt.err); got != tt.want {
			t.Fatalf("Describe(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestInboxDoesNotDeduplicate(t *testing.T) {
	inbox := &Inbox{}
	n := Notification{Title: ServerErrorTitle, Message: ServerErrorMessage}

	inbox.Notify(n)
	inbox.Notify(n)

	if got := inbox.Drain(); len(got) != 2 {
		t.Fatalf("Drain() = %d notifications, want 2", len(got))
	}

	if inbox.Len() != 0 {
		t.Fatal("Drain() left notifications behind")
	}
}

func TestMultiNotifierAndLogNotifier(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	inbox := &Inbox{}

	MultiNotifier(inbox, LogNotifier(zap.New(core))).Notify(Notification{
		Title:   NetworkErrorTitle,
		Message: NetworkErrorMessage,
		Class:   NetworkUnreachable,
	})

	if inbox.Len() != 1 {
		t.Fatal("inbox missed the notification")
	}

	entries := logs.FilterMessage(NetworkErrorTitle).All()
	if len(entries) != 1 || entries[0].ContextMap()["class"] != "network_unreachable" {
		t.Fatalf("log entries = %+v", entries)
	}
}
