package lendguard

import (
	"errors"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Failure classification
// ---------------------------------------------------------------------------

// Classification is the failure category assigned to a failed attempt. The
// set is closed: [Classify] only ever returns one of the constants below.
type Classification int

const (
	// Unclassified failures are returned to the caller without any
	// user-visible notification.
	Unclassified Classification = iota
	// AuthFailure is a 401 from a protected endpoint. It ends the session.
	AuthFailure
	// RateLimited is a 429 from the backend.
	RateLimited
	// DatabaseConnectivity is a backend message reporting that the backend
	// could not reach its database, or that its driver failed.
	DatabaseConnectivity
	// ValidationOrServerMessage is any other response carrying a backend
	// message (400, 403, 404, 409, 422 and message-bearing 5xx).
	ValidationOrServerMessage
	// NetworkUnreachable means no response was received at all.
	NetworkUnreachable
	// ServerFault5xx is a 5xx response without a parseable message.
	ServerFault5xx
)

// String returns the snake_case name used in logs and metric labels.
func (c Classification) String() string {
	switch c {
	case AuthFailure:
		return "auth_failure"
	case RateLimited:
		return "rate_limited"
	case DatabaseConnectivity:
		return "database_connectivity"
	case ValidationOrServerMessage:
		return "validation_or_server_message"
	case NetworkUnreachable:
		return "network_unreachable"
	case ServerFault5xx:
		return "server_fault_5xx"
	default:
		return "unclassified"
	}
}

// Classifications lists every classification, in declaration order.
func Classifications() []Classification {
	return []Classification{
		Unclassified,
		AuthFailure,
		RateLimited,
		DatabaseConnectivity,
		ValidationOrServerMessage,
		NetworkUnreachable,
		ServerFault5xx,
	}
}

// ---------------------------------------------------------------------------
// Sentinel errors
// ---------------------------------------------------------------------------

type (
	// ResilienceError identifies errors produced by the pipeline itself, as
	// opposed to errors reported by the backend or the transport.
	//nolint:iface // exported for consumer error classification.
	ResilienceError interface {
		error
		// IsResilience reports whether this error originates from the
		// pipeline.
		IsResilience() bool
	}

	resilienceError string
)

// Sentinel pipeline errors. A [*RequestError] wraps at most one of them.
var (
	// ErrSessionExpired is wrapped by failures that tore the session down.
	ErrSessionExpired error = resilienceError("session expired")
	// ErrRetriesExhausted is wrapped by retriable failures whose budget ran
	// out.
	ErrRetriesExhausted error = resilienceError("retries exhausted")
	// ErrNotAuthenticated is returned by helpers that need a stored
	// credential when none is present.
	ErrNotAuthenticated error = resilienceError("not authenticated")
	// ErrPingSkipped is returned by [KeepAlive.Ping] inside the minimum
	// ping interval or a rate-limit backoff window.
	ErrPingSkipped error = resilienceError("ping skipped")
)

func (e resilienceError) Error() string { return string(e) }

// IsResilience reports whether the error is a pipeline error.
func (resilienceError) IsResilience() bool { return true }

// ---------------------------------------------------------------------------
// RequestError
// ---------------------------------------------------------------------------

// RequestError is the error returned by [Client.Do] when a logical request
// terminates without success.
type RequestError struct {
	// Err is the transport error when no response was received.
	Err error
	// Response is the last response received, nil when the backend never
	// answered.
	Response *Response
	Method   string
	Path     string
	// Message is the backend envelope message, empty when absent.
	Message string
	// StatusCode is 0 when no response was received.
	StatusCode int
	// Attempts counts every attempt made, including the first.
	Attempts int
	Class    Classification
	// sentinel is ErrSessionExpired, ErrRetriesExhausted or nil.
	sentinel error
}

// Error returns a description without tokens or bodies.
func (e *RequestError) Error() string {
	var b strings.Builder

	b.WriteString("lendguard: ")
	b.WriteString(e.Method)
	b.WriteByte(' ')
	b.WriteString(e.Path)
	b.WriteString(": ")
	b.WriteString(e.Class.String())

	if e.StatusCode != 0 {
		b.WriteString(" (status ")
		b.WriteString(strconv.Itoa(e.StatusCode))
		b.WriteByte(')')
	}

	if e.sentinel != nil {
		b.WriteString(": ")
		b.WriteString(e.sentinel.Error())
	}

	switch {
	case e.Message != "":
		b.WriteString(": ")
		b.WriteString(e.Message)
	case e.Err != nil:
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}

	return b.String()
}

// Unwrap exposes both the sentinel and the transport cause to [errors.Is]
// and [errors.As].
func (e *RequestError) Unwrap() []error {
	var errs []error
	if e.sentinel != nil {
		errs = append(errs, e.sentinel)
	}

	if e.Err != nil {
		errs = append(errs, e.Err)
	}

	return errs
}

// ClassOf returns the classification carried by err, or [Unclassified] when
// err is not a [*RequestError].
func ClassOf(err error) Classification {
	var re *RequestError
	if errors.As(err, &re) {
		return re.Class
	}

	return Unclassified
}

// BackendMessage returns the backend message carried by err, if any.
func BackendMessage(err error) (string, bool) {
	var re *RequestError
	if errors.As(err, &re) && re.Message != "" {
		return re.Message, true
	}

	return "", false
}
