package lendguard

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"
)

// Failure is everything the classifier looks at for one failed attempt.
type Failure struct {
	// Err is the transport error. It is usually paired with a zero
	// StatusCode; a non-zero StatusCode with Err set means the body could
	// not be read to the end.
	Err  error
	Path string
	// Message is the backend envelope message, empty when absent.
	Message string
	// StatusCode is 0 when no response was received.
	StatusCode int
}

// DatabaseReason distinguishes the two signature families folded into
// [DatabaseConnectivity]. It only feeds logs.
type DatabaseReason string

const (
	// ReasonNone means the message matched no database signature.
	ReasonNone DatabaseReason = ""
	// ReasonConnectivity means the backend could not reach its database.
	ReasonConnectivity DatabaseReason = "connectivity"
	// ReasonDriver means the backend's ORM or driver failed.
	ReasonDriver DatabaseReason = "driver"
)

// Classifier assigns a [Classification] to a [Failure]. The zero value
// matches nothing; use [DefaultClassifier] for the console backend's
// signatures. A Classifier must not be mutated once in use.
type Classifier struct {
	// AuthMarkers are path fragments identifying authentication endpoints,
	// whose 401 means "invalid credentials" rather than "session expired".
	AuthMarkers []string
	// ConnectivitySignatures are message fragments reporting that the
	// backend could not reach its database.
	ConnectivitySignatures []string
	// DriverSignatures are message fragments reporting ORM or driver panics.
	DriverSignatures []string
}

// DefaultAuthMarkers identify the backend's authentication routes.
func DefaultAuthMarkers() []string { return []string{"/auth/"} }

// DefaultConnectivitySignatures are the backend's database reachability
// error fragments.
func DefaultConnectivitySignatures() []string {
	return []string{
		"Can't reach database server",
		"database server is running",
		"Connection terminated",
		"Connection timeout",
		"ECONNREFUSED",
		"ETIMEDOUT",
		"ENOTFOUND",
	}
}

// DefaultDriverSignatures are the backend's ORM failure fragments.
func DefaultDriverSignatures() []string {
	return []string{
		"Invalid prisma",
		"PrismaClientKnownRequestError",
		"PrismaClientUnknownRequestError",
		"PrismaClientRustPanicError",
	}
}

// DefaultClassifier returns a classifier loaded with the default markers and
// signatures.
func DefaultClassifier() *Classifier {
	return &Classifier{
		AuthMarkers:            DefaultAuthMarkers(),
		ConnectivitySignatures: DefaultConnectivitySignatures(),
		DriverSignatures:       DefaultDriverSignatures(),
	}
}

//nolint:gochecknoglobals // read-only default
var defaultClassifier = DefaultClassifier()

// Classify labels f with the default classifier.
func Classify(f Failure) Classification {
	return defaultClassifier.Classify(f)
}

// Classify labels f. Checks run in a fixed order and the first match wins,
// because the raw signals overlap (a 429 may carry a message, a 503 may
// carry a database message).
func (c *Classifier) Classify(f Failure) Classification {
	hasResponse := f.StatusCode != 0

	switch {
	case hasResponse && f.StatusCode == http.StatusUnauthorized && !c.IsAuthEndpoint(f.Path):
		return AuthFailure
	case hasResponse && f.StatusCode == http.StatusTooManyRequests:
		return RateLimited
	case hasResponse && c.HasConnectivitySignature(f.Message):
		return DatabaseConnectivity
	case hasResponse && c.HasDriverSignature(f.Message):
		return DatabaseConnectivity
	case hasResponse && f.Message != "":
		return ValidationOrServerMessage
	case errors.Is(f.Err, context.Canceled):
		return Unclassified
	case !hasResponse || IsNetworkError(f.Err):
		return NetworkUnreachable
	case f.StatusCode >= http.StatusInternalServerError && f.StatusCode < 600:
		return ServerFault5xx
	default:
		return Unclassified
	}
}

// Reason tells which database signature family msg matched.
func (c *Classifier) Reason(msg string) DatabaseReason {
	switch {
	case c.HasConnectivitySignature(msg):
		return ReasonConnectivity
	case c.HasDriverSignature(msg):
		return ReasonDriver
	default:
		return ReasonNone
	}
}

// IsAuthEndpoint reports whether path belongs to the authentication routes.
func (c *Classifier) IsAuthEndpoint(path string) bool {
	return containsAny(path, c.AuthMarkers)
}

// HasConnectivitySignature reports whether msg reports an unreachable
// database.
func (c *Classifier) HasConnectivitySignature(msg string) bool {
	return containsAny(msg, c.ConnectivitySignatures)
}

// HasDriverSignature reports whether msg reports an ORM or driver failure.
func (c *Classifier) HasDriverSignature(msg string) bool {
	return containsAny(msg, c.DriverSignatures)
}

// with returns a copy extended with extra markers and signatures.
func (c *Classifier) with(auth, connectivity, driver []string) *Classifier {
	return &Classifier{
		AuthMarkers:            append(slices.Clone(c.AuthMarkers), auth...),
		ConnectivitySignatures: append(slices.Clone(c.ConnectivitySignatures), connectivity...),
		DriverSignatures:       append(slices.Clone(c.DriverSignatures), driver...),
	}
}

func containsAny(s string, fragments []string) bool {
	if s == "" {
		return false
	}

	for _, f := range fragments {
		if f != "" && strings.Contains(s, f) {
			return true
		}
	}

	return false
}
