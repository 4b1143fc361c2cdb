package lendguard

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// DefaultLoginPath is the console's login boundary.
const DefaultLoginPath = "/login"

// Navigator is the browsing context the supervisor redirects. It is injected
// so the pipeline can be exercised without a real browser.
type Navigator interface {
	// CurrentPath returns the path currently displayed.
	CurrentPath() string
	// Embedded reports whether the console runs inside a frame of an origin
	// it does not control.
	Embedded() bool
	// Navigate moves to path.
	Navigate(path string) error
}

// SessionSupervisor ends the session after an unrecoverable authentication
// failure.
type SessionSupervisor struct {
	store     *CredentialStore
	nav       Navigator
	onClear   func()
	loginPath string
}

// NewSessionSupervisor returns a supervisor clearing store and redirecting
// nav to loginPath. A nil nav disables navigation; an empty loginPath means
// [DefaultLoginPath].
func NewSessionSupervisor(store *CredentialStore, nav Navigator, loginPath string) *SessionSupervisor {
	if loginPath == "" {
		loginPath = DefaultLoginPath
	}

	return &SessionSupervisor{store: store, nav: nav, loginPath: loginPath}
}

// LoginPath returns the login boundary.
func (s *SessionSupervisor) LoginPath() string { return s.loginPath }

// Teardown clears the credentials and cached profile, then navigates to the
// login boundary unless the navigator is already there or is embedded. It
// reports whether navigation happened. Storage errors do not prevent the
// redirect.
func (s *SessionSupervisor) Teardown() (bool, error) {
	var errs []error

	if s.store != nil {
		errs = append(errs, s.store.Clear())
	}

	if s.onClear != nil {
		s.onClear()
	}

	if s.nav == nil || s.nav.Embedded() || s.AtLoginBoundary(s.nav.CurrentPath()) {
		return false, errors.Join(errs...)
	}

	if err := s.nav.Navigate(s.loginPath); err != nil {
		errs = append(errs, fmt.Errorf("lendguard: navigate to %s: %w", s.loginPath, err))
		return false, errors.Join(errs...)
	}

	return true, errors.Join(errs...)
}

// AtLoginBoundary reports whether path is the login page or below it.
func (s *SessionSupervisor) AtLoginBoundary(path string) bool {
	path = strings.TrimSuffix(path, "/")

	return path == s.loginPath || strings.HasPrefix(path, s.loginPath+"/")
}

// ---------------------------------------------------------------------------
// Location: in-process Navigator
// ---------------------------------------------------------------------------

// Location is a [Navigator] holding the current path in memory. Front ends
// that are not browsers (the CLI, a terminal UI, tests) use it and react to
// navigation through OnNavigate.
type Location struct {
	onNavigate func(path string)
	path       string
	history    []string
	mu         sync.Mutex
	embedded   bool
}

// LocationOption configures a [Location].
type LocationOption func(*Location)

// Embedded marks the location as running inside a foreign frame.
func Embedded() LocationOption {
	return func(l *Location) { l.embedded = true }
}

// OnNavigate registers a callback invoked after each navigation.
func OnNavigate(fn func(path string)) LocationOption {
	return func(l *Location) { l.onNavigate = fn }
}

// NewLocation returns a location starting at path.
func NewLocation(path string, opts ...LocationOption) *Location {
	l := &Location{path: path}
	for _, opt := range opts {
		opt(l)
	}

	return l
}

// CurrentPath implements [Navigator].
func (l *Location) CurrentPath() string {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.path
}

// Embedded implements [Navigator].
func (l *Location) Embedded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.embedded
}

// Navigate implements [Navigator].
func (l *Location) Navigate(path string) error {
	l.mu.Lock()
	l.path = path
	l.history = append(l.history, path)
	fn := l.onNavigate
	l.mu.Unlock()

	if fn != nil {
		fn(path)
	}

	return nil
}

// History returns every path navigated to, oldest first.
func (l *Location) History() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]string, len(l.history))
	copy(out, l.history)

	return out
}
