package lendguard

import (
	"errors"
	"fmt"
	"sync"
)

// Storage keys. Both namespaces use the same keys; exactly one namespace is
// authoritative at a time.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyRememberMe   = "remember_me"
	KeyUser         = "user"
)

//nolint:gochecknoglobals // fixed key set
var allKeys = []string{KeyAccessToken, KeyRefreshToken, KeyRememberMe, KeyUser}

type (
	// Backend is a string key/value namespace holding credential material.
	// Adapters live in the memstore, sqlitestore and redisstore packages.
	Backend interface {
		// Get returns the value stored under key and whether it exists.
		Get(key string) (string, bool)
		// Set stores value under key.
		Set(key, value string) error
		// Delete removes key. Deleting a missing key is not an error.
		Delete(key string) error
	}

	// Credential is the access/refresh token pair of an authenticated
	// session.
	Credential struct {
		AccessToken  string
		RefreshToken string
		Persistent   bool
	}

	// CredentialStore holds at most one [Credential] in one of two
	// namespaces: a persistent one surviving restarts and an ephemeral one
	// living as long as the session. Writing one namespace clears the other.
	CredentialStore struct {
		persistent Backend
		ephemeral  Backend
		mu         sync.RWMutex
	}
)

// NewCredentialStore returns a store over the two namespaces.
func NewCredentialStore(persistent, ephemeral Backend) *CredentialStore {
	return &CredentialStore{persistent: persistent, ephemeral: ephemeral}
}

// Set stores the pair in the namespace selected by persistent and clears
// the other namespace.
func (s *CredentialStore) Set(accessToken, refreshToken string, persistent bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, other := s.ephemeral, s.persistent
	if persistent {
		target, other = s.persistent, s.ephemeral
	}

	if err := clearBackend(other); err != nil {
		return fmt.Errorf("lendguard: set credential: %w", err)
	}

	// A stale pair or profile from an earlier session must not survive in
	// the target namespace either.
	if err := clearBackend(target); err != nil {
		return fmt.Errorf("lendguard: set credential: %w", err)
	}

	writes := [][2]string{{KeyAccessToken, accessToken}}
	if refreshToken != "" {
		writes = append(writes, [2]string{KeyRefreshToken, refreshToken})
	}

	if persistent {
		writes = append(writes, [2]string{KeyRememberMe, "true"})
	}

	for _, kv := range writes {
		if err := target.Set(kv[0], kv[1]); err != nil {
			return fmt.Errorf("lendguard: set credential %s: %w", kv[0], err)
		}
	}

	return nil
}

// Get returns the active credential. The persistent namespace wins when
// both are populated.
func (s *CredentialStore) Get() (Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if cred, ok := readCredential(s.persistent); ok {
		cred.Persistent = true
		return cred, true
	}

	return readCredential(s.ephemeral)
}

// Clear removes every key from both namespaces, whichever was active.
func (s *CredentialStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return errors.Join(clearBackend(s.persistent), clearBackend(s.ephemeral))
}

// SetProfile caches the serialized user profile next to the active
// credential, in the ephemeral namespace when no credential is stored.
func (s *CredentialStore) SetProfile(profile []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	target := s.ephemeral
	if _, ok := readCredential(s.persistent); ok {
		target = s.persistent
	}

	if err := target.Set(KeyUser, string(profile)); err != nil {
		return fmt.Errorf("lendguard: set profile: %w", err)
	}

	return nil
}

// Profile returns the cached user profile.
func (s *CredentialStore) Profile() ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if v, ok := s.persistent.Get(KeyUser); ok {
		return []byte(v), true
	}

	if v, ok := s.ephemeral.Get(KeyUser); ok {
		return []byte(v), true
	}

	return nil, false
}

// ClearProfile drops the cached profile from both namespaces.
func (s *CredentialStore) ClearProfile() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return errors.Join(s.persistent.Delete(KeyUser), s.ephemeral.Delete(KeyUser))
}

func readCredential(b Backend) (Credential, bool) {
	access, ok := b.Get(KeyAccessToken)
	if !ok || access == "" {
		return Credential{}, false
	}

	refresh, _ := b.Get(KeyRefreshToken)

	return Credential{AccessToken: access, RefreshToken: refresh}, true
}

func clearBackend(b Backend) error {
	var errs []error
	for _, k := range allKeys {
		errs = append(errs, b.Delete(k))
	}

	return errors.Join(errs...)
}
