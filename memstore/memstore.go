// Package memstore provides an ephemeral credential namespace backed by
// go-cache. Values live for the lifetime of the process, which matches the
// session-scoped namespace of the credential store.
package memstore

import (
	gocache "github.com/patrickmn/go-cache"

	"github.com/byte4ever/lendguard"
)

// Store is a [lendguard.Backend] held in process memory.
type Store struct {
	c *gocache.Cache
}

var _ lendguard.Backend = (*Store)(nil)

// New returns an empty store. Entries never expire.
func New() *Store {
	return &Store{c: gocache.New(gocache.NoExpiration, 0)}
}

// Get returns the value stored under key.
func (s *Store) Get(key string) (string, bool) {
	v, ok := s.c.Get(key)
	if !ok {
		return "", false
	}

	str, ok := v.(string)

	return str, ok
}

// Set stores value under key.
func (s *Store) Set(key, value string) error {
	s.c.Set(key, value, gocache.NoExpiration)

	return nil
}

// Delete removes key.
func (s *Store) Delete(key string) error {
	s.c.Delete(key)

	return nil
}

// Len returns the number of stored keys.
func (s *Store) Len() int { return s.c.ItemCount() }
