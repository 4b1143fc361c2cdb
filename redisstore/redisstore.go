// Package redisstore provides a persistent credential namespace backed by
// Redis, shared by every console process pointed at the same server.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/byte4ever/lendguard"
)

// DefaultPrefix namespaces credential keys.
const DefaultPrefix = "lendguard:"

const opTimeout = 3 * time.Second

// Store is a [lendguard.Backend] over a Redis client. Keys never expire.
type Store struct {
	c      redis.UniversalClient
	logger *zap.Logger
	prefix string
}

var _ lendguard.Backend = (*Store)(nil)

// Option configures a [Store].
type Option func(*Store)

// WithLogger sets the logger receiving read failures. The default discards
// them.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New wraps an existing client. An empty prefix uses [DefaultPrefix].
func New(c redis.UniversalClient, prefix string, opts ...Option) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}

	s := &Store{c: c, prefix: prefix, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Dial connects to addr and pings the server.
func Dial(ctx context.Context, addr string, db int, prefix string, opts ...Option) (*Store, error) {
	c := redis.NewClient(&redis.Options{Addr: addr, DB: db})

	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()

		return nil, fmt.Errorf("redisstore: ping %s: %w", addr, err)
	}

	return New(c, prefix, opts...), nil
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.c.Close() //nolint:wrapcheck // passthrough
}

// Get returns the value stored under key. Errors other than a missing key
// also report a miss and are logged at error level, since the pipeline then
// sends the request unauthenticated.
func (s *Store) Get(key string) (string, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	v, err := s.c.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false
	}

	if err != nil {
		s.logger.Error("redisstore: read credential", zap.String("key", key), zap.Error(err))

		return "", false
	}

	return v, true
}

// Set stores value under key.
func (s *Store) Set(key, value string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if err := s.c.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redisstore: set %s: %w", key, err)
	}

	return nil
}

// Delete removes key.
func (s *Store) Delete(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	err := s.c.Del(ctx, s.prefix+key).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redisstore: delete %s: %w", key, err)
	}

	return nil
}
