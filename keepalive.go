package lendguard

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Keep-alive defaults.
const (
	DefaultPingInterval     = 10 * time.Minute
	DefaultMinPingInterval  = time.Minute
	DefaultRateLimitBackoff = 5 * time.Minute
	DefaultPingTimeout      = 10 * time.Second
	DefaultFallbackTimeout  = 5 * time.Second
	HealthPath              = "/health"
)

// DefaultFallbackPaths are tried in order when the health endpoint cannot be
// reached at all. Auth endpoints are never used so a ping can not disturb a
// session.
func DefaultFallbackPaths() []string {
	return []string{"/ping", "/test"}
}

type (
	// KeepAlive periodically pings the backend so an idle host does not
	// sleep. Pings are throttled to one per minimum interval, and a 429
	// pushes the next ping back by the rate-limit backoff.
	KeepAlive struct {
		lastPing  time.Time
		transport Transport
		clock     Clock
		logger    *zap.Logger
		fallbacks []string
		status    KeepAliveStatus

		interval    time.Duration
		minInterval time.Duration
		backoff     time.Duration
		timeout     time.Duration
		mu          sync.Mutex
	}

	// KeepAliveStatus is the outcome of the most recent ping.
	KeepAliveStatus struct {
		LastPing    time.Time `json:"last_ping"`
		LastSuccess time.Time `json:"last_success"`
		Endpoint    string    `json:"endpoint,omitempty"`
		Error       string    `json:"error,omitempty"`
		StatusCode  int       `json:"status_code,omitempty"`
		Pings       int       `json:"pings"`
		Reachable   bool      `json:"reachable"`
		RateLimited bool      `json:"rate_limited,omitempty"`
	}

	// KeepAliveOption configures a [KeepAlive].
	KeepAliveOption func(*KeepAlive)
)

// PingInterval sets the period of [KeepAlive.Run].
func PingInterval(d time.Duration) KeepAliveOption {
	return func(k *KeepAlive) { k.interval = d }
}

// MinPingInterval sets the minimum spacing between two pings.
func MinPingInterval(d time.Duration) KeepAliveOption {
	return func(k *KeepAlive) { k.minInterval = d }
}

// RateLimitBackoff sets how long pings pause after a 429.
func RateLimitBackoff(d time.Duration) KeepAliveOption {
	return func(k *KeepAlive) { k.backoff = d }
}

// PingTimeout bounds the health endpoint request.
func PingTimeout(d time.Duration) KeepAliveOption {
	return func(k *KeepAlive) { k.timeout = d }
}

// PingClock replaces the clock used for throttling and the run loop.
func PingClock(c Clock) KeepAliveOption {
	return func(k *KeepAlive) { k.clock = c }
}

// PingLogger sets the logger.
func PingLogger(l *zap.Logger) KeepAliveOption {
	return func(k *KeepAlive) { k.logger = l }
}

// FallbackPaths replaces [DefaultFallbackPaths].
func FallbackPaths(paths ...string) KeepAliveOption {
	return func(k *KeepAlive) { k.fallbacks = paths }
}

// NewKeepAlive returns a pinger sending through t, which must address the
// backend origin rather than the API prefix.
func NewKeepAlive(t Transport, opts ...KeepAliveOption) *KeepAlive {
	k := &KeepAlive{
		transport:   t,
		clock:       RealClock{},
		logger:      zap.NewNop(),
		fallbacks:   DefaultFallbackPaths(),
		interval:    DefaultPingInterval,
		minInterval: DefaultMinPingInterval,
		backoff:     DefaultRateLimitBackoff,
		timeout:     DefaultPingTimeout,
	}

	for _, opt := range opts {
		opt(k)
	}

	if k.interval <= 0 {
		k.interval = DefaultPingInterval
	}

	return k
}

// Status returns a copy of the last ping outcome.
func (k *KeepAlive) Status() KeepAliveStatus {
	k.mu.Lock()
	defer k.mu.Unlock()

	return k.status
}

// Ping pings the health endpoint once. It returns [ErrPingSkipped] when
// called inside the throttle window. When the health endpoint is
// unreachable the fallback paths are tried in order. The status lock is
// not held while requests are in flight, so [KeepAlive.Status] never waits
// on the network.
func (k *KeepAlive) Ping(ctx context.Context) (KeepAliveStatus, error) {
	now, ok := k.begin()
	if !ok {
		return k.Status(), ErrPingSkipped
	}

	resp, err := k.send(ctx, HealthPath, k.timeout)
	if err != nil {
		k.logger.Debug("health ping failed, trying fallbacks", zap.Error(err))

		return k.pingFallbacks(ctx, err)
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	k.record(HealthPath, resp)

	if resp.StatusCode == http.StatusTooManyRequests {
		// lastPing in the future keeps every ping inside the throttle
		// window until the backoff elapses.
		k.lastPing = now.Add(k.backoff)
		k.logger.Warn("keepalive rate limited, backing off",
			zap.Duration("backoff", k.backoff))
	} else if !resp.OK() {
		k.logger.Warn("keepalive ping returned non-success status",
			zap.Int("status", resp.StatusCode))
	}

	return k.status, nil
}

// begin claims the next ping slot. It reports false inside the throttle
// window.
func (k *KeepAlive) begin() (time.Time, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()

	now := k.clock.Now()
	if !k.lastPing.IsZero() && now.Sub(k.lastPing) < k.minInterval {
		return now, false
	}

	k.lastPing = now
	k.status.LastPing = now
	k.status.Pings++

	return now, true
}

func (k *KeepAlive) pingFallbacks(ctx context.Context, cause error) (KeepAliveStatus, error) {
	lastErr := cause

	for _, path := range k.fallbacks {
		resp, err := k.send(ctx, path, min(k.timeout, DefaultFallbackTimeout))
		if err != nil {
			lastErr = err

			continue
		}

		if resp.OK() {
			k.mu.Lock()
			defer k.mu.Unlock()

			k.record(path, resp)
			k.logger.Debug("keepalive fallback ping succeeded", zap.String("endpoint", path))

			return k.status, nil
		}
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	k.status.Reachable = false
	k.status.RateLimited = false
	k.status.StatusCode = 0
	k.status.Endpoint = ""
	k.status.Error = lastErr.Error()

	return k.status, fmt.Errorf("lendguard: keepalive: %w", lastErr)
}

func (k *KeepAlive) send(ctx context.Context, path string, timeout time.Duration) (*Response, error) {
	if timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	resp, err := k.transport.Send(ctx, NewRequest(http.MethodGet, path, nil))
	if err == nil && resp == nil {
		err = errNoResponse
	}

	return resp, err //nolint:wrapcheck // wrapped by Ping
}

// record stores the outcome of a ping. The caller holds k.mu.
func (k *KeepAlive) record(path string, resp *Response) {
	k.status.Endpoint = path
	k.status.StatusCode = resp.StatusCode
	k.status.Error = ""
	k.status.Reachable = resp.StatusCode > 0 && resp.StatusCode < http.StatusInternalServerError
	k.status.RateLimited = resp.StatusCode == http.StatusTooManyRequests

	if resp.OK() {
		k.status.LastSuccess = k.status.LastPing
	}
}

// Run pings immediately and then once per interval until ctx is done. It
// always returns the context error.
func (k *KeepAlive) Run(ctx context.Context) error {
	k.logger.Info("keepalive started", zap.Duration("interval", k.interval))
	defer k.logger.Info("keepalive stopped")

	for {
		if _, err := k.Ping(ctx); err != nil && ctx.Err() == nil {
			k.logger.Debug("keepalive ping", zap.Error(err))
		}

		if err := sleep(ctx, k.clock, k.interval); err != nil {
			return err
		}
	}
}

// HealthBaseURL strips a trailing "/api" segment so the pinger can address
// the backend origin.
func HealthBaseURL(base string) string {
	base = strings.TrimRight(base, "/")

	return strings.TrimSuffix(base, "/api")
}
