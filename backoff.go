package lendguard

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// BackoffStrategy determines the delay before a retry.
type BackoffStrategy interface {
	// Delay returns the duration to wait before the given retry. Attempts are
	// 1-indexed: attempt 1 is the delay before the first retry.
	Delay(attempt int) time.Duration
}

// ---------------------------------------------------------------------------
// BackoffFunc adapter
// ---------------------------------------------------------------------------

// BackoffFunc adapts an ordinary function into a [BackoffStrategy].
type BackoffFunc func(attempt int) time.Duration

// Delay calls the underlying function.
func (f BackoffFunc) Delay(attempt int) time.Duration { return f(attempt) }

// ---------------------------------------------------------------------------
// ConstantBackoff
// ---------------------------------------------------------------------------

type constantBackoff struct {
	d time.Duration
}

func (b *constantBackoff) Delay(_ int) time.Duration { return b.d }

// ConstantBackoff returns a [BackoffStrategy] that always waits d.
func ConstantBackoff(d time.Duration) BackoffStrategy {
	return &constantBackoff{d: d}
}

// ---------------------------------------------------------------------------
// ExponentialBackoff
// ---------------------------------------------------------------------------

type exponentialBackoff struct {
	base time.Duration
}

func (b *exponentialBackoff) Delay(attempt int) time.Duration {
	return time.Duration(float64(b.base) * math.Pow(2, float64(attempt)))
}

// ExponentialBackoff returns a [BackoffStrategy] whose delay is
// base * 2^attempt. With a one second base the first three retries wait
// 2s, 4s and 8s.
func ExponentialBackoff(base time.Duration) BackoffStrategy {
	return &exponentialBackoff{base: base}
}

// ---------------------------------------------------------------------------
// LinearBackoff
// ---------------------------------------------------------------------------

type linearBackoff struct {
	step time.Duration
}

func (b *linearBackoff) Delay(attempt int) time.Duration {
	return b.step * time.Duration(attempt)
}

// LinearBackoff returns a [BackoffStrategy] whose delay is step * attempt.
func LinearBackoff(step time.Duration) BackoffStrategy {
	return &linearBackoff{step: step}
}

// ---------------------------------------------------------------------------
// ExponentialJitterBackoff
// ---------------------------------------------------------------------------

type exponentialJitterBackoff struct {
	base time.Duration
}

func (b *exponentialJitterBackoff) Delay(attempt int) time.Duration {
	upper := int64(float64(b.base) * math.Pow(2, float64(attempt)))
	if upper <= 0 {
		return 0
	}

	return time.Duration(rand.Int64N(upper + 1))
}

// ExponentialJitterBackoff returns a [BackoffStrategy] whose delay is drawn
// uniformly from [0, base * 2^attempt]. It spreads retries of many consoles
// hitting the same rate limit.
func ExponentialJitterBackoff(base time.Duration) BackoffStrategy {
	return &exponentialJitterBackoff{base: base}
}

// ParseBackoff maps a strategy name to a [BackoffStrategy]. Supported names
// are "constant", "exponential", "linear" and "exponential_jitter".
//
//nolint:ireturn // returns interface by design for strategy pattern
func ParseBackoff(name string, base time.Duration) (BackoffStrategy, error) {
	switch name {
	case "constant":
		return ConstantBackoff(base), nil
	case "exponential":
		return ExponentialBackoff(base), nil
	case "linear":
		return LinearBackoff(base), nil
	case "exponential_jitter":
		return ExponentialJitterBackoff(base), nil
	default:
		return nil, fmt.Errorf("unknown backoff strategy: %q", name)
	}
}
