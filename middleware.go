package lendguard

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Pattern: Decorator. Each middleware wraps the next; the chain runs once
// per attempt, in front of the [Transport].

type (
	// Handler sends one attempt.
	Handler func(ctx context.Context, req *Request) (*Response, error)

	// Middleware wraps a [Handler] with additional behavior.
	Middleware func(next Handler) Handler
)

// Chain composes middlewares into one. The first middleware is the
// outermost: Chain(a, b, c) produces a(b(c(next))). Chain() is the identity.
func Chain(middlewares ...Middleware) Middleware {
	return func(next Handler) Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}

		return next
	}
}

// Authorize attaches the stored access token as a bearer credential. The
// store is read on every attempt, so a retry picks up a credential rotated
// while the request was backing off.
func Authorize(store *CredentialStore) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, req *Request) (*Response, error) {
			if cred, ok := store.Get(); ok {
				req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
			}

			return next(ctx, req)
		}
	}
}

// RequestID sets X-Request-ID from the [RequestContext] in ctx. Every
// attempt of a logical request carries the same id.
func RequestID() Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, req *Request) (*Response, error) {
			if rc, ok := RequestContextFrom(ctx); ok && req.Header.Get("X-Request-ID") == "" {
				req.Header.Set("X-Request-ID", rc.ID)
			}

			return next(ctx, req)
		}
	}
}

// LogAttempts logs each attempt at debug level and warns when one takes
// longer than slow. A zero slow disables the warning.
func LogAttempts(logger *zap.Logger, clock Clock, slow time.Duration) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, req *Request) (*Response, error) {
			start := clock.Now()
			resp, err := next(ctx, req)
			elapsed := clock.Since(start)

			fields := []zap.Field{
				zap.String("method", req.Method),
				zap.String("target", req.Target()),
				zap.Duration("elapsed", elapsed),
			}
			if rc, ok := RequestContextFrom(ctx); ok {
				fields = append(fields, zap.String("request_id", rc.ID), zap.Int("attempt", rc.Attempts))
			}

			if resp != nil {
				fields = append(fields, zap.Int("status", resp.StatusCode))
			}

			if err != nil {
				fields = append(fields, zap.Error(err))
			}

			if slow > 0 && elapsed > slow {
				logger.Warn("slow api request", fields...)
			} else {
				logger.Debug("api request", fields...)
			}

			return resp, err
		}
	}
}
