package lendguard

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// RequestContext: per-logical-request retry state
// ---------------------------------------------------------------------------

// RequestContext travels with one logical request across all of its
// attempts. Each retriable classification has its own counter, so a request
// that first hits network failures and then a 5xx does not spend the server
// budget on the network failures. A RequestContext is owned by a single
// [Client.Do] call and is never shared.
type RequestContext struct {
	// Started is when the logical request began.
	Started time.Time
	// ID is a random identifier sent as X-Request-ID on every attempt.
	ID     string
	Method string
	Path   string

	RateLimitRetries   int
	NetworkRetries     int
	ServerErrorRetries int

	// Attempts counts attempts started so far, including the first.
	Attempts int
}

func newRequestContext(req *Request, now time.Time) *RequestContext {
	return &RequestContext{
		ID:      uuid.NewString(),
		Method:  req.Method,
		Path:    req.Path,
		Started: now,
	}
}

// Retries returns the retries already spent on class c.
func (rc *RequestContext) Retries(c Classification) int {
	if p := rc.counter(c); p != nil {
		return *p
	}

	return 0
}

func (rc *RequestContext) counter(c Classification) *int {
	switch c {
	case RateLimited:
		return &rc.RateLimitRetries
	case NetworkUnreachable:
		return &rc.NetworkRetries
	case ServerFault5xx:
		return &rc.ServerErrorRetries
	default:
		return nil
	}
}

type requestContextKey struct{}

// WithRequestContext returns a context carrying rc.
func WithRequestContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey{}, rc)
}

// RequestContextFrom returns the [RequestContext] stored by [Client.Do].
// Middlewares use it to read the request id and attempt number.
func RequestContextFrom(ctx context.Context) (*RequestContext, bool) {
	rc, ok := ctx.Value(requestContextKey{}).(*RequestContext)
	return rc, ok
}

// ---------------------------------------------------------------------------
// RetryPolicy: the policy table
// ---------------------------------------------------------------------------

// Terminal is what the pipeline does when a request stops being retried.
type Terminal int

const (
	// TerminalSilent rejects to the caller without notification.
	TerminalSilent Terminal = iota
	// TerminalNotify surfaces a notification before rejecting.
	TerminalNotify
	// TerminalTeardown ends the session before rejecting.
	TerminalTeardown
)

type (
	// Rule is one row of the policy table.
	Rule struct {
		// Backoff computes the delay before retry n (1-indexed).
		Backoff BackoffStrategy
		// MaxRetries is the retry budget; 0 means never retried.
		MaxRetries int
		// OnExhaustion is applied when the budget is spent or is 0.
		OnExhaustion Terminal
	}

	// Decision is the outcome of [RetryPolicy.ShouldRetry].
	Decision struct {
		Delay    time.Duration
		Terminal Terminal
		Retry    bool
		// Exhausted is true when a retriable class ran out of budget.
		Exhausted bool
	}

	// RetryPolicy maps each [Classification] to a [Rule]. It is read-only
	// once built and safe for concurrent use.
	RetryPolicy struct {
		rules    map[Classification]Rule
		maxDelay time.Duration
	}

	// RetryPolicyOption adjusts a policy built by [NewRetryPolicy].
	RetryPolicyOption func(*RetryPolicy)
)

// DefaultRules returns the console's policy table: 3 retries for rate
// limiting and network failures, 2 for bare 5xx, all with 2^n second
// backoff; everything else is terminal on first failure.
func DefaultRules() map[Classification]Rule {
	backoff := ExponentialBackoff(time.Second)

	return map[Classification]Rule{
		RateLimited:               {MaxRetries: 3, Backoff: backoff, OnExhaustion: TerminalNotify},
		NetworkUnreachable:        {MaxRetries: 3, Backoff: backoff, OnExhaustion: TerminalNotify},
		ServerFault5xx:            {MaxRetries: 2, Backoff: backoff, OnExhaustion: TerminalNotify},
		AuthFailure:               {OnExhaustion: TerminalTeardown},
		DatabaseConnectivity:      {OnExhaustion: TerminalNotify},
		ValidationOrServerMessage: {OnExhaustion: TerminalNotify},
		Unclassified:              {OnExhaustion: TerminalSilent},
	}
}

// WithRule overrides the budget and backoff of a retriable class. Only
// [RateLimited], [NetworkUnreachable] and [ServerFault5xx] carry counters;
// overriding any other class keeps its terminal action and ignores the
// budget.
func WithRule(c Classification, maxRetries int, backoff BackoffStrategy) RetryPolicyOption {
	return func(p *RetryPolicy) {
		r := p.rules[c]
		r.MaxRetries = maxRetries
		r.Backoff = backoff
		p.rules[c] = r
	}
}

// WithMaxDelay caps every backoff delay.
func WithMaxDelay(d time.Duration) RetryPolicyOption {
	return func(p *RetryPolicy) {
		p.maxDelay = d
	}
}

// NewRetryPolicy builds a policy from [DefaultRules] and opts.
func NewRetryPolicy(opts ...RetryPolicyOption) *RetryPolicy {
	p := &RetryPolicy{rules: DefaultRules()}
	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Rule returns the rule for c.
func (p *RetryPolicy) Rule(c Classification) Rule {
	return p.rules[c]
}

// ShouldRetry decides what to do after an attempt failed with class c. When
// it decides to retry it increments the class counter on rc, so the n-th
// retry of a class waits Backoff.Delay(n).
func (p *RetryPolicy) ShouldRetry(c Classification, rc *RequestContext) Decision {
	rule := p.rules[c]

	counter := rc.counter(c)
	if counter == nil || rule.MaxRetries <= 0 || rule.Backoff == nil {
		return Decision{Terminal: rule.OnExhaustion}
	}

	if *counter >= rule.MaxRetries {
		return Decision{Terminal: rule.OnExhaustion, Exhausted: true}
	}

	*counter++

	delay := rule.Backoff.Delay(*counter)
	if p.maxDelay > 0 && delay > p.maxDelay {
		delay = p.maxDelay
	}

	return Decision{Retry: true, Delay: delay}
}
