package lendguard

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// DefaultSlowThreshold is the attempt duration above which a warning is
// logged.
const DefaultSlowThreshold = time.Second

//nolint:gochecknoglobals // sentinel for misbehaving transports
var errNoResponse = errors.New("transport returned neither response nor error")

// ---------------------------------------------------------------------------
// Client: the request pipeline
// ---------------------------------------------------------------------------

// Client is the pipeline every call site goes through. It is safe for
// concurrent use; concurrent logical requests share nothing but the
// credential store.
type Client struct {
	transport  Transport
	notifier   Notifier
	cache      Cache
	clock      Clock
	store      *CredentialStore
	classifier *Classifier
	policy     *RetryPolicy
	supervisor *SessionSupervisor
	logger     *zap.Logger
	handler    Handler
	hooks      Hooks
	cacheTTL   time.Duration
}

// clientSetup collects options before the client is wired.
type clientSetup struct {
	notifier    Notifier
	nav         Navigator
	cache       Cache
	clock       Clock
	classifier  *Classifier
	policy      *RetryPolicy
	logger      *zap.Logger
	loginPath   string
	middlewares []Middleware
	hooks       Hooks
	cacheTTL    time.Duration
	slow        time.Duration
}

// Option configures a [Client].
type Option func(*clientSetup)

// WithClock sets the clock used for backoff sleeps and timings.
func WithClock(c Clock) Option {
	return func(s *clientSetup) { s.clock = c }
}

// WithHooks sets lifecycle hooks.
func WithHooks(h Hooks) Option {
	return func(s *clientSetup) { s.hooks = h }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(s *clientSetup) { s.logger = l }
}

// WithNotifier sets the notification sink. The default logs notifications
// through the client logger.
func WithNotifier(n Notifier) Option {
	return func(s *clientSetup) { s.notifier = n }
}

// WithNavigator sets the browsing context redirected on session teardown.
func WithNavigator(nav Navigator) Option {
	return func(s *clientSetup) { s.nav = nav }
}

// WithLoginPath sets the login boundary. Defaults to [DefaultLoginPath].
func WithLoginPath(p string) Option {
	return func(s *clientSetup) { s.loginPath = p }
}

// WithClassifier replaces the default classifier.
func WithClassifier(c *Classifier) Option {
	return func(s *clientSetup) { s.classifier = c }
}

// WithRetryPolicy replaces the default policy table.
func WithRetryPolicy(p *RetryPolicy) Option {
	return func(s *clientSetup) { s.policy = p }
}

// WithCache enables caching of successful GET responses for ttl.
func WithCache(c Cache, ttl time.Duration) Option {
	return func(s *clientSetup) {
		s.cache = c
		s.cacheTTL = ttl
	}
}

// WithSlowThreshold sets the duration above which an attempt is logged as
// slow. Zero disables the warning.
func WithSlowThreshold(d time.Duration) Option {
	return func(s *clientSetup) { s.slow = d }
}

// WithMiddleware appends middlewares after the built-in ones, closest to the
// transport.
func WithMiddleware(mws ...Middleware) Option {
	return func(s *clientSetup) { s.middlewares = append(s.middlewares, mws...) }
}

// NewClient wires a pipeline in front of transport, authenticating with the
// credentials held by store.
func NewClient(transport Transport, store *CredentialStore, opts ...Option) *Client {
	setup := clientSetup{slow: DefaultSlowThreshold}
	for _, opt := range opts {
		opt(&setup)
	}

	if setup.clock == nil {
		setup.clock = RealClock{}
	}

	if setup.logger == nil {
		setup.logger = zap.NewNop()
	}

	if setup.notifier == nil {
		setup.notifier = LogNotifier(setup.logger)
	}

	if setup.classifier == nil {
		setup.classifier = DefaultClassifier()
	}

	if setup.policy == nil {
		setup.policy = NewRetryPolicy()
	}

	c := &Client{
		transport:  transport,
		notifier:   setup.notifier,
		cache:      setup.cache,
		cacheTTL:   setup.cacheTTL,
		clock:      setup.clock,
		store:      store,
		classifier: setup.classifier,
		policy:     setup.policy,
		logger:     setup.logger,
		hooks:      setup.hooks,
	}

	c.supervisor = NewSessionSupervisor(store, setup.nav, setup.loginPath)
	c.supervisor.onClear = c.FlushCache

	mws := append([]Middleware{
		RequestID(),
		Authorize(store),
		LogAttempts(setup.logger, setup.clock, setup.slow),
	}, setup.middlewares...)
	c.handler = Chain(mws...)(transport.Send)

	return c
}

// Store returns the credential store.
func (c *Client) Store() *CredentialStore { return c.store }

// Supervisor returns the session supervisor.
func (c *Client) Supervisor() *SessionSupervisor { return c.supervisor }

// FlushCache drops every cached response. It is a no-op without a cache.
func (c *Client) FlushCache() {
	if c.cache != nil {
		c.cache.Flush()
	}
}

// Do sends req through the pipeline. Successful responses are returned
// unchanged. Retriable failures are retried sequentially within their
// budget; every terminal failure returns a [*RequestError] after the session
// was torn down (auth failures) or the user was notified (all other
// non-silent failures).
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	rc := newRequestContext(req, c.clock.Now())
	ctx = WithRequestContext(ctx, rc)

	key, cacheable := "", false
	if c.cache != nil {
		key, cacheable = CacheKey(req)
	}

	if cacheable {
		if resp, ok := c.cache.Get(key); ok {
			c.hooks.emitCacheHit(key)
			return resp.clone(), nil
		}
	}

	for {
		rc.Attempts++
		c.hooks.emitAttempt(rc)

		resp, err := c.handler(ctx, req.Clone())
		if err == nil && resp != nil && resp.OK() {
			if cacheable && resp.StatusCode == http.StatusOK {
				c.cache.Set(key, resp.clone(), c.cacheTTL)
			}

			c.hooks.emitSuccess(rc, resp.StatusCode, c.clock.Since(rc.Started))

			return resp, nil
		}

		failure := c.failureOf(req, resp, err)
		class := c.classifier.Classify(failure)
		decision := c.policy.ShouldRetry(class, rc)

		if !decision.Retry {
			return nil, c.terminate(rc, class, decision, failure, resp)
		}

		retry := rc.Retries(class)
		c.logger.Warn("retrying api request",
			zap.String("request_id", rc.ID),
			zap.String("method", req.Method),
			zap.String("path", req.Path),
			zap.Stringer("class", class),
			zap.Int("retry", retry),
			zap.Int("budget", c.policy.Rule(class).MaxRetries),
			zap.Duration("delay", decision.Delay),
		)
		c.hooks.emitRetry(rc, class, retry, decision.Delay)

		if serr := sleep(ctx, c.clock, decision.Delay); serr != nil {
			c.logger.Info("api request abandoned during backoff",
				zap.String("request_id", rc.ID),
				zap.Error(serr),
			)

			rerr := c.newError(rc, Unclassified, failure, resp)
			rerr.Err = serr
			c.hooks.emitFailure(rc, rerr, c.clock.Since(rc.Started))

			return nil, rerr
		}
	}
}

// Get sends a GET request.
func (c *Client) Get(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, NewRequest(http.MethodGet, path, nil))
}

// Post sends a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body []byte) (*Response, error) {
	return c.Do(ctx, NewRequest(http.MethodPost, path, body))
}

// Put sends a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body []byte) (*Response, error) {
	return c.Do(ctx, NewRequest(http.MethodPut, path, body))
}

// Patch sends a PATCH request with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body []byte) (*Response, error) {
	return c.Do(ctx, NewRequest(http.MethodPatch, path, body))
}

// Delete sends a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, NewRequest(http.MethodDelete, path, nil))
}

func (c *Client) failureOf(req *Request, resp *Response, err error) Failure {
	f := Failure{Path: req.Path, Err: err}

	if resp != nil {
		f.StatusCode = resp.StatusCode
		f.Message, _ = messageOf(resp.Body)
	} else if err == nil {
		f.Err = errNoResponse
	}

	return f
}

func (c *Client) newError(rc *RequestContext, class Classification, f Failure, resp *Response) *RequestError {
	return &RequestError{
		Method:     rc.Method,
		Path:       rc.Path,
		StatusCode: f.StatusCode,
		Message:    f.Message,
		Class:      class,
		Attempts:   rc.Attempts,
		Response:   resp,
		Err:        f.Err,
	}
}

// terminate applies the terminal action of the policy table and builds the
// error returned to the caller.
func (c *Client) terminate(rc *RequestContext, class Classification, d Decision, f Failure, resp *Response) *RequestError {
	rerr := c.newError(rc, class, f, resp)

	fields := []zap.Field{
		zap.String("request_id", rc.ID),
		zap.String("method", rc.Method),
		zap.String("path", rc.Path),
		zap.Stringer("class", class),
		zap.Int("status", f.StatusCode),
		zap.Int("attempts", rc.Attempts),
	}

	switch d.Terminal {
	case TerminalTeardown:
		rerr.sentinel = ErrSessionExpired

		navigated, err := c.supervisor.Teardown()
		if err != nil {
			c.logger.Error("session teardown incomplete", append(fields, zap.Error(err))...)
		}

		c.logger.Info("session expired", append(fields, zap.Bool("navigated", navigated))...)
		c.hooks.emitSessionTeardown(rc, navigated)

	case TerminalNotify:
		if d.Exhausted {
			rerr.sentinel = ErrRetriesExhausted
		}

		if class == DatabaseConnectivity {
			fields = append(fields, zap.String("reason", string(c.classifier.Reason(f.Message))))
		}

		if f.Err != nil {
			fields = append(fields, zap.Error(f.Err))
		}

		c.logger.Error("api request failed", fields...)

		if n, ok := notificationFor(class, f.Message); ok {
			n.RequestID = rc.ID
			c.notifier.Notify(n)
			c.hooks.emitNotify(n)
		}

	default:
		c.logger.Debug("api request rejected", fields...)
	}

	c.hooks.emitFailure(rc, rerr, c.clock.Since(rc.Started))

	return rerr
}
