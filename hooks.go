package lendguard

import "time"

// Hooks holds optional callbacks for pipeline lifecycle events. All fields
// are nil by default; callers set only the hooks they care about. A Hooks
// value must not be mutated once passed to [WithHooks]: emit methods read
// the fields without synchronisation.
//
// Pattern: Observer. Metrics and tracing subscribe here without the
// pipeline knowing about them.
type Hooks struct {
	OnAttempt         func(rc *RequestContext)
	OnRetry           func(rc *RequestContext, class Classification, retry int, delay time.Duration)
	OnSuccess         func(rc *RequestContext, status int, elapsed time.Duration)
	OnFailure         func(rc *RequestContext, err *RequestError, elapsed time.Duration)
	OnNotify          func(n Notification)
	OnSessionTeardown func(rc *RequestContext, navigated bool)
	OnCacheHit        func(key string)
}

func (h *Hooks) emitAttempt(rc *RequestContext) {
	if h.OnAttempt != nil {
		h.OnAttempt(rc)
	}
}

func (h *Hooks) emitRetry(rc *RequestContext, class Classification, retry int, delay time.Duration) {
	if h.OnRetry != nil {
		h.OnRetry(rc, class, retry, delay)
	}
}

func (h *Hooks) emitSuccess(rc *RequestContext, status int, elapsed time.Duration) {
	if h.OnSuccess != nil {
		h.OnSuccess(rc, status, elapsed)
	}
}

func (h *Hooks) emitFailure(rc *RequestContext, err *RequestError, elapsed time.Duration) {
	if h.OnFailure != nil {
		h.OnFailure(rc, err, elapsed)
	}
}

func (h *Hooks) emitNotify(n Notification) {
	if h.OnNotify != nil {
		h.OnNotify(n)
	}
}

func (h *Hooks) emitSessionTeardown(rc *RequestContext, navigated bool) {
	if h.OnSessionTeardown != nil {
		h.OnSessionTeardown(rc, navigated)
	}
}

func (h *Hooks) emitCacheHit(key string) {
	if h.OnCacheHit != nil {
		h.OnCacheHit(key)
	}
}

// CombineHooks returns hooks calling every non-nil callback of each input
// in order.
func CombineHooks(hs ...Hooks) Hooks {
	var out Hooks

	out.OnAttempt = func(rc *RequestContext) {
		for i := range hs {
			hs[i].emitAttempt(rc)
		}
	}
	out.OnRetry = func(rc *RequestContext, c Classification, n int, d time.Duration) {
		for i := range hs {
			hs[i].emitRetry(rc, c, n, d)
		}
	}
	out.OnSuccess = func(rc *RequestContext, status int, elapsed time.Duration) {
		for i := range hs {
			hs[i].emitSuccess(rc, status, elapsed)
		}
	}
	out.OnFailure = func(rc *RequestContext, err *RequestError, elapsed time.Duration) {
		for i := range hs {
			hs[i].emitFailure(rc, err, elapsed)
		}
	}
	out.OnNotify = func(n Notification) {
		for i := range hs {
			hs[i].emitNotify(n)
		}
	}
	out.OnSessionTeardown = func(rc *RequestContext, navigated bool) {
		for i := range hs {
			hs[i].emitSessionTeardown(rc, navigated)
		}
	}
	out.OnCacheHit = func(key string) {
		for i := range hs {
			hs[i].emitCacheHit(key)
		}
	}

	return out
}
