package lendguard

import (
	"context"
	"net/http"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// Policy table
// ---------------------------------------------------------------------------

func TestDefaultPolicyTable(t *testing.T) {
	tests := []struct {
		class    Classification
		retries  int
		terminal Terminal
	}{
		{RateLimited, 3, TerminalNotify},
		{NetworkUnreachable, 3, TerminalNotify},
		{ServerFault5xx, 2, TerminalNotify},
		{AuthFailure, 0, TerminalTeardown},
		{DatabaseConnectivity, 0, TerminalNotify},
		{ValidationOrServerMessage, 0, TerminalNotify},
		{Unclassified, 0, TerminalSilent},
	}

	p := NewRetryPolicy()

	for _, tt := range tests {
		rule := p.Rule(tt.class)
		if rule.MaxRetries != tt.retries || rule.OnExhaustion != tt.terminal {
			t.Fatalf("%v: rule = %+v, want %d retries, terminal %v", tt.class, rule, tt.retries, tt.terminal)
		}
	}
}

func TestShouldRetryRateLimitedSchedule(t *testing.T) {
	p := NewRetryPolicy()
	rc := &RequestContext{}

	for i, want := range []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second} {
		d := p.ShouldRetry(RateLimited, rc)
		if !d.Retry || d.Delay != want {
			t.Fatalf("retry %d: decision = %+v, want retry after %v", i+1, d, want)
		}
	}

	d := p.ShouldRetry(RateLimited, rc)
	if d.Retry || !d.Exhausted || d.Terminal != TerminalNotify {
		t.Fatalf("fourth failure: decision = %+v, want exhausted notify", d)
	}

	if rc.RateLimitRetries != 3 {
		t.Fatalf("RateLimitRetries = %d, want 3", rc.RateLimitRetries)
	}
}

func TestShouldRetryNonRetriableClasses(t *testing.T) {
	p := NewRetryPolicy()

	for _, c := range []Classification{AuthFailure, DatabaseConnectivity, ValidationOrServerMessage, Unclassified} {
		rc := &RequestContext{}

		d := p.ShouldRetry(c, rc)
		if d.Retry || d.Exhausted {
			t.Fatalf("%v: decision = %+v, want immediate terminal", c, d)
		}
	}
}

func TestShouldRetryBudgetsAreIndependent(t *testing.T) {
	p := NewRetryPolicy()
	rc := &RequestContext{}

	p.ShouldRetry(NetworkUnreachable, rc)
	p.ShouldRetry(NetworkUnreachable, rc)

	// The first server fault starts its own schedule at 2s.
	d := p.ShouldRetry(ServerFault5xx, rc)
	if !d.Retry || d.Delay != 2*time.Second {
		t.Fatalf("first 5xx: decision = %+v, want retry after 2s", d)
	}

	d = p.ShouldRetry(ServerFault5xx, rc)
	if !d.Retry || d.Delay != 4*time.Second {
		t.Fatalf("second 5xx: decision = %+v, want retry after 4s", d)
	}

	d = p.ShouldRetry(ServerFault5xx, rc)
	if d.Retry || !d.Exhausted {
		t.Fatalf("third 5xx: decision = %+v, want exhausted", d)
	}

	if rc.NetworkRetries != 2 || rc.ServerErrorRetries != 2 || rc.RateLimitRetries != 0 {
		t.Fatalf("counters = %+v", rc)
	}

	// The network budget still has one retry left.
	d = p.ShouldRetry(NetworkUnreachable, rc)
	if !d.Retry || d.Delay != 8*time.Second {
		t.Fatalf("third network failure: decision = %+v, want retry after 8s", d)
	}
}

func TestWithRuleAndMaxDelay(t *testing.T) {
	p := NewRetryPolicy(
		WithRule(ServerFault5xx, 4, LinearBackoff(time.Second)),
		WithMaxDelay(3*time.Second),
	)
	rc := &RequestContext{}

	want := []time.Duration{time.Second, 2 * time.Second, 3 * time.Second, 3 * time.Second}
	for i, w := range want {
		d := p.ShouldRetry(ServerFault5xx, rc)
		if !d.Retry || d.Delay != w {
			t.Fatalf("retry %d: decision = %+v, want %v", i+1, d, w)
		}
	}

	if d := p.ShouldRetry(ServerFault5xx, rc); d.Retry {
		t.Fatalf("fifth 5xx: decision = %+v, want terminal", d)
	}
}

func TestWithRuleZeroDisablesRetry(t *testing.T) {
	p := NewRetryPolicy(WithRule(NetworkUnreachable, 0, ExponentialBackoff(time.Second)))

	d := p.ShouldRetry(NetworkUnreachable, &RequestContext{})
	if d.Retry || d.Terminal != TerminalNotify {
		t.Fatalf("decision = %+v, want immediate notify", d)
	}
}

// ---------------------------------------------------------------------------
// RequestContext
// ---------------------------------------------------------------------------

func TestRequestContextIsPerRequest(t *testing.T) {
	req := NewRequest(http.MethodGet, "/loans", nil)
	a := newRequestContext(req, time.Now())
	b := newRequestContext(req, time.Now())

	if a == b || a.ID == b.ID || a.ID == "" {
		t.Fatalf("contexts share identity: %q %q", a.ID, b.ID)
	}

	NewRetryPolicy().ShouldRetry(RateLimited, a)

	if b.Retries(RateLimited) != 0 {
		t.Fatal("retry counter leaked across request contexts")
	}
}

func TestRequestContextRoundTrip(t *testing.T) {
	rc := &RequestContext{ID: "abc"}

	got, ok := RequestContextFrom(WithRequestContext(context.Background(), rc))
	if !ok || got != rc {
		t.Fatalf("RequestContextFrom = %v, %v", got, ok)
	}

	if _, ok := RequestContextFrom(context.Background()); ok {
		t.Fatal("RequestContextFrom(empty) reported ok")
	}
}
