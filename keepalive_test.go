package lendguard

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"
)

var errRefused = errors.New("connection refused")

func TestPingHealthy(t *testing.T) {
	clock := newImmediateTestClock()
	tr := newScriptedTransport(respond(http.StatusOK, `{"status":"ok"}`))
	k := NewKeepAlive(tr, PingClock(clock))

	status, err := k.Ping(context.Background())
	if err != nil {
		t.Fatalf("Ping() error = %v", err)
	}

	if !status.Reachable || status.Endpoint != HealthPath || status.StatusCode != 200 || status.Pings != 1 {
		t.Fatalf("status = %+v", status)
	}

	if !status.LastSuccess.Equal(clock.Now()) {
		t.Fatalf("LastSuccess = %v", status.LastSuccess)
	}

	if tr.request(0).Method != http.MethodGet || tr.request(0).Path != HealthPath {
		t.Fatalf("ping sent %s %s", tr.request(0).Method, tr.request(0).Path)
	}
}

func TestPingThrottled(t *testing.T) {
	clock := newImmediateTestClock()
	tr := newScriptedTransport(respond(http.StatusOK, ``))
	k := NewKeepAlive(tr, PingClock(clock))

	_, _ = k.Ping(context.Background())

	clock.advance(30 * time.Second)

	if _, err := k.Ping(context.Background()); !errors.Is(err, ErrPingSkipped) {
		t.Fatalf("second Ping() error = %v, want ErrPingSkipped", err)
	}

	clock.advance(30 * time.Second)

	if _, err := k.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() after the window error = %v", err)
	}

	if tr.calls() != 2 {
		t.Fatalf("calls = %d, want 2", tr.calls())
	}
}

func TestPingRateLimitedBacksOff(t *testing.T) {
	clock := newImmediateTestClock()
	tr := newScriptedTransport(respond(http.StatusTooManyRequests, ``), respond(http.StatusOK, ``))
	k := NewKeepAlive(tr, PingClock(clock))

	status, err := k.Ping(context.Background())
	if err != nil || !status.RateLimited || !status.Reachable || !status.LastSuccess.IsZero() {
		t.Fatalf("Ping() = %+v, %v", status, err)
	}

	clock.advance(5 * time.Minute)

	if _, err = k.Ping(context.Background()); !errors.Is(err, ErrPingSkipped) {
		t.Fatalf("Ping() inside backoff error = %v", err)
	}

	clock.advance(DefaultMinPingInterval)

	if status, err = k.Ping(context.Background()); err != nil || status.RateLimited {
		t.Fatalf("Ping() after backoff = %+v, %v", status, err)
	}
}

func TestPingFallsBackOnTransportError(t *testing.T) {
	tr := newScriptedTransport(fail(errRefused), respond(http.StatusOK, ``))
	k := NewKeepAlive(tr, PingClock(newImmediateTestClock()))

	status, err := k.Ping(context.Background())
	if err != nil || !status.Reachable || status.Endpoint != "/ping" {
		t.Fatalf("Ping() = %+v, %v", status, err)
	}

	if tr.request(1).Path != "/ping" {
		t.Fatalf("fallback path = %q", tr.request(1).Path)
	}
}

func TestPingAllEndpointsUnreachable(t *testing.T) {
	tr := newScriptedTransport(fail(errRefused))
	k := NewKeepAlive(tr, PingClock(newImmediateTestClock()))

	status, err := k.Ping(context.Background())
	if !errors.Is(err, errRefused) {
		t.Fatalf("Ping() error = %v", err)
	}

	if status.Reachable || status.Error != errRefused.Error() {
		t.Fatalf("status = %+v", status)
	}

	if tr.calls() != 3 {
		t.Fatalf("calls = %d, want health + 2 fallbacks", tr.calls())
	}
}

func TestPingServerErrorIsUnreachable(t *testing.T) {
	tr := newScriptedTransport(respond(http.StatusBadGateway, `Bad Gateway`))
	k := NewKeepAlive(tr, PingClock(newImmediateTestClock()))

	status, err := k.Ping(context.Background())
	if err != nil || status.Reachable || status.StatusCode != http.StatusBadGateway {
		t.Fatalf("Ping() = %+v, %v", status, err)
	}

	if tr.calls() != 1 {
		t.Fatal("fallbacks tried although the health endpoint answered")
	}
}

func TestStatusDoesNotWaitForPingInFlight(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})

	tr := TransportFunc(func(_ context.Context, _ *Request) (*Response, error) {
		close(entered)
		<-release

		return &Response{StatusCode: http.StatusOK}, nil
	})

	k := NewKeepAlive(tr, PingClock(newImmediateTestClock()))

	done := make(chan error, 1)
	go func() {
		_, err := k.Ping(context.Background())
		done <- err
	}()

	<-entered

	status := make(chan KeepAliveStatus, 1)
	go func() { status <- k.Status() }()

	select {
	case s := <-status:
		if s.Pings != 1 || s.Reachable {
			t.Fatalf("Status() during ping = %+v", s)
		}
	case <-time.After(time.Second):
		t.Fatal("Status() blocked while a ping was in flight")
	}

	if _, err := k.Ping(context.Background()); !errors.Is(err, ErrPingSkipped) {
		t.Fatalf("concurrent Ping() error = %v, want ErrPingSkipped", err)
	}

	close(release)

	if err := <-done; err != nil {
		t.Fatalf("Ping() error = %v", err)
	}

	if !k.Status().Reachable {
		t.Fatal("Status() after ping is not reachable")
	}
}

func TestKeepAliveRunUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var pings atomic.Int32

	tr := TransportFunc(func(_ context.Context, _ *Request) (*Response, error) {
		if pings.Add(1) == 3 {
			cancel()
		}

		return &Response{StatusCode: http.StatusOK}, nil
	})

	clock := newImmediateTestClock()
	k := NewKeepAlive(tr, PingClock(clock), PingInterval(2*time.Minute))

	if err := k.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}

	if pings.Load() < 3 {
		t.Fatalf("pings = %d, want at least 3", pings.Load())
	}

	for _, d := range clock.getDurations() {
		if d != 2*time.Minute {
			t.Fatalf("Run() slept %v, want 2m", d)
		}
	}
}

func TestHealthBaseURL(t *testing.T) {
	tests := map[string]string{
		"https://api.example.org/api":  "https://api.example.org",
		"https://api.example.org/api/": "https://api.example.org",
		"http://localhost:3000":        "http://localhost:3000",
		"http://localhost:3000/v2/":    "http://localhost:3000/v2",
	}

	for in, want := range tests {
		if got := HealthBaseURL(in); got != want {
			t.Fatalf("HealthBaseURL(%q) = %q, want %q", in, got, want)
		}
	}
}
