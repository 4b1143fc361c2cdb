package lendguard

import (
	"context"
	"net/http"
	"sync"
	"testing"
)

// ---------------------------------------------------------------------------
// Test helpers: in-memory backend, scripted transport
// ---------------------------------------------------------------------------

// mapBackend is a [Backend] over a plain map.
type mapBackend struct {
	mu sync.Mutex
	m  map[string]string
}

func newMapBackend() *mapBackend {
	return &mapBackend{m: make(map[string]string)}
}

func (b *mapBackend) Get(key string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.m[key]
	return v, ok
}

func (b *mapBackend) Set(key, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.m[key] = value
	return nil
}

func (b *mapBackend) Delete(key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.m, key)
	return nil
}

func (b *mapBackend) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.m)
}

func newTestStore() (*CredentialStore, *mapBackend, *mapBackend) {
	persistent, ephemeral := newMapBackend(), newMapBackend()
	return NewCredentialStore(persistent, ephemeral), persistent, ephemeral
}

// step is one scripted transport outcome.
type step struct {
	err    error
	status int
	body   string
}

func respond(status int, body string) step { return step{status: status, body: body} }
func fail(err error) step                  { return step{err: err} }

// scriptedTransport replays steps in order, repeating the last one, and
// records every request it receives.
type scriptedTransport struct {
	mu       sync.Mutex
	steps    []step
	requests []*Request
}

func newScriptedTransport(steps ...step) *scriptedTransport {
	return &scriptedTransport{steps: steps}
}

func (s *scriptedTransport) Send(_ context.Context, req *Request) (*Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.steps[min(len(s.requests), len(s.steps)-1)]
	s.requests = append(s.requests, req.Clone())

	if st.err != nil {
		return nil, st.err
	}

	return &Response{
		StatusCode: st.status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       []byte(st.body),
	}, nil
}

func (s *scriptedTransport) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func (s *scriptedTransport) request(i int) *Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[i]
}

// pipeline bundles a client with its observable collaborators.
type pipeline struct {
	client    *Client
	transport *scriptedTransport
	clock     *immediateTestClock
	inbox     *Inbox
	location  *Location
	store     *CredentialStore
}

func newPipeline(t *testing.T, path string, steps ...step) *pipeline {
	t.Helper()

	p := &pipeline{
		transport: newScriptedTransport(steps...),
		clock:     newImmediateTestClock(),
		inbox:     &Inbox{},
		location:  NewLocation(path),
	}
	p.store, _, _ = newTestStore()
	p.client = NewClient(p.transport, p.store,
		WithClock(p.clock),
		WithNotifier(p.inbox),
		WithNavigator(p.location),
	)

	return p
}
