package httpx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/byte4ever/lendguard"
)

// DefaultTimeout bounds a single attempt when the caller does not supply an
// http.Client.
const DefaultTimeout = lendguard.DefaultTimeout

// Transport sends lendguard requests over net/http.
//
// Pattern: Adapter. Bridges net/http and the lendguard pipeline by
// translating requests and fully buffering responses.
type Transport struct {
	hc   *http.Client
	base *url.URL
}

// NewTransport creates a Transport resolving request paths against
// baseURL. A nil hc gets a client with [DefaultTimeout].
func NewTransport(baseURL string, hc *http.Client) (*Transport, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("httpx: parse base url: %w", err)
	}

	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("httpx: base url %q must be absolute", baseURL)
	}

	if hc == nil {
		hc = &http.Client{Timeout: DefaultTimeout}
	}

	return &Transport{hc: hc, base: u}, nil
}

// NewClient creates a lendguard client sending through a Transport for
// baseURL.
func NewClient(
	baseURL string,
	hc *http.Client,
	store *lendguard.CredentialStore,
	opts ...lendguard.Option,
) (*lendguard.Client, error) {
	t, err := NewTransport(baseURL, hc)
	if err != nil {
		return nil, err
	}

	return lendguard.NewClient(t, store, opts...), nil
}

// NewHTTPClient returns an http.Client with the given timeout, or
// [DefaultTimeout] when timeout is not positive.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &http.Client{Timeout: timeout}
}

// BaseURL returns the base URL requests are resolved against.
func (t *Transport) BaseURL() string { return t.base.String() }

// Send performs one attempt. Any status code yields a response with a nil
// error; the error is non-nil only when no response was received.
func (t *Transport) Send(ctx context.Context, req *lendguard.Request) (*lendguard.Response, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	hreq, err := http.NewRequestWithContext(ctx, req.Method, t.resolve(req), body)
	if err != nil {
		return nil, fmt.Errorf("httpx: build request: %w", err)
	}

	for k, v := range req.Header {
		hreq.Header[k] = v
	}

	if hreq.Header.Get("Content-Type") == "" {
		hreq.Header.Set("Content-Type", "application/json")
	}

	if hreq.Header.Get("Accept") == "" {
		hreq.Header.Set("Accept", "application/json")
	}

	hresp, err := t.hc.Do(hreq)
	if err != nil {
		return nil, err //nolint:wrapcheck // classifier inspects the raw transport error
	}

	defer hresp.Body.Close()

	data, err := io.ReadAll(hresp.Body)
	if err != nil {
		return nil, err //nolint:wrapcheck // a truncated body counts as no response
	}

	return &lendguard.Response{
		StatusCode: hresp.StatusCode,
		Header:     hresp.Header,
		Body:       data,
	}, nil
}

func (t *Transport) resolve(req *lendguard.Request) string {
	path, query := lendguard.SplitQuery(req.Path, req.Query)

	u := *t.base
	u.Path = t.base.Path + "/" + strings.TrimLeft(path, "/")

	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	return u.String()
}
