package lendguard

import (
	"context"
	"net/http"
	"net/url"
	"slices"
	"strings"
)

type (
	// Request is one logical call to the backend. Paths are relative to the
	// configured base URL. The body is held in memory so every retry can
	// resend it unchanged.
	Request struct {
		Header http.Header
		// Query is merged with any query written inline in Path.
		Query  url.Values
		Method string
		Path   string
		Body   []byte
	}

	// Response is a fully read backend response.
	Response struct {
		Header     http.Header
		Body       []byte
		StatusCode int
	}

	// Transport sends a single attempt. A non-nil error means no response
	// was received; any status code, including 4xx and 5xx, is returned as a
	// [*Response] with a nil error.
	Transport interface {
		Send(ctx context.Context, req *Request) (*Response, error)
	}

	// TransportFunc adapts an ordinary function into a [Transport].
	TransportFunc func(ctx context.Context, req *Request) (*Response, error)
)

// Send calls the underlying function.
func (f TransportFunc) Send(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// NewRequest builds a request for method and path with an optional body.
// A query written inline ("/loans?page=2") is moved into Query so that
// Target and the cache key see it.
func NewRequest(method, path string, body []byte) *Request {
	path, query := SplitQuery(path, nil)

	return &Request{
		Method: method,
		Path:   path,
		Query:  query,
		Body:   body,
		Header: make(http.Header),
	}
}

// SplitQuery cuts an inline query off path and merges it into query, which
// may be nil. Inline values come after the ones already in query. A query
// that fails to parse keeps the pairs that did parse.
func SplitQuery(path string, query url.Values) (string, url.Values) {
	path, raw, ok := strings.Cut(path, "?")
	if !ok {
		return path, query
	}

	//nolint:errcheck // ParseQuery returns every well-formed pair
	inline, _ := url.ParseQuery(raw)
	if len(inline) == 0 {
		return path, query
	}

	merged := make(url.Values, len(query)+len(inline))
	for k, v := range query {
		merged[k] = slices.Clone(v)
	}

	for k, v := range inline {
		merged[k] = append(merged[k], v...)
	}

	return path, merged
}

// Clone returns a deep copy. Each attempt is sent from a fresh clone so that
// middlewares mutating headers never leak state into the next attempt.
func (r *Request) Clone() *Request {
	c := &Request{
		Method: r.Method,
		Path:   r.Path,
		Body:   slices.Clone(r.Body),
	}

	if r.Header != nil {
		c.Header = r.Header.Clone()
	} else {
		c.Header = make(http.Header)
	}

	if r.Query != nil {
		c.Query = make(url.Values, len(r.Query))
		for k, v := range r.Query {
			c.Query[k] = slices.Clone(v)
		}
	}

	return c
}

// Target returns the path with its encoded query, used as log field and
// cache key component.
func (r *Request) Target() string {
	path, query := SplitQuery(r.Path, r.Query)
	if len(query) == 0 {
		return path
	}

	return path + "?" + query.Encode()
}

// OK reports whether the status code is below 400.
func (r *Response) OK() bool {
	return r.StatusCode > 0 && r.StatusCode < http.StatusBadRequest
}

func (r *Response) clone() *Response {
	c := &Response{
		StatusCode: r.StatusCode,
		Body:       slices.Clone(r.Body),
	}

	if r.Header != nil {
		c.Header = r.Header.Clone()
	}

	return c
}
