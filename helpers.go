package lendguard

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	json "github.com/goccy/go-json"
)

// GetJSON sends a GET for path with query and decodes the envelope.
func GetJSON[T any](ctx context.Context, c *Client, path string, query url.Values) (Envelope[T], error) {
	req := NewRequest(http.MethodGet, path, nil)
	req.Query = query

	resp, err := c.Do(ctx, req)
	if err != nil {
		return Envelope[T]{}, err
	}

	return DecodeEnvelope[T](resp)
}

// SendJSON marshals body, sends it with method to path and decodes the
// envelope. A nil body sends no payload.
func SendJSON[T any](ctx context.Context, c *Client, method, path string, body any) (Envelope[T], error) {
	var payload []byte

	if body != nil {
		var err error

		payload, err = json.Marshal(body)
		if err != nil {
			return Envelope[T]{}, fmt.Errorf("lendguard: encode %s %s: %w", method, path, err)
		}
	}

	resp, err := c.Do(ctx, NewRequest(method, path, payload))
	if err != nil {
		return Envelope[T]{}, err
	}

	return DecodeEnvelope[T](resp)
}
