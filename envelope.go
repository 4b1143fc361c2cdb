package lendguard

import (
	"fmt"

	json "github.com/goccy/go-json"
)

type (
	// Envelope is the uniform wrapper every backend endpoint responds with.
	// Data is opaque to the pipeline; it is nil when the backend omitted it.
	Envelope[T any] struct {
		Data       *T          `json:"data,omitempty"`
		Pagination *Pagination `json:"pagination,omitempty"`
		Message    string      `json:"message"`
		Success    bool        `json:"success"`
	}

	// Pagination accompanies list endpoints.
	Pagination struct {
		Page       int `json:"page"`
		Limit      int `json:"limit"`
		Total      int `json:"total"`
		TotalPages int `json:"totalPages"`
	}

	// messageOnly decodes only the message field of an envelope.
	messageOnly struct {
		Message *string `json:"message"`
	}
)

// DecodeEnvelope decodes the response body into an [Envelope].
func DecodeEnvelope[T any](resp *Response) (Envelope[T], error) {
	var env Envelope[T]
	if resp == nil || len(resp.Body) == 0 {
		return env, fmt.Errorf("lendguard: decode envelope: empty body")
	}

	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return env, fmt.Errorf("lendguard: decode envelope: %w", err)
	}

	return env, nil
}

// messageOf extracts the backend message from a response body. It reports
// false when the body is not a JSON object or carries no non-empty message.
func messageOf(body []byte) (string, bool) {
	if len(body) == 0 {
		return "", false
	}

	var head messageOnly
	if err := json.Unmarshal(body, &head); err != nil {
		return "", false
	}

	if head.Message == nil || *head.Message == "" {
		return "", false
	}

	return *head.Message, true
}
