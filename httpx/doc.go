// Package httpx provides the net/http transport adapter for the lendguard
// pipeline.
//
// Transport turns a [lendguard.Request] into an outgoing HTTP request
// against a base URL and reads the full response so that retries and the
// classifier can inspect it. Every status code is returned as a response;
// only transport failures are returned as errors.
package httpx
