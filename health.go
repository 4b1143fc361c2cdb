package lendguard

import (
	"net/http"

	json "github.com/goccy/go-json"
)

// HealthHandler returns an [http.Handler] reporting the last keep-alive
// outcome. It responds with 200 OK when the backend was reachable on the
// last ping and 503 Service Unavailable otherwise, including before the
// first ping. The body is always a JSON-encoded [KeepAliveStatus].
func HealthHandler(k *KeepAlive) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		status := k.Status()

		writer.Header().Set("Content-Type", "application/json")

		if status.Reachable {
			writer.WriteHeader(http.StatusOK)
		} else {
			writer.WriteHeader(http.StatusServiceUnavailable)
		}

		//nolint:errcheck // best-effort JSON encoding to HTTP response
		_ = json.NewEncoder(writer).Encode(status)
	})
}
