package api

import (
	"net/http"
	"strconv"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/okian/tackle/pkg/metrics"
)

// MetricsMiddleware records request counts and latency for endpoint, and
// classifies 4xx and 5xx answers into the error metrics.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := responseStatus(ww.Status(), r)
		code := strconv.Itoa(status)
		ms := float64(time.Since(start).Milliseconds())
		metrics.RecordHTTPRequest(endpoint, r.Method, code)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, code, ms)

		if status < http.StatusBadRequest {
			return
		}
		kind, severity := classifyStatus(status)
		metrics.RecordErrorByEndpoint(endpoint, r.Method, kind)
		metrics.RecordErrorByType(kind, severity)
		metrics.RecordErrorLatency("http", kind, ms)
	}
}

// responseStatus fills in the status the wrapper never saw: a hijacked
// websocket upgrade, or a handler that wrote nothing.
func responseStatus(status int, r *http.Request) int {
	if status != 0 {
		return status
	}
	if websocket.IsWebSocketUpgrade(r) {
		return http.StatusSwitchingProtocols
	}
	return http.StatusOK
}

// classifyStatus maps an error status to its metric type and severity.
func classifyStatus(status int) (kind, severity string) {
	switch {
	case status == http.StatusServiceUnavailable:
		return "unavailable", "high"
	case status >= http.StatusInternalServerError:
		return "server_error", "high"
	case status == http.StatusUnprocessableEntity:
		return "unprocessable", "medium"
	case status == http.StatusNotFound:
		return "not_found", "medium"
	case status == http.StatusRequestEntityTooLarge:
		return "too_large", "low"
	default:
		return "client_error", "medium"
	}
}
