package httputil

import (
	"encoding/json"
	"net/http"
)

// Body is the single outward JSON shape used by the gateway. Success and
// error responses alike carry one user-facing string; the correlation ID
// travels in the X-Request-ID header, never in the body.
type Body struct {
	Response string `json:"response"`
}

// WriteMessage writes a {"response": message} body with the given status.
func WriteMessage(w http.ResponseWriter, requestID string, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if requestID != "" {
		w.Header().Set("X-Request-ID", requestID)
	}
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(Body{Response: message})
}

// WriteJSON writes an arbitrary JSON payload with the given status.
func WriteJSON(w http.ResponseWriter, requestID string, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if requestID != "" {
		w.Header().Set("X-Request-ID", requestID)
	}
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}
