// Package api provides HTTP API handlers for the Bhangra gesture service.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ayusman/bhangra/internal/logger"
)

// timeFormat is used for every timestamp in API responses.
const timeFormat = time.RFC3339Nano

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			logger.Debugf("write response: %v", err)
		}
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
}
