package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"cardpulse/internal/models"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// writeError maps domain errors onto HTTP statuses with a structured body.
func writeError(w http.ResponseWriter, err error) {
	kind, status := classify(err)
	if status >= 500 {
		slog.Error("Request failed", "kind", kind, "error", err)
	}
	writeJSON(w, status, errorBody{Error: errorDetail{Kind: kind, Message: err.Error()}})
}

func classify(err error) (string, int) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return "not_found", http.StatusNotFound
	case errors.Is(err, models.ErrInvalidArgument):
		return "invalid_argument", http.StatusBadRequest
	case errors.Is(err, models.ErrUnsupportedPlatform):
		return "unsupported_platform", http.StatusBadRequest
	case errors.Is(err, models.ErrResolution):
		return "resolution_failed", http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrAdapterTimeout):
		return "adapter_timeout", http.StatusGatewayTimeout
	}
	return "internal", http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
