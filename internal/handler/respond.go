package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/sami8890/Sam-pixels/internal/domain"
)

// maxJSONBodyBytes caps request bodies for JSON endpoints.
const maxJSONBodyBytes = 1 << 20

// respondJSON writes v as the JSON response body with the given status.
func respondJSON(w http.ResponseWriter, logger *slog.Logger, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

// decodeJSON decodes the request body into dst, rejecting unknown fields
// and oversized bodies.
func decodeJSON(r *http.Request, dst interface{}) error {
	const op = "handler.decodeJSON"

	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return domain.Invalid(op, "Invalid request body")
	}
	// A request body must contain exactly one JSON value.
	if dec.More() {
		return domain.Invalid(op, "Request body must contain a single JSON object")
	}
	return nil
}
