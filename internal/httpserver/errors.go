package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"marketchat/internal/domain"
)

// writeJSON is a small helper to send JSON responses.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError maps domain failures to statuses in one place. Anything
// unrecognized is treated as transient infrastructure trouble: logged,
// reported retryable, never swallowed.
func writeError(w http.ResponseWriter, log *slog.Logger, err error) {
	var modErr *domain.ModerationError
	switch {
	case errors.As(err, &modErr):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": modErr.Error(),
			"term":  modErr.Term,
		})
	case errors.Is(err, domain.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrForbidden):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrSellerMismatch):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		log.Error("request failed", "err", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"error":     "temporarily unavailable",
			"retryable": true,
		})
	}
}
