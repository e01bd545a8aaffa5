package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/careloop/careloop/internal/team"
)

// maxBodySize is the maximum allowed request body size (1 MB).
const maxBodySize = 1 << 20

// errorEnvelope is the standard error response shape.
type errorEnvelope struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError writes a JSON error response with the given status code.
func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorEnvelope{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// writeJSON writes a JSON response with the given status code and data.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// readJSON decodes the request body into v, enforcing a size limit.
func readJSON(r *http.Request, v interface{}) error {
	lr := io.LimitReader(r.Body, maxBodySize)
	return json.NewDecoder(lr).Decode(v)
}

// writeServiceError maps a team service error onto an HTTP response.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, team.ErrTeamNotFound),
		errors.Is(err, team.ErrUserNotFound),
		errors.Is(err, team.ErrMemberNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, team.ErrNameRequired),
		errors.Is(err, team.ErrPhoneRequired),
		errors.Is(err, team.ErrAddressRequired),
		errors.Is(err, team.ErrEmailRequired),
		errors.Is(err, team.ErrInvalidMemberRole):
		writeError(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())
	case errors.Is(err, team.ErrNotTeamMember):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, team.ErrReloadInProgress):
		writeError(w, http.StatusConflict, "reload_in_progress", err.Error())
	case errors.Is(err, team.ErrNotInitialized):
		writeError(w, http.StatusServiceUnavailable, "not_initialized", err.Error())
	default:
		// Backend call failures, including *backend.StatusError.
		writeError(w, http.StatusBadGateway, "backend_error", err.Error())
	}
}
