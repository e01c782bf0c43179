package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/oshokin/fire-watch/internal/domain/alert"
	"github.com/oshokin/fire-watch/internal/domain/fire"
	"github.com/oshokin/fire-watch/internal/logger"
	"github.com/oshokin/fire-watch/internal/vision"
)

// errBadRequest marks malformed requests.
var errBadRequest = errors.New("bad request")

// errorResponse is the body of every failed call.
type errorResponse struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.WarnKV(r.Context(), "Failed to write response", "error", err)
	}
}

// writeError maps the error to a status code. Internal details are logged,
// not returned.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	detail := err.Error()

	if status == http.StatusInternalServerError {
		logger.ErrorKV(r.Context(), "Request failed", "error", err)

		detail = http.StatusText(status)
	}

	writeJSON(w, r, status, errorResponse{Detail: detail})
}

func statusOf(err error) int {
	var maxBytes *http.MaxBytesError

	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errBadRequest),
		errors.Is(err, fire.ErrInvalidReading),
		errors.Is(err, fire.ErrInvalidThresholds),
		errors.Is(err, alert.ErrInvalidGroup),
		errors.Is(err, vision.ErrEmptyImage):
		return http.StatusBadRequest
	case errors.Is(err, vision.ErrUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
