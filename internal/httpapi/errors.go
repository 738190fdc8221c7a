package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"triaged/internal/manager"
	"triaged/internal/session"
	"triaged/pkg/types"
)

// errBadRequest marks client input errors raised by the handlers themselves.
var errBadRequest = errors.New("bad request")

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case session.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, errBadRequest),
		errors.Is(err, session.ErrEmptyMessage),
		manager.IsInvalidSettings(err):
		return http.StatusBadRequest
	case manager.IsTooBusy(err), session.IsFull(err):
		return http.StatusTooManyRequests
	case manager.IsModelNotLoaded(err), manager.IsDependencyUnavailable(err):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes err with the mapped status and counts backpressure.
func writeError(w http.ResponseWriter, err error) int {
	status := statusFor(err)
	switch {
	case session.IsFull(err):
		IncrementBackpressure("sessions")
	case status == http.StatusTooManyRequests:
		IncrementBackpressure("admission")
	}
	writeJSONError(w, status, err.Error())
	return status
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zlog.Error().Err(err).Msg("encode response")
	}
}
