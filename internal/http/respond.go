package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"spendly/internal/core"
)

// envelope is the shape of every API response. Normally exactly one of
// Data and Error is set; a settlement that wrote the debt but not the
// credit carries both.
type envelope struct {
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// writePartial reports an operation that half-succeeded: the caller gets
// what was written plus the error for the part that was not.
func writePartial(w http.ResponseWriter, data any, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(envelope{Data: data, Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Error: msg})
}

// respondError maps domain error kinds onto HTTP statuses. Unknown errors
// are logged and reported as a bare 500 so internals do not leak.
func (s *Server) respondError(ctx context.Context, w http.ResponseWriter, err error) {
	var (
		validation *core.ValidationError
		notFound   *core.NotFoundError
		conflict   *core.ConflictError
		transport  *core.TransportError
	)
	switch {
	case errors.As(err, &validation):
		writeError(w, http.StatusUnprocessableEntity, validation.Msg)
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, notFound.Error())
	case errors.As(err, &conflict):
		writeError(w, http.StatusConflict, conflict.Error())
	case errors.As(err, &transport):
		s.logger.ErrorContext(ctx, "Backend unavailable", "op", transport.Op, "error", transport.Err)
		writeError(w, http.StatusBadGateway, "backend unavailable")
	default:
		s.logger.ErrorContext(ctx, "Request failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	for _, m := range allowed {
		w.Header().Add("Allow", m)
	}
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
