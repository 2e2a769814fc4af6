package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/formatexp/formatexp/pkg/credits"
)

type errorResponse struct {
	Error     string `json:"error"`
	Remaining *int   `json:"remaining,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeDomainError maps a domain error to its HTTP status. The
// insufficient-credits payload carries the remaining balance so the
// client can render an upgrade prompt.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	var insufficient *credits.InsufficientCreditsError
	var invalid *credits.InvalidRequestError

	switch {
	case errors.As(err, &insufficient):
		remaining := insufficient.Remaining
		writeJSON(w, http.StatusPaymentRequired, errorResponse{
			Error:     "insufficient credits",
			Remaining: &remaining,
		})
	case errors.As(err, &invalid):
		writeError(w, http.StatusBadRequest, invalid.Reason)
	case errors.Is(err, credits.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, credits.ErrInsufficientCredits):
		writeError(w, http.StatusPaymentRequired, "insufficient credits")
	case errors.Is(err, credits.ErrAccountNotFound):
		writeError(w, http.StatusUnauthorized, "account not found")
	case errors.Is(err, credits.ErrMaterialNotFound):
		writeError(w, http.StatusNotFound, "material not found")
	case errors.Is(err, credits.ErrEmailTaken):
		writeError(w, http.StatusConflict, "email already registered")
	case errors.Is(err, credits.ErrProviderUnavailable):
		writeError(w, http.StatusBadGateway, "generation service unavailable, try again")
	case errors.Is(err, context.Canceled):
		// Client went away; the status code is never seen.
		writeError(w, 499, "request canceled")
	default:
		s.logger.Error("unhandled request error",
			credits.Field{Key: "error", Value: err.Error()},
		)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
