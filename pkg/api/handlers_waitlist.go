package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/formatexp/formatexp/pkg/auth"
	"github.com/formatexp/formatexp/pkg/credits"
	"github.com/formatexp/formatexp/pkg/waitlist"
)

func (s *Server) handleWaitlist(w http.ResponseWriter, r *http.Request) {
	if s.waitlist == nil {
		writeError(w, http.StatusServiceUnavailable, "waitlist not available")
		return
	}

	var req waitlistRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	source := req.Source
	if source == "" {
		source = waitlist.DefaultSource
	}
	entry := &waitlist.Entry{
		ID:      uuid.NewString(),
		Name:    req.Name,
		Email:   auth.NormalizeEmail(req.Email),
		Role:    req.Role,
		Center:  req.Center,
		Plan:    req.Plan,
		Consent: req.Consent,
		Source:  source,
	}
	if err := s.waitlist.AddEntry(r.Context(), entry); err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.logger.Info("waitlist signup captured",
		credits.Field{Key: "source", Value: source},
	)
	writeJSON(w, http.StatusCreated, map[string]string{"status": "ok"})
}
