package api

import (
	"errors"
	"net/http"

	"github.com/formatexp/formatexp/pkg/billing"
	"github.com/formatexp/formatexp/pkg/credits"
)

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	if s.checkout == nil {
		writeError(w, http.StatusServiceUnavailable, "billing not available")
		return
	}

	var req checkoutRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	acc, err := s.accounts.GetAccount(ctx, accountID(ctx))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	url, err := s.checkout.CheckoutURL(ctx, acc.ID, acc.Email, credits.Plan(req.Plan), s.successURL, s.cancelURL)
	if err != nil {
		if errors.Is(err, billing.ErrProviderNotConfigured) {
			writeError(w, http.StatusServiceUnavailable, "billing not available")
			return
		}
		s.logger.Error("checkout session creation failed",
			credits.Field{Key: "account_id", Value: acc.ID},
			credits.Field{Key: "error", Value: err.Error()},
		)
		writeError(w, http.StatusBadGateway, "payment service unavailable, try again")
		return
	}
	writeJSON(w, http.StatusOK, checkoutResponse{URL: url})
}
