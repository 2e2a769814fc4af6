package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/formatexp/formatexp/pkg/auth"
	"github.com/formatexp/formatexp/pkg/credits"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	acc := &credits.Account{
		ID:                 uuid.NewString(),
		Name:               req.Name,
		Email:              auth.NormalizeEmail(req.Email),
		PasswordHash:       hash,
		Role:               req.Role,
		Center:             req.Center,
		Plan:               credits.PlanPersonal,
		SubscriptionStatus: credits.SubscriptionNone,
	}
	if err := s.accounts.CreateAccount(r.Context(), acc); err != nil {
		if errors.Is(err, credits.ErrEmailTaken) {
			writeError(w, http.StatusConflict, "email already registered")
			return
		}
		s.writeDomainError(w, err)
		return
	}

	token, err := s.tokens.Sign(acc.ID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.logger.Info("account registered",
		credits.Field{Key: "account_id", Value: acc.ID},
	)
	writeJSON(w, http.StatusCreated, authResponse{
		Token:   token,
		Account: toAccountResponse(acc),
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	acc, err := s.accounts.GetAccountByEmail(r.Context(), auth.NormalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, credits.ErrAccountNotFound) {
			writeError(w, http.StatusNotFound, "no account with that email")
			return
		}
		s.writeDomainError(w, err)
		return
	}

	if !auth.CheckPassword(acc.PasswordHash, req.Password) {
		writeError(w, http.StatusUnauthorized, "wrong password")
		return
	}

	token, err := s.tokens.Sign(acc.ID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, authResponse{
		Token:   token,
		Account: toAccountResponse(acc),
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	acc, err := s.accounts.GetAccount(r.Context(), accountID(r.Context()))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponse(acc))
}
