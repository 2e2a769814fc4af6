// Package http provides HTTP middleware that rejects generation
// requests whose cost exceeds the account's remaining credits. The
// check is advisory: the atomic debit inside the generation gate is the
// real enforcement, this middleware just fails cheap requests early.
package http

import (
	"fmt"
	"net/http"

	"github.com/formatexp/formatexp/pkg/credits"
)

// AccountIDExtractor extracts the account ID from an HTTP request.
// Return empty string if the caller is not authenticated.
type AccountIDExtractor func(r *http.Request) string

// MaterialTypeExtractor extracts the requested material type from an
// HTTP request, used to estimate the cost of the operation.
type MaterialTypeExtractor func(r *http.Request) credits.MaterialType

// Config holds middleware configuration.
type Config struct {
	// Accounts is the account store (required).
	Accounts credits.AccountStore

	// GetAccountID extracts the account ID from the request (required).
	GetAccountID AccountIDExtractor

	// GetMaterialType extracts the material type from the request
	// (required).
	GetMaterialType MaterialTypeExtractor

	// OnInsufficientCredits is called when the balance cannot cover the
	// estimated cost. If nil, returns 402 Payment Required.
	OnInsufficientCredits func(w http.ResponseWriter, r *http.Request, remaining, cost int)

	// OnUnauthorized is called when no account ID could be extracted.
	// If nil, returns 401 Unauthorized.
	OnUnauthorized func(w http.ResponseWriter, r *http.Request)

	// OnError is called when the account lookup fails.
	// If nil, returns 500 Internal Server Error.
	OnError func(w http.ResponseWriter, r *http.Request, err error)
}

// Middleware creates an HTTP middleware that pre-checks the credit
// balance before the request reaches the handler.
func Middleware(config Config) func(http.Handler) http.Handler {
	if config.Accounts == nil {
		panic("formatexp/middleware/http: Config.Accounts is required")
	}
	if config.GetAccountID == nil {
		panic("formatexp/middleware/http: Config.GetAccountID is required")
	}
	if config.GetMaterialType == nil {
		panic("formatexp/middleware/http: Config.GetMaterialType is required")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			accountID := config.GetAccountID(r)
			if accountID == "" {
				if config.OnUnauthorized != nil {
					config.OnUnauthorized(w, r)
				} else {
					http.Error(w, "Unauthorized", http.StatusUnauthorized)
				}
				return
			}

			acc, err := config.Accounts.GetAccount(r.Context(), accountID)
			if err != nil {
				if config.OnError != nil {
					config.OnError(w, r, err)
				} else {
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
				return
			}

			cost := credits.CostFor(config.GetMaterialType(r))
			remaining := acc.Remaining()
			if cost > remaining {
				if config.OnInsufficientCredits != nil {
					config.OnInsufficientCredits(w, r, remaining, cost)
				} else {
					msg := fmt.Sprintf("Insufficient credits: need %d, %d remaining", cost, remaining)
					http.Error(w, msg, http.StatusPaymentRequired)
				}
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// HandlerFunc creates an HTTP middleware that pre-checks the credit
// balance (HandlerFunc version).
func HandlerFunc(config Config) func(http.HandlerFunc) http.HandlerFunc {
	middleware := Middleware(config)
	return func(next http.HandlerFunc) http.HandlerFunc {
		return middleware(next).ServeHTTP
	}
}
