// Package echo provides Echo middleware that rejects generation
// requests whose cost exceeds the account's remaining credits.
package echo

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/formatexp/formatexp/pkg/credits"
)

// AccountIDExtractor extracts the account ID from an Echo context.
// Return empty string if the caller is not authenticated.
type AccountIDExtractor func(c echo.Context) string

// MaterialTypeExtractor extracts the requested material type from an
// Echo context.
type MaterialTypeExtractor func(c echo.Context) credits.MaterialType

// Config holds middleware configuration.
type Config struct {
	// Accounts is the account store (required).
	Accounts credits.AccountStore

	// GetAccountID extracts the account ID from the context (required).
	GetAccountID AccountIDExtractor

	// GetMaterialType extracts the material type from the context
	// (required).
	GetMaterialType MaterialTypeExtractor

	// OnInsufficientCredits is called when the balance cannot cover the
	// estimated cost. If nil, returns 402 JSON with the remaining
	// balance.
	OnInsufficientCredits func(c echo.Context, remaining, cost int) error

	// OnUnauthorized is called when no account ID could be extracted.
	// If nil, returns 401 Unauthorized.
	OnUnauthorized func(c echo.Context) error

	// OnError is called when the account lookup fails.
	// If nil, returns 500 Internal Server Error.
	OnError func(c echo.Context, err error) error
}

// Middleware creates an Echo middleware that pre-checks the credit
// balance before the request reaches the handler. The atomic debit in
// the generation gate remains the real enforcement.
func Middleware(cfg Config) echo.MiddlewareFunc {
	if cfg.Accounts == nil {
		panic("formatexp/middleware/echo: Config.Accounts is required")
	}
	if cfg.GetAccountID == nil {
		panic("formatexp/middleware/echo: Config.GetAccountID is required")
	}
	if cfg.GetMaterialType == nil {
		panic("formatexp/middleware/echo: Config.GetMaterialType is required")
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			accountID := cfg.GetAccountID(c)
			if accountID == "" {
				if cfg.OnUnauthorized != nil {
					return cfg.OnUnauthorized(c)
				}
				return c.JSON(http.StatusUnauthorized, map[string]interface{}{
					"error": "unauthorized",
				})
			}

			acc, err := cfg.Accounts.GetAccount(c.Request().Context(), accountID)
			if err != nil {
				if cfg.OnError != nil {
					return cfg.OnError(c, err)
				}
				return c.JSON(http.StatusInternalServerError, map[string]interface{}{
					"error": "internal error",
				})
			}

			cost := credits.CostFor(cfg.GetMaterialType(c))
			remaining := acc.Remaining()
			if cost > remaining {
				if cfg.OnInsufficientCredits != nil {
					return cfg.OnInsufficientCredits(c, remaining, cost)
				}
				return c.JSON(http.StatusPaymentRequired, map[string]interface{}{
					"error":     "insufficient credits",
					"remaining": remaining,
					"cost":      cost,
				})
			}

			return next(c)
		}
	}
}
