// Package gin provides Gin middleware that rejects generation requests
// whose cost exceeds the account's remaining credits.
package gin

import (
	"net/http"

	gongin "github.com/gin-gonic/gin"

	"github.com/formatexp/formatexp/pkg/credits"
)

// AccountIDExtractor extracts the account ID from a Gin context.
// Return empty string if the caller is not authenticated.
type AccountIDExtractor func(c *gongin.Context) string

// MaterialTypeExtractor extracts the requested material type from a Gin
// context.
type MaterialTypeExtractor func(c *gongin.Context) credits.MaterialType

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
	OnInsufficientCredits func(c *gongin.Context, remaining, cost int)

	// OnUnauthorized is called when no account ID could be extracted.
	// If nil, returns 401 Unauthorized.
	OnUnauthorized func(c *gongin.Context)

	// OnError is called when the account lookup fails.
	// If nil, returns 500 Internal Server Error.
	OnError func(c *gongin.Context, err error)
}

// Middleware creates a Gin middleware that pre-checks the credit
// balance before the request reaches the handler. The atomic debit in
// the generation gate remains the real enforcement.
func Middleware(cfg Config) gongin.HandlerFunc {
	if cfg.Accounts == nil {
		panic("formatexp/middleware/gin: Config.Accounts is required")
	}
	if cfg.GetAccountID == nil {
		panic("formatexp/middleware/gin: Config.GetAccountID is required")
	}
	if cfg.GetMaterialType == nil {
		panic("formatexp/middleware/gin: Config.GetMaterialType is required")
	}

	return func(c *gongin.Context) {
		accountID := cfg.GetAccountID(c)
		if accountID == "" {
			if cfg.OnUnauthorized != nil {
				cfg.OnUnauthorized(c)
			} else {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gongin.H{
					"error": "unauthorized",
				})
			}
			return
		}

		acc, err := cfg.Accounts.GetAccount(c.Request.Context(), accountID)
		if err != nil {
			if cfg.OnError != nil {
				cfg.OnError(c, err)
			} else {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gongin.H{
					"error": "internal error",
				})
			}
			return
		}

		cost := credits.CostFor(cfg.GetMaterialType(c))
		remaining := acc.Remaining()
		if cost > remaining {
			if cfg.OnInsufficientCredits != nil {
				cfg.OnInsufficientCredits(c, remaining, cost)
			} else {
				c.AbortWithStatusJSON(http.StatusPaymentRequired, gongin.H{
					"error":     "insufficient credits",
					"remaining": remaining,
					"cost":      cost,
				})
			}
			return
		}

		c.Next()
	}
}

// FromHeader returns an AccountIDExtractor that reads the account ID
// from a request header.
func FromHeader(name string) AccountIDExtractor {
	return func(c *gongin.Context) string {
		return c.GetHeader(name)
	}
}

// FromContextKey returns an AccountIDExtractor that reads the account
// ID from the Gin context, set by an upstream auth middleware.
func FromContextKey(key string) AccountIDExtractor {
	return func(c *gongin.Context) string {
		return c.GetString(key)
	}
}

// FixedMaterialType returns a MaterialTypeExtractor that always returns
// the same type.
func FixedMaterialType(t credits.MaterialType) MaterialTypeExtractor {
	return func(c *gongin.Context) credits.MaterialType {
		return t
	}
}

// TypeFromQuery returns a MaterialTypeExtractor that reads the material
// type from a query parameter.
func TypeFromQuery(name string) MaterialTypeExtractor {
	return func(c *gongin.Context) credits.MaterialType {
		return credits.MaterialType(c.Query(name))
	}
}
