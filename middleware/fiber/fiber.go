// Package fiber provides Fiber middleware that rejects generation
// requests whose cost exceeds the account's remaining credits.
package fiber

import (
	"github.com/gofiber/fiber/v2"

	"github.com/formatexp/formatexp/pkg/credits"
)

// AccountIDExtractor extracts the account ID from a Fiber context.
// Return empty string if the caller is not authenticated.
type AccountIDExtractor func(c *fiber.Ctx) string

// MaterialTypeExtractor extracts the requested material type from a
// Fiber context.
type MaterialTypeExtractor func(c *fiber.Ctx) credits.MaterialType

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
	OnInsufficientCredits func(c *fiber.Ctx, remaining, cost int) error

	// OnUnauthorized is called when no account ID could be extracted.
	// If nil, returns 401 Unauthorized.
	OnUnauthorized func(c *fiber.Ctx) error

	// OnError is called when the account lookup fails.
	// If nil, returns 500 Internal Server Error.
	OnError func(c *fiber.Ctx, err error) error
}

// Middleware creates a Fiber middleware that pre-checks the credit
// balance before the request reaches the handler. The atomic debit in
// the generation gate remains the real enforcement.
func Middleware(cfg Config) fiber.Handler {
	if cfg.Accounts == nil {
		panic("formatexp/middleware/fiber: Config.Accounts is required")
	}
	if cfg.GetAccountID == nil {
		panic("formatexp/middleware/fiber: Config.GetAccountID is required")
	}
	if cfg.GetMaterialType == nil {
		panic("formatexp/middleware/fiber: Config.GetMaterialType is required")
	}

	return func(c *fiber.Ctx) error {
		accountID := cfg.GetAccountID(c)
		if accountID == "" {
			if cfg.OnUnauthorized != nil {
				return cfg.OnUnauthorized(c)
			}
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "unauthorized",
			})
		}

		acc, err := cfg.Accounts.GetAccount(c.UserContext(), accountID)
		if err != nil {
			if cfg.OnError != nil {
				return cfg.OnError(c, err)
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "internal error",
			})
		}

		cost := credits.CostFor(cfg.GetMaterialType(c))
		remaining := acc.Remaining()
		if cost > remaining {
			if cfg.OnInsufficientCredits != nil {
				return cfg.OnInsufficientCredits(c, remaining, cost)
			}
			return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
				"error":     "insufficient credits",
				"remaining": remaining,
				"cost":      cost,
			})
		}

		return c.Next()
	}
}
