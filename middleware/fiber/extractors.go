package fiber

import (
	"github.com/gofiber/fiber/v2"

	"github.com/formatexp/formatexp/pkg/credits"
)

// FromHeader returns an AccountIDExtractor that reads the account ID
// from a request header.
func FromHeader(name string) AccountIDExtractor {
	return func(c *fiber.Ctx) string {
		return c.Get(name)
	}
}

// FromLocals returns an AccountIDExtractor that reads the account ID
// from the Fiber locals, set by an upstream auth middleware.
func FromLocals(key string) AccountIDExtractor {
	return func(c *fiber.Ctx) string {
		if v, ok := c.Locals(key).(string); ok {
			return v
		}
		return ""
	}
}

// FixedMaterialType returns a MaterialTypeExtractor that always returns
// the same type.
func FixedMaterialType(t credits.MaterialType) MaterialTypeExtractor {
	return func(c *fiber.Ctx) credits.MaterialType {
		return t
	}
}

// TypeFromQuery returns a MaterialTypeExtractor that reads the material
// type from a query parameter.
func TypeFromQuery(name string) MaterialTypeExtractor {
	return func(c *fiber.Ctx) credits.MaterialType {
		return credits.MaterialType(c.Query(name))
	}
}
