package echo

import (
	"github.com/labstack/echo/v4"

	"github.com/formatexp/formatexp/pkg/credits"
)

// FromHeader returns an AccountIDExtractor that reads the account ID
// from a request header.
func FromHeader(name string) AccountIDExtractor {
	return func(c echo.Context) string {
		return c.Request().Header.Get(name)
	}
}

// FromContextKey returns an AccountIDExtractor that reads the account
// ID from the Echo context, set by an upstream auth middleware.
func FromContextKey(key string) AccountIDExtractor {
	return func(c echo.Context) string {
		if v, ok := c.Get(key).(string); ok {
			return v
		}
		return ""
	}
}

// FixedMaterialType returns a MaterialTypeExtractor that always returns
// the same type.
func FixedMaterialType(t credits.MaterialType) MaterialTypeExtractor {
	return func(c echo.Context) credits.MaterialType {
		return t
	}
}

// TypeFromQuery returns a MaterialTypeExtractor that reads the material
// type from a query parameter.
func TypeFromQuery(name string) MaterialTypeExtractor {
	return func(c echo.Context) credits.MaterialType {
		return credits.MaterialType(c.QueryParam(name))
	}
}
