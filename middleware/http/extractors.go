package http

import (
	"net/http"

	"github.com/formatexp/formatexp/pkg/credits"
)

// FromHeader returns an AccountIDExtractor that reads the account ID
// from a request header.
func FromHeader(name string) AccountIDExtractor {
	return func(r *http.Request) string {
		return r.Header.Get(name)
	}
}

// FixedMaterialType returns a MaterialTypeExtractor that always returns
// the same type. Useful when a route serves exactly one material kind.
func FixedMaterialType(t credits.MaterialType) MaterialTypeExtractor {
	return func(r *http.Request) credits.MaterialType {
		return t
	}
}

// TypeFromQuery returns a MaterialTypeExtractor that reads the material
// type from a query parameter.
func TypeFromQuery(name string) MaterialTypeExtractor {
	return func(r *http.Request) credits.MaterialType {
		return credits.MaterialType(r.URL.Query().Get(name))
	}
}
