// Package middleware adapts Engine token validation to net/http.
//
// [Guard] reads the Authorization header, calls Engine.ValidateToken, and
// stores the verified claims in the request context for
// [ClaimsFromContext]. It never parses tokens itself.
package middleware
