package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	marketAuth "github.com/MrEthical07/marketAuth"
)

// TokenValidator is satisfied by *marketAuth.Engine.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*marketAuth.Claims, error)
}

type claimsContextKey struct{}

// ClaimsFromContext returns the claims Guard stored for this request.
func ClaimsFromContext(ctx context.Context) (*marketAuth.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*marketAuth.Claims)
	return claims, ok && claims != nil
}

// WithClaims stores claims on ctx. Guard uses it; tests may too.
func WithClaims(ctx context.Context, claims *marketAuth.Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

// Guard rejects requests without a valid bearer token with 401.
func Guard(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if validator == nil {
				unauthorized(w)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				unauthorized(w)
				return
			}

			claims, err := validator.ValidateToken(r.Context(), token)
			if err != nil {
				unauthorized(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="marketplace"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": "unauthorized"})
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
