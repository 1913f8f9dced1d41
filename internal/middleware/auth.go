package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/claimdesk/incident-api/internal/domain/identity"
)

type contextKey string

const identityKey contextKey = "identity"

// skip auth for probes and the metrics scrape
func isPublicPath(path string) bool {
	return path == "/health" || path == "/ready" || path == "/metrics"
}

// JWTAuth validates the bearer token and resolves the caller's Identity:
// username, groups, company claims, and the effective role by precedence.
func JWTAuth(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublicPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			auth := r.Header.Get("Authorization")
			if auth == "" {
				http.Error(w, "missing Authorization header", http.StatusUnauthorized)
				return
			}
			raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			if raw == "" {
				http.Error(w, "invalid Authorization header format", http.StatusUnauthorized)
				return
			}

			id, err := ParseIdentity(raw, secret)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ParseIdentity verifies an HS256 token and maps its claims to Identity.
func ParseIdentity(raw string, secret []byte) (identity.Identity, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return identity.Identity{}, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return identity.Identity{}, fmt.Errorf("invalid token claims")
	}

	id := identity.Identity{
		Username:    stringClaim(claims, "username"),
		CompanyID:   stringClaim(claims, "company_id"),
		CompanyName: stringClaim(claims, "company_name"),
	}
	if id.Username == "" {
		id.Username = stringClaim(claims, "sub")
	}
	if groups, ok := claims["groups"].([]any); ok {
		for _, g := range groups {
			if s, ok := g.(string); ok {
				id.Groups = append(id.Groups, s)
			}
		}
	}
	id.Role, _ = identity.ResolveRole(id.Groups)
	return id, nil
}

func stringClaim(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}

// IdentityFromContext extracts the caller identity set by JWTAuth.
func IdentityFromContext(ctx context.Context) (identity.Identity, bool) {
	id, ok := ctx.Value(identityKey).(identity.Identity)
	return id, ok
}

// ContextWithIdentity is used by tests and the admin scripts to inject a
// caller identity without going through the HTTP middleware.
func ContextWithIdentity(ctx context.Context, id identity.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}
