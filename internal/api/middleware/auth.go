// Package middleware holds the HTTP middleware of the API: bearer-token
// authentication, role checks and request logging.
package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/zoumson/OpenFreeAI/internal/api/ctxkeys"
	pkgauth "github.com/zoumson/OpenFreeAI/pkg/auth"
)

// TokenParser validates a bearer token. *pkgauth.Issuer satisfies it.
type TokenParser interface {
	Parse(token string) (*pkgauth.Claims, error)
}

// Authenticate validates the Bearer JWT and injects the username and role
// into the request context. Missing or invalid tokens get 401.
func Authenticate(parser TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := extractBearerToken(r)
			if tokenString == "" {
				writeJSONError(w, http.StatusUnauthorized, "missing or invalid Authorization header")
				return
			}

			claims, err := parser.Parse(tokenString)
			if err != nil {
				writeJSONError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			ctx := ctxkeys.WithValue(r.Context(), ctxkeys.Username, claims.Username)
			ctx = ctxkeys.WithValue(ctx, ctxkeys.Role, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole must run after Authenticate. Requests without an identity get
// 401; an authenticated caller with another role gets 403.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ctxkeys.String(r.Context(), ctxkeys.Username) == "" {
				writeJSONError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			if ctxkeys.String(r.Context(), ctxkeys.Role) != role {
				writeJSONError(w, http.StatusForbidden, "requires role "+role)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// extractBearerToken returns "" when the header is missing, uses another
// scheme, or carries an empty token.
func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, prefix))
}

// writeJSONError matches the {"error": msg} shape of the handlers package.
func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message}) //nolint:errcheck
}
