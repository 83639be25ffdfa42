package auth

import (
	"context"
	"net/http"
	"strings"

	apperrors "parkspot/internal/errors"
)

type contextKey struct{}

// Middleware rejects requests without a valid bearer token carrying one of
// roles, and stores the claims on the request context.
func Middleware(issuer *TokenIssuer, roles ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				apperrors.WriteError(w, apperrors.ErrUnauthorized("missing bearer token"))
				return
			}
			claims, err := issuer.Parse(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				apperrors.WriteError(w, apperrors.ErrUnauthorized("invalid token"))
				return
			}
			if !hasRole(claims.Role, roles) {
				apperrors.WriteError(w, apperrors.ErrForbidden("insufficient role"))
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, claims)))
		})
	}
}

func hasRole(role Role, allowed []Role) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if role == a {
			return true
		}
	}
	return false
}

func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(contextKey{}).(*Claims)
	return c, ok
}

// SubjectFromContext returns the authenticated user or vendor id, or "".
func SubjectFromContext(ctx context.Context) string {
	if c, ok := ClaimsFromContext(ctx); ok {
		return c.Subject
	}
	return ""
}
