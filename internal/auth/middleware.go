package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

type ctxKey int

const identityKey ctxKey = 1

// RequireUser returns middleware that verifies the Bearer token on each
// request and attaches the resolved Identity to the request context.
// Requests without a valid token are rejected before reaching the handler.
func RequireUser(v Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if !strings.HasPrefix(header, prefix) {
				unauthorized(w, "missing bearer token")
				return
			}

			id, err := v.Verify(r.Context(), strings.TrimSpace(header[len(prefix):]))
			if err != nil {
				slog.Debug("token verification failed", "error", err)
				unauthorized(w, "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext returns the verified identity attached by RequireUser.
func UserFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// WithIdentity returns a context carrying the given identity. Used by tests
// and by non-HTTP entry points that resolve identity some other way.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"type": "authentication_error", "message": msg},
	})
}
