package auth

import (
	"context"
	"net/http"
	"strings"

	"deskrelay/domain"
)

type contextKey struct{}

var participantKey contextKey

// Middleware extracts the bearer token, validates it, and injects the
// resulting Participant into the request context. Requests without a
// valid identity never reach the relay handlers.
func Middleware(v *Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			tokenString, found := strings.CutPrefix(header, "Bearer ")
			if !found || tokenString == "" {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}
			p, err := v.Validate(tokenString)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), participantKey, p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// FromContext returns the authenticated participant, if any.
func FromContext(ctx context.Context) (domain.Participant, bool) {
	p, ok := ctx.Value(participantKey).(domain.Participant)
	return p, ok
}
