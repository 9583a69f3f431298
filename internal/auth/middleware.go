package auth

import (
	"context"
	"net/http"

	"ms-seating/internal/logger"
	"ms-seating/internal/utils"
)

type contextKey string

const userIDKey contextKey = "user_id"

// TokenVerifier checks a bearer token and returns its subject.
type TokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (subject string, err error)
}

// Middleware rejects requests without a valid bearer token and stores the
// token subject as the caller's user id.
func Middleware(verifier TokenVerifier, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawToken, err := ExtractTokenFromRequest(r)
			if err != nil {
				utils.WriteError(w, http.StatusUnauthorized, "Unauthorized", err)
				return
			}

			sub, err := verifier.Verify(r.Context(), rawToken)
			if err != nil {
				log.LogSecurity("INVALID_TOKEN", r.Method+" "+r.URL.Path+": "+err.Error())
				utils.WriteError(w, http.StatusUnauthorized, "Unauthorized", err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), sub)))
		})
	}
}

// WithUserID returns ctx carrying userID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// Helper to extract user ID in handlers
func UserID(ctx context.Context) string {
	if uid, ok := ctx.Value(userIDKey).(string); ok {
		return uid
	}
	return ""
}
