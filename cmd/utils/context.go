package utils

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/terrascenik/server/cmd/models"
	"github.com/terrascenik/server/session"
)

type contextKey string

const IdentityKey contextKey = "identity"

func WithIdentity(ctx context.Context, user models.Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, user)
}

// GetIdentity returns the logged in user attached by RequireLogin or
// OptionalLogin.
func GetIdentity(r *http.Request) (models.Identity, bool) {
	user, ok := r.Context().Value(IdentityKey).(models.Identity)
	return user, ok
}

// RequireLogin rejects requests without a logged in session.
func RequireLogin(sessions *session.Manager, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok, err := sessions.User(r)
			if err != nil {
				logger.Debug("unreadable session", zap.Error(err))
			}
			if !ok {
				WriteError(w, logger, Unauthorized("You must be logged in to access this resource"))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), user)))
		})
	}
}

// OptionalLogin attaches the session user when there is one.
func OptionalLogin(sessions *session.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if user, ok, _ := sessions.User(r); ok {
				r = r.WithContext(WithIdentity(r.Context(), user))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithTimeout bounds the work a request may do, including its store calls.
func WithTimeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if d <= 0 {
				next.ServeHTTP(w, r)
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
