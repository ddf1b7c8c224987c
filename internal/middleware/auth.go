package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/84634E1A607A/nova210se-backend/internal/auth"
	"github.com/84634E1A607A/nova210se-backend/internal/httputil"
	"github.com/84634E1A607A/nova210se-backend/internal/models"
)

type contextKey string

const sessionContextKey contextKey = "session"

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "session"

// RequireAuth validates the session token (cookie or Authorization: Bearer)
// and puts the session on the request context. Requests without a live
// session get 403 "Invalid Session".
func RequireAuth(manager *auth.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			if token == "" {
				httputil.RespondWithError(w, http.StatusForbidden, "Invalid Session")
				return
			}

			session, err := manager.Verify(token)
			if err != nil {
				httputil.RespondWithError(w, http.StatusForbidden, "Invalid Session")
				return
			}

			ctx := context.WithValue(r.Context(), sessionContextKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TokenFromRequest extracts the session token from the session cookie or the
// Authorization header. The cookie wins when both are present.
func TokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

// SessionFromContext returns the authenticated session, or nil outside the
// auth middleware.
func SessionFromContext(ctx context.Context) *models.Session {
	session, _ := ctx.Value(sessionContextKey).(*models.Session)
	return session
}

// UserFromContext returns the authenticated user, or nil.
func UserFromContext(ctx context.Context) *models.User {
	if session := SessionFromContext(ctx); session != nil {
		return &session.User
	}
	return nil
}
