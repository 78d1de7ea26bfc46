package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/chatterbox/internal/crypto"
	"github.com/eldtechnologies/chatterbox/internal/models"
	"github.com/eldtechnologies/chatterbox/internal/store"
)

type contextKey string

const UserContextKey contextKey = "user"

// SessionCookie is the cookie carrying the session token.
const SessionCookie = "jwt"

// AuthMiddleware verifies session tokens for authenticated endpoints.
type AuthMiddleware struct {
	users  store.DataStore
	secret []byte
	logger zerolog.Logger
}

// NewAuthMiddleware creates a new auth middleware.
func NewAuthMiddleware(users store.DataStore, secret []byte, logger zerolog.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		users:  users,
		secret: secret,
		logger: logger,
	}
}

// RequireAuth resolves the session token to a user and stores it in the
// request context.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := TokenFromRequest(r)
		if token == "" {
			jsonError(w, http.StatusUnauthorized, "unauthorized - no token provided")
			return
		}

		userID, err := crypto.VerifySessionToken(m.secret, token)
		if err != nil {
			jsonError(w, http.StatusUnauthorized, "unauthorized - invalid token")
			return
		}

		user, err := m.users.GetUserByID(r.Context(), userID)
		if err != nil {
			m.logger.Error().Err(err).Str("user_id", userID).Msg("failed to load session user")
			jsonError(w, http.StatusInternalServerError, "database error")
			return
		}
		if user == nil {
			jsonError(w, http.StatusUnauthorized, "user not found")
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// TokenFromRequest returns the session token from the jwt cookie, a bearer
// Authorization header, or the token query parameter, in that order.
func TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	if auth := r.Header.Get("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return r.URL.Query().Get("token")
}

func jsonError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// GetUserFromContext retrieves the authenticated user from the request context.
func GetUserFromContext(ctx context.Context) *models.User {
	user, ok := ctx.Value(UserContextKey).(*models.User)
	if !ok {
		return nil
	}
	return user
}
