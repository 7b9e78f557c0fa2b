package handler

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"pdf-tools-bot/internal/domain"
)

// AuthMiddleware checks the gateway bearer token.
type AuthMiddleware struct {
	token  string
	logger domain.Logger
}

// NewAuthMiddleware creates a new auth middleware. An empty token disables
// the check.
func NewAuthMiddleware(token string, logger domain.Logger) *AuthMiddleware {
	return &AuthMiddleware{token: token, logger: logger}
}

// Middleware rejects requests without the configured bearer token
func (m *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.token == "" {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, http.StatusUnauthorized, "Authorization header required")
			return
		}

		// Extract token from "Bearer <token>" format
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			writeError(w, http.StatusUnauthorized, "Invalid authorization header format")
			return
		}

		token := parts[1]
		if token == "" {
			writeError(w, http.StatusUnauthorized, "Token required")
			return
		}

		if subtle.ConstantTimeCompare([]byte(token), []byte(m.token)) != 1 {
			m.logger.Warn("Gateway token rejected", "remote_addr", r.RemoteAddr)
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		next.ServeHTTP(w, r)
	})
}
