package httpapi

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
			return
		}
		if !s.tokenValid(token) {
			respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// tokenValid checks the presented token against the configured plain token or
// bcrypt hash. With neither configured the management API stays locked.
func (s *Server) tokenValid(token string) bool {
	if s.authToken != "" {
		return subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) == 1
	}
	if s.authTokenBcrypt != "" {
		return bcrypt.CompareHashAndPassword([]byte(s.authTokenBcrypt), []byte(token)) == nil
	}
	return false
}

func extractToken(r *http.Request) string {
	authz := r.Header.Get("Authorization")
	if strings.HasPrefix(authz, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
	}
	return ""
}
