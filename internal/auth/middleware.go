package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

// ContextKey is the type for context keys
type ContextKey string

// TokenIndexKey is the context key for the index of the matched token hash
const TokenIndexKey ContextKey = "token_index"

// Service checks bearer tokens against configured bcrypt hashes.
// With no hashes configured the middleware lets every request through.
type Service struct {
	hashes [][]byte
}

// NewService creates a new auth service from bcrypt hashes (e.g. API_TOKEN_HASHES).
func NewService(hashes []string) *Service {
	s := &Service{}
	for _, h := range hashes {
		s.hashes = append(s.hashes, []byte(h))
	}
	return s
}

// Enabled reports whether any token hash is configured.
func (s *Service) Enabled() bool {
	return len(s.hashes) > 0
}

// Middleware creates an authentication middleware
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeJSONError(w, http.StatusUnauthorized, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			writeJSONError(w, http.StatusUnauthorized, "invalid authorization header format")
			return
		}

		token := parts[1]
		if token == "" {
			writeJSONError(w, http.StatusUnauthorized, "empty token")
			return
		}

		idx, ok := s.match(token)
		if !ok {
			log.Debug().Str("remote_addr", r.RemoteAddr).Msg("Invalid API token")
			writeJSONError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), TokenIndexKey, idx)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// match returns the index of the first hash token satisfies.
func (s *Service) match(token string) (int, bool) {
	for i, h := range s.hashes {
		if bcrypt.CompareHashAndPassword(h, []byte(token)) == nil {
			return i, true
		}
	}
	return -1, false
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
