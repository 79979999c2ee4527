package api

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"strings"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// authMiddleware guards the mutating endpoints. Two credentials are
// accepted: a bearer JWT signed HMAC-SHA256 with ADMIN_JWT_SECRET, or
// an X-API-Key whose SHA-256 hex matches ADMIN_API_KEY_HASH. When
// neither env var is set the surface is open, which is the expected
// state for a single-operator deployment behind a private network.
type authMiddleware struct {
	jwtSecret  []byte
	apiKeyHash string
}

func newAuthMiddlewareFromEnv() *authMiddleware {
	return &authMiddleware{
		jwtSecret:  []byte(os.Getenv("ADMIN_JWT_SECRET")),
		apiKeyHash: strings.ToLower(strings.TrimSpace(os.Getenv("ADMIN_API_KEY_HASH"))),
	}
}

func (a *authMiddleware) enabled() bool {
	return len(a.jwtSecret) > 0 || a.apiKeyHash != ""
}

func (a *authMiddleware) authorize(r *http.Request) error {
	if apiKey := r.Header.Get("X-API-Key"); apiKey != "" && a.apiKeyHash != "" {
		sum := sha256.Sum256([]byte(apiKey))
		got := hex.EncodeToString(sum[:])
		if subtle.ConstantTimeCompare([]byte(got), []byte(a.apiKeyHash)) == 1 {
			return nil
		}
		return fmt.Errorf("invalid API key")
	}

	if len(a.jwtSecret) == 0 {
		return fmt.Errorf("missing X-API-Key")
	}
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return fmt.Errorf("missing Authorization header or X-API-Key")
	}
	tokenStr := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))

	token, err := jwtlib.Parse(tokenStr, func(token *jwtlib.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.jwtSecret, nil
	})
	if err != nil {
		return fmt.Errorf("invalid JWT: %w", err)
	}
	if !token.Valid {
		return fmt.Errorf("invalid JWT")
	}
	return nil
}

func (a *authMiddleware) wrap(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || !a.enabled() {
			next.ServeHTTP(w, r)
			return
		}
		if err := a.authorize(r); err != nil {
			writeAPIError(w, http.StatusUnauthorized, err.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}
