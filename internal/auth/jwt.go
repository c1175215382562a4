// Package auth verifies bearer tokens issued by the external identity
// provider and exposes the caller's verified identity to handlers.
//
// The server never issues credentials itself: tokens are either HS256 JWTs
// signed with a shared secret, or OIDC ID tokens when an issuer is configured.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dropit/dropit/internal/metrics"
)

type contextKey string

const userContextKey contextKey = "user"

// Claims holds the verified identity of a request.
type Claims struct {
	UserID string `json:"sub"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Auth verifies bearer tokens.
type Auth struct {
	secret []byte
	oidc   *OIDCVerifier
}

// New creates an Auth that accepts HS256 tokens signed with jwtSecret.
func New(jwtSecret string) *Auth {
	return &Auth{secret: []byte(jwtSecret)}
}

// SetOIDCVerifier enables OIDC ID token verification as a fallback.
func (a *Auth) SetOIDCVerifier(v *OIDCVerifier) {
	a.oidc = v
}

// Middleware returns HTTP middleware that rejects requests without a valid
// bearer token and stores the verified claims in the request context.
func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr := extractToken(r)
		if tokenStr == "" {
			metrics.RecordAuthAttempt(false)
			sendAuthError(w, http.StatusUnauthorized, "missing authentication token")
			return
		}

		claims, err := a.validateToken(r.Context(), tokenStr)
		if err != nil {
			metrics.RecordAuthAttempt(false)
			sendAuthError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		metrics.RecordAuthAttempt(true)
		ctx := context.WithValue(r.Context(), userContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetClaims extracts claims from the request context.
func GetClaims(ctx context.Context) *Claims {
	claims, _ := ctx.Value(userContextKey).(*Claims)
	return claims
}

func (a *Auth) validateToken(ctx context.Context, tokenStr string) (*Claims, error) {
	if len(a.secret) > 0 {
		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return a.secret, nil
		})
		if err == nil && token.Valid {
			if claims.UserID == "" {
				return nil, fmt.Errorf("token has no subject")
			}
			return claims, nil
		}
		if a.oidc == nil {
			return nil, err
		}
	}

	if a.oidc != nil {
		return a.oidc.Verify(ctx, tokenStr)
	}
	return nil, fmt.Errorf("no token verifier configured")
}

func extractToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

func sendAuthError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": message,
		"code":  code,
	})
}
