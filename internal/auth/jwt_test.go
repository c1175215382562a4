package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "unit-test-secret"

func signHS256(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tok
}

func protectedHandler(t *testing.T) (http.Handler, *Claims) {
	t.Helper()
	seen := &Claims{}
	a := New(testSecret)
	h := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c := GetClaims(r.Context()); c != nil {
			*seen = *c
		}
		w.WriteHeader(http.StatusOK)
	}))
	return h, seen
}

func TestMiddlewareAcceptsValidToken(t *testing.T) {
	h, seen := protectedHandler(t)

	token := signHS256(t, testSecret, jwt.MapClaims{
		"sub":   "user-123",
		"email": "u@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if seen.UserID != "user-123" {
		t.Errorf("expected subject in context, got %q", seen.UserID)
	}
	if seen.Email != "u@example.com" {
		t.Errorf("expected email in context, got %q", seen.Email)
	}
}

func TestMiddlewareRejects(t *testing.T) {
	h, _ := protectedHandler(t)

	expired := signHS256(t, testSecret, jwt.MapClaims{
		"sub": "user-123",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	wrongSecret := signHS256(t, "some-other-secret", jwt.MapClaims{
		"sub": "user-123",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	noSubject := signHS256(t, testSecret, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	cases := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"not bearer", "Basic dXNlcjpwYXNz"},
		{"garbage token", "Bearer not.a.jwt"},
		{"expired", "Bearer " + expired},
		{"wrong secret", "Bearer " + wrongSecret},
		{"no subject", "Bearer " + noSubject},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", tc.name, rec.Code)
		}
	}
}

func TestGetClaimsWithoutMiddleware(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if c := GetClaims(req.Context()); c != nil {
		t.Errorf("expected nil claims outside the middleware, got %+v", c)
	}
}
