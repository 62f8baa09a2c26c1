package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var testSigningKey = []byte("test-secret-key-for-unit-tests-only")

func createTestToken(t *testing.T, claims Claims, key []byte) string {
	t.Helper()
	tokenStr, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return tokenStr
}

func runMiddleware(t *testing.T, mw echo.MiddlewareFunc, header string) (echo.Context, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/analyses", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	c := e.NewContext(req, httptest.NewRecorder())
	var seen echo.Context
	err := mw(func(c echo.Context) error {
		seen = c
		return c.String(http.StatusOK, "ok")
	})(c)
	return seen, err
}

func expectStatus(t *testing.T, err error, code int) {
	t.Helper()
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T (%v)", err, err)
	}
	if httpErr.Code != code {
		t.Errorf("expected %d, got %d", code, httpErr.Code)
	}
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	_, err := runMiddleware(t, JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), "")
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_InvalidFormat(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"no bearer prefix", "Token abc123"},
		{"missing token", "Bearer"},
		{"empty value", "Bearer "},
		{"basic auth", "Basic dXNlcjpwYXNz"},
		{"garbage token", "Bearer not.a.jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runMiddleware(t, JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), tt.header)
			expectStatus(t, err, http.StatusUnauthorized)
		})
	}
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-123",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Roles: []string{RoleAnalyst},
	}
	token := createTestToken(t, claims, testSigningKey)

	c, err := runMiddleware(t, JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), "Bearer "+token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := c.Request().Context()
	if got := UserIDFromContext(ctx); got != "user-123" {
		t.Errorf("expected user-123, got %q", got)
	}
	if roles := RolesFromContext(ctx); len(roles) != 1 || roles[0] != RoleAnalyst {
		t.Errorf("expected [analyst], got %v", roles)
	}
}

func TestJWTMiddleware_Rejections(t *testing.T) {
	future := jwt.NewNumericDate(time.Now().Add(time.Hour))
	tests := []struct {
		name   string
		claims Claims
		key    []byte
		cfg    JWTConfig
	}{
		{
			name:   "expired",
			claims: Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u", ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour))}},
			key:    testSigningKey,
			cfg:    JWTConfig{SigningKey: testSigningKey},
		},
		{
			name:   "wrong key",
			claims: Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u", ExpiresAt: future}},
			key:    []byte("another-key"),
			cfg:    JWTConfig{SigningKey: testSigningKey},
		},
		{
			name:   "wrong issuer",
			claims: Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u", Issuer: "other", ExpiresAt: future}},
			key:    testSigningKey,
			cfg:    JWTConfig{SigningKey: testSigningKey, Issuer: "labread"},
		},
		{
			name:   "wrong audience",
			claims: Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u", Audience: jwt.ClaimStrings{"other"}, ExpiresAt: future}},
			key:    testSigningKey,
			cfg:    JWTConfig{SigningKey: testSigningKey, Audience: "labread-api"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := createTestToken(t, tt.claims, tt.key)
			_, err := runMiddleware(t, JWTMiddleware(tt.cfg), "Bearer "+token)
			expectStatus(t, err, http.StatusUnauthorized)
		})
	}
}

func TestJWTMiddleware_Skipper(t *testing.T) {
	cfg := JWTConfig{SigningKey: testSigningKey, Skipper: func(echo.Context) bool { return true }}
	if _, err := runMiddleware(t, JWTMiddleware(cfg), ""); err != nil {
		t.Errorf("expected skipped request to pass, got %v", err)
	}
}

func TestIssueToken_RoundTrip(t *testing.T) {
	cfg := JWTConfig{SigningKey: testSigningKey, Issuer: "labread", Audience: "labread-api"}
	token, err := IssueToken(cfg, "cli", []string{RoleViewer}, time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c, err := runMiddleware(t, JWTMiddleware(cfg), "Bearer "+token)
	if err != nil {
		t.Fatalf("expected issued token to validate, got %v", err)
	}
	if got := UserIDFromContext(c.Request().Context()); got != "cli" {
		t.Errorf("expected subject cli, got %q", got)
	}

	if _, err := IssueToken(JWTConfig{}, "cli", nil, time.Hour); err == nil {
		t.Error("expected error without signing key")
	}
}

func TestDevAuthMiddleware(t *testing.T) {
	c, err := runMiddleware(t, DevAuthMiddleware(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := c.Request().Context()
	if UserIDFromContext(ctx) != "dev-user" {
		t.Errorf("expected dev-user, got %q", UserIDFromContext(ctx))
	}
	if !HasRole(RolesFromContext(ctx), RoleAnalyst) {
		t.Error("expected dev identity to satisfy analyst role")
	}
}
