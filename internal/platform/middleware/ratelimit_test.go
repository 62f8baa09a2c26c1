package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/labread/labread/internal/platform/auth"
)

func hit(t *testing.T, mw echo.MiddlewareFunc, ip, user string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", nil)
	req.RemoteAddr = ip + ":1234"
	if user != "" {
		req = req.WithContext(auth.WithIdentity(context.Background(), user, nil))
	}
	rec := httptest.NewRecorder()
	err := mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })(e.NewContext(req, rec))
	return rec, err
}

func TestRateLimit_BurstThenReject(t *testing.T) {
	mw := RateLimit(RateLimitConfig{RequestsPerSecond: 0.01, BurstSize: 2})

	for i := 0; i < 2; i++ {
		if _, err := hit(t, mw, "10.0.0.1", ""); err != nil {
			t.Fatalf("request %d: unexpected error %v", i, err)
		}
	}
	rec, err := hit(t, mw, "10.0.0.1", "")
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %v", err)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestRateLimit_PerKeyIsolation(t *testing.T) {
	mw := RateLimit(RateLimitConfig{RequestsPerSecond: 0.01, BurstSize: 1})

	if _, err := hit(t, mw, "10.0.0.1", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := hit(t, mw, "10.0.0.2", ""); err != nil {
		t.Errorf("expected separate IP to have its own budget, got %v", err)
	}
	if _, err := hit(t, mw, "10.0.0.1", "alice"); err != nil {
		t.Errorf("expected user key to be separate from IP key, got %v", err)
	}
	if _, err := hit(t, mw, "10.0.0.9", "alice"); err == nil {
		t.Error("expected the same user to share a budget across IPs")
	}
}

func TestRateLimiterStore_EvictsIdle(t *testing.T) {
	s := newRateLimiterStore(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1, IdleTTL: time.Minute})
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	first := s.get("a")
	if s.get("a") != first {
		t.Error("expected the same limiter for a known key")
	}
	now = now.Add(2 * time.Minute)
	s.get("b")
	if _, ok := s.entries["a"]; ok {
		t.Error("expected idle key to be evicted")
	}
}

func TestDefaultRateLimitConfig(t *testing.T) {
	cfg := DefaultRateLimitConfig()
	if cfg.RequestsPerSecond <= 0 || cfg.BurstSize <= 0 {
		t.Errorf("unexpected defaults %+v", cfg)
	}
}
