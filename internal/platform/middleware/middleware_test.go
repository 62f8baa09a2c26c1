package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func newContext(method, path string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestRequestID_GeneratesNew(t *testing.T) {
	c, rec := newContext(http.MethodGet, "/")

	var rid string
	err := RequestID()(func(c echo.Context) error {
		rid, _ = c.Get("request_id").(string)
		return c.String(http.StatusOK, "ok")
	})(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rid == "" {
		t.Error("expected request_id to be generated")
	}
	if rec.Header().Get(RequestIDHeader) != rid {
		t.Errorf("expected response header %q, got %q", rid, rec.Header().Get(RequestIDHeader))
	}
}

func TestRequestID_PreservesExisting(t *testing.T) {
	c, rec := newContext(http.MethodGet, "/")
	c.Request().Header.Set(RequestIDHeader, "my-custom-id")

	_ = RequestID()(func(c echo.Context) error { return nil })(c)
	if rec.Header().Get(RequestIDHeader) != "my-custom-id" {
		t.Errorf("expected my-custom-id, got %s", rec.Header().Get(RequestIDHeader))
	}
}

func TestRequestID_ReplacesOversized(t *testing.T) {
	c, rec := newContext(http.MethodGet, "/")
	c.Request().Header.Set(RequestIDHeader, strings.Repeat("x", 200))

	_ = RequestID()(func(c echo.Context) error { return nil })(c)
	if got := rec.Header().Get(RequestIDHeader); len(got) != 36 {
		t.Errorf("expected a generated uuid, got %q", got)
	}
}

func TestLogger_LogsRequest(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	c, _ := newContext(http.MethodGet, "/api/v1/catalog")
	c.Set("request_id", "rid-1")

	err := Logger(logger)(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected one JSON log line, got %q", buf.String())
	}
	if entry["request_id"] != "rid-1" || entry["path"] != "/api/v1/catalog" || entry["status"] != float64(200) {
		t.Errorf("unexpected log entry %v", entry)
	}
	if entry["level"] != "info" {
		t.Errorf("expected info level, got %v", entry["level"])
	}
}

func TestLogger_HandlesErrors(t *testing.T) {
	var buf bytes.Buffer
	c, rec := newContext(http.MethodGet, "/api/v1/analyses/x")

	err := Logger(zerolog.New(&buf))(func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "analysis not found")
	})(c)
	if err != nil {
		t.Fatalf("expected the error to be written, got %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 response, got %d", rec.Code)
	}
	if !strings.Contains(buf.String(), `"level":"warn"`) {
		t.Errorf("expected warn level for 4xx, got %q", buf.String())
	}
}

func TestRecovery_CatchesPanic(t *testing.T) {
	var buf bytes.Buffer
	c, _ := newContext(http.MethodGet, "/")

	err := Recovery(zerolog.New(&buf))(func(c echo.Context) error {
		panic("boom")
	})(c)

	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 HTTPError, got %v", err)
	}
	if !strings.Contains(buf.String(), "panic recovered") {
		t.Errorf("expected panic to be logged, got %q", buf.String())
	}
}

func TestRecovery_PassesThrough(t *testing.T) {
	c, rec := newContext(http.MethodGet, "/")
	err := Recovery(zerolog.Nop())(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})(c)
	if err != nil || rec.Code != http.StatusOK {
		t.Errorf("expected pass-through, got err=%v code=%d", err, rec.Code)
	}
}

func TestRecovery_KeepsPanicAsInternal(t *testing.T) {
	c, _ := newContext(http.MethodPost, "/api/v1/analyze")
	cause := errors.New("decoder exploded")

	err := Recovery(zerolog.Nop())(func(c echo.Context) error {
		panic(cause)
	})(c)

	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected HTTPError, got %v", err)
	}
	if !errors.Is(httpErr.Internal, cause) {
		t.Errorf("expected panic value as internal error, got %v", httpErr.Internal)
	}
}

func TestRecovery_ReraisesAbortHandler(t *testing.T) {
	c, _ := newContext(http.MethodGet, "/")
	defer func() {
		if r := recover(); r != http.ErrAbortHandler {
			t.Errorf("expected ErrAbortHandler to propagate, got %v", r)
		}
	}()
	_ = Recovery(zerolog.Nop())(func(c echo.Context) error {
		panic(http.ErrAbortHandler)
	})(c)
	t.Error("expected panic to propagate")
}

func TestSecurityHeaders(t *testing.T) {
	c, rec := newContext(http.MethodGet, "/api/v1/analyses")
	if err := SecurityHeaders()(func(c echo.Context) error { return c.NoContent(http.StatusOK) })(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := map[string]string{
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'",
		"Referrer-Policy":         "no-referrer",
		"Cache-Control":           "no-store",
	}
	for header, want := range expected {
		if got := rec.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
}

func TestRequestTimeout(t *testing.T) {
	t.Run("deadline set", func(t *testing.T) {
		c, _ := newContext(http.MethodGet, "/")
		err := RequestTimeout(time.Second)(func(c echo.Context) error {
			if _, ok := c.Request().Context().Deadline(); !ok {
				t.Error("expected a deadline on the request context")
			}
			return nil
		})(c)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("expired", func(t *testing.T) {
		c, _ := newContext(http.MethodPost, "/api/v1/analyze")
		err := RequestTimeout(10*time.Millisecond)(func(c echo.Context) error {
			<-c.Request().Context().Done()
			return c.Request().Context().Err()
		})(c)
		httpErr, ok := err.(*echo.HTTPError)
		if !ok || httpErr.Code != http.StatusGatewayTimeout {
			t.Fatalf("expected 504, got %v", err)
		}
		if !errors.Is(httpErr.Internal, context.DeadlineExceeded) {
			t.Errorf("expected wrapped deadline error, got %v", httpErr.Internal)
		}
	})

	t.Run("handler error kept", func(t *testing.T) {
		c, _ := newContext(http.MethodGet, "/")
		want := echo.NewHTTPError(http.StatusBadRequest, "bad")
		if err := RequestTimeout(time.Second)(func(c echo.Context) error { return want })(c); err != want {
			t.Errorf("expected handler error, got %v", err)
		}
	})

	t.Run("disabled", func(t *testing.T) {
		c, _ := newContext(http.MethodGet, "/")
		_ = RequestTimeout(0)(func(c echo.Context) error {
			if _, ok := c.Request().Context().Deadline(); ok {
				t.Error("expected no deadline when disabled")
			}
			return nil
		})(c)
	})
}
