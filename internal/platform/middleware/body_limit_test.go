package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestParseSize(t *testing.T) {
	tests := []struct {
		input   string
		want    int64
		wantErr bool
	}{
		{"1M", 1 << 20, false},
		{"20M", 20 << 20, false},
		{"10MB", 10 << 20, false},
		{"512K", 512 << 10, false},
		{"1g", 1 << 30, false},
		{"1024", 1024, false},
		{"", 0, true},
		{"invalid", 0, true},
		{"-5M", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseSize(tt.input)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseSize(%q) = %d, %v; want %d, err=%v", tt.input, got, err, tt.want, tt.wantErr)
		}
	}
	if parseLimit("bogus") != 1<<20 {
		t.Error("expected 1 MB fallback")
	}
}

func runBodyLimit(t *testing.T, path string, body []byte, contentLength int64) error {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.ContentLength = contentLength
	c := e.NewContext(req, httptest.NewRecorder())
	return BodyLimit("512", "4K", "/api/v1/analyze")(func(c echo.Context) error {
		_, err := io.ReadAll(c.Request().Body)
		return err
	})(c)
}

func expect413(t *testing.T, err error) {
	t.Helper()
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T (%v)", err, err)
	}
	if httpErr.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", httpErr.Code)
	}
}

func TestBodyLimit(t *testing.T) {
	small := bytes.Repeat([]byte("a"), 100)
	medium := bytes.Repeat([]byte("a"), 1024)
	large := bytes.Repeat([]byte("a"), 8192)

	if err := runBodyLimit(t, "/api/v1/interpret", small, int64(len(small))); err != nil {
		t.Errorf("expected small body to pass, got %v", err)
	}
	expect413(t, runBodyLimit(t, "/api/v1/interpret", medium, int64(len(medium))))

	if err := runBodyLimit(t, "/api/v1/analyze", medium, int64(len(medium))); err != nil {
		t.Errorf("expected upload limit to apply, got %v", err)
	}
	expect413(t, runBodyLimit(t, "/api/v1/analyze", large, int64(len(large))))
}

func TestBodyLimit_EnforcesLimitDuringRead(t *testing.T) {
	body := bytes.Repeat([]byte("a"), 1024)
	expect413(t, runBodyLimit(t, "/api/v1/interpret", body, -1))
}

func TestBodyLimit_SkipsNilBody(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/catalog", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	called := false
	err := BodyLimit("1", "1")(func(c echo.Context) error {
		called = true
		return nil
	})(c)
	if err != nil || !called {
		t.Errorf("expected handler to run, err=%v called=%v", err, called)
	}
}
