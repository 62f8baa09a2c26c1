package middleware

import (
	"fmt"
	"net/http"
	"runtime"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const recoveryStackSize = 8 << 10

// Recovery converts a handler panic into a 500 with the panic attached as the
// internal error, so the Logger middleware records the cause next to the
// request. http.ErrAbortHandler is re-raised for net/http to handle.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if r == http.ErrAbortHandler {
					panic(r)
				}
				cause, ok := r.(error)
				if !ok {
					cause = fmt.Errorf("panic: %v", r)
				}

				stack := make([]byte, recoveryStackSize)
				stack = stack[:runtime.Stack(stack, false)]

				req := c.Request()
				rid, _ := c.Get("request_id").(string)
				logger.Error().
					Err(cause).
					Str("request_id", rid).
					Str("method", req.Method).
					Str("route", c.Path()).
					Int64("content_length", req.ContentLength).
					Bytes("stack", stack).
					Msg("panic recovered")

				err = echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(cause)
			}()
			return next(c)
		}
	}
}
