package middleware

import (
	"fmt"
	"net/http"
	"runtime"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinic/portal/internal/platform/auth"
)

// Recovery turns a handler panic into a 500 with the same
// {"error", "reason"} body guard rejections use, and logs the stack with
// the caller's identity. Panic values are never sent to the client.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				var stack [4096]byte
				n := runtime.Stack(stack[:], false)

				ev := logger.Error().
					Str("request_id", RequestIDFromContext(c)).
					Str("method", c.Request().Method).
					Str("path", c.Request().URL.Path).
					Str("panic", fmt.Sprintf("%v", r)).
					Str("stack", string(stack[:n]))
				if a := auth.ActorFromContext(c.Request().Context()); a != nil {
					ev = ev.Str("actor_kind", string(a.Kind())).Str("actor_id", a.Subject())
				}
				ev.Msg("panic recovered")

				if c.Response().Committed {
					err = nil
					return
				}
				err = c.JSON(http.StatusInternalServerError, map[string]string{
					"error":  "Internal Server Error",
					"reason": "internal_error",
				})
			}()
			return next(c)
		}
	}
}
