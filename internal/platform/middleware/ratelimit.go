package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/clinic/portal/internal/platform/ratelimit"
)

// RateLimitConfig describes one limited route group.
type RateLimitConfig struct {
	// Purpose prefixes every key, e.g. "health".
	Purpose string
	Limit   int
	Window  time.Duration
	// Identifier picks the caller identity. Defaults to the client IP.
	Identifier func(c echo.Context) string
}

// RateLimit counts each request against "purpose:identifier" and answers
// 429 with Retry-After once the window's budget is spent.
func RateLimit(limiter *ratelimit.Limiter, cfg RateLimitConfig) echo.MiddlewareFunc {
	identify := cfg.Identifier
	if identify == nil {
		identify = func(c echo.Context) string { return c.RealIP() }
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			res := limiter.Check(c.Request().Context(), ratelimit.Params{
				Key:    cfg.Purpose + ":" + identify(c),
				Limit:  cfg.Limit,
				Window: cfg.Window,
			})

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

			if !res.OK {
				h.Set("Retry-After", strconv.Itoa(retryAfterSeconds(res.ResetAt, time.Now())))
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}

func retryAfterSeconds(resetAt, now time.Time) int {
	secs := int(resetAt.Sub(now).Round(time.Second) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}
