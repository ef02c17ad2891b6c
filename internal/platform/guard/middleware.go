package guard

import (
	"github.com/labstack/echo/v4"
)

const (
	resultContextKey      = "guard.result"
	denyAuditedContextKey = "guard.deny_audited"
)

// Require runs g before next and answers rejected requests with
// {"error": message, "reason": reason}.
func Require(g *Guard, opts Options) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			res := g.Check(c, opts)
			if !res.OK {
				return c.JSON(res.Status, map[string]string{
					"error":  res.Message,
					"reason": res.Reason,
				})
			}
			return next(c)
		}
	}
}

// ResultFromContext returns the result stored by Check.
func ResultFromContext(c echo.Context) (Result, bool) {
	res, ok := c.Get(resultContextKey).(Result)
	return res, ok
}

// DenyAudited reports whether the guard already wrote the DENY event for
// this request.
func DenyAudited(c echo.Context) bool {
	v, _ := c.Get(denyAuditedContextKey).(bool)
	return v
}
