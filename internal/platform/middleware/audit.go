package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/clinic/portal/internal/platform/auth"
	"github.com/clinic/portal/internal/platform/guard"
	"github.com/clinic/portal/internal/platform/hipaa"
)

// PHIAudit records the outcome of every request on a PHI route once the
// handler has run: ALLOW below 400, DENY with rate_limited on 429 and ERROR
// otherwise. Requests the guard already rejected are skipped since their
// DENY is on record.
func PHIAudit(audit *hipaa.AuditLogger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !hipaa.IsPHIRoute(c.Request().URL.Path) {
				return next(c)
			}

			err := next(c)

			if guard.DenyAudited(c) {
				return err
			}

			status := responseStatus(c, err)
			result := hipaa.ResultAllow
			var meta map[string]any
			switch {
			case status == http.StatusTooManyRequests:
				result = hipaa.ResultDeny
				meta = map[string]any{"rate_limited": true, "source": "rate_limit"}
			case status >= http.StatusBadRequest:
				result = hipaa.ResultError
			}

			ev := hipaa.RequestEvent(c, auth.ActorFromContext(c.Request().Context()), result, status, meta)
			if res, ok := guard.ResultFromContext(c); ok && res.OK {
				if res.PatientID != "" {
					ev.PatientID = res.PatientID
				}
				if res.Branch != "" {
					ev.Branch = res.Branch
				}
			}
			audit.Log(c.Request().Context(), ev)
			return err
		}
	}
}

// responseStatus returns the status the client will see. Errors returned by
// the handler are rendered after middleware runs, so their code wins over
// the not-yet-written response.
func responseStatus(c echo.Context, err error) int {
	if err == nil {
		return c.Response().Status
	}
	if he, ok := err.(*echo.HTTPError); ok {
		return he.Code
	}
	if c.Response().Committed {
		return c.Response().Status
	}
	return http.StatusInternalServerError
}
