package hipaa

import (
	"github.com/labstack/echo/v4"

	"github.com/clinic/portal/internal/platform/auth"
)

// RequestEvent builds an audit event for the request in c. actor may be nil
// when the caller could not be identified.
func RequestEvent(c echo.Context, actor auth.Actor, result Result, status int, meta map[string]any) AuditEvent {
	req := c.Request()

	e := AuditEvent{
		Route:     req.URL.Path,
		Method:    req.Method,
		Action:    ActionForRequest(req.URL.Path, req.Method),
		Result:    result,
		Status:    status,
		RequestID: requestID(c),
		IP:        c.RealIP(),
		UserAgent: req.UserAgent(),
		Meta:      meta,
	}
	if actor != nil {
		e.ActorKind = string(actor.Kind())
		e.ActorID = actor.Subject()
		e.Role = auth.RoleOf(actor)
		e.Branch = auth.BranchOf(actor)
		if p, ok := actor.(auth.Patient); ok {
			e.PatientID = p.PatientID
		}
	}
	return e
}

func requestID(c echo.Context) string {
	if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
		return id
	}
	return c.Request().Header.Get(echo.HeaderXRequestID)
}
