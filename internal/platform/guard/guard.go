// Package guard is the single entry point protected routes use to resolve
// the caller and apply the authorization policy before doing any work.
package guard

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinic/portal/internal/platform/auth"
	"github.com/clinic/portal/internal/platform/hipaa"
	"github.com/clinic/portal/internal/platform/telemetry"
)

// ReasonBodyTooLarge is reported when the body limit cuts off a request
// body while the guard reads it for hints.
const ReasonBodyTooLarge = "body_too_large"

var (
	DefaultPatientIDKeys = []string{"patient_id", "patientId", "pid"}
	DefaultBranchKeys    = []string{"branch", "branch_code", "branchCode"}
)

// Options configures one guarded route.
type Options struct {
	// Allow lists the actor kinds that may proceed. Nil allows every kind.
	Allow            []auth.Kind
	AllowMobileToken bool
	RequirePatientID bool
	RequireBranch    bool
	// PatientIDKeys and BranchKeys override the request keys inspected for
	// caller-asserted values.
	PatientIDKeys []string
	BranchKeys    []string
}

func (o Options) patientIDKeys() []string {
	if len(o.PatientIDKeys) > 0 {
		return o.PatientIDKeys
	}
	return DefaultPatientIDKeys
}

func (o Options) branchKeys() []string {
	if len(o.BranchKeys) > 0 {
		return o.BranchKeys
	}
	return DefaultBranchKeys
}

// Result is the outcome of guarding a request. When OK is true PatientID and
// Branch hold the trusted values resolved for the caller; they are never the
// raw values the caller sent. When OK is false Status, Message and Reason
// describe the rejection and Actor is set if the caller was identified.
type Result struct {
	OK        bool
	Status    int
	Message   string
	Reason    string
	Actor     auth.Actor
	PatientID string
	Branch    string
}

func reject(d auth.Decision, a auth.Actor) Result {
	return Result{Status: d.Status, Message: d.Message, Reason: d.Reason, Actor: a}
}

func bodyTooLarge(a auth.Actor) Result {
	return Result{
		Status:  http.StatusRequestEntityTooLarge,
		Message: "Payload Too Large",
		Reason:  ReasonBodyTooLarge,
		Actor:   a,
	}
}

// Guard combines the actor resolver, the policy checks and the audit trail.
type Guard struct {
	resolver *auth.Resolver
	audit    *hipaa.AuditLogger
	logger   zerolog.Logger
}

func New(resolver *auth.Resolver, audit *hipaa.AuditLogger, logger zerolog.Logger) *Guard {
	return &Guard{resolver: resolver, audit: audit, logger: logger}
}

// Evaluate resolves the caller and runs the checks in order: identity,
// actor kind, patient scope, branch scope. The first rejection wins. It
// performs no audit write.
func (g *Guard) Evaluate(r *http.Request, opts Options) Result {
	actor := g.resolver.Resolve(r, opts.AllowMobileToken)
	if actor == nil {
		return reject(auth.Unauthenticated(), nil)
	}
	if d := auth.CheckActorAllowed(actor, opts.Allow); !d.OK {
		return reject(d, actor)
	}

	res := Result{OK: true, Actor: actor}
	h := newHints(r)

	if opts.RequirePatientID {
		requested, err := h.lookup(opts.patientIDKeys())
		if err != nil {
			return bodyTooLarge(actor)
		}
		d := auth.CheckPatientScope(actor, requested)
		if !d.OK {
			return reject(d, actor)
		}
		res.PatientID = d.PatientID
	}

	if opts.RequireBranch {
		d := auth.CheckBranchRequirement(actor)
		if !d.OK {
			return reject(d, actor)
		}
		requested, err := h.lookup(opts.branchKeys())
		if err != nil {
			return bodyTooLarge(actor)
		}
		m := auth.CheckBranchMatch(d.Branch, requested)
		if !m.OK {
			return reject(m, actor)
		}
		res.Branch = m.Branch
	}

	return res
}

// Check evaluates the request in c, stores the result on the context and,
// on rejection, records a DENY audit event.
func (g *Guard) Check(c echo.Context, opts Options) Result {
	res := g.Evaluate(c.Request(), opts)
	c.Set(resultContextKey, res)

	if res.OK {
		telemetry.GuardDecisions.WithLabelValues("allow", "").Inc()
		req := c.Request()
		c.SetRequest(req.WithContext(auth.WithActor(req.Context(), res.Actor)))
		return res
	}

	telemetry.GuardDecisions.WithLabelValues("deny", res.Reason).Inc()
	g.logger.Debug().
		Str("reason", res.Reason).
		Int("status", res.Status).
		Str("path", c.Request().URL.Path).
		Msg("guard rejected request")

	g.audit.Log(c.Request().Context(), hipaa.RequestEvent(c, res.Actor, hipaa.ResultDeny, res.Status, map[string]any{
		"reason": res.Reason,
		"source": "guard",
	}))
	c.Set(denyAuditedContextKey, true)
	return res
}
