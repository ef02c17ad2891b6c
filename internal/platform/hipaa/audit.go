package hipaa

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinic/portal/internal/platform/telemetry"
)

// Action classifies what a request did to patient data.
type Action string

const (
	ActionRead   Action = "READ"
	ActionWrite  Action = "WRITE"
	ActionVerify Action = "VERIFY"
	ActionSign   Action = "SIGN"
)

// Result is the outcome recorded for an audited request.
type Result string

const (
	ResultAllow Result = "ALLOW"
	ResultDeny  Result = "DENY"
	ResultError Result = "ERROR"
)

// AuditEvent is one security-relevant decision. It is built at the point of
// decision, written once and never updated.
type AuditEvent struct {
	ID         uuid.UUID      `json:"id"`
	OccurredAt time.Time      `json:"occurred_at"`
	ActorKind  string         `json:"actor_kind"`
	ActorID    string         `json:"actor_id"`
	Role       string         `json:"role"`
	Branch     string         `json:"branch"`
	PatientID  string         `json:"patient_id"`
	Route      string         `json:"route"`
	Method     string         `json:"method"`
	Action     Action         `json:"action"`
	Result     Result         `json:"result"`
	Status     int            `json:"status"`
	RequestID  string         `json:"request_id"`
	IP         string         `json:"ip"`
	UserAgent  string         `json:"user_agent"`
	Meta       map[string]any `json:"meta"`
}

// AuditStore persists sanitized audit events.
type AuditStore interface {
	InsertAuditEvent(ctx context.Context, event *AuditEvent) error
}

// AuditLogger records audit events without ever failing or blocking the
// request that produced them. Writes run on their own goroutine; Drain waits
// for the ones still in flight.
type AuditLogger struct {
	store   AuditStore
	logger  zerolog.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewAuditLogger creates an AuditLogger. A zero timeout leaves writes
// unbounded.
func NewAuditLogger(store AuditStore, logger zerolog.Logger, timeout time.Duration) *AuditLogger {
	return &AuditLogger{store: store, logger: logger, timeout: timeout}
}

// Log sanitizes event and writes it in the background. The caller's
// cancellation does not abort the write.
func (a *AuditLogger) Log(ctx context.Context, event AuditEvent) {
	if a == nil || a.store == nil {
		return
	}
	clean := Sanitize(event)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.write(context.WithoutCancel(ctx), &clean)
	}()
}

func (a *AuditLogger) write(ctx context.Context, event *AuditEvent) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			telemetry.AuditWriteFailures.Inc()
			a.logger.Warn().Interface("panic", r).Str("request_id", event.RequestID).Msg("audit write panicked")
		}
	}()

	if err := a.store.InsertAuditEvent(ctx, event); err != nil {
		telemetry.AuditWriteFailures.Inc()
		a.logger.Warn().Err(err).
			Str("request_id", event.RequestID).
			Str("result", string(event.Result)).
			Msg("failed to record audit event")
	}
}

// Drain blocks until every pending write has finished.
func (a *AuditLogger) Drain() {
	if a == nil {
		return
	}
	a.wg.Wait()
}
