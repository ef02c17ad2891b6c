package hipaa

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

// execer is satisfied by *pgxpool.Pool, *pgxpool.Conn and pgx.Tx.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PGStore appends audit events to the audit_log table.
type PGStore struct {
	db execer
}

func NewPGStore(db execer) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) InsertAuditEvent(ctx context.Context, event *AuditEvent) error {
	meta, err := json.Marshal(event.Meta)
	if err != nil {
		return fmt.Errorf("hipaa audit: encode meta: %w", err)
	}

	const query = `
		INSERT INTO audit_log (
			id, occurred_at, actor_kind, actor_id, role, branch, patient_id,
			route, method, action, result, status, request_id, ip, user_agent, meta
		) VALUES (
			$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16
		)`

	_, err = s.db.Exec(ctx, query,
		event.ID, event.OccurredAt, nullable(event.ActorKind), nullable(event.ActorID),
		nullable(event.Role), nullable(event.Branch), nullable(event.PatientID),
		event.Route, event.Method, string(event.Action), string(event.Result), event.Status,
		nullable(event.RequestID), nullable(event.IP), nullable(event.UserAgent), meta,
	)
	if err != nil {
		return fmt.Errorf("hipaa audit: insert event: %w", err)
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// LogStore writes audit events to the structured log. It is used when no
// database is configured.
type LogStore struct {
	logger zerolog.Logger
}

func NewLogStore(logger zerolog.Logger) *LogStore {
	return &LogStore{logger: logger}
}

func (s *LogStore) InsertAuditEvent(_ context.Context, event *AuditEvent) error {
	s.logger.Info().
		Str("audit_id", event.ID.String()).
		Str("actor_kind", event.ActorKind).
		Str("actor_id", event.ActorID).
		Str("role", event.Role).
		Str("branch", event.Branch).
		Str("patient_id", event.PatientID).
		Str("route", event.Route).
		Str("method", event.Method).
		Str("action", string(event.Action)).
		Str("result", string(event.Result)).
		Int("status", event.Status).
		Str("request_id", event.RequestID).
		Str("ip", event.IP).
		Interface("meta", event.Meta).
		Msg("audit")
	return nil
}
