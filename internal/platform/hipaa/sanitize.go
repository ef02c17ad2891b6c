package hipaa

import (
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Maximum stored lengths, in bytes, of free-text audit fields.
const (
	MaxRouteLen      = 256
	MaxMethodLen     = 16
	MaxRequestIDLen  = 128
	MaxIPLen         = 64
	MaxUserAgentLen  = 256
	MaxIdentifierLen = 128
	MaxMetaStringLen = 256
)

// allowedMetaKeys is the closed set of meta keys that may reach storage.
var allowedMetaKeys = map[string]bool{
	"reason":       true,
	"source":       true,
	"rate_limited": true,
	"event":        true,
	"referral_id":  true,
}

// Sanitize returns a copy of event that is safe to persist: identifiers
// and free text are clamped, route and method get defaults, and meta is
// restricted to allow-listed keys with primitive values.
func Sanitize(event AuditEvent) AuditEvent {
	out := event
	if out.ID == uuid.Nil {
		out.ID = uuid.New()
	}
	if out.OccurredAt.IsZero() {
		out.OccurredAt = time.Now().UTC()
	}

	out.Route = clamp(strings.TrimSpace(out.Route), MaxRouteLen)
	if out.Route == "" {
		out.Route = "unknown"
	}
	out.Method = clamp(strings.ToUpper(strings.TrimSpace(out.Method)), MaxMethodLen)
	if out.Method == "" {
		out.Method = "UNKNOWN"
	}

	out.ActorKind = clamp(out.ActorKind, MaxIdentifierLen)
	out.ActorID = clamp(out.ActorID, MaxIdentifierLen)
	out.Role = clamp(out.Role, MaxIdentifierLen)
	out.Branch = clamp(out.Branch, MaxIdentifierLen)
	out.PatientID = clamp(out.PatientID, MaxIdentifierLen)
	out.RequestID = clamp(out.RequestID, MaxRequestIDLen)
	out.IP = clamp(out.IP, MaxIPLen)
	out.UserAgent = clamp(out.UserAgent, MaxUserAgentLen)
	out.Meta = SanitizeMeta(event.Meta)
	return out
}

// SanitizeMeta drops every key outside the allow-list and every value that
// is not a string, number, boolean or null. Strings are clamped.
func SanitizeMeta(meta map[string]any) map[string]any {
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		if !allowedMetaKeys[k] {
			continue
		}
		if clean, ok := primitive(v); ok {
			out[k] = clean
		}
	}
	return out
}

func primitive(v any) (any, bool) {
	switch x := v.(type) {
	case nil:
		return nil, true
	case string:
		return clamp(x, MaxMetaStringLen), true
	case bool:
		return x, true
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return x, true
	case float32:
		return x, !math.IsNaN(float64(x)) && !math.IsInf(float64(x), 0)
	case float64:
		return x, !math.IsNaN(x) && !math.IsInf(x, 0)
	case json.Number:
		return x, true
	}
	return nil, false
}

// clamp truncates s to at most n bytes without splitting a UTF-8 sequence.
func clamp(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
