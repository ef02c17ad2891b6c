package hipaa

import (
	"math"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

func TestSanitizeMeta_AllowListAndPrimitives(t *testing.T) {
	got := SanitizeMeta(map[string]any{
		"reason":       "x",
		"password":     "p",
		"rate_limited": true,
		"event":        map[string]any{"a": 1},
	})

	if len(got) != 2 {
		t.Fatalf("expected 2 keys, got %v", got)
	}
	if got["reason"] != "x" {
		t.Errorf("reason = %v", got["reason"])
	}
	if got["rate_limited"] != true {
		t.Errorf("rate_limited = %v", got["rate_limited"])
	}
	if _, ok := got["password"]; ok {
		t.Error("non allow-listed key leaked")
	}
	if _, ok := got["event"]; ok {
		t.Error("nested object leaked")
	}
}

func TestSanitizeMeta_NumbersAndNull(t *testing.T) {
	got := SanitizeMeta(map[string]any{
		"referral_id": 42,
		"source":      nil,
		"event":       math.NaN(),
		"reason":      math.Inf(1),
	})

	if got["referral_id"] != 42 {
		t.Errorf("referral_id = %v", got["referral_id"])
	}
	if v, ok := got["source"]; !ok || v != nil {
		t.Errorf("null value should be kept, got %v, %v", v, ok)
	}
	if _, ok := got["event"]; ok {
		t.Error("NaN should be dropped")
	}
	if _, ok := got["reason"]; ok {
		t.Error("Inf should be dropped")
	}
}

func TestSanitizeMeta_Nil(t *testing.T) {
	got := SanitizeMeta(nil)
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty map, got %v", got)
	}
}

func TestSanitizeMeta_ClampsStrings(t *testing.T) {
	got := SanitizeMeta(map[string]any{"reason": strings.Repeat("r", 1000)})
	if s := got["reason"].(string); len(s) != MaxMetaStringLen {
		t.Errorf("len = %d, want %d", len(s), MaxMetaStringLen)
	}
}

func TestSanitize_Defaults(t *testing.T) {
	out := Sanitize(AuditEvent{Result: ResultDeny})

	if out.Route != "unknown" {
		t.Errorf("route = %q", out.Route)
	}
	if out.Method != "UNKNOWN" {
		t.Errorf("method = %q", out.Method)
	}
	if out.ID == uuid.Nil {
		t.Error("expected generated id")
	}
	if out.OccurredAt.IsZero() {
		t.Error("expected timestamp")
	}
}

func TestSanitize_ClampsFields(t *testing.T) {
	in := AuditEvent{
		Route:     "/" + strings.Repeat("a", 500),
		Method:    "post" + strings.Repeat("x", 40),
		RequestID: strings.Repeat("r", 300),
		IP:        strings.Repeat("1", 100),
		UserAgent: strings.Repeat("u", 600),
		ActorID:   strings.Repeat("i", 200),
	}
	out := Sanitize(in)

	checks := map[string]struct {
		got int
		max int
	}{
		"route":      {len(out.Route), MaxRouteLen},
		"method":     {len(out.Method), MaxMethodLen},
		"request_id": {len(out.RequestID), MaxRequestIDLen},
		"ip":         {len(out.IP), MaxIPLen},
		"user_agent": {len(out.UserAgent), MaxUserAgentLen},
		"actor_id":   {len(out.ActorID), MaxIdentifierLen},
	}
	for name, c := range checks {
		if c.got != c.max {
			t.Errorf("%s length = %d, want %d", name, c.got, c.max)
		}
	}
	if !strings.HasPrefix(out.Method, "POST") {
		t.Errorf("method should be upper-cased, got %q", out.Method)
	}
	if len(in.Route) != 501 {
		t.Error("input event must not be modified")
	}
}

func TestClamp_RuneBoundary(t *testing.T) {
	s := strings.Repeat("é", 10) // 2 bytes each
	got := clamp(s, 5)
	if !utf8.ValidString(got) {
		t.Fatalf("clamp split a rune: %q", got)
	}
	if len(got) != 4 {
		t.Errorf("len = %d, want 4", len(got))
	}
}

func TestSanitizeMeta_DecodedNumber(t *testing.T) {
	dec := json.NewDecoder(strings.NewReader(`{"referral_id": 9007199254740993}`))
	dec.UseNumber()
	var meta map[string]any
	if err := dec.Decode(&meta); err != nil {
		t.Fatalf("decode: %v", err)
	}

	got := SanitizeMeta(meta)
	n, ok := got["referral_id"].(json.Number)
	if !ok || n.String() != "9007199254740993" {
		t.Errorf("referral_id = %#v, want exact json.Number", got["referral_id"])
	}
}
