package ratelimit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakeKV implements the subset of the REST command API the backend uses.
type fakeKV struct {
	mu       sync.Mutex
	counts   map[string]int64
	ttls     map[string]int64
	token    string
	requests []string
}

func newFakeKV(token string) *fakeKV {
	return &fakeKV{counts: map[string]int64{}, ttls: map[string]int64{}, token: token}
}

func (f *fakeKV) exec(cmd []string) map[string]any {
	switch cmd[0] {
	case "INCR":
		f.counts[cmd[1]]++
		if _, ok := f.ttls[cmd[1]]; !ok {
			f.ttls[cmd[1]] = -1
		}
		return map[string]any{"result": f.counts[cmd[1]]}
	case "PTTL":
		ttl, ok := f.ttls[cmd[1]]
		if !ok {
			ttl = -2
		}
		return map[string]any{"result": ttl}
	case "PEXPIRE":
		ms, _ := strconv.ParseInt(cmd[2], 10, 64)
		f.ttls[cmd[1]] = ms
		return map[string]any{"result": 1}
	}
	return map[string]any{"error": "ERR unknown command"}
}

func (f *fakeKV) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer "+f.token {
		http.Error(w, `{"error":"Unauthorized"}`, http.StatusUnauthorized)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.URL.Path)

	if r.URL.Path == "/multi-exec" {
		var cmds [][]string
		if err := json.NewDecoder(r.Body).Decode(&cmds); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		out := make([]map[string]any, 0, len(cmds))
		for _, c := range cmds {
			out = append(out, f.exec(c))
		}
		json.NewEncoder(w).Encode(out)
		return
	}

	var cmd []string
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	json.NewEncoder(w).Encode(f.exec(cmd))
}

func TestRESTBackend_FixedWindow(t *testing.T) {
	kv := newFakeKV("secret")
	srv := httptest.NewServer(kv)
	defer srv.Close()

	b := NewRESTBackend("upstash", srv.URL+"/", "secret", srv.Client())
	ctx := context.Background()
	p := Params{Key: "otp:+63900", Limit: 2, Window: time.Minute}

	r1, err := b.Check(ctx, p)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	r2, _ := b.Check(ctx, p)
	r3, _ := b.Check(ctx, p)

	if !r1.OK || r1.Remaining != 1 || !r2.OK || r2.Remaining != 0 || r3.OK {
		t.Errorf("unexpected sequence: %#v %#v %#v", r1, r2, r3)
	}
	if got := kv.ttls["ratelimit:otp:+63900"]; got != 60000 {
		t.Errorf("ttl = %d, want 60000", got)
	}
	// One PEXPIRE on the first hit only.
	if len(kv.requests) != 4 {
		t.Errorf("requests = %v", kv.requests)
	}
}

func TestRESTBackend_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(newFakeKV("secret"))
	defer srv.Close()

	b := NewRESTBackend("vercel-kv", srv.URL, "wrong", srv.Client())
	if _, err := b.Check(context.Background(), Params{Key: "k", Limit: 1, Window: time.Second}); err == nil {
		t.Fatal("expected error for rejected credentials")
	}
}

func TestRESTBackend_CommandError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"error":"WRONGTYPE"},{"result":-1}]`))
	}))
	defer srv.Close()

	b := NewRESTBackend("upstash", srv.URL, "t", srv.Client())
	if _, err := b.Check(context.Background(), Params{Key: "k", Limit: 1, Window: time.Second}); err == nil {
		t.Fatal("expected error for command failure")
	}
}

func TestRESTBackend_Name(t *testing.T) {
	if NewRESTBackend("vercel-kv", "http://x", "t", nil).Name() != "vercel-kv" {
		t.Error("name should be the configured variant")
	}
}

func TestRESTBackend_StalledServiceBoundedByLimiterTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	b := NewRESTBackend("upstash", srv.URL, "secret", nil)
	l := New(func() (Backend, error) { return b, nil }, zerolog.Nop(), WithTimeout(20*time.Millisecond))

	start := time.Now()
	res := l.Check(context.Background(), Params{Key: "health:1.2.3.4", Limit: 5, Window: time.Minute})
	if time.Since(start) > time.Second {
		t.Fatal("stalled REST call was not cut off by the limiter timeout")
	}
	if !res.OK || res.Remaining != 4 {
		t.Errorf("expected in-memory fallback result, got %#v", res)
	}
}
