package ratelimit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// RESTBackend talks to a Redis-compatible key-value service over its HTTP
// command API. Upstash and Vercel KV speak the same protocol and differ only
// in where their credentials come from.
type RESTBackend struct {
	name    string
	baseURL string
	token   string
	client  *http.Client
	now     func() time.Time
}

func NewRESTBackend(name, baseURL, token string, client *http.Client) *RESTBackend {
	if client == nil {
		client = &http.Client{}
	}
	return &RESTBackend{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  client,
		now:     time.Now,
	}
}

func (b *RESTBackend) Name() string { return b.name }

// restReply is one command result. Result is an integer for INCR, PTTL and
// PEXPIRE.
type restReply struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

func (b *RESTBackend) Check(ctx context.Context, p Params) (Result, error) {
	key := redisKeyPrefix + p.Key

	var replies []restReply
	err := b.do(ctx, "/multi-exec", [][]string{
		{"INCR", key},
		{"PTTL", key},
	}, &replies)
	if err != nil {
		return Result{}, err
	}
	if len(replies) != 2 {
		return Result{}, fmt.Errorf("%s: expected 2 replies, got %d", b.name, len(replies))
	}

	count, err := replies[0].int()
	if err != nil {
		return Result{}, fmt.Errorf("%s incr: %w", b.name, err)
	}
	ttlMs, err := replies[1].int()
	if err != nil {
		return Result{}, fmt.Errorf("%s pttl: %w", b.name, err)
	}

	ttl := time.Duration(ttlMs) * time.Millisecond
	if count == 1 || ttlMs < 0 {
		var reply restReply
		cmd := []string{"PEXPIRE", key, strconv.FormatInt(p.Window.Milliseconds(), 10)}
		if err := b.do(ctx, "", cmd, &reply); err != nil {
			return Result{}, err
		}
		if reply.Error != "" {
			return Result{}, fmt.Errorf("%s pexpire: %s", b.name, reply.Error)
		}
		ttl = p.Window
	}

	return result(count, p.Limit, b.now().Add(ttl)), nil
}

func (b *RESTBackend) do(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: encode command: %w", b.name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%s: build request: %w", b.name, err)
	}
	req.Header.Set("Authorization", "Bearer "+b.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", b.name, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("%s: read response: %w", b.name, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: unexpected status %d: %s", b.name, resp.StatusCode, bytes.TrimSpace(data))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", b.name, err)
	}
	return nil
}

func (r restReply) int() (int64, error) {
	if r.Error != "" {
		return 0, errors.New(r.Error)
	}
	var n int64
	if err := json.Unmarshal(r.Result, &n); err != nil {
		return 0, fmt.Errorf("non-integer result %s", r.Result)
	}
	return n, nil
}
