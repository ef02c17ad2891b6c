package ratelimit

import (
	"errors"
	"net/http"

	"github.com/clinic/portal/internal/config"
)

var errNoPool = errors.New("postgres rate limit backend selected without a database pool")

// FactoryFromConfig picks the backend the environment configures: a REST
// key-value service (Upstash, then Vercel KV), a Redis URL, the Postgres
// fallback for production-like deployments, or process memory. db may be
// nil when no database is configured.
func FactoryFromConfig(cfg *config.Config, db queryRower) Factory {
	return func() (Backend, error) {
		switch cfg.RateLimitBackendKind() {
		case config.BackendUpstash:
			return NewRESTBackend(config.BackendUpstash, cfg.UpstashRESTURL, cfg.UpstashRESTToken, restHTTPClient()), nil
		case config.BackendVercelKV:
			return NewRESTBackend(config.BackendVercelKV, cfg.KVRESTURL, cfg.KVRESTToken, restHTTPClient()), nil
		case config.BackendRedis:
			client, err := NewRedisClient(cfg.RedisURL)
			if err != nil {
				return nil, err
			}
			return NewRedisBackend(client), nil
		case config.BackendPostgres:
			if db == nil {
				return nil, errNoPool
			}
			return NewPostgresBackend(db), nil
		}
		return NewMemoryBackend(), nil
	}
}

// restHTTPClient has no client-level timeout. Calls are bounded by the
// limiter's RATE_LIMIT_BACKEND_TIMEOUT, which is unbounded when zero.
func restHTTPClient() *http.Client {
	return &http.Client{}
}
