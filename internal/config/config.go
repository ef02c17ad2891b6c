package config

import (
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string `mapstructure:"PORT"`
	Env         string `mapstructure:"ENV"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`

	RedisURL            string `mapstructure:"REDIS_URL"`
	UpstashRESTURL      string `mapstructure:"UPSTASH_REDIS_REST_URL"`
	UpstashRESTToken    string `mapstructure:"UPSTASH_REDIS_REST_TOKEN"`
	KVRESTURL           string `mapstructure:"KV_REST_API_URL"`
	KVRESTToken         string `mapstructure:"KV_REST_API_TOKEN"`
	RateLimitDBFallback bool   `mapstructure:"RATE_LIMIT_DB_FALLBACK"`

	StaffSessionSecret  string `mapstructure:"STAFF_SESSION_SECRET"`
	DoctorSessionSecret string `mapstructure:"DOCTOR_SESSION_SECRET"`
	MobileTokenSecret   string `mapstructure:"MOBILE_TOKEN_SECRET"`
	MobileTokenIssuer   string `mapstructure:"MOBILE_TOKEN_ISSUER"`

	CORSOrigins    []string `mapstructure:"CORS_ORIGINS"`
	BodyLimit      string   `mapstructure:"BODY_LIMIT"`
	TrustedProxies []string `mapstructure:"TRUSTED_PROXIES"`

	HealthRateLimit         int           `mapstructure:"HEALTH_RATE_LIMIT"`
	HealthRateWindow        time.Duration `mapstructure:"HEALTH_RATE_WINDOW"`
	RateLimitBackendTimeout time.Duration `mapstructure:"RATE_LIMIT_BACKEND_TIMEOUT"`
	AuditWriteTimeout       time.Duration `mapstructure:"AUDIT_WRITE_TIMEOUT"`
}

// Rate limiter backend kinds, in selection priority order.
const (
	BackendUpstash  = "upstash"
	BackendVercelKV = "vercel-kv"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("RATE_LIMIT_DB_FALLBACK", true)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("BODY_LIMIT", "1M")
	v.SetDefault("HEALTH_RATE_LIMIT", 60)
	v.SetDefault("HEALTH_RATE_WINDOW", "1m")
	v.SetDefault("RATE_LIMIT_BACKEND_TIMEOUT", "0s")
	v.SetDefault("AUDIT_WRITE_TIMEOUT", "0s")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range []string{
		"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
		"REDIS_URL", "UPSTASH_REDIS_REST_URL", "UPSTASH_REDIS_REST_TOKEN",
		"KV_REST_API_URL", "KV_REST_API_TOKEN", "RATE_LIMIT_DB_FALLBACK",
		"STAFF_SESSION_SECRET", "DOCTOR_SESSION_SECRET",
		"MOBILE_TOKEN_SECRET", "MOBILE_TOKEN_ISSUER",
		"CORS_ORIGINS", "BODY_LIMIT", "TRUSTED_PROXIES", "HEALTH_RATE_LIMIT", "HEALTH_RATE_WINDOW",
		"RATE_LIMIT_BACKEND_TIMEOUT", "AUDIT_WRITE_TIMEOUT",
	} {
		_ = v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.IsDev() {
		log.Println("WARNING: Server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: Session secrets may be empty; signed sessions will not verify.")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProductionLike reports whether the deployment should behave like
// production for infrastructure decisions (database rate-limit fallback).
func (c *Config) IsProductionLike() bool {
	switch c.Env {
	case "production", "staging":
		return true
	}
	return false
}

// RateLimitBackendKind returns the rate limiter backend this environment
// selects. Managed cache services win over everything else; the database
// is only used in production-like deployments without a cache service.
func (c *Config) RateLimitBackendKind() string {
	switch {
	case c.UpstashRESTURL != "" && c.UpstashRESTToken != "":
		return BackendUpstash
	case c.KVRESTURL != "" && c.KVRESTToken != "":
		return BackendVercelKV
	case c.RedisURL != "":
		return BackendRedis
	case c.IsProductionLike() && c.RateLimitDBFallback && c.DatabaseURL != "":
		return BackendPostgres
	default:
		return BackendMemory
	}
}

// Validate checks that the configuration is safe to run. Outside development
// every identity provider must have a signing secret, and REST cache-service
// credentials must come in URL/token pairs.
func (c *Config) Validate() error {
	if !c.IsDev() {
		if c.StaffSessionSecret == "" {
			return fmt.Errorf("STAFF_SESSION_SECRET is required when ENV=%q", c.Env)
		}
		if c.DoctorSessionSecret == "" {
			return fmt.Errorf("DOCTOR_SESSION_SECRET is required when ENV=%q", c.Env)
		}
		if c.MobileTokenSecret == "" {
			return fmt.Errorf("MOBILE_TOKEN_SECRET is required when ENV=%q", c.Env)
		}
	}

	if (c.UpstashRESTURL == "") != (c.UpstashRESTToken == "") {
		return fmt.Errorf("UPSTASH_REDIS_REST_URL and UPSTASH_REDIS_REST_TOKEN must be set together")
	}
	if (c.KVRESTURL == "") != (c.KVRESTToken == "") {
		return fmt.Errorf("KV_REST_API_URL and KV_REST_API_TOKEN must be set together")
	}

	if c.HealthRateLimit <= 0 {
		return fmt.Errorf("HEALTH_RATE_LIMIT must be positive, got %d", c.HealthRateLimit)
	}
	if c.HealthRateWindow <= 0 {
		return fmt.Errorf("HEALTH_RATE_WINDOW must be positive, got %s", c.HealthRateWindow)
	}
	if c.RateLimitBackendTimeout < 0 || c.AuditWriteTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	if _, err := c.TrustedProxyNets(); err != nil {
		return err
	}

	return nil
}

// TrustedProxyNets parses TRUSTED_PROXIES. Entries are CIDR ranges or bare
// addresses; a bare address trusts only itself.
func (c *Config) TrustedProxyNets() ([]*net.IPNet, error) {
	var nets []*net.IPNet
	for _, raw := range c.TrustedProxies {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}
		if !strings.Contains(entry, "/") {
			ip := net.ParseIP(entry)
			if ip == nil {
				return nil, fmt.Errorf("TRUSTED_PROXIES: invalid address %q", entry)
			}
			bits := 128
			if ip.To4() != nil {
				ip = ip.To4()
				bits = 32
			}
			nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, ipNet, err := net.ParseCIDR(entry)
		if err != nil {
			return nil, fmt.Errorf("TRUSTED_PROXIES: %w", err)
		}
		nets = append(nets, ipNet)
	}
	return nets, nil
}
