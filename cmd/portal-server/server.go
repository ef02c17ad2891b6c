package main

import (
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/clinic/portal/internal/config"
	"github.com/clinic/portal/internal/platform/auth"
	"github.com/clinic/portal/internal/platform/db"
	"github.com/clinic/portal/internal/platform/guard"
	"github.com/clinic/portal/internal/platform/hipaa"
	"github.com/clinic/portal/internal/platform/middleware"
	"github.com/clinic/portal/internal/platform/ratelimit"
	"github.com/clinic/portal/internal/platform/telemetry"
)

type server struct {
	echo    *echo.Echo
	guard   *guard.Guard
	limiter *ratelimit.Limiter
	audit   *hipaa.AuditLogger
}

// newServer wires the access-control stack and registers routes. pool may
// be nil, in which case audit events are logged and the limiter never picks
// the database backend.
func newServer(cfg *config.Config, logger zerolog.Logger, pool *pgxpool.Pool) *server {
	var store hipaa.AuditStore = hipaa.NewLogStore(logger.With().Str("component", "audit").Logger())
	factory := ratelimit.FactoryFromConfig(cfg, nil)
	if pool != nil {
		store = hipaa.NewPGStore(pool)
		factory = ratelimit.FactoryFromConfig(cfg, pool)
	}

	audit := hipaa.NewAuditLogger(store, logger, cfg.AuditWriteTimeout)
	limiter := ratelimit.New(factory, logger, ratelimit.WithTimeout(cfg.RateLimitBackendTimeout))

	resolver := auth.NewResolver(logger,
		&auth.JWTPatientTokens{Key: []byte(cfg.MobileTokenSecret), Issuer: cfg.MobileTokenIssuer},
		auth.NewJWTDoctorSessions([]byte(cfg.DoctorSessionSecret)),
		auth.NewJWTStaffSessions([]byte(cfg.StaffSessionSecret)),
	)
	g := guard.New(resolver, audit, logger)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	proxies, err := cfg.TrustedProxyNets()
	if err != nil {
		logger.Warn().Err(err).Msg("ignoring TRUSTED_PROXIES, using the peer address as client IP")
		proxies = nil
	}
	e.IPExtractor = middleware.ClientIPExtractor(proxies)

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(telemetry.Middleware())
	e.Use(middleware.SecurityHeaders(cfg.IsProductionLike()))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.PHIAudit(audit))

	s := &server{echo: e, guard: g, limiter: limiter, audit: audit}
	s.routes(cfg, pool)
	return s
}

func (s *server) routes(cfg *config.Config, pool *pgxpool.Pool) {
	e := s.echo

	e.GET("/health", s.health, middleware.RateLimit(s.limiter, middleware.RateLimitConfig{
		Purpose: "health",
		Limit:   cfg.HealthRateLimit,
		Window:  cfg.HealthRateWindow,
	}))
	e.GET("/health/db", db.HealthHandler(pool))
	e.GET("/metrics", echo.WrapHandler(telemetry.Handler(telemetry.NewRegistry())))

	api := e.Group("/api/v1")
	api.GET("/me", s.me, guard.Require(s.guard, guard.Options{AllowMobileToken: true}))

	access := guard.Require(s.guard, guard.Options{
		Allow:            []auth.Kind{auth.KindStaff, auth.KindDoctor},
		RequirePatientID: true,
		RequireBranch:    true,
	})
	api.GET("/access/patient", s.accessPatient, access)
	api.POST("/access/patient", s.accessPatient, access)
}

func (s *server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":             "ok",
		"rate_limit_backend": s.limiter.Backend().Name(),
	})
}

func (s *server) me(c echo.Context) error {
	res, _ := guard.ResultFromContext(c)
	return c.JSON(http.StatusOK, map[string]any{
		"kind":  res.Actor.Kind(),
		"actor": res.Actor,
	})
}

func (s *server) accessPatient(c echo.Context) error {
	res, _ := guard.ResultFromContext(c)
	return c.JSON(http.StatusOK, map[string]string{
		"actor_kind": string(res.Actor.Kind()),
		"patient_id": res.PatientID,
		"branch":     res.Branch,
	})
}
