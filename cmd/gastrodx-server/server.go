package main

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/gastrodx/gastrodx/internal/app"
	"github.com/gastrodx/gastrodx/internal/config"
	"github.com/gastrodx/gastrodx/internal/domain/catalog"
	"github.com/gastrodx/gastrodx/internal/domain/consultation"
	"github.com/gastrodx/gastrodx/internal/domain/diagnosis"
	"github.com/gastrodx/gastrodx/internal/domain/rules"
	"github.com/gastrodx/gastrodx/internal/platform/auth"
	"github.com/gastrodx/gastrodx/internal/platform/db"
	"github.com/gastrodx/gastrodx/internal/platform/metrics"
	"github.com/gastrodx/gastrodx/internal/platform/middleware"
)

const version = "0.1.0"

// newServer builds the HTTP surface over an opened store.
func newServer(cfg *config.Config, store *app.Store, svcs *app.Services, m *metrics.Metrics, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(m.HTTP.Middleware())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
			"driver":  store.Driver,
		})
	})
	e.GET("/health/db", db.HealthHandler(store.Health))
	e.GET("/metrics", m.Handler())

	apiV1 := e.Group("/api/v1")
	if cfg.RateLimitRPS > 0 {
		apiV1.Use(echomw.RateLimiter(echomw.NewRateLimiterMemoryStore(rate.Limit(cfg.RateLimitRPS))))
	}
	if cfg.RequestTimeout > 0 {
		apiV1.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	}

	jwtCfg := auth.JWTConfig{
		Issuer:     cfg.AuthIssuer,
		Audience:   cfg.AuthAudience,
		JWKSURL:    cfg.AuthJWKSURL,
		SigningKey: []byte(cfg.AuthSigningKey),
	}
	if cfg.IsDev() {
		apiV1.Use(auth.DevAuthMiddleware(jwtCfg))
	} else {
		apiV1.Use(auth.JWTMiddleware(jwtCfg))
	}
	apiV1.Use(store.ConnMiddleware())
	apiV1.Use(middleware.Audit(logger))

	catalog.NewHandler(svcs.Catalog).RegisterRoutes(apiV1)
	rules.NewHandler(svcs.Rules).RegisterRoutes(apiV1, apiV1)
	diagnosis.NewHandler(svcs.Diagnosis).RegisterRoutes(apiV1)
	consultation.NewHandler(svcs.Consultations).RegisterRoutes(apiV1, apiV1)

	return e
}
