package http

import (
	"context"

	"funnel_backend/platform/config"
	"funnel_backend/platform/logger"
	"funnel_backend/platform/metrics"
	"funnel_backend/platform/ratelimit"
)

// RouterConfig combines the config interfaces needed by the HTTP router.
type RouterConfig interface {
	config.HTTPConfig
	config.JWTConfig
}

// HealthChecker exposes minimal functionality for readiness checks.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// App holds the fully initialized application dependencies.
// This is populated by main.go (the composition root) and passed to the router.
type App struct {
	Config      RouterConfig
	Logger      *logger.Logger
	Health      HealthChecker
	LeadLimiter ratelimit.Limiter
	Metrics     metrics.Recorder
	Modules     []Module
}
